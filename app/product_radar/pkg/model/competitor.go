package model

// CandidateCompetitor 推荐区域中发现的竞品候选
type CandidateCompetitor struct {
	ASIN        string   `json:"asin"`
	Title       string   `json:"title"`
	Price       *float64 `json:"price,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount *int     `json:"review_count,omitempty"`
	Brand       string   `json:"brand,omitempty"`
	URL         string   `json:"url"`
	SourceZone  string   `json:"source_zone"`
	// Confidence 区域置信度，Score 为排序使用的综合分
	Confidence float64 `json:"confidence"`
	Score      float64 `json:"score"`
}

// DetailedCompetitor 单独抓取过详情页的竞品
type DetailedCompetitor struct {
	Candidate CandidateCompetitor `json:"candidate"`
	Record    ProductRecord       `json:"record"`
}

// CompetitorRow 持久化用的竞品行
type CompetitorRow struct {
	ASIN        string
	Title       string
	Price       *float64
	Currency    string
	Rating      *float64
	ReviewCount *int
	Brand       string
	SourceZone  string
	Score       float64
	Detailed    bool
}

// Row 候选竞品转为持久化行
func (c CandidateCompetitor) Row() CompetitorRow {
	return CompetitorRow{
		ASIN:        c.ASIN,
		Title:       c.Title,
		Price:       c.Price,
		Rating:      c.Rating,
		ReviewCount: c.ReviewCount,
		Brand:       c.Brand,
		SourceZone:  c.SourceZone,
		Score:       c.Score,
	}
}

// Row 详细竞品转为持久化行，价格评分以详情页为准
func (d DetailedCompetitor) Row() CompetitorRow {
	r := d.Candidate.Row()
	if d.Record.Title != "" {
		r.Title = d.Record.Title
	}
	r.Price = d.Record.Price
	r.Currency = d.Record.Currency
	r.Rating = d.Record.Rating
	r.ReviewCount = d.Record.ReviewCount
	r.Detailed = true
	return r
}
