package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidProduct 商品缺少 URL 或标题
var ErrInvalidProduct = errors.New("product record is incomplete")

// ProductRecord 抓取或推断得到的商品记录
type ProductRecord struct {
	URL          string            `json:"url"`
	ASIN         string            `json:"asin,omitempty"`
	Title        string            `json:"title"`
	Price        *float64          `json:"price,omitempty"`
	Currency     string            `json:"currency,omitempty"`
	Rating       *float64          `json:"rating,omitempty"`
	ReviewCount  *int              `json:"review_count,omitempty"`
	Availability string            `json:"availability,omitempty"`
	Seller       string            `json:"seller,omitempty"`
	Category     string            `json:"category,omitempty"`
	Features     []string          `json:"features,omitempty"`
	Images       []string          `json:"images,omitempty"`
	Description  string            `json:"description,omitempty"`
	RawTrace     map[string]string `json:"raw_trace,omitempty"`
}

// IsValid 最小有效性：必须有 URL 和标题
func (p *ProductRecord) IsValid() bool {
	return p != nil && p.URL != "" && p.Title != ""
}

// QualityScore 数据质量分 [0,1]
func (p *ProductRecord) QualityScore() float64 {
	if p == nil {
		return 0
	}
	score := 0.0
	if p.URL != "" && p.Title != "" {
		score += 0.4
	}
	if p.Price != nil && *p.Price > 0 {
		score += 0.15
	}
	if p.Currency != "" {
		score += 0.05
	}
	if p.Rating != nil && *p.Rating >= 0 && *p.Rating <= 5 {
		score += 0.1
	}
	if p.ReviewCount != nil && *p.ReviewCount > 0 {
		score += 0.1
	}
	for _, present := range []bool{p.Availability != "", p.Seller != "", p.Category != "", len(p.Features) > 0} {
		if present {
			score += 0.05
		}
	}
	// 避免浮点累加误差
	return math.Min(math.Round(score*1000)/1000, 1.0)
}

// ValidationIssues 数据校验问题列表
func (p *ProductRecord) ValidationIssues() []string {
	if p == nil {
		return []string{"Missing product URL", "Missing product title"}
	}
	var issues []string
	if p.URL == "" {
		issues = append(issues, "Missing product URL")
	}
	if p.Title == "" {
		issues = append(issues, "Missing product title")
	}
	if p.Price == nil {
		issues = append(issues, "Missing price information")
	} else if *p.Price <= 0 {
		issues = append(issues, "Invalid price (must be positive)")
	}
	if p.Rating != nil && (*p.Rating < 0 || *p.Rating > 5) {
		issues = append(issues, "Invalid rating (must be 0-5)")
	}
	if p.ReviewCount != nil && *p.ReviewCount < 0 {
		issues = append(issues, "Invalid review count (must be non-negative)")
	}
	if p.Price != nil && p.Currency == "" {
		issues = append(issues, "Price provided but currency missing")
	}
	if p.Availability == "" {
		issues = append(issues, "Availability status missing")
	}
	if p.Seller == "" {
		issues = append(issues, "Seller information missing")
	}
	if p.Category == "" {
		issues = append(issues, "Product category missing")
	}
	if len(p.Features) == 0 {
		issues = append(issues, "Product features missing")
	}
	return issues
}

// TierScore 单个字段层级的完整度
type TierScore struct {
	Present int      `json:"present"`
	Total   int      `json:"total"`
	Score   float64  `json:"score"`
	Missing []string `json:"missing,omitempty"`
}

// Completeness 字段完整度，overall = 0.6*critical + 0.3*important + 0.1*optional
type Completeness struct {
	Critical  TierScore `json:"critical"`
	Important TierScore `json:"important"`
	Optional  TierScore `json:"optional"`
	Overall   float64   `json:"overall"`
}

type field struct {
	name    string
	present bool
}

func scoreTier(fields []field) TierScore {
	t := TierScore{Total: len(fields)}
	for _, f := range fields {
		if f.present {
			t.Present++
		} else {
			t.Missing = append(t.Missing, f.name)
		}
	}
	if t.Total > 0 {
		t.Score = float64(t.Present) / float64(t.Total)
	}
	return t
}

// Completeness 计算三层字段完整度
func (p *ProductRecord) Completeness() Completeness {
	if p == nil {
		p = &ProductRecord{}
	}
	c := Completeness{
		Critical: scoreTier([]field{
			{"url", p.URL != ""},
			{"title", p.Title != ""},
			{"price", p.Price != nil},
		}),
		Important: scoreTier([]field{
			{"rating", p.Rating != nil},
			{"review_count", p.ReviewCount != nil},
			{"availability", p.Availability != ""},
			{"currency", p.Currency != ""},
		}),
		Optional: scoreTier([]field{
			{"seller", p.Seller != ""},
			{"category", p.Category != ""},
			{"features", len(p.Features) > 0},
			{"images", len(p.Images) > 0},
		}),
	}
	c.Overall = c.Critical.Score*0.6 + c.Important.Score*0.3 + c.Optional.Score*0.1
	return c
}

// Summary 生成供模型阅读的结构化摘要
func (p *ProductRecord) Summary(asin string) string {
	parts := []string{"## Product Data Analysis"}
	if asin != "" {
		parts = append(parts, "**ASIN:** "+asin)
	}
	parts = append(parts, "**Product Title:** "+p.Title)

	if p.Price != nil {
		currency := p.Currency
		if currency == "" {
			currency = "USD"
		}
		parts = append(parts, fmt.Sprintf("**Price:** %s %.2f", currency, *p.Price))
	}
	if p.Rating != nil {
		s := fmt.Sprintf("**Rating:** %.1f/5", *p.Rating)
		if p.ReviewCount != nil && *p.ReviewCount > 0 {
			s += fmt.Sprintf(" (%s reviews)", FormatThousands(*p.ReviewCount))
		}
		parts = append(parts, s)
	}
	if p.Availability != "" {
		parts = append(parts, "**Availability:** "+p.Availability)
	}
	if p.Seller != "" {
		parts = append(parts, "**Seller:** "+p.Seller)
	}
	if p.Category != "" {
		parts = append(parts, "**Category:** "+p.Category)
	}
	if len(p.Features) > 0 {
		parts = append(parts, "**Key Features:**")
		for i, f := range p.Features {
			if i == 5 {
				break
			}
			parts = append(parts, "- "+f)
		}
	}
	if len(p.Images) > 0 {
		parts = append(parts, fmt.Sprintf("**Images Found:** %d product images", len(p.Images)))
	}
	return strings.Join(parts, "\n")
}

// FormatThousands 以千分位格式化整数
func FormatThousands(n int) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return sign + s
	}
	var sb strings.Builder
	head := len(s) % 3
	if head > 0 {
		sb.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sign + sb.String()
}

// Float 返回指针，便于构造可选字段
func Float(v float64) *float64 { return &v }

// Int 返回指针，便于构造可选字段
func Int(v int) *int { return &v }
