// Package competitor 从商品页的推荐区域中发现、去重、过滤并排序竞品。
package competitor

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/logger"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/model"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/textproc"
)

const (
	MaxCandidates  = 10
	minTitleLength = 10
	maxTitleLength = 200

	ratingBonus     = 0.1
	priceBonus      = 0.05
	longTitleBonus  = 0.05
	longTitleLength = 50
	minBonusPrice   = 10.0
	maxBonusPrice   = 500.0
)

var asinRe = regexp.MustCompile(`^B[0-9A-Z]{9}$`)

// Extractor 竞品提取器
type Extractor struct {
	zones []Zone
	limit int
}

// NewExtractor 使用默认区域创建提取器
func NewExtractor() *Extractor {
	return &Extractor{zones: DefaultZones, limit: MaxCandidates}
}

// Extract 解析 HTML 并提取竞品，任何失败都返回空列表
func (e *Extractor) Extract(html, mainASIN string) []model.CandidateCompetitor {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		logger.Log.Warnf("竞品提取解析页面失败: %v", err)
		return []model.CandidateCompetitor{}
	}
	return e.ExtractDocument(doc, mainASIN)
}

// ExtractDocument 在已解析的文档上提取竞品
func (e *Extractor) ExtractDocument(doc *goquery.Document, mainASIN string) (out []model.CandidateCompetitor) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("竞品提取失败 [%s]: %v", mainASIN, r)
			out = []model.CandidateCompetitor{}
		}
	}()

	seen := map[string]bool{mainASIN: true}
	var all []model.CandidateCompetitor
	for _, zone := range e.zones {
		found := e.scanZone(doc, zone, seen)
		for _, c := range found {
			seen[c.ASIN] = true
		}
		all = append(all, found...)
		if len(found) > 0 {
			logger.Log.Debugf("区域 [%s] 发现 %d 个候选", zone.Name, len(found))
		}
	}

	ranked := rank(all, mainASIN)
	if len(ranked) > e.limit {
		ranked = ranked[:e.limit]
	}
	logger.Log.Infof("竞品提取完成 [%s]: 原始 %d 个, 过滤后 %d 个", mainASIN, len(all), len(ranked))
	return ranked
}

// scanZone 扫描单个区域，区域内异常只跳过该区域
func (e *Extractor) scanZone(doc *goquery.Document, zone Zone, seen map[string]bool) (found []model.CandidateCompetitor) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Warnf("区域 [%s] 解析失败: %v", zone.Name, r)
			found = nil
		}
	}()

	local := map[string]bool{}
	doc.Find(zone.Container).Each(func(_ int, container *goquery.Selection) {
		container.Find(zone.Items).Each(func(_ int, item *goquery.Selection) {
			c, err := parseItem(item, zone)
			if err != nil {
				return
			}
			if seen[c.ASIN] || local[c.ASIN] {
				return
			}
			local[c.ASIN] = true
			found = append(found, c)
		})
	})
	return found
}

func parseItem(item *goquery.Selection, zone Zone) (model.CandidateCompetitor, error) {
	asin := strings.TrimSpace(item.AttrOr("data-asin", ""))
	if asin == "" {
		return model.CandidateCompetitor{}, fmt.Errorf("item without asin")
	}
	title := extractTitle(item)
	if title == "" {
		return model.CandidateCompetitor{}, fmt.Errorf("item %s without title", asin)
	}

	c := model.CandidateCompetitor{
		ASIN:       asin,
		Title:      title,
		Brand:      extractBrand(title),
		URL:        textproc.ProductURL(asin),
		SourceZone: zone.Name,
		Confidence: zone.Confidence,
		Score:      zone.Confidence,
	}
	if v, ok := extractPrice(item); ok {
		c.Price = model.Float(v)
	}
	if v, ok := extractRating(item); ok {
		c.Rating = model.Float(v)
	}
	if n, ok := extractReviewCount(item); ok {
		c.ReviewCount = model.Int(n)
	}
	return c, nil
}

// rank 过滤无效与同品牌候选，按综合分降序排列
func rank(candidates []model.CandidateCompetitor, mainASIN string) []model.CandidateCompetitor {
	out := make([]model.CandidateCompetitor, 0, len(candidates))
	if len(candidates) == 0 {
		return out
	}

	mainBrand := inferMainBrand(candidates)
	for _, c := range candidates {
		if !isValid(c, mainBrand, mainASIN) {
			continue
		}
		c.Score = CompositeScore(c)
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// inferMainBrand 出现次数最多的品牌，次数相同时取先出现者
func inferMainBrand(candidates []model.CandidateCompetitor) string {
	counts := map[string]int{}
	var order []string
	for _, c := range candidates {
		if c.Brand == "" {
			continue
		}
		if counts[c.Brand] == 0 {
			order = append(order, c.Brand)
		}
		counts[c.Brand]++
	}

	best, bestCount := "", 0
	for _, b := range order {
		if counts[b] > bestCount {
			best, bestCount = b, counts[b]
		}
	}
	return best
}

func isValid(c model.CandidateCompetitor, mainBrand, mainASIN string) bool {
	if c.ASIN == "" || c.Title == "" {
		return false
	}
	if !asinRe.MatchString(c.ASIN) {
		return false
	}
	if c.ASIN == mainASIN {
		return false
	}
	if mainBrand != "" && c.Brand != "" && strings.EqualFold(c.Brand, mainBrand) {
		return false
	}
	n := utf8.RuneCountInString(c.Title)
	return n >= minTitleLength && n <= maxTitleLength
}

// CompositeScore 区域置信度加评分、价格、标题长度奖励，上限 1
func CompositeScore(c model.CandidateCompetitor) float64 {
	score := c.Confidence
	if c.Rating != nil && *c.Rating >= 4.0 {
		score += ratingBonus
	}
	if c.Price != nil && *c.Price >= minBonusPrice && *c.Price <= maxBonusPrice {
		score += priceBonus
	}
	if utf8.RuneCountInString(c.Title) > longTitleLength {
		score += longTitleBonus
	}
	return math.Min(score, 1.0)
}
