// Package parser 将商品详情页解析为 ProductRecord。
package parser

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/fetcher"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/logger"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/model"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/textproc"
)

const (
	maxFeatures       = 10
	maxImages         = 5
	maxDescriptionLen = 500
)

// Parse 解析商品详情页
func Parse(pageURL, html string) (*model.ProductRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html failed: %w", err)
	}
	return ParseDocument(pageURL, doc, html), nil
}

// ParseDocument 从已解析的文档提取字段，html 仅用于正文摘要
func ParseDocument(pageURL string, doc *goquery.Document, html string) *model.ProductRecord {
	platform := textproc.DetectPlatform(pageURL)
	sel := SelectorsFor(platform)

	rec := &model.ProductRecord{URL: pageURL}
	if asin, ok := textproc.ExtractASIN(pageURL); ok {
		rec.ASIN = asin
	}

	rec.Title = firstText(doc, sel.Title)

	priceText := firstText(doc, sel.Price)
	if v, ok := textproc.ExtractPrice(priceText); ok {
		rec.Price = model.Float(v)
		rec.Currency = textproc.ExtractCurrency(priceText)
		if rec.Currency == "" {
			rec.Currency = "USD"
		}
	}

	ratingText := firstText(doc, sel.Rating)
	if v, ok := textproc.ExtractRating(ratingText); ok {
		rec.Rating = model.Float(v)
	}

	reviewText := firstText(doc, sel.ReviewCount)
	if n, ok := textproc.ExtractReviewCount(reviewText); ok {
		rec.ReviewCount = model.Int(n)
	}

	rec.Availability = firstText(doc, sel.Availability)
	rec.Seller = firstText(doc, sel.Seller)
	rec.Category = breadcrumb(doc, sel.Category)
	rec.Features = listText(doc, sel.Features, maxFeatures)
	rec.Images = imageURLs(doc, sel.Images, maxImages)
	rec.Description = description(pageURL, html)

	rec.RawTrace = map[string]string{
		"platform":    string(platform),
		"price_text":  priceText,
		"rating_text": ratingText,
		"review_text": reviewText,
	}
	return rec
}

// ScrapeProduct 抓取并解析商品页，缺少 URL 或标题时返回 model.ErrInvalidProduct
func ScrapeProduct(ctx context.Context, f fetcher.Fetcher, pageURL string) (*model.ProductRecord, string, error) {
	html, err := f.Fetch(ctx, pageURL)
	if err != nil {
		return nil, "", err
	}
	rec, err := Parse(pageURL, html)
	if err != nil {
		return nil, html, err
	}
	if !rec.IsValid() {
		return rec, html, fmt.Errorf("%w: %s", model.ErrInvalidProduct, pageURL)
	}
	return rec, html, nil
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, s := range selectors {
		if text := textproc.CleanText(doc.Find(s).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func listText(doc *goquery.Document, selectors []string, limit int) []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range selectors {
		doc.Find(s).Each(func(_ int, node *goquery.Selection) {
			text := textproc.CleanText(node.Text())
			if text != "" && !seen[text] {
				seen[text] = true
				out = append(out, text)
			}
		})
		if len(out) > 0 {
			break
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func breadcrumb(doc *goquery.Document, selectors []string) string {
	for _, s := range selectors {
		var parts []string
		doc.Find(s).Each(func(_ int, node *goquery.Selection) {
			text := textproc.CleanText(node.Text())
			if text != "" && text != "›" && text != ">" {
				parts = append(parts, text)
			}
		})
		if len(parts) > 0 {
			return strings.Join(parts, " > ")
		}
	}
	return ""
}

func imageURLs(doc *goquery.Document, selectors []string, limit int) []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range selectors {
		doc.Find(s).Each(func(_ int, node *goquery.Selection) {
			src, ok := node.Attr("src")
			if !ok || src == "" {
				src = node.AttrOr("data-src", "")
			}
			if validImageURL(src) && !seen[src] {
				seen[src] = true
				out = append(out, src)
			}
		})
		if len(out) > 0 {
			break
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func validImageURL(u string) bool {
	if u == "" {
		return false
	}
	lower := strings.ToLower(u)
	for _, skip := range []string{"placeholder", "spacer", "pixel", "blank"} {
		if strings.Contains(lower, skip) {
			return false
		}
	}
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "//")
}

// description 用 readability 提取页面正文摘要，失败时返回空串
func description(pageURL, html string) string {
	if html == "" {
		return ""
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		logger.Log.Debugf("正文提取失败 [%s]: %v", pageURL, err)
		return ""
	}
	text := textproc.CleanText(article.Excerpt)
	if text == "" {
		text = textproc.CleanText(article.TextContent)
	}
	if r := []rune(text); len(r) > maxDescriptionLen {
		text = string(r[:maxDescriptionLen])
	}
	return text
}
