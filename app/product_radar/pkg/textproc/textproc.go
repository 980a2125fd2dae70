// Package textproc 将抓取到的原始文本规整为价格、评分、评论数、货币等字段。
package textproc

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	spaceRe    = regexp.MustCompile(`\s+`)
	nonPriceRe = regexp.MustCompile(`[^\d.,]`)
	currencyRe = regexp.MustCompile(`\b(USD|EUR|GBP|JPY|INR|CAD|AUD)\b`)

	ratingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d+\.?\d*)\s*out\s*of\s*5\s*stars?`),
		regexp.MustCompile(`(\d+\.?\d*)\s*out\s*of\s*5`),
		regexp.MustCompile(`(\d+\.?\d*)\s*stars?`),
		regexp.MustCompile(`(\d+\.?\d*)\s*/\s*5`),
		regexp.MustCompile(`(\d+\.?\d*)`),
	}

	reviewPatterns = []*regexp.Regexp{
		regexp.MustCompile(`([\d,]+)\s*ratings?`),
		regexp.MustCompile(`([\d,]+)\s*reviews?`),
		regexp.MustCompile(`([\d,]+)\s*customer\s*reviews?`),
		regexp.MustCompile(`([\d,]+)`),
	}

	asinPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/dp/([A-Z0-9]{10})`),
		regexp.MustCompile(`/gp/product/([A-Z0-9]{10})`),
		regexp.MustCompile(`asin=([A-Z0-9]{10})`),
		regexp.MustCompile(`/product/([A-Z0-9]{10})`),
	}
)

// 按顺序匹配，顺序决定优先级
var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
}

// CleanText 合并空白并去除不可见字符
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = strings.ReplaceAll(text, "\u200b", "")
	return spaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
}

// ExtractPrice 从价格文本中解析数值，价格区间取下限
func ExtractPrice(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}

	if strings.Contains(text, "-") && strings.Contains(text, "$") {
		parts := strings.Split(text, "-")
		if len(parts) >= 2 {
			cleaned := nonPriceRe.ReplaceAllString(strings.TrimSpace(parts[0]), "")
			if v, err := strconv.ParseFloat(strings.ReplaceAll(cleaned, ",", ""), 64); err == nil {
				return v, true
			}
		}
	}

	cleaned := nonPriceRe.ReplaceAllString(text, "")
	switch {
	case strings.Contains(cleaned, ",") && strings.Contains(cleaned, "."):
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case strings.Count(cleaned, ",") == 1:
		// 欧式小数点
		if len(strings.SplitN(cleaned, ",", 2)[1]) == 2 {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ExtractRating 解析 0-5 范围内的评分
func ExtractRating(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	lower := strings.ToLower(text)
	for _, re := range ratingPatterns {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if v >= 0 && v <= 5 {
			return v, true
		}
	}
	return 0, false
}

// ExtractReviewCount 解析评论数，只接受正数。首个命中的模式决定结果。
func ExtractReviewCount(text string) (int, bool) {
	if text == "" {
		return 0, false
	}
	lower := strings.ToLower(text)
	for _, re := range reviewPatterns {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err != nil {
			continue
		}
		if n > 0 {
			return n, true
		}
		return 0, false
	}
	return 0, false
}

// ExtractCurrency 从价格文本识别货币代码，无法识别时返回空串
func ExtractCurrency(text string) string {
	if text == "" {
		return ""
	}
	for _, c := range currencySymbols {
		if strings.Contains(text, c.symbol) {
			return c.code
		}
	}
	if m := currencyRe.FindStringSubmatch(strings.ToUpper(text)); m != nil {
		return m[1]
	}
	return ""
}

// Platform 电商平台
type Platform string

const (
	PlatformAmazon  Platform = "amazon"
	PlatformEbay    Platform = "ebay"
	PlatformWalmart Platform = "walmart"
	PlatformTarget  Platform = "target"
	PlatformUnknown Platform = "unknown"
)

// DetectPlatform 根据域名识别平台
func DetectPlatform(rawURL string) Platform {
	u, err := url.Parse(rawURL)
	if err != nil {
		return PlatformUnknown
	}
	host := strings.ToLower(u.Host)
	switch {
	case strings.Contains(host, "amazon"):
		return PlatformAmazon
	case strings.Contains(host, "ebay"):
		return PlatformEbay
	case strings.Contains(host, "walmart"):
		return PlatformWalmart
	case strings.Contains(host, "target"):
		return PlatformTarget
	default:
		return PlatformUnknown
	}
}

// ExtractASIN 从商品链接中提取 ASIN
func ExtractASIN(rawURL string) (string, bool) {
	for _, re := range asinPatterns {
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// ProductURL 由 ASIN 构造商品详情页链接
func ProductURL(asin string) string {
	return "https://www.amazon.com/dp/" + asin
}
