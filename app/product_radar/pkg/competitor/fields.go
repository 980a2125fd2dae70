package competitor

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/textproc"
)

var (
	titleSelectors = []string{"a[title]", "[data-rows] span", "h3 a", ".s-size-mini span", "[aria-label*='title']"}
	priceSelectors = []string{
		".a-price .a-offscreen",
		".a-price-whole",
		"[class*='price'] .a-offscreen",
		"[data-a-price]",
		"span[class*='price']",
	}
	reviewSelectors = []string{"span[aria-hidden='true']", ".a-size-mini", ".a-color-secondary", "span[class*='review']"}

	ariaRatingRe   = regexp.MustCompile(`(\d+\.?\d*)\s+out\s+of\s+5`)
	starClassRe    = regexp.MustCompile(`a-star(?:-mini)?-(\d+)(?:-(\d+))?`)
	genericStarRe  = regexp.MustCompile(`star[^0-9]*(\d+(?:[-_]\d+)?)`)
	nonBrandPrefix = map[string]bool{"the": true, "for": true, "with": true}
)

func extractTitle(item *goquery.Selection) string {
	for _, s := range titleSelectors {
		node := item.Find(s).First()
		if node.Length() == 0 {
			continue
		}
		title, _ := node.Attr("title")
		if title == "" {
			title = node.Text()
		}
		title = strings.TrimSpace(title)
		if utf8.RuneCountInString(title) > 10 {
			return title
		}
	}
	return ""
}

func extractPrice(item *goquery.Selection) (float64, bool) {
	if raw, ok := item.Attr("data-adfeedbackdetails"); ok && raw != "" {
		var details struct {
			PriceAmount *float64 `json:"priceAmount"`
		}
		if err := json.Unmarshal([]byte(raw), &details); err == nil && details.PriceAmount != nil && *details.PriceAmount != 0 {
			return *details.PriceAmount, true
		}
	}

	for _, s := range priceSelectors {
		node := item.Find(s).First()
		if node.Length() == 0 {
			continue
		}
		if v, ok := textproc.ExtractPrice(node.Text()); ok && v != 0 {
			return v, true
		}
	}
	return 0, false
}

func extractRating(item *goquery.Selection) (float64, bool) {
	var (
		rating float64
		found  bool
	)

	// aria-label: "4.5 out of 5 stars"
	item.Find("a[aria-label*='out of']").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		m := ariaRatingRe.FindStringSubmatch(link.AttrOr("aria-label", ""))
		if m == nil {
			return true
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return true
		}
		rating, found = v, true
		return false
	})
	if found {
		return rating, true
	}

	// 星级 class：a-star-4-5 / a-star-mini-4
	item.Find("i[class*='a-star-']").EachWithBreak(func(_ int, star *goquery.Selection) bool {
		m := starClassRe.FindStringSubmatch(star.AttrOr("class", ""))
		if m == nil {
			return true
		}
		fraction := m[2]
		if fraction == "" {
			fraction = "0"
		}
		v, err := strconv.ParseFloat(m[1]+"."+fraction, 64)
		if err != nil {
			return true
		}
		rating, found = v, true
		return false
	})
	if found {
		return rating, true
	}

	if node := item.Find("[class*='star']").First(); node.Length() > 0 {
		if m := genericStarRe.FindStringSubmatch(node.AttrOr("class", "")); m != nil {
			s := strings.NewReplacer("-", ".", "_", ".").Replace(m[1])
			if v, err := strconv.ParseFloat(s, 64); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

func extractReviewCount(item *goquery.Selection) (int, bool) {
	var (
		count int
		found bool
	)
	item.Find("a[aria-label*='ratings'], a[aria-label*='Reviews']").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		if n, ok := textproc.ExtractReviewCount(link.AttrOr("aria-label", "")); ok {
			count, found = n, true
			return false
		}
		return true
	})
	if found {
		return count, true
	}

	for _, s := range reviewSelectors {
		item.Find(s).EachWithBreak(func(_ int, node *goquery.Selection) bool {
			text := node.Text()
			lower := strings.ToLower(text)
			if !strings.Contains(lower, "rating") && !strings.Contains(lower, "review") {
				return true
			}
			if n, ok := textproc.ExtractReviewCount(text); ok {
				count, found = n, true
				return false
			}
			return true
		})
		if found {
			return count, true
		}
	}
	return 0, false
}

// extractBrand 取标题首词作为品牌
func extractBrand(title string) string {
	words := strings.Fields(title)
	if len(words) == 0 {
		return ""
	}
	first := words[0]
	if utf8.RuneCountInString(first) > 2 && !nonBrandPrefix[strings.ToLower(first)] {
		return first
	}
	return ""
}
