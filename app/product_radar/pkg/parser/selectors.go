package parser

import "github.com/iWorld-y/product_radar/app/product_radar/pkg/textproc"

// Selectors 商品详情页各字段的候选选择器，按优先级排列
type Selectors struct {
	Title        []string
	Price        []string
	Rating       []string
	ReviewCount  []string
	Availability []string
	Features     []string
	Images       []string
	Seller       []string
	Category     []string
}

var amazonSelectors = Selectors{
	Title: []string{
		"#productTitle",
		".product-title",
		"h1[data-automation-id='product-title']",
	},
	Price: []string{
		".apexPriceToPay .a-offscreen",
		".a-price-range .a-offscreen",
		".a-price .a-offscreen",
		"span[data-a-color='price'] .a-offscreen",
		"[data-a-price]",
		".a-price-whole",
	},
	Rating: []string{
		"#averageCustomerReviews .a-icon-star .a-icon-alt",
		"i[class*='a-star-'] .a-icon-alt",
		".reviewCountTextLinkedHistogram .a-icon-alt",
		"[title*='out of 5 stars']",
		".a-icon-alt",
	},
	ReviewCount: []string{
		"#acrCustomerReviewText",
		"span[aria-label*='ratings']",
		"span[aria-label*='Reviews']",
		".a-size-base[aria-label*='Reviews']",
		"[data-hook='total-review-count']",
		".reviewCountTextLinkedHistogram .a-size-base",
	},
	Availability: []string{
		"#availability span",
		"[data-feature-name='availability'] span",
		".a-color-success",
		".a-color-state",
	},
	Features: []string{
		"#feature-bullets ul li",
		".a-unordered-list .a-list-item",
		"[data-feature-name='featurebullets'] ul li",
	},
	Images: []string{
		"#landingImage",
		".a-dynamic-image",
		"[data-action='main-image-click'] img",
	},
	Seller: []string{
		"#sellerProfileTriggerId",
		"[data-feature-name='bylineInfo'] .a-link-normal",
		".po-brand .a-link-normal",
	},
	Category: []string{
		"#wayfinding-breadcrumbs_feature_div ul li",
		".a-breadcrumb .a-list-item",
		"[data-feature-name='breadcrumbs'] ul li",
	},
}

var platformSelectors = map[textproc.Platform]Selectors{
	textproc.PlatformAmazon: amazonSelectors,
}

// SelectorsFor 返回平台对应的选择器，未适配的平台使用 Amazon 规则
func SelectorsFor(p textproc.Platform) Selectors {
	if s, ok := platformSelectors[p]; ok {
		return s
	}
	return amazonSelectors
}
