package competitor

// Zone 推荐区域定义
type Zone struct {
	Name       string
	Container  string
	Items      string
	Confidence float64
}

const defaultItems = "[data-asin]:not([data-asin=''])"

// DefaultZones 按置信度从高到低排列，先命中的区域决定候选归属
var DefaultZones = []Zone{
	{
		Name:       "customers_also_viewed",
		Container:  "[data-feature-name='customers-who-viewed'], [id*='customers-who-viewed'], [data-feature-name='dp-desktop-btf']",
		Items:      defaultItems,
		Confidence: 0.95,
	},
	{
		Name:       "frequently_bought_together",
		Container:  "[data-feature-name='frequently-bought-together'], [id*='frequently-bought']",
		Items:      defaultItems,
		Confidence: 0.93,
	},
	{
		Name:       "related_products",
		Container:  "[data-feature-name*='related'], [id*='related-products'], [data-feature-name='sp-atf']",
		Items:      defaultItems,
		Confidence: 0.9,
	},
	{
		Name:       "sponsored_detail",
		Container:  "[id*='sp_detail_thematic'], [data-feature-name*='sponsored']",
		Items:      "[data-asin][data-adfeedbackdetails], " + defaultItems,
		Confidence: 0.88,
	},
	{
		Name:       "similar_items",
		Container:  "[id*='sims-consolidated'], [data-feature-name*='sims'], [data-feature-name='similarities']",
		Items:      defaultItems,
		Confidence: 0.85,
	},
	{
		Name:       "compare_similar",
		Container:  "[data-feature-name='compare-similar-items'], [id*='compare-similar']",
		Items:      defaultItems,
		Confidence: 0.82,
	},
	{
		Name:       "carousel_items",
		Container:  ".a-carousel, [data-feature-name*='carousel']",
		Items:      ".a-carousel-card[data-asin], " + defaultItems,
		Confidence: 0.75,
	},
	{
		Name:       "personalized",
		Container:  "[class*='p13n-asin'], [data-feature-name*='personal']",
		Items:      defaultItems,
		Confidence: 0.7,
	},
	{
		Name:       "general_recommendations",
		Container:  "body",
		Items:      defaultItems,
		Confidence: 0.5,
	},
}
