package agent

import (
	"fmt"
	"strings"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/model"
)

func fallbackPrompt(productURL string) string {
	return fmt.Sprintf(`Analyze this Amazon product URL and provide a comprehensive product analysis: %s

Please provide:
1. Product title (inferred from URL if possible)
2. Likely price range
3. Product category
4. Key features (inferred)
5. Target audience
6. Market positioning

Format your response as a structured analysis.`, productURL)
}

func basicAnalysisPrompt(productInfo string) string {
	return fmt.Sprintf(`You are a market analysis expert. Based on the following product data:

%s

Please provide:
1. Market positioning analysis
2. Competitive landscape overview
3. Price competitiveness assessment
4. Target audience identification
5. Market trends relevant to this product

Provide your analysis in a structured format. Focus on actionable insights based on the actual product data provided.`, productInfo)
}

func competitiveAnalysisPrompt(productInfo, competitorInfo string) string {
	return fmt.Sprintf(`You are a market analysis expert. Based on the following product and competitor data, provide a comprehensive competitive analysis.

IMPORTANT: When referencing products in your analysis, always include their ASIN (Amazon Standard Identification Number) for tracking and verification purposes.

## Main Product:
%s

## Competitor Data:
%s

Please provide a detailed analysis including:

### 1. Competitive Positioning
- How does the main product compare to competitors in terms of features, pricing, and quality?
- What is the main product's unique value proposition?
- IMPORTANT: When referencing competitors, include their ASIN for tracking purposes

### 2. Price Analysis
- Price comparison with competitors
- Pricing strategy assessment (premium, competitive, budget)
- Price-value relationship analysis

### 3. Market Position
- Market segment analysis
- Target audience comparison
- Brand positioning vs competitors

### 4. Competitive Advantages & Disadvantages
- Main product's strengths vs competitors
- Areas where competitors outperform the main product
- Market gaps and opportunities

### 5. Market Trends & Insights
- Industry trends affecting this product category
- Consumer preferences based on competitor offerings
- Market size and growth potential

### 6. Strategic Recommendations
- Key competitive threats to monitor
- Market positioning recommendations
- Differentiation strategies

Provide specific, data-driven insights based on the actual product and competitor information provided.`, productInfo, competitorInfo)
}

func optimizationPrompt(productInfo, marketInfo string) string {
	return fmt.Sprintf(`You are an e-commerce optimization expert. Based on the following data:

Product Data:
%s

Market Analysis:
%s

Please provide specific, actionable recommendations for:
1. Title optimization suggestions (based on the actual product title)
2. Pricing strategy recommendations (considering current price and market position)
3. Description improvement ideas (enhancing the existing features)
4. Keyword optimization suggestions (relevant to this specific product)
5. Competitive positioning advice (based on the market analysis)

Provide actionable recommendations with expected impact. Be specific and reference the actual product data where applicable.`, productInfo, marketInfo)
}

// formatCompetitors 详细数据优先，否则使用候选的基础信息
func formatCompetitors(state *model.AnalysisState) string {
	var blocks []string
	switch {
	case len(state.Detailed) > 0:
		for i, d := range state.Detailed {
			var sb strings.Builder
			fmt.Fprintf(&sb, "### Competitor %d\n%s", i+1, d.Record.Summary(d.Candidate.ASIN))
			if d.Candidate.SourceZone != "" {
				fmt.Fprintf(&sb, "\n**Discovery Source:** %s", d.Candidate.SourceZone)
			}
			if d.Candidate.Score > 0 {
				fmt.Fprintf(&sb, "\n**Relevance Score:** %.2f/1.0", d.Candidate.Score)
			}
			sb.WriteString("\n**Data Type:** Detailed Scraping")
			blocks = append(blocks, sb.String())
		}
	case len(state.Candidates) > 0:
		for i, c := range state.Candidates {
			blocks = append(blocks, formatCandidate(i+1, c))
		}
	default:
		return "No competitor data available."
	}
	return strings.Join(blocks, "\n\n")
}

func formatCandidate(n int, c model.CandidateCompetitor) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### Competitor %d", n)
	fmt.Fprintf(&sb, "\n**ASIN:** %s", orNA(c.ASIN))
	fmt.Fprintf(&sb, "\n**Title:** %s", orNA(c.Title))
	if c.Price != nil && *c.Price > 0 {
		fmt.Fprintf(&sb, "\n**Price:** $%.2f", *c.Price)
	}
	if c.Rating != nil && *c.Rating > 0 {
		fmt.Fprintf(&sb, "\n**Rating:** %.1f/5", *c.Rating)
	}
	if c.ReviewCount != nil && *c.ReviewCount > 0 {
		fmt.Fprintf(&sb, "\n**Reviews:** %s", model.FormatThousands(*c.ReviewCount))
	}
	if c.Brand != "" {
		fmt.Fprintf(&sb, "\n**Brand:** %s", c.Brand)
	}
	fmt.Fprintf(&sb, "\n**Discovery Source:** %s", orNA(c.SourceZone))
	fmt.Fprintf(&sb, "\n**Relevance Score:** %.2f/1.0", c.Score)
	sb.WriteString("\n**Data Type:** Amazon Recommendation (Basic Info)")
	return sb.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
