package supervisor

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/logger"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/model"
)

var genericPhrases = []string{
	"I'm unable to access external URLs",
	"However, I can guide you",
	"Here's a structured analysis template",
	"Feel free to use this template",
	"based on the URL you provided",
	"template you can use to fill in",
	"This could be based on",
	"For example, if",
	"might look for",
}

var (
	marketKeywords       = []string{"specific", "asin", "competitor", "price"}
	optimizationKeywords = []string{"recommend", "improve", "optimize", "strategy"}
)

// Sections 综合后的三段内容
type Sections struct {
	ProductOverview string
	MarketAnalysis  string
	Optimization    string
}

// QualityScore 报告质量分 [0,1]
func QualityScore(state *model.AnalysisState) float64 {
	score := 0.0

	if pd := state.ProductData; pd != nil {
		switch pd.Source {
		case model.SourceScraped:
			score += 0.2 + pd.QualityScore*0.1 + pd.Completeness.Overall*0.05
		case model.SourceInferred:
			score += 0.1
		}
	}

	switch n := len(state.Candidates); {
	case len(state.Detailed) > 0:
		score += 0.2
	case n >= 5:
		score += 0.15
	case n >= 2:
		score += 0.1
	case n > 0:
		score += 0.05
	}

	market := ""
	if state.MarketAnalysis != nil {
		market = state.MarketAnalysis.Text
	}
	switch {
	case len(market) > 500 && containsAny(strings.ToLower(market), marketKeywords):
		score += 0.3
	case len(market) > 200:
		score += 0.2
	case market != "":
		score += 0.1
	}

	advice := ""
	if state.OptimizationAdvice != nil {
		advice = state.OptimizationAdvice.Text
	}
	switch {
	case len(advice) > 300 && containsAny(strings.ToLower(advice), optimizationKeywords):
		score += 0.2
	case len(advice) > 100:
		score += 0.1
	}

	return math.Min(math.Round(score*1000)/1000, 1.0)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Synthesize 评估质量并请模型重写三段内容，结果写入各自的 Synthesized 字段，原文保留
func (s *Supervisor) Synthesize(ctx context.Context, state *model.AnalysisState) {
	log := logger.WithTask(state.TaskID).WithField("worker", Name)
	log.Info("开始报告综合")
	state.Phase = model.PhaseReportSynthesis
	state.SynthesisDone = true

	quality := QualityScore(state)
	state.ReportQuality = quality
	if state.Metadata == nil {
		state.Metadata = map[string]string{}
	}
	state.Metadata["quality_score"] = fmt.Sprintf("%.2f", quality)
	log.Infof("报告质量分: %.2f/1.0", quality)

	sections := s.rewrite(ctx, state)
	sections = sections.withoutGeneric()

	if sections.ProductOverview != "" && state.ProductData != nil {
		state.ProductData.Synthesized = sections.ProductOverview
	}
	if sections.MarketAnalysis != "" && state.MarketAnalysis != nil {
		state.MarketAnalysis.Synthesized = sections.MarketAnalysis
	}
	if sections.Optimization != "" && state.OptimizationAdvice != nil {
		state.OptimizationAdvice.Synthesized = sections.Optimization
	}

	state.AddMessage("ai", Name, fmt.Sprintf("Supervisor: Report synthesis completed (quality score: %.2f)", quality))
	log.Info("报告综合完成")
}

// rewrite 调用模型重写，失败时返回原文
func (s *Supervisor) rewrite(ctx context.Context, state *model.AnalysisState) Sections {
	original := Sections{
		ProductOverview: productContent(state),
		MarketAnalysis:  state.MarketAnalysis.Content(),
		Optimization:    state.OptimizationAdvice.Content(),
	}
	if s.llm == nil {
		return original
	}

	reply, err := s.llm.Complete(ctx, synthesisPrompt(state, original))
	if err != nil {
		logger.WithTask(state.TaskID).Errorf("内容综合失败，使用原文: %v", err)
		return original
	}
	return ParseSections(reply)
}

func productContent(state *model.AnalysisState) string {
	if info := state.ProductData.Info(state.ASIN); info != "" {
		return info
	}
	return "No product data available"
}

func competitorSummary(state *model.AnalysisState) string {
	switch {
	case len(state.Detailed) > 0:
		return fmt.Sprintf("Found %d detailed competitor data entries", len(state.Detailed))
	case len(state.Candidates) > 0:
		return fmt.Sprintf("Found %d competitor candidates", len(state.Candidates))
	}
	return "No competitor data discovered"
}

func synthesisPrompt(state *model.AnalysisState, original Sections) string {
	asin := state.ASIN
	if asin == "" {
		asin = "Unknown"
	}
	market := original.MarketAnalysis
	if market == "" {
		market = "No analysis available"
	}
	advice := original.Optimization
	if advice == "" {
		advice = "No recommendations available"
	}

	return fmt.Sprintf(`You are a professional product analysis report editor. Based on the following original analysis content, reorganize and rewrite to generate more coherent, specific, and valuable analysis reports.

**Product ASIN**: %s

**Original Product Data**:
%s

**Original Market Analysis**:
%s

**Original Optimization Recommendations**:
%s

**Competitor Information**:
%s

Please reorganize the above content with the following requirements:
1. Remove any template-style or generic descriptions
2. Integrate information and avoid repetition
3. Ensure logical coherence and consistency
4. Provide specific insights based on actual data
5. If specific data is lacking, clearly state the limitations

Please provide separately:
1. **Reorganized Product Overview**
2. **Reorganized Market Analysis**
3. **Reorganized Optimization Recommendations**

Format requirement: Each section should start with "### [Section Name]".`,
		asin, original.ProductOverview, market, advice, competitorSummary(state))
}

// ParseSections 按 "###" 切分模型输出，根据标题行归入三段，标题行本身丢弃
func ParseSections(content string) Sections {
	var out Sections
	for _, part := range strings.Split(content, "###") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		heading, body, _ := strings.Cut(part, "\n")
		body = strings.TrimSpace(body)
		switch {
		case strings.Contains(heading, "Product Overview"):
			out.ProductOverview = body
		case strings.Contains(heading, "Market Analysis"):
			out.MarketAnalysis = body
		case strings.Contains(heading, "Optimization"):
			out.Optimization = body
		}
	}
	return out
}

func (s Sections) withoutGeneric() Sections {
	return Sections{
		ProductOverview: RemoveGeneric(s.ProductOverview),
		MarketAnalysis:  RemoveGeneric(s.MarketAnalysis),
		Optimization:    RemoveGeneric(s.Optimization),
	}
}

// RemoveGeneric 删除包含模板化措辞的行
func RemoveGeneric(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !containsAny(line, genericPhrases) {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
