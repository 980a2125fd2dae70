package supervisor

import "github.com/iWorld-y/product_radar/app/product_radar/pkg/model"

// CompetitorSource 竞品数据来源
type CompetitorSource string

const (
	CompetitorsDetailed   CompetitorSource = "detailed"
	CompetitorsCandidates CompetitorSource = "candidates"
	CompetitorsPending    CompetitorSource = "pending"
	CompetitorsNone       CompetitorSource = "none"
)

const (
	warnInferred          = "Using LLM fallback instead of real scraping"
	warnIncomplete        = "Product data may be incomplete"
	warnNoCompetitors     = "No competitor candidates discovered during data collection"
	warnEmptyMarket       = "Market analysis appears empty"
	warnEmptyOptimization = "Optimization advice appears empty"
)

// WorkflowStatus 每轮重新计算的流程快照，不持久化
type WorkflowStatus struct {
	ProductCollected      bool             `json:"product_collected"`
	DataSource            model.Source     `json:"data_source,omitempty"`
	CompetitorCollected   bool             `json:"competitor_collected"`
	CompetitorCount       int              `json:"competitor_count"`
	CompetitorSource      CompetitorSource `json:"competitor_source"`
	MarketCompleted       bool             `json:"market_completed"`
	OptimizationCompleted bool             `json:"optimization_completed"`
	Warnings              []string         `json:"warnings,omitempty"`
	Errors                []string         `json:"errors,omitempty"`
}

// NeedsValidation 存在警告或错误时需要模型复核
func (s WorkflowStatus) NeedsValidation() bool {
	return len(s.Warnings) > 0 || len(s.Errors) > 0
}

// AllCompleted 商品、市场分析、优化建议均已完成
func (s WorkflowStatus) AllCompleted() bool {
	return s.ProductCollected && s.MarketCompleted && s.OptimizationCompleted
}

// Status 根据当前状态计算流程快照
func Status(state *model.AnalysisState) WorkflowStatus {
	var st WorkflowStatus

	if pd := state.ProductData; pd != nil && pd.Collected {
		st.ProductCollected = true
		st.DataSource = pd.Source
		switch {
		case pd.Source == model.SourceInferred:
			st.Warnings = append(st.Warnings, warnInferred)
		case pd.Record == nil && pd.Summary == "":
			st.Warnings = append(st.Warnings, warnIncomplete)
		}
	}

	switch {
	case len(state.Detailed) > 0:
		st.CompetitorCollected = true
		st.CompetitorCount = len(state.Detailed)
		st.CompetitorSource = CompetitorsDetailed
	case len(state.Candidates) > 0:
		st.CompetitorCollected = true
		st.CompetitorCount = len(state.Candidates)
		st.CompetitorSource = CompetitorsCandidates
	case !st.ProductCollected:
		st.CompetitorSource = CompetitorsPending
	default:
		st.CompetitorCollected = true
		st.CompetitorSource = CompetitorsNone
		st.Warnings = append(st.Warnings, warnNoCompetitors)
	}

	if ma := state.MarketAnalysis; ma != nil && ma.Completed {
		st.MarketCompleted = true
		if ma.Text == "" {
			st.Warnings = append(st.Warnings, warnEmptyMarket)
		}
	}
	if oa := state.OptimizationAdvice; oa != nil && oa.Completed {
		st.OptimizationCompleted = true
		if oa.Text == "" {
			st.Warnings = append(st.Warnings, warnEmptyOptimization)
		}
	}

	if state.Error != "" {
		st.Errors = append(st.Errors, state.Error)
	}
	return st
}
