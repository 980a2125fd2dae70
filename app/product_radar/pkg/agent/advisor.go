package agent

import (
	"context"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/llm"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/logger"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/model"
)

const AdvisorName = "advisor"

// Advisor 基于商品与市场分析给出优化建议
type Advisor struct {
	llm      llm.Completer
	notifier *Notifier
}

func NewAdvisor(c llm.Completer, n *Notifier) *Advisor {
	return &Advisor{llm: c, notifier: n}
}

func (a *Advisor) Name() string { return AdvisorName }

func (a *Advisor) Execute(ctx context.Context, state *model.AnalysisState) (*model.AnalysisState, error) {
	a.notifier.Progress(state, a.Name(), 85)

	productInfo := state.ProductData.Info(state.ASIN)
	if productInfo == "" {
		logger.WithTask(state.TaskID).Warn("没有可用于优化建议的商品数据")
		productInfo = "No product data available"
	}
	marketInfo := "No market analysis available"
	if state.MarketAnalysis != nil && state.MarketAnalysis.Text != "" {
		marketInfo = state.MarketAnalysis.Text
	}

	text, err := a.llm.Complete(ctx, optimizationPrompt(productInfo, marketInfo))
	if err != nil {
		return state, err
	}

	state.AddMessage("human", a.Name(), "Generating recommendations based on product and market data")
	state.AddMessage("ai", a.Name(), text)
	state.OptimizationAdvice = &model.Narrative{Text: text, Completed: true}
	a.notifier.Progress(state, a.Name(), 95)
	return state, nil
}
