package agent

import (
	"context"
	"fmt"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/llm"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/logger"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/model"
)

const AnalyzerName = "analyzer"

// Analyzer 市场分析，按竞品情况选择基础或竞争分析
type Analyzer struct {
	llm      llm.Completer
	notifier *Notifier
}

func NewAnalyzer(c llm.Completer, n *Notifier) *Analyzer {
	return &Analyzer{llm: c, notifier: n}
}

func (a *Analyzer) Name() string { return AnalyzerName }

// Execute 生成市场分析，模型调用失败直接返回错误
func (a *Analyzer) Execute(ctx context.Context, state *model.AnalysisState) (*model.AnalysisState, error) {
	a.notifier.Progress(state, a.Name(), 60)

	mode := analysisMode(state)
	productInfo := state.ProductData.Info(state.ASIN)
	if productInfo == "" {
		logger.WithTask(state.TaskID).Warn("没有可用于市场分析的商品数据")
		productInfo = "No product data available for analysis"
	}
	a.notifier.Progress(state, a.Name(), 70)

	var (
		prompt string
		count  int
		note   string
	)
	if mode == model.ModeCompetitive {
		count = state.CompetitorCount()
		prompt = competitiveAnalysisPrompt(productInfo, formatCompetitors(state))
		note = fmt.Sprintf("Performing competitive analysis with %d competitors", count)
	} else {
		prompt = basicAnalysisPrompt(productInfo)
		note = "Analyzing market position based on collected data"
	}
	logger.WithTask(state.TaskID).Infof("开始%s市场分析，竞品 %d 个", mode, count)

	text, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return state, err
	}

	state.AddMessage("human", a.Name(), note)
	state.AddMessage("ai", a.Name(), text)
	state.MarketAnalysis = &model.Narrative{
		Text:            text,
		Mode:            mode,
		CompetitorCount: count,
		Completed:       true,
	}
	a.notifier.Progress(state, a.Name(), 80)
	return state, nil
}

// analysisMode 以控制循环设定的阶段为准，阶段不明确时按竞品数判断
func analysisMode(state *model.AnalysisState) model.AnalysisMode {
	switch state.Phase {
	case model.PhaseCompetitiveAnalysis:
		return model.ModeCompetitive
	case model.PhaseBasicAnalysis:
		return model.ModeBasic
	}
	if state.CompetitorCount() > 0 {
		return model.ModeCompetitive
	}
	return model.ModeBasic
}
