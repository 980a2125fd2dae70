// Package agent 实现采集、分析、建议三个执行者，由控制循环依次调度。
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/gg/gson"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/logger"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/model"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/storage"
)

// Worker 执行者接口，state 在调用期间由执行者独占
type Worker interface {
	Name() string
	Execute(ctx context.Context, state *model.AnalysisState) (*model.AnalysisState, error)
}

type inputSummary struct {
	ProductURL string `json:"product_url"`
	ASIN       string `json:"asin"`
	Phase      string `json:"phase"`
	Iteration  int    `json:"iteration"`
	NextWorker string `json:"next_worker"`
}

type outputSummary struct {
	Phase             string `json:"phase"`
	Progress          int    `json:"progress"`
	Status            string `json:"status"`
	HasProductData    bool   `json:"has_product_data"`
	HasMarketAnalysis bool   `json:"has_market_analysis"`
	HasOptimization   bool   `json:"has_optimization_advice"`
	CompetitorCount   int    `json:"competitor_count"`
}

// Run 执行 worker 并记录审计；出错或 panic 时把状态标记为失败，不向上返回错误
func Run(ctx context.Context, w Worker, state *model.AnalysisState, n *Notifier) *model.AnalysisState {
	log := logger.WithTask(state.TaskID).WithField("worker", w.Name())
	exec := storage.Execution{
		TaskID:    state.TaskID,
		Worker:    w.Name(),
		Status:    "started",
		Input:     gson.ToString(inputSummary{state.ProductURL, state.ASIN, state.Phase.String(), state.Iteration, state.NextWorker.String()}),
		StartedAt: time.Now(),
	}
	n.Audit(exec)
	log.Infof("开始执行 (第 %d 轮)", state.Iteration)

	next, err := safeExecute(ctx, w, state)
	if next == nil {
		next = state
	}

	exec.FinishedAt = time.Now()
	if err != nil {
		msg := fmt.Sprintf("%s execution failed: %v", w.Name(), err)
		log.Errorf("执行失败: %v", err)
		exec.Status = "failed"
		exec.Error = err.Error()
		n.Audit(exec)
		next.Fail(msg)
		return next
	}

	exec.Status = "completed"
	exec.Output = gson.ToString(outputSummary{
		Phase:             next.Phase.String(),
		Progress:          next.Progress,
		Status:            next.Status.String(),
		HasProductData:    next.ProductData != nil,
		HasMarketAnalysis: next.MarketAnalysis != nil,
		HasOptimization:   next.OptimizationAdvice != nil,
		CompetitorCount:   next.CompetitorCount(),
	})
	n.Audit(exec)
	log.Infof("执行完成，耗时 %v", exec.Duration())
	return next
}

func safeExecute(ctx context.Context, w Worker, state *model.AnalysisState) (next *model.AnalysisState, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.Execute(ctx, state)
}
