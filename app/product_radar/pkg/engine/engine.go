package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/agent"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/competitor"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/config"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/fetcher"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/llm"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/logger"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/model"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/progress"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/report"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/storage"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/supervisor"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/textproc"
)

// ErrMisconfigured 引擎缺少必要依赖或参数
var ErrMisconfigured = errors.New("engine misconfigured")

const reportWorker = "report"

// Deps 引擎依赖，Emitter 可为 nil
type Deps struct {
	Store    storage.Store
	LLM      llm.Completer
	Fetcher  fetcher.Fetcher
	Executor *progress.Executor
	Emitter  *progress.Emitter
}

// Engine 核心处理引擎：驱动决策者与执行者直到流程结束
type Engine struct {
	store         storage.Store
	supervisor    *supervisor.Supervisor
	workers       map[model.WorkerKind]agent.Worker
	notifier      *agent.Notifier
	emitter       *progress.Emitter
	maxIterations int
	now           func() time.Time
}

// NewEngine 创建引擎实例，cfg 为 nil 时使用默认配置
func NewEngine(cfg *config.Config, deps Deps) (*Engine, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("%w: store is nil", ErrMisconfigured)
	case deps.LLM == nil:
		return nil, fmt.Errorf("%w: llm client is nil", ErrMisconfigured)
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("%w: fetcher is nil", ErrMisconfigured)
	case deps.Executor == nil:
		return nil, fmt.Errorf("%w: executor is nil", ErrMisconfigured)
	}
	if cfg == nil {
		cfg = &config.Config{}
		cfg.ApplyDefaults()
	}

	notifier := agent.NewNotifier(deps.Store, deps.Executor, deps.Emitter)
	collector := agent.NewCollector(deps.Fetcher, competitor.NewExtractor(), deps.LLM, notifier, agent.CollectorOptions{
		Fanout:  cfg.Scraper.CompetitorFanout,
		Details: cfg.Scraper.DetailsEnabled(),
	})

	return &Engine{
		store:      deps.Store,
		supervisor: supervisor.New(deps.LLM),
		workers: map[model.WorkerKind]agent.Worker{
			model.WorkerCollector: collector,
			model.WorkerAnalyzer:  agent.NewAnalyzer(deps.LLM, notifier),
			model.WorkerAdvisor:   agent.NewAdvisor(deps.LLM, notifier),
		},
		notifier:      notifier,
		emitter:       deps.Emitter,
		maxIterations: cfg.Workflow.MaxIterations,
		now:           time.Now,
	}, nil
}

// RunAnalysis 执行一次完整分析并返回报告；只有参数或依赖错误才返回 error，
// 执行者失败体现在任务状态上
func (e *Engine) RunAnalysis(ctx context.Context, productURL string, maxIterations int, taskID string) (string, error) {
	productURL = strings.TrimSpace(productURL)
	if productURL == "" {
		return "", fmt.Errorf("%w: product url is empty", ErrMisconfigured)
	}
	if maxIterations <= 0 {
		maxIterations = e.maxIterations
	}
	if maxIterations <= 0 {
		maxIterations = config.DefaultMaxIterations
	}

	if taskID == "" {
		id, err := e.store.CreateTask(ctx, productURL)
		if err != nil {
			logger.Log.Errorf("创建任务失败，本次分析不落库: %v", err)
		} else {
			taskID = id
		}
	}
	log := logger.WithTask(taskID)
	log.Infof("开始分析商品: %s (最多 %d 轮)", productURL, maxIterations)

	asin, _ := textproc.ExtractASIN(productURL)
	state := model.NewAnalysisState(taskID, productURL, asin, maxIterations)

	e.updateTask(ctx, taskID, storage.TaskUpdate{Status: model.TaskProcessing, Progress: intPtr(5)})
	e.notifier.Progress(state, supervisor.Name, 5)

	state = e.loop(ctx, state)

	state.FinalReport = report.Compile(state, e.now())
	if state.Failed() {
		log.Errorf("分析失败: %s", state.Error)
		e.updateTask(ctx, taskID, storage.TaskUpdate{Status: model.TaskFailed, Error: state.Error})
		e.emitter.Emit(progress.Event{
			TaskID:   taskID,
			Progress: state.Progress,
			Status:   string(model.TaskFailed),
			Message:  state.Error,
		})
		return state.FinalReport, nil
	}

	state.Status = model.RunCompleted
	e.notifier.Progress(state, reportWorker, 100)
	e.saveReport(ctx, state)
	e.updateTask(ctx, taskID, storage.TaskUpdate{Status: model.TaskCompleted, Progress: intPtr(100)})
	log.Infof("分析完成，共 %d 轮", state.Iteration)
	return state.FinalReport, nil
}

// loop 决策与执行交替进行，state 在两者之间独占传递
func (e *Engine) loop(ctx context.Context, state *model.AnalysisState) *model.AnalysisState {
	for {
		next := e.supervisor.Tick(ctx, state)
		if next == model.WorkerTerminate {
			return state
		}
		w, ok := e.workers[next]
		if !ok {
			state.Fail(fmt.Sprintf("no worker registered for %s", next))
			return state
		}
		state = agent.Run(ctx, w, state, e.notifier)
	}
}

func (e *Engine) saveReport(ctx context.Context, state *model.AnalysisState) {
	if state.TaskID == "" {
		return
	}
	quality := state.ReportQuality
	if !state.SynthesisDone {
		quality = supervisor.QualityScore(state)
	}
	metadata := map[string]string{
		"asin":          state.ASIN,
		"iterations":    strconv.Itoa(state.Iteration),
		"quality_score": fmt.Sprintf("%.2f", quality),
		"synthesized":   strconv.FormatBool(state.SynthesisDone),
	}
	if state.ProductData != nil {
		metadata["data_source"] = string(state.ProductData.Source)
	}
	for k, v := range state.Metadata {
		if _, ok := metadata[k]; !ok {
			metadata[k] = v
		}
	}
	if err := e.store.SaveReport(ctx, state.TaskID, state.FinalReport, metadata); err != nil {
		logger.WithTask(state.TaskID).Errorf("保存报告失败: %v", err)
	}
}

// updateTask 状态变更同步写入，失败只记日志
func (e *Engine) updateTask(ctx context.Context, taskID string, update storage.TaskUpdate) {
	if taskID == "" {
		return
	}
	if err := e.store.UpdateTask(ctx, taskID, update); err != nil {
		logger.WithTask(taskID).Errorf("更新任务状态失败: %v", err)
	}
}

func intPtr(v int) *int { return &v }
