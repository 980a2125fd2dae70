// Package supervisor 控制循环的决策者：每轮计算流程状态，决定下一个执行者，
// 在全部阶段完成后执行一次报告综合。
package supervisor

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bytedance/gg/gson"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/config"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/llm"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/logger"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/model"
)

const (
	Name = "supervisor"

	recentMessages   = 3
	messagePreviewLn = 150
)

// Decision 决策表的结果
type Decision struct {
	Next       model.WorkerKind
	Phase      model.Phase
	Synthesize bool
}

// Supervisor 流程决策者
type Supervisor struct {
	llm llm.Completer
}

func New(c llm.Completer) *Supervisor {
	return &Supervisor{llm: c}
}

// Tick 执行一轮决策并写入 state.NextWorker；内部异常一律终止流程
func (s *Supervisor) Tick(ctx context.Context, state *model.AnalysisState) (next model.WorkerKind) {
	log := logger.WithTask(state.TaskID).WithField("worker", Name)
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("决策异常，终止流程: %v", r)
			state.AddMessage("ai", Name, fmt.Sprintf("Supervisor: Error occurred, terminating workflow: %v", r))
			next = model.WorkerTerminate
		}
		state.NextWorker = next
	}()

	if state.Failed() {
		log.Warnf("执行者已失败，终止流程: %s", state.Error)
		return model.WorkerTerminate
	}

	state.Iteration++
	ceiling := state.MaxIterations
	if ceiling <= 0 {
		ceiling = config.DefaultMaxIterations
	}
	log.Infof("第 %d 轮决策", state.Iteration)
	if state.Iteration >= ceiling {
		log.Infof("达到最大轮次 %d，结束流程", ceiling)
		return model.WorkerTerminate
	}

	status := Status(state)
	log.Debugf("流程状态: %s", gson.ToString(status))

	d := Decide(state, status)
	state.Phase = d.Phase
	if d.Synthesize {
		s.Synthesize(ctx, state)
		return model.WorkerTerminate
	}

	next = d.Next
	if status.NeedsValidation() {
		next = s.Validate(ctx, state, next, status)
	}

	msg := fmt.Sprintf("Supervisor: Next worker is %s (iteration %d)", next, state.Iteration)
	if len(status.Errors) > 0 {
		msg += fmt.Sprintf(" - Errors detected: %d", len(status.Errors))
	}
	state.AddMessage("ai", Name, msg)
	log.Infof("下一个执行者: %s, 阶段: %s", next, state.Phase)
	return next
}

// Decide 决策表，按顺序匹配第一条规则
func Decide(state *model.AnalysisState, status WorkflowStatus) Decision {
	switch {
	case !status.ProductCollected:
		return Decision{Next: model.WorkerCollector, Phase: model.PhasePrimaryCollection}
	case !status.MarketCompleted:
		if status.CompetitorCount > 0 {
			return Decision{Next: model.WorkerAnalyzer, Phase: model.PhaseCompetitiveAnalysis}
		}
		return Decision{Next: model.WorkerAnalyzer, Phase: model.PhaseBasicAnalysis}
	case !status.OptimizationCompleted:
		return Decision{Next: model.WorkerAdvisor, Phase: model.PhaseOptimization}
	case !state.SynthesisDone && state.Phase != model.PhaseReportSynthesis:
		return Decision{Next: model.WorkerTerminate, Phase: model.PhaseReportSynthesis, Synthesize: true}
	}
	return Decision{Next: model.WorkerTerminate, Phase: model.PhaseTerminate}
}

// Validate 请模型确认或改写建议的执行者，只接受合法名称；调用失败保留原建议
func (s *Supervisor) Validate(ctx context.Context, state *model.AnalysisState, suggested model.WorkerKind, status WorkflowStatus) model.WorkerKind {
	log := logger.WithTask(state.TaskID).WithField("worker", Name)
	if s.llm == nil {
		return suggested
	}

	reply, err := s.llm.Complete(ctx, validationPrompt(state, suggested, status))
	if err != nil {
		log.Errorf("模型复核失败，沿用建议 %s: %v", suggested, err)
		return suggested
	}

	choice := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(reply)), " ", "_")
	kind, ok := model.ParseWorkerKind(choice)
	if !ok {
		log.Warnf("模型返回非法执行者 %q，沿用建议 %s", choice, suggested)
		return suggested
	}
	if kind != suggested {
		log.Infof("模型改写了建议: %s -> %s", suggested, kind)
	}
	return kind
}

func validationPrompt(state *model.AnalysisState, suggested model.WorkerKind, status WorkflowStatus) string {
	source := string(status.DataSource)
	if source == "" {
		source = "N/A"
	}
	warnings, errs := "None", "None"
	if len(status.Warnings) > 0 {
		warnings = strings.Join(status.Warnings, ", ")
	}
	if len(status.Errors) > 0 {
		errs = strings.Join(status.Errors, ", ")
	}

	return fmt.Sprintf(`You are a supervisor managing a product analysis workflow.

Current Status:
- Product Data: %s (Source: %s)
- Market Analysis: %s
- Optimization: %s

Warnings: %s
Errors: %s

Suggested next worker: %s

Recent messages:
%s

Available workers: collector, analyzer, advisor, terminate

Should we proceed with '%s' or choose a different worker? Consider:
- Data quality issues may require re-collection
- Missing analysis may need retry
- All tasks complete means terminate

Respond with ONLY the worker name.`,
		mark(status.ProductCollected, "Collected", "Not collected"), source,
		mark(status.MarketCompleted, "Completed", "Not completed"),
		mark(status.OptimizationCompleted, "Completed", "Not completed"),
		warnings, errs, suggested, recentSummary(state.Messages), suggested)
}

func mark(ok bool, yes, no string) string {
	if ok {
		return "✅ " + yes
	}
	return "❌ " + no
}

func recentSummary(msgs []model.Message) string {
	if len(msgs) > recentMessages {
		msgs = msgs[len(msgs)-recentMessages:]
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("%s: %s...", m.Role, truncateRunes(m.Content, messagePreviewLn)))
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
