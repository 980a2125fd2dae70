package agent

import (
	"context"
	"fmt"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/logger"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/model"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/progress"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/storage"
)

// Notifier 进度、持久化与审计写入，全部提交到后台执行器，失败只记日志
type Notifier struct {
	store   storage.Store
	exec    *progress.Executor
	emitter *progress.Emitter
}

// NewNotifier 创建通知器，store 与 emitter 均可为 nil
func NewNotifier(store storage.Store, exec *progress.Executor, emitter *progress.Emitter) *Notifier {
	return &Notifier{store: store, exec: exec, emitter: emitter}
}

// Progress 推进进度，进度未前进时不产生任何写入
func (n *Notifier) Progress(state *model.AnalysisState, worker string, p int) {
	if !state.SetProgress(p) || n == nil {
		return
	}
	taskID, value := state.TaskID, state.Progress
	if n.store != nil && taskID != "" {
		n.exec.Submit("task_progress", func(ctx context.Context) {
			if err := n.store.UpdateTask(ctx, taskID, storage.TaskUpdate{Progress: &value}); err != nil {
				logger.WithTask(taskID).Warnf("更新任务进度失败: %v", err)
			}
		})
	}
	n.emitter.Emit(progress.Event{
		TaskID:   taskID,
		Progress: value,
		Status:   progressStatus(value),
		Worker:   worker,
		Message:  fmt.Sprintf("%s progress: %d%%", worker, value),
	})
}

func progressStatus(p int) string {
	switch {
	case p >= 100:
		return string(model.TaskCompleted)
	case p > 0:
		return string(model.TaskProcessing)
	}
	return string(model.TaskPending)
}

// Persist 异步写入存储
func (n *Notifier) Persist(name string, fn func(ctx context.Context, s storage.Store) error) {
	if n == nil || n.store == nil {
		return
	}
	n.exec.Submit(name, func(ctx context.Context) {
		if err := fn(ctx, n.store); err != nil {
			logger.Log.Errorf("持久化 [%s] 失败: %v", name, err)
		}
	})
}

// Audit 异步记录执行审计
func (n *Notifier) Audit(e storage.Execution) {
	if e.TaskID == "" {
		return
	}
	n.Persist("execution_audit", func(ctx context.Context, s storage.Store) error {
		return s.RecordWorkerExecution(ctx, e)
	})
}
