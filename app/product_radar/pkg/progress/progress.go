// Package progress 对外推送分析进度，推送失败不影响分析本身。
package progress

import (
	"context"
	"errors"
	"time"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/logger"
)

// Event 进度事件
type Event struct {
	TaskID    string    `json:"task_id"`
	Progress  int       `json:"progress"`
	Status    string    `json:"status"`
	Worker    string    `json:"worker,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink 进度输出端
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// LogSink 写入日志
type LogSink struct{}

func (LogSink) Emit(_ context.Context, ev Event) error {
	logger.WithTask(ev.TaskID).Infof("进度 %d%% [%s] %s %s", ev.Progress, ev.Status, ev.Worker, ev.Message)
	return nil
}

// MultiSink 依次写入所有输出端，单个失败不影响其他
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Emitter 通过执行器异步推送进度
type Emitter struct {
	sink Sink
	exec *Executor
}

// NewEmitter 创建异步推送器
func NewEmitter(sink Sink, exec *Executor) *Emitter {
	return &Emitter{sink: sink, exec: exec}
}

// Emit 提交推送任务，不等待结果
func (e *Emitter) Emit(ev Event) {
	if e == nil || e.sink == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	e.exec.Submit("progress", func(ctx context.Context) {
		if err := e.sink.Emit(ctx, ev); err != nil {
			logger.WithTask(ev.TaskID).Warnf("进度推送失败: %v", err)
		}
	})
}
