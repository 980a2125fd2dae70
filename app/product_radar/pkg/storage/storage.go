// Package storage 持久化任务、商品、竞品、报告与执行审计。
package storage

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/model"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// Store 持久化接口
type Store interface {
	CreateTask(ctx context.Context, productURL string) (string, error)
	UpdateTask(ctx context.Context, id string, update TaskUpdate) error
	SaveProduct(ctx context.Context, record *model.ProductRecord, asin string) error
	SaveCompetitors(ctx context.Context, rows []model.CompetitorRow, mainASIN string) error
	SaveReport(ctx context.Context, taskID, content string, metadata map[string]string) error
	RecordWorkerExecution(ctx context.Context, exec Execution) error
	GetTask(ctx context.Context, id string) (*Task, error)
	GetReport(ctx context.Context, taskID string) (*Report, error)
}

// TaskUpdate 任务更新，零值字段不修改，进度只前进
type TaskUpdate struct {
	Status   model.TaskStatus
	Progress *int
	Error    string
}

// Task 分析任务
type Task struct {
	ID         string
	ProductURL string
	Status     model.TaskStatus
	Progress   int
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Report 最终报告
type Report struct {
	TaskID    string
	Content   string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Execution 执行者运行审计
type Execution struct {
	TaskID     string
	Worker     string
	Status     string // started, completed, failed
	Input      string
	Output     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration 执行耗时，未结束时为 0
func (e Execution) Duration() time.Duration {
	if e.FinishedAt.IsZero() {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// sanitize 移除无效的 UTF-8 字符与 NULL 字节，PostgreSQL 文本字段不支持 NULL 字节
func sanitize(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r == utf8.RuneError {
				continue
			}
			v = append(v, r)
		}
		s = string(v)
	}
	return removeNullBytes(s)
}

func removeNullBytes(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
