package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/model"
)

// MemoryStore 无数据库时使用的内存存储
type MemoryStore struct {
	mu          sync.Mutex
	tasks       map[string]*Task
	products    map[string]model.ProductRecord
	competitors map[string]map[string]model.CompetitorRow
	reports     map[string]*Report
	executions  []Execution
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:       map[string]*Task{},
		products:    map[string]model.ProductRecord{},
		competitors: map[string]map[string]model.CompetitorRow{},
		reports:     map[string]*Report{},
	}
}

func (m *MemoryStore) CreateTask(_ context.Context, productURL string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	now := time.Now()
	m.tasks[id] = &Task{ID: id, ProductURL: productURL, Status: model.TaskPending, CreatedAt: now, UpdatedAt: now}
	return id, nil
}

func (m *MemoryStore) UpdateTask(_ context.Context, id string, update TaskUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("update task %s: %w", id, ErrNotFound)
	}
	if update.Status != "" {
		t.Status = update.Status
	}
	if update.Progress != nil && *update.Progress > t.Progress {
		t.Progress = *update.Progress
	}
	if update.Error != "" {
		t.Error = update.Error
	}
	t.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) GetTask(_ context.Context, id string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) SaveProduct(_ context.Context, record *model.ProductRecord, asin string) error {
	if record == nil || asin == "" {
		return fmt.Errorf("save product: %w", model.ErrInvalidProduct)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[asin] = *record
	return nil
}

func (m *MemoryStore) SaveCompetitors(_ context.Context, rows []model.CompetitorRow, mainASIN string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byASIN, ok := m.competitors[mainASIN]
	if !ok {
		byASIN = map[string]model.CompetitorRow{}
		m.competitors[mainASIN] = byASIN
	}
	for _, r := range rows {
		byASIN[r.ASIN] = r
	}
	return nil
}

func (m *MemoryStore) SaveReport(_ context.Context, taskID, content string, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	m.reports[taskID] = &Report{TaskID: taskID, Content: content, Metadata: meta, CreatedAt: time.Now()}
	return nil
}

func (m *MemoryStore) GetReport(_ context.Context, taskID string) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) RecordWorkerExecution(_ context.Context, e Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions = append(m.executions, e)
	return nil
}

// Product 返回已保存的商品
func (m *MemoryStore) Product(asin string) (model.ProductRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[asin]
	return p, ok
}

// Competitors 返回某主商品下的竞品数
func (m *MemoryStore) Competitors(mainASIN string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.competitors[mainASIN])
}

// Executions 返回某任务的执行审计
func (m *MemoryStore) Executions(taskID string) []Execution {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Execution
	for _, e := range m.executions {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out
}
