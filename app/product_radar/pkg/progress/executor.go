package progress

import (
	"context"
	"sync"
	"time"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/logger"
)

const jobTimeout = 10 * time.Second

type job struct {
	name string
	fn   func(ctx context.Context)
}

// Executor 固定数量的后台 worker 执行即发即弃的任务
type Executor struct {
	jobs   chan job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewExecutor 创建执行器，队列满时新任务被丢弃
func NewExecutor(queueSize, workers int) *Executor {
	if queueSize <= 0 {
		queueSize = 64
	}
	if workers <= 0 {
		workers = 1
	}
	e := &Executor{jobs: make(chan job, queueSize)}
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.loop()
	}
	return e
}

func (e *Executor) loop() {
	defer e.wg.Done()
	for j := range e.jobs {
		e.run(j)
	}
}

func (e *Executor) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("后台任务 [%s] panic: %v", j.name, r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	j.fn(ctx)
}

// Submit 提交任务，不阻塞；队列已满或已关闭时返回 false
func (e *Executor) Submit(name string, fn func(ctx context.Context)) bool {
	if e == nil {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		logger.Log.Warnf("执行器已关闭，丢弃任务 [%s]", name)
		return false
	}
	select {
	case e.jobs <- job{name: name, fn: fn}:
		return true
	default:
		logger.Log.Warnf("执行器队列已满，丢弃任务 [%s]", name)
		return false
	}
}

// Close 停止接收任务并等待队列中的任务执行完
func (e *Executor) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.jobs)
	}
	e.mu.Unlock()
	e.wg.Wait()
}
