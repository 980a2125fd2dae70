package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/config"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/fetcher"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/model"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/progress"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/storage"
)

const productPage = `<html><body>
<span id="productTitle">Soundcore Liberty 4 NC Wireless Earbuds</span>
<span class="a-price apexPriceToPay"><span class="a-offscreen">$79.99</span></span>
</body></html>`

const synthesisReply = `### Product Overview
Adaptive ANC earbuds, price inferred around $80.
### Market Analysis
Mid-range segment.
### Optimization Recommendations
Lead the title with "ANC".`

// routedLLM 按提示词开头路由回复，复核请求原样确认建议的执行者
type routedLLM struct {
	mu      sync.Mutex
	prompts []string
	fail    map[string]error
}

func (r *routedLLM) Complete(_ context.Context, prompt string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, prompt)

	for prefix, err := range r.fail {
		if strings.HasPrefix(prompt, prefix) {
			return "", err
		}
	}
	if strings.HasPrefix(prompt, "You are a supervisor managing a product analysis workflow.") {
		_, rest, _ := strings.Cut(prompt, "Suggested next worker: ")
		name, _, _ := strings.Cut(rest, "\n")
		return name, nil
	}
	switch {
	case strings.HasPrefix(prompt, "Analyze this Amazon product URL"):
		return "Likely a pair of noise cancelling wireless earbuds.", nil
	case strings.HasPrefix(prompt, "You are a market analysis expert."):
		return "Competes in the $50-$100 earbud segment.", nil
	case strings.HasPrefix(prompt, "You are an e-commerce optimization expert."):
		return "Put ANC in the first five words of the title.", nil
	case strings.HasPrefix(prompt, "You are a professional product analysis report editor."):
		return synthesisReply, nil
	}
	return "", errors.New("unexpected prompt")
}

func (r *routedLLM) count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.prompts {
		if strings.HasPrefix(p, prefix) {
			n++
		}
	}
	return n
}

type mapFetcher map[string]string

func (m mapFetcher) Fetch(_ context.Context, url string) (string, error) {
	if page, ok := m[url]; ok {
		return page, nil
	}
	return "", fetcher.ErrBlocked
}

type harness struct {
	engine *Engine
	store  *storage.MemoryStore
	exec   *progress.Executor
	events *eventSink
}

type eventSink struct {
	mu     sync.Mutex
	events []progress.Event
}

func (s *eventSink) Emit(_ context.Context, ev progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *eventSink) last() progress.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return progress.Event{}
	}
	return s.events[len(s.events)-1]
}

func newHarness(t *testing.T, f fetcher.Fetcher, llmc *routedLLM) *harness {
	t.Helper()
	store := storage.NewMemoryStore()
	// 单个后台协程保证事件按提交顺序送达
	exec := progress.NewExecutor(256, 1)
	t.Cleanup(exec.Close)
	sink := &eventSink{}

	cfg := &config.Config{}
	cfg.ApplyDefaults()
	e, err := NewEngine(cfg, Deps{
		Store:    store,
		LLM:      llmc,
		Fetcher:  f,
		Executor: exec,
		Emitter:  progress.NewEmitter(sink, exec),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	e.now = func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }
	return &harness{engine: e, store: store, exec: exec, events: sink}
}

func (h *harness) createTask(t *testing.T, url string) string {
	t.Helper()
	id, err := h.store.CreateTask(context.Background(), url)
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	return id
}

func TestRunAnalysis_FetchFailuresFallBackToInference(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := fetcher.NewHTTPFetcher(fetcher.Options{MaxRetries: 3, RetryDelay: time.Millisecond, Timeout: 5 * time.Second})
	llmc := &routedLLM{}
	h := newHarness(t, f, llmc)
	url := srv.URL + "/dp/B0C1234567"
	taskID := h.createTask(t, url)

	got, err := h.engine.RunAnalysis(context.Background(), url, 0, taskID)
	if err != nil {
		t.Fatalf("RunAnalysis() error = %v", err)
	}
	h.exec.Close()

	if hits.Load() != 3 {
		t.Errorf("fetch attempts = %d, want 3", hits.Load())
	}
	for _, want := range []string{
		"**ASIN:** B0C1234567",
		"Adaptive ANC earbuds, price inferred around $80.",
		"Mid-range segment.",
		`Lead the title with "ANC".`,
		"• **Data Quality:** Inferred",
		"• **Content Quality:** Enhanced with AI-powered content synthesis",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q\n%s", want, got)
		}
	}
	if n := llmc.count("You are a professional product analysis report editor."); n != 1 {
		t.Errorf("synthesis calls = %d, want 1", n)
	}

	stored, err := h.store.GetTask(context.Background(), taskID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if stored.Status != model.TaskCompleted || stored.Progress != 100 {
		t.Errorf("task = %s/%d, want completed/100", stored.Status, stored.Progress)
	}
	rep, err := h.store.GetReport(context.Background(), taskID)
	if err != nil {
		t.Fatalf("GetReport() error = %v", err)
	}
	if rep.Content != got {
		t.Error("saved report differs from returned report")
	}
	if rep.Metadata["data_source"] != "inferred" || rep.Metadata["iterations"] != "4" || rep.Metadata["asin"] != "B0C1234567" {
		t.Errorf("metadata = %v", rep.Metadata)
	}
	if ev := h.events.last(); ev.Progress != 100 || ev.Status != "completed" {
		t.Errorf("last event = %+v", ev)
	}

	var workers []string
	for _, e := range h.store.Executions(taskID) {
		if e.Status == "completed" {
			workers = append(workers, e.Worker)
		}
	}
	if diff := cmp.Diff([]string{"collector", "analyzer", "advisor"}, workers); diff != "" {
		t.Errorf("completed workers mismatch (-want +got):\n%s", diff)
	}
}

func TestRunAnalysis_WorkerFailureStopsRun(t *testing.T) {
	const url = "https://www.amazon.com/dp/B0C1234567"
	llmc := &routedLLM{fail: map[string]error{"You are a market analysis expert.": errors.New("model overloaded")}}
	h := newHarness(t, mapFetcher{url: productPage}, llmc)

	got, err := h.engine.RunAnalysis(context.Background(), url, 6, "")
	if err != nil {
		t.Fatalf("RunAnalysis() error = %v, worker failures must not surface as errors", err)
	}
	h.exec.Close()

	if got == "" {
		t.Error("partial report is empty")
	}
	if n := llmc.count("You are an e-commerce optimization expert."); n != 0 {
		t.Errorf("advisor ran %d times after analyzer failure", n)
	}
	if n := llmc.count("You are a professional product analysis report editor."); n != 0 {
		t.Errorf("synthesis ran %d times after analyzer failure", n)
	}

	ev := h.events.last()
	if ev.Status != "failed" {
		t.Fatalf("last event = %+v, want failed", ev)
	}
	task, err := h.store.GetTask(context.Background(), ev.TaskID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if task.Status != model.TaskFailed {
		t.Errorf("task status = %s, want failed", task.Status)
	}
	if !strings.HasPrefix(task.Error, "analyzer execution failed: model overloaded") {
		t.Errorf("task error = %q", task.Error)
	}
	if _, err := h.store.GetReport(context.Background(), task.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetReport() error = %v, want ErrNotFound", err)
	}

	var statuses []string
	for _, e := range h.store.Executions(task.ID) {
		statuses = append(statuses, e.Worker+":"+e.Status)
	}
	want := []string{"collector:started", "collector:completed", "analyzer:started", "analyzer:failed"}
	if diff := cmp.Diff(want, statuses); diff != "" {
		t.Errorf("executions mismatch (-want +got):\n%s", diff)
	}
}

func TestRunAnalysis_IterationCeiling(t *testing.T) {
	const url = "https://www.amazon.com/dp/B0C1234567"
	llmc := &routedLLM{}
	h := newHarness(t, mapFetcher{url: productPage}, llmc)

	got, err := h.engine.RunAnalysis(context.Background(), url, 2, "")
	if err != nil {
		t.Fatalf("RunAnalysis() error = %v", err)
	}
	if !strings.Contains(got, "No market analysis available") {
		t.Errorf("report = %s", got)
	}
	if !strings.Contains(got, "• **Processing Iterations:** 2") {
		t.Error("report missing iteration count")
	}
	if n := llmc.count("You are a market analysis expert."); n != 0 {
		t.Errorf("analyzer ran %d times past the ceiling", n)
	}
}

func TestRunAnalysis_EmptyURL(t *testing.T) {
	h := newHarness(t, mapFetcher{}, &routedLLM{})
	if _, err := h.engine.RunAnalysis(context.Background(), "  ", 6, ""); !errors.Is(err, ErrMisconfigured) {
		t.Errorf("RunAnalysis() error = %v, want ErrMisconfigured", err)
	}
}

func TestNewEngine_MissingDeps(t *testing.T) {
	exec := progress.NewExecutor(1, 1)
	defer exec.Close()
	full := Deps{Store: storage.NewMemoryStore(), LLM: &routedLLM{}, Fetcher: mapFetcher{}, Executor: exec}

	tests := map[string]func(d *Deps){
		"store":    func(d *Deps) { d.Store = nil },
		"llm":      func(d *Deps) { d.LLM = nil },
		"fetcher":  func(d *Deps) { d.Fetcher = nil },
		"executor": func(d *Deps) { d.Executor = nil },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			d := full
			mutate(&d)
			if _, err := NewEngine(nil, d); !errors.Is(err, ErrMisconfigured) {
				t.Errorf("NewEngine() error = %v, want ErrMisconfigured", err)
			}
		})
	}
	if _, err := NewEngine(nil, full); err != nil {
		t.Errorf("NewEngine() error = %v", err)
	}
}
