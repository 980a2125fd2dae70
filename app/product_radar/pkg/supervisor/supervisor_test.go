package supervisor

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/model"
)

type scriptedLLM struct {
	prompts []string
	fn      func(prompt string) (string, error)
}

func (s *scriptedLLM) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.fn == nil {
		return "", errors.New("unexpected call")
	}
	return s.fn(prompt)
}

func (s *scriptedLLM) count(prefix string) int {
	n := 0
	for _, p := range s.prompts {
		if strings.HasPrefix(p, prefix) {
			n++
		}
	}
	return n
}

const (
	validationPrefix = "You are a supervisor managing a product analysis workflow."
	synthesisPrefix  = "You are a professional product analysis report editor."
)

const synthesized = `### Reorganized Product Overview
Compact ANC earbuds at $79.99.
### Reorganized Market Analysis
Priced above JBL (B0AAAAAAA2).
For example, if the brand wanted to...
### Reorganized Optimization Recommendations
Add "ANC" to the title.`

func scrapedProduct() *model.ProductData {
	rec := &model.ProductRecord{URL: "https://www.amazon.com/dp/B0C1234567", Title: "Soundcore Liberty 4 NC", Price: model.Float(79.99), Currency: "USD"}
	return &model.ProductData{
		Collected:    true,
		Source:       model.SourceScraped,
		Record:       rec,
		Summary:      rec.Summary("B0C1234567"),
		QualityScore: rec.QualityScore(),
		Completeness: rec.Completeness(),
	}
}

func candidates(n int) []model.CandidateCompetitor {
	out := make([]model.CandidateCompetitor, n)
	for i := range out {
		out[i] = model.CandidateCompetitor{ASIN: "B0AAAAAAA" + string(rune('1'+i)), Title: "Competitor earbuds"}
	}
	return out
}

func newState(max int) *model.AnalysisState {
	return model.NewAnalysisState("task-1", "https://www.amazon.com/dp/B0C1234567", "B0C1234567", max)
}

func TestTick_PhaseOrder(t *testing.T) {
	fake := &scriptedLLM{fn: func(p string) (string, error) {
		if strings.HasPrefix(p, synthesisPrefix) {
			return synthesized, nil
		}
		return "", errors.New("unexpected validation")
	}}
	s := New(fake)
	state := newState(10)
	ctx := context.Background()

	type step struct {
		next  model.WorkerKind
		phase model.Phase
		apply func()
	}
	steps := []step{
		{model.WorkerCollector, model.PhasePrimaryCollection, func() {
			state.ProductData = scrapedProduct()
			state.Candidates = candidates(2)
		}},
		{model.WorkerAnalyzer, model.PhaseCompetitiveAnalysis, func() {
			state.MarketAnalysis = &model.Narrative{Text: "Priced above JBL.", Mode: model.ModeCompetitive, Completed: true}
		}},
		{model.WorkerAdvisor, model.PhaseOptimization, func() {
			state.OptimizationAdvice = &model.Narrative{Text: "Add ANC to the title.", Completed: true}
		}},
		{model.WorkerTerminate, model.PhaseReportSynthesis, func() {}},
		{model.WorkerTerminate, model.PhaseTerminate, func() {}},
	}
	for i, st := range steps {
		got := s.Tick(ctx, state)
		if got != st.next || state.Phase != st.phase {
			t.Fatalf("tick %d = %v/%v, want %v/%v", i+1, got, state.Phase, st.next, st.phase)
		}
		if state.NextWorker != got {
			t.Errorf("tick %d NextWorker = %v, want %v", i+1, state.NextWorker, got)
		}
		st.apply()
	}

	if n := fake.count(synthesisPrefix); n != 1 {
		t.Errorf("synthesis calls = %d, want 1", n)
	}
	if !state.SynthesisDone {
		t.Error("SynthesisDone = false")
	}
	if state.ProductData.Synthesized != "Compact ANC earbuds at $79.99." {
		t.Errorf("product synthesized = %q", state.ProductData.Synthesized)
	}
	if state.MarketAnalysis.Synthesized != "Priced above JBL (B0AAAAAAA2)." {
		t.Errorf("market synthesized = %q", state.MarketAnalysis.Synthesized)
	}
	if state.MarketAnalysis.Text != "Priced above JBL." {
		t.Errorf("original market text overwritten: %q", state.MarketAnalysis.Text)
	}
	if state.OptimizationAdvice.Synthesized != `Add "ANC" to the title.` {
		t.Errorf("optimization synthesized = %q", state.OptimizationAdvice.Synthesized)
	}
	if state.Metadata["quality_score"] == "" {
		t.Error("quality_score metadata missing")
	}
}

func TestTick_NeverExceedsCeiling(t *testing.T) {
	for max := 1; max <= 8; max++ {
		// 模型总是要求重新采集，流程只能靠轮次上限结束
		fake := &scriptedLLM{fn: func(string) (string, error) { return "collector", nil }}
		s := New(fake)
		state := newState(max)
		state.ProductData = &model.ProductData{Collected: true, Source: model.SourceInferred, InferredText: "earbuds"}

		ticks := 0
		for s.Tick(context.Background(), state) != model.WorkerTerminate {
			ticks++
			if ticks > 100 {
				t.Fatalf("max=%d: loop did not terminate", max)
			}
		}
		if state.Iteration > max {
			t.Errorf("max=%d: Iteration = %d", max, state.Iteration)
		}
		if want := max - 1; ticks != want && max > 1 {
			t.Errorf("max=%d: dispatched %d workers, want %d", max, ticks, want)
		}
	}
}

func TestTick_FailedStateTerminates(t *testing.T) {
	fake := &scriptedLLM{}
	state := newState(6)
	state.Fail("analyzer execution failed: timeout")

	if got := New(fake).Tick(context.Background(), state); got != model.WorkerTerminate {
		t.Errorf("Tick() = %v, want terminate", got)
	}
	if len(fake.prompts) != 0 {
		t.Errorf("llm called %d times", len(fake.prompts))
	}
	if state.Phase != model.PhaseFailed {
		t.Errorf("Phase = %v, want failed", state.Phase)
	}
}

func TestTick_BasicAnalysisWithoutCompetitors(t *testing.T) {
	fake := &scriptedLLM{fn: func(string) (string, error) { return "analyzer", nil }}
	state := newState(6)
	state.ProductData = scrapedProduct()
	state.Candidates = []model.CandidateCompetitor{}

	got := New(fake).Tick(context.Background(), state)
	if got != model.WorkerAnalyzer || state.Phase != model.PhaseBasicAnalysis {
		t.Errorf("Tick() = %v/%v, want analyzer/basic_analysis", got, state.Phase)
	}
	if n := fake.count(validationPrefix); n != 1 {
		t.Fatalf("validation calls = %d, want 1", n)
	}
	if !strings.Contains(fake.prompts[0], "Warnings: "+warnNoCompetitors) {
		t.Errorf("prompt missing warning:\n%s", fake.prompts[0])
	}
}

func TestTick_RecoversPanic(t *testing.T) {
	fake := &scriptedLLM{fn: func(string) (string, error) { panic("client bug") }}
	state := newState(6)
	state.ProductData = &model.ProductData{Collected: true, Source: model.SourceInferred}

	if got := New(fake).Tick(context.Background(), state); got != model.WorkerTerminate {
		t.Errorf("Tick() = %v, want terminate", got)
	}
	last := state.Messages[len(state.Messages)-1].Content
	if !strings.Contains(last, "terminating workflow: client bug") {
		t.Errorf("last message = %q", last)
	}
}

func TestValidate(t *testing.T) {
	status := WorkflowStatus{ProductCollected: true, DataSource: model.SourceInferred, Warnings: []string{warnInferred}}
	tests := []struct {
		name  string
		reply string
		err   error
		want  model.WorkerKind
	}{
		{"confirm", "analyzer", nil, model.WorkerAnalyzer},
		{"legacy name with spaces", "  Market Analyzer \n", nil, model.WorkerAnalyzer},
		{"finish", "FINISH", nil, model.WorkerTerminate},
		{"override", "data_collector", nil, model.WorkerCollector},
		{"illegal", "let's re-run everything", nil, model.WorkerAnalyzer},
		{"error", "", errors.New("rate limited"), model.WorkerAnalyzer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &scriptedLLM{fn: func(string) (string, error) { return tt.reply, tt.err }}
			got := New(fake).Validate(context.Background(), newState(6), model.WorkerAnalyzer, status)
			if got != tt.want {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}
}

// 模型改写可以违背阶段顺序：市场分析未完成时直接进入优化建议也会被接受
func TestValidate_OverrideAgainstPhaseOrderIsAccepted(t *testing.T) {
	fake := &scriptedLLM{fn: func(string) (string, error) { return "optimization_advisor", nil }}
	state := newState(6)
	state.ProductData = &model.ProductData{Collected: true, Source: model.SourceInferred}

	got := New(fake).Tick(context.Background(), state)
	if got != model.WorkerAdvisor {
		t.Fatalf("Tick() = %v, want advisor", got)
	}
	if state.MarketAnalysis != nil {
		t.Fatal("precondition: market analysis should be missing")
	}
	if state.Phase != model.PhaseBasicAnalysis {
		t.Errorf("Phase = %v, want basic_analysis kept from decision table", state.Phase)
	}
}

func TestValidationPrompt(t *testing.T) {
	state := newState(6)
	state.AddMessage("human", "collector", "first")
	state.AddMessage("ai", "collector", strings.Repeat("x", 200))
	state.AddMessage("human", "analyzer", "third")
	state.AddMessage("ai", "analyzer", "fourth")
	status := Status(state)

	p := validationPrompt(state, model.WorkerCollector, status)
	for _, want := range []string{
		"- Product Data: ❌ Not collected (Source: N/A)",
		"Warnings: None",
		"Suggested next worker: collector",
		"ai: " + strings.Repeat("x", 150) + "...\nhuman: third...\nai: fourth...",
		"Available workers: collector, analyzer, advisor, terminate",
		"Respond with ONLY the worker name.",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(p, "first") {
		t.Error("prompt includes more than the last three messages")
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name     string
		state    func(s *model.AnalysisState)
		source   CompetitorSource
		count    int
		warnings []string
	}{
		{"pending", func(*model.AnalysisState) {}, CompetitorsPending, 0, nil},
		{"none", func(s *model.AnalysisState) { s.ProductData = scrapedProduct() }, CompetitorsNone, 0, []string{warnNoCompetitors}},
		{"candidates", func(s *model.AnalysisState) {
			s.ProductData = scrapedProduct()
			s.Candidates = candidates(3)
		}, CompetitorsCandidates, 3, nil},
		{"detailed wins", func(s *model.AnalysisState) {
			s.ProductData = scrapedProduct()
			s.Candidates = candidates(3)
			s.Detailed = []model.DetailedCompetitor{{Candidate: s.Candidates[0]}}
		}, CompetitorsDetailed, 1, nil},
		{"inferred and empty narratives", func(s *model.AnalysisState) {
			s.ProductData = &model.ProductData{Collected: true, Source: model.SourceInferred}
			s.Candidates = candidates(1)
			s.MarketAnalysis = &model.Narrative{Completed: true}
			s.OptimizationAdvice = &model.Narrative{Completed: true}
		}, CompetitorsCandidates, 1, []string{warnInferred, warnEmptyMarket, warnEmptyOptimization}},
		{"scraped without data", func(s *model.AnalysisState) {
			s.ProductData = &model.ProductData{Collected: true, Source: model.SourceScraped}
		}, CompetitorsNone, 0, []string{warnIncomplete, warnNoCompetitors}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newState(6)
			tt.state(s)
			got := Status(s)
			if got.CompetitorSource != tt.source || got.CompetitorCount != tt.count {
				t.Errorf("Status() competitors = %v/%d, want %v/%d", got.CompetitorSource, got.CompetitorCount, tt.source, tt.count)
			}
			if diff := cmp.Diff(tt.warnings, got.Warnings); diff != "" {
				t.Errorf("warnings mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQualityScore(t *testing.T) {
	longMarket := strings.Repeat("a", 480) + " competitor price gap versus B0AAAAAAA2"
	longAdvice := strings.Repeat("b", 290) + " we recommend a bundle"

	tests := []struct {
		name  string
		state func(s *model.AnalysisState)
		want  float64
	}{
		{"empty", func(*model.AnalysisState) {}, 0},
		{"inferred only", func(s *model.AnalysisState) {
			s.ProductData = &model.ProductData{Source: model.SourceInferred}
		}, 0.1},
		{"scraped with competitors and long narratives", func(s *model.AnalysisState) {
			s.ProductData = &model.ProductData{Source: model.SourceScraped, QualityScore: 0.5, Completeness: model.Completeness{Overall: 0.6}}
			s.Candidates = candidates(3)
			s.MarketAnalysis = &model.Narrative{Text: longMarket}
			s.OptimizationAdvice = &model.Narrative{Text: longAdvice}
		}, 0.2 + 0.05 + 0.03 + 0.1 + 0.3 + 0.2},
		{"candidate tiers", func(s *model.AnalysisState) {
			s.Candidates = candidates(5)
			s.MarketAnalysis = &model.Narrative{Text: strings.Repeat("m", 250)}
			s.OptimizationAdvice = &model.Narrative{Text: strings.Repeat("o", 150)}
		}, 0.15 + 0.2 + 0.1},
		{"single candidate short texts", func(s *model.AnalysisState) {
			s.Candidates = candidates(1)
			s.MarketAnalysis = &model.Narrative{Text: "short"}
			s.OptimizationAdvice = &model.Narrative{Text: "short"}
		}, 0.05 + 0.1},
		{"capped", func(s *model.AnalysisState) {
			s.ProductData = &model.ProductData{Source: model.SourceScraped, QualityScore: 1, Completeness: model.Completeness{Overall: 1}}
			s.Detailed = []model.DetailedCompetitor{{}}
			s.MarketAnalysis = &model.Narrative{Text: longMarket}
			s.OptimizationAdvice = &model.Narrative{Text: longAdvice}
		}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newState(6)
			tt.state(s)
			if got := QualityScore(s); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("QualityScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSynthesize_FallsBackToOriginals(t *testing.T) {
	fake := &scriptedLLM{fn: func(string) (string, error) { return "", errors.New("overloaded") }}
	state := newState(6)
	state.ProductData = scrapedProduct()
	state.MarketAnalysis = &model.Narrative{Text: "Mid-range.\nHowever, I can guide you through it.", Completed: true}
	state.OptimizationAdvice = &model.Narrative{Text: "Lower the price.", Completed: true}

	New(fake).Synthesize(context.Background(), state)

	if state.MarketAnalysis.Synthesized != "Mid-range." {
		t.Errorf("market synthesized = %q", state.MarketAnalysis.Synthesized)
	}
	if state.OptimizationAdvice.Synthesized != "Lower the price." {
		t.Errorf("optimization synthesized = %q", state.OptimizationAdvice.Synthesized)
	}
	if !strings.Contains(state.ProductData.Synthesized, "**ASIN:** B0C1234567") {
		t.Errorf("product synthesized = %q", state.ProductData.Synthesized)
	}
	if !strings.Contains(fake.prompts[0], "**Competitor Information**:\nNo competitor data discovered") {
		t.Errorf("prompt missing competitor summary:\n%s", fake.prompts[0])
	}
}

func TestParseSections(t *testing.T) {
	got := ParseSections("Intro text\n### Product Overview\nline 1\nline 2\n\n### **Market Analysis**\nmarket\n### Optimization Recommendations\nopt\n### Notes\nignored")
	want := Sections{ProductOverview: "line 1\nline 2", MarketAnalysis: "market", Optimization: "opt"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseSections() mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoveGeneric(t *testing.T) {
	in := "I'm unable to access external URLs.\nPrice: $79.99\nThis could be based on the brand.\nRating 4.5"
	if got := RemoveGeneric(in); got != "Price: $79.99\nRating 4.5" {
		t.Errorf("RemoveGeneric() = %q", got)
	}
}
