package model

import "strings"

// WorkerKind 下一步执行者，封闭枚举
type WorkerKind int

const (
	WorkerCollector WorkerKind = iota
	WorkerAnalyzer
	WorkerAdvisor
	WorkerTerminate
)

var workerNames = [...]string{
	WorkerCollector: "collector",
	WorkerAnalyzer:  "analyzer",
	WorkerAdvisor:   "advisor",
	WorkerTerminate: "terminate",
}

func (w WorkerKind) String() string {
	if w < 0 || int(w) >= len(workerNames) {
		return "unknown"
	}
	return workerNames[w]
}

// ParseWorkerKind 解析模型返回的执行者名称，兼容旧名称
func ParseWorkerKind(s string) (WorkerKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "collector", "data_collector":
		return WorkerCollector, true
	case "analyzer", "market_analyzer":
		return WorkerAnalyzer, true
	case "advisor", "optimization_advisor":
		return WorkerAdvisor, true
	case "terminate", "finish":
		return WorkerTerminate, true
	}
	return 0, false
}

// Phase 分析阶段
type Phase int

const (
	PhasePrimaryCollection Phase = iota
	PhaseCompetitorCollection
	PhaseBasicAnalysis
	PhaseCompetitiveAnalysis
	PhaseOptimization
	PhaseReportSynthesis
	PhaseTerminate
	PhaseFailed
)

var phaseNames = [...]string{
	PhasePrimaryCollection:    "primary_collection",
	PhaseCompetitorCollection: "competitor_collection",
	PhaseBasicAnalysis:        "basic_analysis",
	PhaseCompetitiveAnalysis:  "competitive_analysis",
	PhaseOptimization:         "optimization",
	PhaseReportSynthesis:      "report_synthesis",
	PhaseTerminate:            "terminate",
	PhaseFailed:               "failed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// RunStatus 单次分析的运行状态
type RunStatus int

const (
	RunProcessing RunStatus = iota
	RunCompleted
	RunFailed
)

func (s RunStatus) String() string {
	switch s {
	case RunProcessing:
		return "processing"
	case RunCompleted:
		return "completed"
	case RunFailed:
		return "failed"
	}
	return "unknown"
}

// TaskStatus 持久化任务状态
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Source 商品数据来源
type Source string

const (
	SourceScraped  Source = "scraped"
	SourceInferred Source = "inferred"
)

// AnalysisMode 市场分析模式
type AnalysisMode string

const (
	ModeBasic       AnalysisMode = "basic"
	ModeCompetitive AnalysisMode = "competitive"
)
