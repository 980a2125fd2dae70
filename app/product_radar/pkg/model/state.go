package model

import "time"

// Message 执行者之间的消息记录
type Message struct {
	Role    string    `json:"role"` // human or ai
	Sender  string    `json:"sender"`
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

// ProductData 主商品采集结果
type ProductData struct {
	Collected        bool
	Source           Source
	Record           *ProductRecord
	Summary          string // 抓取数据的结构化摘要
	InferredText     string // 模型推断的商品描述
	QualityScore     float64
	Completeness     Completeness
	ValidationIssues []string
	Synthesized      string
}

// Info 选择最合适的商品描述：结构化摘要 > 原始字段 > 推断文本
func (d *ProductData) Info(asin string) string {
	if d == nil {
		return ""
	}
	if d.Source == SourceScraped && d.Summary != "" {
		return d.Summary
	}
	if d.Record != nil && d.Record.IsValid() {
		return d.Record.Summary(asin)
	}
	return d.InferredText
}

// Narrative 分析或建议文本
type Narrative struct {
	Text            string
	Mode            AnalysisMode
	CompetitorCount int
	Completed       bool
	Synthesized     string
}

// Content 优先返回综合后的文本
func (n *Narrative) Content() string {
	if n == nil {
		return ""
	}
	if n.Synthesized != "" {
		return n.Synthesized
	}
	return n.Text
}

// AnalysisState 单次分析在控制循环与执行者之间独占传递的状态
type AnalysisState struct {
	TaskID     string
	ProductURL string
	ASIN       string
	Messages   []Message
	NextWorker WorkerKind

	ProductData        *ProductData
	MarketAnalysis     *Narrative
	OptimizationAdvice *Narrative

	Candidates []CandidateCompetitor
	Detailed   []DetailedCompetitor

	Phase         Phase
	Iteration     int
	MaxIterations int
	Progress      int
	Status        RunStatus
	Error         string
	FinalReport   string

	SynthesisDone bool
	ReportQuality float64
	Metadata      map[string]string
}

// NewAnalysisState 初始化状态
func NewAnalysisState(taskID, productURL, asin string, maxIterations int) *AnalysisState {
	return &AnalysisState{
		TaskID:        taskID,
		ProductURL:    productURL,
		ASIN:          asin,
		NextWorker:    WorkerCollector,
		Phase:         PhasePrimaryCollection,
		MaxIterations: maxIterations,
		Status:        RunProcessing,
		Metadata:      map[string]string{},
	}
}

// AddMessage 追加消息
func (s *AnalysisState) AddMessage(role, sender, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Sender: sender, Content: content, Time: time.Now()})
}

// SetProgress 只允许进度前进，返回是否发生变化
func (s *AnalysisState) SetProgress(p int) bool {
	if p > 100 {
		p = 100
	}
	if p <= s.Progress {
		return false
	}
	s.Progress = p
	return true
}

// Fail 标记失败
func (s *AnalysisState) Fail(msg string) {
	s.Status = RunFailed
	s.Error = msg
	s.Phase = PhaseFailed
}

// Failed 是否已失败
func (s *AnalysisState) Failed() bool {
	return s.Status == RunFailed
}

// CompetitorCount 可用于分析的竞品数，详细数据优先
func (s *AnalysisState) CompetitorCount() int {
	if len(s.Detailed) > 0 {
		return len(s.Detailed)
	}
	return len(s.Candidates)
}
