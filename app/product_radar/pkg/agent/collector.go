package agent

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/competitor"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/fetcher"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/llm"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/logger"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/model"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/parser"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/storage"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/textproc"
)

const (
	CollectorName  = "collector"
	DefaultFanout  = 5
	maxLoggedIssue = 3
)

// CollectorOptions 采集配置
type CollectorOptions struct {
	// Fanout 详情页抓取的竞品数与并发上限
	Fanout int
	// Details 是否在主商品采集成功后抓取竞品详情页
	Details bool
}

// Collector 商品与竞品采集
type Collector struct {
	fetcher   fetcher.Fetcher
	extractor *competitor.Extractor
	llm       llm.Completer
	notifier  *Notifier
	opts      CollectorOptions
}

// NewCollector 创建采集执行者
func NewCollector(f fetcher.Fetcher, ext *competitor.Extractor, c llm.Completer, n *Notifier, opts CollectorOptions) *Collector {
	if opts.Fanout <= 0 {
		opts.Fanout = DefaultFanout
	}
	if ext == nil {
		ext = competitor.NewExtractor()
	}
	return &Collector{fetcher: f, extractor: ext, llm: c, notifier: n, opts: opts}
}

func (c *Collector) Name() string { return CollectorName }

// Execute 采集主商品；阶段为 competitor_collection 时只抓取竞品详情
func (c *Collector) Execute(ctx context.Context, state *model.AnalysisState) (*model.AnalysisState, error) {
	c.notifier.Progress(state, c.Name(), 10)

	if state.Phase == model.PhaseCompetitorCollection {
		c.collectCompetitors(ctx, state)
		return state, nil
	}
	if err := c.collectProduct(ctx, state); err != nil {
		return state, err
	}
	if c.opts.Details && state.ProductData.Source == model.SourceScraped && len(state.Candidates) > 0 {
		c.collectCompetitors(ctx, state)
	}
	return state, nil
}

func (c *Collector) collectProduct(ctx context.Context, state *model.AnalysisState) error {
	log := logger.WithTask(state.TaskID)
	log.Infof("开始采集商品: %s", state.ProductURL)
	state.AddMessage("human", c.Name(), "Starting analysis of "+state.ProductURL)

	if state.ASIN == "" {
		if asin, ok := textproc.ExtractASIN(state.ProductURL); ok {
			state.ASIN = asin
		} else {
			log.Warnf("无法从 URL 提取 ASIN: %s", state.ProductURL)
		}
	}
	c.notifier.Progress(state, c.Name(), 20)

	record, html, err := parser.ScrapeProduct(ctx, c.fetcher, state.ProductURL)
	c.notifier.Progress(state, c.Name(), 40)
	if err != nil {
		log.Warnf("抓取失败，改用模型推断: %v", err)
		return c.fallback(ctx, state)
	}

	asin := state.ASIN
	if asin == "" {
		asin = record.ASIN
	}
	record.ASIN = asin
	candidates := c.extractor.Extract(html, asin)

	issues := record.ValidationIssues()
	quality := record.QualityScore()
	log.Infof("抓取成功: %s, 质量分 %.2f, 发现 %d 个竞品候选", record.Title, quality, len(candidates))
	for i, issue := range issues {
		if i == maxLoggedIssue {
			log.Warnf("  - ... 另有 %d 个问题", len(issues)-maxLoggedIssue)
			break
		}
		log.Warnf("  - %s", issue)
	}

	summary := record.Summary(asin)
	state.ASIN = asin
	state.ProductData = &model.ProductData{
		Collected:        true,
		Source:           model.SourceScraped,
		Record:           record,
		Summary:          summary,
		QualityScore:     quality,
		Completeness:     record.Completeness(),
		ValidationIssues: issues,
	}
	state.Candidates = candidates

	if asin != "" && len(candidates) > 0 {
		rows := make([]model.CompetitorRow, len(candidates))
		for i, cand := range candidates {
			rows[i] = cand.Row()
		}
		c.notifier.Persist("save_candidates", func(ctx context.Context, s storage.Store) error {
			return s.SaveCompetitors(ctx, rows, asin)
		})
	}
	c.notifier.Progress(state, c.Name(), 50)

	state.AddMessage("ai", c.Name(), fmt.Sprintf("Successfully scraped product data and found %d competitors\n\n%s", len(candidates), summary))
	if asin != "" {
		saved := *record
		c.notifier.Persist("save_product", func(ctx context.Context, s storage.Store) error {
			return s.SaveProduct(ctx, &saved, asin)
		})
	}
	return nil
}

// fallback 只根据 URL 让模型推断商品信息，模型也失败时返回错误
func (c *Collector) fallback(ctx context.Context, state *model.AnalysisState) error {
	c.notifier.Progress(state, c.Name(), 30)

	text, err := c.llm.Complete(ctx, fallbackPrompt(state.ProductURL))
	if err != nil {
		return fmt.Errorf("data collection failed: %w", err)
	}

	state.ProductData = &model.ProductData{
		Collected:    true,
		Source:       model.SourceInferred,
		InferredText: text,
	}
	c.notifier.Progress(state, c.Name(), 50)
	state.AddMessage("ai", c.Name(), "Generated LLM-based analysis\n\n"+text)
	return nil
}

// collectCompetitors 并发抓取排名靠前的竞品详情页，只保留有效记录并保持排名顺序
func (c *Collector) collectCompetitors(ctx context.Context, state *model.AnalysisState) {
	log := logger.WithTask(state.TaskID)
	candidates := state.Candidates
	if len(candidates) == 0 {
		log.Info("没有竞品候选需要抓取")
		state.Detailed = nil
		return
	}
	state.Phase = model.PhaseCompetitorCollection
	c.notifier.Progress(state, c.Name(), 60)

	top := candidates
	if len(top) > c.opts.Fanout {
		top = top[:c.opts.Fanout]
	}
	log.Infof("开始抓取 %d 个竞品详情", len(top))

	results := make([]*model.ProductRecord, len(top))
	var (
		mu   sync.Mutex
		done int
		g    errgroup.Group
	)
	g.SetLimit(c.opts.Fanout)
	for i, cand := range top {
		g.Go(func() error {
			record, _, err := parser.ScrapeProduct(ctx, c.fetcher, cand.URL)
			if err != nil {
				log.Warnf("抓取竞品失败 [%s]: %v", cand.ASIN, err)
			} else {
				record.ASIN = cand.ASIN
				results[i] = record
			}

			mu.Lock()
			done++
			c.notifier.Progress(state, c.Name(), 60+done*20/len(top))
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var detailed []model.DetailedCompetitor
	for i, record := range results {
		if record == nil {
			continue
		}
		detailed = append(detailed, model.DetailedCompetitor{Candidate: top[i], Record: *record})
	}
	state.Detailed = detailed

	if state.ASIN != "" && len(detailed) > 0 {
		rows := make([]model.CompetitorRow, len(detailed))
		for i, d := range detailed {
			rows[i] = d.Row()
		}
		mainASIN := state.ASIN
		c.notifier.Persist("save_competitors", func(ctx context.Context, s storage.Store) error {
			return s.SaveCompetitors(ctx, rows, mainASIN)
		})
	}

	log.Infof("竞品详情抓取完成: %d/%d", len(detailed), len(top))
	state.AddMessage("ai", c.Name(), fmt.Sprintf("Collected detailed data for %d competitors", len(detailed)))
}
