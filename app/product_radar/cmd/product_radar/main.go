package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/config"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/engine"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/fetcher"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/llm/factory"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/logger"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/progress"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/storage"
)

var (
	// flagconf 配置文件路径
	flagconf string
	flagURL  string
	flagIter int
	flagOut  string
)

func init() {
	flag.StringVar(&flagconf, "conf", "app/product_radar/configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.StringVar(&flagURL, "url", "", "product url, eg: -url https://www.amazon.com/dp/B0C1234567")
	flag.IntVar(&flagIter, "max-iter", 0, "max coordinator iterations, 0 uses workflow.max_iterations")
	flag.StringVar(&flagOut, "out", "", "write the markdown report to this file instead of stdout")
}

func main() {
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.LoadConfig(flagconf)
	if err != nil {
		log.Fatalf("无法加载配置文件: %v", err)
	}
	if err = cfg.Validate(); err != nil {
		log.Fatalf("配置错误: %v", err)
	}
	if flagURL == "" {
		log.Fatal("配置错误: 未指定商品链接 (-url)")
	}

	// 2. 初始化日志
	if err = logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	logger.Log.Info("启动商品雷达...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. 初始化存储，未配置或连接失败时使用内存存储
	store, closeStore := newStore(cfg.DB)
	defer closeStore()

	// 4. 初始化进度推送
	sink, closeSink, err := progress.NewSink(ctx, cfg.Progress)
	if err != nil {
		logger.Log.Fatalf("进度推送初始化失败: %v", err)
	}
	defer func() {
		if err := closeSink(); err != nil {
			logger.Log.Warnf("关闭进度推送失败: %v", err)
		}
	}()
	exec := progress.NewExecutor(cfg.Progress.QueueSize, cfg.Progress.Workers)
	defer exec.Close()

	// 5. 初始化 LLM
	completer, err := factory.NewCompleter(ctx, cfg)
	if err != nil {
		logger.Log.Fatalf("LLM 初始化失败: %v", err)
	}

	eng, err := engine.NewEngine(cfg, engine.Deps{
		Store:    store,
		LLM:      completer,
		Fetcher:  fetcher.NewHTTPFetcher(fetcher.OptionsFromConfig(cfg.Scraper)),
		Executor: exec,
		Emitter:  progress.NewEmitter(sink, exec),
	})
	if err != nil {
		logger.Log.Fatalf("引擎初始化失败: %v", err)
	}

	// 6. 执行分析
	report, err := eng.RunAnalysis(ctx, flagURL, flagIter, "")
	if err != nil {
		logger.Log.Fatalf("分析失败: %v", err)
	}

	if flagOut == "" {
		fmt.Println(report)
		return
	}
	if err := writeReport(flagOut, report); err != nil {
		logger.Log.Errorf("写入报告失败: %v", err)
		return
	}
	logger.Log.Infof("报告已写入: %s", flagOut)
}

func newStore(cfg config.DBConfig) (storage.Store, func()) {
	if cfg.Driver == "" {
		logger.Log.Info("未配置数据库信息，使用内存存储")
		return storage.NewMemoryStore(), func() {}
	}
	s, err := storage.NewSQLStore(cfg)
	if err != nil {
		logger.Log.Errorf("无法连接数据库: %v. 将使用内存存储。", err)
		return storage.NewMemoryStore(), func() {}
	}
	logger.Log.Info("已成功连接到数据库")
	return s, func() {
		if err := s.Close(); err != nil {
			logger.Log.Warnf("关闭数据库失败: %v", err)
		}
	}
}

func writeReport(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
