package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 项目配置结构体
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Scraper     ScraperConfig     `yaml:"scraper"`
	Workflow    WorkflowConfig    `yaml:"workflow"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	DB          DBConfig          `yaml:"db"`
	Progress    ProgressConfig    `yaml:"progress"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	Provider  string `yaml:"provider"` // openai or anthropic
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// ScraperConfig 页面抓取配置
type ScraperConfig struct {
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	MaxRetries        int     `yaml:"max_retries"`
	RetryDelaySeconds float64 `yaml:"retry_delay_seconds"`
	RequestsPerMinute int     `yaml:"requests_per_minute"`
	UserAgent         string  `yaml:"user_agent"`
	CompetitorFanout  int     `yaml:"competitor_fanout"`
	// CompetitorDetails 为 nil 时默认开启
	CompetitorDetails *bool `yaml:"competitor_details"`
}

// Timeout 单次请求超时
func (s ScraperConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// RetryDelay 重试基础间隔
func (s ScraperConfig) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelaySeconds * float64(time.Second))
}

// DetailsEnabled 是否抓取竞品详情页
func (s ScraperConfig) DetailsEnabled() bool {
	return s.CompetitorDetails == nil || *s.CompetitorDetails
}

// WorkflowConfig 流程控制配置
type WorkflowConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

// DBConfig 数据库相关配置，Driver 为空时使用内存存储
type DBConfig struct {
	Driver   string `yaml:"driver"` // postgres or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Path     string `yaml:"path"` // sqlite 文件路径
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig LLM 调用并发控制
type ConcurrencyConfig struct {
	QPS int `yaml:"qps"`
	RPM int `yaml:"rpm"`
}

// ProgressConfig 进度推送配置
type ProgressConfig struct {
	NATS      NATSConfig  `yaml:"nats"`
	Redis     RedisConfig `yaml:"redis"`
	QueueSize int         `yaml:"queue_size"`
	Workers   int         `yaml:"workers"`
}

// NATSConfig NATS 推送配置
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// RedisConfig Redis 推送配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

const (
	DefaultMaxIterations = 6
	defaultUserAgent     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"
)

// LoadConfig 从指定路径加载配置
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults 填充零值字段
func (c *Config) ApplyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 4096
	}
	if c.Scraper.TimeoutSeconds == 0 {
		c.Scraper.TimeoutSeconds = 30
	}
	if c.Scraper.MaxRetries == 0 {
		c.Scraper.MaxRetries = 3
	}
	if c.Scraper.RetryDelaySeconds == 0 {
		c.Scraper.RetryDelaySeconds = 1.0
	}
	if c.Scraper.RequestsPerMinute == 0 {
		c.Scraper.RequestsPerMinute = 10
	}
	if c.Scraper.UserAgent == "" {
		c.Scraper.UserAgent = defaultUserAgent
	}
	if c.Scraper.CompetitorFanout == 0 {
		c.Scraper.CompetitorFanout = 5
	}
	if c.Workflow.MaxIterations == 0 {
		c.Workflow.MaxIterations = DefaultMaxIterations
	}
	if c.Concurrency.RPM == 0 {
		c.Concurrency.RPM = 60
	}
	if c.Concurrency.QPS == 0 {
		c.Concurrency.QPS = 1
	}
	if c.Progress.NATS.Subject == "" {
		c.Progress.NATS.Subject = "product_radar.progress"
	}
	if c.Progress.Redis.Channel == "" {
		c.Progress.Redis.Channel = "product_radar:progress"
	}
	if c.Progress.QueueSize == 0 {
		c.Progress.QueueSize = 64
	}
	if c.Progress.Workers == 0 {
		c.Progress.Workers = 2
	}
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider: %s", c.LLM.Provider)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm api key is missing")
	}
	switch c.DB.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown db driver: %s", c.DB.Driver)
	}
	if c.DB.Driver == "sqlite" && c.DB.Path == "" {
		return fmt.Errorf("sqlite path is missing")
	}
	return nil
}
