package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/logger"
)

const defaultAnthropicModel = anthropic.ModelClaudeSonnet4_20250514

// AnthropicCompleter 基于 Anthropic Messages API 的实现
type AnthropicCompleter struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	system    string
	retry     retrier
}

// AnthropicConfig Anthropic 客户端配置
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	System    string
}

// NewAnthropicCompleter 创建 Anthropic 补全器
func NewAnthropicCompleter(cfg AnthropicConfig, limiter *rate.Limiter, opts ...option.RequestOption) *AnthropicCompleter {
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)

	m := anthropic.Model(cfg.Model)
	if m == "" {
		m = defaultAnthropicModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &AnthropicCompleter{
		client:    anthropic.NewClient(reqOpts...),
		model:     m,
		maxTokens: maxTokens,
		system:    cfg.System,
		retry:     newRetrier(limiter),
	}
}

// Complete 发送单轮消息并拼接所有文本块
func (c *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return c.retry.do(ctx, func(ctx context.Context) (string, error) {
		params := anthropic.MessageNewParams{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		}
		if c.system != "" {
			params.System = []anthropic.TextBlockParam{{Text: c.system}}
		}

		resp, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return "", err
		}
		logger.Log.Debugf("Anthropic 用量: input=%d output=%d", resp.Usage.InputTokens, resp.Usage.OutputTokens)

		var sb strings.Builder
		for _, block := range resp.Content {
			if text, ok := block.AsAny().(anthropic.TextBlock); ok {
				sb.WriteString(text.Text)
			}
		}
		return sb.String(), nil
	})
}
