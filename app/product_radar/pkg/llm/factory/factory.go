package factory

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/config"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/llm"
)

const systemPrompt = "You are a professional e-commerce product analyst. Answer in English with well structured Markdown."

// NewCompleter 根据配置创建 LLM 补全器
func NewCompleter(ctx context.Context, cfg *config.Config) (llm.Completer, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("llm api key is missing")
	}
	limiter := llm.NewLimiter(cfg.Concurrency.RPM, cfg.Concurrency.QPS)

	switch cfg.LLM.Provider {
	case "", "openai":
		maxTokens := cfg.LLM.MaxTokens
		chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   cfg.LLM.BaseURL,
			APIKey:    cfg.LLM.APIKey,
			Model:     cfg.LLM.Model,
			MaxTokens: &maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("LLM 初始化失败: %w", err)
		}
		return llm.NewChatModelCompleter(chatModel, systemPrompt, limiter), nil

	case "anthropic":
		return llm.NewAnthropicCompleter(llm.AnthropicConfig{
			APIKey:    cfg.LLM.APIKey,
			BaseURL:   cfg.LLM.BaseURL,
			Model:     cfg.LLM.Model,
			MaxTokens: cfg.LLM.MaxTokens,
			System:    systemPrompt,
		}, limiter), nil

	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLM.Provider)
	}
}
