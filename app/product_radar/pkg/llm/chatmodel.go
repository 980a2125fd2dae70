package llm

import (
	"context"

	"github.com/bytedance/gg/gson"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/logger"
)

// ChatModelCompleter 基于 eino ChatModel 的实现，兼容所有 OpenAI 协议的服务
type ChatModelCompleter struct {
	cm     model.BaseChatModel
	system string
	retry  retrier
}

// NewChatModelCompleter 创建 ChatModel 补全器，system 为空时不发送系统消息
func NewChatModelCompleter(cm model.BaseChatModel, system string, limiter *rate.Limiter) *ChatModelCompleter {
	return &ChatModelCompleter{cm: cm, system: system, retry: newRetrier(limiter)}
}

// Complete 发送单轮对话并返回模型文本
func (c *ChatModelCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return c.retry.do(ctx, func(ctx context.Context) (string, error) {
		var messages []*schema.Message
		if c.system != "" {
			messages = append(messages, &schema.Message{Role: schema.System, Content: c.system})
		}
		messages = append(messages, &schema.Message{Role: schema.User, Content: prompt})

		resp, err := c.cm.Generate(ctx, messages)
		if err != nil {
			return "", err
		}
		logger.Log.Debugf("LLM 响应: %s", gson.ToString(resp))
		return resp.Content, nil
	})
}
