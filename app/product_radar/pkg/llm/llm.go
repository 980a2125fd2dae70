// Package llm 封装大模型调用，对上层只暴露 prompt 进、文本出的 Completer。
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/logger"
)

// ErrEmptyResponse 模型返回了空文本
var ErrEmptyResponse = errors.New("llm returned empty response")

// Completer 文本补全接口
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const (
	maxRetries = 3
	baseDelay  = 2 * time.Second
)

// retrier 限流等待并在 429 时指数退避
type retrier struct {
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
}

func newRetrier(limiter *rate.Limiter) retrier {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return retrier{limiter: limiter, sleep: sleepCtx}
}

func (r retrier) do(ctx context.Context, call func(ctx context.Context) (string, error)) (string, error) {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", err
		}

		text, err := call(ctx)
		if err != nil {
			if isRateLimited(err) && i < maxRetries {
				lastErr = err
				delay := baseDelay * time.Duration(1<<i)
				logger.Log.Warnf("LLM 触发限流，%v 后重试 (%d/%d)", delay, i+1, maxRetries)
				if err := r.sleep(ctx, delay); err != nil {
					return "", err
				}
				continue
			}
			return "", err
		}

		text = strings.TrimSpace(text)
		if text == "" {
			return "", ErrEmptyResponse
		}
		return text, nil
	}
	return "", lastErr
}

func isRateLimited(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "too many requests")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NewLimiter 按每分钟请求数与突发量创建限流器
func NewLimiter(rpm, burst int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
}
