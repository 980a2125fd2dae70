// Package fetcher 负责限速、重试地抓取单个页面。
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/config"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/logger"
)

var (
	// ErrBlocked 被目标站点拦截
	ErrBlocked = errors.New("request was blocked by the server")
	// ErrHTTPStatus 非 2xx 响应
	ErrHTTPStatus = errors.New("unexpected http status")
)

// Fetcher 页面抓取接口
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Options 抓取参数
type Options struct {
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerMinute int
	UserAgent         string
}

// OptionsFromConfig 从配置构造抓取参数
func OptionsFromConfig(cfg config.ScraperConfig) Options {
	return Options{
		Timeout:           cfg.Timeout(),
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        cfg.RetryDelay(),
		RequestsPerMinute: cfg.RequestsPerMinute,
		UserAgent:         cfg.UserAgent,
	}
}

// HTTPFetcher 基于 net/http 的抓取实现
type HTTPFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	opts    Options
	sleep   func(ctx context.Context, d time.Duration) error
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher 创建抓取器，RequestsPerMinute<=0 表示不限速
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		// 最小请求间隔 60/RPM 秒
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
	}

	return &HTTPFetcher{
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
		sleep:   sleepCtx,
	}
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

// Fetch 获取页面 HTML，失败时按 retry_delay*(attempt+1) 线性退避重试
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt < f.opts.MaxRetries; attempt++ {
		body, err := f.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		logger.Log.Warnf("抓取第 %d 次失败 [%s]: %v", attempt+1, url, err)

		if attempt == f.opts.MaxRetries-1 {
			break
		}
		if err := f.sleep(ctx, f.opts.RetryDelay*time.Duration(attempt+1)); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("failed to fetch after %d attempts: %w", f.opts.MaxRetries, lastErr)
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	res, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read body failed: %w", err)
	}
	body := string(data)

	if res.StatusCode == http.StatusServiceUnavailable {
		return "", ErrBlocked
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("%w (status %d): %s", ErrHTTPStatus, res.StatusCode, truncate(body, 200))
	}
	if strings.Contains(strings.ToLower(body), "blocked") {
		return "", ErrBlocked
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
