package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/config"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/logger"
)

// NewSink 根据配置组合输出端，日志输出端始终启用
func NewSink(ctx context.Context, cfg config.ProgressConfig) (Sink, func() error, error) {
	sinks := MultiSink{LogSink{}}
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	if cfg.NATS.URL != "" {
		s, err := NewNATSSink(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("连接 NATS 失败: %w", err)
		}
		sinks = append(sinks, s)
		closers = append(closers, s.Close)
		logger.Log.Infof("进度推送到 NATS 主题 %s", cfg.NATS.Subject)
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			closeAll()
			return nil, nil, fmt.Errorf("连接 Redis 失败: %w", err)
		}
		s := NewRedisSink(client, cfg.Redis.Channel)
		sinks = append(sinks, s)
		closers = append(closers, s.Close)
		logger.Log.Infof("进度推送到 Redis 频道 %s", cfg.Redis.Channel)
	}

	return sinks, closeAll, nil
}
