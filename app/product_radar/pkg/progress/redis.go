package progress

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RedisSink 发布到 Redis 频道
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink 使用已有客户端创建
func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

func (s *RedisSink) Emit(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel, string(data)).Err()
}

// Close 关闭客户端
func (s *RedisSink) Close() error {
	return s.client.Close()
}
