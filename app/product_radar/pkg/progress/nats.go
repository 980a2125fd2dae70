package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

type natsPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink 发布到 NATS 主题
type NATSSink struct {
	nc      natsPublisher
	conn    *nats.Conn
	subject string
}

// NewNATSSink 连接 NATS，断线后无限重连
func NewNATSSink(url, subject string) (*NATSSink, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("product-radar-progress"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NATSSink{nc: nc, conn: nc, subject: subject}, nil
}

func (s *NATSSink) Emit(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.nc.Publish(s.subject, data)
}

// Close 刷新并关闭连接
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
