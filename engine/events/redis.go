package events

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowx-dev/flowx/common/logger"
)

const publishTimeout = 2 * time.Second

// RedisMirror republishes every event frame to a Redis channel so that
// external fanout processes can stream the same events. Publishing is
// best-effort; failures are logged and swallowed.
type RedisMirror struct {
	client  *redis.Client
	channel string
	log     *logger.Logger
}

// NewRedisMirror creates a mirror publishing to the given channel.
func NewRedisMirror(client *redis.Client, channel string, log *logger.Logger) *RedisMirror {
	return &RedisMirror{
		client:  client,
		channel: channel,
		log:     log,
	}
}

// Publish implements Mirror.
func (m *RedisMirror) Publish(frame []byte) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := m.client.Publish(ctx, m.channel, frame).Err(); err != nil {
			m.log.Warn("failed to mirror event to redis", "channel", m.channel, "error", err)
		}
	}()
}
