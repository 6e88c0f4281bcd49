package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultChannelPrefix = "realtime:user:"

// RedisNotifier publishes events on a per-user channel so every instance can
// relay them into its local hub.
type RedisNotifier struct {
	client *redis.Client
	hub    *Hub
	prefix string
	log    *zap.Logger

	sub    *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRedisNotifier(client *redis.Client, hub *Hub, prefix string, log *zap.Logger) (*RedisNotifier, error) {
	if client == nil {
		return nil, errors.New("realtime redis client is required")
	}
	if hub == nil {
		return nil, ErrHubUnavailable
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisNotifier{
		client: client,
		hub:    hub,
		prefix: prefix,
		log:    log.Named("realtime.redis"),
	}, nil
}

func (n *RedisNotifier) Channel(userID string) string {
	return n.prefix + strings.TrimSpace(userID)
}

func (n *RedisNotifier) Notify(ctx context.Context, userID, event string, payload any) error {
	msg, err := NewEvent(userID, event, payload, time.Now())
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := n.client.Publish(ctx, n.Channel(userID), data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

// Start subscribes to every user channel and relays messages into the hub.
func (n *RedisNotifier) Start(ctx context.Context) error {
	sub := n.client.PSubscribe(ctx, n.prefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s*: %w", n.prefix, err)
	}

	relayCtx, cancel := context.WithCancel(context.Background())
	n.sub = sub
	n.cancel = cancel
	n.done = make(chan struct{})
	go n.relay(relayCtx, sub.Channel())

	n.log.Info("realtime relay started", zap.String("pattern", n.prefix+"*"))
	return nil
}

func (n *RedisNotifier) Stop(context.Context) error {
	if n.cancel == nil {
		return nil
	}
	n.cancel()
	err := n.sub.Close()
	<-n.done
	return err
}

func (n *RedisNotifier) relay(ctx context.Context, messages <-chan *redis.Message) {
	defer close(n.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			n.dispatch(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (n *RedisNotifier) dispatch(channel string, data []byte) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		n.log.Warn("dropping malformed realtime message", zap.String("channel", channel), zap.Error(err))
		return
	}
	userID := strings.TrimPrefix(channel, n.prefix)
	if event.UserID == "" {
		event.UserID = userID
	}
	n.hub.Publish(userID, event)
}
