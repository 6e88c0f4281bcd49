package realtime

import (
	"context"
	"errors"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/perkhub/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("realtime",
	fx.Provide(NewHub),
	fx.Provide(NewNotifier),
)

// NewNotifier selects the broker configured by REALTIME_BROKER.
func NewNotifier(lc fx.Lifecycle, cfg config.Config, hub *Hub, log *zap.Logger) (Notifier, error) {
	if cfg.Realtime.Broker != config.BrokerRedis {
		return hub, nil
	}

	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil, errors.New("realtime redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	notifier, err := NewRedisNotifier(client, hub, cfg.Realtime.ChannelPrefix, log)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: notifier.Start,
		OnStop: func(ctx context.Context) error {
			stopErr := notifier.Stop(ctx)
			return errors.Join(stopErr, client.Close())
		},
	})
	return notifier, nil
}
