package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/adapters/notify"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
)

// NotifyFactory creates the pipeline event sink
type NotifyFactory struct {
	cfg    *config.Config
	logger *zap.Logger
	redis  *RedisFactory
}

// NewNotifyFactory creates a new notify factory
func NewNotifyFactory(cfg *config.Config, logger *zap.Logger, redis *RedisFactory) *NotifyFactory {
	return &NotifyFactory{
		cfg:    cfg,
		logger: logger,
		redis:  redis,
	}
}

// CreateNotifier creates a notifier for every configured sink. It returns
// nil when no sink is configured.
func (f *NotifyFactory) CreateNotifier() (core.Notifier, error) {
	notifyCfg, err := f.cfg.GetNotify()
	if err != nil {
		return nil, err
	}

	var sinks notify.Multi
	for _, sink := range notifyCfg.Sinks {
		switch sink {
		case "log":
			sinks = append(sinks, notify.NewLogNotifier(f.logger))
		case "redis":
			client, err := f.redis.Client()
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, notify.NewStreamNotifier(client, notifyCfg.Stream, notifyCfg.MaxLen))
		default:
			return nil, fmt.Errorf("unsupported notify sink: %s", sink)
		}
	}

	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}
