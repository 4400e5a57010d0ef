package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/config"
)

// RedisFactory lazily connects the Redis client shared by the redis cache
// and the stream notifier
type RedisFactory struct {
	cfg       *config.Config
	logger    *zap.Logger
	resources *Resources

	once   sync.Once
	client *redis.Client
	err    error
}

// NewRedisFactory creates a new Redis factory
func NewRedisFactory(cfg *config.Config, logger *zap.Logger, resources *Resources) *RedisFactory {
	return &RedisFactory{
		cfg:       cfg,
		logger:    logger,
		resources: resources,
	}
}

// Client returns the shared client, connecting on first use
func (f *RedisFactory) Client() (*redis.Client, error) {
	f.once.Do(func() {
		f.client, f.err = f.connect()
	})
	return f.client, f.err
}

func (f *RedisFactory) connect() (*redis.Client, error) {
	opt, err := redis.ParseURL(f.cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opt.Addr, err)
	}

	f.resources.Add(client.Close)
	f.logger.Info("Connected to Redis", zap.String("addr", opt.Addr), zap.Int("db", opt.DB))
	return client, nil
}
