package cache

import (
	"context"
	"fmt"
	"time"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// InvoiceLockerFactory creates invoice lockers based on configuration
type InvoiceLockerFactory struct {
	redisConfig           config.RedisConfig
	lockOptions           LockOptions
	logger                *zap.Logger
	allowInMemoryFallback bool
	pingTimeout           time.Duration
}

// InvoiceLockerFactoryOption is a functional option for configuring the factory
type InvoiceLockerFactoryOption func(*InvoiceLockerFactory)

// WithLogger sets the logger for the factory and the lockers it creates
func WithLogger(logger *zap.Logger) InvoiceLockerFactoryOption {
	return func(f *InvoiceLockerFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory locker
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) InvoiceLockerFactoryOption {
	return func(f *InvoiceLockerFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewInvoiceLockerFactory creates a new factory
func NewInvoiceLockerFactory(redisCfg config.RedisConfig, reminderCfg config.ReminderConfig, opts ...InvoiceLockerFactoryOption) *InvoiceLockerFactory {
	f := &InvoiceLockerFactory{
		redisConfig:           redisCfg,
		lockOptions:           LockOptions{TTL: reminderCfg.LockTTL, Wait: reminderCfg.LockWait},
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		pingTimeout:           5 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisLocker connects to Redis and returns a distributed locker
func (f *InvoiceLockerFactory) CreateRedisLocker() (*RedisInvoiceLocker, error) {
	if !f.redisConfig.Enabled() {
		return nil, fmt.Errorf("redis host not configured")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), f.pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisInvoiceLocker(client, f.lockOptions, f.logger), nil
}

// CreateInMemoryLocker returns a process-local locker
func (f *InvoiceLockerFactory) CreateInMemoryLocker() *InMemoryInvoiceLocker {
	return NewInMemoryInvoiceLocker(f.lockOptions)
}

// CreateLocker prefers Redis and falls back to the in-memory locker when
// allowed. With the fallback, replicas no longer exclude each other.
func (f *InvoiceLockerFactory) CreateLocker() (appinvoicing.InvoiceLocker, error) {
	locker, err := f.CreateRedisLocker()
	if err == nil {
		f.logger.Info("Using Redis invoice locker", zap.String("addr", f.redisConfig.Addr()))
		return locker, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for invoice locking but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory invoice locker. "+
		"Concurrent sends on different instances are not serialized.",
		zap.Error(err))
	return f.CreateInMemoryLocker(), nil
}
