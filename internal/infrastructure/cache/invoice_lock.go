package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrInvoiceLocked is returned when the lock is still held after the wait budget
var ErrInvoiceLocked = errors.New("invoice is locked by another reminder send")

const lockKeyPrefix = "invoicing:reminder-lock:"

// LockOptions bound how long a lock lives and how long Acquire waits for it
type LockOptions struct {
	TTL  time.Duration
	Wait time.Duration
}

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken over is never released by its old owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisInvoiceLocker serializes reminder sends per invoice across instances
type RedisInvoiceLocker struct {
	client *redis.Client
	opts   LockOptions
	logger *zap.Logger
}

// NewRedisInvoiceLocker creates a locker on an existing client
func NewRedisInvoiceLocker(client *redis.Client, opts LockOptions, logger *zap.Logger) *RedisInvoiceLocker {
	return &RedisInvoiceLocker{client: client, opts: opts, logger: logger}
}

// Acquire takes the invoice lock with SET NX PX, polling until opts.Wait elapses
func (l *RedisInvoiceLocker) Acquire(ctx context.Context, tenantID, invoiceID uuid.UUID) (func(), error) {
	key := lockKey(tenantID, invoiceID)
	token := uuid.NewString()

	err := acquireWithBackoff(ctx, l.opts.Wait, func() (bool, error) {
		ok, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
		if err != nil {
			return false, fmt.Errorf("failed to acquire invoice lock: %w", err)
		}
		return ok, nil
	})
	if err != nil {
		return nil, err
	}

	return func() {
		// The request context may already be cancelled when release runs
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("Failed to release invoice lock, it will expire",
				zap.String("key", key),
				zap.Duration("ttl", l.opts.TTL),
				zap.Error(err))
		}
	}, nil
}

func lockKey(tenantID, invoiceID uuid.UUID) string {
	return lockKeyPrefix + tenantID.String() + ":" + invoiceID.String()
}

// acquireWithBackoff calls try until it reports success, fails, or wait elapses.
// A non-positive wait makes a single attempt.
func acquireWithBackoff(ctx context.Context, wait time.Duration, try func() (bool, error)) error {
	if wait <= 0 {
		ok, err := try()
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvoiceLocked
		}
		return nil
	}

	attempt := func() error {
		ok, err := try()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return ErrInvoiceLocked
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = wait
	return backoff.Retry(attempt, backoff.WithContext(b, ctx))
}

var _ appinvoicing.InvoiceLocker = (*RedisInvoiceLocker)(nil)
