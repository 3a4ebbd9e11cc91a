package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// ============ In-Memory Locker Tests ============

func TestInMemoryInvoiceLocker_ExclusivePerInvoice(t *testing.T) {
	locker := NewInMemoryInvoiceLocker(LockOptions{TTL: time.Minute})
	tenantID, invoiceID := uuid.New(), uuid.New()

	release, err := locker.Acquire(context.Background(), tenantID, invoiceID)
	require.NoError(t, err)

	_, err = locker.Acquire(context.Background(), tenantID, invoiceID)
	assert.ErrorIs(t, err, ErrInvoiceLocked)

	otherRelease, err := locker.Acquire(context.Background(), tenantID, uuid.New())
	require.NoError(t, err, "other invoices are not blocked")
	otherRelease()

	release()
	again, err := locker.Acquire(context.Background(), tenantID, invoiceID)
	require.NoError(t, err)
	again()
	assert.Zero(t, locker.Held())
}

func TestInMemoryInvoiceLocker_WaitsForRelease(t *testing.T) {
	locker := NewInMemoryInvoiceLocker(LockOptions{TTL: time.Minute, Wait: 2 * time.Second})
	tenantID, invoiceID := uuid.New(), uuid.New()

	release, err := locker.Acquire(context.Background(), tenantID, invoiceID)
	require.NoError(t, err)

	time.AfterFunc(50*time.Millisecond, release)

	second, err := locker.Acquire(context.Background(), tenantID, invoiceID)
	require.NoError(t, err)
	second()
}

func TestInMemoryInvoiceLocker_WaitBudgetExceeded(t *testing.T) {
	locker := NewInMemoryInvoiceLocker(LockOptions{TTL: time.Minute, Wait: 100 * time.Millisecond})
	tenantID, invoiceID := uuid.New(), uuid.New()

	release, err := locker.Acquire(context.Background(), tenantID, invoiceID)
	require.NoError(t, err)
	defer release()

	start := time.Now()
	_, err = locker.Acquire(context.Background(), tenantID, invoiceID)
	assert.ErrorIs(t, err, ErrInvoiceLocked)
	assert.Less(t, time.Since(start), time.Second)
}

func TestInMemoryInvoiceLocker_CancelledContext(t *testing.T) {
	locker := NewInMemoryInvoiceLocker(LockOptions{TTL: time.Minute, Wait: 10 * time.Second})
	tenantID, invoiceID := uuid.New(), uuid.New()

	release, err := locker.Acquire(context.Background(), tenantID, invoiceID)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, tenantID, invoiceID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrInvoiceLocked))
}

func TestInMemoryInvoiceLocker_ExpiredLockIsTakenOver(t *testing.T) {
	now := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	locker := NewInMemoryInvoiceLocker(LockOptions{TTL: time.Minute})
	locker.now = func() time.Time { return now }
	tenantID, invoiceID := uuid.New(), uuid.New()

	staleRelease, err := locker.Acquire(context.Background(), tenantID, invoiceID)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	release, err := locker.Acquire(context.Background(), tenantID, invoiceID)
	require.NoError(t, err)

	// The stale owner must not free the new owner's lock
	staleRelease()
	assert.Equal(t, 1, locker.Held())

	release()
	release()
	assert.Zero(t, locker.Held())
}

func TestInMemoryInvoiceLocker_SerializesConcurrentSends(t *testing.T) {
	locker := NewInMemoryInvoiceLocker(LockOptions{TTL: time.Minute, Wait: 5 * time.Second})
	tenantID, invoiceID := uuid.New(), uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), tenantID, invoiceID)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxInside)
}

// ============ Factory Tests ============

func TestInvoiceLockerFactory_FallsBackWithoutRedis(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := NewInvoiceLockerFactory(config.RedisConfig{}, config.ReminderConfig{LockTTL: time.Minute},
		WithLogger(zap.New(core)))

	locker, err := f.CreateLocker()
	require.NoError(t, err)
	assert.IsType(t, &InMemoryInvoiceLocker{}, locker)
	assert.Equal(t, 1, logs.Len())
}

func TestInvoiceLockerFactory_FallbackDisabled(t *testing.T) {
	f := NewInvoiceLockerFactory(config.RedisConfig{}, config.ReminderConfig{}, WithInMemoryFallback(false))

	_, err := f.CreateLocker()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis required")
}

func TestInvoiceLockerFactory_UnreachableRedis(t *testing.T) {
	f := NewInvoiceLockerFactory(config.RedisConfig{Host: "127.0.0.1", Port: 1}, config.ReminderConfig{},
		WithInMemoryFallback(false))
	f.pingTimeout = 200 * time.Millisecond

	_, err := f.CreateLocker()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}

func TestLockKey(t *testing.T) {
	tenantID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	invoiceID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	assert.Equal(t,
		"invoicing:reminder-lock:11111111-1111-1111-1111-111111111111:22222222-2222-2222-2222-222222222222",
		lockKey(tenantID, invoiceID))
}
