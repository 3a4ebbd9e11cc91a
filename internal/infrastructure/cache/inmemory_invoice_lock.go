package cache

import (
	"context"
	"sync"
	"time"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/google/uuid"
)

type heldLock struct {
	token     string
	expiresAt time.Time
}

// InMemoryInvoiceLocker serializes reminder sends per invoice within one process.
// Suitable for single-instance deployments and tests; it does not coordinate
// across replicas.
type InMemoryInvoiceLocker struct {
	mu    sync.Mutex
	locks map[string]heldLock
	opts  LockOptions
	now   func() time.Time
}

// NewInMemoryInvoiceLocker creates an in-memory locker
func NewInMemoryInvoiceLocker(opts LockOptions) *InMemoryInvoiceLocker {
	return &InMemoryInvoiceLocker{
		locks: make(map[string]heldLock),
		opts:  opts,
		now:   time.Now,
	}
}

// Acquire takes the invoice lock, polling until opts.Wait elapses. An expired
// lock is taken over.
func (l *InMemoryInvoiceLocker) Acquire(ctx context.Context, tenantID, invoiceID uuid.UUID) (func(), error) {
	key := lockKey(tenantID, invoiceID)
	token := uuid.NewString()

	err := acquireWithBackoff(ctx, l.opts.Wait, func() (bool, error) {
		return l.tryLock(key, token), nil
	})
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.unlock(key, token) })
	}, nil
}

func (l *InMemoryInvoiceLocker) tryLock(key, token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.locks[key]; ok && now.Before(held.expiresAt) {
		return false
	}
	l.locks[key] = heldLock{token: token, expiresAt: now.Add(l.opts.TTL)}
	return true
}

func (l *InMemoryInvoiceLocker) unlock(key, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.locks[key]; ok && held.token == token {
		delete(l.locks, key)
	}
}

// Held returns the number of unexpired locks
func (l *InMemoryInvoiceLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for _, held := range l.locks {
		if now.Before(held.expiresAt) {
			n++
		}
	}
	return n
}

var _ appinvoicing.InvoiceLocker = (*InMemoryInvoiceLocker)(nil)
