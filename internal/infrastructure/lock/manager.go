// Package lock serializes workflow mutations per expense.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/garyjia/expense-approval/internal/application/port"
	domainwf "github.com/garyjia/expense-approval/internal/domain/workflow"
)

// DefaultTimeout bounds how long a caller waits for an expense lock
const DefaultTimeout = 3 * time.Second

type entry struct {
	sem      *semaphore.Weighted
	refs     int // holders plus waiters
	lastUsed time.Time
}

// Manager hands out one weighted semaphore per expense
type Manager struct {
	mu      sync.Mutex
	entries map[int64]*entry
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewManager creates a lock manager; timeout <= 0 uses DefaultTimeout
func NewManager(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		entries: make(map[int64]*entry),
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Lock acquires the expense's lock, waiting at most the configured timeout.
// A timeout yields ErrContention; cancellation of ctx yields ctx.Err().
func (m *Manager) Lock(ctx context.Context, expenseID int64) (func(), error) {
	e := m.acquireEntry(expenseID)

	waitCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := e.sem.Acquire(waitCtx, 1); err != nil {
		m.releaseEntry(e)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.logger.Warn("Expense lock timed out",
			zap.Int64("expense_id", expenseID),
			zap.Duration("timeout", m.timeout))
		return nil, fmt.Errorf("%w: expense %d is locked by another operation", domainwf.ErrContention, expenseID)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			m.releaseEntry(e)
		})
	}, nil
}

// Prune drops entries nobody holds or waits on that have been idle for at least idle.
// It returns the number of entries removed.
func (m *Manager) Prune(idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-idle)
	removed := 0
	for id, e := range m.entries {
		if e.refs == 0 && !e.lastUsed.After(cutoff) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked expenses
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Manager) acquireEntry(expenseID int64) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[expenseID]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		m.entries[expenseID] = e
	}
	e.refs++
	e.lastUsed = m.now()
	return e
}

func (m *Manager) releaseEntry(e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	e.lastUsed = m.now()
}

var _ port.ExpenseLocker = (*Manager)(nil)
