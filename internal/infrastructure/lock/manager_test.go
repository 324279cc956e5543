package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainwf "github.com/garyjia/expense-approval/internal/domain/workflow"
)

func TestManager_SerializesSameExpense(t *testing.T) {
	m := NewManager(time.Second, nil)
	ctx := context.Background()

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, 1)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxSeen)
				if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen)
}

func TestManager_DifferentExpensesDoNotBlock(t *testing.T) {
	m := NewManager(50*time.Millisecond, nil)
	ctx := context.Background()

	unlock1, err := m.Lock(ctx, 1)
	require.NoError(t, err)
	defer unlock1()

	unlock2, err := m.Lock(ctx, 2)
	require.NoError(t, err)
	unlock2()
}

func TestManager_TimeoutIsContention(t *testing.T) {
	m := NewManager(20*time.Millisecond, nil)
	ctx := context.Background()

	unlock, err := m.Lock(ctx, 7)
	require.NoError(t, err)

	_, err = m.Lock(ctx, 7)
	assert.ErrorIs(t, err, domainwf.ErrContention)
	assert.True(t, domainwf.IsTransient(err))

	unlock()
	unlock() // idempotent

	again, err := m.Lock(ctx, 7)
	require.NoError(t, err)
	again()
}

func TestManager_CancelledContext(t *testing.T) {
	m := NewManager(time.Second, nil)

	unlock, err := m.Lock(context.Background(), 3)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = m.Lock(ctx, 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManager_PruneKeepsBusyEntries(t *testing.T) {
	m := NewManager(time.Second, nil)
	now := time.Now()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	held, err := m.Lock(ctx, 1)
	require.NoError(t, err)
	released, err := m.Lock(ctx, 2)
	require.NoError(t, err)
	released()

	now = now.Add(time.Minute)
	assert.Equal(t, 1, m.Prune(30*time.Second))
	assert.Equal(t, 1, m.Len())

	held()
	assert.Equal(t, 0, m.Prune(30*time.Second), "just released entries are not idle yet")

	now = now.Add(time.Minute)
	assert.Equal(t, 1, m.Prune(30*time.Second))
	assert.Equal(t, 0, m.Len())
}
