package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockWorker struct {
	mock.Mock
}

func (m *mockWorker) Start(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockWorker) Stop() error                     { return m.Called().Error(0) }
func (m *mockWorker) Name() string                    { return m.Called().String(0) }

func TestWorkerManager_Lifecycle(t *testing.T) {
	manager := NewWorkerManager(zap.NewNop())

	ok := &mockWorker{}
	ok.On("Name").Return("ok")
	ok.On("Start", mock.Anything).Return(nil)
	ok.On("Stop").Return(nil)

	broken := &mockWorker{}
	broken.On("Name").Return("broken")
	broken.On("Start", mock.Anything).Return(errors.New("no"))
	broken.On("Stop").Return(errors.New("still no"))

	manager.Register(ok)
	manager.Register(broken)
	assert.Equal(t, 2, manager.GetWorkerCount())

	require.NoError(t, manager.StartAll(context.Background()))
	assert.True(t, manager.IsRunning())
	assert.Error(t, manager.StartAll(context.Background()))

	err := manager.StopAll()
	assert.Error(t, err)
	assert.False(t, manager.IsRunning())
	assert.NoError(t, manager.StopAll())

	ok.AssertExpectations(t)
	broken.AssertExpectations(t)
}

type fakePruner struct {
	mu     sync.Mutex
	calls  int
	idle   time.Duration
	result int
}

func (p *fakePruner) Prune(idle time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.idle = idle
	return p.result
}

func (p *fakePruner) Len() int { return 0 }

func (p *fakePruner) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestLockJanitor_SweepsPeriodically(t *testing.T) {
	pruner := &fakePruner{result: 2}
	janitor := NewLockJanitor(LockJanitorConfig{Interval: 5 * time.Millisecond, IdleTTL: time.Minute}, pruner, zap.NewNop())

	require.NoError(t, janitor.Start(context.Background()))
	assert.Error(t, janitor.Start(context.Background()))

	assert.Eventually(t, func() bool { return pruner.Calls() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, janitor.Stop())
	require.NoError(t, janitor.Stop())

	assert.Equal(t, time.Minute, pruner.idle)
	assert.GreaterOrEqual(t, janitor.PrunedCount(), 4)
	assert.Equal(t, "LockJanitor", janitor.Name())
}

func TestLockJanitor_Defaults(t *testing.T) {
	janitor := NewLockJanitor(LockJanitorConfig{}, &fakePruner{}, zap.NewNop())
	assert.Equal(t, DefaultLockJanitorConfig(), janitor.config)
}
