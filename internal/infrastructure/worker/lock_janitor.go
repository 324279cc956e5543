package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LockPruner is the part of the lock manager the janitor needs
type LockPruner interface {
	Prune(idle time.Duration) int
	Len() int
}

// LockJanitorConfig holds configuration for the lock janitor
type LockJanitorConfig struct {
	Interval time.Duration
	IdleTTL  time.Duration
}

// DefaultLockJanitorConfig returns default configuration
func DefaultLockJanitorConfig() LockJanitorConfig {
	return LockJanitorConfig{
		Interval: time.Minute,
		IdleTTL:  5 * time.Minute,
	}
}

// LockJanitor periodically drops idle per-expense lock entries
type LockJanitor struct {
	config LockJanitorConfig
	locks  LockPruner
	logger *zap.Logger

	mu           sync.Mutex
	cancel       context.CancelFunc
	done         chan struct{}
	isRunning    bool
	prunedCount  int
	lastPrunedAt time.Time
}

// NewLockJanitor creates a new lock janitor
func NewLockJanitor(config LockJanitorConfig, locks LockPruner, logger *zap.Logger) *LockJanitor {
	defaults := DefaultLockJanitorConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = defaults.IdleTTL
	}
	return &LockJanitor{
		config: config,
		locks:  locks,
		logger: logger,
	}
}

// Start begins the sweep loop
func (j *LockJanitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.isRunning {
		return fmt.Errorf("lock janitor already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})
	j.isRunning = true

	j.logger.Info("LockJanitor started",
		zap.Duration("interval", j.config.Interval),
		zap.Duration("idle_ttl", j.config.IdleTTL))

	go j.loop(loopCtx, j.done)
	return nil
}

// Stop terminates the sweep loop and waits for it to exit
func (j *LockJanitor) Stop() error {
	j.mu.Lock()
	if !j.isRunning {
		j.mu.Unlock()
		return nil
	}
	j.isRunning = false
	cancel, done := j.cancel, j.done
	j.mu.Unlock()

	cancel()
	<-done

	j.logger.Info("LockJanitor stopped", zap.Int("pruned_count", j.PrunedCount()))
	return nil
}

// Name returns the worker name for identification
func (j *LockJanitor) Name() string {
	return "LockJanitor"
}

// Sweep prunes idle entries once
func (j *LockJanitor) Sweep() int {
	n := j.locks.Prune(j.config.IdleTTL)

	j.mu.Lock()
	j.prunedCount += n
	j.lastPrunedAt = time.Now()
	j.mu.Unlock()

	if n > 0 {
		j.logger.Debug("Pruned idle expense locks",
			zap.Int("pruned", n),
			zap.Int("remaining", j.locks.Len()))
	}
	return n
}

// PrunedCount returns the total number of entries pruned so far
func (j *LockJanitor) PrunedCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.prunedCount
}

func (j *LockJanitor) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}
