// Package worker runs background jobs against the domain store.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IliyaBaranov/agora/internal/logging"
)

const (
	// DefaultRefreshInterval is used when no interval is configured
	DefaultRefreshInterval = 30 * time.Second
	MinRefreshInterval     = 5 * time.Second
	MaxRefreshInterval     = 10 * time.Minute

	stopTimeout = 30 * time.Second
)

// Refresher re-fetches the full session state
type Refresher interface {
	Bootstrap(ctx context.Context) error
}

// RefreshWorker periodically replaces local state with the backend's. It is
// the only reconciliation for optimistic changes the backend silently dropped.
type RefreshWorker struct {
	store    Refresher
	interval time.Duration
	logger   *logging.Logger

	mu          sync.RWMutex
	running     bool
	stopCh      chan struct{}
	doneCh      chan struct{}
	lastRefresh time.Time
	lastErr     error
	refreshes   int
	failures    int
}

// RefreshWorkerConfig holds configuration for a refresh worker
type RefreshWorkerConfig struct {
	Store    Refresher
	Interval time.Duration // clamped to [MinRefreshInterval, MaxRefreshInterval]
	Logger   *logging.Logger
}

// RefreshWorkerStatus is a point-in-time view of the worker
type RefreshWorkerStatus struct {
	Running         bool      `json:"running"`
	LastRefresh     time.Time `json:"lastRefresh"`
	LastError       string    `json:"lastError,omitempty"`
	Refreshes       int       `json:"refreshes"`
	Failures        int       `json:"failures"`
	IntervalSeconds int       `json:"intervalSeconds"`
}

// NewRefreshWorker creates a new refresh worker
func NewRefreshWorker(cfg *RefreshWorkerConfig) (*RefreshWorker, error) {
	if cfg == nil || cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &RefreshWorker{
		store:    cfg.Store,
		interval: clampInterval(cfg.Interval),
		logger:   logger.WithComponent("refresh_worker"),
	}, nil
}

func clampInterval(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultRefreshInterval
	case d < MinRefreshInterval:
		return MinRefreshInterval
	case d > MaxRefreshInterval:
		return MaxRefreshInterval
	}
	return d
}

// Interval returns the effective refresh interval
func (w *RefreshWorker) Interval() time.Duration {
	return w.interval
}

// Start launches the refresh loop
func (w *RefreshWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("refresh worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	w.logger.WithField("interval", w.interval.String()).Info("Starting refresh worker")
	go w.loop(ctx, stopCh, doneCh)
	return nil
}

// Stop signals the loop and waits for it to finish
func (w *RefreshWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("refresh worker is not running")
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)

	var err error
	select {
	case <-doneCh:
		w.logger.Info("Refresh worker stopped gracefully")
	case <-ctx.Done():
		err = ctx.Err()
	case <-time.After(stopTimeout):
		err = fmt.Errorf("stop timeout")
	}
	if err != nil {
		w.logger.WithError(err).Warn("Refresh worker stop timed out")
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return err
}

func (w *RefreshWorker) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Context cancelled, refresh loop exiting")
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return
		case <-stopCh:
			return
		case <-ticker.C:
			// failures are recorded; the next tick tries again
			_ = w.RefreshNow(ctx)
		}
	}
}

// RefreshNow runs one refresh outside the schedule
func (w *RefreshWorker) RefreshNow(ctx context.Context) error {
	err := w.store.Bootstrap(ctx)

	w.mu.Lock()
	w.lastRefresh = time.Now()
	w.lastErr = err
	if err != nil {
		w.failures++
	} else {
		w.refreshes++
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.WithError(err).Warn("Refresh failed")
	}
	return err
}

// GetStatus returns the current worker status
func (w *RefreshWorker) GetStatus() *RefreshWorkerStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	status := &RefreshWorkerStatus{
		Running:         w.running,
		LastRefresh:     w.lastRefresh,
		Refreshes:       w.refreshes,
		Failures:        w.failures,
		IntervalSeconds: int(w.interval.Seconds()),
	}
	if w.lastErr != nil {
		status.LastError = w.lastErr.Error()
	}
	return status
}
