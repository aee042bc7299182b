package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ExpiryChecker re-validates a session against the clock. It reports true
// when the call revoked the session.
type ExpiryChecker interface {
	CheckExpiry() bool
}

// ExpiryWatcher periodically re-validates the admin session so an idle
// session is locked even when its timer was delayed or lost
type ExpiryWatcher struct {
	checker  ExpiryChecker
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewExpiryWatcher creates a new expiry watcher
func NewExpiryWatcher(checker ExpiryChecker, logger *slog.Logger, interval time.Duration) *ExpiryWatcher {
	return &ExpiryWatcher{
		checker:  checker,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the watcher until Stop is called or ctx is done
func (ew *ExpiryWatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(ew.interval)
	defer ticker.Stop()

	ew.sweep()

	for {
		select {
		case <-ticker.C:
			ew.sweep()
		case <-ew.stopCh:
			ew.logger.Info("expiry watcher stopped")
			return
		case <-ctx.Done():
			ew.logger.Info("expiry watcher context cancelled")
			return
		}
	}
}

func (ew *ExpiryWatcher) sweep() {
	if ew.checker.CheckExpiry() {
		ew.logger.Info("idle admin session locked by expiry watcher")
	}
}

// Stop signals the watcher to stop. Safe to call more than once.
func (ew *ExpiryWatcher) Stop() {
	ew.stopOnce.Do(func() { close(ew.stopCh) })
}
