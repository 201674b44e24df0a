package stops

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var errEmptyCatalog = errors.New("stop catalog has no usable date")

// Warmer loads the catalog at startup and refreshes it ahead of expiry, so
// requests rarely wait on the upstream. Failed loads are retried with
// exponential backoff.
type Warmer struct {
	cache  *Cache
	lead   time.Duration
	logger *slog.Logger

	newBackOff func() backoff.BackOff
}

// NewWarmer creates a warmer that refreshes lead before each snapshot expires.
func NewWarmer(cache *Cache, lead time.Duration, logger *slog.Logger) *Warmer {
	if lead <= 0 {
		lead = 10 * time.Minute
	}
	return &Warmer{
		cache:  cache,
		lead:   lead,
		logger: logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 2 * time.Second
			b.MaxInterval = 2 * time.Minute
			b.MaxElapsedTime = 0 // retry until ctx is cancelled
			return b
		},
	}
}

// Run blocks until ctx is cancelled.
func (w *Warmer) Run(ctx context.Context) {
	w.logger.Info("stop catalog warmer started", "lead", w.lead)
	for {
		snap, err := w.warm(ctx)
		if err != nil {
			// Only ctx cancellation ends the retry loop.
			w.logger.Info("stop catalog warmer stopped")
			return
		}

		wait := time.Until(snap.ExpiresAt) - w.lead
		if wait < time.Minute {
			wait = time.Minute
		}
		w.logger.Debug("next stop catalog refresh scheduled", "in", wait.Round(time.Second))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			w.logger.Info("stop catalog warmer stopped")
			return
		case <-t.C:
		}
	}
}

func (w *Warmer) warm(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot
	op := func() error {
		s, err := w.cache.Refresh(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		if s == nil {
			return errEmptyCatalog
		}
		snap = s
		return nil
	}
	notify := func(err error, next time.Duration) {
		w.logger.Warn("stop catalog warm-up failed, retrying", "error", err, "in", next.Round(time.Millisecond))
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(w.newBackOff(), ctx), notify); err != nil {
		return nil, err
	}
	return snap, nil
}
