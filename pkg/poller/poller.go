// Package poller refreshes server status on a fixed interval.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/modoterra/svconsole/pkg/core"
)

// DefaultInterval is the status refresh period.
const DefaultInterval = 3 * time.Second

// StatusSource fetches one status report.
type StatusSource interface {
	Status(ctx context.Context) (core.StatusReport, error)
}

// ResultFunc receives every poll outcome, successful or not.
type ResultFunc func(core.StatusReport, error)

// PollLoop fetches status every interval and hands the outcome to a callback.
type PollLoop struct {
	source   StatusSource
	interval time.Duration
	logger   *slog.Logger
	onResult ResultFunc
}

// NewPollLoop creates a poll loop. A non-positive interval means DefaultInterval.
func NewPollLoop(src StatusSource, interval time.Duration, logger *slog.Logger, onResult ResultFunc) *PollLoop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PollLoop{source: src, interval: interval, logger: logger, onResult: onResult}
}

// Interval returns the refresh period.
func (pl *PollLoop) Interval() time.Duration {
	return pl.interval
}

// Run polls once immediately and then on every tick. Blocks until ctx is cancelled.
func (pl *PollLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(pl.interval)
	defer ticker.Stop()

	pl.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pl.Tick(ctx)
		}
	}
}

// Tick performs a single status fetch.
func (pl *PollLoop) Tick(ctx context.Context) {
	rep, err := pl.source.Status(ctx)
	if ctx.Err() != nil {
		// Shutting down; the outcome is meaningless.
		return
	}
	if err != nil {
		pl.logger.Debug("status poll failed", "seq", rep.Seq, "err", err)
	} else {
		pl.logger.Debug("status polled", "seq", rep.Seq, "ok", rep.OK)
	}
	if pl.onResult != nil {
		pl.onResult(rep, err)
	}
}
