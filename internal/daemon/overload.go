package daemon

import (
	"context"
	"log/slog"
	"time"
)

// Counter reads a monotonically increasing total.
type Counter func() uint64

// OverloadReporterConfig holds configuration for the overload reporter.
type OverloadReporterConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// OverloadReporter periodically logs how many events and commands were
// discarded since the previous report.
type OverloadReporter struct {
	interval time.Duration
	events   Counter
	actions  Counter
	logger   *slog.Logger

	lastEvents  uint64
	lastActions uint64
}

// NewOverloadReporter creates a reporter over the two drop counters.
func NewOverloadReporter(cfg OverloadReporterConfig, events, actions Counter) *OverloadReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &OverloadReporter{
		interval: interval,
		events:   events,
		actions:  actions,
		logger:   logger,
	}
}

// Run reports on every tick. Blocks until ctx is cancelled.
func (r *OverloadReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Debug("overload reporter started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("overload reporter stopped")
			return
		case <-ticker.C:
			r.report()
		}
	}
}

// report logs the drops since the last call. Quiet periods log nothing.
func (r *OverloadReporter) report() (events, actions uint64) {
	totalEvents, totalActions := r.events(), r.actions()
	events, actions = totalEvents-r.lastEvents, totalActions-r.lastActions
	r.lastEvents, r.lastActions = totalEvents, totalActions

	if events == 0 && actions == 0 {
		return 0, 0
	}
	r.logger.Warn("toplevel tracker overloaded",
		"dropped_events", events,
		"dropped_actions", actions,
		"dropped_events_total", totalEvents,
		"dropped_actions_total", totalActions,
		"period", r.interval)
	return events, actions
}
