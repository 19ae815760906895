// Package connectivity tracks liveness of the telemetry backend on a fixed
// cadence, independent of whether any fetch is in flight.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/floodguard/internal/domain"
	"github.com/couchcryptid/floodguard/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Monitor owns the ConnectivityState. Two writers target it, the periodic
// probe and ForceOffline, and whichever writes last wins.
type Monitor struct {
	probe    Probe
	clock    clockwork.Clock
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu       sync.Mutex
	state    domain.ConnectivityState
	onUpdate func(domain.ConnectivityState)
}

// NewMonitor creates a Monitor that starts online as of the clock's current time.
func NewMonitor(probe Probe, clock clockwork.Clock, interval, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Monitor {
	m := &Monitor{
		probe:    probe,
		clock:    clock,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		metrics:  metrics,
		state:    domain.ConnectivityState{IsOnline: true, LastUpdate: clock.Now()},
	}
	metrics.ConnectivityOnline.Set(1)
	return m
}

// OnUpdate registers a callback invoked after every state write. It is called
// without the monitor's lock held.
func (m *Monitor) OnUpdate(fn func(domain.ConnectivityState)) {
	m.mu.Lock()
	m.onUpdate = fn
	m.mu.Unlock()
}

// State returns the current connectivity state.
func (m *Monitor) State() domain.ConnectivityState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Run probes once per interval until ctx is cancelled. The ticker is stopped
// on return.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("connectivity monitor started", "interval", m.interval)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("connectivity monitor stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.probe.Probe(probeCtx)
	cancel()
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		m.metrics.ConnectivityProbes.WithLabelValues("offline").Inc()
		m.logger.Debug("liveness probe failed", "error", err)
	} else {
		m.metrics.ConnectivityProbes.WithLabelValues("online").Inc()
	}
	m.set(err == nil)
}

// ForceOffline marks the backend unreachable immediately, independent of the tick.
func (m *Monitor) ForceOffline(reason error) {
	m.logger.Warn("connectivity forced offline", "error", reason)
	m.set(false)
}

func (m *Monitor) set(online bool) {
	m.mu.Lock()
	prev := m.state.IsOnline
	m.state = domain.ConnectivityState{IsOnline: online, LastUpdate: m.clock.Now()}
	state := m.state
	fn := m.onUpdate
	m.mu.Unlock()

	if online {
		m.metrics.ConnectivityOnline.Set(1)
	} else {
		m.metrics.ConnectivityOnline.Set(0)
	}
	if prev != online {
		m.logger.Info("connectivity changed", "online", online)
	}
	if fn != nil {
		fn(state)
	}
}
