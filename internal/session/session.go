// Package session orchestrates device selection, telemetry fetches and the
// immutable snapshot handed to presentation consumers.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/floodguard/internal/domain"
	"github.com/couchcryptid/floodguard/internal/observability"
	"github.com/couchcryptid/floodguard/internal/telemetry"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Fetcher reads the raw record collection for one device.
type Fetcher interface {
	FetchReadings(ctx context.Context, deviceID string) (domain.RawCollection, error)
}

// Connectivity exposes the current liveness signal.
type Connectivity interface {
	State() domain.ConnectivityState
}

// Notifier receives alert tier transitions for the selected device.
type Notifier interface {
	NotifyAlert(ctx context.Context, event domain.AlertEvent) error
}

var errNotStarted = errors.New("session not started")

// fetchTag identifies one issued fetch. Only the most recently issued tag may
// write its result into the store.
type fetchTag struct {
	deviceID  string
	seq       uint64
	requestID uuid.UUID
}

// Option configures a Session.
type Option func(*Session)

// WithNotifier publishes alert tier transitions to n.
func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// WithLocation sets the time zone used for reading time labels.
func WithLocation(loc *time.Location) Option {
	return func(s *Session) { s.loc = loc }
}

// WithClock sets the clock used to stamp alert events.
func WithClock(c clockwork.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// Session holds the selected device, the per-device store and the
// connectivity signal. All mutation goes through SelectDevice, Refresh and
// fetch resolution; consumers only ever see Snapshots.
type Session struct {
	catalog  domain.Catalog
	fetcher  Fetcher
	store    *telemetry.Store
	conn     Connectivity
	notifier Notifier
	logger   *slog.Logger
	metrics  *observability.Metrics
	loc      *time.Location
	clock    clockwork.Clock

	mu       sync.Mutex
	ctx      context.Context
	selected string
	active   fetchTag
	seq      uint64
	tiers    map[string]domain.AlertTier

	resolved atomic.Bool

	pubMu    sync.Mutex
	pending  []domain.AlertEvent
	draining bool
	inflight sync.WaitGroup

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

// New creates a Session. The store should be built with the connectivity
// monitor as its offline signaler so fetch failures force the signal offline.
func New(catalog domain.Catalog, fetcher Fetcher, store *telemetry.Store, conn Connectivity, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Session {
	s := &Session{
		catalog: catalog,
		fetcher: fetcher,
		store:   store,
		conn:    conn,
		logger:  logger,
		metrics: metrics,
		loc:     time.Local,
		clock:   clockwork.NewRealClock(),
		tiers:   make(map[string]domain.AlertTier),
		subs:    make(map[chan struct{}]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the session to ctx and selects deviceID, or the catalog default
// when deviceID is empty. Once ctx is done, outstanding fetch results are ignored.
func (s *Session) Start(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		deviceID = s.catalog.Default().ID
	}
	if _, ok := s.catalog.Lookup(deviceID); !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownDevice, deviceID)
	}

	s.mu.Lock()
	if s.ctx != nil {
		s.mu.Unlock()
		return errors.New("session already started")
	}
	s.ctx = ctx
	s.selected = deviceID
	s.issueLocked(deviceID)
	s.mu.Unlock()

	s.logger.Info("session started", "device_id", deviceID)
	s.notify()
	return nil
}

// SelectDevice switches the visible series to id and fetches it. Selecting
// the current device is a no-op; use Refresh to re-fetch.
func (s *Session) SelectDevice(id string) error {
	if _, ok := s.catalog.Lookup(id); !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownDevice, id)
	}

	s.mu.Lock()
	if s.ctx == nil {
		s.mu.Unlock()
		return errNotStarted
	}
	if id == s.selected {
		s.mu.Unlock()
		return nil
	}
	prev := s.selected
	s.selected = id
	s.issueLocked(id)
	s.mu.Unlock()

	s.logger.Info("device selected", "device_id", id, "previous", prev)
	s.notify()
	return nil
}

// Refresh re-issues a fetch for the selected device.
func (s *Session) Refresh() error {
	s.mu.Lock()
	if s.ctx == nil {
		s.mu.Unlock()
		return errNotStarted
	}
	s.issueLocked(s.selected)
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Session) issueLocked(id string) {
	s.seq++
	tag := fetchTag{deviceID: id, seq: s.seq, requestID: uuid.New()}
	s.active = tag
	s.store.BeginFetch(id)

	s.inflight.Add(1)
	go s.fetch(s.ctx, tag)
}

func (s *Session) fetch(ctx context.Context, tag fetchTag) {
	defer s.inflight.Done()

	s.logger.Debug("fetch issued", "device_id", tag.deviceID, "request_id", tag.requestID)
	start := time.Now()
	raw, err := s.fetcher.FetchReadings(ctx, tag.deviceID)
	var series domain.Series
	if err == nil {
		series, err = domain.NormalizeIn(raw, s.loc)
	}
	s.metrics.FetchDuration.Observe(time.Since(start).Seconds())

	s.resolve(ctx, tag, series, err)
}

// resolve routes a fetch result into the store, unless a newer fetch has
// been issued since or the session has been torn down.
func (s *Session) resolve(ctx context.Context, tag fetchTag, series domain.Series, fetchErr error) {
	s.mu.Lock()
	if tag != s.active || ctx.Err() != nil {
		if s.selected != tag.deviceID {
			s.store.AbandonFetch(tag.deviceID)
		}
		s.mu.Unlock()

		s.metrics.Fetches.WithLabelValues("discarded").Inc()
		s.logger.Debug("stale fetch result discarded",
			"device_id", tag.deviceID,
			"request_id", tag.requestID,
			"error", fetchErr,
		)
		return
	}

	if fetchErr != nil {
		s.store.FailFetch(tag.deviceID, fetchErr)
		s.metrics.Fetches.WithLabelValues("failure").Inc()
		s.logger.Error("telemetry fetch failed",
			"device_id", tag.deviceID,
			"request_id", tag.requestID,
			"error", fetchErr,
		)
	} else {
		s.store.CompleteFetch(tag.deviceID, series)
		s.metrics.Fetches.WithLabelValues("success").Inc()
		s.metrics.ReadingsPerFetch.Observe(float64(len(series)))
		if event := s.trackTierLocked(tag.deviceID, series); event != nil {
			s.enqueueLocked(ctx, *event)
		}
	}
	s.resolved.Store(true)
	s.mu.Unlock()

	s.notify()
}

// enqueueLocked queues an alert event in resolution order. A single drain
// goroutine runs at a time, so the notifier sees one device's transitions in
// the order they happened even when a publish is slow. Caller holds s.mu.
func (s *Session) enqueueLocked(ctx context.Context, event domain.AlertEvent) {
	s.pubMu.Lock()
	s.pending = append(s.pending, event)
	start := !s.draining
	s.draining = true
	s.pubMu.Unlock()

	if start {
		s.inflight.Add(1)
		go s.drain(ctx)
	}
}

func (s *Session) drain(ctx context.Context) {
	defer s.inflight.Done()
	for {
		s.pubMu.Lock()
		if len(s.pending) == 0 {
			s.draining = false
			s.pubMu.Unlock()
			return
		}
		event := s.pending[0]
		s.pending = s.pending[1:]
		s.pubMu.Unlock()

		s.publish(ctx, event)
	}
}

// trackTierLocked records the device's tier after a successful fetch and
// returns an event when it differs from the last one seen. Devices start NORMAL.
func (s *Session) trackTierLocked(id string, series domain.Series) *domain.AlertEvent {
	tier := series.Tier()
	s.metrics.AlertTier.WithLabelValues(id).Set(float64(tier))

	prev := s.tiers[id]
	s.tiers[id] = tier
	if prev == tier {
		return nil
	}

	desc, _ := s.catalog.Lookup(id)
	event := &domain.AlertEvent{
		DeviceID:   id,
		DeviceName: desc.Name,
		Location:   desc.Location,
		Previous:   prev,
		Current:    tier,
		Level:      series.LatestLevel(),
		ObservedAt: s.clock.Now(),
	}
	if r, ok := series.Latest(); ok {
		event.ReadingTimestamp = r.Timestamp
	}
	return event
}

func (s *Session) publish(ctx context.Context, event domain.AlertEvent) {
	log := s.logger.With("device_id", event.DeviceID, "previous", event.Previous, "current", event.Current)
	if event.Escalated() {
		log.Warn("alert level raised", "level", event.Level)
	} else {
		log.Info("alert level lowered", "level", event.Level)
	}

	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyAlert(ctx, event); err != nil {
		s.metrics.AlertsPublished.WithLabelValues("error").Inc()
		log.Error("publish alert failed", "error", err)
		return
	}
	s.metrics.AlertsPublished.WithLabelValues("success").Inc()
}

// Snapshot returns the current immutable view of the selected device.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	id := s.selected
	entry := s.store.Entry(id)
	s.mu.Unlock()

	desc, _ := s.catalog.Lookup(id)
	snap := Snapshot{
		Device:       desc,
		Readings:     entry.Series,
		AlertLevel:   entry.Series.Tier(),
		LatestLevel:  entry.Series.LatestLevel(),
		Lifecycle:    entry.Lifecycle,
		Connectivity: s.conn.State(),
		UpdatedAt:    entry.UpdatedAt,
	}
	if entry.Err != nil {
		snap.Error = entry.Err.Error()
	}
	return snap
}

// Catalog returns the static device catalog.
func (s *Session) Catalog() domain.Catalog {
	return s.catalog
}

// CheckReadiness returns nil once at least one fetch has resolved, successfully or not.
func (s *Session) CheckReadiness(_ context.Context) error {
	if !s.resolved.Load() {
		return errors.New("no telemetry fetch has resolved yet")
	}
	return nil
}

// Wait blocks until all issued fetches have returned and their alert events
// have been handed to the notifier.
func (s *Session) Wait() {
	s.inflight.Wait()
}

// ConnectivityChanged is the connectivity monitor's update hook.
func (s *Session) ConnectivityChanged(domain.ConnectivityState) {
	s.notify()
}

// Subscribe returns a channel that receives a value whenever the snapshot
// may have changed. Notifications coalesce; call cancel to unsubscribe.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
		})
	}
}

func (s *Session) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
