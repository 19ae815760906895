//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/floodguard/internal/adapter/firebase"
	"github.com/couchcryptid/floodguard/internal/adapter/kafka"
	"github.com/couchcryptid/floodguard/internal/config"
	"github.com/couchcryptid/floodguard/internal/connectivity"
	"github.com/couchcryptid/floodguard/internal/domain"
	"github.com/couchcryptid/floodguard/internal/observability"
	"github.com/couchcryptid/floodguard/internal/session"
	"github.com/couchcryptid/floodguard/internal/telemetry"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAlertTopic = "test-flood-alerts"

type alertMessage struct {
	Event   domain.AlertEvent
	Key     string
	Headers map[string]string
}

func readAlert(ctx context.Context, t *testing.T, consumer *kafkago.Reader) alertMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from alert topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var event domain.AlertEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event), "unmarshal alert message")

	return alertMessage{Event: event, Key: string(msg.Key), Headers: headers}
}

// TestAlertFeed_EndToEnd drives a session against a fake realtime database
// and verifies tier transitions arrive on the alert topic in order.
func TestAlertFeed_EndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testAlertTopic)

	var phase atomic.Int32
	bodies := []string{
		`{"a":{"timestamp":900,"value":120},"b":{"timestamp":1000,"value":450}}`,
		`{"a":{"timestamp":900,"value":120},"b":{"timestamp":1000,"value":450},"c":{"timestamp":1100,"value":260}}`,
	}
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/devices/esp-12e/readings.json", r.URL.Path)
		_, _ = io.WriteString(w, bodies[phase.Load()])
	}))
	t.Cleanup(store.Close)

	cfg := &config.Config{
		KafkaBrokers:    []string{broker},
		KafkaAlertTopic: testAlertTopic,
		AlertsEnabled:   true,
	}
	writer := kafka.NewAlertWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	monitor := connectivity.NewMonitor(connectivity.StaticProbe{}, clock, 5*time.Second, time.Second, logger, metrics)
	sess := session.New(
		domain.DefaultCatalog(),
		firebase.NewClient(store.URL, 5*time.Second, logger),
		telemetry.NewStore(clock, monitor),
		monitor,
		logger,
		metrics,
		session.WithNotifier(writer),
		session.WithClock(clock),
		session.WithLocation(time.UTC),
	)

	require.NoError(t, sess.Start(ctx, "esp-12e"))
	sess.Wait()
	require.Equal(t, domain.TierCritical, sess.Snapshot().AlertLevel)

	phase.Store(1)
	require.NoError(t, sess.Refresh())
	sess.Wait()
	require.Equal(t, domain.TierWarning, sess.Snapshot().AlertLevel)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testAlertTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	first := readAlert(ctx, t, consumer)
	assert.Equal(t, "esp-12e", first.Key)
	assert.Equal(t, "critical", first.Headers["alert_level"])
	assert.Equal(t, "2024-06-01T12:00:00Z", first.Headers["observed_at"])
	assert.Equal(t, domain.TierNormal, first.Event.Previous)
	assert.Equal(t, domain.TierCritical, first.Event.Current)
	assert.InDelta(t, 4.5, first.Event.Level, 1e-9)
	assert.Equal(t, int64(1000), first.Event.ReadingTimestamp)
	assert.Equal(t, "River Junction A", first.Event.Location)

	second := readAlert(ctx, t, consumer)
	assert.Equal(t, "warning", second.Headers["alert_level"])
	assert.Equal(t, domain.TierCritical, second.Event.Previous)
	assert.Equal(t, domain.TierWarning, second.Event.Current)
}
