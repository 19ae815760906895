package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/floodguard/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testEvent() domain.AlertEvent {
	return domain.AlertEvent{
		DeviceID:         "esp-12e",
		DeviceName:       "ESP-12E Main Sensor",
		Location:         "River Junction A",
		Previous:         domain.TierWarning,
		Current:          domain.TierCritical,
		Level:            4.1,
		ReadingTimestamp: 900,
		ObservedAt:       time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC),
	}
}

func TestSerializeToMessage(t *testing.T) {
	event := testEvent()

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("esp-12e"), msg.Key)
	assert.JSONEq(t, `{
		"device_id": "esp-12e",
		"device_name": "ESP-12E Main Sensor",
		"location": "River Junction A",
		"previous": "warning",
		"current": "critical",
		"level": 4.1,
		"reading_timestamp": 900,
		"observed_at": "2024-04-26T15:10:00Z"
	}`, string(msg.Value))
	assert.Equal(t, event.ObservedAt, msg.Time)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "alert_level", msg.Headers[0].Key)
	assert.Equal(t, []byte("critical"), msg.Headers[0].Value)
	assert.Equal(t, "observed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-04-26T15:10:00Z"), msg.Headers[1].Value)
}

func TestAlertWriter_NotifyAlert(t *testing.T) {
	fw := &fakeWriter{}
	w := &AlertWriter{writer: fw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	require.NoError(t, w.NotifyAlert(context.Background(), testEvent()))
	require.Len(t, fw.msgs, 1)
	assert.Equal(t, []byte("esp-12e"), fw.msgs[0].Key)

	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}

func TestAlertWriter_NotifyAlertError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("leader not available")}
	w := &AlertWriter{writer: fw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	err := w.NotifyAlert(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "esp-12e")
	assert.Contains(t, err.Error(), "leader not available")
}
