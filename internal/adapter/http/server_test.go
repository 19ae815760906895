package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/floodguard/internal/adapter/http"
	"github.com/couchcryptid/floodguard/internal/domain"
	"github.com/couchcryptid/floodguard/internal/observability"
	"github.com/couchcryptid/floodguard/internal/session"
	"github.com/couchcryptid/floodguard/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDashboard struct {
	mu        sync.Mutex
	readyErr  error
	selectErr error
	snap      session.Snapshot
	selected  []string
	refreshes int
	subs      []chan struct{}
}

func (m *mockDashboard) CheckReadiness(context.Context) error { return m.readyErr }

func (m *mockDashboard) Catalog() domain.Catalog { return domain.DefaultCatalog() }

func (m *mockDashboard) Snapshot() session.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *mockDashboard) SelectDevice(id string) error {
	if _, ok := domain.DefaultCatalog().Lookup(id); !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownDevice, id)
	}
	if m.selectErr != nil {
		return m.selectErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected = append(m.selected, id)
	return nil
}

func (m *mockDashboard) Refresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
	return nil
}

func (m *mockDashboard) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch, func() {}
}

func (m *mockDashboard) update(snap session.Snapshot) {
	m.mu.Lock()
	m.snap = snap
	subs := append([]chan struct{}(nil), m.subs...)
	m.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (m *mockDashboard) subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func sampleSnapshot() session.Snapshot {
	readings := make(domain.Series, 15)
	for i := range readings {
		readings[i] = domain.Reading{Timestamp: int64(1000 + i), Time: "00:16", Level: float64(i) * 0.3}
	}
	return session.Snapshot{
		Device:       domain.DefaultCatalog().Default(),
		Readings:     readings,
		AlertLevel:   readings.Tier(),
		LatestLevel:  readings.LatestLevel(),
		Lifecycle:    telemetry.Ready,
		Connectivity: domain.ConnectivityState{IsOnline: true},
	}
}

func newTestServer(dash *mockDashboard) *httpadapter.Server {
	return httpadapter.NewServer(":0", dash, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, srv http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := do(t, newTestServer(&mockDashboard{}), http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := do(t, newTestServer(&mockDashboard{}), http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := do(t, newTestServer(&mockDashboard{readyErr: fmt.Errorf("not ready yet")}), http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestServer(&mockDashboard{}), http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestDevices(t *testing.T) {
	rec := do(t, newTestServer(&mockDashboard{snap: sampleSnapshot()}), http.MethodGet, "/api/v1/devices", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Devices  []domain.DeviceDescriptor `json:"devices"`
		Selected string                    `json:"selected"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Devices, 3)
	assert.Equal(t, "esp-12e", body.Selected)
}

func TestSnapshot(t *testing.T) {
	rec := do(t, newTestServer(&mockDashboard{snap: sampleSnapshot()}), http.MethodGet, "/api/v1/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "critical", body["alert_level"])
	assert.Equal(t, "ready", body["lifecycle"])
	assert.Len(t, body["readings"], 15)
	conn, ok := body["connectivity"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, conn["is_online"])
}

func TestChartView(t *testing.T) {
	rec := do(t, newTestServer(&mockDashboard{snap: sampleSnapshot()}), http.MethodGet, "/api/v1/views/chart", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var points []session.ChartPoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	require.Len(t, points, 15)
	assert.Equal(t, int64(1000), points[0].Timestamp)
}

func TestTableView(t *testing.T) {
	srv := newTestServer(&mockDashboard{snap: sampleSnapshot()})

	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantRows  int
		wantFirst int64
	}{
		{name: "default limit", target: "/api/v1/views/table", wantCode: http.StatusOK, wantRows: 10, wantFirst: 1014},
		{name: "custom limit", target: "/api/v1/views/table?limit=3", wantCode: http.StatusOK, wantRows: 3, wantFirst: 1014},
		{name: "zero limit", target: "/api/v1/views/table?limit=0", wantCode: http.StatusBadRequest},
		{name: "bad limit", target: "/api/v1/views/table?limit=ten", wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, tt.target, "")
			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				return
			}
			var rows []session.TableRow
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
			require.Len(t, rows, tt.wantRows)
			assert.Equal(t, tt.wantFirst, rows[0].Timestamp)
		})
	}
}

func TestStatusView(t *testing.T) {
	rec := do(t, newTestServer(&mockDashboard{snap: sampleSnapshot()}), http.MethodGet, "/api/v1/views/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var st session.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "CRITICAL", st.AlertLabel)
	assert.Equal(t, domain.TierCritical, st.AlertLevel)
	assert.False(t, st.NoData)
}

func TestSelectDevice(t *testing.T) {
	dash := &mockDashboard{snap: sampleSnapshot()}
	srv := newTestServer(dash)

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{name: "known device", body: `{"device_id":"esp-32a"}`, wantCode: http.StatusAccepted},
		{name: "unknown device", body: `{"device_id":"ghost"}`, wantCode: http.StatusNotFound},
		{name: "missing id", body: `{}`, wantCode: http.StatusBadRequest},
		{name: "bad json", body: `{"device_id":`, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPut, "/api/v1/selection", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
	assert.Equal(t, []string{"esp-32a"}, dash.selected)
}

func TestSelectDevice_SessionError(t *testing.T) {
	dash := &mockDashboard{selectErr: fmt.Errorf("session not started")}
	rec := do(t, newTestServer(dash), http.MethodPut, "/api/v1/selection", `{"device_id":"esp-32a"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRefresh(t *testing.T) {
	dash := &mockDashboard{snap: sampleSnapshot()}
	rec := do(t, newTestServer(dash), http.MethodPost, "/api/v1/refresh", "")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, dash.refreshes)
}

func TestMethodNotAllowed(t *testing.T) {
	rec := do(t, newTestServer(&mockDashboard{}), http.MethodGet, "/api/v1/refresh", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestShutdownWithoutStart(t *testing.T) {
	srv := newTestServer(&mockDashboard{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}
