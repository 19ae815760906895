// Package firebase reads per-device telemetry from a Firebase Realtime
// Database over its REST interface.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/floodguard/internal/domain"
)

// maxBodyBytes caps a single telemetry read.
const maxBodyBytes = 16 << 20

// Client implements the telemetry read contract against the realtime database.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a telemetry client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// FetchReadings GETs the raw record collection for a device. Non-2xx
// responses and network failures are returned as *domain.TransportError; a
// body that violates the record contract wraps domain.ErrMalformedRecord.
func (c *Client) FetchReadings(ctx context.Context, deviceID string) (domain.RawCollection, error) {
	u := fmt.Sprintf("%s/devices/%s/readings.json", c.baseURL, url.PathEscape(deviceID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.TransportError{
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(body))),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("read body: %w", err)}
	}

	raw, err := domain.DecodeRawCollection(body)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", deviceID, err)
	}
	c.logger.Debug("telemetry fetched", "device_id", deviceID, "records", len(raw))
	return raw, nil
}
