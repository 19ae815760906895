package domain

import "time"

// AlertEvent records a change of alert tier for a device.
type AlertEvent struct {
	DeviceID         string    `json:"device_id"`
	DeviceName       string    `json:"device_name"`
	Location         string    `json:"location"`
	Previous         AlertTier `json:"previous"`
	Current          AlertTier `json:"current"`
	Level            float64   `json:"level"`
	ReadingTimestamp int64     `json:"reading_timestamp,omitempty"`
	ObservedAt       time.Time `json:"observed_at"`
}

// Escalated reports whether the tier moved up.
func (e AlertEvent) Escalated() bool {
	return e.Current > e.Previous
}
