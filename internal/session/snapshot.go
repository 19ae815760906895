package session

import (
	"time"

	"github.com/couchcryptid/floodguard/internal/domain"
	"github.com/couchcryptid/floodguard/internal/telemetry"
)

// DefaultTableRows is the number of readings shown in the table view.
const DefaultTableRows = 10

// Snapshot is the read-only state handed to presentation. Readings is shared
// and must not be modified.
type Snapshot struct {
	Device       domain.DeviceDescriptor  `json:"device"`
	Readings     domain.Series            `json:"readings"`
	AlertLevel   domain.AlertTier         `json:"alert_level"`
	LatestLevel  float64                  `json:"latest_level"`
	Lifecycle    telemetry.Lifecycle      `json:"lifecycle"`
	Error        string                   `json:"error,omitempty"`
	Connectivity domain.ConnectivityState `json:"connectivity"`
	UpdatedAt    time.Time                `json:"updated_at"`
}

// ChartPoint is one (time, level) pair for the chart view.
type ChartPoint struct {
	Timestamp int64   `json:"timestamp"`
	Time      string  `json:"time"`
	Level     float64 `json:"level"`
}

// ChartView projects the series in chronological order.
func ChartView(s Snapshot) []ChartPoint {
	points := make([]ChartPoint, len(s.Readings))
	for i, r := range s.Readings {
		points[i] = ChartPoint{Timestamp: r.Timestamp, Time: r.Time, Level: r.Level}
	}
	return points
}

// TableRow is one reading in the table view, annotated with its own tier.
type TableRow struct {
	Timestamp  int64            `json:"timestamp"`
	Time       string           `json:"time"`
	Level      float64          `json:"level"`
	LevelText  string           `json:"level_text"`
	AlertLevel domain.AlertTier `json:"alert_level"`
}

// TableView returns the newest n readings, newest first.
func TableView(s Snapshot, n int) []TableRow {
	recent := s.Readings.Recent(n)
	rows := make([]TableRow, len(recent))
	for i, r := range recent {
		rows[i] = TableRow{
			Timestamp:  r.Timestamp,
			Time:       r.Time,
			Level:      r.Level,
			LevelText:  r.LevelText(),
			AlertLevel: domain.Classify(r.Level),
		}
	}
	return rows
}

// Status feeds the alert banner and connectivity indicator.
type Status struct {
	Device          domain.DeviceDescriptor  `json:"device"`
	AlertLevel      domain.AlertTier         `json:"alert_level"`
	AlertLabel      string                   `json:"alert_label"`
	LatestLevel     float64                  `json:"latest_level"`
	LatestLevelText string                   `json:"latest_level_text"`
	Connectivity    domain.ConnectivityState `json:"connectivity"`
	Lifecycle       telemetry.Lifecycle      `json:"lifecycle"`
	NoData          bool                     `json:"no_data"`
	Loading         bool                     `json:"loading"`
	Error           string                   `json:"error,omitempty"`
}

// StatusView projects the tier and connectivity only.
func StatusView(s Snapshot) Status {
	return Status{
		Device:          s.Device,
		AlertLevel:      s.AlertLevel,
		AlertLabel:      s.AlertLevel.Label(),
		LatestLevel:     s.LatestLevel,
		LatestLevelText: domain.Reading{Level: s.LatestLevel}.LevelText(),
		Connectivity:    s.Connectivity,
		Lifecycle:       s.Lifecycle,
		NoData:          len(s.Readings) == 0,
		Loading:         s.Lifecycle == telemetry.Loading,
		Error:           s.Error,
	}
}
