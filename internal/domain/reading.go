package domain

import (
	"strconv"
	"time"
)

// levelScale converts raw sensor units into the displayed level (NTU).
const levelScale = 100.0

// timeLayout is the hour:minute label shown on charts and tables.
const timeLayout = "15:04"

// RawRecord is one stored sample as returned by the remote store.
// Pointer fields distinguish an absent field from a zero value.
type RawRecord struct {
	Timestamp *int64   `json:"timestamp"`
	Value     *float64 `json:"value"`
}

// KeyedRecord pairs a RawRecord with the opaque key it was stored under.
type KeyedRecord struct {
	Key    string
	Record RawRecord
}

// RawCollection is the per-device record set in document order.
// Keys carry no meaning beyond that order.
type RawCollection []KeyedRecord

// Reading is one normalized telemetry sample.
type Reading struct {
	Timestamp int64   `json:"timestamp"`
	Time      string  `json:"time"`
	Level     float64 `json:"level"`
}

// LevelText renders the level with two decimals, e.g. "2.50".
func (r Reading) LevelText() string {
	return strconv.FormatFloat(r.Level, 'f', 2, 64)
}

// At returns the reading's timestamp as a time.Time.
func (r Reading) At() time.Time {
	return time.Unix(r.Timestamp, 0)
}

// Series is a time-ordered sequence of readings for one device. A Series
// handed out by the store is shared between snapshots and must not be modified.
type Series []Reading

// Latest returns the most recent reading, or false for an empty series.
func (s Series) Latest() (Reading, bool) {
	if len(s) == 0 {
		return Reading{}, false
	}
	return s[len(s)-1], true
}

// LatestLevel returns the most recent level, or 0 when there are no readings.
func (s Series) LatestLevel() float64 {
	r, ok := s.Latest()
	if !ok {
		return 0
	}
	return r.Level
}

// Tier classifies the latest level. An empty series is NORMAL.
func (s Series) Tier() AlertTier {
	return Classify(s.LatestLevel())
}

// Recent returns up to n of the newest readings, newest first. The result
// is a fresh slice.
func (s Series) Recent(n int) Series {
	if n <= 0 || len(s) == 0 {
		return Series{}
	}
	start := max(len(s)-n, 0)
	out := make(Series, 0, len(s)-start)
	for i := len(s) - 1; i >= start; i-- {
		out = append(out, s[i])
	}
	return out
}
