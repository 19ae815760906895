package domain

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// Normalize converts a raw collection into a Series sorted by timestamp,
// formatting labels in the local time zone. See NormalizeIn.
func Normalize(raw RawCollection) (Series, error) {
	return NormalizeIn(raw, time.Local)
}

// NormalizeIn converts a raw collection into a Series sorted ascending by
// timestamp. The sort is stable: readings with equal timestamps keep their
// collection order. Level is value/100 and Time is the HH:MM label of the
// timestamp in loc. A nil collection yields an empty series.
func NormalizeIn(raw RawCollection, loc *time.Location) (Series, error) {
	out := make(Series, 0, len(raw))
	for _, kr := range raw {
		if kr.Record.Timestamp == nil || kr.Record.Value == nil {
			return nil, fmt.Errorf("%w: key %q", ErrMalformedRecord, kr.Key)
		}
		ts := *kr.Record.Timestamp
		out = append(out, Reading{
			Timestamp: ts,
			Time:      time.Unix(ts, 0).In(loc).Format(timeLayout),
			Level:     *kr.Record.Value / levelScale,
		})
	}

	slices.SortStableFunc(out, func(a, b Reading) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return out, nil
}
