// Package domain models flood-risk sensor telemetry.
//
// # Data Source
//
// Each sensor device writes samples into a remote realtime key-value store
// under /devices/<id>/readings. A read returns a JSON object keyed by opaque
// push ids:
//
//	{"-Nx1": {"timestamp": 1717000000, "value": 250}, ...}
//
// Key order carries no meaning except as the tie-break order for samples
// that share a timestamp. Integer-keyed children come back as a JSON array
// with null gaps; both shapes are accepted by [DecodeRawCollection].
//
// # Conventions
//
// Timestamp:
//
//	Epoch seconds. Fractional values are truncated. The HH:MM label is
//	rendered in local time.
//
// Value:
//
//	Raw sensor units. The displayed level is value / 100, in NTU
//	(turbidity). Some deployments label the same number a water level in
//	metres; the thresholds below assume NTU.
//
// Alert tiers:
//
//	level < 2.5 normal | 2.5 <= level < 4.0 warning | level >= 4.0 critical
//
// Thresholds are fixed; they are not configurable per device. An empty
// series classifies as normal (latest level defaults to 0).
//
// # Failure Policy
//
// A record without a numeric timestamp or value is a contract violation of
// the store and fails the whole fetch with [ErrMalformedRecord]; individual
// bad records are never dropped silently.
package domain
