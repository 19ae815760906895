package domain

import (
	"fmt"
	"strings"
)

// Alert thresholds in NTU.
const (
	CriticalThreshold = 4.0
	WarningThreshold  = 2.5
)

// AlertTier is the discrete risk classification derived from a level.
// Tiers are totally ordered: Normal < Warning < Critical.
type AlertTier int

const (
	TierNormal AlertTier = iota
	TierWarning
	TierCritical
)

// Classify maps a level to its tier:
//   - level >= 4.0: critical
//   - 2.5 <= level < 4.0: warning
//   - otherwise (including NaN): normal
func Classify(level float64) AlertTier {
	switch {
	case level >= CriticalThreshold:
		return TierCritical
	case level >= WarningThreshold:
		return TierWarning
	default:
		return TierNormal
	}
}

func (t AlertTier) String() string {
	switch t {
	case TierCritical:
		return "critical"
	case TierWarning:
		return "warning"
	default:
		return "normal"
	}
}

// Label is the upper-case form shown in banners and table badges.
func (t AlertTier) Label() string {
	return strings.ToUpper(t.String())
}

func (t AlertTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *AlertTier) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "normal":
		*t = TierNormal
	case "warning":
		*t = TierWarning
	case "critical":
		*t = TierCritical
	default:
		return fmt.Errorf("unknown alert tier %q", b)
	}
	return nil
}
