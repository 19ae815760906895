// Command validate checks the telemetry fixtures under data/mock against the
// invariants the dashboard relies on: every catalog device has a decodable
// fixture, normalization orders readings with a stable tie-break, levels and
// time labels are derived exactly, and the reported tier matches the latest level.
//
// Usage:
//
//	go run ./cmd/validate -dir data/mock
package main

import (
	"cmp"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/couchcryptid/floodguard/internal/domain"
	"github.com/jonboulle/clockwork"
)

// fixtureEpoch matches genmock: no fixture reading may be newer.
var fixtureEpoch = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// fixture is one device's decoded and normalized data.
type fixture struct {
	device domain.DeviceDescriptor
	raw    domain.RawCollection
	series domain.Series
}

func main() {
	dir := flag.String("dir", "data/mock", "directory containing readings_<device>.json fixtures")
	flag.Parse()

	os.Exit(run(*dir))
}

func run(dir string) int {
	clock := clockwork.NewFakeClockAt(fixtureEpoch)

	fmt.Println("=== Telemetry Fixture Validation ===")
	fmt.Println()

	load := &phase{name: "Phase 1: Fixture decoding"}
	fixtures := loadFixtures(dir, load)

	phases := []*phase{
		load,
		validateOrdering(fixtures),
		validateDerivation(fixtures),
		validateClassification(fixtures),
		validateFreshness(fixtures, clock.Now()),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	for _, f := range fixtures {
		latest, _ := f.series.Latest()
		fmt.Printf("  %-16s %4d readings  latest %s at %s  %s\n",
			f.device.ID, len(f.series), latest.LevelText(), latest.Time, f.series.Tier().Label())
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadFixtures(dir string, p *phase) []fixture {
	var out []fixture
	for _, d := range domain.DefaultCatalog().Devices() {
		path := filepath.Join(dir, fmt.Sprintf("readings_%s.json", d.ID))
		data, err := os.ReadFile(path)
		if err != nil {
			p.errorf("%s: %v", d.ID, err)
			continue
		}
		raw, err := domain.DecodeRawCollection(data)
		if err != nil {
			p.errorf("%s: decode: %v", d.ID, err)
			continue
		}
		if len(raw) == 0 {
			p.errorf("%s: fixture has no records", d.ID)
		}
		seen := make(map[string]bool, len(raw))
		for _, r := range raw {
			if seen[r.Key] {
				p.errorf("%s: duplicate key %q", d.ID, r.Key)
			}
			seen[r.Key] = true
		}
		series, err := domain.NormalizeIn(raw, time.UTC)
		if err != nil {
			p.errorf("%s: normalize: %v", d.ID, err)
			continue
		}
		out = append(out, fixture{device: d, raw: raw, series: series})
	}
	return out
}

// validateOrdering checks non-decreasing timestamps and that equal timestamps
// keep document order.
func validateOrdering(fixtures []fixture) *phase {
	p := &phase{name: "Phase 2: Ordering and tie-break"}
	for _, f := range fixtures {
		for i := 1; i < len(f.series); i++ {
			if f.series[i].Timestamp < f.series[i-1].Timestamp {
				p.errorf("%s: reading %d (%d) precedes reading %d (%d)",
					f.device.ID, i, f.series[i].Timestamp, i-1, f.series[i-1].Timestamp)
			}
		}

		idx := make([]int, len(f.raw))
		for i := range idx {
			idx[i] = i
		}
		slices.SortStableFunc(idx, func(a, b int) int {
			return cmp.Compare(*f.raw[a].Record.Timestamp, *f.raw[b].Record.Timestamp)
		})
		for i, j := range idx {
			if i >= len(f.series) {
				break
			}
			want := *f.raw[j].Record.Value / 100
			if f.series[i].Level != want {
				p.errorf("%s: position %d holds %.2f, document order expects %.2f (key %s)",
					f.device.ID, i, f.series[i].Level, want, f.raw[j].Key)
			}
		}
	}
	return p
}

// validateDerivation checks that every raw record appears exactly once with
// level = value/100 and a matching HH:MM label.
func validateDerivation(fixtures []fixture) *phase {
	p := &phase{name: "Phase 3: Level and time derivation"}
	for _, f := range fixtures {
		if len(f.series) != len(f.raw) {
			p.errorf("%s: %d raw records but %d readings", f.device.ID, len(f.raw), len(f.series))
			continue
		}
		remaining := make(map[[2]float64]int, len(f.raw))
		for _, r := range f.raw {
			remaining[[2]float64{float64(*r.Record.Timestamp), *r.Record.Value / 100}]++
		}
		for _, r := range f.series {
			k := [2]float64{float64(r.Timestamp), r.Level}
			if remaining[k] == 0 {
				p.errorf("%s: reading %d/%.4f has no matching raw record", f.device.ID, r.Timestamp, r.Level)
				continue
			}
			remaining[k]--

			if want := time.Unix(r.Timestamp, 0).UTC().Format("15:04"); r.Time != want {
				p.errorf("%s: reading %d labelled %q, want %q", f.device.ID, r.Timestamp, r.Time, want)
			}
			if math.IsNaN(r.Level) || math.IsInf(r.Level, 0) {
				p.errorf("%s: reading %d has non-finite level", f.device.ID, r.Timestamp)
			}
		}
	}
	return p
}

func validateClassification(fixtures []fixture) *phase {
	p := &phase{name: "Phase 4: Alert classification"}
	for _, f := range fixtures {
		got := f.series.Tier()
		if want := domain.Classify(f.series.LatestLevel()); got != want {
			p.errorf("%s: tier %s, latest level %.2f classifies as %s",
				f.device.ID, got, f.series.LatestLevel(), want)
		}
		for _, r := range f.series {
			tier := domain.Classify(r.Level)
			switch {
			case r.Level >= domain.CriticalThreshold && tier != domain.TierCritical,
				r.Level >= domain.WarningThreshold && r.Level < domain.CriticalThreshold && tier != domain.TierWarning,
				r.Level < domain.WarningThreshold && tier != domain.TierNormal:
				p.errorf("%s: level %.4f classified %s", f.device.ID, r.Level, tier)
			}
		}
	}
	return p
}

func validateFreshness(fixtures []fixture, now time.Time) *phase {
	p := &phase{name: "Phase 5: No readings from the future"}
	for _, f := range fixtures {
		latest, ok := f.series.Latest()
		if !ok {
			continue
		}
		if latest.At().After(now) {
			p.errorf("%s: latest reading %s is after %s",
				f.device.ID, latest.At().UTC().Format(time.RFC3339), now.Format(time.RFC3339))
		}
	}
	return p
}
