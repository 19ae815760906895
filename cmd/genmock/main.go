// Command genmock writes deterministic telemetry fixtures in the shape the
// realtime database returns for GET /devices/{id}/readings.json. It runs the
// generated bodies through the domain decoder and normalizer so the printed
// tiers match what the dashboard would show.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -count 48 -interval 5m
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/floodguard/internal/domain"
	"github.com/jonboulle/clockwork"
)

// fixtureEpoch is the "now" the newest reading is stamped with.
var fixtureEpoch = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

// profile is a linear ramp of raw sensor units with a small deterministic wobble.
type profile struct {
	start, end int64
}

var profiles = map[string]profile{
	"esp-12e":        {start: 120, end: 450}, // rising into CRITICAL
	"esp-32a":        {start: 300, end: 270}, // holding in WARNING
	"sensor-node-01": {start: 90, end: 140},  // NORMAL
}

var defaultProfile = profile{start: 100, end: 100}

type fixtureRecord struct {
	key       string
	timestamp int64
	value     int64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/mock", "output directory for fixtures")
	count := flag.Int("count", 48, "readings per device")
	interval := flag.Duration("interval", 5*time.Minute, "spacing between readings")
	flag.Parse()

	if *count < 2 {
		return fmt.Errorf("-count must be at least 2")
	}
	if *interval < time.Second {
		return fmt.Errorf("-interval must be at least 1s")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	// Fixed clock for reproducible timestamps.
	clock := clockwork.NewFakeClockAt(fixtureEpoch)

	for _, d := range domain.DefaultCatalog().Devices() {
		p, ok := profiles[d.ID]
		if !ok {
			p = defaultProfile
		}
		records := generate(clock.Now(), *count, *interval, p)

		path := filepath.Join(*out, fmt.Sprintf("readings_%s.json", d.ID))
		if err := writeFixture(path, records); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}

		series, err := loadSeries(path)
		if err != nil {
			return fmt.Errorf("re-reading %s: %w", path, err)
		}
		latest, _ := series.Latest()
		log.Printf("%s: %d readings, latest %s (%s) -> %s",
			d.ID, len(series), latest.LevelText(), latest.Time, series.Tier().Label())
	}
	return nil
}

// generate builds count records ending at now. Document order is a fixed
// permutation of chronological order, and one pair shares a timestamp, so
// consumers exercise both the sort and its tie-break.
func generate(now time.Time, count int, interval time.Duration, p profile) []fixtureRecord {
	step := int64(interval / time.Second)
	last := now.Unix()

	chrono := make([]fixtureRecord, count)
	for i := range chrono {
		ts := last - int64(count-1-i)*step
		wobble := (int64(i*7)%5 - 2) * 5
		chrono[i] = fixtureRecord{
			key:       fmt.Sprintf("-Nr%04d", i),
			timestamp: ts,
			value:     p.start + (p.end-p.start)*int64(i)/int64(count-1) + wobble,
		}
	}
	mid := count / 2
	chrono[mid].timestamp = chrono[mid-1].timestamp

	stride := 7
	if gcd(stride, count) != 1 {
		stride = count - 1
	}
	doc := make([]fixtureRecord, count)
	for j := range doc {
		doc[j] = chrono[(j*stride)%count]
	}
	return doc
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// writeFixture writes records as a JSON object in slice order. encoding/json
// would sort map keys, which would hide the document-order tie-break.
func writeFixture(path string, records []fixtureRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "{")
	for i, r := range records {
		sep := ","
		if i == len(records)-1 {
			sep = ""
		}
		fmt.Fprintf(w, "  %q: {\"timestamp\": %d, \"value\": %d}%s\n", r.key, r.timestamp, r.value, sep)
	}
	fmt.Fprintln(w, "}")
	return w.Flush()
}

func loadSeries(path string) (domain.Series, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := domain.DecodeRawCollection(data)
	if err != nil {
		return nil, err
	}
	return domain.NormalizeIn(raw, time.UTC)
}
