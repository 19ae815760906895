package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

// DecodeRawCollection parses a read-contract response body into an ordered
// RawCollection. Document order is preserved because it is the tie-break
// order for readings that share a timestamp.
//
// A null or empty body yields an empty collection. Array bodies (the store's
// form for integer-keyed children) are accepted and their null gaps skipped.
// Any record without a numeric timestamp and value fails the whole decode.
func DecodeRawCollection(data []byte) (RawCollection, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return RawCollection{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decode readings: %w", err)
	}

	var out RawCollection
	switch tok {
	case nil:
		out = RawCollection{}
	case json.Delim('{'):
		out, err = decodeObject(dec)
	case json.Delim('['):
		out, err = decodeArray(dec)
	default:
		return nil, fmt.Errorf("%w: expected object, got %v", ErrMalformedRecord, tok)
	}
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode readings: unexpected data after top-level value")
	}
	return out, nil
}

func decodeObject(dec *json.Decoder) (RawCollection, error) {
	out := RawCollection{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode readings: %w", err)
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode readings: key %q: %w", key, err)
		}
		rec, err := parseRecord(key, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, KeyedRecord{Key: key, Record: rec})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode readings: %w", err)
	}
	return out, nil
}

func decodeArray(dec *json.Decoder) (RawCollection, error) {
	out := RawCollection{}
	for i := 0; dec.More(); i++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode readings: index %d: %w", i, err)
		}
		if string(bytes.TrimSpace(raw)) == "null" {
			continue
		}
		key := strconv.Itoa(i)
		rec, err := parseRecord(key, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, KeyedRecord{Key: key, Record: rec})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode readings: %w", err)
	}
	return out, nil
}

func parseRecord(key string, raw json.RawMessage) (RawRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return RawRecord{}, fmt.Errorf("%w: key %q is not an object", ErrMalformedRecord, key)
	}

	tsNum, ok := decodeNumber(fields["timestamp"])
	if !ok {
		return RawRecord{}, fmt.Errorf("%w: key %q: timestamp missing or not numeric", ErrMalformedRecord, key)
	}
	ts, err := tsNum.Int64()
	if err != nil {
		f, ferr := tsNum.Float64()
		if ferr != nil {
			return RawRecord{}, fmt.Errorf("%w: key %q: timestamp %s", ErrMalformedRecord, key, tsNum)
		}
		// float64(math.MaxInt64) rounds up to 2^63, so >= rejects it.
		if math.IsNaN(f) || math.IsInf(f, 0) || f < math.MinInt64 || f >= math.MaxInt64 {
			return RawRecord{}, fmt.Errorf("%w: key %q: timestamp %s out of range", ErrMalformedRecord, key, tsNum)
		}
		ts = int64(math.Trunc(f))
	}

	valNum, ok := decodeNumber(fields["value"])
	if !ok {
		return RawRecord{}, fmt.Errorf("%w: key %q: value missing or not numeric", ErrMalformedRecord, key)
	}
	val, err := valNum.Float64()
	if err != nil {
		return RawRecord{}, fmt.Errorf("%w: key %q: value %s", ErrMalformedRecord, key, valNum)
	}

	return RawRecord{Timestamp: &ts, Value: &val}, nil
}

// decodeNumber reports whether raw is a JSON number literal.
func decodeNumber(raw json.RawMessage) (json.Number, bool) {
	if len(raw) == 0 {
		return "", false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", false
	}
	n, ok := v.(json.Number)
	return n, ok
}
