// ABOUTME: Opaque identifier and timestamp types decoded from server JSON
// ABOUTME: Accepts numeric or string ids and ISO-8601 or epoch timestamps

package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ID is an opaque server identifier. The empty ID means "absent".
type ID string

// String returns the identifier as a string.
func (id ID) String() string { return string(id) }

// IsZero reports whether the identifier is absent.
func (id ID) IsZero() bool { return id == "" }

// UnmarshalJSON accepts a JSON number, a JSON string, or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding id: %w", err)
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes numeric-looking ids as numbers so the server sees the
// same shape it sent.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Time is an instant decoded from the server. The zero Time means "absent".
type Time struct {
	time.Time
}

// At wraps t.
func At(t time.Time) Time { return Time{Time: t} }

// Ptr returns nil for the zero Time, otherwise a pointer to a copy.
func (t Time) Ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// epochMillisCutoff separates epoch seconds from epoch milliseconds.
// 1e11 seconds is year 5138; 1e11 milliseconds is March 1973.
const epochMillisCutoff = 1e11

// UnmarshalJSON accepts RFC 3339 strings, epoch milliseconds and epoch
// seconds (optionally fractional). Unparseable values decode to zero.
func (t *Time) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding time: %w", err)
		}
		t.Time = parseTimeString(s)
		return nil
	}
	parsed, err := parseEpoch(string(data))
	if err != nil {
		return fmt.Errorf("decoding time %s: %w", data, err)
	}
	t.Time = parsed
	return nil
}

// MarshalJSON writes RFC 3339 with nanoseconds, or null for the zero Time.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func parseTimeString(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed
		}
	}
	if parsed, err := parseEpoch(s); err == nil {
		return parsed
	}
	return time.Time{}
}

// parseEpoch decodes epoch seconds or milliseconds. Plain decimals are split
// on the point and parsed as integers so fractional seconds keep full
// precision; exponent forms go through float64.
func parseEpoch(s string) (time.Time, error) {
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, err
		}
		return fromEpoch(f), nil
	}

	whole, frac, _ := strings.Cut(s, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	for _, r := range frac {
		if r < '0' || r > '9' {
			return time.Time{}, fmt.Errorf("invalid fraction %q", frac)
		}
	}
	if n <= 0 {
		return time.Time{}, nil
	}
	if n >= epochMillisCutoff {
		return time.UnixMilli(n), nil
	}

	if len(frac) > 9 {
		frac = frac[:9]
	}
	var nanos int64
	if frac != "" {
		nanos, _ = strconv.ParseInt(frac+strings.Repeat("0", 9-len(frac)), 10, 64)
	}
	return time.Unix(n, nanos), nil
}

func fromEpoch(f float64) time.Time {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}
	}
	if f >= epochMillisCutoff {
		return time.UnixMilli(int64(f))
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9))
}
