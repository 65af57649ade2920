package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ExternalSignals carries optional third-party reputation for a URL.
type ExternalSignals struct {
	MaliciousCount int  `json:"malicious_count"`
	LookupFailed   bool `json:"lookup_failed"`
}

// Normalize coerces out-of-range values instead of rejecting them.
func (s ExternalSignals) Normalize() ExternalSignals {
	if s.MaliciousCount < 0 {
		s.MaliciousCount = 0
	}
	return s
}

// Legacy keys emitted by the older collectors.
var signalAliases = map[string]string{
	"malicious_count":      "malicious_count",
	"virustotal_malicious": "malicious_count",
	"malicious":            "malicious_count",
	"lookup_failed":        "lookup_failed",
	"urlvoid_failed":       "lookup_failed",
}

// SignalsFromMap decodes loosely typed reputation fields. Unknown keys and
// values of the wrong type are ignored; numeric strings and JSON numbers are
// accepted for counts, "true"/"1" strings and non-zero numbers for flags.
func SignalsFromMap(m map[string]any) ExternalSignals {
	var s ExternalSignals
	for k, v := range m {
		switch signalAliases[strings.ToLower(strings.TrimSpace(k))] {
		case "malicious_count":
			if n, ok := coerceInt(v); ok && n > s.MaliciousCount {
				s.MaliciousCount = n
			}
		case "lookup_failed":
			if b, ok := coerceBool(v); ok && b {
				s.LookupFailed = true
			}
		}
	}
	return s.Normalize()
}

// UnmarshalJSON tolerates the same loose shapes as SignalsFromMap so that a
// malformed signals object never fails a whole request.
func (s *ExternalSignals) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		*s = ExternalSignals{}
		return nil
	}
	*s = SignalsFromMap(m)
	return nil
}

// CoerceCount reads a loosely typed non-negative count. ok is false when v is
// absent or of a type that carries no number.
func CoerceCount(v any) (n int, ok bool) {
	n, ok = coerceInt(v)
	return max(n, 0), ok
}

func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		if n > math.MaxInt32 {
			return math.MaxInt32, true
		}
		if n < 0 {
			return 0, true
		}
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return coerceInt(f)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func coerceBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	default:
		if n, ok := coerceInt(v); ok {
			return n != 0, true
		}
	}
	return false, false
}
