package ingest

import (
	"strings"
	"time"
)

// Raw documents encode instants as Firestore timestamps, epoch numbers (both
// seconds and milliseconds), ISO strings, or serialised timestamp maps.
// Callers encode precedence by candidate order: the first value that parses
// wins.

// epochMillisCutoff separates epoch seconds from epoch milliseconds. Values
// below it are treated as seconds and scaled up.
const epochMillisCutoff = 1e12

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ResolveTime returns the first candidate that parses to a valid instant.
// Parse failures are skipped, not fatal.
func ResolveTime(candidates ...any) (time.Time, bool) {
	for _, candidate := range candidates {
		if ts, ok := coerceInstant(candidate); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ResolveTimePtr is ResolveTime for optional struct fields.
func ResolveTimePtr(candidates ...any) *time.Time {
	ts, ok := ResolveTime(candidates...)
	if !ok {
		return nil
	}
	return &ts
}

func coerceInstant(value any) (time.Time, bool) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return v.UTC(), true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return coerceInstant(*v)
	case int:
		return epochToTime(float64(v))
	case int32:
		return epochToTime(float64(v))
	case int64:
		return epochToTime(float64(v))
	case float64:
		return epochToTime(v)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, trimmed); err == nil {
				return ts.UTC(), true
			}
		}
		return time.Time{}, false
	case map[string]any:
		// Serialised provider timestamps: {seconds, nanoseconds} with or
		// without underscore prefixes.
		seconds, ok := firstNumber(v, "seconds", "_seconds")
		if !ok {
			return time.Time{}, false
		}
		nanos, _ := firstNumber(v, "nanoseconds", "_nanoseconds", "nanos")
		return time.Unix(int64(seconds), int64(nanos)).UTC(), true
	default:
		return time.Time{}, false
	}
}

func epochToTime(epoch float64) (time.Time, bool) {
	if epoch <= 0 {
		return time.Time{}, false
	}
	millis := epoch
	if epoch < epochMillisCutoff {
		millis = epoch * 1000
	}
	return time.UnixMilli(int64(millis)).UTC(), true
}

func firstNumber(m map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		if raw, ok := m[key]; ok {
			if n, ok := coerceFloat(raw); ok {
				return n, true
			}
		}
	}
	return 0, false
}

// ExtractFromHistory scans a free-form history value (entry list or
// label-keyed map) for entries whose status label matches one of the given
// synonyms, case-insensitively, and returns the earliest matching instant.
// The first time a state was reached wins over later re-entries.
func ExtractFromHistory(history any, labels ...string) (time.Time, bool) {
	wanted := make(map[string]bool, len(labels))
	for _, label := range labels {
		wanted[strings.ToLower(strings.TrimSpace(label))] = true
	}

	var earliest time.Time
	found := false
	consider := func(ts time.Time) {
		if !found || ts.Before(earliest) {
			earliest = ts
			found = true
		}
	}

	switch entries := history.(type) {
	case []any:
		for _, raw := range entries {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if !wanted[historyLabel(entry)] {
				continue
			}
			if ts, ok := ResolveTime(entry["timestamp"], entry["at"], entry["time"], entry["date"]); ok {
				consider(ts)
			}
		}
	case []map[string]any:
		for _, entry := range entries {
			if !wanted[historyLabel(entry)] {
				continue
			}
			if ts, ok := ResolveTime(entry["timestamp"], entry["at"], entry["time"], entry["date"]); ok {
				consider(ts)
			}
		}
	case map[string]any:
		for label, raw := range entries {
			if !wanted[strings.ToLower(strings.TrimSpace(label))] {
				continue
			}
			if ts, ok := coerceInstant(raw); ok {
				consider(ts)
			}
		}
	}

	return earliest, found
}

func historyLabel(entry map[string]any) string {
	for _, key := range []string{"status", "label", "stage"} {
		if raw, ok := entry[key].(string); ok {
			if trimmed := strings.TrimSpace(raw); trimmed != "" {
				return strings.ToLower(trimmed)
			}
		}
	}
	return ""
}
