package ingest

import (
	"strconv"
	"strings"
)

// Numeric leaves arrive as int64, float64, or formatted strings depending on
// the writer generation. Each leaf is coerced independently so one malformed
// field never drops an otherwise valid document.

func coerceFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		trimmed := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
		if trimmed == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func coerceFloatPtr(value any) *float64 {
	parsed, ok := coerceFloat(value)
	if !ok {
		return nil
	}
	return &parsed
}

func coerceInt(value any) int {
	parsed, ok := coerceFloat(value)
	if !ok {
		return 0
	}
	return int(parsed)
}

// firstNonEmpty implements the ordered-candidate fallback used across the
// normalizer: every derived string field is computed from a list of optional
// source paths, resolved by the first present value.
func firstNonEmpty(candidates ...string) string {
	for _, candidate := range candidates {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
