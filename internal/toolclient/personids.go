package toolclient

import (
	"math"
	"strconv"
)

// ExtractPersonIDs walks a decoded tool payload looking for person IDs.
// Person-search tools return one of a few shapes: a flat list of
// {"person_id": ...} objects, or a single object with a "person_id"
// field (e.g. get_person_details). Only integer values found under a
// "person_id" key are collected; absent or non-integer values are
// ignored, and duplicates within one payload are de-duplicated. Any
// other shape yields no IDs rather than an error — a tool returning an
// empty result set is not a failure.
func ExtractPersonIDs(payload any) []string {
	var ids []string
	switch v := payload.(type) {
	case []any:
		for _, item := range v {
			if id, ok := idFromItem(item); ok {
				ids = append(ids, id)
			}
		}
	case map[string]any:
		if id, ok := idFromItem(v); ok {
			ids = append(ids, id)
		}
	}
	return dedupeIDs(ids)
}

func idFromItem(item any) (string, bool) {
	m, ok := item.(map[string]any)
	if !ok {
		return "", false
	}
	raw, ok := m["person_id"]
	if !ok {
		return "", false
	}
	return integerID(raw)
}

// integerID accepts only values that decode to a whole number: a Go int
// (from the Python-literal fallback parser) or a float64 with no
// fractional part (encoding/json decodes all JSON numbers as float64).
// A numeric string like "42" is not an integer value and is rejected.
func integerID(raw any) (string, bool) {
	switch v := raw.(type) {
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		if v != math.Trunc(v) {
			return "", false
		}
		return strconv.FormatInt(int64(v), 10), true
	default:
		return "", false
	}
}

func dedupeIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
