package repo

import (
	"encoding/json"
	"sort"
	"strings"
)

// The store is loose about collection encoding: the same path may come
// back as a plain array, as an object of opaque push keys, or not at
// all. Every shape check lives here; business logic only ever sees
// ordered slices.

// decodeCollection coerces a raw collection into an ordered slice.
// Arrays keep their order; keyed objects are enumerated in key order,
// which reproduces insertion order because push keys are time-ordered.
// Absent, null, or malformed input normalizes to an empty sequence
// rather than an error.
func decodeCollection[T any](raw json.RawMessage) []T {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var out []T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil
		}
		return out
	}
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return nil
	}
	keys := make([]string, 0, len(keyed))
	for k := range keyed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		var item T
		if err := json.Unmarshal(keyed[k], &item); err != nil {
			continue
		}
		out = append(out, item)
	}
	return out
}
