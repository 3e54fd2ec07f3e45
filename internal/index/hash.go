// Package index implements the in-memory side of the persistence engine: the
// content hasher, the process-wide shared index cache, and the per-transaction
// overlay that isolates uncommitted writes.
package index

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Sum digests an entity's canonical JSON encoding to a signed 64-bit value.
// The digest is stable across process restarts and is used for change
// detection, never for integrity: a collision degrades to a skipped write.
func Sum(v any) (int64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode for hashing: %w", err)
	}
	return int64(xxhash.Sum64(data)), nil
}

// SumString digests a string. Used to derive unique secondary-key values for
// fields that are indexed by equality but too large or variable to use as map
// keys directly (free-text codes, external identifiers).
func SumString(s string) int64 {
	return int64(xxhash.Sum64String(s))
}

// KeyOf renders a derived hash as a secondary-index value.
func KeyOf(parts ...string) string {
	h := xxhash.New()
	for i, p := range parts {
		if i > 0 {
			_, _ = h.WriteString("\x1f")
		}
		_, _ = h.WriteString(p)
	}
	return strconv.FormatInt(int64(h.Sum64()), 10)
}
