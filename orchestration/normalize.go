package orchestration

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
)

// NormalizeMap derives a stable input hash from an arbitrary RawInput
// map: keys are sorted before marshaling so field order never changes
// the fingerprint, then the JSON is hashed with FNV-1a. Fingerprinting
// doesn't need a cryptographic hash, just a short, deterministic one —
// the same stdlib-only tradeoff typedcache's decode-failure path makes.
func NormalizeMap(input map[string]any) (string, error) {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		ordered = append(ordered, k, input[k])
	}

	data, err := json.Marshal(ordered)
	if err != nil {
		return "", fmt.Errorf("normalize input: %w", err)
	}

	h := fnv.New64a()
	_, _ = h.Write(data)
	return fmt.Sprintf("%x", h.Sum64()), nil
}
