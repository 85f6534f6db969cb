package orchestration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// JSONArtifactSanitizer returns a Hooks.Sanitize implementation that
// tolerantly parses a model or catalog response into a JSON artifact:
// strip a Markdown code fence if the whole payload is wrapped in one,
// locate the first balanced `{...}` object, decode it, and reject it if
// any of requiredFields is absent. The returned bytes are the
// re-marshaled object, never the raw model text, so a cached artifact is
// always valid JSON.
//
// A model that never emits a parseable object (prose, a truncated
// object, a missing required field) fails here rather than being cached
// and quota-charged as if it were a real artifact.
func JSONArtifactSanitizer(requiredFields ...string) func([]byte) ([]byte, error) {
	return func(raw []byte) ([]byte, error) {
		return sanitizeJSONArtifact(raw, requiredFields)
	}
}

func sanitizeJSONArtifact(raw []byte, requiredFields []string) ([]byte, error) {
	obj, err := firstBalancedObject(stripCodeFence(raw))
	if err != nil {
		return nil, err
	}

	var decoded map[string]any
	if err := json.Unmarshal(obj, &decoded); err != nil {
		return nil, fmt.Errorf("decode artifact object: %w", err)
	}
	for _, field := range requiredFields {
		if _, ok := decoded[field]; !ok {
			return nil, fmt.Errorf("artifact missing required field %q", field)
		}
	}

	canonical, err := json.Marshal(decoded)
	if err != nil {
		return nil, fmt.Errorf("re-encode artifact object: %w", err)
	}
	return canonical, nil
}

// stripCodeFence removes a leading/trailing ``` fence (with an optional
// language tag on the opening line) when the whole payload is wrapped in
// one, e.g. "```json\n{...}\n```" becomes "{...}".
func stripCodeFence(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "```") {
		return raw
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return []byte(strings.TrimSpace(s))
}

// firstBalancedObject scans for the first '{' and returns the bytes
// through its matching '}', tracking string literals and escapes so
// braces inside quoted values never unbalance the count.
func firstBalancedObject(raw []byte) ([]byte, error) {
	start := bytes.IndexByte(raw, '{')
	if start < 0 {
		return nil, fmt.Errorf("no JSON object found in payload")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal, braces don't count
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], nil
			}
		}
	}
	return nil, fmt.Errorf("unbalanced JSON object in payload")
}
