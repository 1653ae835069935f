// Package query defines the canonical query and response envelope that flow
// through the dispatch layer, independent of the transport that carried them.
package query

import (
	"encoding/json"
	"strings"
)

// Query is the normalized unit of work. Exactly one of Action or Data drives
// dispatch; everything else is optional input for the selected handler.
type Query struct {
	Action string `json:"action,omitempty"`
	Data   string `json:"data,omitempty"`

	Module       string `json:"module,omitempty"`
	Notification string `json:"notification,omitempty"`
	Payload      any    `json:"payload,omitempty"`
	Value        string `json:"value,omitempty"`
	Force        bool   `json:"force,omitempty"`
	URL          string `json:"url,omitempty"`

	// Deferred-execution fields (action DELAYED).
	Did     string  `json:"did,omitempty"`
	Timeout float64 `json:"timeout,omitempty"`
	Abort   bool    `json:"abort,omitempty"`
	Query   *Query  `json:"query,omitempty"`
}

// Valid reports whether the query has exactly one dispatch key.
func (q *Query) Valid() bool {
	return (q.Action != "") != (q.Data != "")
}

// NormalizePayload interprets a user-supplied payload. Strings that look like
// JSON are parsed; strings that fail to parse are passed through unchanged.
// Non-string values (objects, numbers, booleans, nil) pass through as-is.
func NormalizePayload(payload any) any {
	s, ok := payload.(string)
	if !ok {
		return payload
	}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	switch trimmed[0] {
	case '{', '[', '"':
		var parsed any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			return parsed
		}
	}
	return s
}

// MergePayloads combines a base payload with an overlay. Two objects merge
// key-by-key with the overlay winning; a non-object base is wrapped under
// "param" so it survives the merge instead of being discarded.
func MergePayloads(base, overlay any) any {
	if overlay == nil {
		return base
	}
	if base == nil {
		return overlay
	}
	overlayMap, overlayIsMap := overlay.(map[string]any)
	if !overlayIsMap {
		return overlay
	}
	baseMap, baseIsMap := base.(map[string]any)
	if !baseIsMap {
		baseMap = map[string]any{"param": base}
	}
	merged := make(map[string]any, len(baseMap)+len(overlayMap))
	for k, v := range baseMap {
		merged[k] = v
	}
	for k, v := range overlayMap {
		merged[k] = v
	}
	return merged
}
