package query

import "encoding/json"

// Envelope is the single reply produced for every dispatched query. Success
// is always present; handlers attach arbitrary extra fields which are merged
// into the top level of the serialized object.
type Envelope struct {
	Success bool
	Status  int // HTTP status hint; 0 means derive from Success
	Extra   map[string]any
}

// OK returns a success envelope.
func OK() *Envelope {
	return &Envelope{Success: true}
}

// Error returns a failure envelope with a human-readable message.
func Error(message string) *Envelope {
	return (&Envelope{Success: false}).With("message", message)
}

// ErrorInfo returns a failure envelope carrying a downstream error.
func ErrorInfo(err error) *Envelope {
	e := &Envelope{Success: false}
	e.With("status", "error")
	e.With("reason", "unknown")
	if err != nil {
		e.With("info", err.Error())
	}
	return e
}

// With attaches an extra top-level field and returns the envelope.
func (e *Envelope) With(key string, value any) *Envelope {
	if e.Extra == nil {
		e.Extra = make(map[string]any)
	}
	e.Extra[key] = value
	return e
}

// WithStatus sets the HTTP status hint and returns the envelope.
func (e *Envelope) WithStatus(status int) *Envelope {
	e.Status = status
	return e
}

// MarshalJSON serializes success alongside the merged extra fields.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Extra)+1)
	for k, v := range e.Extra {
		out[k] = v
	}
	out["success"] = e.Success
	return json.Marshal(out)
}

// UnmarshalJSON restores an envelope from its merged-object form.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if ok, exists := raw["success"].(bool); exists {
		e.Success = ok
	}
	delete(raw, "success")
	if len(raw) > 0 {
		e.Extra = raw
	}
	return nil
}
