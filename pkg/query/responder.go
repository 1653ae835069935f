package query

import (
	"fmt"
	"log/slog"
	"sync"
)

const responderLogPrefix = "query:responder"

// Responder is the abstract reply capability handed to handlers. Every
// handler must call Respond exactly once per dispatched query; the concrete
// implementations guard against double writes because the HTTP transport can
// only accept one reply per request.
type Responder interface {
	Respond(e *Envelope)
}

// Discard is a Responder for fire-and-forget dispatches (e.g. a delayed query
// whose original request was acknowledged long ago).
type Discard struct{}

// Respond drops the envelope, logging failures so they are not silent.
func (Discard) Respond(e *Envelope) {
	if e != nil && !e.Success {
		slog.Warn(fmt.Sprintf("%s - discarded failure envelope: %v", responderLogPrefix, e.Extra))
	}
}

// FuncResponder adapts a function to the Responder interface, replying at
// most once regardless of how many times Respond is called.
type FuncResponder struct {
	once sync.Once
	fn   func(e *Envelope)
}

// NewFuncResponder wraps fn as a single-shot Responder.
func NewFuncResponder(fn func(e *Envelope)) *FuncResponder {
	return &FuncResponder{fn: fn}
}

// Respond invokes the wrapped function on first call; later calls are logged
// and dropped.
func (r *FuncResponder) Respond(e *Envelope) {
	replied := false
	r.once.Do(func() {
		replied = true
		r.fn(e)
	})
	if !replied {
		slog.Warn(fmt.Sprintf("%s - dropped duplicate response write", responderLogPrefix))
	}
}
