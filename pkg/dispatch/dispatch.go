// Package dispatch routes canonical queries to their handlers. Both the HTTP
// layer and the notification channel funnel through the same two registries,
// so every behavior is reachable from either surface.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/mirror-remote/pkg/delay"
	"github.com/morezero/mirror-remote/pkg/extapi"
	"github.com/morezero/mirror-remote/pkg/notify"
	"github.com/morezero/mirror-remote/pkg/pkgmgr"
	"github.com/morezero/mirror-remote/pkg/query"
	"github.com/morezero/mirror-remote/pkg/state"
	"github.com/morezero/mirror-remote/pkg/store"
	"github.com/morezero/mirror-remote/pkg/system"
	"github.com/morezero/mirror-remote/pkg/updates"
)

const logPrefix = "dispatch:dispatcher"

// Deps carries every collaborator a handler may need. Fields a deployment
// does not wire may be nil; handlers that require a nil collaborator respond
// with an error envelope instead of panicking.
type Deps struct {
	Notifier notify.Notifier
	State    *state.State
	Store    *store.Store
	Delays   *delay.Scheduler
	External *extapi.Registry
	System   *system.Controller
	Packages *pkgmgr.Manager
	Updates  *updates.Checker

	// MirrorDir is the display application checkout, for the "mm" update
	// alias. OwnDir is this module's own checkout, for "rc".
	MirrorDir string
	OwnDir    string

	// Shutdown stops the service process. restart asks the supervisor to
	// bring it back up.
	Shutdown func(restart bool)
}

// Dispatcher owns the two registries.
type Dispatcher struct {
	deps *Deps
}

// New builds a Dispatcher around deps.
func New(deps *Deps) *Dispatcher {
	return &Dispatcher{deps: deps}
}

// ActionFunc handles one action key.
type ActionFunc func(ctx context.Context, d *Deps, q *query.Query, r query.Responder)

// DataFunc handles one data query key.
type DataFunc func(ctx context.Context, d *Deps, q *query.Query, r query.Responder)

// Execute runs an action query. Exactly one response is written to r: the
// handler's, an unknown-action error, or a recovered-panic error.
func (dp *Dispatcher) Execute(ctx context.Context, q *query.Query, r query.Responder) {
	defer recoverToResponder(q.Action, r)

	handler, ok := actionHandlers[q.Action]
	if !ok {
		slog.Warn(fmt.Sprintf("%s - unknown action %q", logPrefix, q.Action))
		r.Respond(query.Error(fmt.Sprintf("invalid action: %s", q.Action)).WithStatus(400))
		return
	}
	handler(ctx, dp.deps, q, r)
}

// Get runs a data query. Response discipline matches Execute.
func (dp *Dispatcher) Get(ctx context.Context, q *query.Query, r query.Responder) {
	defer recoverToResponder(q.Data, r)

	handler, ok := dataHandlers[q.Data]
	if !ok {
		slog.Warn(fmt.Sprintf("%s - unknown data query %q", logPrefix, q.Data))
		r.Respond(query.Error(fmt.Sprintf("invalid data request: %s", q.Data)).WithStatus(400))
		return
	}
	handler(ctx, dp.deps, q, r)
}

// Run executes either side of a query, for callers holding a mixed stream
// (the delay scheduler, the channel adapter).
func (dp *Dispatcher) Run(ctx context.Context, q *query.Query, r query.Responder) {
	if !q.Valid() {
		r.Respond(query.Error("query must carry exactly one of action or data").WithStatus(400))
		return
	}
	if q.Action != "" {
		dp.Execute(ctx, q, r)
		return
	}
	dp.Get(ctx, q, r)
}

func recoverToResponder(key string, r query.Responder) {
	if rec := recover(); rec != nil {
		slog.Error(fmt.Sprintf("%s - handler for %q panicked: %v", logPrefix, key, rec))
		r.Respond(query.ErrorInfo(fmt.Errorf("handler failure: %v", rec)).WithStatus(500))
	}
}
