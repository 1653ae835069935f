// Package api is the HTTP surface. Every route builds a canonical query and
// hands it to the shared dispatcher, so HTTP and the notification channel
// expose identical behavior.
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/morezero/mirror-remote/pkg/dispatch"
	"github.com/morezero/mirror-remote/pkg/extapi"
	"github.com/morezero/mirror-remote/pkg/query"
	"github.com/morezero/mirror-remote/pkg/state"
)

const logPrefix = "api:router"

// Router wires the HTTP routes to the dispatcher.
type Router struct {
	dispatcher *dispatch.Dispatcher
	state      *state.State
	external   *extapi.Registry

	apiKey          string
	secureEndpoints bool
}

// Opts configures a Router.
type Opts struct {
	Dispatcher *dispatch.Dispatcher
	State      *state.State
	External   *extapi.Registry
	// APIKey enables credential checks when non-empty.
	APIKey string
	// SecureEndpoints keeps sensitive routes closed when no APIKey is set.
	SecureEndpoints bool
}

// New builds the echo engine with all routes registered.
func New(opts Opts) *echo.Echo {
	r := &Router{
		dispatcher:      opts.Dispatcher,
		state:           opts.State,
		external:        opts.External,
		apiKey:          opts.APIKey,
		secureEndpoints: opts.SecureEndpoints,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(requireJSON)

	g := e.Group("/api")
	g.Use(r.keyAuth)
	r.register(g)
	return e
}

// respond writes the envelope as the single HTTP reply. Envelopes without an
// explicit status map to 200; clients branch on the success field, matching
// the channel surface where there is no status code at all.
func respond(c echo.Context, e *query.Envelope) error {
	status := e.Status
	if status == 0 {
		status = http.StatusOK
	}
	return c.JSON(status, e)
}

// run dispatches q and writes its single response.
func (r *Router) run(c echo.Context, q *query.Query) error {
	var out *query.Envelope
	r.dispatcher.Run(c.Request().Context(), q, query.NewFuncResponder(func(e *query.Envelope) {
		out = e
	}))
	if out == nil {
		// Handlers that acknowledge before async work always respond
		// synchronously; a nil here means a handler broke the contract.
		out = query.ErrorInfo(errNoResponse).WithStatus(500)
	}
	return respond(c, out)
}

var errNoResponse = errors.New("handler produced no response")
