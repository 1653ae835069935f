// Package extapi implements the runtime-mutable table of widget-exposed
// remote actions, populated by explicit registration messages and by a
// best-effort static scan of widget source.
package extapi

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/morezero/mirror-remote/pkg/state"
)

const logPrefix = "extapi:registry"

// ActionDescriptor is one externally exposed action of a widget.
type ActionDescriptor struct {
	Notification string `json:"notification"`
	Payload      any    `json:"payload,omitempty"`
	Method       string `json:"method,omitempty"`
	PrettyName   string `json:"prettyName,omitempty"`
	Guessed      bool   `json:"guessed,omitempty"`
}

// Route is one widget's registered remote-control surface.
type Route struct {
	Module  string                      `json:"module"`
	Path    string                      `json:"path"`
	Actions map[string]ActionDescriptor `json:"actions"`
	Guessed bool                        `json:"guessed,omitempty"`
}

// Registry is the external API route table. Writes replace entries wholesale
// so a reader never observes a half-updated descriptor.
type Registry struct {
	mu     sync.RWMutex
	routes map[string]Route

	// onChange is invoked after every mutation (best-effort menu broadcast).
	onChange func()
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{routes: make(map[string]Route)}
}

// OnChange sets the callback invoked after every registry mutation.
func (r *Registry) OnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Register stores a widget's explicit action map, replacing any previous
// entry for that widget. An empty action map unregisters the widget entirely;
// that is the documented unregistration signal, not an error.
func (r *Registry) Register(module string, actions map[string]ActionDescriptor) {
	path := state.Slug(module)

	r.mu.Lock()
	if len(actions) == 0 {
		delete(r.routes, path)
		slog.Info(fmt.Sprintf("%s - unregistered external API for %s", logPrefix, module))
	} else {
		// Keep previously guessed actions whose keys the explicit
		// registration does not claim.
		merged := make(map[string]ActionDescriptor, len(actions))
		if prev, ok := r.routes[path]; ok {
			for k, a := range prev.Actions {
				if a.Guessed {
					merged[k] = a
				}
			}
		}
		for k, a := range actions {
			a.Guessed = false
			merged[k] = a
		}
		r.routes[path] = Route{Module: module, Path: path, Actions: merged}
		slog.Info(fmt.Sprintf("%s - registered external API for %s (%d actions)", logPrefix, module, len(actions)))
	}
	onChange := r.onChange
	r.mu.Unlock()

	if onChange != nil {
		onChange()
	}
}

// MergeGuessed adds auto-discovered actions beneath any explicit entry for
// the widget: a guessed action never overwrites an existing key, regardless
// of arrival order.
func (r *Registry) MergeGuessed(module string, actions map[string]ActionDescriptor) {
	if len(actions) == 0 {
		return
	}
	path := state.Slug(module)

	r.mu.Lock()
	route, ok := r.routes[path]
	if !ok {
		route = Route{Module: module, Path: path, Actions: make(map[string]ActionDescriptor), Guessed: true}
	}
	merged := make(map[string]ActionDescriptor, len(route.Actions)+len(actions))
	for k, a := range actions {
		a.Guessed = true
		merged[k] = a
	}
	for k, a := range route.Actions {
		merged[k] = a
	}
	route.Actions = merged
	r.routes[path] = route
	onChange := r.onChange
	r.mu.Unlock()

	if onChange != nil {
		onChange()
	}
}

// Lookup finds a route by widget name or path slug.
func (r *Registry) Lookup(nameOrPath string) (Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if route, ok := r.routes[nameOrPath]; ok {
		return copyRoute(route), true
	}
	for _, route := range r.routes {
		if route.Module == nameOrPath {
			return copyRoute(route), true
		}
	}
	if route, ok := r.routes[state.Slug(nameOrPath)]; ok {
		return copyRoute(route), true
	}
	return Route{}, false
}

// All returns a copy of every registered route keyed by path slug.
func (r *Registry) All() map[string]Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Route, len(r.routes))
	for k, route := range r.routes {
		out[k] = copyRoute(route)
	}
	return out
}

func copyRoute(route Route) Route {
	actions := make(map[string]ActionDescriptor, len(route.Actions))
	for k, a := range route.Actions {
		actions[k] = a
	}
	route.Actions = actions
	return route
}
