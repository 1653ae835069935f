// Package modules resolves user-supplied widget keys to display instances
// and fans a single command out across every matching instance.
package modules

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/morezero/mirror-remote/pkg/notify"
	"github.com/morezero/mirror-remote/pkg/query"
	"github.com/morezero/mirror-remote/pkg/state"
)

const logPrefix = "modules:fanout"

// Resolve maps a widget key to the display instances it addresses. The key
// "all" selects every instance. Otherwise a first pass matches the key as a
// substring of identifier, name, or path slug; if nothing matches, a second
// pass retries case-insensitively against the name alone.
func Resolve(instances []state.ModuleInstance, key string) []state.ModuleInstance {
	if key == "all" {
		out := make([]state.ModuleInstance, len(instances))
		copy(out, instances)
		return out
	}

	var found []state.ModuleInstance
	for _, m := range instances {
		if strings.Contains(m.Identifier, key) || strings.Contains(m.Name, key) || strings.Contains(m.URLPath, key) {
			found = append(found, m)
		}
	}
	if len(found) > 0 {
		return found
	}

	lower := strings.ToLower(key)
	for _, m := range instances {
		if strings.Contains(strings.ToLower(m.Name), lower) {
			found = append(found, m)
		}
	}
	return found
}

// Execute sends notification to every instance matching the key and writes
// exactly one response to the responder, regardless of how many instances
// matched. An unmatched key is an error; matched instances each receive
// their own notification carrying their identifier.
func Execute(n notify.Notifier, instances []state.ModuleInstance, key, notification string, payload any, force bool, r query.Responder) {
	matched := Resolve(instances, key)
	if len(matched) == 0 {
		r.Respond(query.Error(fmt.Sprintf("no module matches %q", key)).WithStatus(400))
		return
	}

	for _, m := range matched {
		p := map[string]any{"module": m.Identifier}
		if force {
			p["force"] = true
		}
		p = mergeExtra(p, payload)
		if err := n.Notify(notification, p); err != nil {
			slog.Warn(fmt.Sprintf("%s - notify %s for %s failed: %v", logPrefix, notification, m.Identifier, err))
		}
	}
	r.Respond(query.OK().With("matched", len(matched)))
}

func mergeExtra(base map[string]any, payload any) map[string]any {
	obj, ok := payload.(map[string]any)
	if !ok {
		return base
	}
	for k, v := range obj {
		if _, exists := base[k]; !exists {
			base[k] = v
		}
	}
	return base
}
