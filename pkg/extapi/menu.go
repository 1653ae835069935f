package extapi

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/morezero/mirror-remote/pkg/notify"
)

const menuPrefix = "extapi:menu"

// MenuNotification is broadcast to display clients whenever the route table
// changes, carrying a rebuilt control menu.
const MenuNotification = "REMOTE_CLIENT_MODULEAPI_MENU"

// MenuItem is one entry of the client-facing control menu.
type MenuItem struct {
	ID      string     `json:"id"`
	Type    string     `json:"type"`
	Text    string     `json:"text"`
	Action  string     `json:"action,omitempty"`
	Content string     `json:"content,omitempty"`
	Items   []MenuItem `json:"items,omitempty"`
}

// BuildMenu renders the current route table as a menu tree rooted at the
// module-control entry. Widgets and their actions are sorted for a stable
// client rendering. translate localizes each label when the host app has
// reported a translation for it; nil leaves labels untouched.
func (r *Registry) BuildMenu(translate func(string) string) MenuItem {
	if translate == nil {
		translate = func(s string) string { return s }
	}
	routes := r.All()

	paths := make([]string, 0, len(routes))
	for path := range routes {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	root := MenuItem{ID: "module-control", Type: "menu", Text: translate("Module Control")}
	for _, path := range paths {
		route := routes[path]

		keys := make([]string, 0, len(route.Actions))
		for k := range route.Actions {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sub := MenuItem{ID: "mc-" + path, Type: "menu", Text: route.Module}
		for _, k := range keys {
			a := route.Actions[k]
			text := a.PrettyName
			if text == "" {
				text = prettyName(a.Notification)
			}
			sub.Items = append(sub.Items, MenuItem{
				ID:      "mc-" + path + "-" + k,
				Type:    "item",
				Text:    translate(text),
				Action:  k,
				Content: path,
			})
		}
		root.Items = append(root.Items, sub)
	}
	return root
}

// BroadcastMenu pushes the rebuilt menu to display clients. Delivery is best
// effort; a publish failure is logged and swallowed.
func (r *Registry) BroadcastMenu(n notify.Notifier, translate func(string) string) {
	if n == nil {
		return
	}
	if err := n.Notify(MenuNotification, r.BuildMenu(translate)); err != nil {
		slog.Warn(fmt.Sprintf("%s - menu broadcast failed: %v", menuPrefix, err))
	}
}
