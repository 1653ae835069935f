package extapi

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const guessPrefix = "extapi:guess"

// notificationPattern matches the two handler shapes widget source uses for
// inbound notifications: equality checks and switch cases.
var notificationPattern = regexp.MustCompile(`notification\s*===?\s*"([A-Z_-]+)"|case\s*'([A-Z_-]+)'`)

// skipModules never get a guessed API surface.
var skipModules = map[string]bool{
	"clock":              true,
	"MMM-Remote-Control": true,
}

// lifecycleNotifications are broadcast by the display core itself and would
// be meaningless as remote actions.
var lifecycleNotifications = map[string]bool{
	"ALL_MODULES_STARTED":   true,
	"DOM_OBJECTS_CREATED":   true,
	"MODULE_DOM_CREATED":    true,
	"KEYPRESS_MODE_CHANGED": true,
}

// Scan reads each named widget's main source file under modulesDir and
// merges any notifications it appears to handle into the registry as
// guessed actions. A widget whose source cannot be read is skipped; the
// scan is best effort and never fails as a whole.
func (r *Registry) Scan(modulesDir string, moduleNames []string) {
	for _, name := range moduleNames {
		if skipModules[name] {
			continue
		}
		actions, err := guessActions(modulesDir, name)
		if err != nil {
			slog.Debug(fmt.Sprintf("%s - skipping %s: %v", guessPrefix, name, err))
			continue
		}
		if len(actions) == 0 {
			continue
		}
		r.MergeGuessed(name, actions)
		slog.Info(fmt.Sprintf("%s - guessed %d actions for %s", guessPrefix, len(actions), name))
	}
}

func guessActions(modulesDir, name string) (map[string]ActionDescriptor, error) {
	src, err := os.ReadFile(filepath.Join(modulesDir, name, name+".js"))
	if err != nil {
		return nil, err
	}

	actions := make(map[string]ActionDescriptor)
	for _, match := range notificationPattern.FindAllStringSubmatch(string(src), -1) {
		notification := match[1]
		if notification == "" {
			notification = match[2]
		}
		if notification == "" || lifecycleNotifications[notification] {
			continue
		}
		key := actionKey(notification)
		if key == "" {
			continue
		}
		actions[key] = ActionDescriptor{
			Notification: notification,
			PrettyName:   prettyName(notification),
			Guessed:      true,
		}
	}
	return actions, nil
}

// actionKey derives the URL-facing action key from a notification name:
// lowercased with separators removed.
func actionKey(notification string) string {
	s := strings.ToLower(notification)
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}

// prettyName renders a notification name as a human title, one word per
// separator-delimited segment.
func prettyName(notification string) string {
	parts := strings.FieldsFunc(notification, func(r rune) bool {
		return r == '_' || r == '-'
	})
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return strings.Join(parts, " ")
}
