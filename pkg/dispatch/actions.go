package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/morezero/mirror-remote/pkg/modules"
	"github.com/morezero/mirror-remote/pkg/pkgmgr"
	"github.com/morezero/mirror-remote/pkg/query"
	"github.com/morezero/mirror-remote/pkg/state"
)

const actionsPrefix = "dispatch:actions"

// actionHandlers is the Action Registry. Keys are the uppercase action names
// accepted on both the HTTP and channel surfaces.
var actionHandlers = map[string]ActionFunc{
	"SHOW":   visibilityAction("SHOW"),
	"HIDE":   visibilityAction("HIDE"),
	"TOGGLE": visibilityAction("TOGGLE"),
	"FORCE":  forceShow,

	"REFRESH":          relayAction("REFRESH"),
	"MINIMIZE":         relayAction("MINIMIZE"),
	"TOGGLEFULLSCREEN": relayAction("TOGGLEFULLSCREEN"),
	"DEVTOOLS":         relayAction("DEVTOOLS"),

	"RESTART": stopProcess(true),
	"STOP":    stopProcess(false),

	"SHUTDOWN": hostPower(false),
	"REBOOT":   hostPower(true),

	"BRIGHTNESS": sliderAction("BRIGHTNESS"),
	"TEMP":       sliderAction("TEMP"),
	"ZOOM":       sliderAction("ZOOM"),

	"SAVE":        saveCurrent,
	"NEW_CONFIG":  saveConfig,
	"UNDO_CONFIG": undoConfig,

	"MONITORON":     monitorAction("ON"),
	"MONITOROFF":    monitorAction("OFF"),
	"MONITORTOGGLE": monitorAction("TOGGLE"),
	"MONITORSTATUS": monitorAction("STATUS"),

	"NOTIFICATION":   relayNotification,
	"SHOW_ALERT":     alertAction("SHOW_ALERT"),
	"HIDE_ALERT":     alertAction("HIDE_ALERT"),
	"MANAGE_CLASSES": manageClasses,
	"USER_PRESENCE":  userPresence,

	"DELAYED": scheduleDelayed,
	"INSTALL": installModule,
	"UPDATE":  updateModule,
	"COMMAND": runCommand,
}

// visibilityAction fans the named visibility change out to every instance the
// query's module key resolves to.
func visibilityAction(notification string) ActionFunc {
	return func(_ context.Context, d *Deps, q *query.Query, r query.Responder) {
		modules.Execute(d.Notifier, d.State.Modules(), q.Module, notification, query.NormalizePayload(q.Payload), q.Force, r)
	}
}

// forceShow is SHOW with the force flag set, overriding widget lock strings.
func forceShow(_ context.Context, d *Deps, q *query.Query, r query.Responder) {
	modules.Execute(d.Notifier, d.State.Modules(), q.Module, "SHOW", query.NormalizePayload(q.Payload), true, r)
}

// relayAction forwards the action to the host app unchanged.
func relayAction(notification string) ActionFunc {
	return func(_ context.Context, d *Deps, q *query.Query, r query.Responder) {
		if err := d.Notifier.Notify(notification, query.NormalizePayload(q.Payload)); err != nil {
			r.Respond(query.ErrorInfo(err))
			return
		}
		r.Respond(query.OK())
	}
}

// stopProcess acknowledges first, then asks the supervisor to stop (and
// optionally restart) the service. The response must be written before the
// process goes away.
func stopProcess(restart bool) ActionFunc {
	return func(_ context.Context, d *Deps, q *query.Query, r query.Responder) {
		r.Respond(query.OK())
		if d.Shutdown == nil {
			slog.Warn(fmt.Sprintf("%s - no shutdown hook wired, ignoring %s", actionsPrefix, q.Action))
			return
		}
		go d.Shutdown(restart)
	}
}

// hostPower acknowledges first, then powers the host down or reboots it.
func hostPower(reboot bool) ActionFunc {
	return func(_ context.Context, d *Deps, _ *query.Query, r query.Responder) {
		r.Respond(query.OK())
		go func() {
			var err error
			if reboot {
				err = d.System.Reboot(context.Background())
			} else {
				err = d.System.Shutdown(context.Background())
			}
			if err != nil {
				slog.Error(fmt.Sprintf("%s - host power command failed: %v", actionsPrefix, err))
			}
		}()
	}
}

// sliderAction validates the numeric value, records it, and forwards it to
// the host app.
func sliderAction(notification string) ActionFunc {
	return func(_ context.Context, d *Deps, q *query.Query, r query.Responder) {
		v, err := strconv.Atoi(q.Value)
		if err != nil {
			r.Respond(query.Error(fmt.Sprintf("invalid %s value %q", notification, q.Value)).WithStatus(400))
			return
		}
		switch notification {
		case "BRIGHTNESS":
			d.State.SetBrightness(v)
		case "TEMP":
			d.State.SetTemp(v)
		case "ZOOM":
			d.State.SetZoom(v)
		}
		if err := d.Notifier.Notify(notification, v); err != nil {
			r.Respond(query.ErrorInfo(err))
			return
		}
		r.Respond(query.OK().With(keyFor(notification), v))
	}
}

func keyFor(notification string) string {
	switch notification {
	case "BRIGHTNESS":
		return "brightness"
	case "TEMP":
		return "temp"
	default:
		return "zoom"
	}
}

// saveConfig persists the payload as the current config document, backing the
// previous one up first.
func saveConfig(_ context.Context, d *Deps, q *query.Query, r query.Responder) {
	raw, err := payloadJSON(q.Payload)
	if err != nil {
		r.Respond(query.Error("config payload is not valid JSON").WithStatus(400))
		return
	}
	if err := d.Store.SetConfig(raw); err != nil {
		r.Respond(query.ErrorInfo(err))
		return
	}
	r.Respond(query.OK())
}

// saveCurrent persists the supplied payload when there is one, and otherwise
// the latest config snapshot the host app reported. SAVE arrives without a
// body from the plain HTTP route.
func saveCurrent(ctx context.Context, d *Deps, q *query.Query, r query.Responder) {
	if q.Payload != nil {
		saveConfig(ctx, d, q, r)
		return
	}
	snapshot := d.State.Config()
	if snapshot == nil {
		r.Respond(query.Error("no config reported by the display yet, nothing to save").WithStatus(400))
		return
	}
	if err := d.Store.SetConfig(snapshot); err != nil {
		r.Respond(query.ErrorInfo(err))
		return
	}
	r.Respond(query.OK())
}

// undoConfig restores the most recent backup and hands the restored document
// back so the caller can apply it.
func undoConfig(_ context.Context, d *Deps, _ *query.Query, r query.Responder) {
	restored, err := d.Store.Undo()
	if err != nil {
		r.Respond(query.ErrorInfo(err))
		return
	}
	r.Respond(query.OK().With("config", json.RawMessage(restored)))
}

func payloadJSON(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return nil, fmt.Errorf("empty payload")
	case string:
		if !json.Valid([]byte(p)) {
			return nil, fmt.Errorf("invalid JSON")
		}
		return json.RawMessage(p), nil
	default:
		return json.Marshal(p)
	}
}

// monitorAction drives display power. STATUS is the read side; the others
// mutate and report the resulting state.
func monitorAction(verb string) ActionFunc {
	return func(ctx context.Context, d *Deps, _ *query.Query, r query.Responder) {
		var (
			status string
			err    error
		)
		switch verb {
		case "ON":
			err = d.System.MonitorOn(ctx, d.Notifier)
			status = "on"
		case "OFF":
			err = d.System.MonitorOff(ctx, d.Notifier)
			status = "off"
		case "TOGGLE":
			status, err = d.System.MonitorToggle(ctx, d.Notifier)
		default:
			status, err = d.System.MonitorStatus(ctx)
		}
		if err != nil {
			r.Respond(query.ErrorInfo(err))
			return
		}
		r.Respond(query.OK().With("monitor", status))
	}
}

// relayNotification forwards an arbitrary notification to the host app. A
// payload arriving as a JSON string is decoded; a string that is not JSON
// goes through as-is.
func relayNotification(_ context.Context, d *Deps, q *query.Query, r query.Responder) {
	if q.Notification == "" {
		r.Respond(query.Error("notification name is required").WithStatus(400))
		return
	}
	if err := d.Notifier.Notify(q.Notification, query.NormalizePayload(q.Payload)); err != nil {
		r.Respond(query.ErrorInfo(err))
		return
	}
	r.Respond(query.OK())
}

// alertAction relays overlay alert control to the host app.
func alertAction(notification string) ActionFunc {
	return func(_ context.Context, d *Deps, q *query.Query, r query.Responder) {
		if err := d.Notifier.Notify(notification, query.NormalizePayload(q.Payload)); err != nil {
			r.Respond(query.ErrorInfo(err))
			return
		}
		r.Respond(query.OK())
	}
}

// manageClasses expands a named class into the per-module visibility changes
// its definition lists. Unknown classes are an error; each listed module gets
// its own notification and the caller still receives exactly one response.
func manageClasses(_ context.Context, d *Deps, q *query.Query, r query.Responder) {
	names := classNames(q.Payload)
	if len(names) == 0 {
		r.Respond(query.Error("no classes named in payload").WithStatus(400))
		return
	}

	defined := d.State.Classes()
	instances := d.State.Modules()
	total := 0
	for _, name := range names {
		actions, ok := defined[name]
		if !ok {
			r.Respond(query.Error(fmt.Sprintf("unknown class %q", name)).WithStatus(400))
			return
		}
		for _, m := range actions.Show {
			total += notifyClassTargets(d, instances, m, "SHOW")
		}
		for _, m := range actions.Hide {
			total += notifyClassTargets(d, instances, m, "HIDE")
		}
		for _, m := range actions.Toggle {
			total += notifyClassTargets(d, instances, m, "TOGGLE")
		}
	}
	r.Respond(query.OK().With("matched", total))
}

// notifyClassTargets notifies every instance the class entry's module key
// resolves to. A key matching nothing is skipped rather than failing the
// whole class expansion.
func notifyClassTargets(d *Deps, instances []state.ModuleInstance, key, notification string) int {
	matched := modules.Resolve(instances, key)
	for _, m := range matched {
		if err := d.Notifier.Notify(notification, map[string]any{"module": m.Identifier}); err != nil {
			slog.Warn(fmt.Sprintf("%s - class %s for %s failed: %v", actionsPrefix, notification, m.Identifier, err))
		}
	}
	return len(matched)
}

func classNames(payload any) []string {
	switch p := query.NormalizePayload(payload).(type) {
	case string:
		return []string{p}
	case []any:
		var out []string
		for _, v := range p {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case map[string]any:
		return classNames(p["classes"])
	default:
		return nil
	}
}

// userPresence sets presence when a value is supplied, otherwise reports the
// current value.
func userPresence(_ context.Context, d *Deps, q *query.Query, r query.Responder) {
	if q.Value == "" && q.Payload == nil {
		r.Respond(query.OK().With("userPresence", d.State.UserPresence()))
		return
	}
	present := q.Value == "true"
	if b, ok := q.Payload.(bool); ok {
		present = b
	}
	d.State.SetUserPresence(present)
	if err := d.Notifier.Notify("USER_PRESENCE", present); err != nil {
		r.Respond(query.ErrorInfo(err))
		return
	}
	r.Respond(query.OK().With("userPresence", present))
}

// scheduleDelayed hands the inner query to the delay scheduler and
// acknowledges with the timer id. Abort acknowledgements carry the same id.
func scheduleDelayed(_ context.Context, d *Deps, q *query.Query, r query.Responder) {
	if q.Query == nil && !q.Abort {
		r.Respond(query.Error("delayed query carries no inner query").WithStatus(400))
		return
	}
	id, aborted := d.Delays.Schedule(q)
	r.Respond(query.OK().With("delayed", id).With("aborted", aborted))
}

// installModule clones a widget repository and installs its dependencies.
func installModule(ctx context.Context, d *Deps, q *query.Query, r query.Responder) {
	if q.URL == "" {
		r.Respond(query.Error("install requires a repository url").WithStatus(400))
		return
	}
	if err := d.Packages.Install(ctx, q.URL); err != nil {
		r.Respond(query.ErrorInfo(err))
		return
	}
	r.Respond(query.OK().With("installed", pkgmgr.RepoName(q.URL)))
}

// updateModule pulls a widget, or the display app itself under the reserved
// aliases.
func updateModule(ctx context.Context, d *Deps, q *query.Query, r query.Responder) {
	if q.Module == "" {
		r.Respond(query.Error("update requires a module name").WithStatus(400))
		return
	}
	var (
		out string
		err error
	)
	switch q.Module {
	case "mm":
		out, err = d.Packages.UpdateDir(ctx, d.MirrorDir)
	case "rc":
		out, err = d.Packages.UpdateDir(ctx, d.OwnDir)
	default:
		out, err = d.Packages.Update(ctx, q.Module)
	}
	if err != nil {
		r.Respond(query.ErrorInfo(err))
		return
	}
	r.Respond(query.OK().With("result", out))
}

// runCommand executes a configured command alias.
func runCommand(ctx context.Context, d *Deps, q *query.Query, r query.Responder) {
	out, err := d.System.Command(ctx, q.Value)
	if err != nil {
		r.Respond(query.ErrorInfo(err))
		return
	}
	r.Respond(query.OK().With("result", out))
}
