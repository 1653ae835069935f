package dispatch

import (
	"context"
	"encoding/json"

	"github.com/morezero/mirror-remote/pkg/pkgmgr"
	"github.com/morezero/mirror-remote/pkg/query"
)

// dataHandlers is the Data Query Registry. Keys are the camel-cased names
// accepted on both surfaces.
var dataHandlers = map[string]DataFunc{
	"saves":      listSaves,
	"classes":    listClasses,
	"brightness": stateValue("brightness"),
	"temp":       stateValue("temp"),
	"zoom":       stateValue("zoom"),

	"moduleInstalled": moduleInstalled,
	"moduleAvailable": moduleAvailable,

	"translations":      listTranslations,
	"mmUpdateAvailable": mmUpdateAvailable,
	"config":            currentConfig,
	"defaultConfig":     defaultConfig,
	"userPresence":      presenceValue,
	"modules":           listModules,
	"delayedTimers":     listTimers,
}

func listSaves(_ context.Context, d *Deps, _ *query.Query, r query.Responder) {
	saves, err := d.Store.Saves()
	if err != nil {
		r.Respond(query.ErrorInfo(err))
		return
	}
	r.Respond(query.OK().With("data", saves))
}

func listClasses(_ context.Context, d *Deps, _ *query.Query, r query.Responder) {
	r.Respond(query.OK().With("data", d.State.Classes()))
}

func stateValue(key string) DataFunc {
	return func(_ context.Context, d *Deps, _ *query.Query, r query.Responder) {
		var v int
		switch key {
		case "brightness":
			v = d.State.Brightness()
		case "temp":
			v = d.State.Temp()
		default:
			v = d.State.Zoom()
		}
		r.Respond(query.OK().With("result", v))
	}
}

// moduleInstalled lists widgets found on disk, annotated with how far behind
// upstream each one is.
func moduleInstalled(_ context.Context, d *Deps, _ *query.Query, r query.Responder) {
	names, err := d.Packages.Installed()
	if err != nil {
		r.Respond(query.ErrorInfo(err))
		return
	}
	behind := d.Updates.Status().Modules
	out := make([]pkgmgr.ModuleInfo, 0, len(names))
	for _, name := range names {
		info := pkgmgr.ModuleInfo{Name: name, Installed: true}
		if n := behind[name]; n > 0 {
			info.UpdateInfo = "behind"
		}
		out = append(out, info)
	}
	r.Respond(query.OK().With("data", out))
}

func moduleAvailable(ctx context.Context, d *Deps, _ *query.Query, r query.Responder) {
	available, err := d.Packages.Available(ctx)
	if err != nil {
		r.Respond(query.ErrorInfo(err))
		return
	}
	r.Respond(query.OK().With("data", available))
}

func listTranslations(_ context.Context, d *Deps, _ *query.Query, r query.Responder) {
	r.Respond(query.OK().With("data", d.State.Translations()))
}

func mmUpdateAvailable(_ context.Context, d *Deps, _ *query.Query, r query.Responder) {
	r.Respond(query.OK().With("result", d.Updates.Status().Mirror))
}

func currentConfig(_ context.Context, d *Deps, _ *query.Query, r query.Responder) {
	cfg, err := d.Store.Config()
	if err != nil {
		r.Respond(query.ErrorInfo(err))
		return
	}
	r.Respond(query.OK().With("data", json.RawMessage(cfg)))
}

func defaultConfig(_ context.Context, d *Deps, q *query.Query, r query.Responder) {
	cfg, err := d.Store.Default(q.Module)
	if err != nil {
		r.Respond(query.ErrorInfo(err))
		return
	}
	r.Respond(query.OK().With("data", json.RawMessage(cfg)))
}

func presenceValue(_ context.Context, d *Deps, _ *query.Query, r query.Responder) {
	r.Respond(query.OK().With("result", d.State.UserPresence()))
}

func listModules(_ context.Context, d *Deps, _ *query.Query, r query.Responder) {
	r.Respond(query.OK().With("data", d.State.Modules()))
}

func listTimers(_ context.Context, d *Deps, _ *query.Query, r query.Responder) {
	r.Respond(query.OK().With("data", d.Delays.PendingEntries()))
}
