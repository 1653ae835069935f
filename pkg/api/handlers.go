package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/morezero/mirror-remote/pkg/query"
)

var digitsOnly = regexp.MustCompile(`^\d+$`)

// simpleVerbs map their path segment straight onto an action key.
var simpleVerbs = []string{
	"refresh", "shutdown", "reboot", "restart", "save",
	"minimize", "togglefullscreen", "devtools",
}

// securedVerbs within simpleVerbs fall under the secure-endpoints policy.
var securedVerbs = map[string]bool{
	"shutdown": true, "reboot": true, "restart": true, "save": true,
}

// monitorVerbs are the accepted monitor sub-actions.
var monitorVerbs = map[string]string{
	"on": "MONITORON", "off": "MONITOROFF",
	"toggle": "MONITORTOGGLE", "status": "MONITORSTATUS",
}

// dataRoutes map a GET path tail onto a data query key.
var dataRoutes = map[string]string{
	"saves":             "saves",
	"classes":           "classes",
	"module/installed":  "moduleInstalled",
	"module/available":  "moduleAvailable",
	"brightness":        "brightness",
	"translations":      "translations",
	"mmUpdateAvailable": "mmUpdateAvailable",
	"config":            "config",
	"userpresence":      "userPresence",
	"timers":            "delayedTimers",
}

func (r *Router) register(g *echo.Group) {
	g.GET("", r.handleTest)
	g.GET("/", r.handleTest)
	g.GET("/test", r.handleTest)
	g.GET("/docs", r.handleDocs)

	for tail, key := range dataRoutes {
		g.GET("/"+tail, r.dataHandler(key))
	}

	for _, verb := range simpleVerbs {
		h := r.actionHandler(strings.ToUpper(verb))
		if securedVerbs[verb] {
			h = r.secured(h)
		}
		g.GET("/"+verb, h)
		g.POST("/"+verb, h)
		g.GET("/"+verb+"/delay", h)
		g.POST("/"+verb+"/delay", h)
	}

	g.GET("/brightness/:setting", r.handleBrightness)
	g.GET("/classes/:value", r.handleClassValue)
	g.GET("/command/:value", r.secured(r.handleCommand))
	g.GET("/userpresence/:value", r.handleUserPresence)
	g.GET("/update", r.dataHandler("mmUpdateAvailable"))
	g.GET("/update/:moduleName", r.secured(r.handleUpdate))
	g.POST("/install", r.secured(r.handleInstall))
	g.POST("/config/edit", r.secured(r.handleConfigEdit))

	notification := r.secured(r.handleNotification)
	g.GET("/notification/:notification", notification)
	g.POST("/notification/:notification", notification)
	g.GET("/notification/:notification/delay", notification)
	g.POST("/notification/:notification/delay", notification)
	g.GET("/notification/:notification/:p", notification)
	g.POST("/notification/:notification/:p", notification)
	g.GET("/notification/:notification/:p/delay", notification)
	g.POST("/notification/:notification/:p/delay", notification)

	module := r.secured(r.handleModule)
	g.GET("/module", module)
	g.POST("/module", module)
	g.GET("/module/:moduleName", module)
	g.POST("/module/:moduleName", module)
	g.GET("/module/:moduleName/:action", module)
	g.POST("/module/:moduleName/:action", module)
	g.GET("/module/:moduleName/:action/delay", module)
	g.POST("/module/:moduleName/:action/delay", module)

	monitor := r.secured(r.handleMonitor)
	g.GET("/monitor", monitor)
	g.POST("/monitor", monitor)
	g.GET("/monitor/:action", monitor)
	g.POST("/monitor/:action", monitor)
	g.GET("/monitor/:action/delay", monitor)
	g.POST("/monitor/:action/delay", monitor)
}

func (r *Router) handleTest(c echo.Context) error {
	return respond(c, query.OK())
}

// handleDocs lists every registered route.
func (r *Router) handleDocs(c echo.Context) error {
	routes := c.Echo().Routes()
	out := make([]string, 0, len(routes))
	for _, rt := range routes {
		out = append(out, rt.Method+" "+rt.Path)
	}
	sort.Strings(out)
	return respond(c, query.OK().With("routes", out))
}

func (r *Router) dataHandler(key string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return r.run(c, &query.Query{Data: key})
	}
}

func (r *Router) actionHandler(action string) echo.HandlerFunc {
	return func(c echo.Context) error {
		q := &query.Query{Action: action, Payload: requestPayload(c)}
		return r.run(c, r.maybeDelay(c, q))
	}
}

// maybeDelay wraps q in a deferred-execution query when the route carries the
// trailing delay segment. The wrapped query is acknowledged immediately; the
// inner one fires later through the same dispatcher with no responder.
func (r *Router) maybeDelay(c echo.Context, q *query.Query) *query.Query {
	if !strings.HasSuffix(c.Path(), "/delay") {
		return q
	}
	outer := &query.Query{
		Action: "DELAYED",
		Did:    c.QueryParam("did"),
		Abort:  c.QueryParam("abort") == "true",
		Query:  q,
	}
	if t := c.QueryParam("timeout"); t != "" {
		if secs, err := strconv.ParseFloat(t, 64); err == nil {
			outer.Timeout = secs
		}
	}
	return outer
}

// handleMonitor maps the monitor sub-action onto its MONITOR* action; a bare
// /monitor reads the status.
func (r *Router) handleMonitor(c echo.Context) error {
	verb := strings.ToLower(c.Param("action"))
	if verb == "" {
		verb = "status"
	}
	action, ok := monitorVerbs[verb]
	if !ok {
		return respond(c, query.Error(fmt.Sprintf("unknown monitor action %q", verb)).WithStatus(400))
	}
	return r.run(c, r.maybeDelay(c, &query.Query{Action: action}))
}

func (r *Router) handleBrightness(c echo.Context) error {
	setting := c.Param("setting")
	if !digitsOnly.MatchString(setting) {
		return respond(c, query.Error(fmt.Sprintf("brightness value %q is not numeric", setting)).WithStatus(400))
	}
	return r.run(c, &query.Query{Action: "BRIGHTNESS", Value: setting})
}

// handleClassValue validates the class name against the configured class set
// before dispatching, so the error can list the valid values.
func (r *Router) handleClassValue(c echo.Context) error {
	value := c.Param("value")
	defined := r.state.Classes()
	if _, ok := defined[value]; !ok {
		valid := make([]string, 0, len(defined))
		for name := range defined {
			valid = append(valid, name)
		}
		sort.Strings(valid)
		return respond(c, query.Error(fmt.Sprintf("unknown class %q, valid classes: %s", value, strings.Join(valid, ", "))).WithStatus(400))
	}
	return r.run(c, &query.Query{Action: "MANAGE_CLASSES", Payload: map[string]any{"classes": value}})
}

func (r *Router) handleCommand(c echo.Context) error {
	return r.run(c, &query.Query{Action: "COMMAND", Value: c.Param("value")})
}

func (r *Router) handleUserPresence(c echo.Context) error {
	value := c.Param("value")
	if value != "true" && value != "false" {
		return respond(c, query.Error(fmt.Sprintf("user presence must be true or false, got %q", value)).WithStatus(400))
	}
	return r.run(c, &query.Query{Action: "USER_PRESENCE", Value: value})
}

func (r *Router) handleUpdate(c echo.Context) error {
	return r.run(c, &query.Query{Action: "UPDATE", Module: c.Param("moduleName")})
}

func (r *Router) handleInstall(c echo.Context) error {
	var body struct {
		URL string `json:"url"`
	}
	if err := c.Bind(&body); err != nil || body.URL == "" {
		return respond(c, query.Error("install body must carry a url field").WithStatus(400))
	}
	return r.run(c, &query.Query{Action: "INSTALL", URL: body.URL})
}

func (r *Router) handleConfigEdit(c echo.Context) error {
	var body struct {
		Payload any `json:"payload"`
	}
	if err := c.Bind(&body); err != nil || body.Payload == nil {
		return respond(c, query.Error("config edit body must carry a payload field").WithStatus(400))
	}
	return r.run(c, &query.Query{Action: "NEW_CONFIG", Payload: body.Payload})
}

// handleNotification relays a free-form notification. Query-string fields,
// any JSON body, and the optional :p path parameter all merge into the
// payload; a bare primitive payload passes through untouched.
func (r *Router) handleNotification(c echo.Context) error {
	payload := requestPayload(c)
	if p := c.Param("p"); p != "" {
		payload = query.MergePayloads(query.NormalizePayload(p), payload)
	}
	q := &query.Query{
		Action:       "NOTIFICATION",
		Notification: c.Param("notification"),
		Payload:      payload,
	}
	return r.run(c, r.maybeDelay(c, q))
}

// handleModule routes module-targeted requests: visibility verbs fan out,
// "defaults" reads the stored default config, anything else relays through
// the external API registry, and a bare module path reports what is known
// about that module.
func (r *Router) handleModule(c echo.Context) error {
	name := c.Param("moduleName")
	action := strings.ToLower(c.Param("action"))

	if name == "" {
		return respond(c, query.OK().With("data", r.external.All()))
	}

	switch action {
	case "":
		return r.describeModule(c, name)
	case "show", "hide", "toggle", "force":
		q := &query.Query{
			Action:  strings.ToUpper(action),
			Module:  name,
			Payload: requestPayload(c),
		}
		if action == "force" {
			q.Action = "FORCE"
		}
		return r.run(c, r.maybeDelay(c, q))
	case "defaults":
		return r.run(c, &query.Query{Data: "defaultConfig", Module: name})
	default:
		return r.relayExternal(c, name, action)
	}
}

func (r *Router) describeModule(c echo.Context, name string) error {
	if route, ok := r.external.Lookup(name); ok {
		return respond(c, query.OK().With("data", route))
	}
	return respond(c, query.Error(fmt.Sprintf("module name or identifier %q not found", name)).WithStatus(400))
}

// relayExternal resolves an external-API action and forwards it as a single
// notification. The descriptor's static payload merges beneath the caller's.
func (r *Router) relayExternal(c echo.Context, name, action string) error {
	route, ok := r.external.Lookup(name)
	if !ok {
		return respond(c, query.Error(fmt.Sprintf("module name or identifier %q not found", name)).WithStatus(400))
	}
	descriptor, ok := route.Actions[action]
	if !ok {
		return respond(c, query.Error(fmt.Sprintf("module %s exposes no action %q", route.Module, action)).WithStatus(400))
	}
	if descriptor.Method != "" && !strings.EqualFold(descriptor.Method, c.Request().Method) {
		return respond(c, query.Error(fmt.Sprintf("action %q requires method %s", action, descriptor.Method)).WithStatus(400))
	}

	slog.Debug(fmt.Sprintf("%s - relaying %s/%s as %s", logPrefix, route.Module, action, descriptor.Notification))
	payload := query.MergePayloads(descriptor.Payload, requestPayload(c))
	q := &query.Query{
		Action:       "NOTIFICATION",
		Notification: descriptor.Notification,
		Payload:      payload,
	}
	return r.run(c, r.maybeDelay(c, q))
}

// delayParams are consumed by the router and never belong in a payload.
var delayParams = map[string]bool{
	"did": true, "timeout": true, "abort": true, "apiKey": true,
}

// requestPayload assembles the payload from the JSON body (POST) and the
// query string. A body that is a primitive or array wins outright; otherwise
// query-string fields fill in around body fields.
func requestPayload(c echo.Context) any {
	var body any
	if c.Request().Method == http.MethodPost && c.Request().ContentLength != 0 {
		if err := c.Bind(&body); err != nil {
			body = nil
		}
	}
	if body != nil {
		if _, ok := body.(map[string]any); !ok {
			return body
		}
	}

	params := map[string]any{}
	for key, values := range c.QueryParams() {
		if delayParams[key] || len(values) == 0 {
			continue
		}
		params[key] = query.NormalizePayload(values[0])
	}
	if len(params) == 0 && body == nil {
		return nil
	}
	return query.MergePayloads(params, body)
}
