// Package channel is the non-HTTP entry point: canonical queries arrive as
// COMMS messages and dispatch through the same registries as HTTP requests.
// Replies go to the message's reply subject when one is set; otherwise the
// dispatch is fire-and-forget.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	commsutil "github.com/morezero/mirror-remote/pkg/comms"
	"github.com/morezero/mirror-remote/pkg/dispatch"
	"github.com/morezero/mirror-remote/pkg/extapi"
	"github.com/morezero/mirror-remote/pkg/notify"
	"github.com/morezero/mirror-remote/pkg/query"
	"github.com/morezero/mirror-remote/pkg/state"
)

const logPrefix = "channel:adapter"

// Envelope types accepted on the command subject.
const (
	TypeRemoteAction = "REMOTE_ACTION"
	TypeRemoteGet    = "REMOTE_GET"
	TypeRegisterAPI  = "REGISTER_API"
	TypeNewConfig    = "NEW_CONFIG"
	TypeUndoConfig   = "UNDO_CONFIG"
	TypeStatus       = "STATUS"
)

// Message is the wire envelope on the command subject.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Registration is the REGISTER_API payload.
type Registration struct {
	Module  string                             `json:"module"`
	Actions map[string]extapi.ActionDescriptor `json:"actions"`
}

// StatusUpdate is the STATUS payload: the mirror UI reporting its world.
type StatusUpdate struct {
	Modules      []state.ModuleInstance        `json:"modules,omitempty"`
	Brightness   *int                          `json:"brightness,omitempty"`
	Translations map[string]string             `json:"translations,omitempty"`
	Classes      map[string]state.ClassActions `json:"classes,omitempty"`
	Config       json.RawMessage               `json:"config,omitempty"`
}

// Adapter subscribes to the command subject and dispatches inbound messages.
type Adapter struct {
	nc         *comms.Conn
	dispatcher *dispatch.Dispatcher
	external   *extapi.Registry
	state      *state.State
	notifier   notify.Notifier

	sub *comms.Subscription
}

// Opts configures an Adapter.
type Opts struct {
	Dispatcher *dispatch.Dispatcher
	External   *extapi.Registry
	State      *state.State
	Notifier   notify.Notifier
}

// New builds an Adapter on an established connection.
func New(nc *comms.Conn, opts Opts) *Adapter {
	return &Adapter{
		nc:         nc,
		dispatcher: opts.Dispatcher,
		external:   opts.External,
		state:      opts.State,
		notifier:   opts.Notifier,
	}
}

// Start subscribes to the command subject.
func (a *Adapter) Start() error {
	sub, err := a.nc.Subscribe(commsutil.SubjectCommand, a.handle)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", commsutil.SubjectCommand, err)
	}
	a.sub = sub
	slog.Info(fmt.Sprintf("%s - listening on %s", logPrefix, commsutil.SubjectCommand))
	return nil
}

// Close drops the subscription.
func (a *Adapter) Close() error {
	if a.sub == nil {
		return nil
	}
	return a.sub.Unsubscribe()
}

func (a *Adapter) handle(msg *comms.Msg) {
	var m Message
	if err := commsutil.DecodePayload(msg.Data, &m); err != nil {
		slog.Warn(fmt.Sprintf("%s - undecodable message on %s: %v", logPrefix, msg.Subject, err))
		a.reply(msg, query.Error("undecodable message"))
		return
	}

	responder := a.responderFor(msg)
	switch m.Type {
	case TypeRemoteAction, TypeRemoteGet:
		q, err := decodeQuery(m.Payload)
		if err != nil {
			responder.Respond(query.Error(err.Error()))
			return
		}
		a.dispatcher.Run(context.Background(), q, responder)

	case TypeRegisterAPI:
		a.handleRegister(m.Payload, responder)

	case TypeNewConfig:
		a.dispatcher.Run(context.Background(), &query.Query{Action: "NEW_CONFIG", Payload: m.Payload}, responder)

	case TypeUndoConfig:
		a.dispatcher.Run(context.Background(), &query.Query{Action: "UNDO_CONFIG"}, responder)

	case TypeStatus:
		a.handleStatus(m.Payload, responder)

	default:
		slog.Warn(fmt.Sprintf("%s - unknown message type %q", logPrefix, m.Type))
		responder.Respond(query.Error(fmt.Sprintf("unknown message type: %s", m.Type)))
	}
}

// responderFor replies over the reply subject when the sender asked for one,
// and discards otherwise. Reply failures are logged, never propagated.
func (a *Adapter) responderFor(msg *comms.Msg) query.Responder {
	if msg.Reply == "" {
		return query.Discard{}
	}
	return query.NewFuncResponder(func(e *query.Envelope) {
		data, err := commsutil.EncodePayload(e)
		if err != nil {
			slog.Error(fmt.Sprintf("%s - encoding reply: %v", logPrefix, err))
			return
		}
		if err := msg.Respond(data); err != nil {
			slog.Warn(fmt.Sprintf("%s - reply to %s failed: %v", logPrefix, msg.Reply, err))
		}
	})
}

func (a *Adapter) reply(msg *comms.Msg, e *query.Envelope) {
	a.responderFor(msg).Respond(e)
}

func decodeQuery(payload any) (*query.Query, error) {
	raw, err := commsutil.EncodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("unreadable query payload")
	}
	var q query.Query
	if err := commsutil.DecodePayload(raw, &q); err != nil {
		return nil, fmt.Errorf("unreadable query payload")
	}
	if !q.Valid() {
		return nil, fmt.Errorf("query must carry exactly one of action or data")
	}
	return &q, nil
}

func (a *Adapter) handleRegister(payload any, responder query.Responder) {
	raw, err := commsutil.EncodePayload(payload)
	if err != nil {
		responder.Respond(query.Error("unreadable registration payload"))
		return
	}
	var reg Registration
	if err := commsutil.DecodePayload(raw, &reg); err != nil || reg.Module == "" {
		responder.Respond(query.Error("registration requires a module name"))
		return
	}
	a.external.Register(reg.Module, reg.Actions)
	responder.Respond(query.OK())
}

// handleStatus absorbs a mirror UI state report. The first report after
// startup seeds the module instance list the fan-out resolver works from.
func (a *Adapter) handleStatus(payload any, responder query.Responder) {
	raw, err := commsutil.EncodePayload(payload)
	if err != nil {
		responder.Respond(query.Error("unreadable status payload"))
		return
	}
	var st StatusUpdate
	if err := commsutil.DecodePayload(raw, &st); err != nil {
		responder.Respond(query.Error("unreadable status payload"))
		return
	}

	if st.Modules != nil {
		a.state.SetModules(st.Modules)
	}
	if st.Brightness != nil {
		a.state.SetBrightness(*st.Brightness)
	}
	if st.Translations != nil {
		a.state.SetTranslations(st.Translations)
	}
	if st.Classes != nil {
		a.state.SetClasses(st.Classes)
	}
	if st.Config != nil {
		a.state.SetConfig(st.Config)
	}
	responder.Respond(query.OK())
}
