package notify

import (
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	commsutil "github.com/morezero/mirror-remote/pkg/comms"
)

const commsNotifierLogPrefix = "notify:comms_notifier"

// CommsNotifierOpts configures CommsNotifier. Nil or zero values use defaults.
type CommsNotifierOpts struct {
	// SubjectPrefix overrides the outbound subject prefix.
	SubjectPrefix string
}

// CommsNotifier publishes host-app notifications to COMMS subjects, one
// subject per notification name.
type CommsNotifier struct {
	nc            *comms.Conn
	subjectPrefix string
}

// NewCommsNotifier creates a new CommsNotifier. Pass nil for opts to use defaults.
func NewCommsNotifier(nc *comms.Conn, opts *CommsNotifierOpts) *CommsNotifier {
	prefix := commsutil.SubjectNotifyPrefix
	if opts != nil && opts.SubjectPrefix != "" {
		prefix = opts.SubjectPrefix
	}
	return &CommsNotifier{nc: nc, subjectPrefix: prefix}
}

// Notify publishes the notification to its per-name subject.
func (n *CommsNotifier) Notify(notification string, payload any) error {
	data, err := commsutil.EncodePayload(&Notification{
		Notification: notification,
		Payload:      payload,
	})
	if err != nil {
		return fmt.Errorf("%s - failed to encode notification: %w", commsNotifierLogPrefix, err)
	}

	subject := fmt.Sprintf("%s.%s", n.subjectPrefix, notification)
	if err := n.nc.Publish(subject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsNotifierLogPrefix, subject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - Published %s", commsNotifierLogPrefix, notification))
	return nil
}
