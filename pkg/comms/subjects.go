package comms

// Default COMMS subjects.
const (
	// SubjectCommand carries inbound canonical queries and registration
	// messages from the mirror UI and widgets.
	SubjectCommand = "mirror.remote.v1"
	// SubjectNotifyPrefix prefixes outbound notifications to the host app.
	SubjectNotifyPrefix = "mirror.notify"
)
