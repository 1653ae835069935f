// Package notify defines the outbound notification interface to the host app
// and its COMMS-backed implementation.
package notify

import (
	"sync"
)

// Notification is one outbound event to the host app.
type Notification struct {
	Notification string `json:"notification"`
	Payload      any    `json:"payload,omitempty"`
}

// Notifier is the interface for emitting notifications to the host app.
type Notifier interface {
	Notify(notification string, payload any) error
}

// CaptureNotifier records every notification it receives (for testing).
type CaptureNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

// Notify records the notification.
func (c *CaptureNotifier) Notify(notification string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, Notification{Notification: notification, Payload: payload})
	return nil
}

// Sent returns a copy of the recorded notifications.
func (c *CaptureNotifier) Sent() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.sent))
	copy(out, c.sent)
	return out
}

// Reset clears the recorded notifications.
func (c *CaptureNotifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}
