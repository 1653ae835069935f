package notify

import (
	"encoding/json"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"
)

// startTestServer starts an in-process COMMS server for testing.
func startTestServer(t *testing.T, port int) (*comms.Conn, func()) {
	t.Helper()

	opts := &commsserver.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	}

	ns, err := commsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("notify:comms_notifier_test - failed to create server: %v", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatal("notify:comms_notifier_test - server failed to start")
	}

	nc, err := comms.Connect(ns.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		ns.Shutdown()
		t.Fatalf("notify:comms_notifier_test - failed to connect: %v", err)
	}

	cleanup := func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	}

	return nc, cleanup
}

func TestCommsNotifier_Notify_PerNameSubject(t *testing.T) {
	nc, cleanup := startTestServer(t, 14250)
	defer cleanup()

	notifier := NewCommsNotifier(nc, nil)

	received := make(chan *Notification, 1)
	sub, err := nc.Subscribe("mirror.notify.SHOW_ALERT", func(msg *comms.Msg) {
		var n Notification
		if err := json.Unmarshal(msg.Data, &n); err != nil {
			t.Errorf("notify:comms_notifier_test - failed to unmarshal: %v", err)
			return
		}
		received <- &n
	})
	if err != nil {
		t.Fatalf("notify:comms_notifier_test - failed to subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := notifier.Notify("SHOW_ALERT", map[string]any{"message": "hello"}); err != nil {
		t.Fatalf("notify:comms_notifier_test - Notify failed: %v", err)
	}

	select {
	case n := <-received:
		if n.Notification != "SHOW_ALERT" {
			t.Errorf("notify:comms_notifier_test - notification = %q, want SHOW_ALERT", n.Notification)
		}
		payload, ok := n.Payload.(map[string]any)
		if !ok || payload["message"] != "hello" {
			t.Errorf("notify:comms_notifier_test - payload = %v", n.Payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("notify:comms_notifier_test - timed out waiting for notification")
	}
}

func TestCommsNotifier_Notify_SubjectPrefixOverride(t *testing.T) {
	nc, cleanup := startTestServer(t, 14251)
	defer cleanup()

	notifier := NewCommsNotifier(nc, &CommsNotifierOpts{SubjectPrefix: "custom.notify"})

	received := make(chan struct{}, 1)
	sub, err := nc.Subscribe("custom.notify.USER_PRESENCE", func(_ *comms.Msg) {
		received <- struct{}{}
	})
	if err != nil {
		t.Fatalf("notify:comms_notifier_test - failed to subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := notifier.Notify("USER_PRESENCE", true); err != nil {
		t.Fatalf("notify:comms_notifier_test - Notify failed: %v", err)
	}

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("notify:comms_notifier_test - timed out waiting for notification")
	}
}
