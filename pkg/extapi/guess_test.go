package extapi

import (
	"os"
	"path/filepath"
	"testing"
)

const widgetSource = `Module.register("MMM-Ping", {
	notificationReceived: function (notification, payload) {
		if (notification === "ALL_MODULES_STARTED") {
			this.ready = true;
		}
		if (notification === "PING_NOW") {
			this.ping(payload);
		}
		switch (notification) {
			case 'RESET_COUNTER':
				this.counter = 0;
				break;
			case 'DOM_OBJECTS_CREATED':
				break;
		}
	},
});
`

func writeWidget(t *testing.T, dir, name, source string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, name), 0o755); err != nil {
		t.Fatalf("extapi:guess_test - mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name, name+".js"), []byte(source), 0o644); err != nil {
		t.Fatalf("extapi:guess_test - write: %v", err)
	}
}

func TestScan_GuessesHandledNotifications(t *testing.T) {
	dir := t.TempDir()
	writeWidget(t, dir, "MMM-Ping", widgetSource)

	r := New()
	r.Scan(dir, []string{"MMM-Ping"})

	route, ok := r.Lookup("MMM-Ping")
	if !ok {
		t.Fatal("extapi:guess_test - no route guessed")
	}
	if _, ok := route.Actions["pingnow"]; !ok {
		t.Errorf("extapi:guess_test - pingnow missing: %v", route.Actions)
	}
	if _, ok := route.Actions["resetcounter"]; !ok {
		t.Errorf("extapi:guess_test - resetcounter missing: %v", route.Actions)
	}
	// Lifecycle notifications are never remote actions.
	if _, ok := route.Actions["allmodulesstarted"]; ok {
		t.Errorf("extapi:guess_test - lifecycle notification guessed")
	}
	if _, ok := route.Actions["domobjectscreated"]; ok {
		t.Errorf("extapi:guess_test - lifecycle notification guessed")
	}
	for key, a := range route.Actions {
		if !a.Guessed {
			t.Errorf("extapi:guess_test - %s not flagged guessed", key)
		}
	}
}

func TestScan_SkipsDenyListedModules(t *testing.T) {
	dir := t.TempDir()
	writeWidget(t, dir, "clock", widgetSource)

	r := New()
	r.Scan(dir, []string{"clock"})
	if _, ok := r.Lookup("clock"); ok {
		t.Error("extapi:guess_test - deny-listed module was scanned")
	}
}

func TestScan_MissingSourceIsSkippedNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeWidget(t, dir, "MMM-Ping", widgetSource)

	r := New()
	r.Scan(dir, []string{"MMM-Absent", "MMM-Ping"})
	if _, ok := r.Lookup("MMM-Ping"); !ok {
		t.Error("extapi:guess_test - one unreadable widget stopped the scan")
	}
}

func TestActionKey(t *testing.T) {
	if got := actionKey("PING_NOW"); got != "pingnow" {
		t.Errorf("extapi:guess_test - actionKey = %q", got)
	}
	if got := actionKey("SOME-EVENT_NAME"); got != "someeventname" {
		t.Errorf("extapi:guess_test - actionKey = %q", got)
	}
}

func TestPrettyName(t *testing.T) {
	if got := prettyName("PING_NOW"); got != "Ping Now" {
		t.Errorf("extapi:guess_test - prettyName = %q", got)
	}
}
