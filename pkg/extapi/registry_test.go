package extapi

import (
	"testing"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := New()
	r.Register("MMM-Ping", map[string]ActionDescriptor{
		"ping": {Notification: "PING_NOW", PrettyName: "Ping Now"},
	})

	byName, ok := r.Lookup("MMM-Ping")
	if !ok {
		t.Fatal("extapi:registry_test - lookup by name failed")
	}
	bySlug, ok := r.Lookup("ping")
	if !ok {
		t.Fatal("extapi:registry_test - lookup by slug failed")
	}
	if byName.Path != bySlug.Path || byName.Actions["ping"].Notification != "PING_NOW" {
		t.Errorf("extapi:registry_test - routes differ: %+v vs %+v", byName, bySlug)
	}
}

func TestRegistry_EmptyRegistrationUnregisters(t *testing.T) {
	r := New()
	r.Register("MMM-Ping", map[string]ActionDescriptor{
		"ping": {Notification: "PING_NOW"},
	})
	r.Register("MMM-Ping", map[string]ActionDescriptor{})

	if _, ok := r.Lookup("MMM-Ping"); ok {
		t.Error("extapi:registry_test - entry survives empty registration")
	}
	if len(r.All()) != 0 {
		t.Errorf("extapi:registry_test - All() = %v, want empty", r.All())
	}
}

func TestRegistry_GuessedNeverOverwritesExplicit(t *testing.T) {
	// Explicit first, guessed after.
	r := New()
	r.Register("MMM-Ping", map[string]ActionDescriptor{
		"pingnow": {Notification: "EXPLICIT_PING"},
	})
	r.MergeGuessed("MMM-Ping", map[string]ActionDescriptor{
		"pingnow": {Notification: "GUESSED_PING"},
		"extra":   {Notification: "EXTRA"},
	})

	route, _ := r.Lookup("MMM-Ping")
	if route.Actions["pingnow"].Notification != "EXPLICIT_PING" {
		t.Errorf("extapi:registry_test - guessed overwrote explicit: %+v", route.Actions["pingnow"])
	}
	if !route.Actions["extra"].Guessed {
		t.Errorf("extapi:registry_test - merged guess lost its flag")
	}
}

func TestRegistry_ExplicitWinsRegardlessOfArrivalOrder(t *testing.T) {
	// Guessed first, explicit after.
	r := New()
	r.MergeGuessed("MMM-Ping", map[string]ActionDescriptor{
		"pingnow": {Notification: "GUESSED_PING"},
		"other":   {Notification: "OTHER"},
	})
	r.Register("MMM-Ping", map[string]ActionDescriptor{
		"pingnow": {Notification: "EXPLICIT_PING"},
	})

	route, _ := r.Lookup("MMM-Ping")
	if got := route.Actions["pingnow"]; got.Notification != "EXPLICIT_PING" || got.Guessed {
		t.Errorf("extapi:registry_test - pingnow = %+v, want explicit", got)
	}
	// Guessed keys the explicit registration did not claim survive.
	if got := route.Actions["other"]; got.Notification != "OTHER" || !got.Guessed {
		t.Errorf("extapi:registry_test - other = %+v, want surviving guess", got)
	}
}

func TestRegistry_OnChangeFiresPerMutation(t *testing.T) {
	r := New()
	calls := 0
	r.OnChange(func() { calls++ })

	r.Register("MMM-Ping", map[string]ActionDescriptor{"ping": {Notification: "PING"}})
	r.MergeGuessed("MMM-Other", map[string]ActionDescriptor{"go": {Notification: "GO"}})
	r.Register("MMM-Ping", map[string]ActionDescriptor{})

	if calls != 3 {
		t.Errorf("extapi:registry_test - onChange fired %d times, want 3", calls)
	}
}

func TestBuildMenu(t *testing.T) {
	r := New()
	r.Register("MMM-Ping", map[string]ActionDescriptor{
		"ping":  {Notification: "PING_NOW", PrettyName: "Ping Now"},
		"reset": {Notification: "RESET_COUNTER"},
	})

	menu := r.BuildMenu(nil)
	if menu.ID != "module-control" || len(menu.Items) != 1 {
		t.Fatalf("extapi:registry_test - menu = %+v", menu)
	}
	sub := menu.Items[0]
	if sub.ID != "mc-ping" || sub.Text != "MMM-Ping" || len(sub.Items) != 2 {
		t.Fatalf("extapi:registry_test - submenu = %+v", sub)
	}
	// Items are sorted by action key: ping before reset.
	if sub.Items[0].Text != "Ping Now" {
		t.Errorf("extapi:registry_test - explicit pretty name lost: %+v", sub.Items[0])
	}
	if sub.Items[1].Text != "Reset Counter" {
		t.Errorf("extapi:registry_test - humanized title = %q, want Reset Counter", sub.Items[1].Text)
	}
}

func TestBuildMenu_TranslatesLabels(t *testing.T) {
	r := New()
	r.Register("MMM-Ping", map[string]ActionDescriptor{
		"ping": {Notification: "PING_NOW", PrettyName: "Ping Now"},
	})

	translations := map[string]string{"Ping Now": "Jetzt pingen"}
	menu := r.BuildMenu(func(key string) string {
		if v, ok := translations[key]; ok {
			return v
		}
		return key
	})
	if got := menu.Items[0].Items[0].Text; got != "Jetzt pingen" {
		t.Errorf("extapi:registry_test - translated label = %q, want Jetzt pingen", got)
	}
	if menu.Items[0].Items[0].Action != "ping" {
		t.Errorf("extapi:registry_test - action key must stay untranslated: %+v", menu.Items[0].Items[0])
	}
}
