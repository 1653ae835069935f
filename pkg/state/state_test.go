package state

import (
	"encoding/json"
	"testing"
)

func TestSlug(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"MMM-Remote-Control", "remotecontrol"},
		{"clock", "clock"},
		{"MMM-Window-Covers", "windowcovers"},
	}
	for _, tc := range cases {
		if got := Slug(tc.in); got != tc.want {
			t.Errorf("state:state_test - Slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStringList_UnmarshalAcceptsStringOrArray(t *testing.T) {
	var single StringList
	if err := json.Unmarshal([]byte(`"clock"`), &single); err != nil {
		t.Fatalf("state:state_test - single unmarshal failed: %v", err)
	}
	if len(single) != 1 || single[0] != "clock" {
		t.Errorf("state:state_test - single = %v", single)
	}

	var many StringList
	if err := json.Unmarshal([]byte(`["clock","news"]`), &many); err != nil {
		t.Fatalf("state:state_test - array unmarshal failed: %v", err)
	}
	if len(many) != 2 {
		t.Errorf("state:state_test - many = %v", many)
	}
}

func TestSetModules_DerivesURLPathAndInitializes(t *testing.T) {
	s := New()
	if s.Initialized() {
		t.Error("state:state_test - fresh state claims initialized")
	}
	s.SetModules([]ModuleInstance{
		{Identifier: "module_1_MMM-Weather", Name: "MMM-Weather"},
	})
	if !s.Initialized() {
		t.Error("state:state_test - state not initialized after SetModules")
	}
	if got := s.Modules()[0].URLPath; got != "weather" {
		t.Errorf("state:state_test - URLPath = %q, want weather", got)
	}
}

func TestState_DefaultsAndSetters(t *testing.T) {
	s := New()
	if s.Brightness() != 100 || s.Zoom() != 100 {
		t.Errorf("state:state_test - defaults: brightness=%d zoom=%d", s.Brightness(), s.Zoom())
	}
	s.SetBrightness(55)
	if s.Brightness() != 55 {
		t.Errorf("state:state_test - brightness = %d", s.Brightness())
	}
}

func TestTranslate_FallsBackToKey(t *testing.T) {
	s := New()
	s.SetTranslations(map[string]string{"HELLO": "Hallo"})
	if got := s.Translate("HELLO"); got != "Hallo" {
		t.Errorf("state:state_test - Translate = %q", got)
	}
	if got := s.Translate("UNKNOWN"); got != "UNKNOWN" {
		t.Errorf("state:state_test - fallback = %q", got)
	}
}

func TestModules_ReturnsCopy(t *testing.T) {
	s := New()
	s.SetModules([]ModuleInstance{{Identifier: "module_1_clock", Name: "clock"}})
	mods := s.Modules()
	mods[0].Name = "mutated"
	if s.Modules()[0].Name != "clock" {
		t.Error("state:state_test - Modules() exposed internal slice")
	}
}

func TestConfigSnapshot_CopiesBothWays(t *testing.T) {
	s := New()
	if s.Config() != nil {
		t.Fatal("state:state_test - fresh state reports a config")
	}

	in := []byte(`{"modules":[]}`)
	s.SetConfig(in)
	in[0] = 'X'
	if string(s.Config()) != `{"modules":[]}` {
		t.Error("state:state_test - SetConfig kept the caller's slice")
	}

	out := s.Config()
	out[0] = 'X'
	if string(s.Config()) != `{"modules":[]}` {
		t.Error("state:state_test - Config() exposed internal bytes")
	}
}
