package modules

import (
	"testing"

	"github.com/morezero/mirror-remote/pkg/notify"
	"github.com/morezero/mirror-remote/pkg/query"
	"github.com/morezero/mirror-remote/pkg/state"
)

func sampleInstances() []state.ModuleInstance {
	return []state.ModuleInstance{
		{Identifier: "module_1_clock", Name: "clock", URLPath: "clock"},
		{Identifier: "module_2_MMM-Weather", Name: "MMM-Weather", URLPath: "weather"},
		{Identifier: "module_3_MMM-Weather", Name: "MMM-Weather", URLPath: "weather"},
	}
}

func TestResolve_All(t *testing.T) {
	got := Resolve(sampleInstances(), "all")
	if len(got) != 3 {
		t.Errorf("modules:modules_test - all resolved %d instances, want 3", len(got))
	}
}

func TestResolve_ByIdentifier(t *testing.T) {
	got := Resolve(sampleInstances(), "module_1_clock")
	if len(got) != 1 || got[0].Name != "clock" {
		t.Errorf("modules:modules_test - resolved %v", got)
	}
}

func TestResolve_ByNameMatchesEveryInstance(t *testing.T) {
	got := Resolve(sampleInstances(), "MMM-Weather")
	if len(got) != 2 {
		t.Errorf("modules:modules_test - resolved %d instances, want 2", len(got))
	}
}

func TestResolve_LooseFallbackIsCaseInsensitive(t *testing.T) {
	got := Resolve(sampleInstances(), "weATHer")
	if len(got) != 2 {
		t.Errorf("modules:modules_test - loose pass resolved %d instances, want 2", len(got))
	}
}

func TestResolve_NoMatch(t *testing.T) {
	if got := Resolve(sampleInstances(), "nonexistent"); len(got) != 0 {
		t.Errorf("modules:modules_test - resolved %v for unknown key", got)
	}
}

func TestExecute_FanOutCountsAndSingleResponse(t *testing.T) {
	n := &notify.CaptureNotifier{}
	responses := 0
	var last *query.Envelope
	r := query.NewFuncResponder(func(e *query.Envelope) {
		responses++
		last = e
	})

	Execute(n, sampleInstances(), "all", "SHOW", nil, false, r)

	// 3 instances: exactly 3 notifications, exactly 1 response.
	sent := n.Sent()
	if len(sent) != 3 {
		t.Fatalf("modules:modules_test - %d notifications, want 3", len(sent))
	}
	for i, ntf := range sent {
		if ntf.Notification != "SHOW" {
			t.Errorf("modules:modules_test - notification %d = %q", i, ntf.Notification)
		}
		p, ok := ntf.Payload.(map[string]any)
		if !ok || p["module"] != sampleInstances()[i].Identifier {
			t.Errorf("modules:modules_test - notification %d payload = %v", i, ntf.Payload)
		}
	}
	if responses != 1 {
		t.Errorf("modules:modules_test - %d responses, want 1", responses)
	}
	if last == nil || !last.Success {
		t.Errorf("modules:modules_test - response = %+v", last)
	}
}

func TestExecute_ForceFlagCarried(t *testing.T) {
	n := &notify.CaptureNotifier{}
	Execute(n, sampleInstances(), "clock", "SHOW", nil, true, query.NewFuncResponder(func(_ *query.Envelope) {}))

	sent := n.Sent()
	if len(sent) != 1 {
		t.Fatalf("modules:modules_test - %d notifications, want 1", len(sent))
	}
	p := sent[0].Payload.(map[string]any)
	if p["force"] != true {
		t.Errorf("modules:modules_test - payload = %v, want force", p)
	}
}

func TestExecute_UnknownModuleErrorsWithoutNotifying(t *testing.T) {
	n := &notify.CaptureNotifier{}
	var last *query.Envelope
	Execute(n, sampleInstances(), "nope", "SHOW", nil, false, query.NewFuncResponder(func(e *query.Envelope) {
		last = e
	}))

	if len(n.Sent()) != 0 {
		t.Errorf("modules:modules_test - notifications emitted for unknown module")
	}
	if last == nil || last.Success {
		t.Errorf("modules:modules_test - response = %+v, want failure", last)
	}
	if last.Status != 400 {
		t.Errorf("modules:modules_test - status = %d, want 400", last.Status)
	}
}

func TestExecute_ExtraPayloadMergedUnderInstance(t *testing.T) {
	n := &notify.CaptureNotifier{}
	Execute(n, sampleInstances(), "clock", "HIDE", map[string]any{"speed": 500}, false, query.NewFuncResponder(func(_ *query.Envelope) {}))

	p := n.Sent()[0].Payload.(map[string]any)
	if p["module"] != "module_1_clock" || p["speed"] != 500 {
		t.Errorf("modules:modules_test - payload = %v", p)
	}
}
