package query

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNormalizePayload_JSONString(t *testing.T) {
	got := NormalizePayload(`{"foo":"bar"}`)
	want := map[string]any{"foo": "bar"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("query:query_test - NormalizePayload = %v, want %v", got, want)
	}
}

func TestNormalizePayload_PlainString(t *testing.T) {
	got := NormalizePayload("hello")
	if got != "hello" {
		t.Errorf("query:query_test - NormalizePayload = %v, want hello", got)
	}
}

func TestNormalizePayload_MalformedJSONStaysString(t *testing.T) {
	got := NormalizePayload(`{"foo": broken`)
	if got != `{"foo": broken` {
		t.Errorf("query:query_test - NormalizePayload = %v, want the raw string back", got)
	}
}

func TestNormalizePayload_NumericZero(t *testing.T) {
	// 0 must survive as 0, not become nil or an empty object.
	got := NormalizePayload(0)
	if got != 0 {
		t.Errorf("query:query_test - NormalizePayload(0) = %v, want 0", got)
	}
}

func TestNormalizePayload_Primitives(t *testing.T) {
	if got := NormalizePayload(true); got != true {
		t.Errorf("query:query_test - NormalizePayload(true) = %v", got)
	}
	if got := NormalizePayload(nil); got != nil {
		t.Errorf("query:query_test - NormalizePayload(nil) = %v", got)
	}
	if got := NormalizePayload(`"quoted"`); got != "quoted" {
		t.Errorf("query:query_test - NormalizePayload quoted = %v, want quoted", got)
	}
}

func TestMergePayloads(t *testing.T) {
	base := map[string]any{"a": 1, "b": 1}
	overlay := map[string]any{"b": 2, "c": 3}
	got, ok := MergePayloads(base, overlay).(map[string]any)
	if !ok {
		t.Fatalf("query:query_test - merge did not produce an object")
	}
	if got["a"] != 1 || got["b"] != 2 || got["c"] != 3 {
		t.Errorf("query:query_test - merged = %v", got)
	}
}

func TestMergePayloads_NonObjectBaseWrapped(t *testing.T) {
	got, ok := MergePayloads("primitive", map[string]any{"k": "v"}).(map[string]any)
	if !ok {
		t.Fatalf("query:query_test - merge did not produce an object")
	}
	if got["param"] != "primitive" || got["k"] != "v" {
		t.Errorf("query:query_test - merged = %v", got)
	}
}

func TestQuery_Valid(t *testing.T) {
	cases := []struct {
		name  string
		q     Query
		valid bool
	}{
		{"action only", Query{Action: "SHOW"}, true},
		{"data only", Query{Data: "config"}, true},
		{"both", Query{Action: "SHOW", Data: "config"}, false},
		{"neither", Query{}, false},
	}
	for _, tc := range cases {
		if got := tc.q.Valid(); got != tc.valid {
			t.Errorf("query:query_test - %s: Valid() = %t, want %t", tc.name, got, tc.valid)
		}
	}
}

func TestEnvelope_MarshalMergesExtra(t *testing.T) {
	e := OK().With("data", []int{1, 2}).With("result", "x")
	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("query:query_test - marshal failed: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("query:query_test - unmarshal failed: %v", err)
	}
	if got["success"] != true {
		t.Errorf("query:query_test - success = %v", got["success"])
	}
	if got["result"] != "x" {
		t.Errorf("query:query_test - result = %v", got["result"])
	}
	if _, ok := got["data"]; !ok {
		t.Errorf("query:query_test - data field missing: %v", got)
	}
	if _, ok := got["status"]; ok {
		t.Errorf("query:query_test - status must not serialize: %v", got)
	}
}

func TestEnvelope_ErrorCarriesMessage(t *testing.T) {
	raw, err := json.Marshal(Error("nope"))
	if err != nil {
		t.Fatalf("query:query_test - marshal failed: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("query:query_test - unmarshal failed: %v", err)
	}
	if got["success"] != false || got["message"] != "nope" {
		t.Errorf("query:query_test - envelope = %v", got)
	}
}

func TestFuncResponder_SingleShot(t *testing.T) {
	calls := 0
	r := NewFuncResponder(func(_ *Envelope) { calls++ })
	r.Respond(OK())
	r.Respond(Error("second write"))
	if calls != 1 {
		t.Errorf("query:query_test - responder invoked %d times, want 1", calls)
	}
}
