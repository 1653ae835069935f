package comms

import (
	"testing"
)

func TestEncodePayload(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		want    string
		wantErr bool
	}{
		{
			name:  "notification object",
			input: map[string]string{"notification": "SHOW_ALERT"},
			want:  `{"notification":"SHOW_ALERT"}`,
		},
		{
			name:  "struct",
			input: struct{ Module string }{Module: "clock"},
			want:  `{"Module":"clock"}`,
		},
		{
			name:  "brightness value",
			input: 40,
			want:  "40",
		},
		{
			name:  "bare string payload",
			input: "hello",
			want:  `"hello"`,
		},
		{
			name:  "nil",
			input: nil,
			want:  "null",
		},
		{
			name:  "nested payload",
			input: map[string]interface{}{"payload": map[string]bool{"force": true}},
			want:  `{"payload":{"force":true}}`,
		},
		{
			name:    "channel is not serializable",
			input:   make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodePayload(tt.input)

			if tt.wantErr {
				if err == nil {
					t.Fatal("comms:codec_test - expected error but got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("comms:codec_test - unexpected error: %v", err)
			}

			got := string(data)
			if got != tt.want {
				t.Errorf("comms:codec_test - EncodePayload() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		target  interface{}
		check   func(t *testing.T, target interface{})
		wantErr bool
	}{
		{
			name:   "decode map",
			data:   `{"action":"SHOW"}`,
			target: &map[string]string{},
			check: func(t *testing.T, target interface{}) {
				m := target.(*map[string]string)
				if (*m)["action"] != "SHOW" {
					t.Errorf("comms:codec_test - expected action=SHOW, got %s", (*m)["action"])
				}
			},
		},
		{
			name:    "invalid json",
			data:    `{invalid}`,
			target:  &map[string]string{},
			wantErr: true,
		},
		{
			name:    "empty data",
			data:    "",
			target:  &map[string]string{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DecodePayload([]byte(tt.data), tt.target)

			if tt.wantErr {
				if err == nil {
					t.Fatal("comms:codec_test - expected error but got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("comms:codec_test - unexpected error: %v", err)
			}

			if tt.check != nil {
				tt.check(t, tt.target)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	type wireQuery struct {
		Action  string  `json:"action"`
		Module  string  `json:"module"`
		Timeout float64 `json:"timeout"`
	}

	original := wireQuery{Action: "HIDE", Module: "all", Timeout: 10}

	data, err := EncodePayload(original)
	if err != nil {
		t.Fatalf("comms:codec_test - encode failed: %v", err)
	}

	var decoded wireQuery
	if err := DecodePayload(data, &decoded); err != nil {
		t.Fatalf("comms:codec_test - decode failed: %v", err)
	}

	if decoded != original {
		t.Errorf("comms:codec_test - round trip = %+v, want %+v", decoded, original)
	}
}
