package comms

import "testing"

func TestSubjects(t *testing.T) {
	if SubjectCommand != "mirror.remote.v1" {
		t.Errorf("SubjectCommand = %q, want mirror.remote.v1", SubjectCommand)
	}
	if SubjectNotifyPrefix != "mirror.notify" {
		t.Errorf("SubjectNotifyPrefix = %q, want mirror.notify", SubjectNotifyPrefix)
	}
}
