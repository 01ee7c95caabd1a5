package logger

import (
	"reflect"
	"testing"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	in := []interface{}{"module", "/image-test", "api_key", "sk-123", "Token", "abc", "dangling"}
	got := sanitizeKVs(in)
	want := []interface{}{"module", "/image-test", "api_key", "[REDACTED]", "Token", "[REDACTED]", "dangling"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestNopLoggerIsUsable(t *testing.T) {
	l := Nop().With("component", "test")
	l.Info("hello", "k", 1)
	l.Sync()
}
