package logger

import "testing"

func TestRedact(t *testing.T) {
	kv := redact([]interface{}{"user_id", 7, "jwt_token", "abc.def.ghi", "api_key", "k"})
	if kv[1] != 7 {
		t.Errorf("expected user_id untouched, got %v", kv[1])
	}
	if kv[3] != "[REDACTED]" || kv[5] != "[REDACTED]" {
		t.Errorf("expected secrets redacted, got %v", kv)
	}
}

func TestRedact_OddLength(t *testing.T) {
	kv := redact([]interface{}{"only"})
	if len(kv) != 1 {
		t.Fatalf("expected 1 element, got %d", len(kv))
	}
}
