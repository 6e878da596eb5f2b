package secure

import (
	"testing"
)

func TestKeyMaterialRoundTrip(t *testing.T) {
	km := NewKeyMaterial("sk-rotated-secret")
	defer km.Destroy()

	var got string
	err := km.WithString(func(secret string) error {
		got = string([]byte(secret)) // copy out for assertion only
		return nil
	})
	if err != nil {
		t.Fatalf("WithString: %v", err)
	}
	if got != "sk-rotated-secret" {
		t.Errorf("round trip mismatch: got %q", got)
	}
}

func TestKeyMaterialDestroyIsIdempotent(t *testing.T) {
	km := NewKeyMaterial("to-be-destroyed")
	km.Destroy()
	km.Destroy()

	err := km.WithString(func(secret string) error {
		if secret != "" {
			t.Errorf("destroyed material yielded %q", secret)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithString after destroy: %v", err)
	}
}

func TestKeyMaterialErrorPropagates(t *testing.T) {
	km := NewKeyMaterial("x")
	defer km.Destroy()

	sentinel := errTest{}
	if err := km.WithString(func(string) error { return sentinel }); err != sentinel {
		t.Errorf("expected sentinel error, got %v", err)
	}
}

type errTest struct{}

func (errTest) Error() string { return "test error" }
