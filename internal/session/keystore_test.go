package session

import (
	"testing"

	"confy/internal/domain"
)

func TestKeystoreGenerateOnce(t *testing.T) {
	var ks Keystore
	k, err := ks.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	got, ok := ks.Key()
	if !ok || got != k {
		t.Fatal("generated key not installed")
	}
	if _, err := ks.Generate(); err != domain.ErrSessionKeyAlreadySet {
		t.Fatalf("second Generate: want ErrSessionKeyAlreadySet, got %v", err)
	}
}

func TestKeystoreSetWriteOnce(t *testing.T) {
	var ks Keystore
	var k domain.SessionKey
	k[0] = 0x42
	if err := ks.Set(k); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var other domain.SessionKey
	other[0] = 0x99
	if err := ks.Set(other); err != domain.ErrSessionKeyAlreadySet {
		t.Fatalf("second Set: want ErrSessionKeyAlreadySet, got %v", err)
	}
	got, _ := ks.Key()
	if got != k {
		t.Fatal("second Set altered the installed key")
	}
}

func TestKeystoreDestroy(t *testing.T) {
	var ks Keystore
	k, err := ks.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	_ = k
	ks.Destroy()
	got, ok := ks.Key()
	if !ok {
		t.Fatal("Destroy must not forget that a key was installed")
	}
	if got != (domain.SessionKey{}) {
		t.Fatal("Destroy left key material behind")
	}
	if err := ks.Set(domain.SessionKey{}); err != domain.ErrSessionKeyAlreadySet {
		t.Fatalf("Set after Destroy: want ErrSessionKeyAlreadySet, got %v", err)
	}
}
