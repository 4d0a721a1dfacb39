package crypto_test

import (
	"bytes"
	"testing"

	"confy/internal/crypto"
	"confy/internal/domain"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := crypto.NewSessionKey()
	if err != nil {
		t.Fatalf("NewSessionKey: %v", err)
	}

	for _, pt := range [][]byte{
		[]byte(""),
		[]byte("hello"),
		bytes.Repeat([]byte{0x00}, 4096),
		[]byte("héllo wörld \x00\x01\x02"),
	} {
		payload, err := crypto.SealMessage(key, pt)
		if err != nil {
			t.Fatalf("SealMessage: %v", err)
		}
		got, err := crypto.OpenMessage(key, payload)
		if err != nil {
			t.Fatalf("OpenMessage: %v", err)
		}
		if !bytes.Equal(got, pt) {
			t.Fatalf("round trip: got %q, want %q", got, pt)
		}
	}
}

func TestSealUsesFreshIV(t *testing.T) {
	key, err := crypto.NewSessionKey()
	if err != nil {
		t.Fatalf("NewSessionKey: %v", err)
	}
	pt := []byte("same plaintext")
	a, err := crypto.SealMessage(key, pt)
	if err != nil {
		t.Fatalf("SealMessage: %v", err)
	}
	b, err := crypto.SealMessage(key, pt)
	if err != nil {
		t.Fatalf("SealMessage: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("two seals of the same plaintext produced identical output")
	}
}

func TestOpenShortPayload(t *testing.T) {
	key, err := crypto.NewSessionKey()
	if err != nil {
		t.Fatalf("NewSessionKey: %v", err)
	}
	if _, err := crypto.OpenMessage(key, []byte("short")); err != domain.ErrDecryption {
		t.Fatalf("want ErrDecryption, got %v", err)
	}
}

func TestNewSessionKeysDiffer(t *testing.T) {
	a, err := crypto.NewSessionKey()
	if err != nil {
		t.Fatalf("NewSessionKey: %v", err)
	}
	b, err := crypto.NewSessionKey()
	if err != nil {
		t.Fatalf("NewSessionKey: %v", err)
	}
	if a == b {
		t.Fatal("two generated session keys are identical")
	}
}
