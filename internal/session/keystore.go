package session

import (
	"confy/internal/crypto"
	"confy/internal/domain"
	"confy/internal/util/memzero"
)

// Keystore holds the negotiated symmetric key for one session. The key is
// write-once: Generate is called exactly once by the initiator, Set exactly
// once by the responder, and any second install is rejected. The Keystore
// holds no cipher logic; per-message operations live in the Codec so key
// lifecycle stays separate from message traffic.
type Keystore struct {
	key       domain.SessionKey
	installed bool
}

// Generate draws a fresh session key and installs it. Only the handshake
// initiator calls this.
func (s *Keystore) Generate() (domain.SessionKey, error) {
	if s.installed {
		return domain.SessionKey{}, domain.ErrSessionKeyAlreadySet
	}
	k, err := crypto.NewSessionKey()
	if err != nil {
		return domain.SessionKey{}, err
	}
	s.key = k
	s.installed = true
	return k, nil
}

// Set installs a key received from the peer. A second call fails: the
// symmetric key is immutable once established.
func (s *Keystore) Set(k domain.SessionKey) error {
	if s.installed {
		return domain.ErrSessionKeyAlreadySet
	}
	s.key = k
	s.installed = true
	return nil
}

// Key returns the installed key, if any.
func (s *Keystore) Key() (domain.SessionKey, bool) {
	return s.key, s.installed
}

// Destroy zeroes the key material. The keystore stays marked installed so a
// late install attempt is still rejected.
func (s *Keystore) Destroy() {
	memzero.Zero(s.key[:])
}
