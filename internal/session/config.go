package session

import (
	"time"

	"confy/internal/crypto"
)

const (
	defaultAwaitPeerTimeout   = 45 * time.Second
	defaultKeyExchangeTimeout = 20 * time.Second
	defaultSessionKeyTimeout  = 20 * time.Second

	// defaultTamperThreshold is the run of consecutive signature or
	// decryption failures after which the session is treated as compromised.
	// A well-behaved peer never produces even one.
	defaultTamperThreshold = 3
)

// Config bounds the handshake phases and sets protocol policy. The zero
// value selects the defaults.
type Config struct {
	// AwaitPeerTimeout bounds the wait for the relay to attach the peer.
	AwaitPeerTimeout time.Duration
	// KeyExchangeTimeout bounds the wait for the peer's public key.
	KeyExchangeTimeout time.Duration
	// SessionKeyTimeout bounds the responder's wait for the session key.
	SessionKeyTimeout time.Duration
	// IdentityBits is the RSA modulus size for the session identity.
	IdentityBits int
	// TamperThreshold is the consecutive bad-message limit before the
	// session fails with ErrPeerTampering.
	TamperThreshold int
}

func (c *Config) applyDefaults() {
	if c.AwaitPeerTimeout <= 0 {
		c.AwaitPeerTimeout = defaultAwaitPeerTimeout
	}
	if c.KeyExchangeTimeout <= 0 {
		c.KeyExchangeTimeout = defaultKeyExchangeTimeout
	}
	if c.SessionKeyTimeout <= 0 {
		c.SessionKeyTimeout = defaultSessionKeyTimeout
	}
	if c.IdentityBits <= 0 {
		c.IdentityBits = crypto.DefaultKeyBits
	}
	if c.TamperThreshold <= 0 {
		c.TamperThreshold = defaultTamperThreshold
	}
}
