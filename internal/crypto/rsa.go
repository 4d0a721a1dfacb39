package crypto

import (
	"bytes"
	stdcrypto "crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"

	"confy/internal/domain"
)

const (
	// DefaultKeyBits is the strength of a session identity.
	DefaultKeyBits = 4096

	sha256Hash = stdcrypto.SHA256
)

// Identity holds one session's asymmetric key pair. The private component
// never leaves this struct: it is not serialized, not transmitted, and
// zeroed on Destroy as far as the runtime allows.
type Identity struct {
	priv *rsa.PrivateKey
	der  domain.PublicKey
}

// GenerateIdentity produces a fresh key pair. bits <= 0 selects
// DefaultKeyBits. Failure means the entropy source is exhausted and is fatal
// to the session.
func GenerateIdentity(bits int) (*Identity, error) {
	if bits <= 0 {
		bits = DefaultKeyBits
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyGeneration, err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyGeneration, err)
	}
	return &Identity{priv: priv, der: der}, nil
}

// Public returns the exported public component for transmission. Pure and
// side-effect-free.
func (id *Identity) Public() domain.PublicKey {
	out := make(domain.PublicKey, len(id.der))
	copy(out, id.der)
	return out
}

// Decrypt reverses an OAEP encryption made against this identity's public
// key. Malformed ciphertext and ciphertext for a different keypair produce
// the same error, to avoid an oracle.
func (id *Identity) Decrypt(ciphertext []byte) ([]byte, error) {
	if id.priv == nil {
		return nil, domain.ErrAsymmetricDecryption
	}
	pt, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, id.priv, ciphertext, nil)
	if err != nil {
		return nil, domain.ErrAsymmetricDecryption
	}
	return pt, nil
}

// Sign produces a PSS signature over a SHA-256 digest with a randomized
// salt.
func (id *Identity) Sign(digest [sha256.Size]byte) ([]byte, error) {
	if id.priv == nil {
		return nil, domain.ErrClosed
	}
	return rsa.SignPSS(rand.Reader, id.priv, sha256Hash, digest[:], nil)
}

// Destroy drops the private key material. Best effort only: Go cannot
// guarantee the garbage collector has not copied the big integers.
func (id *Identity) Destroy() {
	if id.priv == nil {
		return
	}
	id.priv.D.SetInt64(0)
	for _, p := range id.priv.Primes {
		p.SetInt64(0)
	}
	id.priv = nil
}

// PeerKey is the counterpart's public key, received once per session and
// immutable after receipt.
type PeerKey struct {
	pub *rsa.PublicKey
	der domain.PublicKey
}

// ParsePeerKey validates and records a public key received from the peer.
func ParsePeerKey(der domain.PublicKey) (*PeerKey, error) {
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyExchangeViolation, err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", domain.ErrKeyExchangeViolation)
	}
	cp := make(domain.PublicKey, len(der))
	copy(cp, der)
	return &PeerKey{pub: pub, der: cp}, nil
}

// Encrypt seals plaintext to the peer with OAEP. Used exactly once per
// session, for the sesskey envelope.
func (k *PeerKey) Encrypt(plaintext []byte) ([]byte, error) {
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, k.pub, plaintext, nil)
}

// Verify checks a PSS signature over digest. A well-formed signature that
// does not match returns (false, nil); only malformed input is an error.
func (k *PeerKey) Verify(digest [sha256.Size]byte, sig []byte) (bool, error) {
	if len(sig) == 0 || len(sig) > k.pub.Size()+1 {
		return false, domain.ErrSignatureFormat
	}
	if err := rsa.VerifyPSS(k.pub, sha256Hash, digest[:], sig, nil); err != nil {
		return false, nil
	}
	return true, nil
}

// Matches reports whether der is byte-identical to the recorded export.
func (k *PeerKey) Matches(der domain.PublicKey) bool {
	return bytes.Equal(k.der, der)
}

// Export returns the recorded DER export of the peer key.
func (k *PeerKey) Export() domain.PublicKey {
	out := make(domain.PublicKey, len(k.der))
	copy(out, k.der)
	return out
}
