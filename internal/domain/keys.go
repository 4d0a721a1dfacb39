package domain

const (
	// SessionKeyBytes is the length of the symmetric session key.
	SessionKeyBytes = 32
)

// PublicKey is an exported asymmetric public key (PKIX DER). It is the only
// piece of key material that ever crosses the wire in the clear.
type PublicKey []byte

// Slice returns the key as a []byte.
func (p PublicKey) Slice() []byte { return p }

// SessionKey is the symmetric key shared by the two ends of a session.
// Generated exactly once by the handshake initiator, transmitted exactly
// once under asymmetric encryption, immutable thereafter.
type SessionKey [SessionKeyBytes]byte

// Slice returns the key as a []byte.
func (k SessionKey) Slice() []byte { return k[:] }
