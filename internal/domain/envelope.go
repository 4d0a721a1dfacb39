package domain

// EnvelopeType tags the five kinds of frame a session can exchange. The set
// is closed: the state machine matches on it exhaustively.
type EnvelopeType string

const (
	// EnvelopePubKey carries an exported public key. Valid while exchanging keys.
	EnvelopePubKey EnvelopeType = "pubkey"
	// EnvelopeSessKey carries the asymmetrically encrypted session key.
	EnvelopeSessKey EnvelopeType = "sesskey"
	// EnvelopeMessage carries symmetrically encrypted plaintext plus IV and
	// a detached signature.
	EnvelopeMessage EnvelopeType = "message"
	// EnvelopeClose signals end of session. Empty payload.
	EnvelopeClose EnvelopeType = "close"
	// EnvelopeError carries a human-readable reason code. Informational only.
	EnvelopeError EnvelopeType = "error"
)

// Known reports whether t is one of the five envelope types.
func (t EnvelopeType) Known() bool {
	switch t {
	case EnvelopePubKey, EnvelopeSessKey, EnvelopeMessage, EnvelopeClose, EnvelopeError:
		return true
	}
	return false
}

// Envelope is the atomic unit exchanged over the relay. Immutable once
// constructed; each is consumed exactly once by the receiver's state machine.
// Payload and Signature are base64-encoded by the JSON wire codec.
type Envelope struct {
	Type      EnvelopeType `json:"type"`
	Payload   []byte       `json:"payload,omitempty"`
	Signature []byte       `json:"signature,omitempty"`
}
