package domain

import "errors"

// The protocol error taxonomy. Cryptographic and protocol errors are never
// silently swallowed: each transitions the state machine and is surfaced
// once to the UI layer as a status change.
var (
	// ErrKeyGeneration is fatal: the entropy source failed. Not retryable
	// within the session.
	ErrKeyGeneration = errors.New("key generation failed")

	// ErrAsymmetricDecryption covers both malformed ciphertext and ciphertext
	// produced for a different keypair. The two are deliberately not
	// distinguished in the error surface.
	ErrAsymmetricDecryption = errors.New("asymmetric decryption failed")

	// ErrSignatureFormat indicates malformed signature or key input. A
	// well-formed signature that simply does not verify is not an error.
	ErrSignatureFormat = errors.New("malformed signature input")

	// ErrSignatureVerification marks a message whose signature did not verify
	// against the peer's recorded public key. The message is discarded unread.
	ErrSignatureVerification = errors.New("message signature verification failed")

	// ErrDecryption marks a message payload that could not be decoded.
	ErrDecryption = errors.New("message decryption failed")

	// ErrPeerUnavailable: the peer is absent from the relay or the tunnel for
	// this pair is already occupied.
	ErrPeerUnavailable = errors.New("peer unavailable")

	// ErrKeyExchangeViolation: a second, differing public key arrived from the
	// peer mid-session, or key material arrived out of order.
	ErrKeyExchangeViolation = errors.New("key exchange violation")

	// ErrSessionKeyEstablishment: the sesskey payload was malformed or could
	// not be decrypted.
	ErrSessionKeyEstablishment = errors.New("session key establishment failed")

	// ErrSessionKeyAlreadySet: the symmetric key is write-once per session.
	ErrSessionKeyAlreadySet = errors.New("session key already set")

	// ErrHandshakeTimeout: a bounded wait on a handshake phase expired.
	ErrHandshakeTimeout = errors.New("handshake timed out")

	// ErrNotReady is a caller error: send attempted outside the Ready state.
	ErrNotReady = errors.New("session not ready")

	// ErrConnectionLost is reported by the transport and triggers full local
	// key material teardown.
	ErrConnectionLost = errors.New("connection lost")

	// ErrPeerTampering is raised after a run of consecutive signature or
	// decryption failures, signaling an active attacker on the channel.
	ErrPeerTampering = errors.New("peer tampering suspected")

	// ErrClosed: the session has already been torn down.
	ErrClosed = errors.New("session closed")
)
