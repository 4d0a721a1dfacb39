package session

import (
	"crypto/sha256"

	"confy/internal/crypto"
	"confy/internal/domain"
	"confy/internal/util/memzero"
)

// Codec encrypts, signs, decrypts and verifies message envelopes once the
// handshake has completed. The ordering is fixed and identical on both
// peers: sign the SHA-256 digest of the plaintext, encrypt the plaintext,
// transmit {iv || ciphertext, signature}. Verification runs over the digest
// of the decoded plaintext and gates delivery: the cipher mode provides no
// integrity of its own, so the signature check is the integrity boundary.
type Codec struct {
	identity *crypto.Identity
	peer     *crypto.PeerKey
	keys     *Keystore
}

// NewCodec binds the local identity, the recorded peer key and the session
// keystore.
func NewCodec(identity *crypto.Identity, peer *crypto.PeerKey, keys *Keystore) *Codec {
	return &Codec{identity: identity, peer: peer, keys: keys}
}

// Encode produces the payload and detached signature for a message
// envelope.
func (c *Codec) Encode(plaintext []byte) (payload, signature []byte, err error) {
	key, ok := c.keys.Key()
	if !ok {
		return nil, nil, domain.ErrNotReady
	}
	digest := sha256.Sum256(plaintext)
	signature, err = c.identity.Sign(digest)
	if err != nil {
		return nil, nil, err
	}
	payload, err = crypto.SealMessage(key, plaintext)
	if err != nil {
		return nil, nil, err
	}
	return payload, signature, nil
}

// Decode decrypts a message payload and verifies its signature against the
// peer's recorded public key. On verification failure the plaintext is
// zeroed and discarded; it never reaches the caller.
func (c *Codec) Decode(payload, signature []byte) ([]byte, error) {
	key, ok := c.keys.Key()
	if !ok {
		return nil, domain.ErrNotReady
	}
	plaintext, err := crypto.OpenMessage(key, payload)
	if err != nil {
		return nil, domain.ErrDecryption
	}
	digest := sha256.Sum256(plaintext)
	ok, err = c.peer.Verify(digest, signature)
	if err != nil || !ok {
		memzero.Zero(plaintext)
		return nil, domain.ErrSignatureVerification
	}
	return plaintext, nil
}
