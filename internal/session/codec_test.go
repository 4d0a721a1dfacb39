package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"confy/internal/crypto"
	"confy/internal/domain"
)

const testKeyBits = 1024

// codecPair builds the two ends of an established session: each codec holds
// its own identity, the other side's public key, and the shared session key.
func codecPair(t *testing.T) (alice, bob *Codec) {
	t.Helper()

	aliceID, err := crypto.GenerateIdentity(testKeyBits)
	require.NoError(t, err)
	bobID, err := crypto.GenerateIdentity(testKeyBits)
	require.NoError(t, err)

	alicePub, err := crypto.ParsePeerKey(aliceID.Public())
	require.NoError(t, err)
	bobPub, err := crypto.ParsePeerKey(bobID.Public())
	require.NoError(t, err)

	var aliceKS, bobKS Keystore
	key, err := aliceKS.Generate()
	require.NoError(t, err)
	require.NoError(t, bobKS.Set(key))

	return NewCodec(aliceID, bobPub, &aliceKS), NewCodec(bobID, alicePub, &bobKS)
}

func TestCodecRoundTrip(t *testing.T) {
	alice, bob := codecPair(t)

	payload, sig, err := alice.Encode([]byte("hello"))
	require.NoError(t, err)
	require.NotEmpty(t, sig)

	pt, err := bob.Decode(payload, sig)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), pt)
}

func TestCodecRejectsTamperedPayload(t *testing.T) {
	alice, bob := codecPair(t)

	payload, sig, err := alice.Encode([]byte("hello"))
	require.NoError(t, err)

	// Flipping ciphertext bits yields different plaintext; the signature
	// check must catch it even though CFB decrypt itself succeeds.
	payload[len(payload)-1] ^= 0x01
	_, err = bob.Decode(payload, sig)
	require.ErrorIs(t, err, domain.ErrSignatureVerification)
}

func TestCodecRejectsTamperedSignature(t *testing.T) {
	alice, bob := codecPair(t)

	payload, sig, err := alice.Encode([]byte("hello"))
	require.NoError(t, err)

	sig[0] ^= 0x01
	_, err = bob.Decode(payload, sig)
	require.ErrorIs(t, err, domain.ErrSignatureVerification)
}

func TestCodecRejectsForeignSigner(t *testing.T) {
	alice, bob := codecPair(t)
	mallory, _ := codecPair(t)

	// A message validly signed and encrypted by a third party with the same
	// session key layout must not verify against alice's recorded key.
	payload, _, err := alice.Encode([]byte("hello"))
	require.NoError(t, err)
	_, foreignSig, err := mallory.Encode([]byte("hello"))
	require.NoError(t, err)

	_, err = bob.Decode(payload, foreignSig)
	require.ErrorIs(t, err, domain.ErrSignatureVerification)
}

func TestCodecShortPayload(t *testing.T) {
	_, bob := codecPair(t)
	_, err := bob.Decode([]byte("tiny"), []byte{0x01})
	require.ErrorIs(t, err, domain.ErrDecryption)
}
