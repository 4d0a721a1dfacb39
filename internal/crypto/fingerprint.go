package crypto

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2s"

	"confy/internal/domain"
)

// Fingerprint returns a short BLAKE2s digest of an exported public key, for
// display and logging. Never used in the protocol itself.
func Fingerprint(pub domain.PublicKey) string {
	sum := blake2s.Sum256(pub)
	return hex.EncodeToString(sum[:10])
}
