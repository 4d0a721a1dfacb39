package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"confy/internal/domain"
)

// SealMessage encrypts plaintext with AES-256-CFB under a fresh IV and
// returns iv || ciphertext. The IV is not secret and travels with the
// ciphertext; integrity is delegated entirely to the signature step.
func SealMessage(key domain.SessionKey, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key.Slice())
	if err != nil {
		return nil, err
	}
	out := make([]byte, aes.BlockSize+len(plaintext))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyGeneration, err)
	}
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(out[aes.BlockSize:], plaintext)
	return out, nil
}

// OpenMessage reverses SealMessage. The result is not trusted until the
// caller has verified the detached signature over it.
func OpenMessage(key domain.SessionKey, payload []byte) ([]byte, error) {
	if len(payload) < aes.BlockSize {
		return nil, domain.ErrDecryption
	}
	block, err := aes.NewCipher(key.Slice())
	if err != nil {
		return nil, err
	}
	iv := payload[:aes.BlockSize]
	pt := make([]byte, len(payload)-aes.BlockSize)
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(pt, payload[aes.BlockSize:])
	return pt, nil
}

// NewSessionKey draws a fresh symmetric key from the secure random source.
func NewSessionKey() (domain.SessionKey, error) {
	var k domain.SessionKey
	if _, err := rand.Read(k[:]); err != nil {
		return k, fmt.Errorf("%w: %v", domain.ErrKeyGeneration, err)
	}
	return k, nil
}
