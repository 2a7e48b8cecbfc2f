// Package cachecrypto provides authenticated encryption (AES-256-GCM) for
// the agent's offline cache file. The key is derived by hashing a
// caller-supplied string (in practice the PEM public-key text) so no
// separate key file needs to be managed.
package cachecrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/clk-66/licensefabric/internal/apperr"
)

func deriveKey(keyString string) []byte {
	sum := sha256.Sum256([]byte(keyString))
	return sum[:]
}

// Seal encrypts plaintext under SHA-256(keyString) and returns
// base64(IV‖ciphertext‖tag).
func Seal(plaintext []byte, keyString string) (string, error) {
	block, err := aes.NewCipher(deriveKey(keyString))
	if err != nil {
		return "", apperr.Newf(apperr.Internal, "new cipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", apperr.Newf(apperr.Internal, "new gcm: %v", err)
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", apperr.Newf(apperr.Internal, "read iv: %v", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	out := append(iv, sealed...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal. Any decode or auth-tag failure
// returns a TAMPERED error.
func Open(ciphertext string, keyString string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, apperr.New(apperr.Tampered, "cache is not valid base64")
	}

	block, err := aes.NewCipher(deriveKey(keyString))
	if err != nil {
		return nil, apperr.Newf(apperr.Internal, "new cipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperr.Newf(apperr.Internal, "new gcm: %v", err)
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return nil, apperr.New(apperr.Tampered, "cache is too short")
	}

	iv, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, apperr.New(apperr.Tampered, "cache authentication failed")
	}
	return plaintext, nil
}
