package token

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/clk-66/licensefabric/internal/apperr"
)

var b64 = base64.RawURLEncoding

// Mint serializes payload as JSON, signs the raw bytes with RSA-SHA256, and
// returns "base64url(payload).base64url(signature)" with no padding.
func Mint(payload Payload, priv *rsa.PrivateKey) (string, error) {
	if priv == nil {
		return "", apperr.New(apperr.Config, "no private key configured")
	}
	if payload.IssuedTime == 0 {
		payload.IssuedTime = time.Now().UnixMilli()
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", apperr.Newf(apperr.Internal, "marshal payload: %v", err)
	}

	digest := sha256.Sum256(raw)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return "", apperr.Newf(apperr.Internal, "sign payload: %v", err)
	}

	return b64.EncodeToString(raw) + "." + b64.EncodeToString(sig), nil
}

// Verify splits the token on its first '.', base64url-decodes both halves,
// checks the RSA-SHA256 signature, and unmarshals the payload JSON. It does
// NOT check issuedTime/expiryTime — callers enforce those.
func Verify(tokenStr string, pub *rsa.PublicKey) (Payload, error) {
	idx := strings.IndexByte(tokenStr, '.')
	if idx < 0 || strings.IndexByte(tokenStr[idx+1:], '.') >= 0 {
		return Payload{}, apperr.New(apperr.Format, "token must contain exactly one '.' separator")
	}

	rawPart, sigPart := tokenStr[:idx], tokenStr[idx+1:]

	raw, err := b64.DecodeString(rawPart)
	if err != nil {
		return Payload{}, apperr.Newf(apperr.Format, "decode payload: %v", err)
	}
	sig, err := b64.DecodeString(sigPart)
	if err != nil {
		return Payload{}, apperr.Newf(apperr.Format, "decode signature: %v", err)
	}

	if pub == nil {
		return Payload{}, apperr.New(apperr.Config, "no public key configured")
	}

	digest := sha256.Sum256(raw)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return Payload{}, apperr.New(apperr.Tampered, "signature verification failed")
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Payload{}, apperr.Newf(apperr.Format, "unmarshal payload: %v", err)
	}

	return payload, nil
}
