package protocol

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
)

type rsaKeyPair struct {
	priv *rsa.PrivateKey
	pub  *rsa.PublicKey
}

func newRSAKeyPair(t *testing.T) *rsaKeyPair {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &rsaKeyPair{priv: priv, pub: &priv.PublicKey}
}
