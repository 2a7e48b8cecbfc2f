// Package cache reads and writes the agent's tamper-resistant offline cache
// file (spec §3/§6): a sealed (AES-GCM) JSON blob the agent falls back to
// when it can't reach the authority.
package cache

import (
	"encoding/json"
	"os"

	"github.com/clk-66/licensefabric/internal/apperr"
	"github.com/clk-66/licensefabric/internal/cachecrypto"
	"github.com/clk-66/licensefabric/internal/token"
)

// Record is the on-disk cache record (spec §3).
type Record struct {
	Payload        token.Payload `json:"payload"`
	NodeID         string        `json:"nodeId"`
	LastVerifyWall int64         `json:"lastVerifyTime"`
	LicenseCode    string        `json:"licenseCode"`
}

// Load reads and opens the sealed cache at path, keyed by keyString (the PEM
// public-key text). Returns an error if the file is absent or the seal
// doesn't open (TAMPERED).
func Load(path, keyString string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}

	plaintext, err := cachecrypto.Open(string(data), keyString)
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(plaintext, &rec); err != nil {
		return Record{}, apperr.Newf(apperr.Tampered, "corrupt cache payload: %v", err)
	}
	return rec, nil
}

// Save seals rec and writes it to path.
func Save(path, keyString string, rec Record) error {
	plaintext, err := json.Marshal(rec)
	if err != nil {
		return apperr.Newf(apperr.Internal, "marshal cache record: %v", err)
	}

	sealed, err := cachecrypto.Seal(plaintext, keyString)
	if err != nil {
		return err
	}

	return os.WriteFile(path, []byte(sealed), 0o600)
}
