// Package issuer implements the authority's license-minting surface: mint a
// new token, list minted records, delete one. This is the "issuer" half of
// spec.md's "authority (issuer + node registrar)" — the registrar half lives
// in internal/authority/protocol.
package issuer

import (
	"crypto/rsa"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clk-66/licensefabric/internal/authority/store"
	"github.com/clk-66/licensefabric/internal/token"
)

// Issuer mints and manages License Records.
type Issuer struct {
	licenses *store.LicenseStore
	privKey  *rsa.PrivateKey
}

func New(licenses *store.LicenseStore, privKey *rsa.PrivateKey) *Issuer {
	return &Issuer{licenses: licenses, privKey: privKey}
}

// Generate mints a new token from payload and stores the resulting
// License Record.
func (i *Issuer) Generate(payload token.Payload) (store.LicenseRecord, error) {
	code, err := token.Mint(payload, i.privKey)
	if err != nil {
		return store.LicenseRecord{}, err
	}

	rec := store.LicenseRecord{
		ID:           newRecordID(),
		Subject:      payload.Subject,
		LicenseCode:  code,
		Payload:      payload,
		CreateTimeMs: time.Now().UnixMilli(),
	}
	i.licenses.Add(rec)
	return rec, nil
}

// newRecordID mirrors protocol.newNodeID: a 32-hex-char id, matching
// NodeInfo's id format per spec §3.
func newRecordID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// List returns every minted record.
func (i *Issuer) List() []store.LicenseRecord {
	return i.licenses.List()
}

// Delete removes a record by id, returning whether it existed.
func (i *Issuer) Delete(id string) bool {
	return i.licenses.Delete(id)
}
