package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clk-66/licensefabric/internal/authority/audit"
	"github.com/clk-66/licensefabric/internal/authority/issuer"
	"github.com/clk-66/licensefabric/internal/authority/protocol"
	"github.com/clk-66/licensefabric/internal/token"
)

// LicenseHandlers serves POST /api/license/generate, GET /api/license/list,
// DELETE /api/license/{id}, GET /api/license/publicKey, GET /api/license/nodes,
// GET /api/license/audit.
type LicenseHandlers struct {
	issuer    *issuer.Issuer
	engine    *protocol.Engine
	auditLog  *audit.Log // may be nil
	publicKeyPEM string
}

func NewLicenseHandlers(iss *issuer.Issuer, engine *protocol.Engine, auditLog *audit.Log, publicKeyPEM string) *LicenseHandlers {
	return &LicenseHandlers{issuer: iss, engine: engine, auditLog: auditLog, publicKeyPEM: publicKeyPEM}
}

func (h *LicenseHandlers) Generate(w http.ResponseWriter, r *http.Request) {
	var payload token.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Subject == "" {
		writeError(w, http.StatusBadRequest, "subject is required")
		return
	}
	if payload.MaxMachineCount <= 0 {
		writeError(w, http.StatusBadRequest, "maxMachineCount must be positive")
		return
	}
	if payload.ExpiryTime == 0 {
		writeError(w, http.StatusBadRequest, "expiryTime is required")
		return
	}

	rec, err := h.issuer.Generate(payload)
	if err != nil {
		status, msg := statusFor(err)
		writeError(w, status, msg)
		return
	}
	writeOK(w, rec)
}

func (h *LicenseHandlers) List(w http.ResponseWriter, r *http.Request) {
	writeOK(w, h.issuer.List())
}

func (h *LicenseHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.issuer.Delete(id) {
		writeError(w, http.StatusNotFound, "license record not found")
		return
	}
	writeOK(w, nil)
}

func (h *LicenseHandlers) PublicKey(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(h.publicKeyPEM)) //nolint:errcheck
}

func (h *LicenseHandlers) Nodes(w http.ResponseWriter, r *http.Request) {
	writeOK(w, h.engine.ListNodes())
}

func (h *LicenseHandlers) Audit(w http.ResponseWriter, r *http.Request) {
	if h.auditLog == nil {
		writeOK(w, []audit.Event{})
		return
	}
	events, err := h.auditLog.Recent(200)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read audit log")
		return
	}
	writeOK(w, events)
}
