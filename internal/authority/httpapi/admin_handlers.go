package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clk-66/licensefabric/internal/authority/adminauth"
)

// AdminHandlers serves POST /api/admin/login.
type AdminHandlers struct {
	svc *adminauth.Service
}

func NewAdminHandlers(svc *adminauth.Service) *AdminHandlers {
	return &AdminHandlers{svc: svc}
}

func (h *AdminHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tok, err := h.svc.Login(body.Username, body.Password)
	if errors.Is(err, adminauth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid admin credentials")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeOK(w, map[string]string{"token": tok})
}
