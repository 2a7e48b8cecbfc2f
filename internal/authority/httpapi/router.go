package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/clk-66/licensefabric/internal/authority/adminauth"
	"github.com/clk-66/licensefabric/internal/authority/httpapi/live"
)

// NewRouter assembles the authority's HTTP surface (spec §6), grounded on
// the teacher's cmd/server/main.go router setup.
func NewRouter(admin *adminauth.Service, adminH *AdminHandlers, licenseH *LicenseHandlers, nodeH *NodeHandlers, liveHub *live.Hub) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, map[string]bool{"ok": true})
	})

	// Public endpoints (spec §6).
	r.Get("/api/license/publicKey", licenseH.PublicKey)
	r.Post("/api/node/register", nodeH.Register)
	r.Post("/api/node/heartbeat", nodeH.Heartbeat)
	r.Post("/api/node/unregister", nodeH.Unregister)
	r.Post("/api/admin/login", adminH.Login)

	// Admin endpoints.
	r.Group(func(r chi.Router) {
		r.Use(adminauth.RequireAdmin(admin))

		r.Post("/api/license/generate", licenseH.Generate)
		r.Get("/api/license/list", licenseH.List)
		r.Delete("/api/license/{id}", licenseH.Delete)
		r.Get("/api/license/nodes", licenseH.Nodes)
		r.Get("/api/license/audit", licenseH.Audit)
		r.Get("/api/node/stats", nodeH.Stats)

		// Supplemental live dashboard feed.
		r.Get("/api/license/nodes/stream", func(w http.ResponseWriter, r *http.Request) {
			liveHub.ServeWS(w, r)
		})
	})

	return r
}
