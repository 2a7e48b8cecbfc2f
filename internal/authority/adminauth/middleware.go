package adminauth

import (
	"net/http"
	"strings"
)

// RequireAdmin returns middleware that validates the admin bearer JWT,
// mirroring the shape of the teacher's middleware.Auth. OPTIONS requests are
// always allowed through (spec §6).
func RequireAdmin(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if svc.Open() {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, `{"code":401,"message":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			if err := svc.VerifyToken(strings.TrimPrefix(header, "Bearer ")); err != nil {
				http.Error(w, `{"code":401,"message":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
