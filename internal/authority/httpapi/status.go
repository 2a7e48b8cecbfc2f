package httpapi

import (
	"errors"
	"net/http"

	"github.com/clk-66/licensefabric/internal/apperr"
)

// statusFor maps the apperr taxonomy onto the envelope's HTTP status
// convention (spec §6): 400 validation, 403 policy reject, 404 missing,
// 500 internal. 401 is reserved for admin authentication (adminauth's
// middleware and the admin login handler) and is never returned from here.
func statusFor(err error) (int, string) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		switch ae.Code {
		case apperr.Format, apperr.Config:
			return http.StatusBadRequest, ae.Error()
		case apperr.Unauthorized, apperr.Capacity, apperr.Tampered, apperr.Expired, apperr.NotYetValid:
			return http.StatusForbidden, ae.Error()
		case apperr.NotFound:
			return http.StatusNotFound, ae.Error()
		default:
			return http.StatusInternalServerError, ae.Error()
		}
	}
	return http.StatusInternalServerError, err.Error()
}
