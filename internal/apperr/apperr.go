// Package apperr defines the error taxonomy shared by the authority and the
// agent: a small set of codes plus a typed error that carries the fields
// callers need to render a response or a state-machine message.
package apperr

import "fmt"

// Code is one of the fixed error categories used across the fabric.
type Code string

const (
	Format      Code = "FORMAT"
	Tampered    Code = "TAMPERED"
	Expired     Code = "EXPIRED"
	NotYetValid Code = "NOT_YET_VALID"
	Capacity    Code = "CAPACITY"
	Unauthorized Code = "UNAUTHORIZED"
	NotFound    Code = "NOT_FOUND"
	Config      Code = "CONFIG"
	Transport   Code = "TRANSPORT"
	Internal    Code = "INTERNAL"
)

// Error is the typed error returned by token, cachecrypto, agent cache, and
// protocol operations. Callers compare on Code (via errors.As) rather than
// on message text.
type Error struct {
	Code    Code
	Message string

	// Reason further qualifies Unauthorized (e.g. "BAD_SIGNATURE", "EXPIRED",
	// "NOT_YET_VALID") the way spec.md's register() does.
	Reason string

	// Max/Current populate Capacity errors.
	Max     int
	Current int
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s(%s): %s", e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// UnauthorizedErr builds an UNAUTHORIZED error with a reason as used by
// register()'s BAD_SIGNATURE / FORMAT / EXPIRED / NOT_YET_VALID cases.
func UnauthorizedErr(reason, message string) *Error {
	return &Error{Code: Unauthorized, Reason: reason, Message: message}
}

// CapacityErr builds a CAPACITY error carrying the fleet cap and current
// count, as spec.md's end-to-end scenario 1 expects (CAPACITY(max=2,current=2)).
func CapacityErr(max, current int) *Error {
	return &Error{
		Code:    Capacity,
		Message: fmt.Sprintf("max=%d, current=%d", max, current),
		Max:     max,
		Current: current,
	}
}
