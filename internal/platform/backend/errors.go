package backend

import (
	"fmt"
	"net/http"

	"github.com/phrazzld/arcana/internal/domain"
)

// RemoteError is returned for every failed backend call. It always matches
// domain.ErrNetwork, and additionally matches the domain sentinel named by
// the response's error code when the backend sent one.
type RemoteError struct {
	// Operation is the client method that failed
	Operation string
	// StatusCode is the HTTP status, or zero when no response was received
	StatusCode int
	// Code is the machine-readable code from the response body, if any
	Code string
	// Message is the backend's user-facing message, if any
	Message string
	// Err is the transport or decoding error, if any
	Err error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("backend %s: %v", e.Operation, e.Err)
	case e.Message != "":
		return fmt.Sprintf("backend %s: %d %s", e.Operation, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("backend %s: %d %s", e.Operation, e.StatusCode, http.StatusText(e.StatusCode))
	}
}

// Unwrap exposes domain.ErrNetwork, the coded sentinel and the transport
// error to errors.Is and errors.As.
func (e *RemoteError) Unwrap() []error {
	errs := []error{domain.ErrNetwork}
	if sentinel := domain.ErrorForCode(e.Code); sentinel != nil {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Permanent reports whether retrying the call cannot succeed: the backend
// answered with a client error.
func (e *RemoteError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 &&
		e.StatusCode != http.StatusRequestTimeout &&
		e.StatusCode != http.StatusTooManyRequests
}
