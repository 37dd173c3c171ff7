package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated indicates that no session is available or the backend rejected it.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredential indicates that the stored access token is not shaped like a backend token.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrPermissionDenied indicates that the OS (or the user on its behalf) refused access to an image source.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrCancelled indicates that the user dismissed the picker or camera.
	ErrCancelled = errors.New("cancelled")
	// ErrValidation indicates a local precondition failure such as an empty product name.
	ErrValidation = errors.New("validation failed")
	// ErrTimeout indicates that the recognition request did not settle within the scan timeout.
	ErrTimeout = errors.New("request timed out")
	// ErrRecognitionFailed indicates that the backend could not produce nutrition data for the image.
	ErrRecognitionFailed = errors.New("recognition failed")
	// ErrPersistenceFailed indicates that a recognized record could not be archived.
	ErrPersistenceFailed = errors.New("persistence failed")
	// ErrFetchFailed indicates that the history could not be read.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrLoginRejected indicates that the backend refused the email and password.
	ErrLoginRejected = errors.New("login rejected")
	// ErrAccountFailed indicates that a login, registration or token refresh was refused for a reason other than bad input.
	ErrAccountFailed = errors.New("account request failed")
	// ErrNetwork marks transport-level failures (DNS, refused connection, reset).
	ErrNetwork = errors.New("network error")
)

// RemoteError is a failure reported by, or while talking to, the backend.
// It matches its Kind through errors.Is, and ErrNetwork when Err is a
// transport failure.
type RemoteError struct {
	Kind    error
	Status  int
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	msg := e.Kind.Error()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Validationf builds an ErrValidation with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
