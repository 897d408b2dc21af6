package api

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an API failure so callers can branch on the cause
// without matching message text.
type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrBadRequest
	ErrAuth
	ErrRateLimited
	ErrTransport
)

func (k ErrorKind) String() string {
	switch k {
	case ErrBadRequest:
		return "bad request"
	case ErrAuth:
		return "unauthorized"
	case ErrRateLimited:
		return "rate limited"
	case ErrTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is the failure of a single Govee API exchange. Status and Body are
// zero for transport failures that never produced a response.
type Error struct {
	Kind    ErrorKind
	Status  int
	Body    string
	Command string
	Device  string
	Err     error
}

func (e *Error) Error() string {
	if e.Kind == ErrTransport {
		return fmt.Sprintf("govee api unreachable: %v", e.Err)
	}
	if e.Command != "" {
		return fmt.Sprintf("API-Error %d on command %s: %s for device %s", e.Status, e.Command, e.Body, e.Device)
	}
	return fmt.Sprintf("API-Error %d: %s", e.Status, e.Body)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func classify(status int) ErrorKind {
	switch status {
	case 400:
		return ErrBadRequest
	case 401, 403:
		return ErrAuth
	case 429:
		return ErrRateLimited
	default:
		return ErrUnknown
	}
}

// Classify returns the kind of an API error, or ErrUnknown when err did not
// originate from this package.
func Classify(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ErrUnknown
}
