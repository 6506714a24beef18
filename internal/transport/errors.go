package transport

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates backend failures so callers branch on a tag
// instead of sniffing human-readable error text.
type ErrorKind string

const (
	// KindNotFound covers 404s. On the existence checks this is a normal
	// "no such session" signal; on send it means the conversation vanished.
	KindNotFound ErrorKind = "not_found"
	// KindAlreadyComplete is the backend rejecting an operation because
	// the conversation has already been finished.
	KindAlreadyComplete ErrorKind = "already_complete"
	// KindUnauthorized covers 401/403 and locally detected expired tokens.
	KindUnauthorized ErrorKind = "unauthorized"
	// KindOther is every remaining non-ok response.
	KindOther ErrorKind = "other"
)

// APIError is a classified backend failure.
type APIError struct {
	Kind   ErrorKind
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error (%s, status %d): %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("api error (%s, status %d)", e.Kind, e.Status)
}

func kindIs(err error, kind ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// IsNotFound reports whether err is a classified 404.
func IsNotFound(err error) bool { return kindIs(err, KindNotFound) }

// IsAlreadyComplete reports whether err is the backend's structured
// "conversation already complete" rejection.
func IsAlreadyComplete(err error) bool { return kindIs(err, KindAlreadyComplete) }

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool { return kindIs(err, KindUnauthorized) }
