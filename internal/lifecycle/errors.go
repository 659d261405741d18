package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Error kinds. Match with errors.Is.
var (
	ErrAuthorization = errors.New("not authorized")
	ErrInvalidState  = errors.New("invalid state")
	ErrConflict      = errors.New("conflict")
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
)

// Error is a rejected operation. It carries enough context for the caller to
// render a message: the ids involved and the current and attempted status.
type Error struct {
	Kind       error
	Reason     string
	RequestID  uuid.UUID
	ProposalID *uuid.UUID
	From       string
	To         string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Reason)
	if e.RequestID != uuid.Nil {
		fmt.Fprintf(&b, " (request %s", e.RequestID)
		if e.ProposalID != nil {
			fmt.Fprintf(&b, ", proposal %s", *e.ProposalID)
		}
		if e.From != "" {
			fmt.Fprintf(&b, ", status %s", e.From)
			if e.To != "" && e.To != e.From {
				fmt.Fprintf(&b, " -> %s", e.To)
			}
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Fail builds an Error of the given kind without request context. Services
// outside the work request lifecycle use it so all domain failures map to
// the same kinds.
func Fail(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Reason returns the human-readable reason of a domain error, or err.Error()
// for anything else.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return err.Error()
}
