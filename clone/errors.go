package clone

import (
	"fmt"
	"time"
)

// Kind classifies a clone failure.
type Kind int

const (
	KindInvalidDatabaseName Kind = iota + 1
	KindTemplateNotFound
	KindCloneAlreadyExists
	KindCloneTimeout
	KindInsufficientPermissions
	KindConnectionPoolExhausted
	KindDatabaseError
)

func (k Kind) String() string {
	switch k {
	case KindInvalidDatabaseName:
		return "invalid database name"
	case KindTemplateNotFound:
		return "template not found"
	case KindCloneAlreadyExists:
		return "clone already exists"
	case KindCloneTimeout:
		return "clone timeout"
	case KindInsufficientPermissions:
		return "insufficient permissions"
	case KindConnectionPoolExhausted:
		return "connection pool exhausted"
	case KindDatabaseError:
		return "database error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrInvalidDatabaseName     = &Error{Kind: KindInvalidDatabaseName}
	ErrTemplateNotFound        = &Error{Kind: KindTemplateNotFound}
	ErrCloneAlreadyExists      = &Error{Kind: KindCloneAlreadyExists}
	ErrCloneTimeout            = &Error{Kind: KindCloneTimeout}
	ErrInsufficientPermissions = &Error{Kind: KindInsufficientPermissions}
	ErrConnectionPoolExhausted = &Error{Kind: KindConnectionPoolExhausted}
	ErrDatabaseError           = &Error{Kind: KindDatabaseError}
)

// Error is returned by every Manager operation.
type Error struct {
	Kind Kind
	// Name is the database the error refers to: the template for
	// KindTemplateNotFound, the clone otherwise.
	Name    string
	Reason  string
	Timeout time.Duration
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidDatabaseName:
		return fmt.Sprintf("invalid database name %q: %s", e.Name, e.Reason)
	case KindTemplateNotFound:
		return fmt.Sprintf("template database %q not found", e.Name)
	case KindCloneAlreadyExists:
		return fmt.Sprintf("clone database %q already exists", e.Name)
	case KindCloneTimeout:
		return fmt.Sprintf("clone of %q timed out after %s", e.Name, e.Timeout)
	case KindInsufficientPermissions:
		return fmt.Sprintf("insufficient permissions for %q: %s", e.Name, e.Reason)
	case KindConnectionPoolExhausted:
		return "connection pool exhausted: too many concurrent clone operations"
	default:
		return fmt.Sprintf("database error: %s", e.Reason)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}
