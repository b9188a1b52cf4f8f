// Package dbname enforces the naming rules every database identifier must
// pass before it is interpolated into SQL text or used as a file name.
package dbname

import (
	"fmt"
	"strings"
)

// MaxLength is PostgreSQL's NAMEDATALEN-1.
const MaxLength = 63

const forbidden = ";'\"\\\x00\n\r"

// Error reports why a name was rejected.
type Error struct {
	Name   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid database name %q: %s", e.Name, e.Reason)
}

// Validate returns nil when name is safe to use as an unquoted PostgreSQL
// database identifier.
func Validate(name string) error {
	if name == "" {
		return &Error{Name: name, Reason: "name is empty"}
	}
	if len(name) > MaxLength {
		return &Error{Name: name, Reason: fmt.Sprintf("name exceeds %d bytes", MaxLength)}
	}
	if i := strings.IndexAny(name, forbidden); i >= 0 {
		return &Error{Name: name, Reason: fmt.Sprintf("name contains forbidden character %q", name[i])}
	}
	if !isLetter(name[0]) && name[0] != '_' {
		return &Error{Name: name, Reason: "name must start with a letter or underscore"}
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if !isLetter(c) && !isDigit(c) && c != '_' {
			return &Error{Name: name, Reason: fmt.Sprintf("name contains invalid character %q", c)}
		}
	}
	return nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
