package pg

import (
	"errors"

	"github.com/lib/pq"
)

// SQLSTATE codes the managers branch on.
const (
	CodeDuplicateDatabase     = "42P04"
	CodeInvalidCatalogName    = "3D000"
	CodeInsufficientPrivilege = "42501"
	CodeTooManyConnections    = "53300"
	CodeObjectInUse           = "55006"
	CodeQueryCanceled         = "57014"
)

// SQLState returns the SQLSTATE carried by err, or "" when err did not come
// from the server.
func SQLState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// ErrorMessage returns the server's message for err, falling back to
// err.Error().
func ErrorMessage(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Detail != "" {
			return pqErr.Message + ": " + pqErr.Detail
		}
		return pqErr.Message
	}
	return err.Error()
}
