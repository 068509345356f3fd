// Shared error values and constraint-violation sniffing for the repo package.
package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrReference is returned when an insert or update points at a missing
// parent row (user or debt). It is the repo-level face of a foreign key
// violation.
var ErrReference = errors.New("referenced row does not exist")

// ErrDuplicate indicates that a row violating a unique constraint already
// exists (idempotency records, duplicate emails).
var ErrDuplicate = errors.New("duplicate")

// glebarez/sqlite often returns plain-text errors for constraint violations,
// so both helpers fall back to substring matching.

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}
