package postgres

import (
	"errors"

	"github.com/lib/pq"
)

const uniqueViolation = pq.ErrorCode("23505")

// isUniqueViolation reports whether err is a unique violation on constraint.
// An empty constraint matches any unique violation.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
