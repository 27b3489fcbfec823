package db

import "strings"

// IsUniqueViolation reports whether the provided error is a unique constraint
// violation. When constraintName is provided and appears in the error text
// (Postgres includes it), the match is exact; otherwise the generic
// unique-violation phrasing of Postgres and sqlite is accepted.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" && strings.Contains(msg, constraintName) {
		return true
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
