package db

import "strings"

// IsUniqueViolation reports whether err is a unique constraint violation.
// Postgres reports "duplicate key value" with the constraint name; sqlite,
// used by the test suite, reports "UNIQUE constraint failed" with the column.
// When constraintName is given it is only matched against the Postgres
// message, so pick index names that identify the column.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return true
	}
	if !strings.Contains(msg, "duplicate key value") {
		return false
	}
	if constraintName == "" {
		return true
	}
	return strings.Contains(msg, constraintName)
}
