// Package pgerr classifies Postgres errors surfaced through gorm.
package pgerr

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

func code(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation reports whether err is a unique or primary key violation.
func IsUniqueViolation(err error) bool { return code(err) == codeUniqueViolation }

func IsForeignKeyViolation(err error) bool { return code(err) == codeForeignKeyViolation }

// IsCheckViolation reports whether a CHECK constraint (e.g. non-negative
// balance) rejected the statement.
func IsCheckViolation(err error) bool { return code(err) == codeCheckViolation }

// ConstraintName returns the violated constraint, if any.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}
