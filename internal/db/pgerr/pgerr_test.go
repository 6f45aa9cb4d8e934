package pgerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	unique := fmt.Errorf("insert vote: %w", &pgconn.PgError{Code: "23505", ConstraintName: "votes_pkey"})
	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsCheckViolation(unique))
	assert.Equal(t, "votes_pkey", ConstraintName(unique))

	check := &pgconn.PgError{Code: "23514"}
	assert.True(t, IsCheckViolation(check))

	fk := &pgconn.PgError{Code: "23503"}
	assert.True(t, IsForeignKeyViolation(fk))

	plain := errors.New("boom")
	assert.False(t, IsUniqueViolation(plain))
	assert.Empty(t, ConstraintName(plain))
}
