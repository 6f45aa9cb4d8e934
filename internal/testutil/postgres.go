// Package testutil starts a throwaway Postgres for package tests.
package testutil

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"storyvote/internal/db"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// PostgresDB starts a postgres:15-alpine container, migrates the schema and
// returns a connected *gorm.DB. The container is terminated when the test
// ends. Skipped under -short.
func PostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("storyvote_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute),
		),
	)
	require.NoError(t, err, "Failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get postgres connection string")

	gdb, err := db.Connect(dsn)
	require.NoError(t, err, "Failed to connect to test postgres")
	require.NoError(t, db.AutoMigrateAndIndexes(gdb), "Failed to migrate")

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

var tablesOnce sync.Once
var tableNames []string

// Truncate empties every table and resets identities.
func Truncate(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	tablesOnce.Do(func() {
		for _, m := range db.Models() {
			stmt := &gorm.Statement{DB: gdb}
			if err := stmt.Parse(m); err == nil {
				tableNames = append(tableNames, stmt.Schema.Table)
			}
		}
	})
	require.NoError(t, gdb.Exec("TRUNCATE TABLE "+strings.Join(tableNames, ", ")+" RESTART IDENTITY CASCADE").Error)
}
