package db

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationsAreEmbeddedAndAnnotated(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
		body, err := fs.ReadFile(migrationFiles, "migrations/"+e.Name())
		require.NoError(t, err)
		require.True(t, strings.Contains(string(body), "-- +goose Up"), e.Name())
		require.True(t, strings.Contains(string(body), "-- +goose Down"), e.Name())
	}
	require.Equal(t, []string{"00001_create_products.sql", "00002_create_consultations.sql", "00003_add_consultation_failure_counts.sql"}, names)
}

func TestRunMigrationsNilDatabaseIsNoop(t *testing.T) {
	require.NoError(t, RunMigrations(context.Background(), nil))
}
