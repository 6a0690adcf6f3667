package database

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kashf99/park-booking/internal/database/migrations"
)

func TestEmbeddedMigrationsAreVersioned(t *testing.T) {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)

	found, err := goose.CollectMigrations(".", 0, goose.MaxVersion)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, int64(1), found[0].Version)
	assert.True(t, strings.HasSuffix(found[0].Source, "001_init.sql"), found[0].Source)
}

func TestEmbeddedSchemaDeclaresTables(t *testing.T) {
	content, err := fs.ReadFile(migrations.FS, "001_init.sql")
	require.NoError(t, err)
	schema := string(content)

	up := strings.Index(schema, "-- +goose Up")
	down := strings.Index(schema, "-- +goose Down")
	require.Equal(t, 0, up)
	require.Greater(t, down, up)
	for _, table := range []string{"users", "attractions", "slot_occupancy", "bookings"} {
		assert.Contains(t, schema[:down], "CREATE TABLE IF NOT EXISTS "+table+" ", table)
		assert.Contains(t, schema[down:], "DROP TABLE IF EXISTS "+table+";", table)
	}
}

func TestMigrateRequiresDB(t *testing.T) {
	assert.Error(t, Migrate(context.Background(), nil, migrations.FS))
}

func TestOptionsDSN(t *testing.T) {
	dsn := Options{User: "park", Pass: "secret", Host: "db", Port: "3306", Name: "parkdb"}.DSN()
	assert.True(t, strings.HasPrefix(dsn, "park:secret@tcp(db:3306)/parkdb?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}
