package database

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20260101_000000_first.up.sql":    {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"20260101_000000_first.down.sql":  {Data: []byte("DROP TABLE a;")},
		"20260102_000000_second.up.sql":   {Data: []byte("CREATE TABLE b (id INTEGER);")},
		"20260102_000000_second.down.sql": {Data: []byte("DROP TABLE b;")},
		"README.md":                       {Data: []byte("ignored")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	fsys := testMigrations()

	n, err := db.Migrate(ctx, fsys)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, tableExists(t, db, "a"))
	assert.True(t, tableExists(t, db, "b"))

	n, err = db.Migrate(ctx, fsys)
	require.NoError(t, err)
	assert.Zero(t, n, "second run is a no-op")

	applied, pending, err := db.MigrationStatus(ctx, fsys)
	require.NoError(t, err)
	assert.Len(t, applied, 2)
	assert.Empty(t, pending)
}

func TestMigrate_StopsAtFailure(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	fsys := testMigrations()
	fsys["20260103_000000_broken.up.sql"] = &fstest.MapFile{Data: []byte("NOT SQL")}

	n, err := db.Migrate(ctx, fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "20260103_000000")
	assert.Equal(t, 2, n)

	_, pending, err := db.MigrationStatus(ctx, fsys)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "broken", pending[0].Name)
}

func TestMigrateDown(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	fsys := testMigrations()

	_, err := db.Migrate(ctx, fsys)
	require.NoError(t, err)

	require.NoError(t, db.MigrateDown(ctx, fsys))
	assert.True(t, tableExists(t, db, "a"))
	assert.False(t, tableExists(t, db, "b"))

	require.NoError(t, db.MigrateDown(ctx, fsys))
	require.NoError(t, db.MigrateDown(ctx, fsys), "nothing left")
	assert.False(t, tableExists(t, db, "a"))
}

func TestMigrate_NilFS(t *testing.T) {
	db := openTestDB(t)
	n, err := db.Migrate(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoadMigrations_MissingUp(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{
		"20260101_000000_orphan.down.sql": {Data: []byte("DROP TABLE x;")},
	})
	assert.Error(t, err)
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		file    string
		version string
		name    string
		up      bool
		ok      bool
	}{
		{"20260301_120000_rule_templates.up.sql", "20260301_120000", "rule_templates", true, true},
		{"20260301_120000_rule_templates.down.sql", "20260301_120000", "rule_templates", false, true},
		{"20260301_120000.up.sql", "20260301_120000", "20260301_120000", true, true},
		{"20260301_120000_x.sql", "", "", false, false},
		{"20260301.up.sql", "", "", false, false},
		{"notes.txt", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			version, name, up, ok := parseMigrationFilename(tt.file)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.version, version)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.up, up)
		})
	}
}
