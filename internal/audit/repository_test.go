package audit

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-rules/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{Path: database.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Migrate(context.Background(), migrations.FS)
	require.NoError(t, err)
	return db.DB
}

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupTestDB(t))
	repo.now = func() time.Time { return base }

	entry := &Log{
		Action:     ActionImport,
		EntityType: "template_set",
		EntityID:   "library.yaml",
		Source:     "cli",
		Details:    map[string]any{"count": 3, "operations": []string{"pause"}},
	}
	require.NoError(t, repo.Create(ctx, entry))
	assert.Regexp(t, `^aud-[0-9a-f]{8}$`, entry.ID)
	assert.Equal(t, base, entry.CreatedAt)

	res, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	require.Len(t, res.Logs, 1)

	got := res.Logs[0]
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "library.yaml", got.EntityID)
	assert.Equal(t, base, got.CreatedAt)
	// Details round-trip through JSON, so numbers come back as float64.
	assert.Equal(t, float64(3), got.Details["count"])
	assert.Equal(t, []any{"pause"}, got.Details["operations"])
	assert.Equal(t, defaultLimit, res.Limit)
}

func TestCreate_NullsAndRejects(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupTestDB(t))

	require.NoError(t, repo.Create(ctx, &Log{Action: ActionDelete, EntityType: "operation", Source: "cli"}))
	res, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, res.Logs, 1)
	assert.Empty(t, res.Logs[0].EntityID)
	assert.Nil(t, res.Logs[0].Details)

	assert.Error(t, repo.Create(ctx, &Log{Action: "rename", EntityType: "operation", Source: "cli"}))
}

func TestList_FiltersAndPagination(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupTestDB(t))

	for i := 0; i < 4; i++ {
		require.NoError(t, repo.Create(ctx, &Log{
			Action:     ActionImport,
			EntityType: "template_set",
			EntityID:   fmt.Sprintf("lib-%d.yaml", i),
			Source:     "cli",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(ctx, &Log{
		Action:     ActionDelete,
		EntityType: "operation",
		EntityID:   "pause",
		Source:     "cli",
		CreatedAt:  base.Add(time.Hour),
	}))

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 5},
		{"action", Filter{Action: ActionDelete}, 1},
		{"entity type", Filter{EntityType: "template_set"}, 4},
		{"entity id", Filter{EntityID: "pause"}, 1},
		{"no match", Filter{Action: ActionDelete, EntityType: "handler"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Total)
			assert.Len(t, res.Logs, tt.want)
			assert.NotNil(t, res.Logs)
		})
	}

	res, err := repo.List(ctx, Filter{EntityType: "template_set", Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, res.Logs, 2)
	assert.Equal(t, "lib-2.yaml", res.Logs[0].EntityID)
	assert.Equal(t, "lib-1.yaml", res.Logs[1].EntityID)

	res, err = repo.List(ctx, Filter{Limit: 1000, Offset: -1})
	require.NoError(t, err)
	assert.Equal(t, maxLimit, res.Limit)
	assert.Equal(t, 0, res.Offset)
	assert.Equal(t, ActionDelete, res.Logs[0].Action)
}
