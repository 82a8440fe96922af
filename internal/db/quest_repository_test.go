package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/realmquest/internal/game/quest"
	"github.com/udisondev/realmquest/internal/testutil"
)

func newSQLiteRepo(t *testing.T) *SQLiteQuestRepository {
	t.Helper()
	ctx := testutil.ContextWithTimeout(t, 10*time.Second)

	sqlDB, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "data", "quests.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return NewSQLiteQuestRepository(sqlDB)
}

// testRepositoryContract runs the same scenarios against any backend.
func testRepositoryContract(t *testing.T, newRepo func(t *testing.T) quest.Repository) {
	started := time.UnixMilli(time.Now().UnixMilli()).Add(-time.Hour)

	t.Run("empty character", func(t *testing.T) {
		repo := newRepo(t)
		recs, err := repo.LoadQuestInstances(context.Background(), 999)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("save and load with flags", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		rec := quest.InstanceRecord{
			QuestID:     12,
			CharacterID: 1,
			Step:        2,
			StartedAt:   started,
			UpdatedAt:   started.Add(time.Minute),
			Flags:       map[string]string{"escort": "1", "note": "bridge"},
		}
		require.NoError(t, repo.SaveQuestInstance(ctx, rec))
		require.NoError(t, repo.SaveQuestInstance(ctx, quest.InstanceRecord{
			QuestID: 101, CharacterID: 1, Step: quest.StepFinished, Completions: 1,
		}))

		recs, err := repo.LoadQuestInstances(ctx, 1)
		require.NoError(t, err)
		require.Len(t, recs, 2)

		assert.Equal(t, int32(12), recs[0].QuestID)
		assert.Equal(t, 2, recs[0].Step)
		assert.True(t, recs[0].StartedAt.Equal(started), "started %v", recs[0].StartedAt)
		assert.Equal(t, rec.Flags, recs[0].Flags)

		assert.Equal(t, int32(101), recs[1].QuestID)
		assert.Equal(t, quest.StepFinished, recs[1].Step)
		assert.Equal(t, 1, recs[1].Completions)
		assert.True(t, recs[1].StartedAt.IsZero())
		assert.False(t, recs[1].UpdatedAt.IsZero(), "zero updated_at is filled on save")
		assert.Empty(t, recs[1].Flags)
	})

	t.Run("upsert replaces step and flags", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		rec := quest.InstanceRecord{
			QuestID: 303, CharacterID: 2, Step: 1, StartedAt: started,
			Flags: map[string]string{"a": "1", "b": "2"},
		}
		require.NoError(t, repo.SaveQuestInstance(ctx, rec))

		rec.Step = 2
		rec.Completions = 3
		rec.Flags = map[string]string{"b": "3"}
		require.NoError(t, repo.SaveQuestInstance(ctx, rec))

		recs, err := repo.LoadQuestInstances(ctx, 2)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, 2, recs[0].Step)
		assert.Equal(t, 3, recs[0].Completions)
		assert.Equal(t, map[string]string{"b": "3"}, recs[0].Flags)
	})

	t.Run("delete cascades flags", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		require.NoError(t, repo.SaveQuestInstance(ctx, quest.InstanceRecord{
			QuestID: 12, CharacterID: 3, Step: 1, StartedAt: started,
			Flags: map[string]string{"x": "y"},
		}))
		require.NoError(t, repo.DeleteQuestInstance(ctx, 3, 12))

		recs, err := repo.LoadQuestInstances(ctx, 3)
		require.NoError(t, err)
		assert.Empty(t, recs)

		// Повторное сохранение не видит старых флагов
		require.NoError(t, repo.SaveQuestInstance(ctx, quest.InstanceRecord{
			QuestID: 12, CharacterID: 3, Step: 1, StartedAt: started,
		}))
		recs, err = repo.LoadQuestInstances(ctx, 3)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Empty(t, recs[0].Flags)
	})

	t.Run("delete missing is not an error", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.DeleteQuestInstance(context.Background(), 4, 77))
	})

	t.Run("characters are isolated", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		require.NoError(t, repo.SaveQuestInstance(ctx, quest.InstanceRecord{QuestID: 1, CharacterID: 10, Step: 1}))
		require.NoError(t, repo.SaveQuestInstance(ctx, quest.InstanceRecord{QuestID: 1, CharacterID: 11, Step: 2}))

		recs, err := repo.LoadQuestInstances(ctx, 11)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, int64(11), recs[0].CharacterID)
		assert.Equal(t, 2, recs[0].Step)
	})
}

func TestSQLiteQuestRepository(t *testing.T) {
	testRepositoryContract(t, func(t *testing.T) quest.Repository { return newSQLiteRepo(t) })
}

func TestOpenSQLite_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "quests.db")

	first, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	repo := NewSQLiteQuestRepository(first)
	require.NoError(t, repo.SaveQuestInstance(ctx, quest.InstanceRecord{QuestID: 5, CharacterID: 1, Step: 3}))
	require.NoError(t, first.Close())

	// Миграции идемпотентны, данные сохраняются
	second, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	recs, err := NewSQLiteQuestRepository(second).LoadQuestInstances(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 3, recs[0].Step)
}

func TestQuestRepository_Postgres(t *testing.T) {
	pool := testutil.SetupTestDB(t)

	// Один контейнер на все подтесты, таблицы чистятся перед каждым
	testRepositoryContract(t, func(t *testing.T) quest.Repository {
		_, err := pool.Exec(context.Background(), "TRUNCATE quest_instances CASCADE")
		require.NoError(t, err)
		return NewQuestRepository(pool)
	})
}

func TestQuestRepository_SaveAll(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	repo := NewQuestRepository(pool)
	ctx := context.Background()

	recs := []quest.InstanceRecord{
		{QuestID: 1, CharacterID: 1, Step: 1, Flags: map[string]string{"k": "v"}},
		{QuestID: 2, CharacterID: 1, Step: quest.StepFinished, Completions: 1},
		{QuestID: 1, CharacterID: 2, Step: 4},
	}
	require.NoError(t, repo.SaveAll(ctx, recs))
	require.NoError(t, repo.SaveAll(ctx, nil))

	got, err := repo.LoadQuestInstances(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "v", got[0].Flags["k"])

	got, err = repo.LoadQuestInstances(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].Step)
}

func TestRunMigrations_Postgres(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	ctx := context.Background()

	// Повторный прогон ничего не ломает
	require.NoError(t, RunPoolMigrations(ctx, pool))

	var n int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM pg_indexes WHERE indexname = 'idx_quest_instances_active'`).Scan(&n))
	assert.Equal(t, 1, n)
}
