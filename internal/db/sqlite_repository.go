package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/udisondev/realmquest/internal/game/quest"
)

// OpenSQLite opens (creating if needed) a SQLite database file and migrates it.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// modernc держит pragma на соединение, поэтому одно соединение
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := RunSQLiteMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	slog.Info("sqlite database ready", "path", path)
	return sqlDB, nil
}

// SQLiteQuestRepository stores quest instances in SQLite.
// Timestamps are unix milliseconds; a NULL started_at means not started.
type SQLiteQuestRepository struct {
	db *sql.DB
}

var _ quest.Repository = (*SQLiteQuestRepository)(nil)

// NewSQLiteQuestRepository creates a new SQLiteQuestRepository.
func NewSQLiteQuestRepository(db *sql.DB) *SQLiteQuestRepository {
	return &SQLiteQuestRepository{db: db}
}

// LoadQuestInstances loads every quest instance of a character with its flags.
func (r *SQLiteQuestRepository) LoadQuestInstances(ctx context.Context, charID int64) ([]quest.InstanceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT quest_id, step, completions, started_at, updated_at
		FROM quest_instances
		WHERE character_id = ?
		ORDER BY quest_id
	`, charID)
	if err != nil {
		return nil, fmt.Errorf("querying quests for character %d: %w", charID, err)
	}
	defer rows.Close()

	var recs []quest.InstanceRecord
	index := make(map[int32]int, 16)
	for rows.Next() {
		rec := quest.InstanceRecord{CharacterID: charID}
		var (
			started sql.NullInt64
			updated int64
		)
		if err := rows.Scan(&rec.QuestID, &rec.Step, &rec.Completions, &started, &updated); err != nil {
			return nil, fmt.Errorf("scanning quest instance row: %w", err)
		}
		if started.Valid {
			rec.StartedAt = time.UnixMilli(started.Int64)
		}
		rec.UpdatedAt = time.UnixMilli(updated)
		index[rec.QuestID] = len(recs)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating quest instance rows: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}

	flagRows, err := r.db.QueryContext(ctx,
		`SELECT quest_id, flag, value FROM quest_flags WHERE character_id = ?`, charID)
	if err != nil {
		return nil, fmt.Errorf("querying quest flags for character %d: %w", charID, err)
	}
	defer flagRows.Close()

	for flagRows.Next() {
		var (
			questID     int32
			flag, value string
		)
		if err := flagRows.Scan(&questID, &flag, &value); err != nil {
			return nil, fmt.Errorf("scanning quest flag row: %w", err)
		}
		i, ok := index[questID]
		if !ok {
			continue
		}
		if recs[i].Flags == nil {
			recs[i].Flags = make(map[string]string, 4)
		}
		recs[i].Flags[flag] = value
	}
	if err := flagRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating quest flag rows: %w", err)
	}

	return recs, nil
}

// SaveQuestInstance upserts one instance and replaces its flags atomically.
func (r *SQLiteQuestRepository) SaveQuestInstance(ctx context.Context, rec quest.InstanceRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("rollback failed", "characterID", rec.CharacterID, "questID", rec.QuestID, "error", err)
		}
	}()

	var started sql.NullInt64
	if !rec.StartedAt.IsZero() {
		started = sql.NullInt64{Int64: rec.StartedAt.UnixMilli(), Valid: true}
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO quest_instances (character_id, quest_id, step, completions, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (character_id, quest_id) DO UPDATE SET
			step = excluded.step,
			completions = excluded.completions,
			started_at = excluded.started_at,
			updated_at = excluded.updated_at
	`, rec.CharacterID, rec.QuestID, rec.Step, rec.Completions, started, updated.UnixMilli()); err != nil {
		return fmt.Errorf("upserting quest %d for character %d: %w", rec.QuestID, rec.CharacterID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM quest_flags WHERE character_id = ? AND quest_id = ?`,
		rec.CharacterID, rec.QuestID,
	); err != nil {
		return fmt.Errorf("deleting old flags for character %d quest %d: %w", rec.CharacterID, rec.QuestID, err)
	}

	if len(rec.Flags) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO quest_flags (character_id, quest_id, flag, value) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing flag insert: %w", err)
		}
		defer stmt.Close()

		for k, v := range rec.Flags {
			if _, err := stmt.ExecContext(ctx, rec.CharacterID, rec.QuestID, k, v); err != nil {
				return fmt.Errorf("inserting flag %q for character %d quest %d: %w", k, rec.CharacterID, rec.QuestID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DeleteQuestInstance removes an instance; its flags cascade.
func (r *SQLiteQuestRepository) DeleteQuestInstance(ctx context.Context, charID int64, questID int32) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM quest_instances WHERE character_id = ? AND quest_id = ?`,
		charID, questID,
	); err != nil {
		return fmt.Errorf("deleting quest %d for character %d: %w", questID, charID, err)
	}
	return nil
}
