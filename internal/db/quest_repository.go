package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/realmquest/internal/game/quest"
)

// QuestRepository stores quest instances in PostgreSQL.
// Implements quest.Repository.
type QuestRepository struct {
	db *pgxpool.Pool
}

var _ quest.Repository = (*QuestRepository)(nil)

// NewQuestRepository creates a new QuestRepository.
func NewQuestRepository(db *pgxpool.Pool) *QuestRepository {
	return &QuestRepository{db: db}
}

// LoadQuestInstances loads every quest instance of a character with its flags.
func (r *QuestRepository) LoadQuestInstances(ctx context.Context, charID int64) ([]quest.InstanceRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT quest_id, step, completions, started_at, updated_at
		FROM quest_instances
		WHERE character_id = $1
		ORDER BY quest_id
	`, charID)
	if err != nil {
		return nil, fmt.Errorf("querying quests for character %d: %w", charID, err)
	}
	defer rows.Close()

	recs := make([]quest.InstanceRecord, 0, 16)
	index := make(map[int32]int, 16)
	for rows.Next() {
		rec := quest.InstanceRecord{CharacterID: charID}
		var started *time.Time
		if err := rows.Scan(&rec.QuestID, &rec.Step, &rec.Completions, &started, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning quest instance row: %w", err)
		}
		if started != nil {
			rec.StartedAt = *started
		}
		index[rec.QuestID] = len(recs)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating quest instance rows: %w", err)
	}

	flagRows, err := r.db.Query(ctx, `
		SELECT quest_id, flag, value
		FROM quest_flags
		WHERE character_id = $1
	`, charID)
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
func (r *QuestRepository) SaveQuestInstance(ctx context.Context, rec quest.InstanceRecord) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("rollback failed", "characterID", rec.CharacterID, "questID", rec.QuestID, "error", err)
		}
	}()

	if err := r.SaveQuestInstanceTx(ctx, tx, rec); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// SaveQuestInstanceTx saves one instance within an existing transaction.
func (r *QuestRepository) SaveQuestInstanceTx(ctx context.Context, tx pgx.Tx, rec quest.InstanceRecord) error {
	var started *time.Time
	if !rec.StartedAt.IsZero() {
		started = &rec.StartedAt
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO quest_instances (character_id, quest_id, step, completions, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (character_id, quest_id) DO UPDATE SET
			step = EXCLUDED.step,
			completions = EXCLUDED.completions,
			started_at = EXCLUDED.started_at,
			updated_at = EXCLUDED.updated_at
	`, rec.CharacterID, rec.QuestID, rec.Step, rec.Completions, started, updated); err != nil {
		return fmt.Errorf("upserting quest %d for character %d: %w", rec.QuestID, rec.CharacterID, err)
	}

	// Флаги перезаписываются целиком
	if _, err := tx.Exec(ctx,
		`DELETE FROM quest_flags WHERE character_id = $1 AND quest_id = $2`,
		rec.CharacterID, rec.QuestID,
	); err != nil {
		return fmt.Errorf("deleting old flags for character %d quest %d: %w", rec.CharacterID, rec.QuestID, err)
	}

	if len(rec.Flags) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(rec.Flags))
	for k, v := range rec.Flags {
		rows = append(rows, []any{rec.CharacterID, rec.QuestID, k, v})
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"quest_flags"},
		[]string{"character_id", "quest_id", "flag", "value"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("inserting flags for character %d quest %d: %w", rec.CharacterID, rec.QuestID, err)
	}

	return nil
}

// DeleteQuestInstance removes an instance; its flags cascade.
func (r *QuestRepository) DeleteQuestInstance(ctx context.Context, charID int64, questID int32) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM quest_instances WHERE character_id = $1 AND quest_id = $2`,
		charID, questID,
	)
	if err != nil {
		return fmt.Errorf("deleting quest %d for character %d: %w", questID, charID, err)
	}
	return nil
}

// SaveAll saves several instances of one or more characters in one transaction.
func (r *QuestRepository) SaveAll(ctx context.Context, recs []quest.InstanceRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("rollback failed", "records", len(recs), "error", err)
		}
	}()

	for _, rec := range recs {
		if err := r.SaveQuestInstanceTx(ctx, tx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.Debug("saved quest instances", "count", len(recs))
	return nil
}
