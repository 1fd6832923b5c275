package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tetrio-stats/internal/constants"
	"tetrio-stats/internal/domain"

	"github.com/rs/zerolog"
)

type PlayerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPlayerRepository(sqlDB *sql.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{db: sqlDB, logger: logger}
}

// Get returns the player row for id, or nil if none exists.
func (r *PlayerRepository) Get(ctx context.Context, id string) (*domain.Player, error) {
	var player domain.Player
	var joinDate sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, join_date FROM player WHERE id = ?`, id,
	).Scan(&player.ID, &joinDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player %s: %w", id, err)
	}

	if joinDate.Valid {
		t := joinDate.Time
		player.JoinDate = &t
	}
	return &player, nil
}

// CreateIfAbsent batch-creates player rows for every id not already
// present. INSERT OR IGNORE makes concurrent invocations racing on the
// same id converge on a single row instead of failing on the key.
func (r *PlayerRepository) CreateIfAbsent(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := 0; i < len(unique); i += constants.DBBatchSize {
		end := i + constants.DBBatchSize
		if end > len(unique) {
			end = len(unique)
		}

		for _, id := range unique[i:end] {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO player (id) VALUES (?)`, id,
			); err != nil {
				return fmt.Errorf("failed to create player %s: %w", id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit players: %w", err)
	}

	r.logger.Debug().Int("count", len(unique)).Msg("ensured player rows")
	return nil
}
