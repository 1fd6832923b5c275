package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"tetrio-stats/internal/constants"
	"tetrio-stats/internal/domain"

	"github.com/rs/zerolog"
)

type GameRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewGameRepository(sqlDB *sql.DB, logger zerolog.Logger) *GameRepository {
	return &GameRepository{db: sqlDB, logger: logger}
}

// FilterNew returns only the candidates whose replay id is not already
// persisted, preserving candidate order. The difference is taken on the
// natural key alone: a candidate sharing a replay id with an existing row
// is a duplicate no matter what else differs, and the existing row wins.
func (r *GameRepository) FilterNew(ctx context.Context, candidates []domain.PlayerGame) ([]domain.PlayerGame, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, len(candidates))
	for i, g := range candidates {
		ids[i] = g.ReplayID
	}

	existing, err := existingReplayIDs(ctx, r.db, "player_game", ids)
	if err != nil {
		return nil, err
	}

	var remaining []domain.PlayerGame
	for _, g := range candidates {
		if _, ok := existing[g.ReplayID]; !ok {
			remaining = append(remaining, g)
		}
	}

	r.logger.Debug().
		Int("candidates", len(candidates)).
		Int("kept", len(remaining)).
		Msg("filtered singleplayer games against store")
	return remaining, nil
}

// AddBatch inserts games in one all-or-nothing transaction.
func (r *GameRepository) AddBatch(ctx context.Context, games []domain.PlayerGame) error {
	if len(games) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := 0; i < len(games); i += constants.DBBatchSize {
		end := i + constants.DBBatchSize
		if end > len(games) {
			end = len(games)
		}

		for _, g := range games[i:end] {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO player_game
					(gamemode, replay_id, ts, value, rank, is_record, player_id)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				g.Gamemode, g.ReplayID, g.TS, g.Value, nullInt(g.Rank), g.IsRecord, g.PlayerID,
			)
			if err != nil {
				return fmt.Errorf("failed to insert game %s: %w", g.ReplayID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit games: %w", err)
	}

	r.logger.Debug().Int("count", len(games)).Msg("singleplayer games persisted")
	return nil
}

// ListByPlayer returns a player's games, newest first.
func (r *GameRepository) ListByPlayer(ctx context.Context, playerID string) ([]domain.PlayerGame, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, gamemode, replay_id, ts, value, rank, is_record, player_id
		 FROM player_game WHERE player_id = ? ORDER BY ts DESC`, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []domain.PlayerGame
	for rows.Next() {
		var g domain.PlayerGame
		var rank sql.NullInt64
		if err := rows.Scan(&g.ID, &g.Gamemode, &g.ReplayID, &g.TS, &g.Value,
			&rank, &g.IsRecord, &g.PlayerID); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		g.Rank = intPtr(rank)
		games = append(games, g)
	}
	return games, rows.Err()
}

// existingReplayIDs queries which of the candidate natural keys are
// already present in table. Chunked to stay clear of the sqlite variable
// limit.
func existingReplayIDs(ctx context.Context, db *sql.DB, table string, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})

	for i := 0; i < len(ids); i += constants.DBBatchSize {
		end := i + constants.DBBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[i:end]

		placeholders := strings.Repeat("?,", len(chunk))
		placeholders = placeholders[:len(placeholders)-1]

		args := make([]any, len(chunk))
		for j, id := range chunk {
			args[j] = id
		}

		query := fmt.Sprintf(
			`SELECT replay_id FROM %s WHERE replay_id IN (%s)`, table, placeholders)
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query existing replay ids: %w", err)
		}

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan replay id: %w", err)
			}
			existing[id] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return existing, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
