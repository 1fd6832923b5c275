package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tetrio-stats/internal/constants"
	"tetrio-stats/internal/domain"

	"github.com/rs/zerolog"
)

type SnapshotRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSnapshotRepository(sqlDB *sql.DB, logger zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{db: sqlDB, logger: logger}
}

// AddSnapshots inserts a batch of player and league snapshots in a single
// transaction. Snapshots are append-only; nothing here updates a row.
func (r *SnapshotRepository) AddSnapshots(ctx context.Context, pSnaps []domain.PlayerSnapshot, tlSnaps []domain.LeagueSnapshot) error {
	if len(pSnaps) == 0 && len(tlSnaps) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, snap := range pSnaps {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO player_snapshot
				(ts, username, xp, games_played, games_won, game_time, friend_count, player_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.TS, snap.Username, snap.XP, snap.GamesPlayed, snap.GamesWon,
			snap.GameTime, snap.FriendCount, snap.PlayerID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert player snapshot for %s: %w", snap.PlayerID, err)
		}
	}

	for i := 0; i < len(tlSnaps); i += constants.DBBatchSize {
		end := i + constants.DBBatchSize
		if end > len(tlSnaps) {
			end = len(tlSnaps)
		}

		for _, snap := range tlSnaps[i:end] {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO tl_snapshot
					(ts, username, is_global, tl_games_played, tl_games_won, rating, rank,
					 standing, glicko, rd, apm, pps, vs, decaying, player_id)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				snap.TS, snap.Username, snap.IsGlobal, snap.TLGamesPlayed, snap.TLGamesWon,
				nullFloat(snap.Rating), snap.Rank, snap.Standing,
				nullFloat(snap.Glicko), nullFloat(snap.RD), nullFloat(snap.APM),
				nullFloat(snap.PPS), nullFloat(snap.VS), snap.Decaying, snap.PlayerID,
			)
			if err != nil {
				return fmt.Errorf("failed to insert league snapshot for %s: %w", snap.PlayerID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshots: %w", err)
	}

	r.logger.Debug().
		Int("player_snapshots", len(pSnaps)).
		Int("league_snapshots", len(tlSnaps)).
		Msg("snapshots persisted")
	return nil
}

// ListGlobalTimestamps returns every distinct timestamp carried by a
// global league snapshot, newest first. Used as the coarse dedup gate for
// full-population sweeps: a day either has a complete sweep or none.
func (r *SnapshotRepository) ListGlobalTimestamps(ctx context.Context) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT ts FROM tl_snapshot WHERE is_global ORDER BY ts DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list global timestamps: %w", err)
	}
	defer rows.Close()

	var timestamps []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("failed to scan global timestamp: %w", err)
		}
		timestamps = append(timestamps, ts)
	}
	return timestamps, rows.Err()
}

// ListPlayerSnapshots returns all non-ranked snapshots for a player,
// oldest first.
func (r *SnapshotRepository) ListPlayerSnapshots(ctx context.Context, playerID string) ([]domain.PlayerSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, ts, username, xp, games_played, games_won, game_time, friend_count, player_id
		 FROM player_snapshot WHERE player_id = ? ORDER BY ts`, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list player snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.PlayerSnapshot
	for rows.Next() {
		var s domain.PlayerSnapshot
		if err := rows.Scan(&s.ID, &s.TS, &s.Username, &s.XP, &s.GamesPlayed,
			&s.GamesWon, &s.GameTime, &s.FriendCount, &s.PlayerID); err != nil {
			return nil, fmt.Errorf("failed to scan player snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// ListLeagueSnapshots returns the ranked snapshots for a player, oldest
// first. Global sweep rows are included; callers filter on IsGlobal when
// they need only one kind.
func (r *SnapshotRepository) ListLeagueSnapshots(ctx context.Context, playerID string) ([]domain.LeagueSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, ts, username, is_global, tl_games_played, tl_games_won, rating, rank,
		        standing, glicko, rd, apm, pps, vs, decaying, player_id
		 FROM tl_snapshot WHERE player_id = ? ORDER BY ts`, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list league snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.LeagueSnapshot
	for rows.Next() {
		s, err := scanLeagueSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// SearchUsernames returns distinct display names matching the query,
// drawn from historical snapshots so renamed players remain findable
// under old names.
func (r *SnapshotRepository) SearchUsernames(ctx context.Context, query string, limit int) ([]string, error) {
	pattern := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT username FROM player_snapshot
		 WHERE username LIKE ? ORDER BY username LIMIT ?`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search usernames: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan username: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// FindPlayerIDByUsername maps a historical display name to a player id
// using the most recent snapshot that carried it.
func (r *SnapshotRepository) FindPlayerIDByUsername(ctx context.Context, username string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT player_id FROM player_snapshot
		 WHERE username = ? ORDER BY ts DESC LIMIT 1`, username,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find player by username: %w", err)
	}
	return id, nil
}

func scanLeagueSnapshot(rows *sql.Rows) (domain.LeagueSnapshot, error) {
	var s domain.LeagueSnapshot
	var rating, glicko, rd, apm, pps, vs sql.NullFloat64

	if err := rows.Scan(&s.ID, &s.TS, &s.Username, &s.IsGlobal, &s.TLGamesPlayed,
		&s.TLGamesWon, &rating, &s.Rank, &s.Standing, &glicko, &rd, &apm, &pps,
		&vs, &s.Decaying, &s.PlayerID); err != nil {
		return s, fmt.Errorf("failed to scan league snapshot: %w", err)
	}

	s.Rating = floatPtr(rating)
	s.Glicko = floatPtr(glicko)
	s.RD = floatPtr(rd)
	s.APM = floatPtr(apm)
	s.PPS = floatPtr(pps)
	s.VS = floatPtr(vs)
	return s, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
