package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"tetrio-stats/internal/domain"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type MatchRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewMatchRepository(sqlDB *sql.DB, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{db: sqlDB, logger: logger}
}

// FilterNew returns only the candidate matches whose replay id is not
// already persisted, preserving candidate order.
func (r *MatchRepository) FilterNew(ctx context.Context, candidates []domain.LeagueMatch) ([]domain.LeagueMatch, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, len(candidates))
	for i, m := range candidates {
		ids[i] = m.ReplayID
	}

	existing, err := existingReplayIDs(ctx, r.db, "tl_match", ids)
	if err != nil {
		return nil, err
	}

	var remaining []domain.LeagueMatch
	for _, m := range candidates {
		if _, ok := existing[m.ReplayID]; !ok {
			remaining = append(remaining, m)
		}
	}

	r.logger.Debug().
		Int("candidates", len(candidates)).
		Int("kept", len(remaining)).
		Msg("filtered league matches against store")
	return remaining, nil
}

// AddBatch inserts matches with their participants and rounds in one
// all-or-nothing transaction.
func (r *MatchRepository) AddBatch(ctx context.Context, matches []domain.LeagueMatch) error {
	if len(matches) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range matches {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tl_match (replay_id, ts) VALUES (?, ?)`, m.ReplayID, m.TS,
		); err != nil {
			return fmt.Errorf("failed to insert match %s: %w", m.ReplayID, err)
		}

		for _, p := range m.Players {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO tl_match_player
					(winner, points, arr, das, dcd, sdf, safelock, cancel, username, tl_match_id, player_id)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.Winner, p.Points,
				p.ARR.String(), p.DAS.String(), p.DCD.String(), p.SDF.String(),
				p.Safelock, p.Cancel, p.Username, m.ReplayID, p.PlayerID,
			)
			if err != nil {
				return fmt.Errorf("failed to insert match player %s/%s: %w", m.ReplayID, p.PlayerID, err)
			}

			matchPlayerID, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get match player id: %w", err)
			}

			for _, round := range p.Rounds {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO tl_round
						(round_idx, apm, pps, vs, player_id, tl_match_player_id)
					 VALUES (?, ?, ?, ?, ?, ?)`,
					round.RoundIdx, nullFloat(round.APM), nullFloat(round.PPS),
					nullFloat(round.VS), round.PlayerID, matchPlayerID,
				); err != nil {
					return fmt.Errorf("failed to insert round %d of %s: %w", round.RoundIdx, m.ReplayID, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit matches: %w", err)
	}

	r.logger.Debug().Int("count", len(matches)).Msg("league matches persisted")
	return nil
}

// ListByPlayer returns every match a player participated in, newest first,
// with all participants and their rounds attached.
func (r *MatchRepository) ListByPlayer(ctx context.Context, playerID string) ([]domain.LeagueMatch, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.replay_id, m.ts
		 FROM tl_match m
		 JOIN tl_match_player mp ON mp.tl_match_id = m.replay_id
		 WHERE mp.player_id = ?
		 ORDER BY m.ts DESC`, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var matches []domain.LeagueMatch
	matchIdx := make(map[string]int)
	for rows.Next() {
		var m domain.LeagueMatch
		if err := rows.Scan(&m.ReplayID, &m.TS); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matchIdx[m.ReplayID] = len(matches)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return matches, nil
	}

	matchIDs := make([]string, len(matches))
	for i, m := range matches {
		matchIDs[i] = m.ReplayID
	}

	players, playerIdx, err := r.loadMatchPlayers(ctx, matchIDs)
	if err != nil {
		return nil, err
	}
	if err := r.loadRounds(ctx, players, playerIdx); err != nil {
		return nil, err
	}

	for _, p := range players {
		idx := matchIdx[p.MatchID]
		matches[idx].Players = append(matches[idx].Players, *p)
	}

	return matches, nil
}

func (r *MatchRepository) loadMatchPlayers(ctx context.Context, matchIDs []string) ([]*domain.LeagueMatchPlayer, map[int64]*domain.LeagueMatchPlayer, error) {
	placeholders := strings.Repeat("?,", len(matchIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(matchIDs))
	for i, id := range matchIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, winner, points, arr, das, dcd, sdf, safelock, cancel, username, tl_match_id, player_id
		 FROM tl_match_player WHERE tl_match_id IN (%s) ORDER BY id`, placeholders), args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list match players: %w", err)
	}
	defer rows.Close()

	var players []*domain.LeagueMatchPlayer
	byID := make(map[int64]*domain.LeagueMatchPlayer)
	for rows.Next() {
		var p domain.LeagueMatchPlayer
		var arr, das, dcd, sdf string
		if err := rows.Scan(&p.ID, &p.Winner, &p.Points, &arr, &das, &dcd, &sdf,
			&p.Safelock, &p.Cancel, &p.Username, &p.MatchID, &p.PlayerID); err != nil {
			return nil, nil, fmt.Errorf("failed to scan match player: %w", err)
		}

		if p.ARR, err = decimal.NewFromString(arr); err != nil {
			return nil, nil, fmt.Errorf("failed to parse arr: %w", err)
		}
		if p.DAS, err = decimal.NewFromString(das); err != nil {
			return nil, nil, fmt.Errorf("failed to parse das: %w", err)
		}
		if p.DCD, err = decimal.NewFromString(dcd); err != nil {
			return nil, nil, fmt.Errorf("failed to parse dcd: %w", err)
		}
		if p.SDF, err = decimal.NewFromString(sdf); err != nil {
			return nil, nil, fmt.Errorf("failed to parse sdf: %w", err)
		}

		players = append(players, &p)
		byID[p.ID] = &p
	}
	return players, byID, rows.Err()
}

func (r *MatchRepository) loadRounds(ctx context.Context, players []*domain.LeagueMatchPlayer, byID map[int64]*domain.LeagueMatchPlayer) error {
	if len(players) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(players))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(players))
	for i, p := range players {
		args[i] = p.ID
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, round_idx, apm, pps, vs, player_id, tl_match_player_id
		 FROM tl_round WHERE tl_match_player_id IN (%s) ORDER BY round_idx`, placeholders), args...)
	if err != nil {
		return fmt.Errorf("failed to list rounds: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var round domain.LeagueRound
		var apm, pps, vs sql.NullFloat64
		if err := rows.Scan(&round.ID, &round.RoundIdx, &apm, &pps, &vs,
			&round.PlayerID, &round.MatchPlayerID); err != nil {
			return fmt.Errorf("failed to scan round: %w", err)
		}
		round.APM = floatPtr(apm)
		round.PPS = floatPtr(pps)
		round.VS = floatPtr(vs)

		if p, ok := byID[round.MatchPlayerID]; ok {
			p.Rounds = append(p.Rounds, round)
		}
	}
	return rows.Err()
}
