package service

import (
	"context"
	"fmt"

	"tetrio-stats/internal/api"
	"tetrio-stats/internal/constants"
	"tetrio-stats/internal/domain"
	"tetrio-stats/internal/repository"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// MatchService runs the ranked-match pipeline.
type MatchService struct {
	translator *api.Translator
	playerRepo *repository.PlayerRepository
	matchRepo  *repository.MatchRepository
	logger     zerolog.Logger
}

func NewMatchService(translator *api.Translator, playerRepo *repository.PlayerRepository, matchRepo *repository.MatchRepository, logger zerolog.Logger) *MatchService {
	return &MatchService{
		translator: translator,
		playerRepo: playerRepo,
		matchRepo:  matchRepo,
		logger:     logger,
	}
}

// CaptureMatches fetches a user's recent ranked matches and persists the
// ones not yet in the store, participants and rounds included.
func (s *MatchService) CaptureMatches(ctx context.Context, user string) ([]domain.LeagueMatch, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	runID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}
	logger := s.logger.With().Str("run_id", runID).Str("user", user).Logger()

	logger.Info().Msg("capturing league matches")

	matches, err := s.translator.FetchRecentMatches(ctx, user)
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch recent matches")
		return nil, err
	}

	newMatches, err := s.matchRepo.FilterNew(ctx, matches)
	if err != nil {
		logger.Error().Err(err).Msg("failed to filter matches against store")
		return nil, err
	}
	if len(newMatches) == 0 {
		logger.Info().Int("candidates", len(matches)).Msg("no new league matches")
		return nil, nil
	}

	// Every participant referenced by a surviving match needs an identity
	// row before the children can point at it.
	var playerIDs []string
	seen := make(map[string]struct{})
	for _, m := range newMatches {
		for _, p := range m.Players {
			if _, ok := seen[p.PlayerID]; !ok {
				seen[p.PlayerID] = struct{}{}
				playerIDs = append(playerIDs, p.PlayerID)
			}
		}
	}
	if err := s.playerRepo.CreateIfAbsent(ctx, playerIDs); err != nil {
		logger.Error().Err(err).Msg("failed to ensure player rows")
		return nil, err
	}

	if err := s.matchRepo.AddBatch(ctx, newMatches); err != nil {
		logger.Error().Err(err).Msg("failed to persist matches")
		return nil, err
	}

	logger.Info().
		Int("candidates", len(matches)).
		Int("persisted", len(newMatches)).
		Msg("league matches captured")
	return newMatches, nil
}

// Matches returns a player's persisted matches, newest first.
func (s *MatchService) Matches(ctx context.Context, playerID string) ([]domain.LeagueMatch, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.matchRepo.ListByPlayer(ctx, playerID)
}
