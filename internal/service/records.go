package service

import (
	"context"
	"fmt"

	"tetrio-stats/internal/api"
	"tetrio-stats/internal/constants"
	"tetrio-stats/internal/domain"
	"tetrio-stats/internal/merge"
	"tetrio-stats/internal/repository"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// RecordsService runs the singleplayer records pipeline: the personal-best
// fetches and the recent-activity fetch overlap on physical games, so the
// candidate sets are reconciled with the merge engine before the store's
// natural-key filter decides what actually gets written.
type RecordsService struct {
	translator *api.Translator
	playerRepo *repository.PlayerRepository
	gameRepo   *repository.GameRepository
	logger     zerolog.Logger
}

func NewRecordsService(translator *api.Translator, playerRepo *repository.PlayerRepository, gameRepo *repository.GameRepository, logger zerolog.Logger) *RecordsService {
	return &RecordsService{
		translator: translator,
		playerRepo: playerRepo,
		gameRepo:   gameRepo,
		logger:     logger,
	}
}

// CaptureRecords fetches a user's singleplayer activity and personal
// bests, reconciles the overlap, and persists only the genuinely new
// games. Re-running an identical capture persists nothing.
func (s *RecordsService) CaptureRecords(ctx context.Context, user string) ([]domain.PlayerGame, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	runID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}
	logger := s.logger.With().Str("run_id", runID).Str("user", user).Logger()

	logger.Info().Msg("capturing singleplayer records")

	best, err := s.translator.FetchBestGames(ctx, user)
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch best games")
		return nil, err
	}

	recent, err := s.translator.FetchRecentGames(ctx, user)
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch recent games")
		return nil, err
	}

	// Record-flagged entries win over recent-activity entries describing
	// the same replay.
	candidates := merge.Games(best, recent)

	newGames, err := s.gameRepo.FilterNew(ctx, candidates)
	if err != nil {
		logger.Error().Err(err).Msg("failed to filter games against store")
		return nil, err
	}
	if len(newGames) == 0 {
		logger.Info().Int("candidates", len(candidates)).Msg("no new singleplayer games")
		return nil, nil
	}

	playerIDs := make([]string, 0, 1)
	seen := make(map[string]struct{})
	for _, g := range newGames {
		if _, ok := seen[g.PlayerID]; !ok {
			seen[g.PlayerID] = struct{}{}
			playerIDs = append(playerIDs, g.PlayerID)
		}
	}
	if err := s.playerRepo.CreateIfAbsent(ctx, playerIDs); err != nil {
		logger.Error().Err(err).Msg("failed to ensure player rows")
		return nil, err
	}

	if err := s.gameRepo.AddBatch(ctx, newGames); err != nil {
		logger.Error().Err(err).Msg("failed to persist games")
		return nil, err
	}

	logger.Info().
		Int("candidates", len(candidates)).
		Int("persisted", len(newGames)).
		Msg("singleplayer records captured")
	return newGames, nil
}

// Games returns a player's persisted singleplayer games, newest first.
func (s *RecordsService) Games(ctx context.Context, playerID string) ([]domain.PlayerGame, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.gameRepo.ListByPlayer(ctx, playerID)
}
