package service

import (
	"context"
	"fmt"
	"strings"

	"tetrio-stats/internal/api"
	"tetrio-stats/internal/constants"
	"tetrio-stats/internal/domain"
	"tetrio-stats/internal/repository"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// PlayerService runs the per-player snapshot pipeline: one profile fetch
// producing a player snapshot and a league snapshot, persisted together.
type PlayerService struct {
	translator   *api.Translator
	playerRepo   *repository.PlayerRepository
	snapshotRepo *repository.SnapshotRepository
	logger       zerolog.Logger

	// Concurrent identical lookups (two dashboard tabs, say) collapse to
	// one pipeline run instead of racing on player creation.
	group singleflight.Group
}

func NewPlayerService(translator *api.Translator, playerRepo *repository.PlayerRepository, snapshotRepo *repository.SnapshotRepository, logger zerolog.Logger) *PlayerService {
	return &PlayerService{
		translator:   translator,
		playerRepo:   playerRepo,
		snapshotRepo: snapshotRepo,
		logger:       logger,
	}
}

type SnapshotResult struct {
	Player *domain.PlayerSnapshot
	League *domain.LeagueSnapshot
}

// CaptureSnapshots fetches and persists a point-in-time capture of the
// user's profile. The user argument may be an id or a username.
func (s *PlayerService) CaptureSnapshots(ctx context.Context, user string) (*SnapshotResult, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	result, err, _ := s.group.Do(strings.ToLower(user), func() (any, error) {
		return s.captureSnapshots(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return result.(*SnapshotResult), nil
}

func (s *PlayerService) captureSnapshots(ctx context.Context, user string) (*SnapshotResult, error) {
	runID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}
	logger := s.logger.With().Str("run_id", runID).Str("user", user).Logger()

	logger.Info().Msg("capturing player snapshots")

	pSnap, tlSnap, err := s.translator.FetchPlayerSnapshots(ctx, user)
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch player snapshots")
		return nil, err
	}

	// All remote work is done before any transaction opens.
	if err := s.playerRepo.CreateIfAbsent(ctx, []string{pSnap.PlayerID}); err != nil {
		logger.Error().Err(err).Msg("failed to ensure player row")
		return nil, err
	}

	if err := s.snapshotRepo.AddSnapshots(ctx,
		[]domain.PlayerSnapshot{*pSnap},
		[]domain.LeagueSnapshot{*tlSnap},
	); err != nil {
		logger.Error().Err(err).Msg("failed to persist snapshots")
		return nil, err
	}

	logger.Info().Str("player_id", pSnap.PlayerID).Msg("player snapshots captured")
	return &SnapshotResult{Player: pSnap, League: tlSnap}, nil
}

// History returns the persisted snapshot series for a player id.
func (s *PlayerService) History(ctx context.Context, playerID string) ([]domain.PlayerSnapshot, []domain.LeagueSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	pSnaps, err := s.snapshotRepo.ListPlayerSnapshots(ctx, playerID)
	if err != nil {
		return nil, nil, err
	}
	tlSnaps, err := s.snapshotRepo.ListLeagueSnapshots(ctx, playerID)
	if err != nil {
		return nil, nil, err
	}
	return pSnaps, tlSnaps, nil
}

// SearchSuggestions returns display names matching the query, for the
// dashboard search box.
func (s *PlayerService) SearchSuggestions(ctx context.Context, query string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	names, err := s.snapshotRepo.SearchUsernames(ctx, query, constants.SearchSuggestionLimit)
	if err != nil {
		s.logger.Error().Err(err).Str("query", query).Msg("failed to search usernames")
		return nil, err
	}

	s.logger.Debug().Int("count", len(names)).Str("query", query).Msg("search completed")
	return names, nil
}
