package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tetrio-stats/internal/api"
	"tetrio-stats/internal/config"
	"tetrio-stats/internal/constants"
	"tetrio-stats/internal/domain"
	"tetrio-stats/internal/repository"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// GlobalService runs the full-population sweep pipeline. Sweeps are gated
// per day: a day-truncated timestamp either has a complete sweep in the
// store or none, and there is no per-row dedup within a sweep.
type GlobalService struct {
	translator   *api.Translator
	playerRepo   *repository.PlayerRepository
	snapshotRepo *repository.SnapshotRepository
	dataDir      string
	logger       zerolog.Logger
}

func NewGlobalService(translator *api.Translator, playerRepo *repository.PlayerRepository, snapshotRepo *repository.SnapshotRepository, cfg *config.Config, logger zerolog.Logger) *GlobalService {
	return &GlobalService{
		translator:   translator,
		playerRepo:   playerRepo,
		snapshotRepo: snapshotRepo,
		dataDir:      cfg.GlobalDataDir,
		logger:       logger,
	}
}

// CaptureLive takes a full-population capture for today. If the store
// already holds a global sweep for today's day-truncated timestamp, the
// capture is skipped as a unit and no remote call is issued. The raw dump
// is archived to the data directory for later replay.
func (s *GlobalService) CaptureLive(ctx context.Context) ([]domain.LeagueSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	runID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}
	logger := s.logger.With().Str("run_id", runID).Logger()

	ts := TruncateToDay(time.Now().UTC())

	captured, err := s.HasCapture(ctx, ts)
	if err != nil {
		return nil, err
	}
	if captured {
		logger.Error().Time("ts", ts).Msg("global data for today already exists, returning an empty list")
		return nil, nil
	}

	dump, raw, err := s.translator.FetchGlobalLive(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch global dump")
		return nil, err
	}

	s.archiveDump(logger, raw, ts)

	snapshots, err := s.ingest(ctx, logger, dump, ts)
	if err != nil {
		return nil, err
	}

	logger.Info().Time("ts", ts).Int("count", len(snapshots)).Msg("global sweep captured")
	return snapshots, nil
}

// IngestDump persists a pre-fetched full-population payload under a preset
// timestamp. Callers are responsible for gating on HasCapture first.
func (s *GlobalService) IngestDump(ctx context.Context, dump *api.GlobalDumpResponse, ts time.Time) ([]domain.LeagueSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()
	return s.ingest(ctx, s.logger, dump, ts)
}

// HasCapture reports whether a global sweep already exists at the exact
// timestamp ts.
func (s *GlobalService) HasCapture(ctx context.Context, ts time.Time) (bool, error) {
	existing, err := s.snapshotRepo.ListGlobalTimestamps(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range existing {
		if t.UTC().Equal(ts) {
			return true, nil
		}
	}
	return false, nil
}

// Timestamps lists the sweep timestamps in the store, newest first.
func (s *GlobalService) Timestamps(ctx context.Context) ([]time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.snapshotRepo.ListGlobalTimestamps(ctx)
}

func (s *GlobalService) ingest(ctx context.Context, logger zerolog.Logger, dump *api.GlobalDumpResponse, ts time.Time) ([]domain.LeagueSnapshot, error) {
	snapshots := api.ParseGlobalSnapshot(dump, ts)
	if len(snapshots) == 0 {
		return nil, nil
	}

	playerIDs := make([]string, len(snapshots))
	for i, snap := range snapshots {
		playerIDs[i] = snap.PlayerID
	}
	if err := s.playerRepo.CreateIfAbsent(ctx, playerIDs); err != nil {
		logger.Error().Err(err).Msg("failed to ensure player rows")
		return nil, err
	}

	if err := s.snapshotRepo.AddSnapshots(ctx, nil, snapshots); err != nil {
		logger.Error().Err(err).Msg("failed to persist global snapshots")
		return nil, err
	}

	return snapshots, nil
}

// archiveDump saves the raw response body for later replay. An archive
// failure is logged but does not fail the sweep; the data is already in
// hand.
func (s *GlobalService) archiveDump(logger zerolog.Logger, raw []byte, ts time.Time) {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		logger.Warn().Err(err).Str("dir", s.dataDir).Msg("failed to create global data dir")
		return
	}

	name := ts.Format(constants.GlobalDumpPattern)
	target := filepath.Join(s.dataDir, name)
	if err := os.WriteFile(target, raw, 0o644); err != nil {
		logger.Warn().Err(err).Str("path", target).Msg("failed to archive global dump")
		return
	}
	logger.Info().Str("path", target).Msg("archived global dump")
}

// TruncateToDay strips the time of day and timezone from ts, which is how
// sweep timestamps are keyed.
func TruncateToDay(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}
