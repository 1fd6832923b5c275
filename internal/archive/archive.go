// Package archive rebuilds historical global state from a directory of
// dump files written by earlier sweeps.
package archive

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"tetrio-stats/internal/api"
	"tetrio-stats/internal/config"
	"tetrio-stats/internal/constants"
	"tetrio-stats/internal/service"

	"github.com/rs/zerolog"
)

// Replayer replays archived full-population dumps through the same
// translation and dedup gating as a live sweep.
type Replayer struct {
	global  *service.GlobalService
	dataDir string
	logger  zerolog.Logger
}

func NewReplayer(global *service.GlobalService, cfg *config.Config, logger zerolog.Logger) *Replayer {
	return &Replayer{
		global:  global,
		dataDir: cfg.GlobalDataDir,
		logger:  logger,
	}
}

// Replay ingests every archived dump whose capture date is not yet in the
// store. The date comes from the filename, never the file content. Files
// that are not regular, do not match the naming pattern, or fail to parse
// are skipped with a log line; a malformed archive never aborts the
// replay. Returns the number of snapshots ingested.
func (r *Replayer) Replay(ctx context.Context) (int, error) {
	r.logger.Debug().Str("dir", r.dataDir).Msg("replaying archived global dumps")

	entries, err := os.ReadDir(r.dataDir)
	if os.IsNotExist(err) {
		r.logger.Debug().Str("dir", r.dataDir).Msg("no archive directory, nothing to replay")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	total := 0
	for _, entry := range entries {
		path := filepath.Join(r.dataDir, entry.Name())

		if !entry.Type().IsRegular() {
			r.logger.Debug().Str("path", path).Msg("skipping, not a regular file")
			continue
		}

		ts, err := time.Parse(constants.GlobalDumpPattern, entry.Name())
		if err != nil {
			r.logger.Debug().Str("path", path).Msg("skipping, does not match required format")
			continue
		}

		captured, err := r.global.HasCapture(ctx, ts)
		if err != nil {
			return total, err
		}
		if captured {
			r.logger.Debug().Str("path", path).Msg("skipping, timestamp already exists in store")
			continue
		}

		n, err := r.replayFile(ctx, path, ts)
		if err != nil {
			return total, err
		}
		total += n
	}

	r.logger.Info().Int("snapshots", total).Msg("archive replay complete")
	return total, nil
}

func (r *Replayer) replayFile(ctx context.Context, path string, ts time.Time) (int, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		r.logger.Warn().Err(err).Str("path", path).Msg("skipping, unreadable file")
		return 0, nil
	}

	var dump api.GlobalDumpResponse
	if err := json.Unmarshal(body, &dump); err != nil {
		r.logger.Warn().Err(err).Str("path", path).Msg("skipping, malformed dump")
		return 0, nil
	}

	r.logger.Info().Str("path", path).Time("ts", ts).Msg("importing archived dump")

	snapshots, err := r.global.IngestDump(ctx, &dump, ts)
	if err != nil {
		return 0, err
	}
	return len(snapshots), nil
}
