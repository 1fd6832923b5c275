package service

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tetrio-stats/internal/api"
	"tetrio-stats/internal/config"
	"tetrio-stats/internal/database"
	"tetrio-stats/internal/domain"
	"tetrio-stats/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPlayerID  = "5e32fc85ab319c2ab1beb07c"
	rivalPlayerID = "60c7a1b2c3d4e5f6a7b8c9d0"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db, zerolog.Nop()))
	return db
}

func newTestTranslator(t *testing.T, handler http.Handler) *api.Translator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := api.NewTetrioClient(&config.Config{APIBaseURL: srv.URL})
	return api.NewTranslator(client, zerolog.Nop())
}

// The recent stream and the records endpoint both describe sprint replay
// e1; the record-flagged version must be the one persisted.
func recordsHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/" + testPlayerID + "/records":
			w.Write([]byte(`{
				"success": true,
				"data": {"records": {
					"40l": {"record": {"replayid": "eeeeeeeeeeeeeeeeeeeeeee1",
						"ts": "2023-11-14T12:32:11.000Z",
						"endcontext": {"gametype": "40l", "finalTime": 34222.077, "score": 0}},
						"rank": 137},
					"blitz": {"record": null, "rank": null}
				}}
			}`))
		case "/streams/blitz_userbest_" + testPlayerID,
			"/streams/40l_userbest_" + testPlayerID:
			w.Write([]byte(`{"success": true, "data": {"records": []}}`))
		case "/streams/any_userrecent_" + testPlayerID:
			w.Write([]byte(`{
				"success": true,
				"data": {"records": [
					{"replayid": "eeeeeeeeeeeeeeeeeeeeeee1", "ts": "2023-11-14T12:32:11.000Z",
					 "endcontext": {"gametype": "40l", "finalTime": 34222.077, "score": 0}},
					{"replayid": "eeeeeeeeeeeeeeeeeeeeeee2", "ts": "2023-11-14T13:00:00.000Z",
					 "endcontext": {"gametype": "blitz", "finalTime": 0, "score": 512000}}
				]}
			}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})
}

func TestCaptureRecordsPipeline(t *testing.T) {
	db := newTestDB(t)
	logger := zerolog.Nop()
	translator := newTestTranslator(t, recordsHandler(t))
	playerRepo := repository.NewPlayerRepository(db, logger)
	gameRepo := repository.NewGameRepository(db, logger)
	svc := NewRecordsService(translator, playerRepo, gameRepo, logger)
	ctx := context.Background()

	persisted, err := svc.CaptureRecords(ctx, testPlayerID)
	require.NoError(t, err)
	require.Len(t, persisted, 2)

	games, err := svc.Games(ctx, testPlayerID)
	require.NoError(t, err)
	require.Len(t, games, 2)
	for _, g := range games {
		switch g.ReplayID {
		case "eeeeeeeeeeeeeeeeeeeeeee1":
			// The record-flagged version won over the recent-stream one.
			assert.True(t, g.IsRecord)
			require.NotNil(t, g.Rank)
			assert.Equal(t, 137, *g.Rank)
			assert.Equal(t, int64(34222), g.Value)
		case "eeeeeeeeeeeeeeeeeeeeeee2":
			assert.False(t, g.IsRecord)
			assert.Equal(t, int64(512000), g.Value)
		default:
			t.Fatalf("unexpected replay id %s", g.ReplayID)
		}
	}

	// The player row was materialized by the capture.
	player, err := playerRepo.Get(ctx, testPlayerID)
	require.NoError(t, err)
	require.NotNil(t, player)

	// Re-running the identical capture persists nothing.
	persisted, err = svc.CaptureRecords(ctx, testPlayerID)
	require.NoError(t, err)
	assert.Empty(t, persisted)

	games, err = svc.Games(ctx, testPlayerID)
	require.NoError(t, err)
	assert.Len(t, games, 2)
}

func matchesHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/streams/league_userrecent_"+testPlayerID, r.URL.Path)
		w.Write([]byte(`{
			"success": true,
			"data": {"records": [
				{
					"replayid": "fffffffffffffffffffffff1",
					"ts": "2023-11-14T20:00:00.000Z",
					"endcontext": [
						{"id": "` + testPlayerID + `", "username": "testplayer",
						 "success": true, "wins": 7,
						 "points": {"secondaryAvgTracking": [80.1, 82.2],
							"tertiaryAvgTracking": [2.1, 2.2],
							"extraAvgTracking": {"aggregatestats___vsscore": [160.5, 170.2]}},
						 "handling": {"arr": 0, "das": 6.0, "dcd": 0.5, "sdf": 41,
							"safelock": false, "cancel": true}},
						{"id": "` + rivalPlayerID + `", "username": "rival",
						 "success": false, "wins": 4,
						 "points": {"secondaryAvgTracking": [60.0, 61.0],
							"tertiaryAvgTracking": [1.8, 1.9],
							"extraAvgTracking": {"aggregatestats___vsscore": [120.0, 121.0]}},
						 "handling": {"arr": 2.5, "das": 9.1, "dcd": 0, "sdf": 6,
							"safelock": true, "cancel": false}}
					]
				}
			]}
		}`))
	})
}

func TestCaptureMatchesPipeline(t *testing.T) {
	db := newTestDB(t)
	logger := zerolog.Nop()
	translator := newTestTranslator(t, matchesHandler(t))
	playerRepo := repository.NewPlayerRepository(db, logger)
	matchRepo := repository.NewMatchRepository(db, logger)
	svc := NewMatchService(translator, playerRepo, matchRepo, logger)
	ctx := context.Background()

	persisted, err := svc.CaptureMatches(ctx, testPlayerID)
	require.NoError(t, err)
	require.Len(t, persisted, 1)

	// Every participant got an identity row, opponent included.
	for _, pid := range []string{testPlayerID, rivalPlayerID} {
		player, err := playerRepo.Get(ctx, pid)
		require.NoError(t, err)
		require.NotNil(t, player, pid)
	}

	matches, err := svc.Matches(ctx, testPlayerID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Len(t, matches[0].Players, 2)
	for _, p := range matches[0].Players {
		assert.Len(t, p.Rounds, 2)
	}

	// Re-running the identical capture persists nothing.
	persisted, err = svc.CaptureMatches(ctx, testPlayerID)
	require.NoError(t, err)
	assert.Empty(t, persisted)

	matches, err = svc.Matches(ctx, testPlayerID)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestCaptureSnapshotsPipeline(t *testing.T) {
	db := newTestDB(t)
	logger := zerolog.Nop()
	translator := newTestTranslator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/testplayer", r.URL.Path)
		w.Write([]byte(`{
			"success": true,
			"data": {"user": {
				"_id": "` + testPlayerID + `", "username": "testplayer",
				"xp": 100, "gamesplayed": 10, "gameswon": 5, "gametime": 3600,
				"friend_count": 2,
				"league": {"gamesplayed": 4, "gameswon": 2, "rank": "x",
					"standing": 42, "rating": 23456.7, "decaying": false}
			}}
		}`))
	}))
	playerRepo := repository.NewPlayerRepository(db, logger)
	snapshotRepo := repository.NewSnapshotRepository(db, logger)
	svc := NewPlayerService(translator, playerRepo, snapshotRepo, logger)
	ctx := context.Background()

	result, err := svc.CaptureSnapshots(ctx, "TestPlayer")
	require.NoError(t, err)
	assert.Equal(t, testPlayerID, result.Player.PlayerID)
	assert.Equal(t, 42, result.League.Standing)

	pSnaps, tlSnaps, err := svc.History(ctx, testPlayerID)
	require.NoError(t, err)
	require.Len(t, pSnaps, 1)
	require.Len(t, tlSnaps, 1)
	assert.False(t, tlSnaps[0].IsGlobal)

	names, err := svc.SearchSuggestions(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, []string{"testplayer"}, names)
}

func newGlobalService(t *testing.T, db *sql.DB, translator *api.Translator) (*GlobalService, *repository.SnapshotRepository) {
	t.Helper()
	logger := zerolog.Nop()
	playerRepo := repository.NewPlayerRepository(db, logger)
	snapshotRepo := repository.NewSnapshotRepository(db, logger)
	cfg := &config.Config{GlobalDataDir: t.TempDir()}
	return NewGlobalService(translator, playerRepo, snapshotRepo, cfg, logger), snapshotRepo
}

func TestCaptureLiveSkipsWhenDayCaptured(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	hits := 0
	translator := newTestTranslator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	svc, snapshotRepo := newGlobalService(t, db, translator)

	today := TruncateToDay(time.Now().UTC())
	playerRepo := repository.NewPlayerRepository(db, zerolog.Nop())
	require.NoError(t, playerRepo.CreateIfAbsent(ctx, []string{testPlayerID}))
	require.NoError(t, snapshotRepo.AddSnapshots(ctx, nil, []domain.LeagueSnapshot{
		{TS: today, Username: "testplayer", IsGlobal: true, Rank: "x", Standing: 1, PlayerID: testPlayerID},
	}))

	// The capture skips as a unit: empty result and no upstream traffic.
	snapshots, err := svc.CaptureLive(ctx)
	require.NoError(t, err)
	assert.Empty(t, snapshots)
	assert.Zero(t, hits)
}

func TestIngestDump(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc, _ := newGlobalService(t, db, newTestTranslator(t, http.NotFoundHandler()))

	dump := &api.GlobalDumpResponse{
		Success: true,
		Data: api.GlobalDumpData{Users: []api.GlobalUser{
			{ID: testPlayerID, Username: "first", League: api.LeagueInfo{Rank: "x", Standing: 99}},
			{ID: rivalPlayerID, Username: "second", League: api.LeagueInfo{Rank: "u", Standing: 99}},
		}},
	}

	ts := time.Date(2023, 11, 24, 0, 0, 0, 0, time.UTC)
	snapshots, err := svc.IngestDump(ctx, dump, ts)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)

	captured, err := svc.HasCapture(ctx, ts)
	require.NoError(t, err)
	assert.True(t, captured)

	captured, err = svc.HasCapture(ctx, ts.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, captured)

	timestamps, err := svc.Timestamps(ctx)
	require.NoError(t, err)
	require.Len(t, timestamps, 1)
	assert.True(t, timestamps[0].Equal(ts))

	// Players referenced only by the sweep got identity rows too.
	playerRepo := repository.NewPlayerRepository(db, zerolog.Nop())
	player, err := playerRepo.Get(ctx, rivalPlayerID)
	require.NoError(t, err)
	require.NotNil(t, player)
}

func TestTruncateToDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	ts := time.Date(2023, 11, 14, 23, 59, 59, 1e8, loc)

	got := TruncateToDay(ts.UTC())
	assert.True(t, got.Equal(time.Date(2023, 11, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.UTC, got.Location())
}
