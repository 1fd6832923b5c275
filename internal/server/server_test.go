package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tetrio-stats/internal/api"
	"tetrio-stats/internal/archive"
	"tetrio-stats/internal/config"
	"tetrio-stats/internal/database"
	"tetrio-stats/internal/repository"
	"tetrio-stats/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db, zerolog.Nop()))

	logger := zerolog.Nop()
	cfg := &config.Config{
		APIBaseURL:    "http://127.0.0.1:0",
		GlobalDataDir: t.TempDir(),
	}
	translator := api.NewTranslator(api.NewTetrioClient(cfg), logger)
	playerRepo := repository.NewPlayerRepository(db, logger)
	snapshotRepo := repository.NewSnapshotRepository(db, logger)
	gameRepo := repository.NewGameRepository(db, logger)
	matchRepo := repository.NewMatchRepository(db, logger)

	playerSvc := service.NewPlayerService(translator, playerRepo, snapshotRepo, logger)
	recordsSvc := service.NewRecordsService(translator, playerRepo, gameRepo, logger)
	matchSvc := service.NewMatchService(translator, playerRepo, matchRepo, logger)
	globalSvc := service.NewGlobalService(translator, playerRepo, snapshotRepo, cfg, logger)
	replayer := archive.NewReplayer(globalSvc, cfg, logger)

	return NewServer(playerSvc, recordsSvc, matchSvc, globalSvc, replayer, logger)
}

func doRequest(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func TestMalformedIDRejected(t *testing.T) {
	srv := newTestServer(t)

	for _, target := range []string{
		"/api/players/not-an-id/snapshots",
		"/api/players/5e32fc85ab319c2ab1beb07x/games",
		"/api/players/5e32fc85ab319c2ab1beb07/matches",
	} {
		rec := doRequest(t, srv, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body["error"], "malformed player id")
	}
}

func TestEmptyHistoryForValidID(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/players/5e32fc85ab319c2ab1beb07c/games")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Games []json.RawMessage `json:"games"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Games)
}

func TestLeagueStatOptions(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/stats/league")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Options []statOption `json:"options"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Options, 8)
	assert.Equal(t, statOption{Key: "tl_games_played", Label: "Games played"}, body.Options[0])
	assert.Equal(t, statOption{Key: "rating", Label: "TR"}, body.Options[2])
}

func TestSearchWithoutQuery(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/search")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Suggestions []string `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Suggestions)
}

func TestGlobalTimestampsEmpty(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/global/timestamps")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Timestamps []string `json:"timestamps"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Timestamps)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/players/testplayer/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
