// Package server is the thin HTTP surface over the pipelines. It only
// shapes JSON; every decision lives in the services.
package server

import (
	"encoding/json"
	"net/http"

	"tetrio-stats/internal/archive"
	"tetrio-stats/internal/domain"
	"tetrio-stats/internal/errs"
	"tetrio-stats/internal/ident"
	"tetrio-stats/internal/service"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type Server struct {
	playerSvc  *service.PlayerService
	recordsSvc *service.RecordsService
	matchSvc   *service.MatchService
	globalSvc  *service.GlobalService
	replayer   *archive.Replayer
	logger     zerolog.Logger
}

func NewServer(playerSvc *service.PlayerService, recordsSvc *service.RecordsService, matchSvc *service.MatchService, globalSvc *service.GlobalService, replayer *archive.Replayer, logger zerolog.Logger) *Server {
	return &Server{
		playerSvc:  playerSvc,
		recordsSvc: recordsSvc,
		matchSvc:   matchSvc,
		globalSvc:  globalSvc,
		replayer:   replayer,
		logger:     logger,
	}
}

func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/players/{user}/refresh", s.handleRefreshPlayer).Methods(http.MethodPost)
	r.HandleFunc("/api/players/{id}/snapshots", s.handleSnapshots).Methods(http.MethodGet)
	r.HandleFunc("/api/players/{id}/games", s.handleGames).Methods(http.MethodGet)
	r.HandleFunc("/api/players/{id}/matches", s.handleMatches).Methods(http.MethodGet)
	r.HandleFunc("/api/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/api/stats/league", s.handleLeagueStats).Methods(http.MethodGet)
	r.HandleFunc("/api/global/refresh", s.handleGlobalRefresh).Methods(http.MethodPost)
	r.HandleFunc("/api/global/replay", s.handleGlobalReplay).Methods(http.MethodPost)
	r.HandleFunc("/api/global/timestamps", s.handleGlobalTimestamps).Methods(http.MethodGet)

	return r
}

type refreshResponse struct {
	PlayerID   string `json:"player_id"`
	Username   string `json:"username"`
	NewGames   int    `json:"new_games"`
	NewMatches int    `json:"new_matches"`
	Snapshots  int    `json:"snapshots"`
}

// handleRefreshPlayer runs the whole per-player capture: profile
// snapshots, singleplayer records, ranked matches. Any failure aborts the
// remaining steps; each step's writes are already transactional.
func (s *Server) handleRefreshPlayer(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	ctx := r.Context()

	snaps, err := s.playerSvc.CaptureSnapshots(ctx, user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	games, err := s.recordsSvc.CaptureRecords(ctx, user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	matches, err := s.matchSvc.CaptureMatches(ctx, user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, refreshResponse{
		PlayerID:   snaps.Player.PlayerID,
		Username:   snaps.Player.Username,
		NewGames:   len(games),
		NewMatches: len(matches),
		Snapshots:  2,
	})
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !ident.IsValidID(id) {
		s.writeError(w, r, errs.Validationf("malformed player id %q", id))
		return
	}

	pSnaps, tlSnaps, err := s.playerSvc.History(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"player_snapshots": pSnaps,
		"league_snapshots": tlSnaps,
	})
}

type gameResponse struct {
	domain.PlayerGame
	DisplayValue float64 `json:"display_value"`
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !ident.IsValidID(id) {
		s.writeError(w, r, errs.Validationf("malformed player id %q", id))
		return
	}

	games, err := s.recordsSvc.Games(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]gameResponse, len(games))
	for i, g := range games {
		out[i] = gameResponse{PlayerGame: g, DisplayValue: g.DisplayValue()}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"games": out})
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !ident.IsValidID(id) {
		s.writeError(w, r, errs.Validationf("malformed player id %q", id))
		return
	}

	matches, err := s.matchSvc.Matches(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeJSON(w, http.StatusOK, map[string]any{"suggestions": []string{}})
		return
	}

	names, err := s.playerSvc.SearchSuggestions(r.Context(), query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"suggestions": names})
}

type statOption struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// handleLeagueStats exposes the closed set of chartable statistics so the
// dashboard never has to know field names.
func (s *Server) handleLeagueStats(w http.ResponseWriter, r *http.Request) {
	options := make([]statOption, len(domain.LeagueStats))
	for i, stat := range domain.LeagueStats {
		options[i] = statOption{Key: stat.Key, Label: stat.Label}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"options": options})
}

func (s *Server) handleGlobalRefresh(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.globalSvc.CaptureLive(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ingested": len(snapshots)})
}

func (s *Server) handleGlobalReplay(w http.ResponseWriter, r *http.Request) {
	n, err := s.replayer.Replay(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ingested": n})
}

func (s *Server) handleGlobalTimestamps(w http.ResponseWriter, r *http.Request) {
	timestamps, err := s.globalSvc.Timestamps(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"timestamps": timestamps})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errs.IsValidation(err):
		status = http.StatusBadRequest
		msg = err.Error()
	case errs.IsNotFound(err):
		status = http.StatusNotFound
		msg = "user not found"
	}

	s.logger.Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	s.writeJSON(w, status, map[string]string{"error": msg})
}
