package api

import (
	"context"
	"strings"
	"time"

	"tetrio-stats/internal/constants"
	"tetrio-stats/internal/domain"
	"tetrio-stats/internal/errs"
	"tetrio-stats/internal/ident"

	"github.com/rs/zerolog"
)

// Translator turns raw upstream payloads into domain records. It has no
// persistence side effects; reconciling its output against the store is
// the caller's job.
type Translator struct {
	client *TetrioClient
	logger zerolog.Logger

	// Deliberate blocking points, see constants. Overridable in tests.
	profileDelay time.Duration
	sweepDelay   time.Duration
}

func NewTranslator(client *TetrioClient, logger zerolog.Logger) *Translator {
	return &Translator{
		client:       client,
		logger:       logger,
		profileDelay: constants.ProfileFetchDelay,
		sweepDelay:   constants.GlobalSweepDelay,
	}
}

// ResolveUsername looks up the id behind a display name. Usernames are
// case-insensitive upstream, so input is lowercased before the lookup.
func (t *Translator) ResolveUsername(ctx context.Context, name string) (string, error) {
	name = strings.ToLower(name)

	resp, err := t.client.GetUser(ctx, name)
	if err != nil {
		return "", err
	}
	t.throttleProfile()

	if !resp.Success {
		return "", errs.NotFoundf("user %q not found", name)
	}
	return resp.Data.User.ID, nil
}

// resolveUser normalizes a user argument to an id, resolving usernames
// remotely when needed.
func (t *Translator) resolveUser(ctx context.Context, user string) (string, error) {
	if ident.IsValidID(user) {
		return user, nil
	}
	return t.ResolveUsername(ctx, user)
}

// FetchPlayerSnapshots issues one profile request and produces a player
// snapshot and a league snapshot sharing the same capture timestamp. The
// league snapshot is a per-player capture, never a global one.
func (t *Translator) FetchPlayerSnapshots(ctx context.Context, user string) (*domain.PlayerSnapshot, *domain.LeagueSnapshot, error) {
	if !ident.IsValidID(user) {
		user = strings.ToLower(user)
	}

	resp, err := t.client.GetUser(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	t.throttleProfile()

	if !resp.Success {
		return nil, nil, errs.NotFoundf("user %q not found", user)
	}

	u := resp.Data.User
	ts := time.Now().UTC()

	pSnap := &domain.PlayerSnapshot{
		TS:          ts,
		Username:    u.Username,
		XP:          int64(u.XP),
		GamesPlayed: u.GamesPlayed,
		GamesWon:    u.GamesWon,
		GameTime:    int64(u.GameTime),
		FriendCount: u.FriendCount,
		PlayerID:    u.ID,
	}

	tlSnap := leagueSnapshot(u.League, ts, u.Username, u.ID)

	return pSnap, tlSnap, nil
}

// FetchRecentGames fetches the recent singleplayer activity stream. The
// results carry IsRecord=false; overlap with best-of fetches is resolved
// downstream by the merge engine.
func (t *Translator) FetchRecentGames(ctx context.Context, user string) ([]domain.PlayerGame, error) {
	id, err := t.resolveUser(ctx, user)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.GetRecentStream(ctx, id)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, errs.NotFoundf("recent stream for %q not found", id)
	}

	games := make([]domain.PlayerGame, 0, len(resp.Data.Records))
	for _, rec := range resp.Data.Records {
		game, err := parseGame(rec, id, false)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}

	t.logger.Debug().Str("player_id", id).Int("count", len(games)).Msg("recent games fetched")
	return games, nil
}

// FetchBestGames fetches the per-mode personal bests: the detailed records
// endpoint first (which carries leaderboard ranks), then the two per-mode
// best streams. The streams duplicate the records-endpoint entries at the
// top of each list; that overlap is left intact for the merge engine.
func (t *Translator) FetchBestGames(ctx context.Context, user string) ([]domain.PlayerGame, error) {
	id, err := t.resolveUser(ctx, user)
	if err != nil {
		return nil, err
	}

	records, err := t.client.GetUserRecords(ctx, id)
	if err != nil {
		return nil, err
	}
	if !records.Success {
		return nil, errs.NotFoundf("records for %q not found", id)
	}

	var games []domain.PlayerGame
	for _, mode := range records.Data.Records {
		if mode.Record == nil {
			// Keys exist for both modes even if never played.
			continue
		}

		game, err := parseGame(*mode.Record, id, true)
		if err != nil {
			return nil, err
		}
		game.Rank = mode.Rank
		games = append(games, game)
	}

	for _, gamemode := range []string{domain.GamemodeBlitz, domain.GamemodeSprint} {
		stream, err := t.client.GetBestStream(ctx, gamemode, id)
		if err != nil {
			return nil, err
		}
		if !stream.Success {
			return nil, errs.NotFoundf("%s best stream for %q not found", gamemode, id)
		}

		for _, rec := range stream.Data.Records {
			game, err := parseGame(rec, id, true)
			if err != nil {
				return nil, err
			}
			games = append(games, game)
		}
	}

	t.logger.Debug().Str("player_id", id).Int("count", len(games)).Msg("best games fetched")
	return games, nil
}

// FetchRecentMatches fetches the ranked-match activity stream, building the
// full match / participant / round tree for each entry.
func (t *Translator) FetchRecentMatches(ctx context.Context, user string) ([]domain.LeagueMatch, error) {
	id, err := t.resolveUser(ctx, user)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.GetLeagueStream(ctx, id)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, errs.NotFoundf("league stream for %q not found", id)
	}

	matches := make([]domain.LeagueMatch, 0, len(resp.Data.Records))
	for _, rec := range resp.Data.Records {
		matches = append(matches, matchFromRecord(rec))
	}

	t.logger.Debug().Str("player_id", id).Int("count", len(matches)).Msg("recent matches fetched")
	return matches, nil
}

// FetchGlobalLive requests the full-population leaderboard dump, stalling
// first to respect the upstream rate limit. The raw body is returned for
// archiving alongside the parsed payload.
func (t *Translator) FetchGlobalLive(ctx context.Context) (*GlobalDumpResponse, []byte, error) {
	t.logger.Warn().Msg("requesting the global leaderboard dump, stalling first")
	time.Sleep(t.sweepDelay)

	resp, raw, err := t.client.GetLeagueAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !resp.Success {
		return nil, nil, errs.NotFoundf("global leaderboard dump unavailable")
	}
	return resp, raw, nil
}

// ParseGlobalSnapshot translates a full-population dump into one global
// league snapshot per entry. Standing is the entry's 1-based position in
// the payload ordering, which is the authoritative leaderboard rank and is
// never recomputed here.
func ParseGlobalSnapshot(dump *GlobalDumpResponse, ts time.Time) []domain.LeagueSnapshot {
	snapshots := make([]domain.LeagueSnapshot, 0, len(dump.Data.Users))
	for i, user := range dump.Data.Users {
		snap := leagueSnapshot(user.League, ts, user.Username, user.ID)
		snap.Standing = i + 1
		snap.IsGlobal = true
		snapshots = append(snapshots, *snap)
	}
	return snapshots
}

func leagueSnapshot(league LeagueInfo, ts time.Time, username, playerID string) *domain.LeagueSnapshot {
	return &domain.LeagueSnapshot{
		TS:            ts,
		Username:      username,
		TLGamesPlayed: league.GamesPlayed,
		TLGamesWon:    league.GamesWon,
		Rating:        league.Rating,
		Rank:          league.Rank,
		Standing:      league.Standing,
		Glicko:        league.Glicko,
		RD:            league.RD,
		APM:           league.APM,
		PPS:           league.PPS,
		VS:            league.VS,
		Decaying:      league.Decaying,
		PlayerID:      playerID,
	}
}

// parseGame interprets one singleplayer stream record. The value column is
// mode-dependent: 40L stores the final time in raw milliseconds, Blitz the
// score. An unknown gamemode is fatal to the whole translation.
func parseGame(rec SingleRecord, playerID string, isRecord bool) (domain.PlayerGame, error) {
	var value int64
	switch rec.EndContext.GameType {
	case domain.GamemodeSprint:
		value = int64(rec.EndContext.FinalTime)
	case domain.GamemodeBlitz:
		value = rec.EndContext.Score
	default:
		return domain.PlayerGame{}, errs.Translationf("unknown gamemode %q", rec.EndContext.GameType)
	}

	return domain.PlayerGame{
		Gamemode: rec.EndContext.GameType,
		ReplayID: rec.ReplayID,
		TS:       rec.TS,
		Value:    value,
		IsRecord: isRecord,
		PlayerID: playerID,
	}, nil
}

func matchFromRecord(rec LeagueRecord) domain.LeagueMatch {
	players := make([]domain.LeagueMatchPlayer, 0, len(rec.EndContext))
	for _, p := range rec.EndContext {
		mp := domain.LeagueMatchPlayer{
			Winner:   p.Success,
			Points:   p.Wins,
			ARR:      p.Handling.ARR,
			DAS:      p.Handling.DAS,
			DCD:      p.Handling.DCD,
			SDF:      p.Handling.SDF,
			Safelock: p.Handling.Safelock,
			Cancel:   p.Handling.Cancel,
			Username: p.Username,
			MatchID:  rec.ReplayID,
			PlayerID: p.ID,
		}

		// Round count is bounded by the shortest tracking array; the
		// three arrays are expected to be symmetric but are not trusted
		// to be.
		n := len(p.Points.SecondaryTracking)
		if len(p.Points.TertiaryTracking) < n {
			n = len(p.Points.TertiaryTracking)
		}
		if len(p.Points.ExtraTracking.VSScore) < n {
			n = len(p.Points.ExtraTracking.VSScore)
		}

		rounds := make([]domain.LeagueRound, 0, n)
		for idx := 0; idx < n; idx++ {
			rounds = append(rounds, domain.LeagueRound{
				RoundIdx: idx,
				APM:      p.Points.SecondaryTracking[idx],
				PPS:      p.Points.TertiaryTracking[idx],
				VS:       p.Points.ExtraTracking.VSScore[idx],
				PlayerID: p.ID,
			})
		}
		mp.Rounds = rounds

		players = append(players, mp)
	}

	return domain.LeagueMatch{
		ReplayID: rec.ReplayID,
		TS:       rec.TS,
		Players:  players,
	}
}

func (t *Translator) throttleProfile() {
	time.Sleep(t.profileDelay)
}
