package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Gamemode codes as they appear in upstream stream payloads.
const (
	GamemodeSprint = "40l"
	GamemodeBlitz  = "blitz"
)

// Player is the permanent identity row. Usernames are deliberately not
// stored here; they are captured per-snapshot so historical rows keep the
// name that was active at capture time.
type Player struct {
	ID       string // 24-char hex, assigned upstream, never generated locally
	JoinDate *time.Time
}

// PlayerSnapshot is a point-in-time capture of a player's aggregate
// non-ranked statistics.
type PlayerSnapshot struct {
	ID          int64
	TS          time.Time
	Username    string
	XP          int64
	GamesPlayed int
	GamesWon    int
	GameTime    int64
	FriendCount int
	PlayerID    string
}

// LeagueSnapshot is a point-in-time capture of ranked-ladder standing.
// IsGlobal distinguishes rows taken during a full-population sweep from
// rows taken as part of an individual player lookup; only global rows
// participate in population-wide statistics.
type LeagueSnapshot struct {
	ID            int64
	TS            time.Time
	Username      string
	IsGlobal      bool
	TLGamesPlayed int
	TLGamesWon    int
	Rating        *float64
	Rank          string // tier code: X, U, SS, ...
	Standing      int    // leaderboard position, -1 when unranked
	Glicko        *float64
	RD            *float64
	APM           *float64
	PPS           *float64
	VS            *float64
	Decaying      bool
	PlayerID      string
}

// PlayerGame is one completed singleplayer result. ReplayID is the natural
// key: no two persisted rows may share one. Value is mode-dependent; for
// 40L it is a duration in milliseconds and converted for display only.
type PlayerGame struct {
	ID       int64
	Gamemode string
	ReplayID string
	TS       time.Time
	Value    int64
	Rank     *int // leaderboard position when inside the global top list
	IsRecord bool // explicit personal-best fetch vs. recent-activity fetch
	PlayerID string
}

// DisplayValue converts the raw persisted value into its display unit:
// 40L times are stored in milliseconds and shown in seconds. The stored
// value is never converted at persistence time.
func (g PlayerGame) DisplayValue() float64 {
	if g.Gamemode == GamemodeSprint {
		return float64(g.Value) * 0.001
	}
	return float64(g.Value)
}

// LeagueMatch is one completed ranked set. Currently always 1v1, but the
// participant list is not assumed to have exactly two entries.
type LeagueMatch struct {
	ReplayID string
	TS       time.Time
	Players  []LeagueMatchPlayer
}

// LeagueMatchPlayer is one player's participation in a LeagueMatch,
// including their handling configuration at match time.
type LeagueMatchPlayer struct {
	ID       int64
	Winner   bool
	Points   int
	ARR      decimal.Decimal
	DAS      decimal.Decimal
	DCD      decimal.Decimal
	SDF      decimal.Decimal
	Safelock bool
	Cancel   bool
	Username string
	MatchID  string
	PlayerID string
	Rounds   []LeagueRound
}

// LeagueRound is a single round within a participation record. Rounds are
// correlated across participants by RoundIdx; the API does not expose
// per-round winners.
type LeagueRound struct {
	ID            int64
	RoundIdx      int
	APM           *float64
	PPS           *float64
	VS            *float64
	PlayerID      string
	MatchPlayerID int64
}
