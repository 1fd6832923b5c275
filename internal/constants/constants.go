package constants

import "time"

const (
	// ProfileFetchDelay is slept after every single-profile API call. The
	// upstream rate limit is undocumented, so throttle conservatively.
	ProfileFetchDelay = 1 * time.Second

	// GlobalSweepDelay is slept before requesting the full-population
	// leaderboard dump, the most expensive upstream call by far.
	GlobalSweepDelay = 10 * time.Second
)

const (
	ExternalAPITimeout = 30 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 120 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBatchSize       = 100
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	SearchSuggestionLimit = 10
)

// GlobalDumpPattern is the required filename layout for archived
// full-population dumps, e.g. "global-2023-11-24.json".
const GlobalDumpPattern = "global-2006-01-02.json"
