package domain

// LeagueStat identifies one chartable statistic on a LeagueSnapshot. The
// set is closed: the dashboard builds its dropdowns from LeagueStats and
// reads values through Accessor, never by reflecting on field names.
type LeagueStat struct {
	Key      string
	Label    string
	Accessor func(s LeagueSnapshot) *float64
}

func intStat(v int) *float64 {
	f := float64(v)
	return &f
}

// LeagueStats enumerates the chartable ranked statistics in display order.
var LeagueStats = []LeagueStat{
	{"tl_games_played", "Games played", func(s LeagueSnapshot) *float64 { return intStat(s.TLGamesPlayed) }},
	{"tl_games_won", "Games won", func(s LeagueSnapshot) *float64 { return intStat(s.TLGamesWon) }},
	{"rating", "TR", func(s LeagueSnapshot) *float64 { return s.Rating }},
	{"glicko", "Glicko", func(s LeagueSnapshot) *float64 { return s.Glicko }},
	{"rd", "RD", func(s LeagueSnapshot) *float64 { return s.RD }},
	{"apm", "APM", func(s LeagueSnapshot) *float64 { return s.APM }},
	{"pps", "PPS", func(s LeagueSnapshot) *float64 { return s.PPS }},
	{"vs", "VS", func(s LeagueSnapshot) *float64 { return s.VS }},
}

// LeagueStatByKey returns the statistic definition for key, or nil if the
// key is not part of the closed set.
func LeagueStatByKey(key string) *LeagueStat {
	for i := range LeagueStats {
		if LeagueStats[i].Key == key {
			return &LeagueStats[i]
		}
	}
	return nil
}
