// Package merge reconciles overlapping candidate record sets before they
// reach the store. A single "get all records" operation issues several
// upstream queries whose results overlap; the same physical game can show
// up both as a recent-activity entry and as a personal-best entry.
package merge

import "tetrio-stats/internal/domain"

// Games unions two candidate lists keyed by replay id, preferring the left
// side. Left entries are kept verbatim and in order; right entries survive
// only if their replay id is absent from the left, and are appended after
// all left entries in their original relative order.
//
// Callers pass the authoritative (record-flagged) list on the left and the
// recent-activity list on the right.
func Games(left, right []domain.PlayerGame) []domain.PlayerGame {
	seen := make(map[string]struct{}, len(left))
	for _, g := range left {
		seen[g.ReplayID] = struct{}{}
	}

	out := make([]domain.PlayerGame, 0, len(left)+len(right))
	out = append(out, left...)
	for _, g := range right {
		if _, ok := seen[g.ReplayID]; ok {
			continue
		}
		seen[g.ReplayID] = struct{}{}
		out = append(out, g)
	}

	return out
}

// GameIDs extracts the replay-id set of a candidate list.
func GameIDs(games []domain.PlayerGame) []string {
	ids := make([]string, len(games))
	for i, g := range games {
		ids[i] = g.ReplayID
	}
	return ids
}

// MatchIDs extracts the replay-id set of a candidate match list.
func MatchIDs(matches []domain.LeagueMatch) []string {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ReplayID
	}
	return ids
}
