package merge

import (
	"testing"

	"tetrio-stats/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func game(replayID string, isRecord bool, value int64) domain.PlayerGame {
	return domain.PlayerGame{
		Gamemode: domain.GamemodeBlitz,
		ReplayID: replayID,
		Value:    value,
		IsRecord: isRecord,
	}
}

func TestGamesPrefersLeftOnOverlap(t *testing.T) {
	left := []domain.PlayerGame{game("a", true, 1000)}
	right := []domain.PlayerGame{
		game("a", false, 999),
		game("b", false, 500),
	}

	got := Games(left, right)

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ReplayID)
	assert.True(t, got[0].IsRecord)
	assert.Equal(t, int64(1000), got[0].Value)
	assert.Equal(t, "b", got[1].ReplayID)
	assert.False(t, got[1].IsRecord)
	assert.Equal(t, int64(500), got[1].Value)
}

func TestGamesPreservesOrder(t *testing.T) {
	left := []domain.PlayerGame{
		game("l1", true, 1),
		game("l2", true, 2),
	}
	right := []domain.PlayerGame{
		game("r1", false, 3),
		game("l1", false, 4),
		game("r2", false, 5),
	}

	got := Games(left, right)

	ids := make([]string, len(got))
	for i, g := range got {
		ids[i] = g.ReplayID
	}
	assert.Equal(t, []string{"l1", "l2", "r1", "r2"}, ids)
}

func TestGamesEmptySides(t *testing.T) {
	right := []domain.PlayerGame{game("a", false, 1)}

	assert.Equal(t, right, Games(nil, right))
	assert.Equal(t, right, Games(right, nil))
	assert.Empty(t, Games(nil, nil))
}

func TestGamesDeduplicatesWithinRight(t *testing.T) {
	right := []domain.PlayerGame{
		game("a", false, 1),
		game("a", false, 2),
	}

	got := Games(nil, right)

	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Value)
}

func TestIDExtraction(t *testing.T) {
	games := []domain.PlayerGame{game("a", false, 1), game("b", true, 2)}
	assert.Equal(t, []string{"a", "b"}, GameIDs(games))

	matches := []domain.LeagueMatch{{ReplayID: "x"}, {ReplayID: "y"}}
	assert.Equal(t, []string{"x", "y"}, MatchIDs(matches))
}
