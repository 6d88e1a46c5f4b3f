package brackets

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/courtside/tournament-engine/models"
)

// seededParticipants возвращает n участников с ID 1..n, уже упорядоченных
// по сиду, как их отдаёт репозиторий.
func seededParticipants(n int) []*models.Participant {
	out := make([]*models.Participant, 0, n)
	for i := 1; i <= n; i++ {
		seed := i
		out = append(out, &models.Participant{
			ID:           i,
			TournamentID: 1,
			UserID:       100 + i,
			Seed:         &seed,
		})
	}
	return out
}

func genParams(n int) GenerateBracketParams {
	return GenerateBracketParams{
		Tournament:   &models.Tournament{ID: 1, Name: "test"},
		Participants: seededParticipants(n),
	}
}

func indexByUID(t *testing.T, matches []*BracketMatch) map[string]*BracketMatch {
	t.Helper()
	index := make(map[string]*BracketMatch, len(matches))
	for _, m := range matches {
		require.NotContains(t, index, m.UID, "duplicate match UID %s", m.UID)
		index[m.UID] = m
	}
	return index
}

func mustUID(t *testing.T, index map[string]*BracketMatch, uid string) *BracketMatch {
	t.Helper()
	m, ok := index[uid]
	require.True(t, ok, "match %s not found in generated bracket", uid)
	return m
}
