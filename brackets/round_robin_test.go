package brackets

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/tournament-engine/models"
)

func TestRoundRobinRejectsTooFewParticipants(t *testing.T) {
	g := NewRoundRobinGenerator()

	_, err := g.GenerateBracket(context.Background(), genParams(1))
	assert.Error(t, err)
}

func TestRoundRobinEveryPairExactlyOnce(t *testing.T) {
	g := NewRoundRobinGenerator()

	for _, n := range []int{2, 3, 4, 7} {
		matches, err := g.GenerateBracket(context.Background(), genParams(n))
		require.NoError(t, err, "n=%d", n)
		require.Len(t, matches, n*(n-1)/2, "n=%d", n)

		seen := map[string]int{}
		for _, m := range matches {
			require.NotNil(t, m.Participant1ID, m.UID)
			require.NotNil(t, m.Participant2ID, m.UID)
			assert.NotEqual(t, *m.Participant1ID, *m.Participant2ID, m.UID)

			a, b := *m.Participant1ID, *m.Participant2ID
			if a > b {
				a, b = b, a
			}
			seen[fmt.Sprintf("%d-%d", a, b)]++
		}
		assert.Len(t, seen, n*(n-1)/2, "n=%d", n)
		for pair, count := range seen {
			assert.Equal(t, 1, count, "n=%d: пара %s встречается больше одного раза", n, pair)
		}
	}
}

func TestRoundRobinMatchesAreIndependent(t *testing.T) {
	g := NewRoundRobinGenerator()

	matches, err := g.GenerateBracket(context.Background(), genParams(4))
	require.NoError(t, err)

	for _, m := range matches {
		assert.Equal(t, models.SideWinners, m.Side)
		assert.Equal(t, 1, m.Round)
		assert.Nil(t, m.WinnerToUID, m.UID)
		assert.Nil(t, m.LoserToUID, m.UID)
		assert.False(t, m.Completed, m.UID)
		assert.False(t, m.Walkover, m.UID)
	}
}

func TestRoundRobinDeterministic(t *testing.T) {
	g := NewRoundRobinGenerator()

	first, err := g.GenerateBracket(context.Background(), genParams(5))
	require.NoError(t, err)
	second, err := g.GenerateBracket(context.Background(), genParams(5))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
