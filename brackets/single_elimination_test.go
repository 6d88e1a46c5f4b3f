package brackets

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/tournament-engine/models"
)

func TestSingleEliminationRejectsTooFewParticipants(t *testing.T) {
	g := NewSingleEliminationGenerator()

	_, err := g.GenerateBracket(context.Background(), genParams(1))
	assert.Error(t, err)

	_, err = g.GenerateBracket(context.Background(), genParams(0))
	assert.Error(t, err)
}

func TestSingleEliminationFourParticipants(t *testing.T) {
	g := NewSingleEliminationGenerator()

	matches, err := g.GenerateBracket(context.Background(), genParams(4))
	require.NoError(t, err)
	require.Len(t, matches, 3)

	index := indexByUID(t, matches)
	sf1 := mustUID(t, index, "WR1M1")
	sf2 := mustUID(t, index, "WR1M2")
	final := mustUID(t, index, "WR2M1")

	// Пары соседей по сиду.
	require.NotNil(t, sf1.Participant1ID)
	require.NotNil(t, sf1.Participant2ID)
	assert.Equal(t, 1, *sf1.Participant1ID)
	assert.Equal(t, 2, *sf1.Participant2ID)
	require.NotNil(t, sf2.Participant1ID)
	require.NotNil(t, sf2.Participant2ID)
	assert.Equal(t, 3, *sf2.Participant1ID)
	assert.Equal(t, 4, *sf2.Participant2ID)

	// Полуфиналы сходятся в финале: первый в слот 1, второй в слот 2.
	require.NotNil(t, sf1.WinnerToUID)
	assert.Equal(t, "WR2M1", *sf1.WinnerToUID)
	assert.Equal(t, 1, sf1.WinnerToSlot)
	require.NotNil(t, sf2.WinnerToUID)
	assert.Equal(t, "WR2M1", *sf2.WinnerToUID)
	assert.Equal(t, 2, sf2.WinnerToSlot)

	// У финала продвижения нет, слоты пусты до завершения полуфиналов.
	assert.Nil(t, final.WinnerToUID)
	assert.Nil(t, final.Participant1ID)
	assert.Nil(t, final.Participant2ID)

	for _, m := range matches {
		assert.Equal(t, models.SideWinners, m.Side)
		assert.Nil(t, m.LoserToUID, "у %s не должно быть ссылки для проигравшего", m.UID)
		assert.False(t, m.Completed)
		assert.False(t, m.Walkover)
	}
}

func TestSingleEliminationMatchCounts(t *testing.T) {
	cases := []struct {
		participants int
		matches      int
		rounds       int
	}{
		{2, 1, 1},
		{3, 3, 2},
		{4, 3, 2},
		{5, 6, 3},
		{6, 6, 3},
		{7, 7, 3},
		{8, 7, 3},
		{9, 11, 4},
		{16, 15, 4},
	}

	g := NewSingleEliminationGenerator()
	for _, tc := range cases {
		matches, err := g.GenerateBracket(context.Background(), genParams(tc.participants))
		require.NoError(t, err, "n=%d", tc.participants)
		assert.Len(t, matches, tc.matches, "n=%d", tc.participants)

		maxRound := 0
		finals := 0
		for _, m := range matches {
			if m.Round > maxRound {
				maxRound = m.Round
			}
			if m.WinnerToUID == nil {
				finals++
			}
		}
		assert.Equal(t, tc.rounds, maxRound, "n=%d", tc.participants)
		assert.Equal(t, 1, finals, "n=%d: ровно один матч без продвижения", tc.participants)
	}
}

func TestSingleEliminationLinkingParity(t *testing.T) {
	g := NewSingleEliminationGenerator()

	matches, err := g.GenerateBracket(context.Background(), genParams(8))
	require.NoError(t, err)
	index := indexByUID(t, matches)

	// Победители матчей 2i-1 и 2i раунда r встречаются в матче i раунда r+1.
	for r := 1; r <= 2; r++ {
		count := 8 >> r
		for i := 1; i <= count; i++ {
			m := mustUID(t, index, uid(r, i))
			require.NotNil(t, m.WinnerToUID, "%s", m.UID)
			assert.Equal(t, uid(r+1, (i+1)/2), *m.WinnerToUID)
			assert.Equal(t, (i-1)%2+1, m.WinnerToSlot)
		}
	}
}

func uid(round, order int) string {
	return fmt.Sprintf("WR%dM%d", round, order)
}

func TestSingleEliminationByesResolveAtGeneration(t *testing.T) {
	g := NewSingleEliminationGenerator()

	matches, err := g.GenerateBracket(context.Background(), genParams(5))
	require.NoError(t, err)
	require.Len(t, matches, 6)
	index := indexByUID(t, matches)

	// Пятый участник без соперника: bye завершён на этапе генерации.
	bye := mustUID(t, index, "WR1M3")
	assert.True(t, bye.Completed)
	require.NotNil(t, bye.WinnerID)
	assert.Equal(t, 5, *bye.WinnerID)

	// Его соперник во втором раунде тоже отсутствует, каскад доводит
	// участника до полуфинала.
	wr2m2 := mustUID(t, index, "WR2M2")
	assert.True(t, wr2m2.Completed)
	require.NotNil(t, wr2m2.WinnerID)
	assert.Equal(t, 5, *wr2m2.WinnerID)

	// Финал ждёт победителя WR2M1, второй слот уже занят участником 5.
	final := mustUID(t, index, "WR3M1")
	assert.False(t, final.Completed)
	require.NotNil(t, final.Participant2ID)
	assert.Equal(t, 5, *final.Participant2ID)
}

func TestSingleEliminationWalkoverMarking(t *testing.T) {
	g := NewSingleEliminationGenerator()

	// Для шести участников второй раунд имеет матч с единственным живым
	// источником: он помечается walkover и завершится во время турнира.
	matches, err := g.GenerateBracket(context.Background(), genParams(6))
	require.NoError(t, err)
	index := indexByUID(t, matches)

	wr2m2 := mustUID(t, index, "WR2M2")
	assert.False(t, wr2m2.Completed)
	assert.True(t, wr2m2.Walkover)
	assert.Nil(t, wr2m2.Participant1ID)
	assert.Nil(t, wr2m2.Participant2ID)
}

func TestSingleEliminationDeterministic(t *testing.T) {
	g := NewSingleEliminationGenerator()

	for _, n := range []int{2, 5, 8, 13} {
		first, err := g.GenerateBracket(context.Background(), genParams(n))
		require.NoError(t, err)
		second, err := g.GenerateBracket(context.Background(), genParams(n))
		require.NoError(t, err)
		assert.Equal(t, first, second, "n=%d", n)
	}
}
