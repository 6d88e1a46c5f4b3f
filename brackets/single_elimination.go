package brackets

import (
	"context"
	"errors"
	"fmt"

	"github.com/courtside/tournament-engine/models"
)

type SingleEliminationGenerator struct {
}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// GenerateBracket строит компактную сетку single elimination: раунд 1
// содержит ceil(n/2) матчей из соседних пар (участники уже упорядочены по
// сиду), последующие раунды уполовиниваются с округлением вверх до
// единственного финала. Нечётный хвост раунда 1 — bye: матч создаётся уже
// завершённым в пользу единственного игрока.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	participants := params.Participants
	n := len(participants)

	if n < 2 {
		return nil, errors.New("not enough participants to generate a single elimination bracket (minimum 2)")
	}

	totalRounds := ceilLog2(n)
	firstRoundMatches := ceilDiv(n, 2)

	counts := make([]int, totalRounds)
	counts[0] = firstRoundMatches
	for r := 2; r <= totalRounds; r++ {
		counts[r-1] = ceilDiv(firstRoundMatches, 1<<(r-1))
	}

	all := make([]*genMatch, 0, firstRoundMatches*2)
	for r := 1; r <= totalRounds; r++ {
		for i := 0; i < counts[r-1]; i++ {
			gm := &genMatch{
				uid:   fmt.Sprintf("WR%dM%d", r, i+1),
				side:  models.SideWinners,
				round: r,
				order: i + 1,
			}
			for j := 0; j < 2; j++ {
				if r == 1 {
					if idx := 2*i + j; idx < n {
						gm.slots[j] = participantSlot(participants[idx].ID)
					} else {
						gm.slots[j] = emptySlot()
					}
					continue
				}
				// Победители матчей 2i и 2i+1 предыдущего раунда сходятся
				// в матче i: нечётная позиция — слот 1, чётная — слот 2.
				if src := 2*i + j; src < counts[r-2] {
					gm.slots[j] = winnerOf(fmt.Sprintf("WR%dM%d", r-1, src+1))
				} else {
					gm.slots[j] = emptySlot()
				}
			}
			all = append(all, gm)
		}
	}

	settle(all)
	return emit(all), nil
}
