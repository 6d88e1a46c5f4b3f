package brackets

import (
	"context"
	"errors"
	"fmt"

	"github.com/courtside/tournament-engine/models"
)

type DoubleEliminationGenerator struct {
}

func NewDoubleEliminationGenerator() BracketGenerator {
	return &DoubleEliminationGenerator{}
}

func (g *DoubleEliminationGenerator) GetName() string {
	return "DoubleElimination"
}

// GenerateBracket строит полную сетку double elimination: верхнюю сетку,
// выровненную до ближайшей степени двойки (bye заполняют раунд 1), зеркальную
// нижнюю сетку с собственной нумерацией раундов и один гранд-финал.
//
// Нижняя сетка для верхней из R раундов содержит 2(R-1) раундов, которые
// чередуются: в нечётные приходят только победители нижней сетки, в чётные
// «падают» проигравшие очередного раунда верхней. Проигравший матча WR{r}M{k}
// попадает в слот 2 матча LR{2(r-1)}M{k} (для r >= 2); проигравшие первого
// раунда заполняют LR1 парами. Победитель последнего раунда нижней сетки
// встречает победителя верхней в гранд-финале (без переигровки).
//
// Bye верхнего раунда 1 не порождают проигравших: соответствующие слоты
// нижней сетки разрешаются на этапе генерации (см. settle) — матчи без
// живых источников создаются завершёнными, матчи с единственным живым
// источником помечаются walkover.
func (g *DoubleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	participants := params.Participants
	n := len(participants)

	if n < 2 {
		return nil, errors.New("not enough participants to generate a double elimination bracket (minimum 2)")
	}

	totalRounds := ceilLog2(n)
	bracketSize := 1 << totalRounds

	all := make([]*genMatch, 0, 2*bracketSize)

	// Верхняя сетка.
	for r := 1; r <= totalRounds; r++ {
		count := bracketSize >> r
		for i := 0; i < count; i++ {
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
				} else {
					gm.slots[j] = winnerOf(fmt.Sprintf("WR%dM%d", r-1, 2*i+j+1))
				}
			}
			all = append(all, gm)
		}
	}

	winnersFinalUID := fmt.Sprintf("WR%dM1", totalRounds)
	grandFinalSlot2 := loserOf(winnersFinalUID)

	// Нижняя сетка (существует при R >= 2).
	if totalRounds >= 2 {
		lowerRounds := 2 * (totalRounds - 1)
		for l := 1; l <= lowerRounds; l++ {
			var count int
			switch {
			case l == 1:
				count = bracketSize / 4
			case l%2 == 0:
				count = bracketSize >> (l/2 + 1)
			default:
				count = bracketSize >> ((l-1)/2 + 2)
			}

			for i := 0; i < count; i++ {
				gm := &genMatch{
					uid:   fmt.Sprintf("LR%dM%d", l, i+1),
					side:  models.SideLosers,
					round: l,
					order: i + 1,
				}
				switch {
				case l == 1:
					gm.slots[0] = loserOf(fmt.Sprintf("WR1M%d", 2*i+1))
					gm.slots[1] = loserOf(fmt.Sprintf("WR1M%d", 2*i+2))
				case l%2 == 0:
					gm.slots[0] = winnerOf(fmt.Sprintf("LR%dM%d", l-1, i+1))
					gm.slots[1] = loserOf(fmt.Sprintf("WR%dM%d", l/2+1, i+1))
				default:
					gm.slots[0] = winnerOf(fmt.Sprintf("LR%dM%d", l-1, 2*i+1))
					gm.slots[1] = winnerOf(fmt.Sprintf("LR%dM%d", l-1, 2*i+2))
				}
				all = append(all, gm)
			}
		}
		grandFinalSlot2 = winnerOf(fmt.Sprintf("LR%dM1", lowerRounds))
	}

	grandFinal := &genMatch{
		uid:   "GF",
		side:  models.SideGrandFinal,
		round: 1,
		order: 1,
		slots: [2]slotRef{winnerOf(winnersFinalUID), grandFinalSlot2},
	}
	all = append(all, grandFinal)

	settle(all)
	return emit(all), nil
}
