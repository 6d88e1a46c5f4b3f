package brackets

import (
	"context"
	"fmt"

	"github.com/courtside/tournament-engine/models"
)

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() BracketGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) GetName() string {
	return "RoundRobin"
}

// GenerateBracket creates one match for every unordered pair of
// participants: n(n-1)/2 matches, all in round 1, no advancement links.
// Matches are independent and may complete in any order.
func (g *RoundRobinGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	participants := params.Participants

	if len(participants) < 2 {
		return nil, fmt.Errorf("RoundRobinGenerator: not enough participants (found %d, min 2 required)", len(participants))
	}

	matches := make([]*BracketMatch, 0, len(participants)*(len(participants)-1)/2)
	matchOrder := 0

	for i := 0; i < len(participants); i++ {
		for j := i + 1; j < len(participants); j++ {
			p1ID := participants[i].ID
			p2ID := participants[j].ID
			matchOrder++

			matches = append(matches, &BracketMatch{
				UID:            fmt.Sprintf("RRM%d", matchOrder),
				Side:           models.SideWinners,
				Round:          1,
				OrderInRound:   matchOrder,
				Participant1ID: &p1ID,
				Participant2ID: &p2ID,
			})
		}
	}

	return matches, nil
}
