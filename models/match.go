package models

import "time"

type MatchStatus string

const (
	StatusScheduled      MatchStatus = "scheduled"
	MatchStatusCompleted MatchStatus = "completed"
)

// BracketSide определяет, к какой части сетки относится матч.
type BracketSide string

const (
	SideWinners    BracketSide = "winners"
	SideLosers     BracketSide = "losers"
	SideGrandFinal BracketSide = "grand_final"
)

// Match — узел турнирной сетки. Round и OrderInRound (1-based, уникален в
// рамках раунда своей стороны сетки) служат только для отображения и
// сортировки; идентичность матча — его ID, выданный хранилищем.
type Match struct {
	ID                  int         `json:"id" db:"id"`
	TournamentID        int         `json:"tournament_id" db:"tournament_id"`
	Side                BracketSide `json:"side" db:"side"`
	Round               int         `json:"round" db:"round"`
	OrderInRound        int         `json:"order_in_round" db:"order_in_round"`
	BracketUID          string      `json:"bracket_uid" db:"bracket_uid"`
	P1ParticipantID     *int        `json:"p1_participant_id,omitempty" db:"p1_participant_id"`
	P2ParticipantID     *int        `json:"p2_participant_id,omitempty" db:"p2_participant_id"`
	Score               *string     `json:"score,omitempty" db:"score"`
	Status              MatchStatus `json:"status" db:"status"`
	WinnerParticipantID *int        `json:"winner_participant_id,omitempty" db:"winner_participant_id"`

	// Победитель уходит в NextMatchID (слот WinnerToSlot), проигравший — в
	// LoserNextMatchID (только double elimination).
	NextMatchID      *int `json:"next_match_id,omitempty" db:"next_match_id"`
	WinnerToSlot     *int `json:"winner_to_slot,omitempty" db:"winner_to_slot"`
	LoserNextMatchID *int `json:"loser_next_match_id,omitempty" db:"loser_next_match_id"`
	LoserToSlot      *int `json:"loser_to_slot,omitempty" db:"loser_to_slot"`

	// Walkover: второй слот матча заведомо не будет заполнен (единственный
	// источник), матч завершается автоматически при заполнении первого.
	Walkover bool `json:"walkover" db:"walkover"`

	MatchTime time.Time `json:"match_time" db:"match_time"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Participants returns the assigned participant ids, skipping empty slots.
func (m *Match) ParticipantIDs() []int {
	ids := make([]int, 0, 2)
	if m.P1ParticipantID != nil {
		ids = append(ids, *m.P1ParticipantID)
	}
	if m.P2ParticipantID != nil {
		ids = append(ids, *m.P2ParticipantID)
	}
	return ids
}

// HasParticipant reports whether the given participant occupies one of the
// match's slots.
func (m *Match) HasParticipant(participantID int) bool {
	for _, id := range m.ParticipantIDs() {
		if id == participantID {
			return true
		}
	}
	return false
}

// OpponentOf returns the participant in the other slot, or nil for a bye.
func (m *Match) OpponentOf(participantID int) *int {
	if m.P1ParticipantID != nil && *m.P1ParticipantID == participantID {
		return m.P2ParticipantID
	}
	if m.P2ParticipantID != nil && *m.P2ParticipantID == participantID {
		return m.P1ParticipantID
	}
	return nil
}
