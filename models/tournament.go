package models

import "time"

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	StatusDraft              TournamentStatus = "draft"
	StatusRegistration       TournamentStatus = "registration"
	StatusRegistrationClosed TournamentStatus = "registration_closed"
	StatusActive             TournamentStatus = "active"
	StatusCompleted          TournamentStatus = "completed"
	StatusCanceled           TournamentStatus = "canceled"
)

// BracketType определяет способ построения сетки турнира.
type BracketType string

const (
	BracketSingleElimination BracketType = "single_elimination"
	BracketDoubleElimination BracketType = "double_elimination"
	BracketRoundRobin        BracketType = "round_robin"
)

func (b BracketType) Valid() bool {
	switch b {
	case BracketSingleElimination, BracketDoubleElimination, BracketRoundRobin:
		return true
	}
	return false
}

// TournamentFormat — формат участия (одиночный, парный, смешанный).
type TournamentFormat string

const (
	FormatSingles TournamentFormat = "singles"
	FormatDoubles TournamentFormat = "doubles"
	FormatMixed   TournamentFormat = "mixed"
)

func (f TournamentFormat) Valid() bool {
	switch f {
	case FormatSingles, FormatDoubles, FormatMixed:
		return true
	}
	return false
}

// Tournament представляет турнир.
type Tournament struct {
	ID                         int              `json:"id" db:"id"`
	Name                       string           `json:"name" db:"name"`
	Description                *string          `json:"description,omitempty" db:"description"`
	OrganizerID                int              `json:"organizer_id" db:"organizer_id"`
	BracketType                BracketType      `json:"bracket_type" db:"bracket_type"`
	Format                     TournamentFormat `json:"format" db:"format"`
	MinParticipants            int              `json:"min_participants" db:"min_participants"`
	MaxParticipants            int              `json:"max_participants" db:"max_participants"`
	RegistrationDeadline       time.Time        `json:"registration_deadline" db:"registration_deadline"`
	StartDate                  time.Time        `json:"start_date" db:"start_date"`
	EndDate                    time.Time        `json:"end_date" db:"end_date"`
	Location                   *string          `json:"location,omitempty" db:"location"`
	Status                     TournamentStatus `json:"status" db:"status"`
	OverallWinnerParticipantID *int             `json:"overall_winner_participant_id,omitempty" db:"overall_winner_participant_id"`
	CreatedAt                  time.Time        `json:"created_at" db:"created_at"`
	LogoKey                    *string          `json:"-" db:"logo_key"`
	LogoURL                    *string          `json:"logo_url,omitempty" db:"-"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Organizer    *User         `json:"organizer,omitempty" db:"-"`
	Participants []Participant `json:"participants,omitempty" db:"-"`
	Matches      []Match       `json:"matches,omitempty" db:"-"`
}

// Terminal reports whether the tournament can no longer change state.
func (t *Tournament) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusCanceled
}
