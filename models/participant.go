package models

import "time"

// Participant — регистрация пользователя (или пары, для парных форматов)
// в турнире. После генерации сетки запись неизменяема; выбывание
// отслеживается по результатам матчей.
type Participant struct {
	ID            int       `json:"id" db:"id"`
	TournamentID  int       `json:"tournament_id" db:"tournament_id"`
	UserID        int       `json:"user_id" db:"user_id"`
	PartnerUserID *int      `json:"partner_user_id,omitempty" db:"partner_user_id"`
	Seed          *int      `json:"seed,omitempty" db:"seed"`
	Eliminated    bool      `json:"eliminated" db:"eliminated"`
	FinalRank     *int      `json:"final_rank,omitempty" db:"final_rank"`
	RegisteredAt  time.Time `json:"registered_at" db:"registered_at"`

	User    *User `json:"user,omitempty" db:"-"`
	Partner *User `json:"partner,omitempty" db:"-"`
}
