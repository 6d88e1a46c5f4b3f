package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ошибки, специфичные для сущностей
	ErrUserNotFound        = errors.New("user not found")
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrParticipantNotFound = errors.New("participant registration not found")
	ErrMatchNotFound       = errors.New("match not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed           = errors.New("validation failed")
	ErrPasswordTooShort           = errors.New("password is too short")
	ErrTournamentNameRequired     = errors.New("tournament name is required")
	ErrTournamentDatesRequired    = errors.New("tournament dates are required")
	ErrTournamentInvalidRegDate   = errors.New("registration deadline must be before the start date")
	ErrTournamentInvalidDateRange = errors.New("tournament end date must be after start date")
	ErrTournamentInvalidCapacity  = errors.New("tournament participant limits are invalid")
	ErrTournamentInvalidBracket   = errors.New("unknown bracket type")
	ErrTournamentInvalidFormat    = errors.New("unknown tournament format")
	ErrInsufficientParticipants   = errors.New("not enough participants to start the tournament")

	// Ошибки регистрации
	ErrRegistrationNotOpen        = errors.New("tournament registration is not open")
	ErrRegistrationDeadlinePassed = errors.New("tournament registration deadline has passed")
	ErrTournamentFull             = errors.New("tournament registration is full")

	// Ошибки результатов матчей
	ErrTournamentNotActive   = errors.New("tournament is not active")
	ErrInvalidWinner         = errors.New("winner is not a participant of this match")
	ErrMatchAlreadyCompleted = errors.New("match result has already been recorded")
	ErrMatchSlotsIncomplete  = errors.New("match does not have both participants assigned yet")

	// Ошибки конфликтов
	ErrUserEmailConflict      = errors.New("email address is already in use")
	ErrRegistrationConflict   = errors.New("user is already registered for this tournament")
	ErrTournamentNameConflict = errors.New("tournament name already exists")

	// Ошибки аутентификации и авторизации
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")

	// Ошибки жизненного цикла турнира
	ErrTournamentInvalidStatusTransition = errors.New("invalid tournament status transition")
)
