package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/courtside/tournament-engine/brackets"
	"github.com/courtside/tournament-engine/models"
	"github.com/courtside/tournament-engine/repositories"
	"github.com/courtside/tournament-engine/storage"
)

type ParticipantService interface {
	Register(ctx context.Context, userID, tournamentID int, input RegisterParticipantInput) (*models.Participant, error)
	Unregister(ctx context.Context, userID, tournamentID int) error
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Participant, error)
}

type RegisterParticipantInput struct {
	PartnerUserID *int `json:"partner_user_id"`
	Seed          *int `json:"seed"`
}

type participantService struct {
	participantRepo repositories.ParticipantRepository
	tournamentRepo  repositories.TournamentRepository
	userRepo        repositories.UserRepository
	hub             *brackets.Hub
	notifier        Notifier
	uploader        storage.FileUploader
	logger          *slog.Logger
	now             func() time.Time
}

func NewParticipantService(
	participantRepo repositories.ParticipantRepository,
	tournamentRepo repositories.TournamentRepository,
	userRepo repositories.UserRepository,
	hub *brackets.Hub,
	notifier Notifier,
	uploader storage.FileUploader,
	logger *slog.Logger,
) ParticipantService {
	return &participantService{
		participantRepo: participantRepo,
		tournamentRepo:  tournamentRepo,
		userRepo:        userRepo,
		hub:             hub,
		notifier:        notifier,
		uploader:        uploader,
		logger:          logger,
		now:             time.Now,
	}
}

// Register добавляет пользователя в турнир. Проверка вместимости и уникальности
// выполняется репозиторием атомарно, поэтому параллельные регистрации на
// последнее место не приводят к превышению лимита.
func (s *participantService) Register(ctx context.Context, userID, tournamentID int, input RegisterParticipantInput) (*models.Participant, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", tournamentID, err)
	}

	if tournament.Status != models.StatusRegistration {
		return nil, ErrRegistrationNotOpen
	}
	if !s.now().Before(tournament.RegistrationDeadline) {
		return nil, ErrRegistrationDeadlinePassed
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	if tournament.Format != models.FormatSingles {
		if input.PartnerUserID == nil {
			return nil, fmt.Errorf("%w: partner is required for %s tournaments", ErrValidationFailed, tournament.Format)
		}
		if _, err := s.userRepo.GetByID(ctx, *input.PartnerUserID); err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return nil, fmt.Errorf("%w: partner", ErrUserNotFound)
			}
			return nil, fmt.Errorf("failed to get partner %d: %w", *input.PartnerUserID, err)
		}
	}

	participant := &models.Participant{
		TournamentID:  tournamentID,
		UserID:        userID,
		PartnerUserID: input.PartnerUserID,
		Seed:          input.Seed,
	}

	if err := s.participantRepo.CreateWithinCapacity(ctx, nil, participant, tournament.MaxParticipants); err != nil {
		switch {
		case errors.Is(err, repositories.ErrTournamentCapacityReached):
			return nil, ErrTournamentFull
		case errors.Is(err, repositories.ErrParticipantConflict):
			return nil, ErrRegistrationConflict
		default:
			return nil, fmt.Errorf("failed to register user %d for tournament %d: %w", userID, tournamentID, err)
		}
	}
	participant.User = user

	s.logger.InfoContext(ctx, "participant registered",
		slog.Int("tournament_id", tournamentID),
		slog.Int("user_id", userID),
		slog.Int("participant_id", participant.ID))

	if s.notifier != nil {
		s.notifier.RegistrationConfirmed(ctx, tournament, user)
	}
	if s.hub != nil {
		room := brackets.TournamentRoom(tournamentID)
		s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
			Type: brackets.EventRegistrationUpdated,
			Payload: map[string]interface{}{
				"tournament_id":  tournamentID,
				"participant_id": participant.ID,
			},
			RoomID: room,
		})
	}
	return participant, nil
}

// Unregister снимает регистрацию. Действует то же окно, что и для
// регистрации: пока она открыта и дедлайн не прошёл — после этого состав
// участников фиксируется для генерации сетки.
func (s *participantService) Unregister(ctx context.Context, userID, tournamentID int) error {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return fmt.Errorf("failed to get tournament %d: %w", tournamentID, err)
	}
	if tournament.Status != models.StatusRegistration {
		return ErrRegistrationNotOpen
	}
	if !s.now().Before(tournament.RegistrationDeadline) {
		return ErrRegistrationDeadlinePassed
	}

	participant, err := s.participantRepo.FindByUserAndTournament(ctx, userID, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return ErrParticipantNotFound
		}
		return fmt.Errorf("failed to find registration of user %d in tournament %d: %w", userID, tournamentID, err)
	}

	if err := s.participantRepo.DeleteByUserAndTournament(ctx, nil, userID, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return ErrParticipantNotFound
		}
		return fmt.Errorf("failed to unregister user %d from tournament %d: %w", userID, tournamentID, err)
	}

	s.logger.InfoContext(ctx, "participant unregistered",
		slog.Int("tournament_id", tournamentID),
		slog.Int("participant_id", participant.ID),
		slog.Int("user_id", userID))
	return nil
}

func (s *participantService) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Participant, error) {
	participants, err := s.participantRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants for tournament %d: %w", tournamentID, err)
	}
	if participants == nil {
		return []*models.Participant{}, nil
	}
	populateParticipantListDetails(participants, s.uploader)
	return participants, nil
}
