package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/courtside/tournament-engine/brackets"
	"github.com/courtside/tournament-engine/models"
	"github.com/courtside/tournament-engine/repositories"
	"github.com/courtside/tournament-engine/storage"
)

type TournamentService interface {
	CreateTournament(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error)
	GetTournamentByID(ctx context.Context, id int) (*models.Tournament, error)
	ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error)
	OpenRegistration(ctx context.Context, tournamentID, userID int) (*models.Tournament, error)
	CloseRegistration(ctx context.Context, tournamentID, userID int) (*models.Tournament, error)
	StartTournament(ctx context.Context, tournamentID, userID int) (*models.Tournament, error)
	CancelTournament(ctx context.Context, tournamentID, userID int) (*models.Tournament, error)
	UploadLogo(ctx context.Context, tournamentID, userID int, contentType string, reader io.Reader) (*models.Tournament, error)
}

type CreateTournamentInput struct {
	Name                 string                  `json:"name"`
	Description          *string                 `json:"description"`
	BracketType          models.BracketType      `json:"bracket_type"`
	Format               models.TournamentFormat `json:"format"`
	MinParticipants      int                     `json:"min_participants"`
	MaxParticipants      int                     `json:"max_participants"`
	RegistrationDeadline time.Time               `json:"registration_deadline"`
	StartDate            time.Time               `json:"start_date"`
	EndDate              time.Time               `json:"end_date"`
	Location             *string                 `json:"location"`
}

type tournamentService struct {
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	userRepo        repositories.UserRepository
	standingRepo    repositories.StandingRepository
	bracketSvc      BracketService
	transactor      repositories.Transactor
	hub             *brackets.Hub
	notifier        Notifier
	uploader        storage.FileUploader
	logger          *slog.Logger
	now             func() time.Time
}

func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	userRepo repositories.UserRepository,
	standingRepo repositories.StandingRepository,
	bracketSvc BracketService,
	transactor repositories.Transactor,
	hub *brackets.Hub,
	notifier Notifier,
	uploader storage.FileUploader,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		userRepo:        userRepo,
		standingRepo:    standingRepo,
		bracketSvc:      bracketSvc,
		transactor:      transactor,
		hub:             hub,
		notifier:        notifier,
		uploader:        uploader,
		logger:          logger,
		now:             time.Now,
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTournamentNameRequired
	}
	if !input.BracketType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrTournamentInvalidBracket, input.BracketType)
	}
	format := input.Format
	if format == "" {
		format = models.FormatSingles
	}
	if !format.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrTournamentInvalidFormat, input.Format)
	}
	if input.MinParticipants < 2 || input.MaxParticipants < input.MinParticipants {
		return nil, fmt.Errorf("%w: min=%d max=%d", ErrTournamentInvalidCapacity, input.MinParticipants, input.MaxParticipants)
	}
	if err := validateTournamentDates(input.RegistrationDeadline, input.StartDate, input.EndDate); err != nil {
		return nil, err
	}

	tournament := &models.Tournament{
		Name:                 name,
		Description:          input.Description,
		OrganizerID:          organizerID,
		BracketType:          input.BracketType,
		Format:               format,
		MinParticipants:      input.MinParticipants,
		MaxParticipants:      input.MaxParticipants,
		RegistrationDeadline: input.RegistrationDeadline,
		StartDate:            input.StartDate,
		EndDate:              input.EndDate,
		Location:             input.Location,
		Status:               models.StatusDraft,
	}

	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return nil, ErrTournamentNameConflict
		}
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	s.logger.InfoContext(ctx, "tournament created",
		slog.Int("tournament_id", tournament.ID),
		slog.Int("organizer_id", organizerID),
		slog.String("bracket_type", string(tournament.BracketType)))
	return tournament, nil
}

func (s *tournamentService) GetTournamentByID(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.getTournament(ctx, id)
	if err != nil {
		return nil, err
	}
	populateTournamentLogoURL(tournament, s.uploader)

	organizer, err := s.userRepo.GetByID(ctx, tournament.OrganizerID)
	if err == nil {
		populateUserDetails(organizer, s.uploader)
		tournament.Organizer = organizer
	}
	return tournament, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	for i := range tournaments {
		populateTournamentLogoURL(&tournaments[i], s.uploader)
	}
	return tournaments, nil
}

func (s *tournamentService) OpenRegistration(ctx context.Context, tournamentID, userID int) (*models.Tournament, error) {
	return s.transition(ctx, tournamentID, userID, models.StatusRegistration, false)
}

// CloseRegistration идемпотентен: повторный вызов на уже закрытой регистрации
// возвращает турнир без ошибки.
func (s *tournamentService) CloseRegistration(ctx context.Context, tournamentID, userID int) (*models.Tournament, error) {
	return s.transition(ctx, tournamentID, userID, models.StatusRegistrationClosed, true)
}

// CancelTournament переводит турнир в canceled из любого нетерминального статуса.
func (s *tournamentService) CancelTournament(ctx context.Context, tournamentID, userID int) (*models.Tournament, error) {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.OrganizerID != userID {
		return nil, ErrForbiddenOperation
	}
	if tournament.Terminal() {
		return nil, ErrTournamentInvalidStatusTransition
	}

	if err := s.tournamentRepo.UpdateStatusIfCurrent(ctx, nil, tournamentID, tournament.Status, models.StatusCanceled); err != nil {
		if errors.Is(err, repositories.ErrTournamentStatusConflict) {
			return nil, ErrTournamentInvalidStatusTransition
		}
		return nil, fmt.Errorf("failed to cancel tournament %d: %w", tournamentID, err)
	}
	tournament.Status = models.StatusCanceled

	s.logger.InfoContext(ctx, "tournament canceled", slog.Int("tournament_id", tournamentID))
	s.broadcastStatus(ctx, tournament, brackets.EventRegistrationUpdated)
	return tournament, nil
}

func (s *tournamentService) StartTournament(ctx context.Context, tournamentID, userID int) (*models.Tournament, error) {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.OrganizerID != userID {
		return nil, ErrForbiddenOperation
	}
	if tournament.Status != models.StatusRegistrationClosed {
		return nil, ErrTournamentInvalidStatusTransition
	}

	participants, err := s.participantRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants for tournament %d: %w", tournamentID, err)
	}
	if len(participants) < tournament.MinParticipants || len(participants) < 2 {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientParticipants, len(participants), tournament.MinParticipants)
	}

	generator, err := brackets.ForType(tournament.BracketType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTournamentInvalidBracket, err)
	}

	// Генерация сетки — чистая и детерминированная, выполняем её до транзакции.
	generated, err := generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
		Tournament:   tournament,
		Participants: participants,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s bracket for tournament %d: %w", generator.GetName(), tournamentID, err)
	}

	txErr := s.transactor.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		// CAS первым: параллельный старт того же турнира упадёт здесь,
		// не успев ничего записать.
		if err := s.tournamentRepo.UpdateStatusIfCurrent(ctx, exec, tournamentID, models.StatusRegistrationClosed, models.StatusActive); err != nil {
			if errors.Is(err, repositories.ErrTournamentStatusConflict) {
				return ErrTournamentInvalidStatusTransition
			}
			return fmt.Errorf("failed to activate tournament %d: %w", tournamentID, err)
		}

		if _, err := s.bracketSvc.SaveBracket(ctx, exec, tournament, generated); err != nil {
			return err
		}

		if tournament.BracketType == models.BracketRoundRobin {
			ids := make([]int, len(participants))
			for i, p := range participants {
				ids[i] = p.ID
			}
			if err := s.standingRepo.BatchCreate(ctx, exec, tournamentID, ids); err != nil {
				return fmt.Errorf("failed to init standings for tournament %d: %w", tournamentID, err)
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	tournament.Status = models.StatusActive

	s.logger.InfoContext(ctx, "tournament started",
		slog.Int("tournament_id", tournamentID),
		slog.String("bracket_type", string(tournament.BracketType)),
		slog.Int("participants", len(participants)),
		slog.Int("matches", len(generated)))

	s.broadcastStatus(ctx, tournament, brackets.EventBracketGenerated)
	s.notifyParticipants(ctx, tournament, participants)

	return s.bracketSvc.GetBracket(ctx, tournamentID)
}

func (s *tournamentService) UploadLogo(ctx context.Context, tournamentID, userID int, contentType string, reader io.Reader) (*models.Tournament, error) {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.OrganizerID != userID {
		return nil, ErrForbiddenOperation
	}

	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	key := fmt.Sprintf("tournaments/%d/logo%s", tournamentID, ext)
	result, err := s.uploader.Upload(ctx, key, contentType, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to upload logo for tournament %d: %w", tournamentID, err)
	}

	if err := s.tournamentRepo.UpdateLogoKey(ctx, tournamentID, &result.Key); err != nil {
		return nil, fmt.Errorf("failed to save logo key for tournament %d: %w", tournamentID, err)
	}
	tournament.LogoKey = &result.Key
	populateTournamentLogoURL(tournament, s.uploader)
	return tournament, nil
}

func (s *tournamentService) getTournament(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	return tournament, nil
}

func (s *tournamentService) transition(ctx context.Context, tournamentID, userID int, to models.TournamentStatus, idempotent bool) (*models.Tournament, error) {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.OrganizerID != userID {
		return nil, ErrForbiddenOperation
	}
	if tournament.Status == to {
		if idempotent {
			return tournament, nil
		}
		return nil, ErrTournamentInvalidStatusTransition
	}
	if !isValidStatusTransition(tournament.Status, to) {
		return nil, ErrTournamentInvalidStatusTransition
	}

	if err := s.tournamentRepo.UpdateStatusIfCurrent(ctx, nil, tournamentID, tournament.Status, to); err != nil {
		if errors.Is(err, repositories.ErrTournamentStatusConflict) {
			return nil, ErrTournamentInvalidStatusTransition
		}
		return nil, fmt.Errorf("failed to update tournament %d status: %w", tournamentID, err)
	}
	tournament.Status = to

	s.logger.InfoContext(ctx, "tournament status changed",
		slog.Int("tournament_id", tournamentID),
		slog.String("status", string(to)))
	s.broadcastStatus(ctx, tournament, brackets.EventRegistrationUpdated)
	return tournament, nil
}

func (s *tournamentService) broadcastStatus(ctx context.Context, tournament *models.Tournament, eventType string) {
	if s.hub == nil {
		return
	}
	room := brackets.TournamentRoom(tournament.ID)
	s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
		Type: eventType,
		Payload: map[string]interface{}{
			"tournament_id": tournament.ID,
			"status":        tournament.Status,
		},
		RoomID: room,
	})
}

func (s *tournamentService) notifyParticipants(ctx context.Context, tournament *models.Tournament, participants []*models.Participant) {
	if s.notifier == nil {
		return
	}
	recipients := make([]models.User, 0, len(participants))
	for _, p := range participants {
		user, err := s.userRepo.GetByID(ctx, p.UserID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to load participant user for notification",
				slog.Int("tournament_id", tournament.ID),
				slog.Int("user_id", p.UserID),
				slog.Any("error", err))
			continue
		}
		recipients = append(recipients, *user)
	}
	s.notifier.TournamentStatusChanged(ctx, tournament, recipients)
}
