package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/courtside/tournament-engine/brackets"
	"github.com/courtside/tournament-engine/models"
	"github.com/courtside/tournament-engine/repositories"
)

type MatchService interface {
	RecordResult(ctx context.Context, userID, matchID int, input RecordResultInput) (*models.Match, error)
	GetMatchByID(ctx context.Context, matchID int) (*models.Match, error)
	ListMatchesByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error)
}

type RecordResultInput struct {
	WinnerParticipantID int     `json:"winner_participant_id"`
	Score               *string `json:"score"`
}

type matchService struct {
	matchRepo       repositories.MatchRepository
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	standingRepo    repositories.StandingRepository
	userRepo        repositories.UserRepository
	transactor      repositories.Transactor
	hub             *brackets.Hub
	notifier        Notifier
	logger          *slog.Logger
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	standingRepo repositories.StandingRepository,
	userRepo repositories.UserRepository,
	transactor repositories.Transactor,
	hub *brackets.Hub,
	notifier Notifier,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		matchRepo:       matchRepo,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		standingRepo:    standingRepo,
		userRepo:        userRepo,
		transactor:      transactor,
		hub:             hub,
		notifier:        notifier,
		logger:          logger,
	}
}

// resultOutcome накапливает эффекты записи результата для пост-коммитных
// уведомлений.
type resultOutcome struct {
	match                 *models.Match
	tournamentCompleted   bool
	championParticipantID *int
}

// matchCompletion — элемент каскада завершений внутри одной транзакции.
type matchCompletion struct {
	match    *models.Match
	winnerID int
}

// RecordResult фиксирует исход матча и продвигает победителя (и проигравшего
// для double elimination) по сетке. Сам матч переводится в completed
// атомарным compare-and-set, так что повторная запись того же результата
// детерминированно завершается ErrMatchAlreadyCompleted.
func (s *matchService) RecordResult(ctx context.Context, userID, matchID int, input RecordResultInput) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d: %w", matchID, err)
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, match.TournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament %d for match %d: %w", match.TournamentID, matchID, err)
	}
	if tournament.OrganizerID != userID {
		return nil, ErrForbiddenOperation
	}
	if tournament.Status != models.StatusActive {
		return nil, ErrTournamentNotActive
	}

	if match.Status == models.MatchStatusCompleted {
		return nil, ErrMatchAlreadyCompleted
	}
	if len(match.ParticipantIDs()) < 2 {
		return nil, ErrMatchSlotsIncomplete
	}
	if !match.HasParticipant(input.WinnerParticipantID) {
		return nil, ErrInvalidWinner
	}

	outcome := &resultOutcome{}
	txErr := s.transactor.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		// CAS первым: при гонке на один матч проигравшая запись падает здесь.
		if err := s.matchRepo.RecordResult(ctx, exec, matchID, input.WinnerParticipantID, input.Score); err != nil {
			if errors.Is(err, repositories.ErrMatchNotScheduled) {
				return ErrMatchAlreadyCompleted
			}
			return fmt.Errorf("failed to record result for match %d: %w", matchID, err)
		}

		match.Status = models.MatchStatusCompleted
		match.WinnerParticipantID = &input.WinnerParticipantID
		match.Score = input.Score

		return s.settleCompletion(ctx, exec, tournament, match, input.WinnerParticipantID, outcome)
	})
	if txErr != nil {
		return nil, txErr
	}
	outcome.match = match

	s.logger.InfoContext(ctx, "match result recorded",
		slog.Int("tournament_id", tournament.ID),
		slog.Int("match_id", matchID),
		slog.Int("winner_participant_id", input.WinnerParticipantID))

	s.broadcastOutcome(ctx, tournament, outcome)
	s.notifyChampion(ctx, tournament, outcome)
	return match, nil
}

// notifyChampion адресно поздравляет чемпиона после коммита. Best-effort:
// сбой доставки результат не откатывает.
func (s *matchService) notifyChampion(ctx context.Context, tournament *models.Tournament, outcome *resultOutcome) {
	if s.notifier == nil || !outcome.tournamentCompleted || outcome.championParticipantID == nil {
		return
	}

	champion, err := s.participantRepo.FindByID(ctx, *outcome.championParticipantID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load champion for notification",
			slog.Int("tournament_id", tournament.ID),
			slog.Int("participant_id", *outcome.championParticipantID),
			slog.Any("error", err))
		return
	}
	user, err := s.userRepo.GetByID(ctx, champion.UserID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load champion user for notification",
			slog.Int("tournament_id", tournament.ID),
			slog.Int("user_id", champion.UserID),
			slog.Any("error", err))
		return
	}
	champion.User = user

	s.notifier.ChampionCrowned(ctx, tournament, champion)
}

// settleCompletion выполняет все последствия завершения матча: продвижение,
// выбывание, таблицу round robin, каскад walkover-матчей и проверку
// завершения турнира. Вызывается внутри транзакции.
func (s *matchService) settleCompletion(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, match *models.Match, winnerID int, outcome *resultOutcome) error {
	// Каскад: авто-завершение walkover-матча может завершить следующий и т.д.
	queue := []matchCompletion{{match: match, winnerID: winnerID}}

	var decisive *matchCompletion
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		loserID := cur.match.OpponentOf(cur.winnerID)

		// Финал определяется отсутствием дальнейшего продвижения победителя.
		// Для round robin связей нет вовсе, там чемпион считается по таблице.
		if tournament.BracketType != models.BracketRoundRobin && cur.match.NextMatchID == nil && cur.match.Side != models.SideLosers {
			c := cur
			decisive = &c
		}

		if err := s.applyElimination(ctx, exec, tournament, cur.match, loserID); err != nil {
			return err
		}

		if tournament.BracketType == models.BracketRoundRobin && loserID != nil {
			if err := s.standingRepo.ApplyResult(ctx, exec, tournament.ID, cur.winnerID, *loserID); err != nil {
				return fmt.Errorf("failed to apply standings for match %d: %w", cur.match.ID, err)
			}
		}

		advanced, err := s.advance(ctx, exec, cur.match, cur.winnerID, loserID)
		if err != nil {
			return err
		}
		queue = append(queue, advancedToCompletions(advanced)...)
	}

	remaining, err := s.matchRepo.CountByStatus(ctx, exec, tournament.ID, models.StatusScheduled)
	if err != nil {
		return fmt.Errorf("failed to count scheduled matches for tournament %d: %w", tournament.ID, err)
	}
	if remaining > 0 {
		return nil
	}

	return s.completeTournament(ctx, exec, tournament, decisive, outcome)
}

func advancedToCompletions(advanced []*models.Match) []matchCompletion {
	out := make([]matchCompletion, 0, len(advanced))
	for _, m := range advanced {
		if m.WinnerParticipantID == nil {
			continue
		}
		out = append(out, matchCompletion{match: m, winnerID: *m.WinnerParticipantID})
	}
	return out
}

// advance помещает победителя (и проигравшего, если есть ссылка) в следующие
// матчи и авто-завершает walkover-матчи, у которых заполнился единственный
// живой слот. Возвращает авто-завершённые матчи для продолжения каскада.
func (s *matchService) advance(ctx context.Context, exec repositories.SQLExecutor, match *models.Match, winnerID int, loserID *int) ([]*models.Match, error) {
	var completed []*models.Match

	if match.NextMatchID != nil && match.WinnerToSlot != nil {
		auto, err := s.fillSlot(ctx, exec, *match.NextMatchID, *match.WinnerToSlot, winnerID)
		if err != nil {
			return nil, fmt.Errorf("failed to advance winner of match %d: %w", match.ID, err)
		}
		if auto != nil {
			completed = append(completed, auto)
		}
	}

	if loserID != nil && match.LoserNextMatchID != nil && match.LoserToSlot != nil {
		auto, err := s.fillSlot(ctx, exec, *match.LoserNextMatchID, *match.LoserToSlot, *loserID)
		if err != nil {
			return nil, fmt.Errorf("failed to advance loser of match %d: %w", match.ID, err)
		}
		if auto != nil {
			completed = append(completed, auto)
		}
	}

	return completed, nil
}

// fillSlot записывает участника в слот целевого матча. Если целевой матч —
// walkover и его единственный живой слот теперь заполнен, матч завершается
// автоматически; такой матч возвращается для каскадного продвижения.
func (s *matchService) fillSlot(ctx context.Context, exec repositories.SQLExecutor, matchID, slot, participantID int) (*models.Match, error) {
	if err := s.matchRepo.SetParticipantSlot(ctx, exec, matchID, slot, participantID); err != nil {
		return nil, fmt.Errorf("failed to set slot %d of match %d: %w", slot, matchID, err)
	}

	target, err := s.matchRepo.GetByID(ctx, exec, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload match %d: %w", matchID, err)
	}
	if !target.Walkover || target.Status != models.StatusScheduled {
		return nil, nil
	}
	ids := target.ParticipantIDs()
	if len(ids) != 1 {
		return nil, nil
	}

	if err := s.matchRepo.RecordResult(ctx, exec, target.ID, ids[0], nil); err != nil {
		return nil, fmt.Errorf("failed to auto-complete walkover match %d: %w", target.ID, err)
	}
	target.Status = models.MatchStatusCompleted
	target.WinnerParticipantID = &ids[0]
	return target, nil
}

// applyElimination отмечает выбывших. В single elimination любое поражение
// финально; в double elimination — только поражение в нижней сетке или
// гранд-финале; в round robin выбывания нет.
func (s *matchService) applyElimination(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, match *models.Match, loserID *int) error {
	if loserID == nil {
		return nil
	}

	eliminated := false
	switch tournament.BracketType {
	case models.BracketSingleElimination:
		eliminated = true
	case models.BracketDoubleElimination:
		eliminated = match.Side == models.SideLosers || match.Side == models.SideGrandFinal
	}
	if !eliminated {
		return nil
	}

	if err := s.participantRepo.SetEliminated(ctx, exec, *loserID); err != nil {
		return fmt.Errorf("failed to mark participant %d eliminated: %w", *loserID, err)
	}
	return nil
}

func (s *matchService) completeTournament(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, decisive *matchCompletion, outcome *resultOutcome) error {
	var championID *int
	var runnerUpID *int

	switch tournament.BracketType {
	case models.BracketRoundRobin:
		standings, err := s.standingRepo.ListByTournament(ctx, exec, tournament.ID)
		if err != nil {
			return fmt.Errorf("failed to load standings for tournament %d: %w", tournament.ID, err)
		}
		if len(standings) > 0 {
			championID = &standings[0].ParticipantID
		}
		if len(standings) > 1 {
			runnerUpID = &standings[1].ParticipantID
		}
	default:
		if decisive == nil {
			return fmt.Errorf("tournament %d has no scheduled matches but no decisive match was completed", tournament.ID)
		}
		id := decisive.winnerID
		championID = &id
		runnerUpID = decisive.match.OpponentOf(id)
	}

	if err := s.tournamentRepo.UpdateStatusIfCurrent(ctx, exec, tournament.ID, models.StatusActive, models.StatusCompleted); err != nil {
		if errors.Is(err, repositories.ErrTournamentStatusConflict) {
			return ErrTournamentInvalidStatusTransition
		}
		return fmt.Errorf("failed to complete tournament %d: %w", tournament.ID, err)
	}
	if err := s.tournamentRepo.UpdateOverallWinner(ctx, exec, tournament.ID, championID); err != nil {
		return fmt.Errorf("failed to set overall winner for tournament %d: %w", tournament.ID, err)
	}

	if championID != nil {
		if err := s.participantRepo.SetFinalRank(ctx, exec, *championID, 1); err != nil {
			return fmt.Errorf("failed to set final rank for champion %d: %w", *championID, err)
		}
	}
	if runnerUpID != nil {
		if err := s.participantRepo.SetFinalRank(ctx, exec, *runnerUpID, 2); err != nil {
			return fmt.Errorf("failed to set final rank for runner-up %d: %w", *runnerUpID, err)
		}
	}

	tournament.Status = models.StatusCompleted
	tournament.OverallWinnerParticipantID = championID
	outcome.tournamentCompleted = true
	outcome.championParticipantID = championID

	s.logger.InfoContext(ctx, "tournament completed",
		slog.Int("tournament_id", tournament.ID),
		slog.Any("champion_participant_id", championID))
	return nil
}

func (s *matchService) broadcastOutcome(ctx context.Context, tournament *models.Tournament, outcome *resultOutcome) {
	if s.hub == nil {
		return
	}
	room := brackets.TournamentRoom(tournament.ID)
	s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
		Type:    brackets.EventMatchUpdated,
		Payload: outcome.match,
		RoomID:  room,
	})
	if outcome.tournamentCompleted {
		s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
			Type: brackets.EventTournamentCompleted,
			Payload: map[string]interface{}{
				"tournament_id":           tournament.ID,
				"winner_participant_id":   outcome.championParticipantID,
				"tournament_bracket_type": tournament.BracketType,
			},
			RoomID: room,
		})
	}
}

func (s *matchService) GetMatchByID(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d: %w", matchID, err)
	}
	return match, nil
}

func (s *matchService) ListMatchesByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for tournament %d: %w", tournamentID, err)
	}
	if matches == nil {
		return []*models.Match{}, nil
	}
	return matches, nil
}
