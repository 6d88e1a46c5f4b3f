package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/courtside/tournament-engine/brackets"
	"github.com/courtside/tournament-engine/models"
	"github.com/courtside/tournament-engine/repositories"
	"github.com/courtside/tournament-engine/storage"
)

type BracketService interface {
	// SaveBracket сохраняет сгенерированную сетку внутри уже открытой транзакции.
	SaveBracket(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, generated []*brackets.BracketMatch) ([]*models.Match, error)
	GetBracket(ctx context.Context, tournamentID int) (*models.Tournament, error)
	GetStandings(ctx context.Context, tournamentID int) ([]*models.Standing, error)
}

type bracketService struct {
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	standingRepo    repositories.StandingRepository
	uploader        storage.FileUploader
	logger          *slog.Logger
}

func NewBracketService(
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	standingRepo repositories.StandingRepository,
	uploader storage.FileUploader,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		standingRepo:    standingRepo,
		uploader:        uploader,
		logger:          logger,
	}
}

func (s *bracketService) SaveBracket(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, generated []*brackets.BracketMatch) ([]*models.Match, error) {
	if len(generated) == 0 {
		return nil, fmt.Errorf("bracket generation produced no matches for tournament %d", tournament.ID)
	}

	uidToDBID := make(map[string]int, len(generated))
	saved := make([]*models.Match, 0, len(generated))

	// ПЕРВЫЙ ПРОХОД: создаём все матчи, запоминая соответствие UID -> ID в БД.
	for _, bm := range generated {
		match := &models.Match{
			TournamentID:    tournament.ID,
			Side:            bm.Side,
			Round:           bm.Round,
			OrderInRound:    bm.OrderInRound,
			BracketUID:      bm.UID,
			P1ParticipantID: bm.Participant1ID,
			P2ParticipantID: bm.Participant2ID,
			Status:          models.StatusScheduled,
			Walkover:        bm.Walkover,
			MatchTime:       tournament.StartDate,
		}
		if bm.Completed {
			// Bye или мёртвая ветка решаются ещё на этапе генерации.
			match.Status = models.MatchStatusCompleted
			match.WinnerParticipantID = bm.WinnerID
		}

		if err := s.matchRepo.Create(ctx, exec, match); err != nil {
			return nil, fmt.Errorf("failed to create match %s for tournament %d: %w", bm.UID, tournament.ID, err)
		}
		uidToDBID[bm.UID] = match.ID
		saved = append(saved, match)
	}

	// ВТОРОЙ ПРОХОД: переводим UID-ссылки продвижения в ID матчей в БД.
	for i, bm := range generated {
		if bm.WinnerToUID == nil && bm.LoserToUID == nil {
			continue
		}

		var nextID, winnerSlot, loserNextID, loserSlot *int
		if bm.WinnerToUID != nil {
			id, ok := uidToDBID[*bm.WinnerToUID]
			if !ok {
				return nil, fmt.Errorf("match %s links winner to unknown match %s", bm.UID, *bm.WinnerToUID)
			}
			slot := bm.WinnerToSlot
			nextID, winnerSlot = &id, &slot
		}
		if bm.LoserToUID != nil {
			id, ok := uidToDBID[*bm.LoserToUID]
			if !ok {
				return nil, fmt.Errorf("match %s links loser to unknown match %s", bm.UID, *bm.LoserToUID)
			}
			slot := bm.LoserToSlot
			loserNextID, loserSlot = &id, &slot
		}

		matchID := uidToDBID[bm.UID]
		if err := s.matchRepo.UpdateAdvancementLinks(ctx, exec, matchID, nextID, winnerSlot, loserNextID, loserSlot); err != nil {
			return nil, fmt.Errorf("failed to link match %s: %w", bm.UID, err)
		}
		saved[i].NextMatchID = nextID
		saved[i].WinnerToSlot = winnerSlot
		saved[i].LoserNextMatchID = loserNextID
		saved[i].LoserToSlot = loserSlot
	}

	return saved, nil
}

func (s *bracketService) GetBracket(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", tournamentID, err)
	}
	populateTournamentLogoURL(tournament, s.uploader)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		participants, err := s.participantRepo.ListByTournament(gCtx, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to list participants for tournament %d: %w", tournamentID, err)
		}
		populateParticipantListDetails(participants, s.uploader)
		tournament.Participants = participantsToValues(participants)
		return nil
	})

	g.Go(func() error {
		matches, err := s.matchRepo.ListByTournament(gCtx, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to list matches for tournament %d: %w", tournamentID, err)
		}
		tournament.Matches = matchesToValues(matches)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tournament, nil
}

func (s *bracketService) GetStandings(ctx context.Context, tournamentID int) ([]*models.Standing, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", tournamentID, err)
	}

	standings, err := s.standingRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list standings for tournament %d: %w", tournamentID, err)
	}
	if standings == nil {
		return []*models.Standing{}, nil
	}
	return standings, nil
}
