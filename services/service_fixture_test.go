package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/courtside/tournament-engine/models"
	"github.com/courtside/tournament-engine/repositories"
)

// fixture собирает сервисы поверх in-memory хранилища. Хаб, загрузчик файлов
// и почта в юнит-тестах не нужны: nil-хаб и nop-нотификатор отключают их.
type fixture struct {
	store           *repositories.MemoryStore
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	standingRepo    repositories.StandingRepository
	userRepo        repositories.UserRepository

	auth         AuthService
	tournaments  TournamentService
	participants ParticipantService
	matches      MatchService
	bracketSvc   BracketService
}

func newFixture() *fixture {
	store := repositories.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tournamentRepo := repositories.NewMemoryTournamentRepository(store)
	participantRepo := repositories.NewMemoryParticipantRepository(store)
	matchRepo := repositories.NewMemoryMatchRepository(store)
	standingRepo := repositories.NewMemoryStandingRepository(store)
	userRepo := repositories.NewMemoryUserRepository(store)

	bracketSvc := NewBracketService(tournamentRepo, participantRepo, matchRepo, standingRepo, nil, logger)

	return &fixture{
		store:           store,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		standingRepo:    standingRepo,
		userRepo:        userRepo,

		auth: NewAuthService(userRepo, "test-secret", time.Hour),
		tournaments: NewTournamentService(
			tournamentRepo, participantRepo, userRepo, standingRepo,
			bracketSvc, store, nil, NewNopNotifier(), nil, logger),
		participants: NewParticipantService(
			participantRepo, tournamentRepo, userRepo, nil, NewNopNotifier(), nil, logger),
		matches: NewMatchService(
			matchRepo, tournamentRepo, participantRepo, standingRepo, userRepo,
			store, nil, NewNopNotifier(), logger),
		bracketSvc: bracketSvc,
	}
}

var fixtureSeq atomic.Int64

func (f *fixture) createUser(t *testing.T, role models.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		FirstName:    "Test",
		LastName:     "User",
		Email:        fmt.Sprintf("user%d@example.com", fixtureSeq.Add(1)),
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, f.userRepo.Create(context.Background(), user))
	return user
}

func (f *fixture) createTournament(t *testing.T, organizerID int, bracketType models.BracketType, min, max int) *models.Tournament {
	t.Helper()
	now := time.Now()
	tournament, err := f.tournaments.CreateTournament(context.Background(), organizerID, CreateTournamentInput{
		Name:                 fmt.Sprintf("Open %d", fixtureSeq.Add(1)),
		BracketType:          bracketType,
		MinParticipants:      min,
		MaxParticipants:      max,
		RegistrationDeadline: now.Add(1 * time.Hour),
		StartDate:            now.Add(2 * time.Hour),
		EndDate:              now.Add(8 * time.Hour),
	})
	require.NoError(t, err)
	return tournament
}

// registerPlayers открывает регистрацию и добавляет n игроков, возвращая
// их записи участников в порядке регистрации.
func (f *fixture) registerPlayers(t *testing.T, tournament *models.Tournament, n int) []*models.Participant {
	t.Helper()
	ctx := context.Background()

	_, err := f.tournaments.OpenRegistration(ctx, tournament.ID, tournament.OrganizerID)
	require.NoError(t, err)

	out := make([]*models.Participant, 0, n)
	for i := 0; i < n; i++ {
		user := f.createUser(t, models.RolePlayer)
		seed := i + 1
		p, err := f.participants.Register(ctx, user.ID, tournament.ID, RegisterParticipantInput{Seed: &seed})
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

// startTournament доводит турнир до active с n участниками и возвращает
// турнир с сеткой и список участников по сиду.
func (f *fixture) startTournament(t *testing.T, bracketType models.BracketType, n int) (*models.Tournament, []*models.Participant) {
	t.Helper()
	ctx := context.Background()

	organizer := f.createUser(t, models.RoleOrganizer)
	tournament := f.createTournament(t, organizer.ID, bracketType, 2, n)
	participants := f.registerPlayers(t, tournament, n)

	_, err := f.tournaments.CloseRegistration(ctx, tournament.ID, organizer.ID)
	require.NoError(t, err)
	started, err := f.tournaments.StartTournament(ctx, tournament.ID, organizer.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, started.Status)

	return started, participants
}

func (f *fixture) matchByUID(t *testing.T, tournamentID int, uid string) *models.Match {
	t.Helper()
	matches, err := f.matches.ListMatchesByTournament(context.Background(), tournamentID)
	require.NoError(t, err)
	for _, m := range matches {
		if m.BracketUID == uid {
			return m
		}
	}
	t.Fatalf("match %s not found in tournament %d", uid, tournamentID)
	return nil
}
