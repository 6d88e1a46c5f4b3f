package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/tournament-engine/models"
)

func TestCreateTournamentValidation(t *testing.T) {
	f := newFixture()
	organizer := f.createUser(t, models.RoleOrganizer)
	now := time.Now()

	valid := CreateTournamentInput{
		Name:                 "Spring Open",
		BracketType:          models.BracketSingleElimination,
		MinParticipants:      2,
		MaxParticipants:      8,
		RegistrationDeadline: now.Add(time.Hour),
		StartDate:            now.Add(2 * time.Hour),
		EndDate:              now.Add(3 * time.Hour),
	}

	cases := []struct {
		name    string
		mutate  func(in *CreateTournamentInput)
		wantErr error
	}{
		{"empty name", func(in *CreateTournamentInput) { in.Name = "  " }, ErrTournamentNameRequired},
		{"unknown bracket", func(in *CreateTournamentInput) { in.BracketType = "swiss" }, ErrTournamentInvalidBracket},
		{"unknown format", func(in *CreateTournamentInput) { in.Format = "trios" }, ErrTournamentInvalidFormat},
		{"min below two", func(in *CreateTournamentInput) { in.MinParticipants = 1 }, ErrTournamentInvalidCapacity},
		{"max below min", func(in *CreateTournamentInput) { in.MaxParticipants = 1 }, ErrTournamentInvalidCapacity},
		{"zero dates", func(in *CreateTournamentInput) { in.StartDate = time.Time{} }, ErrTournamentDatesRequired},
		{"deadline after start", func(in *CreateTournamentInput) { in.RegistrationDeadline = in.StartDate.Add(time.Minute) }, ErrTournamentInvalidRegDate},
		{"end before start", func(in *CreateTournamentInput) { in.EndDate = in.StartDate.Add(-time.Minute) }, ErrTournamentInvalidDateRange},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			_, err := f.tournaments.CreateTournament(context.Background(), organizer.ID, in)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	tournament, err := f.tournaments.CreateTournament(context.Background(), organizer.ID, valid)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, tournament.Status)
	assert.Equal(t, models.FormatSingles, tournament.Format, "формат по умолчанию — singles")

	// Повторное имя у того же организатора запрещено.
	_, err = f.tournaments.CreateTournament(context.Background(), organizer.ID, valid)
	assert.ErrorIs(t, err, ErrTournamentNameConflict)
}

func TestTournamentLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	organizer := f.createUser(t, models.RoleOrganizer)
	tournament := f.createTournament(t, organizer.ID, models.BracketSingleElimination, 2, 8)

	// draft -> registration -> registration_closed -> active
	opened, err := f.tournaments.OpenRegistration(ctx, tournament.ID, organizer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRegistration, opened.Status)

	for i := 0; i < 4; i++ {
		user := f.createUser(t, models.RolePlayer)
		_, err := f.participants.Register(ctx, user.ID, tournament.ID, RegisterParticipantInput{})
		require.NoError(t, err)
	}

	closed, err := f.tournaments.CloseRegistration(ctx, tournament.ID, organizer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRegistrationClosed, closed.Status)

	started, err := f.tournaments.StartTournament(ctx, tournament.ID, organizer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, started.Status)
	assert.Len(t, started.Matches, 3)
	assert.Len(t, started.Participants, 4)
}

func TestTournamentLifecycleRejectsInvalidTransitions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	organizer := f.createUser(t, models.RoleOrganizer)
	tournament := f.createTournament(t, organizer.ID, models.BracketSingleElimination, 2, 8)

	// Из draft нельзя ни закрыть регистрацию, ни стартовать.
	_, err := f.tournaments.CloseRegistration(ctx, tournament.ID, organizer.ID)
	assert.ErrorIs(t, err, ErrTournamentInvalidStatusTransition)
	_, err = f.tournaments.StartTournament(ctx, tournament.ID, organizer.ID)
	assert.ErrorIs(t, err, ErrTournamentInvalidStatusTransition)

	// Повторное открытие регистрации — ошибка.
	_, err = f.tournaments.OpenRegistration(ctx, tournament.ID, organizer.ID)
	require.NoError(t, err)
	_, err = f.tournaments.OpenRegistration(ctx, tournament.ID, organizer.ID)
	assert.ErrorIs(t, err, ErrTournamentInvalidStatusTransition)
}

func TestCloseRegistrationIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	organizer := f.createUser(t, models.RoleOrganizer)
	tournament := f.createTournament(t, organizer.ID, models.BracketSingleElimination, 2, 8)
	f.registerPlayers(t, tournament, 2)

	first, err := f.tournaments.CloseRegistration(ctx, tournament.ID, organizer.ID)
	require.NoError(t, err)
	second, err := f.tournaments.CloseRegistration(ctx, tournament.ID, organizer.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
}

func TestTournamentOperationsRequireOrganizer(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	organizer := f.createUser(t, models.RoleOrganizer)
	intruder := f.createUser(t, models.RoleOrganizer)
	tournament := f.createTournament(t, organizer.ID, models.BracketSingleElimination, 2, 8)

	_, err := f.tournaments.OpenRegistration(ctx, tournament.ID, intruder.ID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)
	_, err = f.tournaments.CancelTournament(ctx, tournament.ID, intruder.ID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)
	_, err = f.tournaments.StartTournament(ctx, tournament.ID, intruder.ID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestCancelTournament(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	organizer := f.createUser(t, models.RoleOrganizer)

	// Отмена возможна из любого нетерминального статуса.
	draft := f.createTournament(t, organizer.ID, models.BracketSingleElimination, 2, 8)
	canceled, err := f.tournaments.CancelTournament(ctx, draft.ID, organizer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, canceled.Status)

	// Повторная отмена — уже терминальный статус.
	_, err = f.tournaments.CancelTournament(ctx, draft.ID, organizer.ID)
	assert.ErrorIs(t, err, ErrTournamentInvalidStatusTransition)

	open := f.createTournament(t, organizer.ID, models.BracketSingleElimination, 2, 8)
	f.registerPlayers(t, open, 2)
	canceled, err = f.tournaments.CancelTournament(ctx, open.ID, organizer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, canceled.Status)
}

func TestStartTournamentRequiresEnoughParticipants(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	organizer := f.createUser(t, models.RoleOrganizer)
	tournament := f.createTournament(t, organizer.ID, models.BracketSingleElimination, 4, 8)
	f.registerPlayers(t, tournament, 3)

	_, err := f.tournaments.CloseRegistration(ctx, tournament.ID, organizer.ID)
	require.NoError(t, err)

	_, err = f.tournaments.StartTournament(ctx, tournament.ID, organizer.ID)
	assert.ErrorIs(t, err, ErrInsufficientParticipants)

	// Несостоявшийся старт не меняет статус и не оставляет матчей.
	reloaded, err := f.tournaments.GetTournamentByID(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRegistrationClosed, reloaded.Status)
	matches, err := f.matches.ListMatchesByTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestStartTournamentConcurrentSingleWinner(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	organizer := f.createUser(t, models.RoleOrganizer)
	tournament := f.createTournament(t, organizer.ID, models.BracketSingleElimination, 2, 8)
	f.registerPlayers(t, tournament, 4)
	_, err := f.tournaments.CloseRegistration(ctx, tournament.ID, organizer.ID)
	require.NoError(t, err)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.tournaments.StartTournament(ctx, tournament.ID, organizer.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrTournamentInvalidStatusTransition)
		}
	}
	assert.Equal(t, 1, succeeded, "стартовать турнир должен ровно один вызов")

	// Сетка сохранена ровно один раз.
	matches, err := f.matches.ListMatchesByTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestStartRoundRobinInitialisesStandings(t *testing.T) {
	f := newFixture()
	tournament, participants := f.startTournament(t, models.BracketRoundRobin, 3)

	standings, err := f.bracketSvc.GetStandings(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Len(t, standings, len(participants))
	for _, st := range standings {
		assert.Zero(t, st.GamesPlayed)
		assert.Zero(t, st.Points)
	}
}

func TestGetBracketReturnsParticipantsAndMatches(t *testing.T) {
	f := newFixture()
	tournament, participants := f.startTournament(t, models.BracketSingleElimination, 4)

	bracket, err := f.bracketSvc.GetBracket(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Len(t, bracket.Participants, len(participants))
	assert.Len(t, bracket.Matches, 3)
}
