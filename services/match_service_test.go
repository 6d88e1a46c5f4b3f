package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/tournament-engine/models"
)

// captureNotifier записывает вызовы для проверки адресных уведомлений.
type captureNotifier struct {
	statusChanged int
	registered    int
	crownedIn     []*models.Tournament
	crowned       []*models.Participant
}

func (c *captureNotifier) TournamentStatusChanged(ctx context.Context, tournament *models.Tournament, recipients []models.User) {
	c.statusChanged++
}

func (c *captureNotifier) RegistrationConfirmed(ctx context.Context, tournament *models.Tournament, user *models.User) {
	c.registered++
}

func (c *captureNotifier) ChampionCrowned(ctx context.Context, tournament *models.Tournament, champion *models.Participant) {
	c.crownedIn = append(c.crownedIn, tournament)
	c.crowned = append(c.crowned, champion)
}

func (f *fixture) record(t *testing.T, tournament *models.Tournament, uid string, winnerParticipantID int) *models.Match {
	t.Helper()
	match := f.matchByUID(t, tournament.ID, uid)
	updated, err := f.matches.RecordResult(context.Background(), tournament.OrganizerID, match.ID, RecordResultInput{
		WinnerParticipantID: winnerParticipantID,
	})
	require.NoError(t, err)
	return updated
}

func TestRecordResultErrors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tournament, ps := f.startTournament(t, models.BracketSingleElimination, 4)
	semifinal := f.matchByUID(t, tournament.ID, "WR1M1")

	t.Run("match not found", func(t *testing.T) {
		_, err := f.matches.RecordResult(ctx, tournament.OrganizerID, 99999, RecordResultInput{WinnerParticipantID: ps[0].ID})
		assert.ErrorIs(t, err, ErrMatchNotFound)
	})

	t.Run("only organizer records", func(t *testing.T) {
		stranger := f.createUser(t, models.RoleOrganizer)
		_, err := f.matches.RecordResult(ctx, stranger.ID, semifinal.ID, RecordResultInput{WinnerParticipantID: ps[0].ID})
		assert.ErrorIs(t, err, ErrForbiddenOperation)
	})

	t.Run("winner must play in the match", func(t *testing.T) {
		_, err := f.matches.RecordResult(ctx, tournament.OrganizerID, semifinal.ID, RecordResultInput{WinnerParticipantID: ps[2].ID})
		assert.ErrorIs(t, err, ErrInvalidWinner)
	})

	t.Run("both slots must be filled", func(t *testing.T) {
		final := f.matchByUID(t, tournament.ID, "WR2M1")
		_, err := f.matches.RecordResult(ctx, tournament.OrganizerID, final.ID, RecordResultInput{WinnerParticipantID: ps[0].ID})
		assert.ErrorIs(t, err, ErrMatchSlotsIncomplete)
	})

	t.Run("tournament must be active", func(t *testing.T) {
		other, ops := f.startTournament(t, models.BracketSingleElimination, 2)
		_, err := f.tournaments.CancelTournament(ctx, other.ID, other.OrganizerID)
		require.NoError(t, err)
		m := f.matchByUID(t, other.ID, "WR1M1")
		_, err = f.matches.RecordResult(ctx, other.OrganizerID, m.ID, RecordResultInput{WinnerParticipantID: ops[0].ID})
		assert.ErrorIs(t, err, ErrTournamentNotActive)
	})
}

func TestRecordResultTwiceFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tournament, ps := f.startTournament(t, models.BracketSingleElimination, 4)
	semifinal := f.matchByUID(t, tournament.ID, "WR1M1")

	_, err := f.matches.RecordResult(ctx, tournament.OrganizerID, semifinal.ID, RecordResultInput{WinnerParticipantID: ps[0].ID})
	require.NoError(t, err)

	// Повторная запись — даже с тем же победителем — отклоняется.
	_, err = f.matches.RecordResult(ctx, tournament.OrganizerID, semifinal.ID, RecordResultInput{WinnerParticipantID: ps[0].ID})
	assert.ErrorIs(t, err, ErrMatchAlreadyCompleted)
	_, err = f.matches.RecordResult(ctx, tournament.OrganizerID, semifinal.ID, RecordResultInput{WinnerParticipantID: ps[1].ID})
	assert.ErrorIs(t, err, ErrMatchAlreadyCompleted)

	// Исход не перезаписан.
	reloaded, err := f.matches.GetMatchByID(ctx, semifinal.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.WinnerParticipantID)
	assert.Equal(t, ps[0].ID, *reloaded.WinnerParticipantID)
}

func TestSingleEliminationRun(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tournament, ps := f.startTournament(t, models.BracketSingleElimination, 4)

	// Полуфиналы в обратном порядке: слоты финала не зависят от порядка записи.
	f.record(t, tournament, "WR1M2", ps[3].ID)
	final := f.matchByUID(t, tournament.ID, "WR2M1")
	assert.Nil(t, final.P1ParticipantID)
	require.NotNil(t, final.P2ParticipantID)
	assert.Equal(t, ps[3].ID, *final.P2ParticipantID)

	f.record(t, tournament, "WR1M1", ps[0].ID)
	final = f.matchByUID(t, tournament.ID, "WR2M1")
	require.NotNil(t, final.P1ParticipantID)
	assert.Equal(t, ps[0].ID, *final.P1ParticipantID)

	// Проигравшие полуфиналов выбыли сразу.
	for _, loser := range []int{ps[1].ID, ps[2].ID} {
		p, err := f.participantRepo.FindByID(ctx, loser)
		require.NoError(t, err)
		assert.True(t, p.Eliminated)
	}

	f.record(t, tournament, "WR2M1", ps[0].ID)

	completed, err := f.tournaments.GetTournamentByID(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)
	require.NotNil(t, completed.OverallWinnerParticipantID)
	assert.Equal(t, ps[0].ID, *completed.OverallWinnerParticipantID)

	champion, err := f.participantRepo.FindByID(ctx, ps[0].ID)
	require.NoError(t, err)
	assert.False(t, champion.Eliminated)
	require.NotNil(t, champion.FinalRank)
	assert.Equal(t, 1, *champion.FinalRank)

	runnerUp, err := f.participantRepo.FindByID(ctx, ps[3].ID)
	require.NoError(t, err)
	assert.True(t, runnerUp.Eliminated)
	require.NotNil(t, runnerUp.FinalRank)
	assert.Equal(t, 2, *runnerUp.FinalRank)
}

func TestSingleEliminationWalkoverCascade(t *testing.T) {
	f := newFixture()
	tournament, ps := f.startTournament(t, models.BracketSingleElimination, 6)

	// WR2M2 — walkover: его единственный источник — WR1M3.
	walkover := f.matchByUID(t, tournament.ID, "WR2M2")
	require.True(t, walkover.Walkover)
	assert.Equal(t, models.StatusScheduled, walkover.Status)

	f.record(t, tournament, "WR1M3", ps[4].ID)

	// Продвижение заполнило единственный слот — матч завершился сам и
	// провёл участника дальше, в финал.
	walkover = f.matchByUID(t, tournament.ID, "WR2M2")
	assert.Equal(t, models.MatchStatusCompleted, walkover.Status)
	require.NotNil(t, walkover.WinnerParticipantID)
	assert.Equal(t, ps[4].ID, *walkover.WinnerParticipantID)

	final := f.matchByUID(t, tournament.ID, "WR3M1")
	require.NotNil(t, final.P2ParticipantID)
	assert.Equal(t, ps[4].ID, *final.P2ParticipantID)
}

func TestDoubleEliminationRun(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tournament, ps := f.startTournament(t, models.BracketDoubleElimination, 4)

	// Верхняя сетка: ps[0] и ps[2] проходят, проигравшие падают вниз.
	f.record(t, tournament, "WR1M1", ps[0].ID)
	f.record(t, tournament, "WR1M2", ps[2].ID)

	lower := f.matchByUID(t, tournament.ID, "LR1M1")
	require.NotNil(t, lower.P1ParticipantID)
	require.NotNil(t, lower.P2ParticipantID)
	assert.Equal(t, ps[1].ID, *lower.P1ParticipantID)
	assert.Equal(t, ps[3].ID, *lower.P2ParticipantID)

	// Первое поражение в double elimination не выбивает из турнира.
	for _, id := range []int{ps[1].ID, ps[3].ID} {
		p, err := f.participantRepo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.False(t, p.Eliminated)
	}

	// Финал верхней сетки: ps[0] в гранд-финал, ps[2] — в нижнюю сетку.
	f.record(t, tournament, "WR2M1", ps[0].ID)
	lowerFinal := f.matchByUID(t, tournament.ID, "LR2M1")
	require.NotNil(t, lowerFinal.P2ParticipantID)
	assert.Equal(t, ps[2].ID, *lowerFinal.P2ParticipantID)

	// Нижняя сетка: поражение здесь финально.
	f.record(t, tournament, "LR1M1", ps[1].ID)
	eliminated, err := f.participantRepo.FindByID(ctx, ps[3].ID)
	require.NoError(t, err)
	assert.True(t, eliminated.Eliminated)

	f.record(t, tournament, "LR2M1", ps[1].ID)

	// Гранд-финал: победитель нижней сетки против непобеждённого.
	grandFinal := f.matchByUID(t, tournament.ID, "GF")
	require.NotNil(t, grandFinal.P1ParticipantID)
	require.NotNil(t, grandFinal.P2ParticipantID)
	assert.Equal(t, ps[0].ID, *grandFinal.P1ParticipantID)
	assert.Equal(t, ps[1].ID, *grandFinal.P2ParticipantID)

	f.record(t, tournament, "GF", ps[1].ID)

	completed, err := f.tournaments.GetTournamentByID(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)
	require.NotNil(t, completed.OverallWinnerParticipantID)
	assert.Equal(t, ps[1].ID, *completed.OverallWinnerParticipantID)

	runnerUp, err := f.participantRepo.FindByID(ctx, ps[0].ID)
	require.NoError(t, err)
	assert.True(t, runnerUp.Eliminated)
	require.NotNil(t, runnerUp.FinalRank)
	assert.Equal(t, 2, *runnerUp.FinalRank)
}

func TestRoundRobinStandingsAndChampion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tournament, ps := f.startTournament(t, models.BracketRoundRobin, 3)

	matches, err := f.matches.ListMatchesByTournament(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	// ps[0] выигрывает оба матча, ps[1] — один.
	for _, m := range matches {
		winner := ps[1].ID
		if m.HasParticipant(ps[0].ID) {
			winner = ps[0].ID
		}
		_, err := f.matches.RecordResult(ctx, tournament.OrganizerID, m.ID, RecordResultInput{WinnerParticipantID: winner})
		require.NoError(t, err)
	}

	standings, err := f.bracketSvc.GetStandings(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, standings, 3)

	assert.Equal(t, ps[0].ID, standings[0].ParticipantID)
	assert.Equal(t, 2, standings[0].Wins)
	assert.Equal(t, 6, standings[0].Points)
	assert.Equal(t, 2, standings[0].GamesPlayed)

	assert.Equal(t, ps[1].ID, standings[1].ParticipantID)
	assert.Equal(t, 1, standings[1].Wins)
	assert.Equal(t, 3, standings[1].Points)

	assert.Equal(t, ps[2].ID, standings[2].ParticipantID)
	assert.Equal(t, 0, standings[2].Wins)
	assert.Equal(t, 2, standings[2].Losses)

	// Чемпион взят из таблицы; в round robin никто не выбывает.
	completed, err := f.tournaments.GetTournamentByID(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)
	require.NotNil(t, completed.OverallWinnerParticipantID)
	assert.Equal(t, ps[0].ID, *completed.OverallWinnerParticipantID)

	for i, id := range []int{ps[0].ID, ps[1].ID, ps[2].ID} {
		p, err := f.participantRepo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.False(t, p.Eliminated)
		if i < 2 {
			require.NotNil(t, p.FinalRank)
			assert.Equal(t, i+1, *p.FinalRank)
		} else {
			assert.Nil(t, p.FinalRank)
		}
	}
}

func TestRecordResultNotifiesChampion(t *testing.T) {
	f := newFixture()
	capture := &captureNotifier{}
	f.matches = NewMatchService(
		f.matchRepo, f.tournamentRepo, f.participantRepo, f.standingRepo, f.userRepo,
		f.store, nil, capture, slog.New(slog.NewTextHandler(io.Discard, nil)))

	tournament, ps := f.startTournament(t, models.BracketSingleElimination, 4)

	// Промежуточные матчи чемпиона не объявляют.
	f.record(t, tournament, "WR1M1", ps[0].ID)
	f.record(t, tournament, "WR1M2", ps[2].ID)
	assert.Empty(t, capture.crowned)

	f.record(t, tournament, "WR2M1", ps[0].ID)

	require.Len(t, capture.crowned, 1)
	champion := capture.crowned[0]
	assert.Equal(t, ps[0].ID, champion.ID)
	require.NotNil(t, champion.User, "уведомление адресное: участник приходит с пользователем")
	assert.Equal(t, ps[0].UserID, champion.User.ID)
	assert.NotEmpty(t, champion.User.Email)
	assert.Equal(t, tournament.ID, capture.crownedIn[0].ID)
}

func TestRoundRobinTieBreakPrefersSeed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	organizer := f.createUser(t, models.RoleOrganizer)
	tournament := f.createTournament(t, organizer.ID, models.BracketRoundRobin, 2, 3)
	_, err := f.tournaments.OpenRegistration(ctx, tournament.ID, organizer.ID)
	require.NoError(t, err)

	// Сиды в порядке, обратном регистрации: лучший сид у последнего
	// зарегистрировавшегося.
	ps := make([]*models.Participant, 0, 3)
	for _, seed := range []int{3, 2, 1} {
		user := f.createUser(t, models.RolePlayer)
		s := seed
		p, err := f.participants.Register(ctx, user.ID, tournament.ID, RegisterParticipantInput{Seed: &s})
		require.NoError(t, err)
		ps = append(ps, p)
	}
	_, err = f.tournaments.CloseRegistration(ctx, tournament.ID, organizer.ID)
	require.NoError(t, err)
	_, err = f.tournaments.StartTournament(ctx, tournament.ID, organizer.ID)
	require.NoError(t, err)

	// Круговая ничья: у каждого ровно одна победа и одно поражение.
	pair := func(a, b int) [2]int {
		if a > b {
			a, b = b, a
		}
		return [2]int{a, b}
	}
	winners := map[[2]int]int{
		pair(ps[2].ID, ps[1].ID): ps[2].ID,
		pair(ps[1].ID, ps[0].ID): ps[1].ID,
		pair(ps[0].ID, ps[2].ID): ps[0].ID,
	}

	matches, err := f.matches.ListMatchesByTournament(ctx, tournament.ID)
	require.NoError(t, err)
	for _, m := range matches {
		winner := winners[pair(*m.P1ParticipantID, *m.P2ParticipantID)]
		_, err := f.matches.RecordResult(ctx, tournament.OrganizerID, m.ID, RecordResultInput{WinnerParticipantID: winner})
		require.NoError(t, err)
	}

	// При равенстве очков и побед таблицу упорядочивает сид.
	standings, err := f.bracketSvc.GetStandings(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, standings, 3)
	assert.Equal(t, ps[2].ID, standings[0].ParticipantID)
	assert.Equal(t, ps[1].ID, standings[1].ParticipantID)
	assert.Equal(t, ps[0].ID, standings[2].ParticipantID)

	completed, err := f.tournaments.GetTournamentByID(ctx, tournament.ID)
	require.NoError(t, err)
	require.NotNil(t, completed.OverallWinnerParticipantID)
	assert.Equal(t, ps[2].ID, *completed.OverallWinnerParticipantID)

	champion, err := f.participantRepo.FindByID(ctx, ps[2].ID)
	require.NoError(t, err)
	require.NotNil(t, champion.FinalRank)
	assert.Equal(t, 1, *champion.FinalRank)
}

func TestRecordResultKeepsScore(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tournament, ps := f.startTournament(t, models.BracketSingleElimination, 2)

	match := f.matchByUID(t, tournament.ID, "WR1M1")
	score := "6:4 7:5"
	updated, err := f.matches.RecordResult(ctx, tournament.OrganizerID, match.ID, RecordResultInput{
		WinnerParticipantID: ps[0].ID,
		Score:               &score,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Score)
	assert.Equal(t, score, *updated.Score)

	// Единственный матч и был финалом.
	completed, err := f.tournaments.GetTournamentByID(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)
}
