package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/courtside/tournament-engine/models"
)

// MemoryStore — in-memory реализация порта хранилища с теми же CAS
// семантиками, что и у postgres-репозиториев. Используется юнит-тестами.
//
// Каждый метод репозитория атомарен (общий мьютекс), поэтому RunInTx не
// блокирует хранилище целиком: сервисы построены так, что первая операция
// внутри транзакции — compare-and-set, и после её успеха остальные записи
// не конфликтуют.
type MemoryStore struct {
	mu sync.Mutex

	tournaments  map[int]*models.Tournament
	participants map[int]*models.Participant
	matches      map[int]*models.Match
	users        map[int]*models.User
	standings    map[int]*models.Standing

	nextTournamentID  int
	nextParticipantID int
	nextMatchID       int
	nextUserID        int
	nextStandingID    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tournaments:       make(map[int]*models.Tournament),
		participants:      make(map[int]*models.Participant),
		matches:           make(map[int]*models.Match),
		users:             make(map[int]*models.User),
		standings:         make(map[int]*models.Standing),
		nextTournamentID:  1,
		nextParticipantID: 1,
		nextMatchID:       1,
		nextUserID:        1,
		nextStandingID:    1,
	}
}

// RunInTx implements Transactor. Rollback is not supported: callers perform
// their compare-and-set first, so a failed transaction has written nothing.
func (s *MemoryStore) RunInTx(ctx context.Context, fn func(exec SQLExecutor) error) error {
	return fn(nil)
}

func cloneTournament(t *models.Tournament) *models.Tournament {
	c := *t
	return &c
}

func cloneParticipant(p *models.Participant) *models.Participant {
	c := *p
	return &c
}

func cloneMatch(m *models.Match) *models.Match {
	c := *m
	return &c
}

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}

func cloneStanding(st *models.Standing) *models.Standing {
	c := *st
	return &c
}

// --- TournamentRepository ---

type memoryTournamentRepository struct {
	s *MemoryStore
}

func NewMemoryTournamentRepository(s *MemoryStore) TournamentRepository {
	return &memoryTournamentRepository{s: s}
}

func (r *memoryTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.tournaments {
		if existing.OrganizerID == t.OrganizerID && existing.Name == t.Name {
			return ErrTournamentNameConflict
		}
	}

	t.ID = r.s.nextTournamentID
	r.s.nextTournamentID++
	t.CreatedAt = time.Now()
	r.s.tournaments[t.ID] = cloneTournament(t)
	return nil
}

func (r *memoryTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tournaments[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	return cloneTournament(t), nil
}

func (r *memoryTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]models.Tournament, 0)
	for _, t := range r.s.tournaments {
		if filter.OrganizerID != nil && t.OrganizerID != *filter.OrganizerID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.BracketType != nil && t.BracketType != *filter.BracketType {
			continue
		}
		out = append(out, *cloneTournament(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []models.Tournament{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memoryTournamentRepository) UpdateStatusIfCurrent(ctx context.Context, exec SQLExecutor, id int, from, to models.TournamentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tournaments[id]
	if !ok || t.Status != from {
		return ErrTournamentStatusConflict
	}
	t.Status = to
	return nil
}

func (r *memoryTournamentRepository) UpdateOverallWinner(ctx context.Context, exec SQLExecutor, tournamentID int, winnerParticipantID *int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tournaments[tournamentID]
	if !ok {
		return ErrTournamentNotFound
	}
	t.OverallWinnerParticipantID = winnerParticipantID
	return nil
}

func (r *memoryTournamentRepository) UpdateLogoKey(ctx context.Context, tournamentID int, logoKey *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tournaments[tournamentID]
	if !ok {
		return ErrTournamentNotFound
	}
	t.LogoKey = logoKey
	return nil
}

// --- ParticipantRepository ---

type memoryParticipantRepository struct {
	s *MemoryStore
}

func NewMemoryParticipantRepository(s *MemoryStore) ParticipantRepository {
	return &memoryParticipantRepository{s: s}
}

func (r *memoryParticipantRepository) CreateWithinCapacity(ctx context.Context, exec SQLExecutor, p *models.Participant, maxParticipants int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	count := 0
	for _, existing := range r.s.participants {
		if existing.TournamentID != p.TournamentID {
			continue
		}
		if existing.UserID == p.UserID {
			return ErrParticipantConflict
		}
		count++
	}
	if count >= maxParticipants {
		return ErrTournamentCapacityReached
	}

	p.ID = r.s.nextParticipantID
	r.s.nextParticipantID++
	p.RegisteredAt = time.Now()
	r.s.participants[p.ID] = cloneParticipant(p)
	return nil
}

func (r *memoryParticipantRepository) FindByID(ctx context.Context, id int) (*models.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.participants[id]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	return cloneParticipant(p), nil
}

func (r *memoryParticipantRepository) FindByUserAndTournament(ctx context.Context, userID, tournamentID int) (*models.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, p := range r.s.participants {
		if p.UserID == userID && p.TournamentID == tournamentID {
			return cloneParticipant(p), nil
		}
	}
	return nil, ErrParticipantNotFound
}

func (r *memoryParticipantRepository) DeleteByUserAndTournament(ctx context.Context, exec SQLExecutor, userID, tournamentID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, p := range r.s.participants {
		if p.UserID == userID && p.TournamentID == tournamentID {
			delete(r.s.participants, id)
			return nil
		}
	}
	return ErrParticipantNotFound
}

func (r *memoryParticipantRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*models.Participant, 0)
	for _, p := range r.s.participants {
		if p.TournamentID == tournamentID {
			out = append(out, cloneParticipant(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].Seed, out[j].Seed
		switch {
		case si != nil && sj != nil && *si != *sj:
			return *si < *sj
		case si != nil && sj == nil:
			return true
		case si == nil && sj != nil:
			return false
		}
		if !out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].RegisteredAt.Before(out[j].RegisteredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryParticipantRepository) CountByTournament(ctx context.Context, tournamentID int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	count := 0
	for _, p := range r.s.participants {
		if p.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

func (r *memoryParticipantRepository) SetEliminated(ctx context.Context, exec SQLExecutor, participantID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.participants[participantID]
	if !ok {
		return ErrParticipantNotFound
	}
	p.Eliminated = true
	return nil
}

func (r *memoryParticipantRepository) SetFinalRank(ctx context.Context, exec SQLExecutor, participantID, rank int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.participants[participantID]
	if !ok {
		return ErrParticipantNotFound
	}
	p.FinalRank = &rank
	return nil
}

// --- MatchRepository ---

type memoryMatchRepository struct {
	s *MemoryStore
}

func NewMemoryMatchRepository(s *MemoryStore) MatchRepository {
	return &memoryMatchRepository{s: s}
}

func (r *memoryMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	match.ID = r.s.nextMatchID
	r.s.nextMatchID++
	match.CreatedAt = time.Now()
	r.s.matches[match.ID] = cloneMatch(match)
	return nil
}

func (r *memoryMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return cloneMatch(m), nil
}

func (r *memoryMatchRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*models.Match, 0)
	for _, m := range r.s.matches {
		if m.TournamentID == tournamentID {
			out = append(out, cloneMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Side != out[j].Side {
			return out[i].Side < out[j].Side
		}
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].OrderInRound < out[j].OrderInRound
	})
	return out, nil
}

func (r *memoryMatchRepository) UpdateAdvancementLinks(ctx context.Context, exec SQLExecutor, matchID int, nextMatchID, winnerToSlot, loserNextMatchID, loserToSlot *int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.matches[matchID]
	if !ok {
		return ErrMatchNotFound
	}
	m.NextMatchID = nextMatchID
	m.WinnerToSlot = winnerToSlot
	m.LoserNextMatchID = loserNextMatchID
	m.LoserToSlot = loserToSlot
	return nil
}

func (r *memoryMatchRepository) RecordResult(ctx context.Context, exec SQLExecutor, matchID, winnerParticipantID int, score *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.matches[matchID]
	if !ok || m.Status != models.StatusScheduled {
		return ErrMatchNotScheduled
	}
	m.Status = models.MatchStatusCompleted
	m.WinnerParticipantID = &winnerParticipantID
	m.Score = score
	return nil
}

func (r *memoryMatchRepository) SetParticipantSlot(ctx context.Context, exec SQLExecutor, matchID, slot, participantID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.matches[matchID]
	if !ok {
		return ErrMatchNotFound
	}
	switch slot {
	case 1:
		if m.P1ParticipantID != nil {
			return ErrMatchSlotOccupied
		}
		m.P1ParticipantID = &participantID
	case 2:
		if m.P2ParticipantID != nil {
			return ErrMatchSlotOccupied
		}
		m.P2ParticipantID = &participantID
	default:
		return fmt.Errorf("invalid match slot %d", slot)
	}
	return nil
}

func (r *memoryMatchRepository) CountByStatus(ctx context.Context, exec SQLExecutor, tournamentID int, status models.MatchStatus) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	count := 0
	for _, m := range r.s.matches {
		if m.TournamentID == tournamentID && m.Status == status {
			count++
		}
	}
	return count, nil
}

// --- StandingRepository ---

type memoryStandingRepository struct {
	s *MemoryStore
}

func NewMemoryStandingRepository(s *MemoryStore) StandingRepository {
	return &memoryStandingRepository{s: s}
}

func (r *memoryStandingRepository) BatchCreate(ctx context.Context, exec SQLExecutor, tournamentID int, participantIDs []int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, pid := range participantIDs {
		st := &models.Standing{
			ID:            r.s.nextStandingID,
			TournamentID:  tournamentID,
			ParticipantID: pid,
			UpdatedAt:     time.Now(),
		}
		r.s.nextStandingID++
		r.s.standings[st.ID] = st
	}
	return nil
}

func (r *memoryStandingRepository) ApplyResult(ctx context.Context, exec SQLExecutor, tournamentID, winnerParticipantID, loserParticipantID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var winner, loser *models.Standing
	for _, st := range r.s.standings {
		if st.TournamentID != tournamentID {
			continue
		}
		if st.ParticipantID == winnerParticipantID {
			winner = st
		}
		if st.ParticipantID == loserParticipantID {
			loser = st
		}
	}
	if winner == nil || loser == nil {
		return ErrStandingNotFound
	}

	winner.GamesPlayed++
	winner.Wins++
	winner.Points += pointsPerWin
	winner.UpdatedAt = time.Now()

	loser.GamesPlayed++
	loser.Losses++
	loser.UpdatedAt = time.Now()
	return nil
}

func (r *memoryStandingRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Standing, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*models.Standing, 0)
	for _, st := range r.s.standings {
		if st.TournamentID == tournamentID {
			out = append(out, cloneStanding(st))
		}
	}
	seedOf := func(participantID int) *int {
		if p, ok := r.s.participants[participantID]; ok {
			return p.Seed
		}
		return nil
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		si, sj := seedOf(out[i].ParticipantID), seedOf(out[j].ParticipantID)
		switch {
		case si != nil && sj != nil && *si != *sj:
			return *si < *sj
		case si != nil && sj == nil:
			return true
		case si == nil && sj != nil:
			return false
		}
		return out[i].ParticipantID < out[j].ParticipantID
	})
	return out, nil
}

// --- UserRepository ---

type memoryUserRepository struct {
	s *MemoryStore
}

func NewMemoryUserRepository(s *MemoryStore) UserRepository {
	return &memoryUserRepository{s: s}
}

func (r *memoryUserRepository) Create(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return ErrUserEmailConflict
		}
	}
	user.ID = r.s.nextUserID
	r.s.nextUserID++
	user.CreatedAt = time.Now()
	r.s.users[user.ID] = cloneUser(user)
	return nil
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *memoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *memoryUserRepository) UpdateAvatarKey(ctx context.Context, userID int, avatarKey *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.AvatarKey = avatarKey
	return nil
}
