package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/courtside/tournament-engine/models"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	// ErrMatchNotScheduled: CAS scheduled -> completed не прошёл, матч уже
	// завершён (или его не существует — различает сервис).
	ErrMatchNotScheduled = errors.New("match is not in scheduled status")
	ErrMatchSlotOccupied = errors.New("match slot is already occupied")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	// ListByTournament возвращает матчи в порядке side, round, order_in_round.
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error)
	// UpdateAdvancementLinks устанавливает ссылки продвижения после того,
	// как хранилище выдало идентификаторы всем матчам сетки.
	UpdateAdvancementLinks(ctx context.Context, exec SQLExecutor, matchID int, nextMatchID, winnerToSlot, loserNextMatchID, loserToSlot *int) error
	// RecordResult атомарно переводит матч scheduled -> completed;
	// повторная запись результата получает ErrMatchNotScheduled.
	RecordResult(ctx context.Context, exec SQLExecutor, matchID, winnerParticipantID int, score *string) error
	// SetParticipantSlot заполняет пустой слот матча; занятый слот — ошибка
	// (каждый слот заполняется продвижением ровно один раз).
	SetParticipantSlot(ctx context.Context, exec SQLExecutor, matchID, slot, participantID int) error
	CountByStatus(ctx context.Context, exec SQLExecutor, tournamentID int, status models.MatchStatus) (int, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, tournament_id, side, round, order_in_round, bracket_uid,
	p1_participant_id, p2_participant_id, score, status, winner_participant_id,
	next_match_id, winner_to_slot, loser_next_match_id, loser_to_slot,
	walkover, match_time, created_at`

func scanMatch(row interface{ Scan(...interface{}) error }, m *models.Match) error {
	return row.Scan(
		&m.ID, &m.TournamentID, &m.Side, &m.Round, &m.OrderInRound, &m.BracketUID,
		&m.P1ParticipantID, &m.P2ParticipantID, &m.Score, &m.Status, &m.WinnerParticipantID,
		&m.NextMatchID, &m.WinnerToSlot, &m.LoserNextMatchID, &m.LoserToSlot,
		&m.Walkover, &m.MatchTime, &m.CreatedAt,
	)
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches (
			tournament_id, side, round, order_in_round, bracket_uid,
			p1_participant_id, p2_participant_id, score, status, winner_participant_id,
			walkover, match_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		match.TournamentID, match.Side, match.Round, match.OrderInRound, match.BracketUID,
		match.P1ParticipantID, match.P2ParticipantID, match.Score, match.Status, match.WinnerParticipantID,
		match.Walkover, match.MatchTime,
	).Scan(&match.ID, &match.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert match %s: %w", match.BracketUID, err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1`

	m := &models.Match{}
	err := scanMatch(executor.QueryRowContext(ctx, query, id), m)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	query := `SELECT` + matchColumns + `
		FROM matches
		WHERE tournament_id = $1
		ORDER BY side ASC, round ASC, order_in_round ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var m models.Match
		if scanErr := scanMatch(rows, &m); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, &m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateAdvancementLinks(ctx context.Context, exec SQLExecutor, matchID int, nextMatchID, winnerToSlot, loserNextMatchID, loserToSlot *int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET next_match_id = $1, winner_to_slot = $2, loser_next_match_id = $3, loser_to_slot = $4
		WHERE id = $5`
	result, err := executor.ExecContext(ctx, query, nextMatchID, winnerToSlot, loserNextMatchID, loserToSlot, matchID)
	if err != nil {
		return fmt.Errorf("failed to update advancement links for match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) RecordResult(ctx context.Context, exec SQLExecutor, matchID, winnerParticipantID int, score *string) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET status = $1, winner_participant_id = $2, score = $3
		WHERE id = $4 AND status = $5`
	result, err := executor.ExecContext(ctx, query,
		models.MatchStatusCompleted, winnerParticipantID, score, matchID, models.StatusScheduled)
	if err != nil {
		return fmt.Errorf("failed to record result for match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotScheduled)
}

func (r *postgresMatchRepository) SetParticipantSlot(ctx context.Context, exec SQLExecutor, matchID, slot, participantID int) error {
	executor := r.getExecutor(exec)

	var query string
	switch slot {
	case 1:
		query = `UPDATE matches SET p1_participant_id = $1 WHERE id = $2 AND p1_participant_id IS NULL`
	case 2:
		query = `UPDATE matches SET p2_participant_id = $1 WHERE id = $2 AND p2_participant_id IS NULL`
	default:
		return fmt.Errorf("invalid match slot %d", slot)
	}

	result, err := executor.ExecContext(ctx, query, participantID, matchID)
	if err != nil {
		return fmt.Errorf("failed to set participant slot %d for match %d: %w", slot, matchID, err)
	}
	return checkAffectedRows(result, ErrMatchSlotOccupied)
}

func (r *postgresMatchRepository) CountByStatus(ctx context.Context, exec SQLExecutor, tournamentID int, status models.MatchStatus) (int, error) {
	executor := r.getExecutor(exec)
	var count int
	err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matches WHERE tournament_id = $1 AND status = $2`,
		tournamentID, status,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count matches for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}
