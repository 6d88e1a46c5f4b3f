package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/courtside/tournament-engine/models"
	"github.com/lib/pq"
)

var (
	ErrParticipantNotFound = errors.New("participant registration not found")
	ErrParticipantConflict = errors.New("user is already registered for this tournament")
	// ErrTournamentCapacityReached: вставка с проверкой вместимости не
	// прошла — лимит участников уже достигнут.
	ErrTournamentCapacityReached = errors.New("tournament participant capacity reached")
)

type ParticipantRepository interface {
	// CreateWithinCapacity атомарно проверяет вместимость и вставляет
	// запись: проверка и вставка — одно выражение, гонка двух регистраций
	// не может превысить maxParticipants.
	CreateWithinCapacity(ctx context.Context, exec SQLExecutor, p *models.Participant, maxParticipants int) error
	FindByID(ctx context.Context, id int) (*models.Participant, error)
	FindByUserAndTournament(ctx context.Context, userID, tournamentID int) (*models.Participant, error)
	DeleteByUserAndTournament(ctx context.Context, exec SQLExecutor, userID, tournamentID int) error
	// ListByTournament возвращает участников в порядке посева: seed по
	// возрастанию (без сида — последними), затем по времени регистрации.
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Participant, error)
	CountByTournament(ctx context.Context, tournamentID int) (int, error)
	SetEliminated(ctx context.Context, exec SQLExecutor, participantID int) error
	SetFinalRank(ctx context.Context, exec SQLExecutor, participantID, rank int) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const participantColumns = `
	id, tournament_id, user_id, partner_user_id, seed, eliminated, final_rank, registered_at`

func scanParticipant(row interface{ Scan(...interface{}) error }, p *models.Participant) error {
	return row.Scan(
		&p.ID, &p.TournamentID, &p.UserID, &p.PartnerUserID,
		&p.Seed, &p.Eliminated, &p.FinalRank, &p.RegisteredAt,
	)
}

func (r *postgresParticipantRepository) CreateWithinCapacity(ctx context.Context, exec SQLExecutor, p *models.Participant, maxParticipants int) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO participants (tournament_id, user_id, partner_user_id, seed)
		SELECT $1, $2, $3, $4
		WHERE (SELECT COUNT(*) FROM participants WHERE tournament_id = $1) < $5
		RETURNING id, registered_at`

	err := executor.QueryRowContext(ctx, query,
		p.TournamentID, p.UserID, p.PartnerUserID, p.Seed, maxParticipants,
	).Scan(&p.ID, &p.RegisteredAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTournamentCapacityReached
		}
		return r.handleParticipantError(err)
	}
	return nil
}

func (r *postgresParticipantRepository) FindByID(ctx context.Context, id int) (*models.Participant, error) {
	query := `SELECT` + participantColumns + ` FROM participants WHERE id = $1`

	p := &models.Participant{}
	err := scanParticipant(r.db.QueryRowContext(ctx, query, id), p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to scan participant by id %d: %w", id, err)
	}
	return p, nil
}

func (r *postgresParticipantRepository) FindByUserAndTournament(ctx context.Context, userID, tournamentID int) (*models.Participant, error) {
	query := `SELECT` + participantColumns + ` FROM participants WHERE user_id = $1 AND tournament_id = $2`

	p := &models.Participant{}
	err := scanParticipant(r.db.QueryRowContext(ctx, query, userID, tournamentID), p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresParticipantRepository) DeleteByUserAndTournament(ctx context.Context, exec SQLExecutor, userID, tournamentID int) error {
	executor := r.getExecutor(exec)
	query := `DELETE FROM participants WHERE user_id = $1 AND tournament_id = $2`
	result, err := executor.ExecContext(ctx, query, userID, tournamentID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Participant, error) {
	query := `SELECT` + participantColumns + `
		FROM participants
		WHERE tournament_id = $1
		ORDER BY seed ASC NULLS LAST, registered_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		var p models.Participant
		if scanErr := scanParticipant(rows, &p); scanErr != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", scanErr)
		}
		participants = append(participants, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during participant rows iteration: %w", err)
	}
	return participants, nil
}

func (r *postgresParticipantRepository) CountByTournament(ctx context.Context, tournamentID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participants WHERE tournament_id = $1`, tournamentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}

func (r *postgresParticipantRepository) SetEliminated(ctx context.Context, exec SQLExecutor, participantID int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE participants SET eliminated = TRUE WHERE id = $1`, participantID)
	if err != nil {
		return fmt.Errorf("failed to mark participant %d eliminated: %w", participantID, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) SetFinalRank(ctx context.Context, exec SQLExecutor, participantID, rank int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE participants SET final_rank = $1 WHERE id = $2`, rank, participantID)
	if err != nil {
		return fmt.Errorf("failed to set final rank for participant %d: %w", participantID, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) handleParticipantError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			// unique (tournament_id, user_id)
			return ErrParticipantConflict
		case "23503":
			return fmt.Errorf("participant references missing tournament or user: %w", err)
		}
	}
	return err
}
