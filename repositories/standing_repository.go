package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/courtside/tournament-engine/models"
)

var ErrStandingNotFound = errors.New("tournament standing not found")

const pointsPerWin = 3

// StandingRepository ведёт турнирную таблицу round robin.
type StandingRepository interface {
	// BatchCreate создаёт нулевые строки таблицы для всех участников
	// при старте турнира.
	BatchCreate(ctx context.Context, exec SQLExecutor, tournamentID int, participantIDs []int) error
	// ApplyResult засчитывает победителю выигрыш и очки, проигравшему —
	// поражение.
	ApplyResult(ctx context.Context, exec SQLExecutor, tournamentID, winnerParticipantID, loserParticipantID int) error
	// ListByTournament возвращает таблицу в порядке очков, затем побед,
	// затем сида участника (без сида — в конец), затем id.
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Standing, error)
}

type postgresStandingRepository struct {
	db *sql.DB
}

func NewPostgresStandingRepository(db *sql.DB) StandingRepository {
	return &postgresStandingRepository{db: db}
}

func (r *postgresStandingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresStandingRepository) BatchCreate(ctx context.Context, exec SQLExecutor, tournamentID int, participantIDs []int) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO standings (tournament_id, participant_id, games_played, wins, losses, points, updated_at)
		VALUES ($1, $2, 0, 0, 0, 0, NOW())`

	for _, pid := range participantIDs {
		if _, err := executor.ExecContext(ctx, query, tournamentID, pid); err != nil {
			return fmt.Errorf("failed to create standing for participant %d: %w", pid, err)
		}
	}
	return nil
}

func (r *postgresStandingRepository) ApplyResult(ctx context.Context, exec SQLExecutor, tournamentID, winnerParticipantID, loserParticipantID int) error {
	executor := r.getExecutor(exec)

	winQuery := `
		UPDATE standings
		SET games_played = games_played + 1, wins = wins + 1, points = points + $1, updated_at = NOW()
		WHERE tournament_id = $2 AND participant_id = $3`
	result, err := executor.ExecContext(ctx, winQuery, pointsPerWin, tournamentID, winnerParticipantID)
	if err != nil {
		return fmt.Errorf("failed to apply win for participant %d: %w", winnerParticipantID, err)
	}
	if err := checkAffectedRows(result, ErrStandingNotFound); err != nil {
		return err
	}

	lossQuery := `
		UPDATE standings
		SET games_played = games_played + 1, losses = losses + 1, updated_at = NOW()
		WHERE tournament_id = $1 AND participant_id = $2`
	result, err = executor.ExecContext(ctx, lossQuery, tournamentID, loserParticipantID)
	if err != nil {
		return fmt.Errorf("failed to apply loss for participant %d: %w", loserParticipantID, err)
	}
	return checkAffectedRows(result, ErrStandingNotFound)
}

func (r *postgresStandingRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Standing, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT s.id, s.tournament_id, s.participant_id, s.games_played, s.wins, s.losses, s.points, s.updated_at
		FROM standings s
		JOIN participants p ON p.id = s.participant_id
		WHERE s.tournament_id = $1
		ORDER BY s.points DESC, s.wins DESC, p.seed ASC NULLS LAST, s.participant_id ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query standings for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	standings := make([]*models.Standing, 0)
	for rows.Next() {
		var s models.Standing
		if scanErr := rows.Scan(
			&s.ID, &s.TournamentID, &s.ParticipantID, &s.GamesPlayed,
			&s.Wins, &s.Losses, &s.Points, &s.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan standing row: %w", scanErr)
		}
		standings = append(standings, &s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during standing rows iteration: %w", err)
	}
	return standings, nil
}
