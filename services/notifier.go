package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/courtside/tournament-engine/models"
)

// Notifier доставляет уведомления о событиях турнира. Реализации должны быть
// best-effort: сбой доставки никогда не откатывает доменную операцию.
type Notifier interface {
	TournamentStatusChanged(ctx context.Context, tournament *models.Tournament, recipients []models.User)
	RegistrationConfirmed(ctx context.Context, tournament *models.Tournament, user *models.User)
	// ChampionCrowned адресуется лично чемпиону; champion приходит
	// с заполненным User.
	ChampionCrowned(ctx context.Context, tournament *models.Tournament, champion *models.Participant)
}

type nopNotifier struct{}

func (nopNotifier) TournamentStatusChanged(ctx context.Context, tournament *models.Tournament, recipients []models.User) {
}

func (nopNotifier) RegistrationConfirmed(ctx context.Context, tournament *models.Tournament, user *models.User) {
}

func (nopNotifier) ChampionCrowned(ctx context.Context, tournament *models.Tournament, champion *models.Participant) {
}

// NewNopNotifier возвращает заглушку. Используется в тестах и когда SMTP не настроен.
func NewNopNotifier() Notifier {
	return nopNotifier{}
}

type emailNotifier struct {
	email     *EmailService
	publicURL string
	logger    *slog.Logger
}

func NewEmailNotifier(email *EmailService, publicURL string, logger *slog.Logger) Notifier {
	return &emailNotifier{
		email:     email,
		publicURL: publicURL,
		logger:    logger,
	}
}

func (n *emailNotifier) tournamentLink(tournamentID int) string {
	return fmt.Sprintf("%s/tournaments/%d", n.publicURL, tournamentID)
}

func (n *emailNotifier) TournamentStatusChanged(ctx context.Context, tournament *models.Tournament, recipients []models.User) {
	link := n.tournamentLink(tournament.ID)
	for _, user := range recipients {
		if user.Email == "" {
			continue
		}
		if err := n.email.SendTournamentStatusEmail(user.Email, tournament.Name, string(tournament.Status), link); err != nil {
			n.logger.WarnContext(ctx, "failed to send tournament status email",
				slog.Int("tournament_id", tournament.ID),
				slog.Int("user_id", user.ID),
				slog.Any("error", err))
		}
	}
}

func (n *emailNotifier) RegistrationConfirmed(ctx context.Context, tournament *models.Tournament, user *models.User) {
	if user == nil || user.Email == "" {
		return
	}
	if err := n.email.SendRegistrationConfirmedEmail(user.Email, tournament.Name, n.tournamentLink(tournament.ID)); err != nil {
		n.logger.WarnContext(ctx, "failed to send registration email",
			slog.Int("tournament_id", tournament.ID),
			slog.Int("user_id", user.ID),
			slog.Any("error", err))
	}
}

func (n *emailNotifier) ChampionCrowned(ctx context.Context, tournament *models.Tournament, champion *models.Participant) {
	if champion == nil || champion.User == nil || champion.User.Email == "" {
		return
	}
	name := getParticipantDisplayName(champion)
	if err := n.email.SendChampionCrownedEmail(champion.User.Email, name, tournament.Name, n.tournamentLink(tournament.ID)); err != nil {
		n.logger.WarnContext(ctx, "failed to send champion email",
			slog.Int("tournament_id", tournament.ID),
			slog.Int("participant_id", champion.ID),
			slog.Any("error", err))
	}
}
