package services

import (
	"fmt"
	"time"

	"github.com/courtside/tournament-engine/models"
	"github.com/courtside/tournament-engine/storage"
)

// --- Общие хелперы ---

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func validateTournamentDates(deadline, start, end time.Time) error {
	if deadline.IsZero() || start.IsZero() || end.IsZero() {
		return ErrTournamentDatesRequired
	}
	if !deadline.Before(start) {
		return fmt.Errorf("%w: deadline (%s) is not before start date (%s)", ErrTournamentInvalidRegDate, deadline.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start date (%s) must be before end date (%s)", ErrTournamentInvalidDateRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}

func isValidStatusTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	allowedTransitions := map[models.TournamentStatus][]models.TournamentStatus{
		models.StatusDraft:              {models.StatusRegistration, models.StatusCanceled},
		models.StatusRegistration:       {models.StatusRegistrationClosed, models.StatusCanceled},
		models.StatusRegistrationClosed: {models.StatusActive, models.StatusCanceled},
		models.StatusActive:             {models.StatusCompleted, models.StatusCanceled},
		models.StatusCompleted:          {},
		models.StatusCanceled:           {},
	}
	for _, allowedNextStatus := range allowedTransitions[current] {
		if next == allowedNextStatus {
			return true
		}
	}
	return false
}

// --- Хелперы для преобразования моделей ---

func participantsToValues(slice []*models.Participant) []models.Participant {
	if slice == nil {
		return []models.Participant{}
	}
	result := make([]models.Participant, len(slice))
	for i, ptr := range slice {
		if ptr != nil {
			result[i] = *ptr
		}
	}
	return result
}

func matchesToValues(slice []*models.Match) []models.Match {
	if slice == nil {
		return []models.Match{}
	}
	result := make([]models.Match, len(slice))
	for i, ptr := range slice {
		if ptr != nil {
			result[i] = *ptr
		}
	}
	return result
}

// --- Хелперы для заполнения URL и деталей ---

func populateTournamentLogoURL(tournament *models.Tournament, uploader storage.FileUploader) {
	if tournament != nil && tournament.LogoKey != nil && *tournament.LogoKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*tournament.LogoKey)
		if url != "" {
			tournament.LogoURL = &url
		}
	}
}

func populateUserDetails(user *models.User, uploader storage.FileUploader) {
	if user == nil {
		return
	}
	user.PasswordHash = "" // Важно для безопасности
	if user.AvatarKey != nil && *user.AvatarKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*user.AvatarKey)
		if url != "" {
			user.AvatarURL = &url
		}
	}
}

func populateParticipantListDetails(participants []*models.Participant, uploader storage.FileUploader) {
	for _, p := range participants {
		if p == nil {
			continue
		}
		populateUserDetails(p.User, uploader)
		populateUserDetails(p.Partner, uploader)
	}
}

func getParticipantDisplayName(p *models.Participant) string {
	if p == nil {
		return "N/A"
	}
	if p.User != nil {
		name := p.User.FirstName
		if p.User.LastName != "" {
			name += " " + p.User.LastName
		}
		if name != "" {
			return name
		}
	}
	if p.ID != 0 {
		return fmt.Sprintf("Participant %d", p.ID)
	}
	return "Unnamed Participant"
}
