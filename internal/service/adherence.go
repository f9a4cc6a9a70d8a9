package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/adherence"
	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// DoseLogSource reads dose history for analytics
type DoseLogSource interface {
	ListLogs(ctx context.Context, medicationID string, since time.Time, limit int) ([]model.DoseLogEntry, error)
	ListLogsByUser(ctx context.Context, userID string, since time.Time) ([]model.DoseLogEntry, error)
}

// MedicationFinder looks up a single medication
type MedicationFinder interface {
	FindByID(ctx context.Context, medicationID string) (*model.Medication, error)
}

// AdherenceService computes streaks and adherence rates
type AdherenceService struct {
	logs            DoseLogSource
	medications     MedicationFinder
	users           UserRepositoryInterface
	defaultTimezone string
	now             func() time.Time
	logger          *zap.Logger
}

// NewAdherenceService creates a new AdherenceService
func NewAdherenceService(logs DoseLogSource, medications MedicationFinder, users UserRepositoryInterface, defaultTimezone string, logger *zap.Logger) *AdherenceService {
	return &AdherenceService{
		logs:            logs,
		medications:     medications,
		users:           users,
		defaultTimezone: defaultTimezone,
		now:             time.Now,
		logger:          logger,
	}
}

// AdherenceSummary represents streaks and the daily breakdown for a period
type AdherenceSummary struct {
	Period       string                 `json:"period"`
	Days         int                    `json:"days"`
	UserID       string                 `json:"user_id"`
	MedicationID string                 `json:"medication_id,omitempty"`
	Timezone     string                 `json:"timezone"`
	Streaks      model.StreakSummary    `json:"streaks"`
	Daily        []model.DailyAdherence `json:"daily"`
}

// GetSummary computes the adherence summary of a user, or of a single
// medication when medicationID is set. Streaks consider the whole history;
// the rate and daily breakdown cover the last days days.
func (s *AdherenceService) GetSummary(ctx context.Context, userID, medicationID string, days int) (*AdherenceSummary, error) {
	s.logger.Info("getting adherence summary",
		zap.String("user_id", userID),
		zap.String("medication_id", medicationID),
		zap.Int("days", days),
	)

	if userID == "" && medicationID == "" {
		return nil, apperr.Validation("user_id", "user_id or medication_id is required")
	}

	// Validate days parameter
	if days != 7 && days != 30 && days != 90 {
		s.logger.Warn("invalid days parameter, defaulting to 7",
			zap.Int("days", days),
		)
		days = 7
	}

	if medicationID != "" {
		med, err := s.medications.FindByID(ctx, medicationID)
		if err != nil {
			return nil, err
		}
		if userID != "" && userID != med.UserID {
			return nil, fmt.Errorf("medication %s of user %s: %w", medicationID, userID, apperr.ErrNotFound)
		}
		userID = med.UserID
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	loc := loadLocation(user.Timezone, s.defaultTimezone)
	now := s.now().In(loc)

	var logs []model.DoseLogEntry
	if medicationID != "" {
		logs, err = s.logs.ListLogs(ctx, medicationID, time.Time{}, 0)
	} else {
		logs, err = s.logs.ListLogsByUser(ctx, userID, time.Time{})
	}
	if err != nil {
		s.logger.Error("failed to get dose logs",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("failed to get dose logs: %w", err)
	}

	summary := &AdherenceSummary{
		Period:       fmt.Sprintf("%d days", days),
		Days:         days,
		UserID:       userID,
		MedicationID: medicationID,
		Timezone:     loc.String(),
		Streaks:      adherence.ComputeStreaks(logs, days, now),
		Daily:        []model.DailyAdherence{},
	}

	windowStart := model.StartOfDay(now).AddDate(0, 0, -(days - 1))
	for _, day := range adherence.DailyBreakdown(logs, loc) {
		if !day.Date.Before(windowStart) && !day.Date.After(now) {
			summary.Daily = append(summary.Daily, day)
		}
	}

	s.logger.Info("adherence summary retrieved successfully",
		zap.String("user_id", userID),
		zap.Int("log_entries", len(logs)),
		zap.Float64("adherence_rate", summary.Streaks.AdherenceRate),
	)

	return summary, nil
}
