package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/internal/audit"
	"github.com/Blackades/med-alert-hub-sub000/internal/notify"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// NotificationRepositoryInterface defines the interface for channel preferences
type NotificationRepositoryInterface interface {
	Upsert(ctx context.Context, pref *model.NotificationPreference) error
	FindByUserID(ctx context.Context, userID string) ([]model.NotificationPreference, error)
}

// NotificationService manages delivery preferences and fans messages out
// to a user's enabled channels
type NotificationService struct {
	repo       NotificationRepositoryInterface
	dispatcher notify.Dispatcher
	audit      AuditLogger
	logger     *zap.Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(repo NotificationRepositoryInterface, dispatcher notify.Dispatcher, auditLogger AuditLogger, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		repo:       repo,
		dispatcher: dispatcher,
		audit:      orNop(auditLogger),
		logger:     logger,
	}
}

// GetPreferences lists the channel preferences of a user
func (s *NotificationService) GetPreferences(ctx context.Context, userID string) ([]model.NotificationPreference, error) {
	if userID == "" {
		return nil, apperr.Validation("user_id", "is required")
	}
	prefs, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get notification preferences: %w", err)
	}
	return prefs, nil
}

// SetPreferences stores each preference, replacing the previous target of
// the same channel
func (s *NotificationService) SetPreferences(ctx context.Context, userID string, prefs []model.NotificationPreference) ([]model.NotificationPreference, error) {
	if userID == "" {
		return nil, apperr.Validation("user_id", "is required")
	}
	seen := make(map[model.Channel]bool, len(prefs))
	for i := range prefs {
		if err := validatePreference(&prefs[i]); err != nil {
			return nil, err
		}
		if seen[prefs[i].Channel] {
			return nil, apperr.Validation("channel", "channel %s listed twice", prefs[i].Channel)
		}
		seen[prefs[i].Channel] = true
	}

	now := time.Now()
	for i := range prefs {
		pref := &prefs[i]
		pref.UserID = userID
		if pref.ID == "" {
			pref.ID = uuid.New().String()
		}
		pref.CreatedAt = now
		pref.UpdatedAt = now
		if err := s.repo.Upsert(ctx, pref); err != nil {
			return nil, fmt.Errorf("failed to save notification preference: %w", err)
		}
		recordAudit(ctx, s.audit, s.logger, audit.AuditLog{
			UserID:        userID,
			OperationType: audit.OperationUpdate,
			ResourceType:  audit.ResourceNotificationPreference,
			ResourceID:    pref.ID,
			AdditionalData: map[string]interface{}{
				"channel": string(pref.Channel),
				"enabled": pref.Enabled,
			},
		})
	}

	s.logger.Info("notification preferences saved",
		zap.String("user_id", userID),
		zap.Int("count", len(prefs)),
	)
	return s.GetPreferences(ctx, userID)
}

// NotifyUser sends msg to every enabled channel of the user. It returns
// the per-target results; an error means the preferences could not be read.
func (s *NotificationService) NotifyUser(ctx context.Context, userID string, msg notify.Message) ([]notify.Result, error) {
	prefs, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get notification preferences: %w", err)
	}

	var targets []notify.Target
	for _, pref := range prefs {
		if pref.Enabled {
			targets = append(targets, notify.Target{Channel: pref.Channel, Address: pref.Target})
		}
	}
	if len(targets) == 0 {
		s.logger.Debug("user has no enabled notification channels",
			zap.String("user_id", userID),
			zap.String("kind", string(msg.Kind)),
		)
		return nil, nil
	}

	results := s.dispatcher.Broadcast(ctx, targets, msg)
	for _, res := range results {
		if !res.Success {
			s.logger.Warn("notification delivery failed",
				zap.String("user_id", userID),
				zap.String("channel", string(res.Channel)),
				zap.String("kind", string(msg.Kind)),
				zap.Int("attempts", res.Attempts),
				zap.Error(res.Err),
			)
		}
	}
	return results, nil
}

func validatePreference(pref *model.NotificationPreference) error {
	pref.Target = strings.TrimSpace(pref.Target)
	if !pref.Channel.Valid() {
		return apperr.Validation("channel", "unknown channel %q", pref.Channel)
	}
	if pref.Target == "" {
		return apperr.Validation("target", "is required for channel %s", pref.Channel)
	}
	return nil
}
