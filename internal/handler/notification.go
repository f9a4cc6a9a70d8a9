package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/pkg/api"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// PreferenceStore reads and replaces notification preferences
type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID string) ([]model.NotificationPreference, error)
	SetPreferences(ctx context.Context, userID string, prefs []model.NotificationPreference) ([]model.NotificationPreference, error)
}

// NotificationHandler implements notification preference endpoints
type NotificationHandler struct {
	service PreferenceStore
	logger  *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(service PreferenceStore, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger,
	}
}

// GetApiV1NotificationsPreferences lists the channels of a user
func (h *NotificationHandler) GetApiV1NotificationsPreferences(c *gin.Context, params api.GetApiV1NotificationsPreferencesParams) {
	userID := uuidToString(params.UserId)

	prefs, err := h.service.GetPreferences(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get notification preferences", zap.String("user_id", userID))
		return
	}

	c.JSON(http.StatusOK, fromPreferences(prefs))
}

// PutApiV1NotificationsPreferences replaces the channels of a user
func (h *NotificationHandler) PutApiV1NotificationsPreferences(c *gin.Context) {
	var req api.SetNotificationPreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, h.logger, err)
		return
	}

	userID := uuidToString(req.UserId)

	prefs := make([]model.NotificationPreference, 0, len(req.Preferences))
	for _, in := range req.Preferences {
		pref := model.NotificationPreference{
			UserID:  userID,
			Channel: model.Channel(in.Channel),
			Target:  in.Target,
			Enabled: true,
		}
		if in.Enabled != nil {
			pref.Enabled = *in.Enabled
		}
		prefs = append(prefs, pref)
	}

	saved, err := h.service.SetPreferences(c.Request.Context(), userID, prefs)
	if err != nil {
		respondError(c, h.logger, err, "Failed to set notification preferences", zap.String("user_id", userID))
		return
	}

	h.logger.Info("notification preferences updated",
		zap.String("user_id", userID),
		zap.Int("count", len(saved)),
	)

	c.JSON(http.StatusOK, fromPreferences(saved))
}

func fromPreferences(prefs []model.NotificationPreference) []api.NotificationPreferenceResponse {
	resp := make([]api.NotificationPreferenceResponse, 0, len(prefs))
	for _, pref := range prefs {
		channel := api.NotificationChannel(pref.Channel)
		resp = append(resp, api.NotificationPreferenceResponse{
			Id:        stringToUUID(pref.ID),
			Channel:   &channel,
			Target:    stringPtr(pref.Target),
			Enabled:   boolPtr(pref.Enabled),
			UpdatedAt: timePtr(pref.UpdatedAt),
		})
	}
	return resp
}
