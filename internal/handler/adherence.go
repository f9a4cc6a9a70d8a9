package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/service"
	"github.com/Blackades/med-alert-hub-sub000/pkg/api"
)

// AdherenceReader computes adherence summaries
type AdherenceReader interface {
	GetSummary(ctx context.Context, userID, medicationID string, days int) (*service.AdherenceSummary, error)
}

// AdherenceHandler implements the adherence endpoint
type AdherenceHandler struct {
	service AdherenceReader
	logger  *zap.Logger
}

// NewAdherenceHandler creates a new AdherenceHandler
func NewAdherenceHandler(service AdherenceReader, logger *zap.Logger) *AdherenceHandler {
	return &AdherenceHandler{
		service: service,
		logger:  logger,
	}
}

// GetApiV1Adherence returns streaks and the daily breakdown
func (h *AdherenceHandler) GetApiV1Adherence(c *gin.Context, params api.GetApiV1AdherenceParams) {
	var userID, medicationID string
	if params.UserId != nil {
		userID = uuidToString(*params.UserId)
	}
	if params.MedicationId != nil {
		medicationID = uuidToString(*params.MedicationId)
	}
	days := 7
	if params.Days != nil {
		days = *params.Days
	}

	summary, err := h.service.GetSummary(c.Request.Context(), userID, medicationID, days)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get adherence summary",
			zap.String("user_id", userID),
			zap.String("medication_id", medicationID),
		)
		return
	}

	c.JSON(http.StatusOK, summary)
}
