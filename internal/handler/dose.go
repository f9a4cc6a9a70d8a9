package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/dose"
	"github.com/Blackades/med-alert-hub-sub000/internal/service"
	"github.com/Blackades/med-alert-hub-sub000/pkg/api"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

const (
	defaultLogDays  = 30
	defaultLogLimit = 100
)

// DoseTracker applies dose actions and reports schedule status
type DoseTracker interface {
	ApplyAction(ctx context.Context, medicationID string, action model.Action, opts dose.Options) (*service.ActionResult, error)
	GetStatus(ctx context.Context, medicationID string, at *time.Time) (*service.StatusView, error)
	ListLogs(ctx context.Context, medicationID string, days, limit int) ([]model.DoseLogEntry, error)
}

// DoseHandler implements dose action and status endpoints
type DoseHandler struct {
	service DoseTracker
	logger  *zap.Logger
}

// NewDoseHandler creates a new DoseHandler
func NewDoseHandler(service DoseTracker, logger *zap.Logger) *DoseHandler {
	return &DoseHandler{
		service: service,
		logger:  logger,
	}
}

// PostApiV1MedicationsIdActions records take, miss, skip or delay
func (h *DoseHandler) PostApiV1MedicationsIdActions(c *gin.Context, id types.UUID) {
	var req api.DoseActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, h.logger, err)
		return
	}

	medicationID := uuidToString(id)

	opts := dose.Options{
		Reason:      req.Reason,
		Quantity:    req.Quantity,
		AtTime:      req.At,
		ScheduledAt: req.ScheduledAt,
	}
	if req.SlotId != nil {
		opts.SlotID = uuidToString(*req.SlotId)
	}
	if req.DelayMinutes != nil {
		opts.Delay = time.Duration(*req.DelayMinutes) * time.Minute
	}

	result, err := h.service.ApplyAction(c.Request.Context(), medicationID, model.Action(req.Action), opts)
	if err != nil {
		respondError(c, h.logger, err, "Failed to apply dose action",
			zap.String("medication_id", medicationID),
			zap.String("action", string(req.Action)),
		)
		return
	}

	h.logger.Info("dose action applied",
		zap.String("medication_id", medicationID),
		zap.String("slot_id", result.Slot.ID),
		zap.String("action", string(result.Action)),
		zap.Bool("replayed", result.Replayed),
	)

	c.JSON(http.StatusOK, result)
}

// GetApiV1MedicationsIdStatus returns the projected slot statuses
func (h *DoseHandler) GetApiV1MedicationsIdStatus(c *gin.Context, id types.UUID, params api.GetApiV1MedicationsIdStatusParams) {
	medicationID := uuidToString(id)

	view, err := h.service.GetStatus(c.Request.Context(), medicationID, params.At)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get medication status", zap.String("medication_id", medicationID))
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetApiV1MedicationsIdLogs returns the dose history, newest first
func (h *DoseHandler) GetApiV1MedicationsIdLogs(c *gin.Context, id types.UUID, params api.GetApiV1MedicationsIdLogsParams) {
	medicationID := uuidToString(id)

	days := defaultLogDays
	if params.Days != nil {
		days = *params.Days
	}
	limit := defaultLogLimit
	if params.Limit != nil {
		limit = *params.Limit
	}

	logs, err := h.service.ListLogs(c.Request.Context(), medicationID, days, limit)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list dose logs", zap.String("medication_id", medicationID))
		return
	}
	if logs == nil {
		logs = []model.DoseLogEntry{}
	}

	c.JSON(http.StatusOK, logs)
}
