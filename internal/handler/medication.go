package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/service"
	"github.com/Blackades/med-alert-hub-sub000/pkg/api"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// MedicationManager is the medication and inventory side of the service layer
type MedicationManager interface {
	AddMedication(ctx context.Context, med *model.Medication, inv *model.InventoryRecord) (*service.MedicationDetails, error)
	ListMedications(ctx context.Context, userID string) ([]model.Medication, error)
	GetMedication(ctx context.Context, medID string) (*service.MedicationDetails, error)
	UpdateMedication(ctx context.Context, medID string, updates *model.Medication) (*service.MedicationDetails, error)
	DeleteMedication(ctx context.Context, medID string) error
	SetInventory(ctx context.Context, medID string, inv *model.InventoryRecord) (*service.MedicationDetails, error)
	RefillInventory(ctx context.Context, medID string, amount float64) (*service.MedicationDetails, error)
}

// MedicationHandler implements medication and inventory API endpoints
type MedicationHandler struct {
	service MedicationManager
	logger  *zap.Logger
}

// NewMedicationHandler creates a new MedicationHandler
func NewMedicationHandler(service MedicationManager, logger *zap.Logger) *MedicationHandler {
	return &MedicationHandler{
		service: service,
		logger:  logger,
	}
}

// PostApiV1Medications adds a new medication
func (h *MedicationHandler) PostApiV1Medications(c *gin.Context) {
	var req api.CreateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, h.logger, err)
		return
	}

	userID := uuidToString(req.UserId)

	medication, err := toMedication(&req.MedicationRequest)
	if err != nil {
		respondError(c, h.logger, err, "Failed to add medication", zap.String("user_id", userID))
		return
	}
	medication.UserID = userID

	var inv *model.InventoryRecord
	if req.Inventory != nil {
		inv = toInventory(req.Inventory)
	}

	details, err := h.service.AddMedication(c.Request.Context(), medication, inv)
	if err != nil {
		respondError(c, h.logger, err, "Failed to add medication", zap.String("user_id", userID))
		return
	}

	h.logger.Info("medication added",
		zap.String("medication_id", details.Medication.ID),
		zap.String("user_id", userID),
	)

	c.JSON(http.StatusCreated, medicationResponse(details))
}

// GetApiV1Medications lists all medications for a user
func (h *MedicationHandler) GetApiV1Medications(c *gin.Context, params api.GetApiV1MedicationsParams) {
	userID := uuidToString(params.UserId)

	medications, err := h.service.ListMedications(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list medications", zap.String("user_id", userID))
		return
	}

	response := make([]api.MedicationResponse, 0, len(medications))
	for i := range medications {
		response = append(response, fromMedication(&medications[i]))
	}

	h.logger.Debug("medications listed",
		zap.String("user_id", userID),
		zap.Int("count", len(response)),
	)

	c.JSON(http.StatusOK, response)
}

// GetApiV1MedicationsId returns a medication with its slots and inventory
func (h *MedicationHandler) GetApiV1MedicationsId(c *gin.Context, id types.UUID) {
	medicationID := uuidToString(id)

	details, err := h.service.GetMedication(c.Request.Context(), medicationID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get medication", zap.String("medication_id", medicationID))
		return
	}

	c.JSON(http.StatusOK, medicationResponse(details))
}

// PutApiV1MedicationsId replaces a medication
func (h *MedicationHandler) PutApiV1MedicationsId(c *gin.Context, id types.UUID) {
	var req api.UpdateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, h.logger, err)
		return
	}

	medicationID := uuidToString(id)

	medication, err := toMedication(&req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to update medication", zap.String("medication_id", medicationID))
		return
	}

	details, err := h.service.UpdateMedication(c.Request.Context(), medicationID, medication)
	if err != nil {
		respondError(c, h.logger, err, "Failed to update medication", zap.String("medication_id", medicationID))
		return
	}

	h.logger.Info("medication updated",
		zap.String("medication_id", medicationID),
	)

	c.JSON(http.StatusOK, medicationResponse(details))
}

// DeleteApiV1MedicationsId deletes a medication
func (h *MedicationHandler) DeleteApiV1MedicationsId(c *gin.Context, id types.UUID) {
	medicationID := uuidToString(id)

	if err := h.service.DeleteMedication(c.Request.Context(), medicationID); err != nil {
		respondError(c, h.logger, err, "Failed to delete medication", zap.String("medication_id", medicationID))
		return
	}

	h.logger.Info("medication deleted",
		zap.String("medication_id", medicationID),
	)

	c.Status(http.StatusNoContent)
}

// PutApiV1MedicationsIdInventory creates or replaces the inventory record
func (h *MedicationHandler) PutApiV1MedicationsIdInventory(c *gin.Context, id types.UUID) {
	var req api.InventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, h.logger, err)
		return
	}

	medicationID := uuidToString(id)

	details, err := h.service.SetInventory(c.Request.Context(), medicationID, toInventory(&req))
	if err != nil {
		respondError(c, h.logger, err, "Failed to update inventory", zap.String("medication_id", medicationID))
		return
	}

	c.JSON(http.StatusOK, medicationResponse(details))
}

// PostApiV1MedicationsIdInventoryRefill adds stock
func (h *MedicationHandler) PostApiV1MedicationsIdInventoryRefill(c *gin.Context, id types.UUID) {
	var req api.RefillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, h.logger, err)
		return
	}

	medicationID := uuidToString(id)

	details, err := h.service.RefillInventory(c.Request.Context(), medicationID, req.Amount)
	if err != nil {
		respondError(c, h.logger, err, "Failed to refill inventory", zap.String("medication_id", medicationID))
		return
	}

	c.JSON(http.StatusOK, medicationResponse(details))
}

func medicationResponse(details *service.MedicationDetails) api.MedicationResponse {
	resp := fromMedication(details.Medication)
	if len(details.Slots) > 0 {
		resp.Slots = fromSlots(details.Slots)
	}
	resp.Inventory = fromInventory(details.Inventory, details.DaysOfSupply)
	return resp
}
