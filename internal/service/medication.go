package service

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/internal/audit"
	"github.com/Blackades/med-alert-hub-sub000/internal/inventory"
	"github.com/Blackades/med-alert-hub-sub000/internal/schedule"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// MedicationRepositoryInterface defines the interface for medication storage
type MedicationRepositoryInterface interface {
	Create(ctx context.Context, med *model.Medication, slots []model.ScheduleSlot, inv *model.InventoryRecord) error
	FindByUserID(ctx context.Context, userID string) ([]model.Medication, error)
	FindByID(ctx context.Context, medicationID string) (*model.Medication, error)
	Update(ctx context.Context, med *model.Medication, slots []model.ScheduleSlot) error
	Delete(ctx context.Context, medicationID string) error
	FindSlots(ctx context.Context, medicationID string) ([]model.ScheduleSlot, error)
	FindInventory(ctx context.Context, medicationID string) (*model.InventoryRecord, error)
	UpsertInventory(ctx context.Context, inv *model.InventoryRecord) error
	UpdateInventory(ctx context.Context, medicationID string, fn func(*model.InventoryRecord) error) (*model.InventoryRecord, error)
}

// MedicationDetails is a medication with its slots and stock
type MedicationDetails struct {
	Medication   *model.Medication      `json:"medication"`
	Slots        []model.ScheduleSlot   `json:"slots"`
	Inventory    *model.InventoryRecord `json:"inventory,omitempty"`
	DaysOfSupply *float64               `json:"days_of_supply,omitempty"`
}

// MedicationService handles medication management business logic
type MedicationService struct {
	repo            MedicationRepositoryInterface
	users           UserRepositoryInterface
	audit           AuditLogger
	defaultTimezone string
	now             func() time.Time
	logger          *zap.Logger
}

// NewMedicationService creates a new MedicationService
func NewMedicationService(
	repo MedicationRepositoryInterface,
	users UserRepositoryInterface,
	auditLogger AuditLogger,
	defaultTimezone string,
	logger *zap.Logger,
) *MedicationService {
	return &MedicationService{
		repo:            repo,
		users:           users,
		audit:           orNop(auditLogger),
		defaultTimezone: defaultTimezone,
		now:             time.Now,
		logger:          logger,
	}
}

// AddMedication validates med, expands its frequency into schedule slots
// and stores everything together with the optional inventory record
func (s *MedicationService) AddMedication(ctx context.Context, med *model.Medication, inv *model.InventoryRecord) (*MedicationDetails, error) {
	if med.UserID == "" {
		return nil, apperr.Validation("user_id", "is required")
	}
	if err := validateMedication(med); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, med.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	loc := loadLocation(user.Timezone, s.defaultTimezone)

	if med.ID == "" {
		med.ID = uuid.New().String()
	}
	now := s.now()
	med.Active = !ended(med, now.In(loc))
	med.CreatedAt = now
	med.UpdatedAt = now

	slots, err := buildSlots(med, loc, now)
	if err != nil {
		return nil, err
	}

	if inv != nil {
		if err := prepareInventory(inv, med.ID, now); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, med, slots, inv); err != nil {
		s.logger.Error("failed to add medication",
			zap.Error(err),
			zap.String("user_id", med.UserID),
			zap.String("medication_name", med.Name),
		)
		return nil, fmt.Errorf("failed to add medication: %w", err)
	}

	recordAudit(ctx, s.audit, s.logger, audit.AuditLog{
		UserID:        med.UserID,
		OperationType: audit.OperationCreate,
		ResourceType:  audit.ResourceMedication,
		ResourceID:    med.ID,
		AdditionalData: map[string]interface{}{
			"slots":     len(slots),
			"frequency": string(med.Frequency.Kind()),
		},
	})

	s.logger.Info("medication added successfully",
		zap.String("medication_id", med.ID),
		zap.String("user_id", med.UserID),
		zap.String("name", med.Name),
		zap.Int("slots", len(slots)),
	)

	return details(med, slots, inv), nil
}

// ListMedications retrieves all medications for a user
func (s *MedicationService) ListMedications(ctx context.Context, userID string) ([]model.Medication, error) {
	if userID == "" {
		return nil, apperr.Validation("user_id", "is required")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	loc := loadLocation(user.Timezone, s.defaultTimezone)

	medications, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list medications",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}

	// Deactivate medications whose end date has passed
	now := s.now()
	for i := range medications {
		if medications[i].Active && ended(&medications[i], now.In(loc)) {
			medications[i].Active = false
			medications[i].UpdatedAt = now
			if err := s.repo.Update(ctx, &medications[i], nil); err != nil {
				s.logger.Warn("failed to update medication active status",
					zap.Error(err),
					zap.String("medication_id", medications[i].ID),
				)
			}
		}
	}

	s.logger.Info("medications listed successfully",
		zap.String("user_id", userID),
		zap.Int("count", len(medications)),
	)

	return medications, nil
}

// GetMedication retrieves a medication with its slots and inventory
func (s *MedicationService) GetMedication(ctx context.Context, medID string) (*MedicationDetails, error) {
	if medID == "" {
		return nil, apperr.Validation("medication_id", "is required")
	}

	med, err := s.repo.FindByID(ctx, medID)
	if err != nil {
		return nil, err
	}
	slots, err := s.repo.FindSlots(ctx, medID)
	if err != nil {
		s.logger.Error("failed to find schedule slots", zap.Error(err), zap.String("medication_id", medID))
		return nil, fmt.Errorf("failed to find schedule slots: %w", err)
	}
	inv, err := s.repo.FindInventory(ctx, medID)
	if err != nil {
		s.logger.Error("failed to find inventory", zap.Error(err), zap.String("medication_id", medID))
		return nil, fmt.Errorf("failed to find inventory: %w", err)
	}

	return details(med, slots, inv), nil
}

// UpdateMedication replaces the editable fields of a medication. Slots are
// recreated when the frequency, the first-dose time or the anchor of a
// periodic schedule changes.
func (s *MedicationService) UpdateMedication(ctx context.Context, medID string, updates *model.Medication) (*MedicationDetails, error) {
	if medID == "" {
		return nil, apperr.Validation("medication_id", "is required")
	}
	if err := validateMedication(updates); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByID(ctx, medID)
	if err != nil {
		s.logger.Error("failed to find medication for update",
			zap.Error(err),
			zap.String("medication_id", medID),
		)
		return nil, err
	}
	user, err := s.users.FindByID(ctx, existing.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	loc := loadLocation(user.Timezone, s.defaultTimezone)

	// Preserve ID, owner and creation time
	updates.ID = existing.ID
	updates.UserID = existing.UserID
	updates.CreatedAt = existing.CreatedAt

	now := s.now()
	updates.Active = updates.Active && !ended(updates, now.In(loc))
	updates.UpdatedAt = now

	var slots []model.ScheduleSlot
	if scheduleChanged(existing, updates) {
		slots, err = buildSlots(updates, loc, now)
		if err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, updates, slots); err != nil {
		s.logger.Error("failed to update medication",
			zap.Error(err),
			zap.String("medication_id", medID),
		)
		return nil, fmt.Errorf("failed to update medication: %w", err)
	}

	recordAudit(ctx, s.audit, s.logger, audit.AuditLog{
		UserID:        updates.UserID,
		OperationType: audit.OperationUpdate,
		ResourceType:  audit.ResourceMedication,
		ResourceID:    medID,
		AdditionalData: map[string]interface{}{
			"slots_recreated": slots != nil,
		},
	})

	s.logger.Info("medication updated successfully",
		zap.String("medication_id", medID),
		zap.String("name", updates.Name),
		zap.Bool("slots_recreated", slots != nil),
	)

	return s.GetMedication(ctx, medID)
}

// DeleteMedication deletes a medication together with its slots, stock
// and dose log
func (s *MedicationService) DeleteMedication(ctx context.Context, medID string) error {
	if medID == "" {
		return apperr.Validation("medication_id", "is required")
	}

	existing, err := s.repo.FindByID(ctx, medID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, medID); err != nil {
		s.logger.Error("failed to delete medication",
			zap.Error(err),
			zap.String("medication_id", medID),
		)
		return fmt.Errorf("failed to delete medication: %w", err)
	}

	recordAudit(ctx, s.audit, s.logger, audit.AuditLog{
		UserID:        existing.UserID,
		OperationType: audit.OperationDelete,
		ResourceType:  audit.ResourceMedication,
		ResourceID:    medID,
	})

	s.logger.Info("medication deleted successfully",
		zap.String("medication_id", medID),
	)

	return nil
}

// SetInventory creates or replaces the inventory record of a medication.
// The alert latch is kept when the stored quantity does not change.
func (s *MedicationService) SetInventory(ctx context.Context, medID string, inv *model.InventoryRecord) (*MedicationDetails, error) {
	med, err := s.repo.FindByID(ctx, medID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := prepareInventory(inv, medID, now); err != nil {
		return nil, err
	}

	stored, err := s.repo.UpdateInventory(ctx, medID, func(current *model.InventoryRecord) error {
		if current == nil {
			return nil
		}
		sent := current.ThresholdAlertSent && current.CurrentQuantity == inv.CurrentQuantity
		refilled := current.LastRefillAt
		*current = *inv
		current.ThresholdAlertSent = sent
		if current.LastRefillAt == nil {
			current.LastRefillAt = refilled
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to update inventory", zap.Error(err), zap.String("medication_id", medID))
		return nil, fmt.Errorf("failed to update inventory: %w", err)
	}
	if stored == nil {
		if err := s.repo.UpsertInventory(ctx, inv); err != nil {
			return nil, fmt.Errorf("failed to create inventory: %w", err)
		}
		stored = inv
	}

	recordAudit(ctx, s.audit, s.logger, audit.AuditLog{
		UserID:        med.UserID,
		OperationType: audit.OperationUpdate,
		ResourceType:  audit.ResourceInventory,
		ResourceID:    medID,
		AdditionalData: map[string]interface{}{
			"current_quantity": stored.CurrentQuantity,
		},
	})

	s.logger.Info("inventory updated",
		zap.String("medication_id", medID),
		zap.Float64("current_quantity", stored.CurrentQuantity),
	)

	return details(med, nil, stored), nil
}

// RefillInventory adds amount units to the stock of a medication and
// re-arms the low-stock alert
func (s *MedicationService) RefillInventory(ctx context.Context, medID string, amount float64) (*MedicationDetails, error) {
	med, err := s.repo.FindByID(ctx, medID)
	if err != nil {
		return nil, err
	}

	var res inventory.RefillResult
	now := s.now()
	stored, err := s.repo.UpdateInventory(ctx, medID, func(current *model.InventoryRecord) error {
		var err error
		res, err = inventory.Refill(current, amount, now)
		return err
	})
	if err != nil {
		if apperr.IsValidation(err) || apperr.IsDomain(err) {
			return nil, err
		}
		s.logger.Error("failed to refill inventory", zap.Error(err), zap.String("medication_id", medID))
		return nil, fmt.Errorf("failed to refill inventory: %w", err)
	}

	recordAudit(ctx, s.audit, s.logger, audit.AuditLog{
		UserID:        med.UserID,
		OperationType: audit.OperationAction,
		ResourceType:  audit.ResourceInventory,
		ResourceID:    medID,
		AdditionalData: map[string]interface{}{
			"action":            "refill",
			"amount":            amount,
			"previous_quantity": res.PreviousQuantity,
			"new_quantity":      res.NewQuantity,
		},
	})

	s.logger.Info("inventory refilled",
		zap.String("medication_id", medID),
		zap.Float64("previous_quantity", res.PreviousQuantity),
		zap.Float64("new_quantity", res.NewQuantity),
	)

	return details(med, nil, stored), nil
}

func validateMedication(med *model.Medication) error {
	med.Name = strings.TrimSpace(med.Name)
	med.Dosage = strings.TrimSpace(med.Dosage)
	switch {
	case med.Name == "":
		return apperr.Validation("name", "is required")
	case med.Dosage == "":
		return apperr.Validation("dosage", "is required")
	case !med.FirstDoseTime.Valid():
		return apperr.Validation("first_dose_time", "must be between 00:00 and 23:59")
	case med.StartDate != nil && med.EndDate != nil && med.EndDate.Before(*med.StartDate):
		return apperr.Validation("end_date", "must not be before start_date")
	}
	if med.Frequency.Kind() == model.FrequencyInvalid {
		return apperr.Validation("frequency", "exactly one of fixed_times, interval or periodic must be set")
	}
	return nil
}

// ended reports whether the medication's end date lies before now's date
func ended(med *model.Medication, now time.Time) bool {
	if med.EndDate == nil {
		return false
	}
	return model.DateIn(*med.EndDate, now.Location()).Before(model.StartOfDay(now))
}

// buildSlots expands the frequency of med into fresh slots whose first
// reminder is the first occurrence inside the active window
func buildSlots(med *model.Medication, loc *time.Location, now time.Time) ([]model.ScheduleSlot, error) {
	plan, err := schedule.ExpandToSlots(med.Frequency, med.FirstDoseTime)
	if err != nil {
		return nil, err
	}

	local := now.In(loc)
	anchor := model.StartOfDay(local)
	if med.StartDate != nil {
		anchor = model.DateIn(*med.StartDate, loc)
	}
	from := local
	if anchor.After(from) {
		from = anchor.Add(-time.Nanosecond)
	}

	slots := make([]model.ScheduleSlot, 0, len(plan.Times))
	for _, tod := range plan.Times {
		slot := model.ScheduleSlot{
			ID:           uuid.New().String(),
			MedicationID: med.ID,
			TimeOfDay:    tod,
			State:        model.SlotStatePending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if plan.Period != nil {
			slot.Recurrence = &model.Recurrence{
				Unit:   plan.Period.Unit,
				Count:  plan.Period.Count,
				Anchor: model.DateIn(anchor, time.UTC),
			}
		}
		if next, ok := schedule.NextOccurrence(slot, from); ok && med.ActiveAt(next) {
			slot.NextReminderAt = &next
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func scheduleChanged(before, after *model.Medication) bool {
	if before.FirstDoseTime != after.FirstDoseTime || !reflect.DeepEqual(before.Frequency, after.Frequency) {
		return true
	}
	if after.Frequency.Kind() != model.FrequencyPeriodic {
		return false
	}
	return !sameDate(before.StartDate, after.StartDate)
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return model.DateIn(*a, time.UTC).Equal(model.DateIn(*b, time.UTC))
}

func prepareInventory(inv *model.InventoryRecord, medID string, now time.Time) error {
	if err := inventory.Validate(inv); err != nil {
		return err
	}
	inv.MedicationID = medID
	if inv.DoseAmount == 0 {
		inv.DoseAmount = 1
	}
	inv.ThresholdAlertSent = false
	inv.UpdatedAt = now
	return nil
}

func details(med *model.Medication, slots []model.ScheduleSlot, inv *model.InventoryRecord) *MedicationDetails {
	d := &MedicationDetails{
		Medication: med,
		Slots:      slots,
		Inventory:  inv,
	}
	if d.Slots == nil {
		d.Slots = []model.ScheduleSlot{}
	}
	if inv != nil {
		if days := inventory.DaysOfSupply(inv, schedule.DosesPerDay(med.Frequency)); days >= 0 {
			d.DaysOfSupply = &days
		}
	}
	return d
}
