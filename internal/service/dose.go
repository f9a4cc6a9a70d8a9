package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/internal/audit"
	"github.com/Blackades/med-alert-hub-sub000/internal/dose"
	"github.com/Blackades/med-alert-hub-sub000/internal/inventory"
	"github.com/Blackades/med-alert-hub-sub000/internal/notify"
	"github.com/Blackades/med-alert-hub-sub000/internal/repository"
	"github.com/Blackades/med-alert-hub-sub000/internal/schedule"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// DoseRepositoryInterface defines the interface for dose persistence
type DoseRepositoryInterface interface {
	Transact(ctx context.Context, medicationID string, fn func(ctx context.Context, state *repository.MedicationState, tx repository.DoseTx) error) error
	LoadState(ctx context.Context, medicationID string) (*repository.MedicationState, error)
	FindLogByCycle(ctx context.Context, slotID string, scheduled time.Time) (*model.DoseLogEntry, error)
	ListLogs(ctx context.Context, medicationID string, since time.Time, limit int) ([]model.DoseLogEntry, error)
}

// UserNotifier delivers a message to every enabled channel of a user
type UserNotifier interface {
	NotifyUser(ctx context.Context, userID string, msg notify.Message) ([]notify.Result, error)
}

// ActionResult is the response to a dose action
type ActionResult struct {
	Action         model.Action           `json:"action"`
	MedicationID   string                 `json:"medication_id"`
	Slot           model.ScheduleSlot     `json:"slot"`
	CycleAt        time.Time              `json:"cycle_at"`
	NextReminderAt *time.Time             `json:"next_reminder_at,omitempty"`
	LogEntry       *model.DoseLogEntry    `json:"log_entry,omitempty"`
	Inventory      *model.InventoryRecord `json:"inventory,omitempty"`
	InventoryDelta float64                `json:"inventory_delta"`
	Correction     bool                   `json:"correction"`
	Replayed       bool                   `json:"replayed"`
	Projection     schedule.Projection    `json:"projection"`
	Warnings       []string               `json:"warnings,omitempty"`
}

// StatusView is the projected schedule of a medication
type StatusView struct {
	Medication   *model.Medication      `json:"medication"`
	Timezone     string                 `json:"timezone"`
	At           time.Time              `json:"at"`
	Projection   schedule.Projection    `json:"projection"`
	Inventory    *model.InventoryRecord `json:"inventory,omitempty"`
	DaysOfSupply *float64               `json:"days_of_supply,omitempty"`
}

// DoseService applies dose actions inside a transaction per medication
type DoseService struct {
	repo            DoseRepositoryInterface
	engine          *dose.Engine
	projector       schedule.Projector
	notifier        UserNotifier
	audit           AuditLogger
	defaultTimezone string
	now             func() time.Time
	logger          *zap.Logger
}

// NewDoseService creates a new DoseService. notifier may be nil, in which
// case no inventory alerts are sent.
func NewDoseService(
	repo DoseRepositoryInterface,
	engine *dose.Engine,
	projector schedule.Projector,
	notifier UserNotifier,
	auditLogger AuditLogger,
	defaultTimezone string,
	logger *zap.Logger,
) *DoseService {
	return &DoseService{
		repo:            repo,
		engine:          engine,
		projector:       projector,
		notifier:        notifier,
		audit:           orNop(auditLogger),
		defaultTimezone: defaultTimezone,
		now:             time.Now,
		logger:          logger,
	}
}

// ApplyAction runs action against the medication's targeted slot cycle and
// commits the slot, the log entry and the stock change together. Repeating
// an action on a cycle that is already resolved returns the stored result
// with Replayed set.
func (s *DoseService) ApplyAction(ctx context.Context, medicationID string, action model.Action, opts dose.Options) (*ActionResult, error) {
	if medicationID == "" {
		return nil, apperr.Validation("medication_id", "is required")
	}
	if _, err := dose.ParseAction(string(action)); err != nil {
		return nil, err
	}

	result, err := s.apply(ctx, medicationID, action, opts)
	if apperr.IsConflict(err) {
		s.logger.Debug("dose action raced with another writer, retrying",
			zap.String("medication_id", medicationID),
			zap.Error(err),
		)
		result, err = s.apply(ctx, medicationID, action, opts)
	}
	if apperr.IsConflict(err) {
		s.logger.Debug("dose action conflicted twice, returning stored result",
			zap.String("medication_id", medicationID),
			zap.Error(err),
		)
		return s.replay(ctx, medicationID, action, opts)
	}
	if err != nil {
		if apperr.IsValidation(err) || apperr.IsDomain(err) || errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("failed to apply dose action",
			zap.Error(err),
			zap.String("medication_id", medicationID),
			zap.String("action", string(action)),
		)
		return nil, fmt.Errorf("failed to apply dose action: %w", err)
	}
	return result, nil
}

func (s *DoseService) apply(ctx context.Context, medicationID string, action model.Action, opts dose.Options) (*ActionResult, error) {
	var (
		out   dose.Outcome
		state *repository.MedicationState
		now   time.Time
	)
	err := s.repo.Transact(ctx, medicationID, func(ctx context.Context, st *repository.MedicationState, tx repository.DoseTx) error {
		state = st
		now = s.now().In(loadLocation(st.Timezone, s.defaultTimezone))

		opts.History = resolutions(ctx, tx.FindLogByCycle)
		o, err := s.engine.Apply(st.Medication, st.Slots, st.Inventory, action, opts, now)
		if err != nil {
			return err
		}
		out = o
		if o.Replayed {
			return nil
		}

		if o.SlotChanged {
			if err := tx.UpdateSlot(ctx, &o.Slot, o.PreviousState, o.PreviousCycle); err != nil {
				return err
			}
		}
		if err := tx.InsertLog(ctx, o.LogEntry); err != nil {
			return err
		}
		if o.Inventory != nil {
			if err := tx.SaveInventory(ctx, o.Inventory); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := s.result(medicationID, out, state, now)
	if out.Replayed {
		result.LogEntry = s.storedLog(ctx, out.Slot.ID, out.CycleAt)
		s.logger.Debug("dose action replayed",
			zap.String("medication_id", medicationID),
			zap.String("slot_id", out.Slot.ID),
			zap.Time("cycle_at", out.CycleAt),
		)
		return result, nil
	}

	s.logger.Info("dose action applied",
		zap.String("medication_id", medicationID),
		zap.String("slot_id", out.Slot.ID),
		zap.String("action", string(action)),
		zap.Time("cycle_at", out.CycleAt),
		zap.Bool("correction", out.Correction),
	)

	recordAudit(ctx, s.audit, s.logger, audit.AuditLog{
		UserID:        state.Medication.UserID,
		OperationType: audit.OperationAction,
		ResourceType:  audit.ResourceDose,
		ResourceID:    out.LogEntry.ID,
		AdditionalData: map[string]interface{}{
			"action":        string(action),
			"medication_id": medicationID,
			"slot_id":       out.Slot.ID,
			"cycle_at":      out.CycleAt,
		},
	})

	if out.Consumption.CrossedThreshold || out.Consumption.Depleted {
		result.Warnings = append(result.Warnings, s.alertInventory(ctx, state, out)...)
	}
	return result, nil
}

// replay re-reads the medication after a lost race and reports the
// resolution the winner stored
func (s *DoseService) replay(ctx context.Context, medicationID string, action model.Action, opts dose.Options) (*ActionResult, error) {
	state, err := s.repo.LoadState(ctx, medicationID)
	if err != nil {
		return nil, err
	}
	now := s.now().In(loadLocation(state.Timezone, s.defaultTimezone))

	opts.History = resolutions(ctx, s.repo.FindLogByCycle)
	out, err := s.engine.Apply(state.Medication, state.Slots, state.Inventory, action, opts, now)
	if err != nil {
		return nil, err
	}
	result := s.result(medicationID, out, state, now)
	result.Replayed = true
	result.Inventory = state.Inventory
	result.InventoryDelta = 0
	result.LogEntry = s.storedLog(ctx, out.Slot.ID, out.CycleAt)
	return result, nil
}

// resolutions adapts a dose log lookup to the engine's history input
func resolutions(ctx context.Context, find func(ctx context.Context, slotID string, scheduled time.Time) (*model.DoseLogEntry, error)) dose.ResolutionLookup {
	return func(slotID string, cycle time.Time) (model.LogStatus, error) {
		entry, err := find(ctx, slotID, cycle)
		if errors.Is(err, apperr.ErrNotFound) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return entry.Status, nil
	}
}

func (s *DoseService) storedLog(ctx context.Context, slotID string, cycle time.Time) *model.DoseLogEntry {
	entry, err := s.repo.FindLogByCycle(ctx, slotID, cycle)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn("failed to read stored dose log", zap.Error(err), zap.String("slot_id", slotID))
		}
		return nil
	}
	return entry
}

func (s *DoseService) result(medicationID string, out dose.Outcome, state *repository.MedicationState, now time.Time) *ActionResult {
	slots := make([]model.ScheduleSlot, len(state.Slots))
	copy(slots, state.Slots)
	for i := range slots {
		if slots[i].ID == out.Slot.ID && out.SlotChanged {
			slots[i] = out.Slot
		}
	}

	inv := out.Inventory
	if inv == nil {
		inv = state.Inventory
	}

	return &ActionResult{
		Action:         out.Action,
		MedicationID:   medicationID,
		Slot:           out.Slot,
		CycleAt:        out.CycleAt,
		NextReminderAt: out.NextReminderAt,
		LogEntry:       out.LogEntry,
		Inventory:      inv,
		InventoryDelta: out.InventoryDelta,
		Correction:     out.Correction,
		Replayed:       out.Replayed,
		Projection:     s.projector.Project(slots, now),
	}
}

// alertInventory sends the low-stock or depletion alert after commit.
// Delivery problems come back as warnings.
func (s *DoseService) alertInventory(ctx context.Context, state *repository.MedicationState, out dose.Outcome) []string {
	if s.notifier == nil {
		return nil
	}

	days := inventory.DaysOfSupply(out.Inventory, schedule.DosesPerDay(state.Medication.Frequency))
	msg, err := notify.RenderInventoryAlert(state.Medication, out.Inventory, out.Consumption, days)
	if err != nil {
		s.logger.Warn("failed to render inventory alert", zap.Error(err), zap.String("medication_id", state.Medication.ID))
		return []string{"inventory alert could not be rendered"}
	}

	results, err := s.notifier.NotifyUser(ctx, state.Medication.UserID, msg)
	if err != nil {
		s.logger.Warn("failed to send inventory alert",
			zap.Error(err),
			zap.String("medication_id", state.Medication.ID),
			zap.String("user_id", state.Medication.UserID),
		)
		return []string{fmt.Sprintf("inventory alert not sent: %v", err)}
	}

	var warnings []string
	for _, res := range results {
		if !res.Success {
			warnings = append(warnings, fmt.Sprintf("inventory alert via %s failed: %s", res.Channel, res.Error()))
		}
	}
	return warnings
}

// GetStatus projects the medication's schedule at at, or now when at is nil
func (s *DoseService) GetStatus(ctx context.Context, medicationID string, at *time.Time) (*StatusView, error) {
	if medicationID == "" {
		return nil, apperr.Validation("medication_id", "is required")
	}

	state, err := s.repo.LoadState(ctx, medicationID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("failed to load medication state", zap.Error(err), zap.String("medication_id", medicationID))
		return nil, fmt.Errorf("failed to load medication state: %w", err)
	}

	loc := loadLocation(state.Timezone, s.defaultTimezone)
	now := s.now().In(loc)
	if at != nil {
		now = at.In(loc)
	}

	view := &StatusView{
		Medication: state.Medication,
		Timezone:   loc.String(),
		At:         now,
		Projection: s.projector.Project(state.Slots, now),
		Inventory:  state.Inventory,
	}
	if state.Inventory != nil {
		if days := inventory.DaysOfSupply(state.Inventory, schedule.DosesPerDay(state.Medication.Frequency)); days >= 0 {
			view.DaysOfSupply = &days
		}
	}
	return view, nil
}

// ListLogs returns the dose history of a medication over the last days
// days, newest first. Zero days returns the whole history.
func (s *DoseService) ListLogs(ctx context.Context, medicationID string, days, limit int) ([]model.DoseLogEntry, error) {
	if medicationID == "" {
		return nil, apperr.Validation("medication_id", "is required")
	}
	if days < 0 {
		return nil, apperr.Validation("days", "must not be negative")
	}

	var since time.Time
	if days > 0 {
		since = s.now().AddDate(0, 0, -days)
	}
	logs, err := s.repo.ListLogs(ctx, medicationID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dose logs: %w", err)
	}
	return logs, nil
}
