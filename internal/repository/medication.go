package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

const medicationColumns = `
	m.id, m.user_id, m.name, m.dosage, m.instructions, m.frequency,
	m.first_dose_time, m.start_date, m.end_date, m.with_food, m.active,
	m.created_at, m.updated_at`

const slotColumns = `
	id, medication_id, time_of_day, recurrence_unit, recurrence_count,
	recurrence_anchor, state, cycle_at, last_taken_at, next_reminder_at,
	last_notified_at, created_at, updated_at`

const inventoryColumns = `
	medication_id, current_quantity, dose_amount, refill_threshold, unit,
	threshold_alert_sent, last_refill_at, updated_at`

// MedicationRepository manages medications with their schedule slots and
// inventory records
type MedicationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewMedicationRepository creates a new MedicationRepository
func NewMedicationRepository(db *pgxpool.Pool, logger *zap.Logger) *MedicationRepository {
	return &MedicationRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a medication, its slots and an optional inventory record in
// one transaction
func (r *MedicationRepository) Create(ctx context.Context, med *model.Medication, slots []model.ScheduleSlot, inv *model.InventoryRecord) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO medications (
			id, user_id, name, dosage, instructions, frequency,
			first_dose_time, start_date, end_date, with_food, active,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = tx.Exec(ctx, query,
		med.ID,
		med.UserID,
		med.Name,
		med.Dosage,
		med.Instructions,
		med.Frequency,
		int(med.FirstDoseTime),
		med.StartDate,
		med.EndDate,
		med.WithFood,
		med.Active,
		med.CreatedAt,
		med.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to create medication",
			zap.Error(err),
			zap.String("medication_id", med.ID),
			zap.String("user_id", med.UserID),
		)
		return fmt.Errorf("failed to create medication: %w", err)
	}

	if err := insertSlots(ctx, tx, slots); err != nil {
		r.logger.Error("failed to create schedule slots", zap.Error(err), zap.String("medication_id", med.ID))
		return err
	}

	if inv != nil {
		if err := upsertInventory(ctx, tx, inv); err != nil {
			r.logger.Error("failed to create inventory", zap.Error(err), zap.String("medication_id", med.ID))
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit medication: %w", err)
	}
	return nil
}

// FindByUserID retrieves all medications for a user, newest first
func (r *MedicationRepository) FindByUserID(ctx context.Context, userID string) ([]model.Medication, error) {
	query := `SELECT ` + medicationColumns + `
		FROM medications m
		WHERE m.user_id = $1
		ORDER BY m.created_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("failed to find medications", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to find medications: %w", err)
	}
	defer rows.Close()

	var medications []model.Medication
	for rows.Next() {
		med, err := scanMedication(rows)
		if err != nil {
			r.logger.Error("failed to scan medication", zap.Error(err))
			continue
		}
		medications = append(medications, *med)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating medications", zap.Error(err))
		return nil, fmt.Errorf("error iterating medications: %w", err)
	}

	return medications, nil
}

// FindByID retrieves a medication by ID
func (r *MedicationRepository) FindByID(ctx context.Context, medicationID string) (*model.Medication, error) {
	query := `SELECT ` + medicationColumns + `
		FROM medications m
		WHERE m.id = $1
	`

	med, err := scanMedication(r.db.QueryRow(ctx, query, medicationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("medication %s: %w", medicationID, apperr.ErrNotFound)
		}
		r.logger.Error("failed to find medication", zap.Error(err), zap.String("medication_id", medicationID))
		return nil, fmt.Errorf("failed to find medication: %w", err)
	}

	return med, nil
}

// Update updates a medication. When slots is non-nil the existing slots are
// replaced, which also drops their dose logs.
func (r *MedicationRepository) Update(ctx context.Context, med *model.Medication, slots []model.ScheduleSlot) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE medications
		SET name = $1, dosage = $2, instructions = $3, frequency = $4,
		    first_dose_time = $5, start_date = $6, end_date = $7,
		    with_food = $8, active = $9, updated_at = $10
		WHERE id = $11
	`

	result, err := tx.Exec(ctx, query,
		med.Name,
		med.Dosage,
		med.Instructions,
		med.Frequency,
		int(med.FirstDoseTime),
		med.StartDate,
		med.EndDate,
		med.WithFood,
		med.Active,
		med.UpdatedAt,
		med.ID,
	)
	if err != nil {
		r.logger.Error("failed to update medication",
			zap.Error(err),
			zap.String("medication_id", med.ID),
		)
		return fmt.Errorf("failed to update medication: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("medication %s: %w", med.ID, apperr.ErrNotFound)
	}

	if slots != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM schedule_slots WHERE medication_id = $1`, med.ID); err != nil {
			return fmt.Errorf("failed to delete schedule slots: %w", err)
		}
		if err := insertSlots(ctx, tx, slots); err != nil {
			r.logger.Error("failed to recreate schedule slots", zap.Error(err), zap.String("medication_id", med.ID))
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit medication update: %w", err)
	}
	return nil
}

// Delete deletes a medication; slots, inventory and logs cascade
func (r *MedicationRepository) Delete(ctx context.Context, medicationID string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM medications WHERE id = $1`, medicationID)
	if err != nil {
		r.logger.Error("failed to delete medication",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		return fmt.Errorf("failed to delete medication: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("medication %s: %w", medicationID, apperr.ErrNotFound)
	}

	return nil
}

// FindSlots retrieves the schedule slots of a medication ordered by time of day
func (r *MedicationRepository) FindSlots(ctx context.Context, medicationID string) ([]model.ScheduleSlot, error) {
	return querySlots(ctx, r.db, medicationID, false)
}

// FindInventory retrieves the inventory record of a medication, or nil when
// stock is not tracked
func (r *MedicationRepository) FindInventory(ctx context.Context, medicationID string) (*model.InventoryRecord, error) {
	return queryInventory(ctx, r.db, medicationID, false)
}

// UpsertInventory creates or replaces the inventory record of a medication
func (r *MedicationRepository) UpsertInventory(ctx context.Context, inv *model.InventoryRecord) error {
	if err := upsertInventory(ctx, r.db, inv); err != nil {
		r.logger.Error("failed to upsert inventory", zap.Error(err), zap.String("medication_id", inv.MedicationID))
		return err
	}
	return nil
}

// UpdateInventory locks the inventory record, applies fn and stores the
// result. fn receives nil when the medication has no record.
func (r *MedicationRepository) UpdateInventory(ctx context.Context, medicationID string, fn func(*model.InventoryRecord) error) (*model.InventoryRecord, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, err := queryInventory(ctx, tx, medicationID, true)
	if err != nil {
		return nil, err
	}
	if err := fn(inv); err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, nil
	}
	if err := upsertInventory(ctx, tx, inv); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit inventory: %w", err)
	}
	return inv, nil
}

// querier is satisfied by both the pool and a transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertSlots(ctx context.Context, q querier, slots []model.ScheduleSlot) error {
	query := `
		INSERT INTO schedule_slots (
			id, medication_id, time_of_day, recurrence_unit, recurrence_count,
			recurrence_anchor, state, cycle_at, last_taken_at, next_reminder_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for i := range slots {
		s := &slots[i]
		var unit *string
		var count *int
		var anchor *time.Time
		if s.Recurrence != nil {
			u := string(s.Recurrence.Unit)
			c := s.Recurrence.Count
			a := s.Recurrence.Anchor
			unit, count, anchor = &u, &c, &a
		}
		_, err := q.Exec(ctx, query,
			s.ID,
			s.MedicationID,
			int(s.TimeOfDay),
			unit,
			count,
			anchor,
			string(s.State),
			s.CycleAt,
			s.LastTakenAt,
			s.NextReminderAt,
			s.CreatedAt,
			s.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create schedule slot %s: %w", s.TimeOfDay, err)
		}
	}
	return nil
}

func querySlots(ctx context.Context, q querier, medicationID string, lock bool) ([]model.ScheduleSlot, error) {
	query := `SELECT ` + slotColumns + `
		FROM schedule_slots
		WHERE medication_id = $1
		ORDER BY time_of_day`
	if lock {
		query += ` FOR UPDATE`
	}

	rows, err := q.Query(ctx, query, medicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to find schedule slots: %w", err)
	}
	defer rows.Close()

	var slots []model.ScheduleSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule slot: %w", err)
		}
		slots = append(slots, *slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule slots: %w", err)
	}
	return slots, nil
}

func queryInventory(ctx context.Context, q querier, medicationID string, lock bool) (*model.InventoryRecord, error) {
	query := `SELECT ` + inventoryColumns + `
		FROM inventory_records
		WHERE medication_id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var inv model.InventoryRecord
	err := q.QueryRow(ctx, query, medicationID).Scan(
		&inv.MedicationID,
		&inv.CurrentQuantity,
		&inv.DoseAmount,
		&inv.RefillThreshold,
		&inv.Unit,
		&inv.ThresholdAlertSent,
		&inv.LastRefillAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find inventory: %w", err)
	}
	return &inv, nil
}

func upsertInventory(ctx context.Context, q querier, inv *model.InventoryRecord) error {
	query := `
		INSERT INTO inventory_records (
			medication_id, current_quantity, dose_amount, refill_threshold, unit,
			threshold_alert_sent, last_refill_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (medication_id) DO UPDATE SET
			current_quantity = EXCLUDED.current_quantity,
			dose_amount = EXCLUDED.dose_amount,
			refill_threshold = EXCLUDED.refill_threshold,
			unit = EXCLUDED.unit,
			threshold_alert_sent = EXCLUDED.threshold_alert_sent,
			last_refill_at = EXCLUDED.last_refill_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err := q.Exec(ctx, query,
		inv.MedicationID,
		inv.CurrentQuantity,
		inv.DoseAmount,
		inv.RefillThreshold,
		inv.Unit,
		inv.ThresholdAlertSent,
		inv.LastRefillAt,
		inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save inventory: %w", err)
	}
	return nil
}

func scanMedication(row pgx.Row) (*model.Medication, error) {
	var med model.Medication
	var firstDose int
	err := row.Scan(
		&med.ID,
		&med.UserID,
		&med.Name,
		&med.Dosage,
		&med.Instructions,
		&med.Frequency,
		&firstDose,
		&med.StartDate,
		&med.EndDate,
		&med.WithFood,
		&med.Active,
		&med.CreatedAt,
		&med.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	med.FirstDoseTime = model.TimeOfDay(firstDose)
	return &med, nil
}

func scanSlot(row pgx.Row) (*model.ScheduleSlot, error) {
	var slot model.ScheduleSlot
	var tod int
	var unit *string
	var count *int
	var anchor *time.Time
	var state string
	err := row.Scan(
		&slot.ID,
		&slot.MedicationID,
		&tod,
		&unit,
		&count,
		&anchor,
		&state,
		&slot.CycleAt,
		&slot.LastTakenAt,
		&slot.NextReminderAt,
		&slot.LastNotifiedAt,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	slot.TimeOfDay = model.TimeOfDay(tod)
	slot.State = model.SlotState(state)
	if unit != nil && count != nil && anchor != nil {
		slot.Recurrence = &model.Recurrence{
			Unit:   model.PeriodUnit(*unit),
			Count:  *count,
			Anchor: *anchor,
		}
	}
	return &slot, nil
}
