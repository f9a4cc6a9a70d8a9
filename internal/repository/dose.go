package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

const doseLogColumns = `
	id, medication_id, slot_id, scheduled_time, actual_action_time, status,
	dosage_taken_amount, reason, created_at`

// MedicationState is a medication with everything the dose engine reads
type MedicationState struct {
	Medication *model.Medication
	Timezone   string
	Slots      []model.ScheduleSlot
	Inventory  *model.InventoryRecord
}

// DoseTx writes the result of a dose action inside the transaction opened
// by Transact
type DoseTx interface {
	// UpdateSlot stores slot if its state and cycle marker still equal
	// prevState and prevCycle. Otherwise it returns a ConflictError.
	UpdateSlot(ctx context.Context, slot *model.ScheduleSlot, prevState model.SlotState, prevCycle *time.Time) error
	// InsertLog appends entry, returning a ConflictError when the cycle
	// already has a log with the same resolution.
	InsertLog(ctx context.Context, entry *model.DoseLogEntry) error
	SaveInventory(ctx context.Context, inv *model.InventoryRecord) error
	// FindLogByCycle returns the latest resolution of a slot cycle, read
	// under the transaction's lock
	FindLogByCycle(ctx context.Context, slotID string, scheduled time.Time) (*model.DoseLogEntry, error)
}

// DoseRepository persists dose actions and the dose log
type DoseRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewDoseRepository creates a new DoseRepository
func NewDoseRepository(db *pgxpool.Pool, logger *zap.Logger) *DoseRepository {
	return &DoseRepository{
		db:     db,
		logger: logger,
	}
}

// Transact locks the medication row, loads its state and runs fn. The
// transaction commits when fn returns nil and rolls back otherwise, so one
// writer at a time acts on a medication.
func (r *DoseRepository) Transact(ctx context.Context, medicationID string, fn func(ctx context.Context, state *MedicationState, tx DoseTx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	state, err := loadState(ctx, tx, medicationID, true)
	if err != nil {
		return err
	}

	if err := fn(ctx, state, &doseTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("failed to commit dose action", zap.Error(err), zap.String("medication_id", medicationID))
		return fmt.Errorf("failed to commit dose action: %w", err)
	}
	return nil
}

// LoadState reads a medication's state without locking it
func (r *DoseRepository) LoadState(ctx context.Context, medicationID string) (*MedicationState, error) {
	return loadState(ctx, r.db, medicationID, false)
}

// FindLogByCycle returns the latest resolution logged for a slot cycle
func (r *DoseRepository) FindLogByCycle(ctx context.Context, slotID string, scheduled time.Time) (*model.DoseLogEntry, error) {
	entry, err := findLogByCycle(ctx, r.db, slotID, scheduled)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		r.logger.Error("failed to find dose log", zap.Error(err), zap.String("slot_id", slotID))
	}
	return entry, err
}

func findLogByCycle(ctx context.Context, q querier, slotID string, scheduled time.Time) (*model.DoseLogEntry, error) {
	query := `SELECT ` + doseLogColumns + `
		FROM dose_logs
		WHERE slot_id = $1 AND scheduled_time = $2 AND status <> 'delayed'
		ORDER BY created_at DESC
		LIMIT 1
	`

	entry, err := scanDoseLog(q.QueryRow(ctx, query, slotID, scheduled))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("dose log for slot %s: %w", slotID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find dose log: %w", err)
	}
	return entry, nil
}

// ListLogs retrieves the dose log of a medication since the given time,
// newest first. A zero since returns the whole history.
func (r *DoseRepository) ListLogs(ctx context.Context, medicationID string, since time.Time, limit int) ([]model.DoseLogEntry, error) {
	query := `SELECT ` + doseLogColumns + `
		FROM dose_logs
		WHERE medication_id = $1 AND ($2::timestamptz IS NULL OR scheduled_time >= $2)
		ORDER BY scheduled_time DESC, created_at DESC
		LIMIT $3
	`
	return r.queryLogs(ctx, query, medicationID, sinceArg(since), limitArg(limit))
}

// ListLogsByUser retrieves the dose log of every medication of a user
func (r *DoseRepository) ListLogsByUser(ctx context.Context, userID string, since time.Time) ([]model.DoseLogEntry, error) {
	query := `
		SELECT l.id, l.medication_id, l.slot_id, l.scheduled_time, l.actual_action_time,
		       l.status, l.dosage_taken_amount, l.reason, l.created_at
		FROM dose_logs l
		JOIN medications m ON m.id = l.medication_id
		WHERE m.user_id = $1 AND ($2::timestamptz IS NULL OR l.scheduled_time >= $2)
		ORDER BY l.scheduled_time DESC, l.created_at DESC
	`
	return r.queryLogs(ctx, query, userID, sinceArg(since))
}

func (r *DoseRepository) queryLogs(ctx context.Context, query string, args ...any) ([]model.DoseLogEntry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list dose logs", zap.Error(err))
		return nil, fmt.Errorf("failed to list dose logs: %w", err)
	}
	defer rows.Close()

	logs := []model.DoseLogEntry{}
	for rows.Next() {
		entry, err := scanDoseLog(rows)
		if err != nil {
			r.logger.Error("failed to scan dose log", zap.Error(err))
			continue
		}
		logs = append(logs, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dose logs: %w", err)
	}
	return logs, nil
}

type doseTx struct {
	tx pgx.Tx
}

func (d *doseTx) UpdateSlot(ctx context.Context, slot *model.ScheduleSlot, prevState model.SlotState, prevCycle *time.Time) error {
	query := `
		UPDATE schedule_slots
		SET state = $1, cycle_at = $2, last_taken_at = $3, next_reminder_at = $4, updated_at = $5
		WHERE id = $6 AND state = $7 AND cycle_at IS NOT DISTINCT FROM $8
	`
	result, err := d.tx.Exec(ctx, query,
		string(slot.State),
		slot.CycleAt,
		slot.LastTakenAt,
		slot.NextReminderAt,
		slot.UpdatedAt,
		slot.ID,
		string(prevState),
		prevCycle,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule slot: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &apperr.ConflictError{SlotID: slot.ID, CycleAt: formatCycle(slot.CycleAt)}
	}
	return nil
}

func (d *doseTx) InsertLog(ctx context.Context, entry *model.DoseLogEntry) error {
	query := `
		INSERT INTO dose_logs (
			id, medication_id, slot_id, scheduled_time, actual_action_time,
			status, dosage_taken_amount, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
	`
	result, err := d.tx.Exec(ctx, query,
		entry.ID,
		entry.MedicationID,
		entry.SlotID,
		entry.ScheduledTime,
		entry.ActualActionTime,
		string(entry.Status),
		entry.DosageTakenAmount,
		entry.Reason,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert dose log: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &apperr.ConflictError{SlotID: entry.SlotID, CycleAt: entry.ScheduledTime.Format(time.RFC3339)}
	}
	return nil
}

func (d *doseTx) FindLogByCycle(ctx context.Context, slotID string, scheduled time.Time) (*model.DoseLogEntry, error) {
	return findLogByCycle(ctx, d.tx, slotID, scheduled)
}

func (d *doseTx) SaveInventory(ctx context.Context, inv *model.InventoryRecord) error {
	return upsertInventory(ctx, d.tx, inv)
}

func loadState(ctx context.Context, q querier, medicationID string, lock bool) (*MedicationState, error) {
	query := `SELECT ` + medicationColumns + `, u.timezone
		FROM medications m
		JOIN users u ON u.id = m.user_id
		WHERE m.id = $1`
	if lock {
		query += ` FOR UPDATE OF m`
	}

	var med model.Medication
	var firstDose int
	var tz string
	err := q.QueryRow(ctx, query, medicationID).Scan(
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
		&tz,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("medication %s: %w", medicationID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load medication: %w", err)
	}
	med.FirstDoseTime = model.TimeOfDay(firstDose)

	slots, err := querySlots(ctx, q, medicationID, lock)
	if err != nil {
		return nil, err
	}
	inv, err := queryInventory(ctx, q, medicationID, lock)
	if err != nil {
		return nil, err
	}

	return &MedicationState{
		Medication: &med,
		Timezone:   tz,
		Slots:      slots,
		Inventory:  inv,
	}, nil
}

func scanDoseLog(row pgx.Row) (*model.DoseLogEntry, error) {
	var entry model.DoseLogEntry
	var status string
	err := row.Scan(
		&entry.ID,
		&entry.MedicationID,
		&entry.SlotID,
		&entry.ScheduledTime,
		&entry.ActualActionTime,
		&status,
		&entry.DosageTakenAmount,
		&entry.Reason,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.Status = model.LogStatus(status)
	return &entry, nil
}

func formatCycle(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func sinceArg(since time.Time) *time.Time {
	if since.IsZero() {
		return nil
	}
	return &since
}

func limitArg(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
