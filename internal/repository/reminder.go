package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ReminderRepository serves the reminder scheduler
type ReminderRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewReminderRepository creates a new ReminderRepository
func NewReminderRepository(db *pgxpool.Pool, logger *zap.Logger) *ReminderRepository {
	return &ReminderRepository{
		db:     db,
		logger: logger,
	}
}

// FindDueMedicationIDs lists active medications with at least one slot whose
// reminder time has come
func (r *ReminderRepository) FindDueMedicationIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	query := `
		SELECT m.id
		FROM medications m
		JOIN schedule_slots s ON s.medication_id = m.id
		WHERE m.active AND s.next_reminder_at IS NOT NULL AND s.next_reminder_at <= $1
		GROUP BY m.id
		ORDER BY MIN(s.next_reminder_at)
		LIMIT $2
	`
	return r.queryIDs(ctx, query, now, limitArg(limit))
}

// FindStaleMedicationIDs lists active medications with a slot whose current
// cycle marker is older than before, or that never had a cycle resolved
func (r *ReminderRepository) FindStaleMedicationIDs(ctx context.Context, before time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT m.id
		FROM medications m
		JOIN schedule_slots s ON s.medication_id = m.id
		WHERE m.active AND (s.cycle_at IS NULL OR s.cycle_at < $1 OR s.state = 'delayed')
	`
	return r.queryIDs(ctx, query, before)
}

// AdvanceReminder records a dispatched reminder and moves the slot's
// reminder time to next. The update is skipped when a dose action changed
// the reminder time meanwhile; the return value reports whether it applied.
func (r *ReminderRepository) AdvanceReminder(ctx context.Context, slotID string, expected *time.Time, notifiedAt *time.Time, next *time.Time) (bool, error) {
	query := `
		UPDATE schedule_slots
		SET next_reminder_at = $1,
		    last_notified_at = COALESCE($2, last_notified_at),
		    updated_at = NOW()
		WHERE id = $3 AND next_reminder_at IS NOT DISTINCT FROM $4
	`
	result, err := r.db.Exec(ctx, query, next, notifiedAt, slotID, expected)
	if err != nil {
		r.logger.Error("failed to advance reminder", zap.Error(err), zap.String("slot_id", slotID))
		return false, fmt.Errorf("failed to advance reminder: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (r *ReminderRepository) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to query medications for reminders", zap.Error(err))
		return nil, fmt.Errorf("failed to query medications for reminders: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan medication id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating medication ids: %w", err)
	}
	return ids, nil
}
