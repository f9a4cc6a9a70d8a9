// Package scheduler dispatches dose reminders and sweeps long-overdue
// cycles. It wakes on a ticker, on Notify and on Postgres notifications
// published to the dose_events channel.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/internal/dose"
	"github.com/Blackades/med-alert-hub-sub000/internal/notify"
	"github.com/Blackades/med-alert-hub-sub000/internal/repository"
	"github.com/Blackades/med-alert-hub-sub000/internal/schedule"
	"github.com/Blackades/med-alert-hub-sub000/internal/service"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// EventChannel is the Postgres channel the database triggers notify on
const EventChannel = "dose_events"

const (
	defaultCheckInterval = time.Minute
	defaultBatchSize     = 200
	listenerPing         = 90 * time.Second
	autoMissReason       = "auto"
)

// ReminderStore selects and advances slot reminders
type ReminderStore interface {
	FindDueMedicationIDs(ctx context.Context, now time.Time, limit int) ([]string, error)
	FindStaleMedicationIDs(ctx context.Context, before time.Time) ([]string, error)
	AdvanceReminder(ctx context.Context, slotID string, expected *time.Time, notifiedAt *time.Time, next *time.Time) (bool, error)
}

// StateLoader reads a medication with its slots and owner timezone
type StateLoader interface {
	LoadState(ctx context.Context, medicationID string) (*repository.MedicationState, error)
}

// DoseApplier applies dose actions; the auto-miss sweep goes through it
type DoseApplier interface {
	ApplyAction(ctx context.Context, medicationID string, action model.Action, opts dose.Options) (*service.ActionResult, error)
}

// Config tunes the scheduler
type Config struct {
	CheckInterval time.Duration
	BatchSize     int
	// AutoMissAfter marks cycles missed once they stay unresolved this long
	// after their scheduled time. Zero disables the sweep.
	AutoMissAfter   time.Duration
	DefaultTimezone string
}

// RunResult counts what one pass did
type RunResult struct {
	Medications int
	Reminders   int
	Failed      int
	AutoMissed  int
}

// Scheduler runs reminder passes
type Scheduler struct {
	store     ReminderStore
	states    StateLoader
	notifier  service.UserNotifier
	doses     DoseApplier
	projector schedule.Projector
	cfg       Config
	notifyCh  chan struct{}
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a Scheduler. doses may be nil when the auto-miss sweep is
// disabled.
func New(
	store ReminderStore,
	states StateLoader,
	notifier service.UserNotifier,
	doses DoseApplier,
	projector schedule.Projector,
	cfg Config,
	logger *zap.Logger,
) *Scheduler {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultCheckInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Scheduler{
		store:     store,
		states:    states,
		notifier:  notifier,
		doses:     doses,
		projector: projector,
		cfg:       cfg,
		notifyCh:  make(chan struct{}, 1),
		now:       time.Now,
		logger:    logger,
	}
}

// Notify triggers an immediate pass. It never blocks; a pending trigger
// absorbs further ones.
func (s *Scheduler) Notify() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
	}
}

// Start runs passes until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started",
		zap.Duration("check_interval", s.cfg.CheckInterval),
		zap.Duration("auto_miss_after", s.cfg.AutoMissAfter),
	)
	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.notifyCh:
			s.logger.Debug("scheduler triggered by notification")
			s.RunOnce(ctx)
		}
	}
}

// Listen subscribes to EventChannel and turns every notification into a
// Notify call until ctx is cancelled
func (s *Scheduler) Listen(ctx context.Context, dsn string) error {
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.Warn("postgres listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	defer listener.Close()

	if err := listener.Listen(EventChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", EventChannel, err)
	}
	s.logger.Info("listening for database events", zap.String("channel", EventChannel))

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			// nil after a reconnect; state may have changed meanwhile
			if n != nil {
				s.logger.Debug("database event received", zap.String("medication_id", n.Extra))
			}
			s.Notify()
		case <-time.After(listenerPing):
			go func() {
				if err := listener.Ping(); err != nil {
					s.logger.Warn("postgres listener ping failed", zap.Error(err))
				}
			}()
		}
	}
}

// RunOnce dispatches due reminders and, when enabled, sweeps long-overdue
// cycles
func (s *Scheduler) RunOnce(ctx context.Context) RunResult {
	var res RunResult
	now := s.now()

	ids, err := s.store.FindDueMedicationIDs(ctx, now, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("failed to find due reminders", zap.Error(err))
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return res
		}
		res.Medications++
		sent, failed := s.remind(ctx, id, now)
		res.Reminders += sent
		res.Failed += failed
	}

	if s.cfg.AutoMissAfter > 0 && s.doses != nil {
		res.AutoMissed = s.sweep(ctx, now)
	}

	if res.Reminders > 0 || res.Failed > 0 || res.AutoMissed > 0 {
		s.logger.Info("scheduler pass finished",
			zap.Int("medications", res.Medications),
			zap.Int("reminders", res.Reminders),
			zap.Int("failed", res.Failed),
			zap.Int("auto_missed", res.AutoMissed),
		)
	}
	return res
}

// remind handles every slot of one medication whose reminder time has come
func (s *Scheduler) remind(ctx context.Context, medicationID string, now time.Time) (sent, failed int) {
	state, err := s.states.LoadState(ctx, medicationID)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			s.logger.Error("failed to load medication for reminders", zap.Error(err), zap.String("medication_id", medicationID))
		}
		return 0, 1
	}
	med := state.Medication
	local := now.In(location(state.Timezone, s.cfg.DefaultTimezone))
	proj := s.projector.Project(state.Slots, local)

	statuses := make(map[string]schedule.SlotStatus, len(proj.Slots))
	for _, st := range proj.Slots {
		statuses[st.SlotID] = st
	}

	for _, slot := range state.Slots {
		if slot.NextReminderAt == nil || slot.NextReminderAt.After(now) {
			continue
		}
		reminderAt := *slot.NextReminderAt

		if !med.ActiveAt(local) {
			s.advance(ctx, slot, nil, nil)
			continue
		}

		st := statuses[slot.ID]
		pending := st.ScheduledAt != nil && (st.Status == model.DoseStatusDue || st.Status == model.DoseStatusOverdue)
		if !pending {
			s.advance(ctx, slot, nil, s.nextCycle(med, slot, local))
			continue
		}

		msg, err := notify.RenderReminder(med, st.Status, *st.ScheduledAt)
		if err != nil {
			s.logger.Error("failed to render reminder", zap.Error(err), zap.String("slot_id", slot.ID))
			failed++
			continue
		}
		if _, err := s.notifier.NotifyUser(ctx, med.UserID, msg); err != nil {
			// left in place so the next pass retries
			s.logger.Warn("failed to send reminder",
				zap.Error(err),
				zap.String("medication_id", med.ID),
				zap.String("slot_id", slot.ID),
			)
			failed++
			continue
		}
		sent++

		next := s.nextCycle(med, slot, local)
		if st.Status == model.DoseStatusDue {
			dueAt := *st.ScheduledAt
			if reminderAt.After(dueAt) {
				dueAt = reminderAt
			}
			// one follow-up once the dose turns overdue
			if followUp := dueAt.Add(s.projector.OverdueAfter() + time.Second); followUp.After(now) {
				next = &followUp
			}
		}
		notifiedAt := now
		s.advance(ctx, slot, &notifiedAt, next)
	}
	return sent, failed
}

// nextCycle is the slot's next unresolved occurrence inside the active window
func (s *Scheduler) nextCycle(med *model.Medication, slot model.ScheduleSlot, local time.Time) *time.Time {
	next, ok := schedule.NextUnresolved(slot, local)
	if !ok || !med.ActiveAt(next) {
		return nil
	}
	return &next
}

func (s *Scheduler) advance(ctx context.Context, slot model.ScheduleSlot, notifiedAt, next *time.Time) {
	applied, err := s.store.AdvanceReminder(ctx, slot.ID, slot.NextReminderAt, notifiedAt, next)
	if err != nil {
		s.logger.Error("failed to advance reminder", zap.Error(err), zap.String("slot_id", slot.ID))
		return
	}
	if !applied {
		s.logger.Debug("reminder changed concurrently, keeping the newer value", zap.String("slot_id", slot.ID))
	}
}

// sweep applies the miss action to cycles that stayed unresolved for
// AutoMissAfter. Only today's occurrence of each slot is considered.
func (s *Scheduler) sweep(ctx context.Context, now time.Time) int {
	ids, err := s.store.FindStaleMedicationIDs(ctx, now.Add(-s.cfg.AutoMissAfter))
	if err != nil {
		s.logger.Error("failed to find stale medications", zap.Error(err))
		return 0
	}

	missed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		state, err := s.states.LoadState(ctx, id)
		if err != nil {
			s.logger.Warn("failed to load medication for auto-miss", zap.Error(err), zap.String("medication_id", id))
			continue
		}
		local := now.In(location(state.Timezone, s.cfg.DefaultTimezone))
		if !state.Medication.ActiveAt(local) {
			continue
		}

		for _, st := range s.projector.Project(state.Slots, local).Slots {
			if st.Status != model.DoseStatusOverdue || st.ScheduledAt == nil || now.Sub(*st.ScheduledAt) < s.cfg.AutoMissAfter {
				continue
			}
			reason := autoMissReason
			result, err := s.doses.ApplyAction(ctx, id, model.ActionMiss, dose.Options{
				SlotID:      st.SlotID,
				ScheduledAt: st.ScheduledAt,
				Reason:      &reason,
			})
			if err != nil {
				s.logger.Warn("auto-miss failed",
					zap.Error(err),
					zap.String("medication_id", id),
					zap.String("slot_id", st.SlotID),
				)
				continue
			}
			if !result.Replayed {
				missed++
				s.logger.Info("dose marked missed automatically",
					zap.String("medication_id", id),
					zap.String("slot_id", st.SlotID),
					zap.Time("scheduled_at", *st.ScheduledAt),
				)
			}
		}
	}
	return missed
}

func location(name, fallback string) *time.Location {
	for _, candidate := range []string{name, fallback} {
		if candidate == "" {
			continue
		}
		if loc, err := time.LoadLocation(candidate); err == nil {
			return loc
		}
	}
	return time.UTC
}
