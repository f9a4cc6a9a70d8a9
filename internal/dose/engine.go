// Package dose implements the state machine that applies take, miss, skip
// and delay actions to a medication's schedule slots.
package dose

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/internal/inventory"
	"github.com/Blackades/med-alert-hub-sub000/internal/schedule"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

const (
	// DefaultDelay is used when a delay action carries no duration
	DefaultDelay = 15 * time.Minute
	// MaxDelay bounds a single delay action
	MaxDelay = 12 * time.Hour
	// clockSkew tolerates client clocks slightly ahead of the server
	clockSkew = time.Minute
)

// ResolutionLookup returns the status last logged for a slot cycle, or an
// empty status when the cycle has no resolution yet
type ResolutionLookup func(slotID string, cycle time.Time) (model.LogStatus, error)

// Options are the optional inputs of an action
type Options struct {
	SlotID      string
	Reason      *string
	Quantity    *float64
	AtTime      *time.Time
	ScheduledAt *time.Time
	Delay       time.Duration
	// History resolves cycles older than the slot's current marker. Without
	// it such cycles are treated as unresolved.
	History ResolutionLookup
}

// Outcome is the result of applying an action. Slot and Inventory are
// updated copies; the caller persists them.
type Outcome struct {
	Action         model.Action
	Slot           model.ScheduleSlot
	PreviousState  model.SlotState
	PreviousCycle  *time.Time
	CycleAt        time.Time
	NextReminderAt *time.Time
	LogEntry       *model.DoseLogEntry
	Inventory      *model.InventoryRecord
	Consumption    inventory.ConsumeResult
	InventoryDelta float64
	// SlotChanged is false for actions on a cycle older than the slot's
	// current marker; only the log entry and inventory change then.
	SlotChanged bool
	Correction  bool
	Replayed    bool
}

// Engine applies actions
type Engine struct {
	defaultDelay time.Duration
	maxDelay     time.Duration
}

// NewEngine creates an Engine. Non-positive durations fall back to
// DefaultDelay and MaxDelay.
func NewEngine(defaultDelay, maxDelay time.Duration) *Engine {
	if defaultDelay <= 0 {
		defaultDelay = DefaultDelay
	}
	if maxDelay <= 0 {
		maxDelay = MaxDelay
	}
	if defaultDelay > maxDelay {
		defaultDelay = maxDelay
	}
	return &Engine{defaultDelay: defaultDelay, maxDelay: maxDelay}
}

// ParseAction validates an action name
func ParseAction(s string) (model.Action, error) {
	switch a := model.Action(s); a {
	case model.ActionTake, model.ActionMiss, model.ActionSkip, model.ActionDelay:
		return a, nil
	}
	return "", apperr.Validation("action", "unknown action %q", s)
}

// Apply runs action against the targeted slot cycle of med. Replaying an
// action on a cycle that is already resolved returns Replayed with the
// slot untouched and no log entry. All times are interpreted in now's
// location.
func (e *Engine) Apply(
	med *model.Medication,
	slots []model.ScheduleSlot,
	inv *model.InventoryRecord,
	action model.Action,
	opts Options,
	now time.Time,
) (Outcome, error) {
	if _, err := ParseAction(string(action)); err != nil {
		return Outcome{}, err
	}
	if med == nil || !med.Active {
		return Outcome{}, apperr.Domain(apperr.CodeMedicationInactive, "medication not currently active")
	}

	loc := now.Location()
	at := now
	if opts.AtTime != nil {
		at = opts.AtTime.In(loc)
		if at.After(now.Add(clockSkew)) {
			return Outcome{}, apperr.Validation("at_time", "must not be in the future")
		}
	}
	if opts.Quantity != nil {
		q := *opts.Quantity
		if q <= 0 || math.IsNaN(q) || math.IsInf(q, 0) {
			return Outcome{}, apperr.Validation("quantity", "must be a positive number")
		}
	}
	delay := opts.Delay
	if action == model.ActionDelay {
		if delay == 0 {
			delay = e.defaultDelay
		}
		if delay < 0 || delay > e.maxDelay {
			return Outcome{}, apperr.Validation("delay", "must be positive and at most %s", e.maxDelay)
		}
	}
	var scheduledAt *time.Time
	if opts.ScheduledAt != nil {
		s := opts.ScheduledAt.In(loc)
		scheduledAt = &s
	}

	idx, cycle, err := Target(slots, opts.SlotID, at, scheduledAt)
	if err != nil {
		return Outcome{}, err
	}
	if !med.ActiveAt(cycle) {
		return Outcome{}, apperr.Domain(apperr.CodeMedicationInactive, "medication not currently active")
	}

	slot := slots[idx]
	out := Outcome{
		Action:         action,
		Slot:           slot,
		PreviousState:  slot.State,
		PreviousCycle:  slot.CycleAt,
		CycleAt:        cycle,
		NextReminderAt: slot.NextReminderAt,
	}

	if slot.ResolvedFor(cycle) {
		if action != model.ActionTake || slot.State == model.SlotStateTaken {
			out.Replayed = true
			return out, nil
		}
		out.Correction = true
	}

	historic := slot.CycleAt != nil && cycle.Before(*slot.CycleAt)
	if historic && action == model.ActionDelay {
		return Outcome{}, apperr.Validation("scheduled_at", "cannot delay a cycle older than the current one")
	}
	if historic && opts.History != nil {
		prior, err := opts.History(slot.ID, cycle)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to read cycle resolution: %w", err)
		}
		switch prior {
		case model.LogStatusTaken, model.LogStatusMissed, model.LogStatusSkipped:
			if action != model.ActionTake || prior == model.LogStatusTaken {
				out.Replayed = true
				return out, nil
			}
			out.Correction = true
		}
	}

	entry := &model.DoseLogEntry{
		ID:            uuid.NewString(),
		MedicationID:  med.ID,
		SlotID:        slot.ID,
		ScheduledTime: cycle,
		Reason:        opts.Reason,
		CreatedAt:     now,
	}
	if action != model.ActionMiss {
		actual := at
		entry.ActualActionTime = &actual
	}

	var next *time.Time
	switch action {
	case model.ActionTake:
		amount := inventory.DoseAmount(inv)
		if opts.Quantity != nil {
			amount = *opts.Quantity
		}
		if inv != nil {
			rec := *inv
			res, err := inventory.Consume(&rec, amount, now)
			if err != nil {
				return Outcome{}, fmt.Errorf("failed to consume inventory: %w", err)
			}
			out.Inventory = &rec
			out.Consumption = res
			out.InventoryDelta = -res.Consumed
		}
		entry.Status = model.LogStatusTaken
		entry.DosageTakenAmount = amount
		slot.State = model.SlotStateTaken
		taken := at
		slot.LastTakenAt = &taken
		next = e.nextCycle(med, slot, cycle)
	case model.ActionMiss:
		entry.Status = model.LogStatusMissed
		slot.State = model.SlotStateMissed
		next = e.nextCycle(med, slot, cycle)
	case model.ActionSkip:
		entry.Status = model.LogStatusSkipped
		slot.State = model.SlotStateSkipped
		next = e.nextCycle(med, slot, cycle)
	case model.ActionDelay:
		entry.Status = model.LogStatusDelayed
		slot.State = model.SlotStateDelayed
		remind := at.Add(delay)
		next = &remind
	}

	out.LogEntry = entry
	if historic {
		// Older cycles are logged but leave the current marker alone.
		return out, nil
	}

	c := cycle
	slot.CycleAt = &c
	slot.NextReminderAt = next
	slot.UpdatedAt = now
	out.Slot = slot
	out.NextReminderAt = next
	out.SlotChanged = true
	return out, nil
}

// nextCycle advances one full cycle from the slot's own scheduled time, or
// returns nil when the next cycle falls outside the active window.
func (e *Engine) nextCycle(med *model.Medication, slot model.ScheduleSlot, cycle time.Time) *time.Time {
	next, ok := schedule.NextOccurrence(slot, cycle)
	if !ok || !med.ActiveAt(next) {
		return nil
	}
	return &next
}

// Target picks the slot and cycle an action applies to. An explicit
// scheduledAt must be one of the slot's occurrences. Without it the
// occurrence nearest to at wins, across all slots when slotID is empty.
func Target(slots []model.ScheduleSlot, slotID string, at time.Time, scheduledAt *time.Time) (int, time.Time, error) {
	if len(slots) == 0 {
		return 0, time.Time{}, apperr.Domain(apperr.CodeSlotNotFound, "medication has no schedule slots")
	}

	candidates := make([]int, 0, len(slots))
	if slotID != "" {
		for i := range slots {
			if slots[i].ID == slotID {
				candidates = append(candidates, i)
				break
			}
		}
		if len(candidates) == 0 {
			return 0, time.Time{}, fmt.Errorf("slot %s: %w", slotID, apperr.ErrNotFound)
		}
	} else {
		for i := range slots {
			candidates = append(candidates, i)
		}
	}

	if scheduledAt != nil {
		for _, i := range candidates {
			if schedule.IsOccurrence(slots[i], *scheduledAt) {
				return i, *scheduledAt, nil
			}
		}
		return 0, time.Time{}, apperr.Validation("scheduled_at", "%s is not a scheduled dose time", scheduledAt.Format(time.RFC3339))
	}

	best := -1
	var bestAt time.Time
	var bestDist time.Duration
	for _, i := range candidates {
		occ, ok := schedule.NearestOccurrence(slots[i], at)
		if !ok {
			continue
		}
		dist := occ.Sub(at)
		if dist < 0 {
			dist = -dist
		}
		if best < 0 || dist < bestDist || (dist == bestDist && occ.Before(bestAt)) {
			best, bestAt, bestDist = i, occ, dist
		}
	}
	if best < 0 {
		return 0, time.Time{}, apperr.Domain(apperr.CodeSlotNotFound, "no scheduled dose near %s", at.Format(time.RFC3339))
	}
	return best, bestAt, nil
}
