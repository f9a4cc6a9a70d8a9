package schedule

import (
	"time"

	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

const (
	// DefaultDueWindow is how long a dose is simply due after its scheduled time
	DefaultDueWindow = 15 * time.Minute
	// DefaultGraceWindow follows the due window; past it an unresolved dose is overdue
	DefaultGraceWindow = 10 * time.Minute
)

// SlotStatus is the projected status of one slot for today
type SlotStatus struct {
	SlotID string `json:"slot_id"`
	// ScheduledAt is today's occurrence at or before now, if any.
	ScheduledAt *time.Time       `json:"scheduled_at,omitempty"`
	NextAt      *time.Time       `json:"next_at,omitempty"`
	Status      model.DoseStatus `json:"status"`
}

// Projection is the read-only view of a medication's schedule at an instant
type Projection struct {
	NextDoseAt     *time.Time          `json:"next_dose_at,omitempty"`
	NextSlot       *model.ScheduleSlot `json:"next_slot,omitempty"`
	MostRecentSlot *model.ScheduleSlot `json:"most_recent_slot,omitempty"`
	MostRecentAt   *time.Time          `json:"most_recent_at,omitempty"`
	IsOverdue      bool                `json:"is_overdue"`
	Status         model.DoseStatus    `json:"status"`
	Slots          []SlotStatus        `json:"slots"`
}

// Projector classifies dose status. A dose is overdue once now passes its
// scheduled time by DueWindow plus Grace.
type Projector struct {
	DueWindow time.Duration
	Grace     time.Duration
}

// NewProjector returns a Projector; non-positive windows fall back to the
// defaults.
func NewProjector(dueWindow, grace time.Duration) Projector {
	if dueWindow <= 0 {
		dueWindow = DefaultDueWindow
	}
	if grace <= 0 {
		grace = DefaultGraceWindow
	}
	return Projector{DueWindow: dueWindow, Grace: grace}
}

// Project uses the default windows
func Project(slots []model.ScheduleSlot, now time.Time) Projection {
	return NewProjector(DefaultDueWindow, DefaultGraceWindow).Project(slots, now)
}

// OverdueAfter is the delay after a scheduled time at which an unresolved
// dose turns overdue.
func (p Projector) OverdueAfter() time.Duration {
	return p.DueWindow + p.Grace
}

// Project computes the next dose, the most recent slot of today and the
// medication-level status. It reads nothing but its arguments.
func (p Projector) Project(slots []model.ScheduleSlot, now time.Time) Projection {
	proj := Projection{
		Status: model.DoseStatusUpcoming,
		Slots:  make([]SlotStatus, 0, len(slots)),
	}

	for i := range slots {
		slot := slots[i]

		if next, ok := NextUnresolved(slot, now); ok {
			if proj.NextDoseAt == nil || next.Before(*proj.NextDoseAt) {
				n := next
				proj.NextDoseAt = &n
				proj.NextSlot = &slots[i]
			}
		}

		st := p.slotStatus(slot, now)
		proj.Slots = append(proj.Slots, st)

		if st.ScheduledAt != nil {
			if proj.MostRecentAt == nil || st.ScheduledAt.After(*proj.MostRecentAt) {
				proj.MostRecentAt = st.ScheduledAt
				proj.MostRecentSlot = &slots[i]
			}
		}
		if st.Status.Urgency() > proj.Status.Urgency() {
			proj.Status = st.Status
		}
	}

	proj.IsOverdue = proj.Status == model.DoseStatusOverdue
	return proj
}

// slotStatus classifies today's occurrence of slot at or before now
func (p Projector) slotStatus(slot model.ScheduleSlot, now time.Time) SlotStatus {
	st := SlotStatus{SlotID: slot.ID, Status: model.DoseStatusUpcoming}
	if next, ok := NextUnresolved(slot, now); ok {
		st.NextAt = &next
	}

	occ, ok := PrevOccurrence(slot, now)
	if !ok || !model.SameDay(occ, now) {
		// A later occurrence today may already be resolved by an early take.
		if c := slot.CycleAt; c != nil && c.After(now) && model.SameDay(*c, now) && slot.ResolvedFor(*c) {
			st.Status = resolvedStatus(slot.State)
		}
		return st
	}
	st.ScheduledAt = &occ

	if slot.ResolvedFor(occ) {
		st.Status = resolvedStatus(slot.State)
		return st
	}

	// A delayed cycle counts its grace from the postponed reminder.
	dueAt := occ
	if slot.State == model.SlotStateDelayed && slot.CycleAt != nil && slot.CycleAt.Equal(occ) &&
		slot.NextReminderAt != nil && slot.NextReminderAt.After(dueAt) {
		dueAt = *slot.NextReminderAt
	}

	if now.Sub(dueAt) > p.OverdueAfter() {
		st.Status = model.DoseStatusOverdue
	} else {
		st.Status = model.DoseStatusDue
	}
	return st
}

func resolvedStatus(state model.SlotState) model.DoseStatus {
	switch state {
	case model.SlotStateTaken:
		return model.DoseStatusTaken
	case model.SlotStateMissed:
		return model.DoseStatusMissed
	case model.SlotStateSkipped:
		return model.DoseStatusSkipped
	}
	return model.DoseStatusUpcoming
}
