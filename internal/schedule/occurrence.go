package schedule

import (
	"time"

	"github.com/teambition/rrule-go"

	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// newRule builds the recurrence rule of a periodic slot in loc. The rule
// starts on the anchor date at the slot's time of day.
func newRule(slot model.ScheduleSlot, loc *time.Location) (*rrule.RRule, error) {
	rec := slot.Recurrence
	freq := rrule.DAILY
	switch rec.Unit {
	case model.PeriodWeek:
		freq = rrule.WEEKLY
	case model.PeriodMonth:
		freq = rrule.MONTHLY
	}
	interval := rec.Count
	if interval < 1 {
		interval = 1
	}
	return rrule.NewRRule(rrule.ROption{
		Freq:     freq,
		Interval: interval,
		Dtstart:  slot.TimeOfDay.On(model.DateIn(rec.Anchor, loc)),
	})
}

// NextOccurrence returns the first occurrence of slot strictly after t, in
// t's location. ok is false when the slot has no further occurrence.
func NextOccurrence(slot model.ScheduleSlot, t time.Time) (next time.Time, ok bool) {
	if slot.Recurrence == nil {
		candidate := slot.TimeOfDay.On(t)
		if !candidate.After(t) {
			candidate = slot.TimeOfDay.On(t.AddDate(0, 0, 1))
		}
		return candidate, true
	}

	rule, err := newRule(slot, t.Location())
	if err != nil {
		return time.Time{}, false
	}
	next = rule.After(t, false)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// PrevOccurrence returns the latest occurrence of slot at or before t, in
// t's location. ok is false when the slot has not started yet.
func PrevOccurrence(slot model.ScheduleSlot, t time.Time) (prev time.Time, ok bool) {
	if slot.Recurrence == nil {
		candidate := slot.TimeOfDay.On(t)
		if candidate.After(t) {
			candidate = slot.TimeOfDay.On(t.AddDate(0, 0, -1))
		}
		return candidate, true
	}

	rule, err := newRule(slot, t.Location())
	if err != nil {
		return time.Time{}, false
	}
	prev = rule.Before(t, true)
	if prev.IsZero() {
		return time.Time{}, false
	}
	return prev, true
}

// IsOccurrence reports whether t is one of slot's scheduled cycles
func IsOccurrence(slot model.ScheduleSlot, t time.Time) bool {
	prev, ok := PrevOccurrence(slot, t)
	return ok && prev.Equal(t)
}

// NearestOccurrence returns the occurrence of slot closest to t. Ties go to
// the earlier occurrence.
func NearestOccurrence(slot model.ScheduleSlot, t time.Time) (time.Time, bool) {
	prev, hasPrev := PrevOccurrence(slot, t)
	next, hasNext := NextOccurrence(slot, t)
	switch {
	case hasPrev && hasNext:
		if next.Sub(t) < t.Sub(prev) {
			return next, true
		}
		return prev, true
	case hasPrev:
		return prev, true
	case hasNext:
		return next, true
	}
	return time.Time{}, false
}

// NextUnresolved returns the first occurrence of slot strictly after t
// whose cycle has not already been resolved.
func NextUnresolved(slot model.ScheduleSlot, t time.Time) (time.Time, bool) {
	next, ok := NextOccurrence(slot, t)
	if ok && slot.ResolvedFor(next) {
		next, ok = NextOccurrence(slot, next)
	}
	return next, ok
}
