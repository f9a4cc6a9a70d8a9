package model

import "time"

// User represents a user in the system
type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Timezone  string     `json:"timezone"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Medication represents a medication registered by a user
type Medication struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	Name          string        `json:"name"`
	Dosage        string        `json:"dosage"`
	Instructions  *string       `json:"instructions,omitempty"`
	Frequency     FrequencySpec `json:"frequency"`
	FirstDoseTime TimeOfDay     `json:"first_dose_time"`
	StartDate     *time.Time    `json:"start_date,omitempty"`
	EndDate       *time.Time    `json:"end_date,omitempty"`
	WithFood      bool          `json:"with_food"`
	Active        bool          `json:"active"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ActiveAt reports whether the medication may be acted on at t. Start and
// end dates are calendar dates, inclusive, interpreted in t's location.
func (m *Medication) ActiveAt(t time.Time) bool {
	if !m.Active {
		return false
	}
	if m.StartDate != nil && t.Before(DateIn(*m.StartDate, t.Location())) {
		return false
	}
	if m.EndDate != nil && !t.Before(DateIn(*m.EndDate, t.Location()).AddDate(0, 0, 1)) {
		return false
	}
	return true
}

// ScheduleSlot is one scheduled time-of-day for a medication dose
type ScheduleSlot struct {
	ID           string    `json:"id"`
	MedicationID string    `json:"medication_id"`
	TimeOfDay    TimeOfDay `json:"time_of_day"`
	// Recurrence is nil for slots that recur every day.
	Recurrence     *Recurrence `json:"recurrence,omitempty"`
	State          SlotState   `json:"state"`
	CycleAt        *time.Time  `json:"cycle_at,omitempty"`
	LastTakenAt    *time.Time  `json:"last_taken_at,omitempty"`
	NextReminderAt *time.Time  `json:"next_reminder_at,omitempty"`
	LastNotifiedAt *time.Time  `json:"last_notified_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ResolvedFor reports whether the slot's cycle scheduled at cycle has
// already been resolved as taken, missed or skipped.
func (s *ScheduleSlot) ResolvedFor(cycle time.Time) bool {
	if s.CycleAt == nil || !s.CycleAt.Equal(cycle) {
		return false
	}
	return s.State.Terminal()
}

// TakenToday reports whether the slot was taken on now's calendar day
func (s *ScheduleSlot) TakenToday(now time.Time) bool {
	if s.LastTakenAt == nil || s.State != SlotStateTaken {
		return false
	}
	return SameDay(*s.LastTakenAt, now)
}

// Recurrence describes a multi-day repetition anchored at a date
type Recurrence struct {
	Unit   PeriodUnit `json:"unit"`
	Count  int        `json:"count"`
	Anchor time.Time  `json:"anchor"`
}

// InventoryRecord tracks stock for one medication
type InventoryRecord struct {
	MedicationID       string     `json:"medication_id"`
	CurrentQuantity    float64    `json:"current_quantity"`
	DoseAmount         float64    `json:"dose_amount"`
	RefillThreshold    float64    `json:"refill_threshold"`
	Unit               string     `json:"unit,omitempty"`
	ThresholdAlertSent bool       `json:"threshold_alert_sent"`
	LastRefillAt       *time.Time `json:"last_refill_at,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// DoseLogEntry is an immutable historical record of a dose action
type DoseLogEntry struct {
	ID                string     `json:"id"`
	MedicationID      string     `json:"medication_id"`
	SlotID            string     `json:"slot_id"`
	ScheduledTime     time.Time  `json:"scheduled_time"`
	ActualActionTime  *time.Time `json:"actual_action_time,omitempty"`
	Status            LogStatus  `json:"status"`
	DosageTakenAmount float64    `json:"dosage_taken_amount"`
	Reason            *string    `json:"reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// StreakSummary is derived from dose logs and never persisted
type StreakSummary struct {
	CurrentStreak int     `json:"current_streak"`
	LongestStreak int     `json:"longest_streak"`
	AdherenceRate float64 `json:"adherence_rate"`
	TakenCount    int     `json:"taken_count"`
	MissedCount   int     `json:"missed_count"`
	SkippedCount  int     `json:"skipped_count"`
	DelayedCount  int     `json:"delayed_count"`
}

// DailyAdherence summarises resolved doses for one calendar day
type DailyAdherence struct {
	Date     time.Time `json:"date"`
	Taken    int       `json:"taken"`
	Missed   int       `json:"missed"`
	Skipped  int       `json:"skipped"`
	AllTaken bool      `json:"all_taken"`
}

// NotificationPreference is a delivery target for one channel
type NotificationPreference struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Channel   Channel   `json:"channel"`
	Target    string    `json:"target"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Report represents a generated adherence report
type Report struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	DateRangeStart time.Time `json:"date_range_start"`
	DateRangeEnd   time.Time `json:"date_range_end"`
	FilePath       string    `json:"file_path"`
	GeneratedAt    time.Time `json:"generated_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// StartOfDay truncates t to midnight in its own location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DateIn returns midnight in loc of the calendar date carried by d
func DateIn(d time.Time, loc *time.Location) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

// SameDay reports whether a and b fall on the same calendar date in b's location
func SameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
