package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// MinutesPerDay is the number of minutes in a wall-clock day
const MinutesPerDay = 24 * 60

// TimeOfDay is a wall-clock time with minute precision, stored as minutes
// after midnight in [0, 1440).
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hour and minute, wrapping past midnight
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return WrapMinutes(hour*60 + minute)
}

// WrapMinutes normalises any minute count into [0, 1440)
func WrapMinutes(minutes int) TimeOfDay {
	m := minutes % MinutesPerDay
	if m < 0 {
		m += MinutesPerDay
	}
	return TimeOfDay(m)
}

// ParseTimeOfDay parses "HH:MM" format
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

// Hour returns the hour component
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Valid reports whether t is inside one day
func (t TimeOfDay) Valid() bool { return t >= 0 && t < MinutesPerDay }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// On materialises t on the calendar date of day, in day's location
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, day.Location())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// PeriodUnit is the unit of a periodic frequency
type PeriodUnit string

const (
	PeriodDay   PeriodUnit = "day"
	PeriodWeek  PeriodUnit = "week"
	PeriodMonth PeriodUnit = "month"
)

// FrequencySpec is a tagged variant: exactly one of FixedTimes, Interval or
// Periodic is populated.
type FrequencySpec struct {
	FixedTimes []TimeOfDay   `json:"fixed_times,omitempty"`
	Interval   *IntervalSpec `json:"interval,omitempty"`
	Periodic   *PeriodicSpec `json:"periodic,omitempty"`
}

// IntervalSpec spaces doses evenly from the first-dose time
type IntervalSpec struct {
	TimesPerDay      int     `json:"times_per_day"`
	HoursPerInterval float64 `json:"hours_per_interval,omitempty"`
}

// PeriodicSpec repeats a single dose every Count units
type PeriodicSpec struct {
	Unit  PeriodUnit `json:"unit"`
	Count int        `json:"count"`
}

// FrequencyKind names the populated variant of a FrequencySpec
type FrequencyKind string

const (
	FrequencyFixedTimes FrequencyKind = "fixed_times"
	FrequencyInterval   FrequencyKind = "interval"
	FrequencyPeriodic   FrequencyKind = "periodic"
	FrequencyInvalid    FrequencyKind = ""
)

// Kind returns the populated variant, or FrequencyInvalid when zero or
// several variants are set.
func (f FrequencySpec) Kind() FrequencyKind {
	kind := FrequencyInvalid
	n := 0
	if len(f.FixedTimes) > 0 {
		kind = FrequencyFixedTimes
		n++
	}
	if f.Interval != nil {
		kind = FrequencyInterval
		n++
	}
	if f.Periodic != nil {
		kind = FrequencyPeriodic
		n++
	}
	if n != 1 {
		return FrequencyInvalid
	}
	return kind
}

// Action is a user or system request against a dose slot
type Action string

const (
	ActionTake  Action = "take"
	ActionMiss  Action = "miss"
	ActionSkip  Action = "skip"
	ActionDelay Action = "delay"
)

// SlotState is the persisted state of a slot's current cycle
type SlotState string

const (
	SlotStatePending SlotState = "pending"
	SlotStateTaken   SlotState = "taken"
	SlotStateMissed  SlotState = "missed"
	SlotStateSkipped SlotState = "skipped"
	SlotStateDelayed SlotState = "delayed"
)

// Terminal reports whether the state resolves a cycle
func (s SlotState) Terminal() bool {
	return s == SlotStateTaken || s == SlotStateMissed || s == SlotStateSkipped
}

// LogStatus is the status recorded on a DoseLogEntry
type LogStatus string

const (
	LogStatusTaken   LogStatus = "taken"
	LogStatusMissed  LogStatus = "missed"
	LogStatusSkipped LogStatus = "skipped"
	LogStatusDelayed LogStatus = "delayed"
)

// DoseStatus is the display/alert status computed by projection
type DoseStatus string

const (
	DoseStatusUpcoming DoseStatus = "upcoming"
	DoseStatusDue      DoseStatus = "due"
	DoseStatusOverdue  DoseStatus = "overdue"
	DoseStatusTaken    DoseStatus = "taken"
	DoseStatusMissed   DoseStatus = "missed"
	DoseStatusSkipped  DoseStatus = "skipped"
)

// Urgency ranks statuses for picking the medication-level status
func (s DoseStatus) Urgency() int {
	switch s {
	case DoseStatusOverdue:
		return 5
	case DoseStatusDue:
		return 4
	case DoseStatusMissed:
		return 3
	case DoseStatusSkipped:
		return 2
	case DoseStatusTaken:
		return 1
	default:
		return 0
	}
}

// Channel is a notification delivery channel
type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelSMS       Channel = "sms"
	ChannelESP32HTTP Channel = "esp32_http"
	ChannelMQTT      Channel = "mqtt"
)

// Valid reports whether c is a known channel
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelESP32HTTP, ChannelMQTT:
		return true
	}
	return false
}
