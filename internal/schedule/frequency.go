// Package schedule expands frequency specifications into daily slots and
// projects dose status from a medication's slots at a given instant.
package schedule

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// MaxTimesPerDay caps interval schedules at one dose per hour
const MaxTimesPerDay = 24

// hoursTolerance bounds |hoursPerInterval * timesPerDay - 24| when
// timesPerDay divides the day evenly. Other counts have no exact decimal
// spacing and get roundedHoursTolerance.
const (
	hoursTolerance        = 0.01
	roundedHoursTolerance = 0.5
)

// SlotPlan is the result of expanding a FrequencySpec: the sorted
// times-of-day plus, for periodic specs, the multi-day recurrence.
type SlotPlan struct {
	Times  []model.TimeOfDay
	Period *model.PeriodicSpec
}

// ExpandToSlots maps a frequency specification and first-dose time to the
// ordered list of slot times.
func ExpandToSlots(spec model.FrequencySpec, first model.TimeOfDay) (SlotPlan, error) {
	if !first.Valid() {
		return SlotPlan{}, apperr.Validation("first_dose_time", "must be between 00:00 and 23:59")
	}

	switch spec.Kind() {
	case model.FrequencyInterval:
		times, err := expandInterval(*spec.Interval, first)
		if err != nil {
			return SlotPlan{}, err
		}
		return SlotPlan{Times: times}, nil
	case model.FrequencyFixedTimes:
		times, err := expandFixed(spec.FixedTimes)
		if err != nil {
			return SlotPlan{}, err
		}
		return SlotPlan{Times: times}, nil
	case model.FrequencyPeriodic:
		if err := validatePeriodic(*spec.Periodic); err != nil {
			return SlotPlan{}, err
		}
		period := *spec.Periodic
		return SlotPlan{Times: []model.TimeOfDay{first}, Period: &period}, nil
	default:
		return SlotPlan{}, apperr.Validation("frequency", "exactly one of fixed_times, interval or periodic must be set")
	}
}

func expandInterval(iv model.IntervalSpec, first model.TimeOfDay) ([]model.TimeOfDay, error) {
	n := iv.TimesPerDay
	if n <= 0 || n > MaxTimesPerDay {
		return nil, apperr.Validation("times_per_day", "must be between 1 and %d, got %d", MaxTimesPerDay, n)
	}
	if iv.HoursPerInterval != 0 {
		if iv.HoursPerInterval < 0 || math.IsNaN(iv.HoursPerInterval) {
			return nil, apperr.Validation("hours_per_interval", "must be positive")
		}
		tolerance := hoursTolerance
		if 24%n != 0 {
			tolerance = roundedHoursTolerance
		}
		if math.Abs(iv.HoursPerInterval*float64(n)-24) > tolerance {
			return nil, apperr.Validation("hours_per_interval",
				"%.2f hours x %d doses does not cover 24 hours", iv.HoursPerInterval, n)
		}
	}

	// Spacing is always derived as 24/n hours and rounded to the minute.
	step := float64(model.MinutesPerDay) / float64(n)
	times := make([]model.TimeOfDay, 0, n)
	for i := 0; i < n; i++ {
		offset := int(math.Round(float64(i) * step))
		times = append(times, model.WrapMinutes(int(first)+offset))
	}
	sortTimes(times)
	return times, nil
}

func expandFixed(fixed []model.TimeOfDay) ([]model.TimeOfDay, error) {
	times := make([]model.TimeOfDay, len(fixed))
	copy(times, fixed)
	for _, t := range times {
		if !t.Valid() {
			return nil, apperr.Validation("fixed_times", "time %d is outside one day", int(t))
		}
	}
	sortTimes(times)
	for i := 1; i < len(times); i++ {
		if times[i] == times[i-1] {
			return nil, apperr.Validation("fixed_times", "duplicate time %s", times[i])
		}
	}
	return times, nil
}

func validatePeriodic(p model.PeriodicSpec) error {
	switch p.Unit {
	case model.PeriodDay, model.PeriodWeek, model.PeriodMonth:
	default:
		return apperr.Validation("periodic.unit", "unsupported unit %q", p.Unit)
	}
	if p.Count < 1 {
		return apperr.Validation("periodic.count", "must be at least 1")
	}
	return nil
}

func sortTimes(times []model.TimeOfDay) {
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
}

// DosesPerDay returns the average number of doses per day for spec, or 0
// when spec is invalid.
func DosesPerDay(spec model.FrequencySpec) float64 {
	switch spec.Kind() {
	case model.FrequencyFixedTimes:
		return float64(len(spec.FixedTimes))
	case model.FrequencyInterval:
		return float64(spec.Interval.TimesPerDay)
	case model.FrequencyPeriodic:
		p := spec.Periodic
		if p.Count < 1 {
			return 0
		}
		switch p.Unit {
		case model.PeriodDay:
			return 1 / float64(p.Count)
		case model.PeriodWeek:
			return 1 / float64(7*p.Count)
		case model.PeriodMonth:
			return 1 / float64(30*p.Count)
		}
	}
	return 0
}

// HoursPerDose returns the average spacing between doses, or 0 when spec is
// invalid.
func HoursPerDose(spec model.FrequencySpec) float64 {
	perDay := DosesPerDay(spec)
	if perDay <= 0 {
		return 0
	}
	return 24 / perDay
}

var (
	everyHoursPattern = regexp.MustCompile(`^every_(\d+)_hours?$`)
	everyDaysPattern  = regexp.MustCompile(`^every_(\d+)_days?$`)
	everyWeeksPattern = regexp.MustCompile(`^every_(\d+)_weeks?$`)
)

// ParseFrequency maps a free-text frequency label such as "twice_daily",
// "every 8 hours" or "weekly" to a FrequencySpec.
func ParseFrequency(label string) (model.FrequencySpec, error) {
	norm := strings.ToLower(strings.TrimSpace(label))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)

	switch norm {
	case "daily", "once_daily", "once_a_day", "qd":
		return intervalSpec(1), nil
	case "twice_daily", "twice_a_day", "bid":
		return intervalSpec(2), nil
	case "three_times_daily", "three_times_a_day", "tid":
		return intervalSpec(3), nil
	case "four_times_daily", "four_times_a_day", "qid":
		return intervalSpec(4), nil
	case "weekly", "once_weekly":
		return periodicSpec(model.PeriodWeek, 1), nil
	case "biweekly", "every_other_week":
		return periodicSpec(model.PeriodWeek, 2), nil
	case "monthly", "once_monthly":
		return periodicSpec(model.PeriodMonth, 1), nil
	case "every_other_day":
		return periodicSpec(model.PeriodDay, 2), nil
	}

	if m := everyHoursPattern.FindStringSubmatch(norm); m != nil {
		hours, _ := strconv.Atoi(m[1])
		if hours <= 0 || hours > 24 || 24%hours != 0 {
			return model.FrequencySpec{}, apperr.Validation("frequency", "every %d hours does not divide a day", hours)
		}
		return model.FrequencySpec{Interval: &model.IntervalSpec{
			TimesPerDay:      24 / hours,
			HoursPerInterval: float64(hours),
		}}, nil
	}
	if m := everyDaysPattern.FindStringSubmatch(norm); m != nil {
		days, _ := strconv.Atoi(m[1])
		if days < 1 {
			return model.FrequencySpec{}, apperr.Validation("frequency", "day count must be at least 1")
		}
		return periodicSpec(model.PeriodDay, days), nil
	}
	if m := everyWeeksPattern.FindStringSubmatch(norm); m != nil {
		weeks, _ := strconv.Atoi(m[1])
		if weeks < 1 {
			return model.FrequencySpec{}, apperr.Validation("frequency", "week count must be at least 1")
		}
		return periodicSpec(model.PeriodWeek, weeks), nil
	}

	return model.FrequencySpec{}, apperr.Validation("frequency", "unrecognised frequency %q", label)
}

func intervalSpec(n int) model.FrequencySpec {
	return model.FrequencySpec{Interval: &model.IntervalSpec{
		TimesPerDay:      n,
		HoursPerInterval: 24 / float64(n),
	}}
}

func periodicSpec(unit model.PeriodUnit, count int) model.FrequencySpec {
	return model.FrequencySpec{Periodic: &model.PeriodicSpec{Unit: unit, Count: count}}
}
