// Package adherence derives streaks, adherence rates and daily breakdowns
// from the dose log.
package adherence

import (
	"math"
	"sort"
	"time"

	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

type cycleKey struct {
	slotID    string
	scheduled int64
}

// Resolutions collapses logs to one resolution per (slot, scheduled time),
// keeping the most recently created entry so corrections win. Delayed
// entries are rescheduling, not resolution, and are dropped.
func Resolutions(logs []model.DoseLogEntry) []model.DoseLogEntry {
	latest := make(map[cycleKey]model.DoseLogEntry, len(logs))
	for _, entry := range logs {
		if entry.Status == model.LogStatusDelayed {
			continue
		}
		key := cycleKey{slotID: entry.SlotID, scheduled: entry.ScheduledTime.UnixNano()}
		if entry.SlotID == "" {
			key.slotID = entry.MedicationID + "/" + entry.ID
		}
		if prev, ok := latest[key]; ok && !laterEntry(entry, prev) {
			continue
		}
		latest[key] = entry
	}

	out := make([]model.DoseLogEntry, 0, len(latest))
	for _, entry := range latest {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledTime.Equal(out[j].ScheduledTime) {
			return out[i].ScheduledTime.After(out[j].ScheduledTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func laterEntry(a, b model.DoseLogEntry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// DailyBreakdown groups resolved doses by calendar day in loc, most recent
// day first.
func DailyBreakdown(logs []model.DoseLogEntry, loc *time.Location) []model.DailyAdherence {
	byDay := make(map[time.Time]*model.DailyAdherence)
	for _, entry := range Resolutions(logs) {
		day := model.StartOfDay(entry.ScheduledTime.In(loc))
		d, ok := byDay[day]
		if !ok {
			d = &model.DailyAdherence{Date: day}
			byDay[day] = d
		}
		switch entry.Status {
		case model.LogStatusTaken:
			d.Taken++
		case model.LogStatusMissed:
			d.Missed++
		case model.LogStatusSkipped:
			d.Skipped++
		}
	}

	days := make([]model.DailyAdherence, 0, len(byDay))
	for _, d := range byDay {
		d.AllTaken = d.Taken > 0 && d.Missed == 0 && d.Skipped == 0
		days = append(days, *d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.After(days[j].Date) })
	return days
}

// ComputeStreaks derives the streak summary. The current streak walks back
// from today, or from yesterday while today has no logs yet, and ends at
// the first day that is not all-taken or at a calendar gap. The adherence
// rate covers the windowDays before now; windowDays <= 0 means the whole
// history.
func ComputeStreaks(logs []model.DoseLogEntry, windowDays int, now time.Time) model.StreakSummary {
	var summary model.StreakSummary
	loc := now.Location()

	var windowStart time.Time
	if windowDays > 0 {
		windowStart = model.StartOfDay(now).AddDate(0, 0, -(windowDays - 1))
	}
	for _, entry := range logs {
		if entry.Status == model.LogStatusDelayed && inWindow(entry.ScheduledTime, windowStart, now) {
			summary.DelayedCount++
		}
	}
	for _, entry := range Resolutions(logs) {
		if !inWindow(entry.ScheduledTime, windowStart, now) {
			continue
		}
		switch entry.Status {
		case model.LogStatusTaken:
			summary.TakenCount++
		case model.LogStatusMissed:
			summary.MissedCount++
		case model.LogStatusSkipped:
			summary.SkippedCount++
		}
	}
	summary.AdherenceRate = Rate(summary.TakenCount, summary.MissedCount, summary.SkippedCount)

	days := DailyBreakdown(logs, loc)
	summary.CurrentStreak = currentStreak(days, model.StartOfDay(now))
	summary.LongestStreak = longestStreak(days)
	return summary
}

// Rate returns taken as a percentage of all resolved doses, rounded to two
// decimals, and 0 when nothing is resolved.
func Rate(taken, missed, skipped int) float64 {
	total := taken + missed + skipped
	if total == 0 {
		return 0
	}
	return math.Round(float64(taken)/float64(total)*10000) / 100
}

func inWindow(t, start, now time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	return !t.After(now)
}

// currentStreak expects days ordered most recent first. Days after today
// are ignored.
func currentStreak(days []model.DailyAdherence, today time.Time) int {
	streak := 0
	var prev time.Time
	for _, d := range days {
		if d.Date.After(today) {
			continue
		}
		if prev.IsZero() {
			if !d.Date.Equal(today) && !consecutive(d.Date, today) {
				return 0
			}
		} else if !consecutive(d.Date, prev) {
			break
		}
		if !d.AllTaken {
			break
		}
		streak++
		prev = d.Date
	}
	return streak
}

// longestStreak expects days ordered most recent first
func longestStreak(days []model.DailyAdherence) int {
	longest, run := 0, 0
	for i, d := range days {
		switch {
		case !d.AllTaken:
			run = 0
			continue
		case i > 0 && days[i-1].AllTaken && consecutive(d.Date, days[i-1].Date):
			run++
		default:
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// consecutive reports whether earlier is the calendar day before later
func consecutive(earlier, later time.Time) bool {
	y, m, d := earlier.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, earlier.Location())
	return next.Equal(later)
}
