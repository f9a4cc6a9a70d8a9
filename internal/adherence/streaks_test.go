package adherence

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

var now = time.Date(2024, time.March, 20, 22, 0, 0, 0, time.UTC)

// logDay builds one entry per status for the day daysAgo before now,
// scheduled at 08:00, 14:00, 20:00 ...
func logDay(daysAgo int, statuses ...model.LogStatus) []model.DoseLogEntry {
	day := model.StartOfDay(now).AddDate(0, 0, -daysAgo)
	entries := make([]model.DoseLogEntry, 0, len(statuses))
	for i, status := range statuses {
		scheduled := day.Add(time.Duration(8+6*i) * time.Hour)
		entries = append(entries, model.DoseLogEntry{
			ID:            fmt.Sprintf("log-%d-%d", daysAgo, i),
			MedicationID:  "med-1",
			SlotID:        fmt.Sprintf("slot-%d", i),
			ScheduledTime: scheduled,
			Status:        status,
			CreatedAt:     scheduled.Add(5 * time.Minute),
		})
	}
	return entries
}

func TestComputeStreaks_FiveTakenThenMissed(t *testing.T) {
	// Arrange
	var logs []model.DoseLogEntry
	logs = append(logs, logDay(0, model.LogStatusTaken, model.LogStatusMissed)...)
	for d := 1; d <= 5; d++ {
		logs = append(logs, logDay(d, model.LogStatusTaken, model.LogStatusTaken)...)
	}

	// Act
	summary := ComputeStreaks(logs, 30, now)

	// Assert
	assert.Equal(t, 0, summary.CurrentStreak)
	assert.Equal(t, 5, summary.LongestStreak)
	assert.Equal(t, 11, summary.TakenCount)
	assert.Equal(t, 1, summary.MissedCount)
	assert.InDelta(t, 91.67, summary.AdherenceRate, 0.001)
}

func TestComputeStreaks_CurrentRun(t *testing.T) {
	var logs []model.DoseLogEntry
	for d := 0; d < 3; d++ {
		logs = append(logs, logDay(d, model.LogStatusTaken)...)
	}
	logs = append(logs, logDay(3, model.LogStatusSkipped)...)
	for d := 4; d < 8; d++ {
		logs = append(logs, logDay(d, model.LogStatusTaken)...)
	}

	summary := ComputeStreaks(logs, 0, now)

	assert.Equal(t, 3, summary.CurrentStreak)
	assert.Equal(t, 4, summary.LongestStreak)
	assert.Equal(t, 1, summary.SkippedCount)
}

func TestComputeStreaks_GapEndsStreak(t *testing.T) {
	var logs []model.DoseLogEntry
	logs = append(logs, logDay(0, model.LogStatusTaken)...)
	logs = append(logs, logDay(1, model.LogStatusTaken)...)
	// day 2 has no logs at all
	logs = append(logs, logDay(3, model.LogStatusTaken)...)

	summary := ComputeStreaks(logs, 0, now)

	assert.Equal(t, 2, summary.CurrentStreak)
	assert.Equal(t, 2, summary.LongestStreak)
}

func TestComputeStreaks_StaleHistoryHasNoCurrentStreak(t *testing.T) {
	var logs []model.DoseLogEntry
	for d := 25; d < 30; d++ {
		logs = append(logs, logDay(d, model.LogStatusTaken)...)
	}

	summary := ComputeStreaks(logs, 0, now)

	assert.Equal(t, 0, summary.CurrentStreak)
	assert.Equal(t, 5, summary.LongestStreak)
}

func TestComputeStreaks_TodayNotLoggedYet(t *testing.T) {
	var logs []model.DoseLogEntry
	for d := 1; d <= 3; d++ {
		logs = append(logs, logDay(d, model.LogStatusTaken)...)
	}

	summary := ComputeStreaks(logs, 0, now)

	assert.Equal(t, 3, summary.CurrentStreak)
}

func TestComputeStreaks_YesterdayMissingEndsStreak(t *testing.T) {
	var logs []model.DoseLogEntry
	for d := 2; d <= 4; d++ {
		logs = append(logs, logDay(d, model.LogStatusTaken)...)
	}

	summary := ComputeStreaks(logs, 0, now)

	assert.Equal(t, 0, summary.CurrentStreak)
	assert.Equal(t, 3, summary.LongestStreak)
}

func TestComputeStreaks_NoLogs(t *testing.T) {
	summary := ComputeStreaks(nil, 7, now)

	assert.Equal(t, model.StreakSummary{}, summary)
	assert.Equal(t, 0.0, summary.AdherenceRate)
}

func TestComputeStreaks_DelayedExcludedFromRate(t *testing.T) {
	logs := logDay(0, model.LogStatusTaken, model.LogStatusDelayed)

	summary := ComputeStreaks(logs, 7, now)

	assert.Equal(t, 100.0, summary.AdherenceRate)
	assert.Equal(t, 1, summary.DelayedCount)
	assert.Equal(t, 1, summary.CurrentStreak)
}

func TestComputeStreaks_CorrectionWins(t *testing.T) {
	logs := logDay(0, model.LogStatusMissed)
	correction := logs[0]
	correction.ID = "log-correction"
	correction.Status = model.LogStatusTaken
	correction.CreatedAt = correction.CreatedAt.Add(time.Hour)
	logs = append(logs, correction)

	summary := ComputeStreaks(logs, 7, now)

	assert.Equal(t, 1, summary.TakenCount)
	assert.Equal(t, 0, summary.MissedCount)
	assert.Equal(t, 1, summary.CurrentStreak)
}

func TestComputeStreaks_WindowLimitsRate(t *testing.T) {
	var logs []model.DoseLogEntry
	logs = append(logs, logDay(0, model.LogStatusTaken)...)
	logs = append(logs, logDay(10, model.LogStatusMissed)...)

	summary := ComputeStreaks(logs, 7, now)

	assert.Equal(t, 1, summary.TakenCount)
	assert.Equal(t, 0, summary.MissedCount)
	assert.Equal(t, 100.0, summary.AdherenceRate)
}

func TestDailyBreakdown(t *testing.T) {
	var logs []model.DoseLogEntry
	logs = append(logs, logDay(0, model.LogStatusTaken, model.LogStatusSkipped)...)
	logs = append(logs, logDay(1, model.LogStatusTaken, model.LogStatusTaken)...)

	days := DailyBreakdown(logs, time.UTC)

	require.Len(t, days, 2)
	assert.True(t, model.StartOfDay(now).Equal(days[0].Date))
	assert.Equal(t, 1, days[0].Taken)
	assert.Equal(t, 1, days[0].Skipped)
	assert.False(t, days[0].AllTaken)
	assert.True(t, days[1].AllTaken)
}

func TestDailyBreakdown_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	entry := model.DoseLogEntry{
		ID:            "late",
		SlotID:        "s",
		ScheduledTime: time.Date(2024, time.March, 19, 21, 0, 0, 0, time.UTC),
		Status:        model.LogStatusTaken,
	}

	days := DailyBreakdown([]model.DoseLogEntry{entry}, loc)

	require.Len(t, days, 1)
	assert.Equal(t, 20, days[0].Date.Day())
}

// Property: the rate stays within [0, 100] and is 0 without resolved doses.
func TestProperty_RateBounds(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("rate is a percentage", prop.ForAll(
		func(taken, missed, skipped int) bool {
			r := Rate(taken, missed, skipped)
			if taken+missed+skipped == 0 {
				return r == 0
			}
			return r >= 0 && r <= 100
		},
		gen.IntRange(0, 500),
		gen.IntRange(0, 500),
		gen.IntRange(0, 500),
	))

	properties.TestingRun(t)
}

// Property: the current streak never exceeds the longest streak.
func TestProperty_CurrentNotAboveLongest(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("current <= longest", prop.ForAll(
		func(pattern []bool) bool {
			var logs []model.DoseLogEntry
			for i, taken := range pattern {
				status := model.LogStatusTaken
				if !taken {
					status = model.LogStatusMissed
				}
				logs = append(logs, logDay(i, status)...)
			}
			summary := ComputeStreaks(logs, 0, now)
			return summary.CurrentStreak <= summary.LongestStreak &&
				summary.TakenCount+summary.MissedCount == len(pattern)
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
