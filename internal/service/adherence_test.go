package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

func logEntry(id string, status model.LogStatus, scheduled time.Time) model.DoseLogEntry {
	return model.DoseLogEntry{
		ID:            id,
		MedicationID:  "med-1",
		SlotID:        "slot-am",
		ScheduledTime: scheduled,
		Status:        status,
		CreatedAt:     scheduled,
	}
}

// dailyLogs returns one taken entry per day for days days ending on the
// day of last
func dailyLogs(last time.Time, days int) []model.DoseLogEntry {
	logs := make([]model.DoseLogEntry, 0, days)
	for i := 0; i < days; i++ {
		scheduled := last.AddDate(0, 0, -i)
		logs = append(logs, logEntry(fmt.Sprintf("log-%d", i), model.LogStatusTaken, scheduled))
	}
	return logs
}

func newAdherenceService(logs *MockDoseRepository, meds *MockMedicationRepository, users *MockUserRepository, now time.Time) *AdherenceService {
	svc := NewAdherenceService(logs, meds, users, "UTC", zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc
}

func TestGetSummary_User(t *testing.T) {
	// Arrange
	logs := new(MockDoseRepository)
	users := new(MockUserRepository)
	now := time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC)
	svc := newAdherenceService(logs, new(MockMedicationRepository), users, now)
	ctx := context.Background()

	history := dailyLogs(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), 12)
	history = append(history, logEntry("log-missed", model.LogStatusMissed, time.Date(2026, 2, 26, 8, 0, 0, 0, time.UTC)))

	users.On("FindByID", ctx, "user-1").Return(&model.User{ID: "user-1", Timezone: "UTC"}, nil)
	logs.On("ListLogsByUser", ctx, "user-1", time.Time{}).Return(history, nil)

	// Act
	summary, err := svc.GetSummary(ctx, "user-1", "", 7)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "7 days", summary.Period)
	assert.Equal(t, 12, summary.Streaks.CurrentStreak, "streaks look past the rate window")
	assert.Equal(t, 12, summary.Streaks.LongestStreak)
	assert.Equal(t, 7, summary.Streaks.TakenCount)
	assert.Equal(t, 0, summary.Streaks.MissedCount)
	assert.Equal(t, 100.0, summary.Streaks.AdherenceRate)
	require.Len(t, summary.Daily, 7)
	assert.True(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC).Equal(summary.Daily[0].Date))
}

func TestGetSummary_InvalidDaysDefaultsToSeven(t *testing.T) {
	logs := new(MockDoseRepository)
	users := new(MockUserRepository)
	svc := newAdherenceService(logs, new(MockMedicationRepository), users, time.Now())
	ctx := context.Background()

	users.On("FindByID", ctx, "user-1").Return(&model.User{ID: "user-1"}, nil)
	logs.On("ListLogsByUser", ctx, "user-1", time.Time{}).Return([]model.DoseLogEntry{}, nil)

	for _, days := range []int{0, -3, 14, 365} {
		summary, err := svc.GetSummary(ctx, "user-1", "", days)
		require.NoError(t, err)
		assert.Equal(t, 7, summary.Days)
		assert.Equal(t, 0.0, summary.Streaks.AdherenceRate)
		assert.Empty(t, summary.Daily)
	}
}

func TestGetSummary_Medication(t *testing.T) {
	logs := new(MockDoseRepository)
	meds := new(MockMedicationRepository)
	users := new(MockUserRepository)
	now := time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC)
	svc := newAdherenceService(logs, meds, users, now)
	ctx := context.Background()

	meds.On("FindByID", ctx, "med-1").Return(&model.Medication{ID: "med-1", UserID: "user-1"}, nil)
	users.On("FindByID", ctx, "user-1").Return(&model.User{ID: "user-1", Timezone: "UTC"}, nil)
	logs.On("ListLogs", ctx, "med-1", time.Time{}, 0).Return([]model.DoseLogEntry{
		logEntry("a", model.LogStatusTaken, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)),
		logEntry("b", model.LogStatusSkipped, time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)),
	}, nil)

	t.Run("owner may omit user", func(t *testing.T) {
		summary, err := svc.GetSummary(ctx, "", "med-1", 30)

		require.NoError(t, err)
		assert.Equal(t, "user-1", summary.UserID)
		assert.Equal(t, 50.0, summary.Streaks.AdherenceRate)
		assert.Equal(t, 1, summary.Streaks.CurrentStreak)
	})

	t.Run("foreign medication is not found", func(t *testing.T) {
		_, err := svc.GetSummary(ctx, "user-2", "med-1", 30)

		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestGetSummary_RequiresSubject(t *testing.T) {
	svc := newAdherenceService(new(MockDoseRepository), new(MockMedicationRepository), new(MockUserRepository), time.Now())

	_, err := svc.GetSummary(context.Background(), "", "", 7)

	assert.True(t, apperr.IsValidation(err))
}

func TestProperty_SummaryDailyStaysInsideWindow(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	now := time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC)

	properties.Property("daily entries fall within the requested window", prop.ForAll(
		func(historyDays int, windowIdx int) bool {
			days := []int{7, 30, 90}[windowIdx]
			logs := new(MockDoseRepository)
			users := new(MockUserRepository)
			svc := newAdherenceService(logs, new(MockMedicationRepository), users, now)

			users.On("FindByID", mock.Anything, "user-1").Return(&model.User{ID: "user-1"}, nil)
			logs.On("ListLogsByUser", mock.Anything, "user-1", time.Time{}).
				Return(dailyLogs(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), historyDays), nil)

			summary, err := svc.GetSummary(context.Background(), "user-1", "", days)
			if err != nil {
				return false
			}
			if len(summary.Daily) > days {
				return false
			}
			expected := historyDays
			if expected > days {
				expected = days
			}
			return summary.Streaks.TakenCount == expected && summary.Streaks.CurrentStreak == historyDays
		},
		gen.IntRange(0, 120),
		gen.IntRange(0, 2),
	))

	properties.TestingRun(t)
}
