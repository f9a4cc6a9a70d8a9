package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/internal/security"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// setupTestDB creates a PostgreSQL testcontainer, applies the migrations and
// returns the connection pool
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("medalert_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, pool, zap.NewNop()))

	cleanup := func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return pool, cleanup
}

// createTestUser creates a test user and returns the user ID
func createTestUser(t *testing.T, pool *pgxpool.Pool) string {
	userID := uuid.New().String()
	repo := NewUserRepository(pool, zap.NewNop())
	now := time.Now()
	err := repo.Create(context.Background(), &model.User{
		ID:        userID,
		Name:      "Test User",
		Email:     fmt.Sprintf("test-%s@example.com", userID),
		Timezone:  "UTC",
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	return userID
}

func newTestMedication(userID, name, dosage string) (*model.Medication, []model.ScheduleSlot) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	med := &model.Medication{
		ID:            uuid.New().String(),
		UserID:        userID,
		Name:          name,
		Dosage:        dosage,
		Frequency:     model.FrequencySpec{Interval: &model.IntervalSpec{TimesPerDay: 2}},
		FirstDoseTime: model.NewTimeOfDay(8, 0),
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	slots := []model.ScheduleSlot{
		{ID: uuid.New().String(), MedicationID: med.ID, TimeOfDay: model.NewTimeOfDay(8, 0), State: model.SlotStatePending, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New().String(), MedicationID: med.ID, TimeOfDay: model.NewTimeOfDay(20, 0), State: model.SlotStatePending, CreatedAt: now, UpdatedAt: now},
	}
	return med, slots
}

func TestProperty_MedicationCRUDPreservesID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMedicationRepository(pool, zap.NewNop())
	userID := createTestUser(t, pool)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)

	properties.Property("medication ID and frequency survive an update", prop.ForAll(
		func(name, dosage string, times int) bool {
			ctx := context.Background()

			med, slots := newTestMedication(userID, name, dosage)
			if err := repo.Create(ctx, med, slots, nil); err != nil {
				t.Logf("Failed to create medication: %v", err)
				return false
			}

			med.Dosage = dosage + " (updated)"
			med.Frequency = model.FrequencySpec{Interval: &model.IntervalSpec{TimesPerDay: times}}
			if err := repo.Update(ctx, med, nil); err != nil {
				t.Logf("Failed to update medication: %v", err)
				return false
			}

			retrieved, err := repo.FindByID(ctx, med.ID)
			if err != nil {
				t.Logf("Failed to retrieve medication: %v", err)
				return false
			}

			return retrieved.ID == med.ID &&
				retrieved.Dosage == med.Dosage &&
				retrieved.Frequency.Interval != nil &&
				retrieved.Frequency.Interval.TimesPerDay == times &&
				retrieved.FirstDoseTime == model.NewTimeOfDay(8, 0)
		},
		gen.AlphaString().SuchThat(func(s string) bool { return len(s) > 0 && len(s) < 100 }),
		gen.AlphaString().SuchThat(func(s string) bool { return len(s) > 0 && len(s) < 100 }),
		gen.IntRange(1, 24),
	))

	properties.TestingRun(t)
}

func TestMedicationRepository_DeleteCascades(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	repo := NewMedicationRepository(pool, zap.NewNop())
	userID := createTestUser(t, pool)

	med, slots := newTestMedication(userID, "Metformin", "500mg")
	inv := &model.InventoryRecord{MedicationID: med.ID, CurrentQuantity: 30, DoseAmount: 1, RefillThreshold: 5, UpdatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, med, slots, inv))

	storedSlots, err := repo.FindSlots(ctx, med.ID)
	require.NoError(t, err)
	require.Len(t, storedSlots, 2)
	assert.Equal(t, model.NewTimeOfDay(8, 0), storedSlots[0].TimeOfDay)
	assert.Equal(t, model.NewTimeOfDay(20, 0), storedSlots[1].TimeOfDay)

	storedInv, err := repo.FindInventory(ctx, med.ID)
	require.NoError(t, err)
	require.NotNil(t, storedInv)
	assert.Equal(t, 30.0, storedInv.CurrentQuantity)

	require.NoError(t, repo.Delete(ctx, med.ID))

	_, err = repo.FindByID(ctx, med.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	storedSlots, err = repo.FindSlots(ctx, med.ID)
	require.NoError(t, err)
	assert.Empty(t, storedSlots)
	storedInv, err = repo.FindInventory(ctx, med.ID)
	require.NoError(t, err)
	assert.Nil(t, storedInv)

	assert.ErrorIs(t, repo.Delete(ctx, med.ID), apperr.ErrNotFound)
}

func TestMedicationRepository_PeriodicSlotRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	repo := NewMedicationRepository(pool, zap.NewNop())
	userID := createTestUser(t, pool)

	med, _ := newTestMedication(userID, "Vitamin D", "50000IU")
	med.Frequency = model.FrequencySpec{Periodic: &model.PeriodicSpec{Unit: model.PeriodWeek, Count: 1}}
	anchor := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	slot := model.ScheduleSlot{
		ID:           uuid.New().String(),
		MedicationID: med.ID,
		TimeOfDay:    model.NewTimeOfDay(9, 30),
		Recurrence:   &model.Recurrence{Unit: model.PeriodWeek, Count: 1, Anchor: anchor},
		State:        model.SlotStatePending,
	}
	require.NoError(t, repo.Create(ctx, med, []model.ScheduleSlot{slot}, nil))

	slots, err := repo.FindSlots(ctx, med.ID)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	require.NotNil(t, slots[0].Recurrence)
	assert.Equal(t, model.PeriodWeek, slots[0].Recurrence.Unit)
	assert.Equal(t, 1, slots[0].Recurrence.Count)
	assert.True(t, slots[0].Recurrence.Anchor.Equal(anchor))
}

func TestDoseRepository_Transact(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	medRepo := NewMedicationRepository(pool, zap.NewNop())
	doseRepo := NewDoseRepository(pool, zap.NewNop())
	userID := createTestUser(t, pool)

	med, slots := newTestMedication(userID, "Metformin", "500mg")
	require.NoError(t, medRepo.Create(ctx, med, slots, nil))

	cycle := time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC)
	taken := cycle.Add(5 * time.Minute)

	write := func(state *MedicationState, tx DoseTx) error {
		slot := state.Slots[0]
		prevState, prevCycle := slot.State, slot.CycleAt
		slot.State = model.SlotStateTaken
		slot.CycleAt = &cycle
		slot.LastTakenAt = &taken
		slot.UpdatedAt = taken
		if err := tx.UpdateSlot(ctx, &slot, prevState, prevCycle); err != nil {
			return err
		}
		return tx.InsertLog(ctx, &model.DoseLogEntry{
			ID:                uuid.New().String(),
			MedicationID:      med.ID,
			SlotID:            slot.ID,
			ScheduledTime:     cycle,
			ActualActionTime:  &taken,
			Status:            model.LogStatusTaken,
			DosageTakenAmount: 1,
			CreatedAt:         taken,
		})
	}

	t.Run("first write commits", func(t *testing.T) {
		err := doseRepo.Transact(ctx, med.ID, func(ctx context.Context, state *MedicationState, tx DoseTx) error {
			assert.Equal(t, "UTC", state.Timezone)
			require.Len(t, state.Slots, 2)
			return write(state, tx)
		})
		require.NoError(t, err)

		entry, err := doseRepo.FindLogByCycle(ctx, slots[0].ID, cycle)
		require.NoError(t, err)
		assert.Equal(t, model.LogStatusTaken, entry.Status)
	})

	t.Run("stale slot marker conflicts", func(t *testing.T) {
		err := doseRepo.Transact(ctx, med.ID, func(ctx context.Context, state *MedicationState, tx DoseTx) error {
			slot := state.Slots[0]
			slot.State = model.SlotStateMissed
			return tx.UpdateSlot(ctx, &slot, model.SlotStatePending, nil)
		})
		assert.True(t, apperr.IsConflict(err))
	})

	t.Run("duplicate resolution conflicts", func(t *testing.T) {
		err := doseRepo.Transact(ctx, med.ID, func(ctx context.Context, state *MedicationState, tx DoseTx) error {
			return tx.InsertLog(ctx, &model.DoseLogEntry{
				ID:            uuid.New().String(),
				MedicationID:  med.ID,
				SlotID:        slots[0].ID,
				ScheduledTime: cycle,
				Status:        model.LogStatusTaken,
				CreatedAt:     time.Now(),
			})
		})
		assert.True(t, apperr.IsConflict(err))

		logs, err := doseRepo.ListLogs(ctx, med.ID, time.Time{}, 0)
		require.NoError(t, err)
		assert.Len(t, logs, 1)
	})

	t.Run("delays may repeat", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			err := doseRepo.Transact(ctx, med.ID, func(ctx context.Context, state *MedicationState, tx DoseTx) error {
				return tx.InsertLog(ctx, &model.DoseLogEntry{
					ID:            uuid.New().String(),
					MedicationID:  med.ID,
					SlotID:        slots[1].ID,
					ScheduledTime: cycle.Add(12 * time.Hour),
					Status:        model.LogStatusDelayed,
					CreatedAt:     time.Now(),
				})
			})
			require.NoError(t, err)
		}

		logs, err := doseRepo.ListLogsByUser(ctx, userID, cycle)
		require.NoError(t, err)
		assert.Len(t, logs, 3)
	})

	t.Run("unknown medication", func(t *testing.T) {
		err := doseRepo.Transact(ctx, uuid.New().String(), func(context.Context, *MedicationState, DoseTx) error {
			return nil
		})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestReminderRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	medRepo := NewMedicationRepository(pool, zap.NewNop())
	reminders := NewReminderRepository(pool, zap.NewNop())
	userID := createTestUser(t, pool)

	due := time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC)
	med, slots := newTestMedication(userID, "Metformin", "500mg")
	slots[0].NextReminderAt = &due
	later := due.Add(12 * time.Hour)
	slots[1].NextReminderAt = &later
	require.NoError(t, medRepo.Create(ctx, med, slots, nil))

	ids, err := reminders.FindDueMedicationIDs(ctx, due.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{med.ID}, ids)

	ids, err = reminders.FindDueMedicationIDs(ctx, due.Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, ids)

	notified := due.Add(time.Minute)
	next := due.Add(25 * time.Minute)
	applied, err := reminders.AdvanceReminder(ctx, slots[0].ID, &due, &notified, &next)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = reminders.AdvanceReminder(ctx, slots[0].ID, &due, &notified, &next)
	require.NoError(t, err)
	assert.False(t, applied, "a moved reminder is not overwritten")

	stale, err := reminders.FindStaleMedicationIDs(ctx, due)
	require.NoError(t, err)
	assert.Contains(t, stale, med.ID)
}

func TestNotificationRepository_EncryptsTargets(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	encryptor, err := security.NewEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	repo := NewNotificationRepository(pool, encryptor, zap.NewNop())
	userID := createTestUser(t, pool)

	now := time.Now()
	pref := &model.NotificationPreference{
		ID:        uuid.New().String(),
		UserID:    userID,
		Channel:   model.ChannelSMS,
		Target:    "+15550100",
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.Upsert(ctx, pref))

	var stored string
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT target_encrypted FROM notification_preferences WHERE user_id = $1`, userID).Scan(&stored))
	assert.NotEqual(t, "+15550100", stored)

	pref.Target = "+15550199"
	pref.ID = uuid.New().String()
	require.NoError(t, repo.Upsert(ctx, pref))

	prefs, err := repo.FindByUserID(ctx, userID)
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.Equal(t, "+15550199", prefs[0].Target)
	assert.Equal(t, model.ChannelSMS, prefs[0].Channel)
}

func TestReportRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	repo := NewReportRepository(pool, zap.NewNop())
	userID := createTestUser(t, pool)

	report := &model.Report{
		ID:             uuid.New().String(),
		UserID:         userID,
		DateRangeStart: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		DateRangeEnd:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		FilePath:       "reports/" + userID + "/r.pdf",
		GeneratedAt:    time.Now(),
	}
	require.NoError(t, repo.SaveReport(ctx, report))

	got, err := repo.GetReportByID(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.FilePath, got.FilePath)

	_, err = repo.GetReportByID(ctx, uuid.New().String())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
