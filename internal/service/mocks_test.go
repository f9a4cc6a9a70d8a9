package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/internal/audit"
	"github.com/Blackades/med-alert-hub-sub000/internal/azure"
	"github.com/Blackades/med-alert-hub-sub000/internal/notify"
	"github.com/Blackades/med-alert-hub-sub000/internal/repository"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

func ptr[T any](v T) *T { return &v }

// MockUserRepository is a mock implementation of UserRepositoryInterface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, userID string) (*model.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

// MockMedicationRepository is a mock implementation of MedicationRepositoryInterface
type MockMedicationRepository struct {
	mock.Mock
}

func (m *MockMedicationRepository) Create(ctx context.Context, med *model.Medication, slots []model.ScheduleSlot, inv *model.InventoryRecord) error {
	args := m.Called(ctx, med, slots, inv)
	return args.Error(0)
}

func (m *MockMedicationRepository) FindByUserID(ctx context.Context, userID string) ([]model.Medication, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Medication), args.Error(1)
}

func (m *MockMedicationRepository) FindByID(ctx context.Context, medicationID string) (*model.Medication, error) {
	args := m.Called(ctx, medicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Medication), args.Error(1)
}

func (m *MockMedicationRepository) Update(ctx context.Context, med *model.Medication, slots []model.ScheduleSlot) error {
	args := m.Called(ctx, med, slots)
	return args.Error(0)
}

func (m *MockMedicationRepository) Delete(ctx context.Context, medicationID string) error {
	args := m.Called(ctx, medicationID)
	return args.Error(0)
}

func (m *MockMedicationRepository) FindSlots(ctx context.Context, medicationID string) ([]model.ScheduleSlot, error) {
	args := m.Called(ctx, medicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ScheduleSlot), args.Error(1)
}

func (m *MockMedicationRepository) FindInventory(ctx context.Context, medicationID string) (*model.InventoryRecord, error) {
	args := m.Called(ctx, medicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.InventoryRecord), args.Error(1)
}

func (m *MockMedicationRepository) UpsertInventory(ctx context.Context, inv *model.InventoryRecord) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

// UpdateInventory runs fn against the record passed to Return, mirroring
// the row lock of the real repository
func (m *MockMedicationRepository) UpdateInventory(ctx context.Context, medicationID string, fn func(*model.InventoryRecord) error) (*model.InventoryRecord, error) {
	args := m.Called(ctx, medicationID)
	if args.Error(1) != nil {
		return nil, args.Error(1)
	}
	current, _ := args.Get(0).(*model.InventoryRecord)
	if err := fn(current); err != nil {
		return nil, err
	}
	return current, nil
}

// MockDoseRepository is a mock implementation of DoseRepositoryInterface.
// Transact hands the configured state to fn together with a recording DoseTx.
type MockDoseRepository struct {
	mock.Mock
	tx *fakeDoseTx
}

func (m *MockDoseRepository) Transact(ctx context.Context, medicationID string, fn func(ctx context.Context, state *repository.MedicationState, tx repository.DoseTx) error) error {
	args := m.Called(ctx, medicationID)
	if args.Error(1) != nil {
		return args.Error(1)
	}
	state := args.Get(0).(*repository.MedicationState)
	if m.tx == nil {
		m.tx = &fakeDoseTx{}
	}
	staged := &fakeDoseTx{insertErr: m.tx.insertErr, updateErr: m.tx.updateErr, stored: m.tx.stored}
	if err := fn(ctx, state, staged); err != nil {
		return err
	}
	m.tx.slots = append(m.tx.slots, staged.slots...)
	m.tx.logs = append(m.tx.logs, staged.logs...)
	m.tx.inventory = append(m.tx.inventory, staged.inventory...)
	return nil
}

func (m *MockDoseRepository) LoadState(ctx context.Context, medicationID string) (*repository.MedicationState, error) {
	args := m.Called(ctx, medicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.MedicationState), args.Error(1)
}

func (m *MockDoseRepository) FindLogByCycle(ctx context.Context, slotID string, scheduled time.Time) (*model.DoseLogEntry, error) {
	args := m.Called(ctx, slotID, scheduled)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DoseLogEntry), args.Error(1)
}

func (m *MockDoseRepository) ListLogs(ctx context.Context, medicationID string, since time.Time, limit int) ([]model.DoseLogEntry, error) {
	args := m.Called(ctx, medicationID, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DoseLogEntry), args.Error(1)
}

func (m *MockDoseRepository) ListLogsByUser(ctx context.Context, userID string, since time.Time) ([]model.DoseLogEntry, error) {
	args := m.Called(ctx, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DoseLogEntry), args.Error(1)
}

// fakeDoseTx records committed writes. insertErr and updateErr are
// returned from every call when set. stored holds logs already persisted.
type fakeDoseTx struct {
	insertErr error
	updateErr error
	stored    []model.DoseLogEntry
	slots     []model.ScheduleSlot
	logs      []model.DoseLogEntry
	inventory []model.InventoryRecord
}

func (f *fakeDoseTx) UpdateSlot(_ context.Context, slot *model.ScheduleSlot, _ model.SlotState, _ *time.Time) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.slots = append(f.slots, *slot)
	return nil
}

func (f *fakeDoseTx) InsertLog(_ context.Context, entry *model.DoseLogEntry) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.logs = append(f.logs, *entry)
	return nil
}

func (f *fakeDoseTx) FindLogByCycle(_ context.Context, slotID string, scheduled time.Time) (*model.DoseLogEntry, error) {
	for i := len(f.stored) - 1; i >= 0; i-- {
		if f.stored[i].SlotID == slotID && f.stored[i].ScheduledTime.Equal(scheduled) && f.stored[i].Status != model.LogStatusDelayed {
			entry := f.stored[i]
			return &entry, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeDoseTx) SaveInventory(_ context.Context, inv *model.InventoryRecord) error {
	f.inventory = append(f.inventory, *inv)
	return nil
}

// MockNotificationRepository is a mock implementation of NotificationRepositoryInterface
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Upsert(ctx context.Context, pref *model.NotificationPreference) error {
	args := m.Called(ctx, pref)
	return args.Error(0)
}

func (m *MockNotificationRepository) FindByUserID(ctx context.Context, userID string) ([]model.NotificationPreference, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.NotificationPreference), args.Error(1)
}

// MockDispatcher is a mock implementation of notify.Dispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Send(ctx context.Context, channel model.Channel, target string, msg notify.Message) notify.Result {
	args := m.Called(ctx, channel, target, msg)
	return args.Get(0).(notify.Result)
}

func (m *MockDispatcher) Broadcast(ctx context.Context, targets []notify.Target, msg notify.Message) []notify.Result {
	args := m.Called(ctx, targets, msg)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]notify.Result)
}

// MockNotifier is a mock implementation of UserNotifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyUser(ctx context.Context, userID string, msg notify.Message) ([]notify.Result, error) {
	args := m.Called(ctx, userID, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]notify.Result), args.Error(1)
}

// MockAuditLogger is a mock implementation of AuditLogger
type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) Log(ctx context.Context, entry audit.AuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockReportRepository is a mock implementation of ReportRepositoryInterface
type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) SaveReport(ctx context.Context, report *model.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockReportRepository) GetReportByID(ctx context.Context, reportID string) (*model.Report, error) {
	args := m.Called(ctx, reportID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

// MockNarrativeWriter is a mock implementation of NarrativeWriter
type MockNarrativeWriter struct {
	mock.Mock
}

func (m *MockNarrativeWriter) SummarizeAdherence(ctx context.Context, facts azure.AdherenceFacts) (string, error) {
	args := m.Called(ctx, facts)
	return args.String(0), args.Error(1)
}
