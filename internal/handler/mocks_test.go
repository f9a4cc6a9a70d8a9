package handler

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Blackades/med-alert-hub-sub000/internal/dose"
	"github.com/Blackades/med-alert-hub-sub000/internal/service"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// MockMedicationManager is a mock implementation of MedicationManager
type MockMedicationManager struct {
	mock.Mock
}

func (m *MockMedicationManager) AddMedication(ctx context.Context, med *model.Medication, inv *model.InventoryRecord) (*service.MedicationDetails, error) {
	args := m.Called(ctx, med, inv)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MedicationDetails), args.Error(1)
}

func (m *MockMedicationManager) ListMedications(ctx context.Context, userID string) ([]model.Medication, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Medication), args.Error(1)
}

func (m *MockMedicationManager) GetMedication(ctx context.Context, medID string) (*service.MedicationDetails, error) {
	args := m.Called(ctx, medID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MedicationDetails), args.Error(1)
}

func (m *MockMedicationManager) UpdateMedication(ctx context.Context, medID string, updates *model.Medication) (*service.MedicationDetails, error) {
	args := m.Called(ctx, medID, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MedicationDetails), args.Error(1)
}

func (m *MockMedicationManager) DeleteMedication(ctx context.Context, medID string) error {
	args := m.Called(ctx, medID)
	return args.Error(0)
}

func (m *MockMedicationManager) SetInventory(ctx context.Context, medID string, inv *model.InventoryRecord) (*service.MedicationDetails, error) {
	args := m.Called(ctx, medID, inv)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MedicationDetails), args.Error(1)
}

func (m *MockMedicationManager) RefillInventory(ctx context.Context, medID string, amount float64) (*service.MedicationDetails, error) {
	args := m.Called(ctx, medID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MedicationDetails), args.Error(1)
}

// MockDoseTracker is a mock implementation of DoseTracker
type MockDoseTracker struct {
	mock.Mock
}

func (m *MockDoseTracker) ApplyAction(ctx context.Context, medicationID string, action model.Action, opts dose.Options) (*service.ActionResult, error) {
	args := m.Called(ctx, medicationID, action, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ActionResult), args.Error(1)
}

func (m *MockDoseTracker) GetStatus(ctx context.Context, medicationID string, at *time.Time) (*service.StatusView, error) {
	args := m.Called(ctx, medicationID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StatusView), args.Error(1)
}

func (m *MockDoseTracker) ListLogs(ctx context.Context, medicationID string, days, limit int) ([]model.DoseLogEntry, error) {
	args := m.Called(ctx, medicationID, days, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DoseLogEntry), args.Error(1)
}

// MockReportGenerator is a mock implementation of ReportGenerator
type MockReportGenerator struct {
	mock.Mock
}

func (m *MockReportGenerator) GenerateReport(ctx context.Context, userID string, startDate, endDate time.Time) (*model.Report, error) {
	args := m.Called(ctx, userID, startDate, endDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

func (m *MockReportGenerator) GetReport(ctx context.Context, reportID string) (*model.Report, []byte, error) {
	args := m.Called(ctx, reportID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.Report), args.Get(1).([]byte), args.Error(2)
}

// MockPreferenceStore is a mock implementation of PreferenceStore
type MockPreferenceStore struct {
	mock.Mock
}

func (m *MockPreferenceStore) GetPreferences(ctx context.Context, userID string) ([]model.NotificationPreference, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.NotificationPreference), args.Error(1)
}

func (m *MockPreferenceStore) SetPreferences(ctx context.Context, userID string, prefs []model.NotificationPreference) ([]model.NotificationPreference, error) {
	args := m.Called(ctx, userID, prefs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.NotificationPreference), args.Error(1)
}

// MockAdherenceReader is a mock implementation of AdherenceReader
type MockAdherenceReader struct {
	mock.Mock
}

func (m *MockAdherenceReader) GetSummary(ctx context.Context, userID, medicationID string, days int) (*service.AdherenceSummary, error) {
	args := m.Called(ctx, userID, medicationID, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AdherenceSummary), args.Error(1)
}
