package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/internal/azure"
	"github.com/Blackades/med-alert-hub-sub000/internal/pdf"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

type reportFixture struct {
	reports  *MockReportRepository
	meds     *MockMedicationRepository
	logs     *MockDoseRepository
	users    *MockUserRepository
	narrator *MockNarrativeWriter
	store    *azure.MemoryReportStore
	svc      *ReportService
}

func newReportFixture(withNarrator bool) *reportFixture {
	logger := zap.NewNop()
	f := &reportFixture{
		reports: new(MockReportRepository),
		meds:    new(MockMedicationRepository),
		logs:    new(MockDoseRepository),
		users:   new(MockUserRepository),
		store:   azure.NewMemoryReportStore(logger),
	}
	var narrator NarrativeWriter
	if withNarrator {
		f.narrator = new(MockNarrativeWriter)
		narrator = f.narrator
	}
	f.svc = NewReportService(f.reports, f.meds, f.logs, f.users, f.store, pdf.NewPDFGenerator(logger), narrator, nil, "UTC", logger)
	f.svc.now = func() time.Time { return time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC) }
	return f
}

func (f *reportFixture) expectData(ctx context.Context) {
	med := model.Medication{
		ID:            "med-1",
		UserID:        "user-1",
		Name:          "Metformin",
		Dosage:        "500mg",
		Frequency:     model.FrequencySpec{Interval: &model.IntervalSpec{TimesPerDay: 2}},
		FirstDoseTime: model.NewTimeOfDay(8, 0),
		Active:        true,
	}
	f.users.On("FindByID", ctx, "user-1").Return(&model.User{ID: "user-1", Name: "Ada", Timezone: "UTC"}, nil)
	f.meds.On("FindByUserID", ctx, "user-1").Return([]model.Medication{med}, nil)
	f.meds.On("FindSlots", ctx, "med-1").Return([]model.ScheduleSlot{
		{ID: "slot-am", TimeOfDay: model.NewTimeOfDay(8, 0)},
		{ID: "slot-pm", TimeOfDay: model.NewTimeOfDay(20, 0)},
	}, nil)
	f.meds.On("FindInventory", ctx, "med-1").Return(&model.InventoryRecord{CurrentQuantity: 12, DoseAmount: 1}, nil)
	f.logs.On("ListLogsByUser", ctx, "user-1", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)).Return([]model.DoseLogEntry{
		logEntry("in-range", model.LogStatusTaken, time.Date(2026, 3, 7, 8, 0, 0, 0, time.UTC)),
		logEntry("after-range", model.LogStatusMissed, time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)),
	}, nil)
}

func TestGenerateReport_Success(t *testing.T) {
	// Arrange
	f := newReportFixture(true)
	ctx := context.Background()
	f.expectData(ctx)
	f.narrator.On("SummarizeAdherence", ctx, mock.MatchedBy(func(facts azure.AdherenceFacts) bool {
		return facts.PatientName == "Ada" && facts.Taken == 1 && facts.Missed == 0 &&
			facts.Period == "2026-03-01 to 2026-03-07" && len(facts.Medications) == 1
	})).Return("Ada took every logged dose.", nil)
	f.reports.On("SaveReport", ctx, mock.AnythingOfType("*model.Report")).Return(nil)

	// Act
	report, err := f.svc.GenerateReport(ctx, "user-1",
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "user-1", report.UserID)
	assert.True(t, strings.HasPrefix(report.FilePath, "reports/"+report.ID))
	assert.True(t, time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC).Equal(report.DateRangeEnd))
	assert.Equal(t, []string{report.FilePath}, f.store.List())
	f.narrator.AssertExpectations(t)
	f.reports.AssertExpectations(t)
}

func TestGenerateReport_NarrativeFailureIsNotFatal(t *testing.T) {
	f := newReportFixture(true)
	ctx := context.Background()
	f.expectData(ctx)
	f.narrator.On("SummarizeAdherence", ctx, mock.Anything).Return("", errors.New("rate limit exceeded"))
	f.reports.On("SaveReport", ctx, mock.Anything).Return(nil)

	report, err := f.svc.GenerateReport(ctx, "user-1",
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.NotEmpty(t, report.ID)
}

func TestGenerateReport_ValidationErrors(t *testing.T) {
	ctx := context.Background()
	f := newReportFixture(false)
	f.users.On("FindByID", ctx, "user-1").Return(&model.User{ID: "user-1", Timezone: "UTC"}, nil)

	start := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)

	_, err := f.svc.GenerateReport(ctx, "user-1", start, start.AddDate(0, 0, -1))
	assert.True(t, apperr.IsValidation(err), "end before start")

	_, err = f.svc.GenerateReport(ctx, "user-1", start.AddDate(-2, 0, 0), start)
	assert.True(t, apperr.IsValidation(err), "period too long")

	_, err = f.svc.GenerateReport(ctx, "", start, start)
	assert.True(t, apperr.IsValidation(err), "missing user")
}

func TestGenerateReport_SaveFailure(t *testing.T) {
	f := newReportFixture(false)
	ctx := context.Background()
	f.expectData(ctx)
	f.reports.On("SaveReport", ctx, mock.Anything).Return(errors.New("insert failed"))

	_, err := f.svc.GenerateReport(ctx, "user-1",
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC))

	assert.ErrorContains(t, err, "failed to save report record")
}

func TestGetReport(t *testing.T) {
	// Arrange
	f := newReportFixture(false)
	ctx := context.Background()
	path, err := f.store.UploadReport(ctx, "report-1_20260310.pdf", []byte("%PDF-1.3 test"))
	require.NoError(t, err)
	f.reports.On("GetReportByID", ctx, "report-1").Return(&model.Report{ID: "report-1", FilePath: path}, nil)
	f.reports.On("GetReportByID", ctx, "missing").Return(nil, apperr.ErrNotFound)

	// Act
	report, data, err := f.svc.GetReport(ctx, "report-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "report-1", report.ID)
	assert.Equal(t, "%PDF-1.3 test", string(data))

	_, _, err = f.svc.GetReport(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
