package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/adherence"
	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/internal/audit"
	"github.com/Blackades/med-alert-hub-sub000/internal/azure"
	"github.com/Blackades/med-alert-hub-sub000/internal/pdf"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// maxReportDays bounds the period of a single report
const maxReportDays = 366

// ReportRepositoryInterface defines the interface for report records
type ReportRepositoryInterface interface {
	SaveReport(ctx context.Context, report *model.Report) error
	GetReportByID(ctx context.Context, reportID string) (*model.Report, error)
}

// ReportMedicationSource reads the medications a report covers
type ReportMedicationSource interface {
	FindByUserID(ctx context.Context, userID string) ([]model.Medication, error)
	FindSlots(ctx context.Context, medicationID string) ([]model.ScheduleSlot, error)
	FindInventory(ctx context.Context, medicationID string) (*model.InventoryRecord, error)
}

// NarrativeWriter turns adherence figures into a short paragraph
type NarrativeWriter interface {
	SummarizeAdherence(ctx context.Context, facts azure.AdherenceFacts) (string, error)
}

// ReportService manages adherence report generation
type ReportService struct {
	reports         ReportRepositoryInterface
	medications     ReportMedicationSource
	logs            DoseLogSource
	users           UserRepositoryInterface
	store           azure.ReportStore
	pdfGen          *pdf.PDFGenerator
	narrator        NarrativeWriter
	audit           AuditLogger
	defaultTimezone string
	now             func() time.Time
	logger          *zap.Logger
}

// NewReportService creates a new ReportService. narrator may be nil.
func NewReportService(
	reports ReportRepositoryInterface,
	medications ReportMedicationSource,
	logs DoseLogSource,
	users UserRepositoryInterface,
	store azure.ReportStore,
	pdfGen *pdf.PDFGenerator,
	narrator NarrativeWriter,
	auditLogger AuditLogger,
	defaultTimezone string,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		reports:         reports,
		medications:     medications,
		logs:            logs,
		users:           users,
		store:           store,
		pdfGen:          pdfGen,
		narrator:        narrator,
		audit:           orNop(auditLogger),
		defaultTimezone: defaultTimezone,
		now:             time.Now,
		logger:          logger,
	}
}

// GenerateReport renders the adherence report of a user for the calendar
// dates startDate through endDate, stores the PDF and records it
func (s *ReportService) GenerateReport(ctx context.Context, userID string, startDate, endDate time.Time) (*model.Report, error) {
	s.logger.Info("generating adherence report",
		zap.String("user_id", userID),
		zap.Time("start_date", startDate),
		zap.Time("end_date", endDate),
	)

	if userID == "" {
		return nil, apperr.Validation("user_id", "is required")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	loc := loadLocation(user.Timezone, s.defaultTimezone)

	from := model.DateIn(startDate, loc)
	until := model.DateIn(endDate, loc).AddDate(0, 0, 1)
	if !until.After(from) {
		return nil, apperr.Validation("end_date", "must not be before start_date")
	}
	days := int(until.Sub(from).Hours()/24 + 0.5)
	if days > maxReportDays {
		return nil, apperr.Validation("end_date", "a report covers at most %d days", maxReportDays)
	}

	now := s.now().In(loc)
	asOf := until.Add(-time.Nanosecond)
	if now.Before(asOf) {
		asOf = now
	}

	reportID := uuid.New().String()

	medications, err := s.medications.FindByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to get medications for report",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("failed to get medications: %w", err)
	}

	allLogs, err := s.logs.ListLogsByUser(ctx, userID, from)
	if err != nil {
		s.logger.Error("failed to get dose logs for report",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("failed to get dose logs: %w", err)
	}
	logs := make([]model.DoseLogEntry, 0, len(allLogs))
	byMedication := make(map[string][]model.DoseLogEntry)
	for _, entry := range allLogs {
		if entry.ScheduledTime.Before(until) {
			logs = append(logs, entry)
			byMedication[entry.MedicationID] = append(byMedication[entry.MedicationID], entry)
		}
	}

	data := &pdf.ReportData{
		UserName:    user.Name,
		DateRange:   fmt.Sprintf("%s to %s", from.Format("2006-01-02"), until.AddDate(0, 0, -1).Format("2006-01-02")),
		GeneratedAt: now,
		Location:    loc,
		Overall:     adherence.ComputeStreaks(logs, days, asOf),
		Daily:       adherence.DailyBreakdown(logs, loc),
		Logs:        logs,
	}

	names := make([]string, 0, len(medications))
	for _, med := range medications {
		summary := pdf.MedicationSummary{
			Medication: med,
			Streaks:    adherence.ComputeStreaks(byMedication[med.ID], days, asOf),
		}
		slots, err := s.medications.FindSlots(ctx, med.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get schedule slots: %w", err)
		}
		for _, slot := range slots {
			summary.SlotTimes = append(summary.SlotTimes, slot.TimeOfDay)
		}
		summary.Inventory, err = s.medications.FindInventory(ctx, med.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get inventory: %w", err)
		}
		data.Medications = append(data.Medications, summary)
		names = append(names, med.Name)
	}

	if s.narrator != nil {
		narrative, err := s.narrator.SummarizeAdherence(ctx, azure.AdherenceFacts{
			PatientName:   user.Name,
			Period:        data.DateRange,
			AdherenceRate: data.Overall.AdherenceRate,
			CurrentStreak: data.Overall.CurrentStreak,
			LongestStreak: data.Overall.LongestStreak,
			Taken:         data.Overall.TakenCount,
			Missed:        data.Overall.MissedCount,
			Skipped:       data.Overall.SkippedCount,
			Delayed:       data.Overall.DelayedCount,
			Medications:   names,
		})
		if err != nil {
			s.logger.Warn("failed to write report narrative, continuing without it",
				zap.Error(err),
				zap.String("report_id", reportID),
			)
		} else {
			data.Narrative = narrative
		}
	}

	pdfBytes, err := s.pdfGen.Generate(data)
	if err != nil {
		s.logger.Error("failed to generate PDF",
			zap.Error(err),
			zap.String("report_id", reportID),
		)
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.pdf", reportID, now.Format("20060102"))
	blobPath, err := s.store.UploadReport(ctx, filename, pdfBytes)
	if err != nil {
		s.logger.Error("failed to upload report",
			zap.Error(err),
			zap.String("report_id", reportID),
		)
		return nil, fmt.Errorf("failed to upload report: %w", err)
	}

	report := &model.Report{
		ID:             reportID,
		UserID:         userID,
		DateRangeStart: from,
		DateRangeEnd:   until.AddDate(0, 0, -1),
		FilePath:       blobPath,
		GeneratedAt:    now,
		CreatedAt:      now,
	}
	if err := s.reports.SaveReport(ctx, report); err != nil {
		s.logger.Error("failed to save report record",
			zap.Error(err),
			zap.String("report_id", reportID),
		)
		return nil, fmt.Errorf("failed to save report record: %w", err)
	}

	recordAudit(ctx, s.audit, s.logger, audit.AuditLog{
		UserID:        userID,
		OperationType: audit.OperationCreate,
		ResourceType:  audit.ResourceReport,
		ResourceID:    reportID,
	})

	s.logger.Info("adherence report generated successfully",
		zap.String("report_id", reportID),
		zap.String("user_id", userID),
		zap.String("blob_path", blobPath),
		zap.Int("log_entries", len(logs)),
	)

	return report, nil
}

// GetReport retrieves a report record and its PDF for download
func (s *ReportService) GetReport(ctx context.Context, reportID string) (*model.Report, []byte, error) {
	if reportID == "" {
		return nil, nil, apperr.Validation("report_id", "is required")
	}

	report, err := s.reports.GetReportByID(ctx, reportID)
	if err != nil {
		return nil, nil, err
	}

	pdfBytes, err := s.store.DownloadReport(ctx, report.FilePath)
	if err != nil {
		s.logger.Error("failed to download report",
			zap.Error(err),
			zap.String("report_id", reportID),
			zap.String("blob_path", report.FilePath),
		)
		return nil, nil, fmt.Errorf("failed to download report: %w", err)
	}

	s.logger.Info("report retrieved successfully",
		zap.String("report_id", reportID),
		zap.Int("size_bytes", len(pdfBytes)),
	)

	return report, pdfBytes, nil
}
