package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// maxLogRows bounds the dose log table
const maxLogRows = 40

// PDFGenerator generates adherence reports
type PDFGenerator struct {
	logger *zap.Logger
}

// NewPDFGenerator creates a new PDFGenerator
func NewPDFGenerator(logger *zap.Logger) *PDFGenerator {
	return &PDFGenerator{
		logger: logger,
	}
}

// MedicationSummary is one medication's section of the report
type MedicationSummary struct {
	Medication model.Medication
	SlotTimes  []model.TimeOfDay
	Inventory  *model.InventoryRecord
	Streaks    model.StreakSummary
}

// ReportData contains all data needed for report generation
type ReportData struct {
	UserName    string
	DateRange   string
	GeneratedAt time.Time
	Location    *time.Location
	Overall     model.StreakSummary
	Medications []MedicationSummary
	Daily       []model.DailyAdherence
	Logs        []model.DoseLogEntry
	Narrative   string
}

// Generate creates a PDF report from the provided data
func (g *PDFGenerator) Generate(data *ReportData) ([]byte, error) {
	g.logger.Info("generating PDF report",
		zap.String("user_name", data.UserName),
		zap.String("date_range", data.DateRange),
	)

	loc := data.Location
	if loc == nil {
		loc = time.UTC
	}
	generated := data.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	g.addTitle(pdf, "Medication Adherence Report", data.UserName, data.DateRange, generated.In(loc))
	g.addOverview(pdf, data.Overall, data.Narrative)
	g.addMedicationList(pdf, data.Medications)
	g.addDailyBreakdown(pdf, data.Daily)
	g.addDoseLog(pdf, data.Logs, data.Medications, loc)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		g.logger.Error("failed to generate PDF", zap.Error(err))
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	g.logger.Info("PDF report generated successfully",
		zap.Int("size_bytes", buf.Len()),
	)

	return buf.Bytes(), nil
}

// addTitle adds the report title and header information
func (g *PDFGenerator) addTitle(pdf *gofpdf.Fpdf, title, userName, dateRange string, generated time.Time) {
	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Patient: %s", userName), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Period: %s", dateRange), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Generated: %s", generated.Format("2006-01-02 15:04 MST")), "", 1, "L", false, 0, "")
	pdf.Ln(10)
}

// addSectionHeader adds a section header
func (g *PDFGenerator) addSectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(0, 10, title, "", 1, "L", true, 0, "")
	pdf.Ln(3)
	pdf.SetFont("Arial", "", 10)
}

func (g *PDFGenerator) addOverview(pdf *gofpdf.Fpdf, overall model.StreakSummary, narrative string) {
	g.addSectionHeader(pdf, "Overview")

	pdf.CellFormat(0, 6, fmt.Sprintf("Adherence rate: %.1f%%", overall.AdherenceRate), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Doses taken: %d   missed: %d   skipped: %d   delayed: %d",
		overall.TakenCount, overall.MissedCount, overall.SkippedCount, overall.DelayedCount), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Current streak: %d days   Longest streak: %d days",
		overall.CurrentStreak, overall.LongestStreak), "", 1, "L", false, 0, "")

	if narrative != "" {
		pdf.Ln(3)
		pdf.SetFont("Arial", "I", 10)
		pdf.MultiCell(0, 5, narrative, "", "L", false)
		pdf.SetFont("Arial", "", 10)
	}
	pdf.Ln(5)
}

// addMedicationList adds one block per medication
func (g *PDFGenerator) addMedicationList(pdf *gofpdf.Fpdf, medications []MedicationSummary) {
	g.addSectionHeader(pdf, "Medications")

	if len(medications) == 0 {
		pdf.CellFormat(0, 8, "No medications recorded.", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	for _, m := range medications {
		med := m.Medication
		pdf.SetFont("Arial", "B", 10)
		name := med.Name
		if !med.Active {
			name += " (inactive)"
		}
		pdf.CellFormat(0, 6, name, "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 5, fmt.Sprintf("  Dosage: %s", med.Dosage), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("  Schedule: %s", describeSchedule(med.Frequency, m.SlotTimes)), "", 1, "L", false, 0, "")
		if med.StartDate != nil {
			pdf.CellFormat(0, 5, fmt.Sprintf("  Start Date: %s", med.StartDate.Format("2006-01-02")), "", 1, "L", false, 0, "")
		}
		if med.EndDate != nil {
			pdf.CellFormat(0, 5, fmt.Sprintf("  End Date: %s", med.EndDate.Format("2006-01-02")), "", 1, "L", false, 0, "")
		}
		if med.WithFood {
			pdf.CellFormat(0, 5, "  Take with food", "", 1, "L", false, 0, "")
		}
		if med.Instructions != nil && *med.Instructions != "" {
			pdf.CellFormat(0, 5, fmt.Sprintf("  Instructions: %s", *med.Instructions), "", 1, "L", false, 0, "")
		}
		pdf.CellFormat(0, 5, fmt.Sprintf("  Adherence: %.1f%% (%d taken, %d missed, %d skipped)",
			m.Streaks.AdherenceRate, m.Streaks.TakenCount, m.Streaks.MissedCount, m.Streaks.SkippedCount), "", 1, "L", false, 0, "")
		if m.Inventory != nil {
			unit := m.Inventory.Unit
			if unit == "" {
				unit = "units"
			}
			pdf.CellFormat(0, 5, fmt.Sprintf("  Stock: %g %s (refill at %g)",
				m.Inventory.CurrentQuantity, unit, m.Inventory.RefillThreshold), "", 1, "L", false, 0, "")
		}
		pdf.Ln(3)
	}
	pdf.Ln(5)
}

// addDailyBreakdown adds a table of resolved doses per day
func (g *PDFGenerator) addDailyBreakdown(pdf *gofpdf.Fpdf, days []model.DailyAdherence) {
	g.addSectionHeader(pdf, "Daily Breakdown")

	if len(days) == 0 {
		pdf.CellFormat(0, 8, "No doses recorded during this period.", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	widths := []float64{40, 30, 30, 30, 40}
	pdf.SetFont("Arial", "B", 10)
	for i, h := range []string{"Date", "Taken", "Missed", "Skipped", "All taken"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)

	for _, d := range days {
		all := "no"
		if d.AllTaken {
			all = "yes"
		}
		pdf.CellFormat(widths[0], 6, d.Date.Format("2006-01-02"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, fmt.Sprint(d.Taken), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 6, fmt.Sprint(d.Missed), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[3], 6, fmt.Sprint(d.Skipped), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[4], 6, all, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(5)
}

// addDoseLog lists the most recent dose actions
func (g *PDFGenerator) addDoseLog(pdf *gofpdf.Fpdf, logs []model.DoseLogEntry, medications []MedicationSummary, loc *time.Location) {
	g.addSectionHeader(pdf, "Recent Dose Log")

	if len(logs) == 0 {
		pdf.CellFormat(0, 8, "No dose actions recorded during this period.", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	names := make(map[string]string, len(medications))
	for _, m := range medications {
		names[m.Medication.ID] = m.Medication.Name
	}

	rows := logs
	if len(rows) > maxLogRows {
		rows = rows[:maxLogRows]
	}
	for _, entry := range rows {
		line := fmt.Sprintf("%s  %-8s  %s", entry.ScheduledTime.In(loc).Format("2006-01-02 15:04"), entry.Status, names[entry.MedicationID])
		if entry.ActualActionTime != nil && entry.Status != model.LogStatusMissed {
			line += fmt.Sprintf("  (at %s)", entry.ActualActionTime.In(loc).Format("15:04"))
		}
		if entry.Reason != nil && *entry.Reason != "" {
			line += fmt.Sprintf("  - %s", *entry.Reason)
		}
		pdf.CellFormat(0, 5, line, "", 1, "L", false, 0, "")
	}
	if len(logs) > maxLogRows {
		pdf.CellFormat(0, 5, fmt.Sprintf("... and %d earlier entries", len(logs)-maxLogRows), "", 1, "L", false, 0, "")
	}
	pdf.Ln(5)
}

// describeSchedule renders a frequency and its slot times for humans
func describeSchedule(spec model.FrequencySpec, times []model.TimeOfDay) string {
	labels := make([]string, len(times))
	for i, t := range times {
		labels[i] = t.String()
	}
	at := strings.Join(labels, ", ")

	switch spec.Kind() {
	case model.FrequencyInterval:
		return fmt.Sprintf("%d times daily at %s", spec.Interval.TimesPerDay, at)
	case model.FrequencyFixedTimes:
		return fmt.Sprintf("daily at %s", at)
	case model.FrequencyPeriodic:
		p := spec.Periodic
		if p.Count == 1 {
			return fmt.Sprintf("every %s at %s", p.Unit, at)
		}
		return fmt.Sprintf("every %d %ss at %s", p.Count, p.Unit, at)
	}
	return "unscheduled"
}
