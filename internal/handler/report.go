package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/pkg/api"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// ReportGenerator builds and serves adherence reports
type ReportGenerator interface {
	GenerateReport(ctx context.Context, userID string, startDate, endDate time.Time) (*model.Report, error)
	GetReport(ctx context.Context, reportID string) (*model.Report, []byte, error)
}

// ReportHandler implements report API endpoints
type ReportHandler struct {
	service ReportGenerator
	logger  *zap.Logger
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(service ReportGenerator, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		logger:  logger,
	}
}

// PostApiV1Reports generates an adherence report
func (h *ReportHandler) PostApiV1Reports(c *gin.Context) {
	var req api.GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, h.logger, err)
		return
	}

	userID := uuidToString(req.UserId)
	startDate := dateToTime(req.StartDate)
	endDate := dateToTime(req.EndDate)

	if startDate.After(endDate) {
		respondError(c, h.logger, apperr.Validation("start_date", "start_date must be before or equal to end_date"),
			"Invalid report period", zap.String("user_id", userID))
		return
	}

	report, err := h.service.GenerateReport(c.Request.Context(), userID, startDate, endDate)
	if err != nil {
		respondError(c, h.logger, err, "Failed to generate report", zap.String("user_id", userID))
		return
	}

	h.logger.Info("report generated",
		zap.String("report_id", report.ID),
		zap.String("user_id", userID),
	)

	c.JSON(http.StatusCreated, reportResponse(report))
}

// GetApiV1ReportsId downloads a report
func (h *ReportHandler) GetApiV1ReportsId(c *gin.Context, id types.UUID) {
	reportID := uuidToString(id)

	_, pdfBytes, err := h.service.GetReport(c.Request.Context(), reportID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get report", zap.String("report_id", reportID))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=adherence_report_%s.pdf", reportID))
	c.Data(http.StatusOK, "application/pdf", pdfBytes)

	h.logger.Info("report downloaded",
		zap.String("report_id", reportID),
		zap.Int("size_bytes", len(pdfBytes)),
	)
}

func reportResponse(report *model.Report) api.ReportResponse {
	return api.ReportResponse{
		Id:          stringToUUID(report.ID),
		UserId:      stringToUUID(report.UserID),
		StartDate:   timeToDate(report.DateRangeStart),
		EndDate:     timeToDate(report.DateRangeEnd),
		GeneratedAt: timePtr(report.GeneratedAt),
		DownloadUrl: stringPtr("/api/v1/reports/" + report.ID),
	}
}
