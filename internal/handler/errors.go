package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/pkg/api"
)

// respondError writes the ErrorResponse for err. Client errors carry the
// error text as message; server errors keep it in details behind message.
func respondError(c *gin.Context, logger *zap.Logger, err error, message string, fields ...zap.Field) {
	status := apperr.HTTPStatus(err)
	resp := api.ErrorResponse{
		Code:    apperr.Code(err),
		Message: message,
	}

	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		resp.Message = verr.Message
		resp.Details = stringPtr(verr.Field)
	case status == http.StatusNotFound:
		resp.Message = "Resource not found"
	case status < http.StatusInternalServerError:
		resp.Message = err.Error()
	default:
		resp.Details = stringPtr(err.Error())
		_ = c.Error(err)
	}

	fields = append(fields, zap.Error(err), zap.Int("status", status))
	if status >= http.StatusInternalServerError {
		logger.Error(message, fields...)
	} else {
		logger.Debug(message, fields...)
	}

	c.JSON(status, resp)
}

// invalidBody answers a request body that could not be decoded
func invalidBody(c *gin.Context, logger *zap.Logger, err error) {
	logger.Debug("invalid request body", zap.Error(err))
	c.JSON(http.StatusBadRequest, api.ErrorResponse{
		Code:    "VALIDATION_ERROR",
		Message: "Invalid request body",
		Details: stringPtr(err.Error()),
	})
}
