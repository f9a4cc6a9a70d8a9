package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Liveness and database check
	// (GET /health)
	GetHealth(c *gin.Context)
	// Register a user
	// (POST /api/v1/users)
	PostApiV1Users(c *gin.Context)
	// Read a user
	// (GET /api/v1/users/{id})
	GetApiV1UsersId(c *gin.Context, id openapi_types.UUID)
	// List medications of a user
	// (GET /api/v1/medications)
	GetApiV1Medications(c *gin.Context, params GetApiV1MedicationsParams)
	// Create a medication
	// (POST /api/v1/medications)
	PostApiV1Medications(c *gin.Context)
	// Delete a medication
	// (DELETE /api/v1/medications/{id})
	DeleteApiV1MedicationsId(c *gin.Context, id openapi_types.UUID)
	// Read a medication with slots and inventory
	// (GET /api/v1/medications/{id})
	GetApiV1MedicationsId(c *gin.Context, id openapi_types.UUID)
	// Replace a medication
	// (PUT /api/v1/medications/{id})
	PutApiV1MedicationsId(c *gin.Context, id openapi_types.UUID)
	// Apply a dose action
	// (POST /api/v1/medications/{id}/actions)
	PostApiV1MedicationsIdActions(c *gin.Context, id openapi_types.UUID)
	// Replace the inventory record
	// (PUT /api/v1/medications/{id}/inventory)
	PutApiV1MedicationsIdInventory(c *gin.Context, id openapi_types.UUID)
	// Refill the inventory
	// (POST /api/v1/medications/{id}/inventory/refill)
	PostApiV1MedicationsIdInventoryRefill(c *gin.Context, id openapi_types.UUID)
	// Dose history
	// (GET /api/v1/medications/{id}/logs)
	GetApiV1MedicationsIdLogs(c *gin.Context, id openapi_types.UUID, params GetApiV1MedicationsIdLogsParams)
	// Schedule projection
	// (GET /api/v1/medications/{id}/status)
	GetApiV1MedicationsIdStatus(c *gin.Context, id openapi_types.UUID, params GetApiV1MedicationsIdStatusParams)
	// Adherence summary
	// (GET /api/v1/adherence)
	GetApiV1Adherence(c *gin.Context, params GetApiV1AdherenceParams)
	// Generate an adherence report
	// (POST /api/v1/reports)
	PostApiV1Reports(c *gin.Context)
	// Download a report
	// (GET /api/v1/reports/{id})
	GetApiV1ReportsId(c *gin.Context, id openapi_types.UUID)
	// Read notification preferences
	// (GET /api/v1/notifications/preferences)
	GetApiV1NotificationsPreferences(c *gin.Context, params GetApiV1NotificationsPreferencesParams)
	// Replace notification preferences
	// (PUT /api/v1/notifications/preferences)
	PutApiV1NotificationsPreferences(c *gin.Context)
}

// ServerInterfaceWrapper converts gin contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler      ServerInterface
	ErrorHandler func(*gin.Context, error, int)
}

func (siw *ServerInterfaceWrapper) bindID(c *gin.Context) (openapi_types.UUID, bool) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", c.Param("id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandler(c, fmt.Errorf("Invalid format for parameter id: %w", err), http.StatusBadRequest)
		return id, false
	}
	return id, true
}

func (siw *ServerInterfaceWrapper) bindQuery(c *gin.Context, name string, required bool, dest interface{}) bool {
	if err := runtime.BindQueryParameter("form", true, required, name, c.Request.URL.Query(), dest); err != nil {
		siw.ErrorHandler(c, fmt.Errorf("Invalid format for parameter %s: %w", name, err), http.StatusBadRequest)
		return false
	}
	return true
}

// GetHealth operation middleware
func (siw *ServerInterfaceWrapper) GetHealth(c *gin.Context) {
	siw.Handler.GetHealth(c)
}

// PostApiV1Users operation middleware
func (siw *ServerInterfaceWrapper) PostApiV1Users(c *gin.Context) {
	siw.Handler.PostApiV1Users(c)
}

// GetApiV1UsersId operation middleware
func (siw *ServerInterfaceWrapper) GetApiV1UsersId(c *gin.Context) {
	if id, ok := siw.bindID(c); ok {
		siw.Handler.GetApiV1UsersId(c, id)
	}
}

// GetApiV1Medications operation middleware
func (siw *ServerInterfaceWrapper) GetApiV1Medications(c *gin.Context) {
	var params GetApiV1MedicationsParams
	if !siw.bindQuery(c, "user_id", true, &params.UserId) {
		return
	}
	siw.Handler.GetApiV1Medications(c, params)
}

// PostApiV1Medications operation middleware
func (siw *ServerInterfaceWrapper) PostApiV1Medications(c *gin.Context) {
	siw.Handler.PostApiV1Medications(c)
}

// DeleteApiV1MedicationsId operation middleware
func (siw *ServerInterfaceWrapper) DeleteApiV1MedicationsId(c *gin.Context) {
	if id, ok := siw.bindID(c); ok {
		siw.Handler.DeleteApiV1MedicationsId(c, id)
	}
}

// GetApiV1MedicationsId operation middleware
func (siw *ServerInterfaceWrapper) GetApiV1MedicationsId(c *gin.Context) {
	if id, ok := siw.bindID(c); ok {
		siw.Handler.GetApiV1MedicationsId(c, id)
	}
}

// PutApiV1MedicationsId operation middleware
func (siw *ServerInterfaceWrapper) PutApiV1MedicationsId(c *gin.Context) {
	if id, ok := siw.bindID(c); ok {
		siw.Handler.PutApiV1MedicationsId(c, id)
	}
}

// PostApiV1MedicationsIdActions operation middleware
func (siw *ServerInterfaceWrapper) PostApiV1MedicationsIdActions(c *gin.Context) {
	if id, ok := siw.bindID(c); ok {
		siw.Handler.PostApiV1MedicationsIdActions(c, id)
	}
}

// PutApiV1MedicationsIdInventory operation middleware
func (siw *ServerInterfaceWrapper) PutApiV1MedicationsIdInventory(c *gin.Context) {
	if id, ok := siw.bindID(c); ok {
		siw.Handler.PutApiV1MedicationsIdInventory(c, id)
	}
}

// PostApiV1MedicationsIdInventoryRefill operation middleware
func (siw *ServerInterfaceWrapper) PostApiV1MedicationsIdInventoryRefill(c *gin.Context) {
	if id, ok := siw.bindID(c); ok {
		siw.Handler.PostApiV1MedicationsIdInventoryRefill(c, id)
	}
}

// GetApiV1MedicationsIdLogs operation middleware
func (siw *ServerInterfaceWrapper) GetApiV1MedicationsIdLogs(c *gin.Context) {
	id, ok := siw.bindID(c)
	if !ok {
		return
	}
	var params GetApiV1MedicationsIdLogsParams
	if !siw.bindQuery(c, "days", false, &params.Days) || !siw.bindQuery(c, "limit", false, &params.Limit) {
		return
	}
	siw.Handler.GetApiV1MedicationsIdLogs(c, id, params)
}

// GetApiV1MedicationsIdStatus operation middleware
func (siw *ServerInterfaceWrapper) GetApiV1MedicationsIdStatus(c *gin.Context) {
	id, ok := siw.bindID(c)
	if !ok {
		return
	}
	var params GetApiV1MedicationsIdStatusParams
	if !siw.bindQuery(c, "at", false, &params.At) {
		return
	}
	siw.Handler.GetApiV1MedicationsIdStatus(c, id, params)
}

// GetApiV1Adherence operation middleware
func (siw *ServerInterfaceWrapper) GetApiV1Adherence(c *gin.Context) {
	var params GetApiV1AdherenceParams
	if !siw.bindQuery(c, "user_id", false, &params.UserId) ||
		!siw.bindQuery(c, "medication_id", false, &params.MedicationId) ||
		!siw.bindQuery(c, "days", false, &params.Days) {
		return
	}
	siw.Handler.GetApiV1Adherence(c, params)
}

// PostApiV1Reports operation middleware
func (siw *ServerInterfaceWrapper) PostApiV1Reports(c *gin.Context) {
	siw.Handler.PostApiV1Reports(c)
}

// GetApiV1ReportsId operation middleware
func (siw *ServerInterfaceWrapper) GetApiV1ReportsId(c *gin.Context) {
	if id, ok := siw.bindID(c); ok {
		siw.Handler.GetApiV1ReportsId(c, id)
	}
}

// GetApiV1NotificationsPreferences operation middleware
func (siw *ServerInterfaceWrapper) GetApiV1NotificationsPreferences(c *gin.Context) {
	var params GetApiV1NotificationsPreferencesParams
	if !siw.bindQuery(c, "user_id", true, &params.UserId) {
		return
	}
	siw.Handler.GetApiV1NotificationsPreferences(c, params)
}

// PutApiV1NotificationsPreferences operation middleware
func (siw *ServerInterfaceWrapper) PutApiV1NotificationsPreferences(c *gin.Context) {
	siw.Handler.PutApiV1NotificationsPreferences(c)
}

// GinServerOptions provides options for the Gin server.
type GinServerOptions struct {
	BaseURL      string
	Middlewares  []gin.HandlerFunc
	ErrorHandler func(*gin.Context, error, int)
}

// RegisterHandlers creates http.Handler with routing matching OpenAPI spec.
func RegisterHandlers(router gin.IRouter, si ServerInterface) {
	RegisterHandlersWithOptions(router, si, GinServerOptions{})
}

// RegisterHandlersWithOptions creates http.Handler with additional options
func RegisterHandlersWithOptions(router gin.IRouter, si ServerInterface, options GinServerOptions) {
	errorHandler := options.ErrorHandler
	if errorHandler == nil {
		errorHandler = func(c *gin.Context, err error, statusCode int) {
			c.JSON(statusCode, ErrorResponse{Code: "VALIDATION_ERROR", Message: err.Error()})
		}
	}

	wrapper := ServerInterfaceWrapper{
		Handler:      si,
		ErrorHandler: errorHandler,
	}

	group := router.Group(options.BaseURL, options.Middlewares...)
	group.GET("/health", wrapper.GetHealth)
	group.POST("/api/v1/users", wrapper.PostApiV1Users)
	group.GET("/api/v1/users/:id", wrapper.GetApiV1UsersId)
	group.GET("/api/v1/medications", wrapper.GetApiV1Medications)
	group.POST("/api/v1/medications", wrapper.PostApiV1Medications)
	group.DELETE("/api/v1/medications/:id", wrapper.DeleteApiV1MedicationsId)
	group.GET("/api/v1/medications/:id", wrapper.GetApiV1MedicationsId)
	group.PUT("/api/v1/medications/:id", wrapper.PutApiV1MedicationsId)
	group.POST("/api/v1/medications/:id/actions", wrapper.PostApiV1MedicationsIdActions)
	group.PUT("/api/v1/medications/:id/inventory", wrapper.PutApiV1MedicationsIdInventory)
	group.POST("/api/v1/medications/:id/inventory/refill", wrapper.PostApiV1MedicationsIdInventoryRefill)
	group.GET("/api/v1/medications/:id/logs", wrapper.GetApiV1MedicationsIdLogs)
	group.GET("/api/v1/medications/:id/status", wrapper.GetApiV1MedicationsIdStatus)
	group.GET("/api/v1/adherence", wrapper.GetApiV1Adherence)
	group.POST("/api/v1/reports", wrapper.PostApiV1Reports)
	group.GET("/api/v1/reports/:id", wrapper.GetApiV1ReportsId)
	group.GET("/api/v1/notifications/preferences", wrapper.GetApiV1NotificationsPreferences)
	group.PUT("/api/v1/notifications/preferences", wrapper.PutApiV1NotificationsPreferences)
}
