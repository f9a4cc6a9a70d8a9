// Package api holds the HTTP contract of the medication reminder service:
// request and response bodies, query parameters, the route table and the
// embedded OpenAPI document requests are validated against.
package api

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

// ErrorResponse defines model for ErrorResponse.
type ErrorResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details,omitempty"`
}

// CreateUserRequest defines model for CreateUserRequest.
type CreateUserRequest struct {
	Name     string              `json:"name"`
	Email    openapi_types.Email `json:"email"`
	Timezone *string             `json:"timezone,omitempty"`
}

// UserResponse defines model for UserResponse.
type UserResponse struct {
	Id        *openapi_types.UUID  `json:"id,omitempty"`
	Name      *string              `json:"name,omitempty"`
	Email     *openapi_types.Email `json:"email,omitempty"`
	Timezone  *string              `json:"timezone,omitempty"`
	CreatedAt *time.Time           `json:"created_at,omitempty"`
}

// PeriodicFrequencyUnit defines model for PeriodicFrequency.Unit.
type PeriodicFrequencyUnit string

// Defines values for PeriodicFrequencyUnit.
const (
	Day   PeriodicFrequencyUnit = "day"
	Week  PeriodicFrequencyUnit = "week"
	Month PeriodicFrequencyUnit = "month"
)

// IntervalFrequency defines model for IntervalFrequency.
type IntervalFrequency struct {
	TimesPerDay      int      `json:"times_per_day"`
	HoursPerInterval *float64 `json:"hours_per_interval,omitempty"`
}

// PeriodicFrequency defines model for PeriodicFrequency.
type PeriodicFrequency struct {
	Unit  PeriodicFrequencyUnit `json:"unit"`
	Count int                   `json:"count"`
}

// Frequency defines model for Frequency. Exactly one member is set.
type Frequency struct {
	FixedTimes *[]string          `json:"fixed_times,omitempty"`
	Interval   *IntervalFrequency `json:"interval,omitempty"`
	Periodic   *PeriodicFrequency `json:"periodic,omitempty"`
}

// InventoryRequest defines model for InventoryRequest.
type InventoryRequest struct {
	CurrentQuantity float64  `json:"current_quantity"`
	DoseAmount      *float64 `json:"dose_amount,omitempty"`
	RefillThreshold *float64 `json:"refill_threshold,omitempty"`
	Unit            *string  `json:"unit,omitempty"`
}

// RefillRequest defines model for RefillRequest.
type RefillRequest struct {
	Amount float64 `json:"amount"`
}

// MedicationRequest defines model for MedicationRequest. It is the body of
// both create and full update.
type MedicationRequest struct {
	Name         string  `json:"name"`
	Dosage       string  `json:"dosage"`
	Instructions *string `json:"instructions,omitempty"`
	// Frequency wins over FrequencyLabel when both are sent.
	Frequency      *Frequency          `json:"frequency,omitempty"`
	FrequencyLabel *string             `json:"frequency_label,omitempty"`
	FirstDoseTime  *string             `json:"first_dose_time,omitempty"`
	StartDate      *openapi_types.Date `json:"start_date,omitempty"`
	EndDate        *openapi_types.Date `json:"end_date,omitempty"`
	WithFood       *bool               `json:"with_food,omitempty"`
	Active         *bool               `json:"active,omitempty"`
}

// CreateMedicationRequest defines model for CreateMedicationRequest.
type CreateMedicationRequest struct {
	UserId openapi_types.UUID `json:"user_id"`
	MedicationRequest
	Inventory *InventoryRequest `json:"inventory,omitempty"`
}

// UpdateMedicationRequest defines model for UpdateMedicationRequest.
type UpdateMedicationRequest = MedicationRequest

// ScheduleSlotResponse defines model for ScheduleSlotResponse.
type ScheduleSlotResponse struct {
	Id             *openapi_types.UUID `json:"id,omitempty"`
	TimeOfDay      *string             `json:"time_of_day,omitempty"`
	State          *string             `json:"state,omitempty"`
	CycleAt        *time.Time          `json:"cycle_at,omitempty"`
	LastTakenAt    *time.Time          `json:"last_taken_at,omitempty"`
	NextReminderAt *time.Time          `json:"next_reminder_at,omitempty"`
}

// InventoryResponse defines model for InventoryResponse.
type InventoryResponse struct {
	CurrentQuantity    *float64   `json:"current_quantity,omitempty"`
	DoseAmount         *float64   `json:"dose_amount,omitempty"`
	RefillThreshold    *float64   `json:"refill_threshold,omitempty"`
	Unit               *string    `json:"unit,omitempty"`
	ThresholdAlertSent *bool      `json:"threshold_alert_sent,omitempty"`
	LastRefillAt       *time.Time `json:"last_refill_at,omitempty"`
	DaysOfSupply       *float64   `json:"days_of_supply,omitempty"`
}

// MedicationResponse defines model for MedicationResponse.
type MedicationResponse struct {
	Id            *openapi_types.UUID     `json:"id,omitempty"`
	UserId        *openapi_types.UUID     `json:"user_id,omitempty"`
	Name          *string                 `json:"name,omitempty"`
	Dosage        *string                 `json:"dosage,omitempty"`
	Instructions  *string                 `json:"instructions,omitempty"`
	Frequency     *Frequency              `json:"frequency,omitempty"`
	FirstDoseTime *string                 `json:"first_dose_time,omitempty"`
	StartDate     *openapi_types.Date     `json:"start_date,omitempty"`
	EndDate       *openapi_types.Date     `json:"end_date,omitempty"`
	WithFood      *bool                   `json:"with_food,omitempty"`
	Active        *bool                   `json:"active,omitempty"`
	CreatedAt     *time.Time              `json:"created_at,omitempty"`
	Slots         *[]ScheduleSlotResponse `json:"slots,omitempty"`
	Inventory     *InventoryResponse      `json:"inventory,omitempty"`
}

// DoseActionRequestAction defines model for DoseActionRequest.Action.
type DoseActionRequestAction string

// Defines values for DoseActionRequestAction.
const (
	Take  DoseActionRequestAction = "take"
	Miss  DoseActionRequestAction = "miss"
	Skip  DoseActionRequestAction = "skip"
	Delay DoseActionRequestAction = "delay"
)

// DoseActionRequest defines model for DoseActionRequest.
type DoseActionRequest struct {
	Action       DoseActionRequestAction `json:"action"`
	SlotId       *openapi_types.UUID     `json:"slot_id,omitempty"`
	ScheduledAt  *time.Time              `json:"scheduled_at,omitempty"`
	At           *time.Time              `json:"at,omitempty"`
	Quantity     *float64                `json:"quantity,omitempty"`
	Reason       *string                 `json:"reason,omitempty"`
	DelayMinutes *int                    `json:"delay_minutes,omitempty"`
}

// GenerateReportRequest defines model for GenerateReportRequest.
type GenerateReportRequest struct {
	UserId    openapi_types.UUID `json:"user_id"`
	StartDate openapi_types.Date `json:"start_date"`
	EndDate   openapi_types.Date `json:"end_date"`
}

// ReportResponse defines model for ReportResponse.
type ReportResponse struct {
	Id          *openapi_types.UUID `json:"id,omitempty"`
	UserId      *openapi_types.UUID `json:"user_id,omitempty"`
	StartDate   *openapi_types.Date `json:"start_date,omitempty"`
	EndDate     *openapi_types.Date `json:"end_date,omitempty"`
	GeneratedAt *time.Time          `json:"generated_at,omitempty"`
	DownloadUrl *string             `json:"download_url,omitempty"`
}

// NotificationChannel defines model for NotificationChannel.
type NotificationChannel string

// Defines values for NotificationChannel.
const (
	Email     NotificationChannel = "email"
	Sms       NotificationChannel = "sms"
	Esp32Http NotificationChannel = "esp32_http"
	Mqtt      NotificationChannel = "mqtt"
)

// NotificationPreferenceInput defines model for NotificationPreferenceInput.
type NotificationPreferenceInput struct {
	Channel NotificationChannel `json:"channel"`
	Target  string              `json:"target"`
	Enabled *bool               `json:"enabled,omitempty"`
}

// SetNotificationPreferencesRequest defines model for SetNotificationPreferencesRequest.
type SetNotificationPreferencesRequest struct {
	UserId      openapi_types.UUID            `json:"user_id"`
	Preferences []NotificationPreferenceInput `json:"preferences"`
}

// NotificationPreferenceResponse defines model for NotificationPreferenceResponse.
type NotificationPreferenceResponse struct {
	Id        *openapi_types.UUID  `json:"id,omitempty"`
	Channel   *NotificationChannel `json:"channel,omitempty"`
	Target    *string              `json:"target,omitempty"`
	Enabled   *bool                `json:"enabled,omitempty"`
	UpdatedAt *time.Time           `json:"updated_at,omitempty"`
}

// GetApiV1MedicationsParams defines parameters for GetApiV1Medications.
type GetApiV1MedicationsParams struct {
	UserId openapi_types.UUID `form:"user_id" json:"user_id"`
}

// GetApiV1MedicationsIdStatusParams defines parameters for GetApiV1MedicationsIdStatus.
type GetApiV1MedicationsIdStatusParams struct {
	At *time.Time `form:"at,omitempty" json:"at,omitempty"`
}

// GetApiV1MedicationsIdLogsParams defines parameters for GetApiV1MedicationsIdLogs.
type GetApiV1MedicationsIdLogsParams struct {
	Days  *int `form:"days,omitempty" json:"days,omitempty"`
	Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
}

// GetApiV1AdherenceParams defines parameters for GetApiV1Adherence.
type GetApiV1AdherenceParams struct {
	UserId       *openapi_types.UUID `form:"user_id,omitempty" json:"user_id,omitempty"`
	MedicationId *openapi_types.UUID `form:"medication_id,omitempty" json:"medication_id,omitempty"`
	Days         *int                `form:"days,omitempty" json:"days,omitempty"`
}

// GetApiV1NotificationsPreferencesParams defines parameters for GetApiV1NotificationsPreferences.
type GetApiV1NotificationsPreferencesParams struct {
	UserId openapi_types.UUID `form:"user_id" json:"user_id"`
}
