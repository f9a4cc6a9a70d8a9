package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime/types"

	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/internal/schedule"
	"github.com/Blackades/med-alert-hub-sub000/pkg/api"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// Helper functions for type conversions between API types and internal models

// stringPtr creates a pointer to a string
func stringPtr(s string) *string {
	return &s
}

// boolPtr creates a pointer to a bool
func boolPtr(b bool) *bool {
	return &b
}

// floatPtr creates a pointer to a float64
func floatPtr(f float64) *float64 {
	return &f
}

// timePtr creates a pointer to a time.Time
func timePtr(t time.Time) *time.Time {
	return &t
}

// uuidToString converts types.UUID to string
func uuidToString(u types.UUID) string {
	return uuid.UUID(u).String()
}

// stringToUUID converts string to types.UUID pointer
func stringToUUID(s string) *types.UUID {
	u, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	apiUUID := types.UUID(u)
	return &apiUUID
}

// dateToTime converts types.Date to time.Time
func dateToTime(d types.Date) time.Time {
	return d.Time
}

// datePtrToTime converts *types.Date to *time.Time
func datePtrToTime(d *types.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := dateToTime(*d)
	return &t
}

// timeToDate converts time.Time to types.Date pointer
func timeToDate(t time.Time) *types.Date {
	return &types.Date{Time: t}
}

// timePtrToDate converts *time.Time to *types.Date
func timePtrToDate(t *time.Time) *types.Date {
	if t == nil {
		return nil
	}
	return &types.Date{Time: *t}
}

// derefString safely dereferences a string pointer, returning empty string if nil
func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// defaultFirstDose is used when neither a first-dose time nor fixed times
// say when the day's schedule starts
var defaultFirstDose = model.NewTimeOfDay(8, 0)

// toMedication converts a medication request body to the model
func toMedication(req *api.MedicationRequest) (*model.Medication, error) {
	freq, err := toFrequency(req.Frequency, req.FrequencyLabel)
	if err != nil {
		return nil, err
	}

	med := &model.Medication{
		Name:         req.Name,
		Dosage:       req.Dosage,
		Instructions: req.Instructions,
		Frequency:    freq,
		StartDate:    datePtrToTime(req.StartDate),
		EndDate:      datePtrToTime(req.EndDate),
		Active:       true,
	}
	if req.WithFood != nil {
		med.WithFood = *req.WithFood
	}
	if req.Active != nil {
		med.Active = *req.Active
	}

	switch {
	case req.FirstDoseTime != nil:
		first, err := model.ParseTimeOfDay(*req.FirstDoseTime)
		if err != nil {
			return nil, apperr.Validation("first_dose_time", "%s", err.Error())
		}
		med.FirstDoseTime = first
	case len(freq.FixedTimes) > 0:
		first := freq.FixedTimes[0]
		for _, t := range freq.FixedTimes[1:] {
			if t < first {
				first = t
			}
		}
		med.FirstDoseTime = first
	default:
		med.FirstDoseTime = defaultFirstDose
	}
	return med, nil
}

// toFrequency converts the structured frequency, falling back to the label
func toFrequency(f *api.Frequency, label *string) (model.FrequencySpec, error) {
	if f == nil {
		if label == nil {
			return model.FrequencySpec{}, apperr.Validation("frequency", "frequency or frequency_label is required")
		}
		return schedule.ParseFrequency(*label)
	}

	var spec model.FrequencySpec
	if f.FixedTimes != nil {
		for _, s := range *f.FixedTimes {
			t, err := model.ParseTimeOfDay(s)
			if err != nil {
				return model.FrequencySpec{}, apperr.Validation("frequency.fixed_times", "%s", err.Error())
			}
			spec.FixedTimes = append(spec.FixedTimes, t)
		}
	}
	if f.Interval != nil {
		spec.Interval = &model.IntervalSpec{TimesPerDay: f.Interval.TimesPerDay}
		if f.Interval.HoursPerInterval != nil {
			spec.Interval.HoursPerInterval = *f.Interval.HoursPerInterval
		}
	}
	if f.Periodic != nil {
		spec.Periodic = &model.PeriodicSpec{
			Unit:  model.PeriodUnit(f.Periodic.Unit),
			Count: f.Periodic.Count,
		}
	}
	return spec, nil
}

func fromFrequency(spec model.FrequencySpec) *api.Frequency {
	f := &api.Frequency{}
	if len(spec.FixedTimes) > 0 {
		times := make([]string, len(spec.FixedTimes))
		for i, t := range spec.FixedTimes {
			times[i] = t.String()
		}
		f.FixedTimes = &times
	}
	if spec.Interval != nil {
		f.Interval = &api.IntervalFrequency{TimesPerDay: spec.Interval.TimesPerDay}
		if spec.Interval.HoursPerInterval > 0 {
			f.Interval.HoursPerInterval = floatPtr(spec.Interval.HoursPerInterval)
		}
	}
	if spec.Periodic != nil {
		f.Periodic = &api.PeriodicFrequency{
			Unit:  api.PeriodicFrequencyUnit(spec.Periodic.Unit),
			Count: spec.Periodic.Count,
		}
	}
	return f
}

// toInventory converts an inventory request body to the model
func toInventory(req *api.InventoryRequest) *model.InventoryRecord {
	inv := &model.InventoryRecord{
		CurrentQuantity: req.CurrentQuantity,
		Unit:            derefString(req.Unit),
	}
	if req.DoseAmount != nil {
		inv.DoseAmount = *req.DoseAmount
	}
	if req.RefillThreshold != nil {
		inv.RefillThreshold = *req.RefillThreshold
	}
	return inv
}

func fromInventory(inv *model.InventoryRecord, daysOfSupply *float64) *api.InventoryResponse {
	if inv == nil {
		return nil
	}
	return &api.InventoryResponse{
		CurrentQuantity:    floatPtr(inv.CurrentQuantity),
		DoseAmount:         floatPtr(inv.DoseAmount),
		RefillThreshold:    floatPtr(inv.RefillThreshold),
		Unit:               stringPtr(inv.Unit),
		ThresholdAlertSent: boolPtr(inv.ThresholdAlertSent),
		LastRefillAt:       inv.LastRefillAt,
		DaysOfSupply:       daysOfSupply,
	}
}

func fromSlots(slots []model.ScheduleSlot) *[]api.ScheduleSlotResponse {
	if slots == nil {
		return nil
	}
	resp := make([]api.ScheduleSlotResponse, 0, len(slots))
	for _, slot := range slots {
		resp = append(resp, api.ScheduleSlotResponse{
			Id:             stringToUUID(slot.ID),
			TimeOfDay:      stringPtr(slot.TimeOfDay.String()),
			State:          stringPtr(string(slot.State)),
			CycleAt:        slot.CycleAt,
			LastTakenAt:    slot.LastTakenAt,
			NextReminderAt: slot.NextReminderAt,
		})
	}
	return &resp
}

// fromMedication converts a medication to its API response
func fromMedication(med *model.Medication) api.MedicationResponse {
	return api.MedicationResponse{
		Id:            stringToUUID(med.ID),
		UserId:        stringToUUID(med.UserID),
		Name:          stringPtr(med.Name),
		Dosage:        stringPtr(med.Dosage),
		Instructions:  med.Instructions,
		Frequency:     fromFrequency(med.Frequency),
		FirstDoseTime: stringPtr(med.FirstDoseTime.String()),
		StartDate:     timePtrToDate(med.StartDate),
		EndDate:       timePtrToDate(med.EndDate),
		WithFood:      boolPtr(med.WithFood),
		Active:        boolPtr(med.Active),
		CreatedAt:     timePtr(med.CreatedAt),
	}
}
