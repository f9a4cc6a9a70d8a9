// Package inventory applies consumption and refills to a medication's stock
// record and raises edge-triggered low-stock events.
package inventory

import (
	"math"
	"time"

	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// ConsumeResult is the outcome of consuming stock
type ConsumeResult struct {
	Tracked          bool    `json:"tracked"`
	PreviousQuantity float64 `json:"previous_quantity"`
	NewQuantity      float64 `json:"new_quantity"`
	Consumed         float64 `json:"consumed"`
	CrossedThreshold bool    `json:"crossed_threshold"`
	Depleted         bool    `json:"depleted"`
}

// RefillResult is the outcome of a refill
type RefillResult struct {
	PreviousQuantity float64 `json:"previous_quantity"`
	NewQuantity      float64 `json:"new_quantity"`
}

// Consume subtracts amount from record, flooring at zero. A nil record means
// inventory is not tracked and nothing changes. The threshold alert fires
// once when the quantity moves from above the refill threshold to at or
// below it, and stays latched until the next refill.
func Consume(record *model.InventoryRecord, amount float64, now time.Time) (ConsumeResult, error) {
	if record == nil {
		return ConsumeResult{}, nil
	}
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ConsumeResult{}, apperr.Validation("quantity", "must be a positive number")
	}

	res := ConsumeResult{
		Tracked:          true,
		PreviousQuantity: record.CurrentQuantity,
	}
	res.NewQuantity = math.Max(0, record.CurrentQuantity-amount)
	res.Consumed = res.PreviousQuantity - res.NewQuantity
	res.Depleted = res.NewQuantity == 0

	if !record.ThresholdAlertSent && record.RefillThreshold > 0 &&
		res.PreviousQuantity > record.RefillThreshold && res.NewQuantity <= record.RefillThreshold {
		res.CrossedThreshold = true
		record.ThresholdAlertSent = true
	}

	record.CurrentQuantity = res.NewQuantity
	record.UpdatedAt = now
	return res, nil
}

// Refill adds amount to record and re-arms the threshold alert
func Refill(record *model.InventoryRecord, amount float64, now time.Time) (RefillResult, error) {
	if record == nil {
		return RefillResult{}, apperr.Domain(apperr.CodeNoInventory, "medication has no inventory record")
	}
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return RefillResult{}, apperr.Validation("amount", "refill amount must be positive")
	}

	res := RefillResult{PreviousQuantity: record.CurrentQuantity}
	record.CurrentQuantity += amount
	record.ThresholdAlertSent = false
	refilledAt := now
	record.LastRefillAt = &refilledAt
	record.UpdatedAt = now
	res.NewQuantity = record.CurrentQuantity
	return res, nil
}

// Validate checks a record before it is stored
func Validate(record *model.InventoryRecord) error {
	switch {
	case record.CurrentQuantity < 0 || math.IsNaN(record.CurrentQuantity):
		return apperr.Validation("current_quantity", "must not be negative")
	case record.DoseAmount < 0 || math.IsNaN(record.DoseAmount):
		return apperr.Validation("dose_amount", "must not be negative")
	case record.RefillThreshold < 0 || math.IsNaN(record.RefillThreshold):
		return apperr.Validation("refill_threshold", "must not be negative")
	}
	return nil
}

// DoseAmount returns the units consumed by one dose, defaulting to one
func DoseAmount(record *model.InventoryRecord) float64 {
	if record == nil || record.DoseAmount <= 0 {
		return 1
	}
	return record.DoseAmount
}

// DaysOfSupply estimates how many days the current stock lasts at
// dosesPerDay. It returns -1 when consumption is zero.
func DaysOfSupply(record *model.InventoryRecord, dosesPerDay float64) float64 {
	if record == nil || dosesPerDay <= 0 {
		return -1
	}
	perDay := DoseAmount(record) * dosesPerDay
	return record.CurrentQuantity / perDay
}
