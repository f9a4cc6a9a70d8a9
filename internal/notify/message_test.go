package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Blackades/med-alert-hub-sub000/internal/inventory"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

func TestRenderReminder(t *testing.T) {
	instructions := "Do not crush"
	med := &model.Medication{ID: "med-1", Name: "Metformin", Dosage: "500mg", WithFood: true, Instructions: &instructions}
	at := time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC)

	t.Run("due", func(t *testing.T) {
		msg, err := RenderReminder(med, model.DoseStatusDue, at)

		require.NoError(t, err)
		assert.Equal(t, KindReminder, msg.Kind)
		assert.Equal(t, "Time to take Metformin", msg.Subject)
		assert.Contains(t, msg.Body, "It's time to take Metformin (08:00).")
		assert.Contains(t, msg.Body, "Dose: 500mg")
		assert.Contains(t, msg.Body, "Take with food.")
		assert.Contains(t, msg.Body, "Instructions: Do not crush")
		assert.Equal(t, "due", msg.Urgency)
		require.NotNil(t, msg.ScheduledAt)
		assert.True(t, msg.ScheduledAt.Equal(at))
	})

	t.Run("overdue", func(t *testing.T) {
		msg, err := RenderReminder(&model.Medication{ID: "med-2", Name: "Aspirin", Dosage: "81mg"}, model.DoseStatusOverdue, at)

		require.NoError(t, err)
		assert.Equal(t, KindOverdue, msg.Kind)
		assert.Equal(t, "Overdue: Aspirin", msg.Subject)
		assert.Contains(t, msg.Body, "scheduled for 08:00 is overdue")
		assert.NotContains(t, msg.Body, "Take with food")
		assert.NotContains(t, msg.Body, "Instructions")
	})
}

func TestRenderInventoryAlert(t *testing.T) {
	med := &model.Medication{ID: "med-1", Name: "Metformin", Dosage: "500mg"}
	record := &model.InventoryRecord{Unit: "tablets"}

	t.Run("low stock", func(t *testing.T) {
		msg, err := RenderInventoryAlert(med, record, inventory.ConsumeResult{NewQuantity: 4, CrossedThreshold: true}, 2)

		require.NoError(t, err)
		assert.Equal(t, KindLowStock, msg.Kind)
		assert.Equal(t, "Metformin is running low", msg.Subject)
		assert.Contains(t, msg.Body, "4 tablets left")
		assert.Contains(t, msg.Body, "about 2.0 days of supply")
	})

	t.Run("depleted with unknown supply", func(t *testing.T) {
		msg, err := RenderInventoryAlert(med, nil, inventory.ConsumeResult{NewQuantity: 0, Depleted: true}, -1)

		require.NoError(t, err)
		assert.Equal(t, KindDepleted, msg.Kind)
		assert.Contains(t, msg.Body, "You have run out of Metformin.")
		assert.NotContains(t, msg.Body, "days of supply")
	})
}
