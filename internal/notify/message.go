// Package notify renders reminder messages and delivers them over email,
// SMS, ESP32 devices reachable by HTTP and MQTT-connected devices.
package notify

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/Blackades/med-alert-hub-sub000/internal/inventory"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// Kind classifies a message
type Kind string

const (
	KindReminder Kind = "reminder"
	KindOverdue  Kind = "overdue"
	KindLowStock Kind = "low_stock"
	KindDepleted Kind = "depleted"
)

// Message is a rendered notification
type Message struct {
	Kind           Kind       `json:"kind"`
	Subject        string     `json:"subject"`
	Body           string     `json:"body"`
	MedicationID   string     `json:"medication_id"`
	MedicationName string     `json:"medication_name"`
	Dosage         string     `json:"dosage"`
	Instructions   string     `json:"instructions,omitempty"`
	WithFood       bool       `json:"with_food"`
	Urgency        string     `json:"urgency"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
}

const reminderText = `
{{- if eq .Status "overdue" -}}
Your {{.Name}} dose scheduled for {{.Time}} is overdue.
{{- else -}}
It's time to take {{.Name}} ({{.Time}}).
{{- end}}
Dose: {{.Dosage}}
{{- if .WithFood}}
Take with food.
{{- end}}
{{- if .Instructions}}
Instructions: {{.Instructions}}
{{- end}}
`

const inventoryText = `
{{- if .Depleted -}}
You have run out of {{.Name}}.
{{- else -}}
{{.Name}} is running low: {{.Quantity}}{{if .Unit}} {{.Unit}}{{end}} left.
{{- end}}
{{- if ge .Days 0.0}}
That is about {{printf "%.1f" .Days}} days of supply.
{{- end}}
Please arrange a refill.
`

var (
	reminderTemplate  = template.Must(template.New("reminder").Parse(reminderText))
	inventoryTemplate = template.Must(template.New("inventory").Parse(inventoryText))
)

// RenderReminder builds the reminder for a dose of med scheduled at
// scheduledAt with the projected status.
func RenderReminder(med *model.Medication, status model.DoseStatus, scheduledAt time.Time) (Message, error) {
	instructions := ""
	if med.Instructions != nil {
		instructions = *med.Instructions
	}

	data := struct {
		Name         string
		Dosage       string
		Instructions string
		WithFood     bool
		Status       string
		Time         string
	}{
		Name:         med.Name,
		Dosage:       med.Dosage,
		Instructions: instructions,
		WithFood:     med.WithFood,
		Status:       string(status),
		Time:         scheduledAt.Format("15:04"),
	}

	body := &bytes.Buffer{}
	if err := reminderTemplate.Execute(body, data); err != nil {
		return Message{}, fmt.Errorf("while templating reminder: %w", err)
	}

	kind := KindReminder
	subject := fmt.Sprintf("Time to take %s", med.Name)
	if status == model.DoseStatusOverdue {
		kind = KindOverdue
		subject = fmt.Sprintf("Overdue: %s", med.Name)
	}

	at := scheduledAt
	return Message{
		Kind:           kind,
		Subject:        subject,
		Body:           body.String(),
		MedicationID:   med.ID,
		MedicationName: med.Name,
		Dosage:         med.Dosage,
		Instructions:   instructions,
		WithFood:       med.WithFood,
		Urgency:        string(status),
		ScheduledAt:    &at,
	}, nil
}

// RenderInventoryAlert builds the low-stock or depletion alert raised by a
// consumption. daysOfSupply is negative when unknown.
func RenderInventoryAlert(med *model.Medication, record *model.InventoryRecord, res inventory.ConsumeResult, daysOfSupply float64) (Message, error) {
	unit := ""
	if record != nil {
		unit = record.Unit
	}
	data := struct {
		Name     string
		Quantity string
		Unit     string
		Depleted bool
		Days     float64
	}{
		Name:     med.Name,
		Quantity: fmt.Sprintf("%g", res.NewQuantity),
		Unit:     unit,
		Depleted: res.Depleted,
		Days:     daysOfSupply,
	}

	body := &bytes.Buffer{}
	if err := inventoryTemplate.Execute(body, data); err != nil {
		return Message{}, fmt.Errorf("while templating inventory alert: %w", err)
	}

	kind := KindLowStock
	subject := fmt.Sprintf("%s is running low", med.Name)
	if res.Depleted {
		kind = KindDepleted
		subject = fmt.Sprintf("%s is out of stock", med.Name)
	}

	return Message{
		Kind:           kind,
		Subject:        subject,
		Body:           body.String(),
		MedicationID:   med.ID,
		MedicationName: med.Name,
		Dosage:         med.Dosage,
		Urgency:        string(kind),
	}, nil
}
