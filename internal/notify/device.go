package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DevicePayload is the JSON document sent to buzzer/LED devices
type DevicePayload struct {
	Kind         Kind       `json:"kind"`
	MedicationID string     `json:"medication_id"`
	Medication   string     `json:"medication"`
	Dosage       string     `json:"dosage"`
	Message      string     `json:"message"`
	Urgency      string     `json:"urgency"`
	Buzzer       bool       `json:"buzzer"`
	LED          string     `json:"led"`
	DurationSec  int        `json:"duration_sec"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
}

// NewDevicePayload maps a message to device signalling: overdue doses and
// depleted stock sound the buzzer longer and light the red LED.
func NewDevicePayload(msg Message) DevicePayload {
	p := DevicePayload{
		Kind:         msg.Kind,
		MedicationID: msg.MedicationID,
		Medication:   msg.MedicationName,
		Dosage:       msg.Dosage,
		Message:      msg.Subject,
		Urgency:      msg.Urgency,
		Buzzer:       true,
		LED:          "green",
		DurationSec:  5,
		ScheduledAt:  msg.ScheduledAt,
	}
	switch msg.Kind {
	case KindOverdue, KindDepleted:
		p.LED = "red"
		p.DurationSec = 15
	case KindLowStock:
		p.LED = "yellow"
		p.Buzzer = false
	}
	return p
}

// DeviceHTTPSender posts reminders to ESP32 devices over HTTP
type DeviceHTTPSender struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewDeviceHTTPSender creates a DeviceHTTPSender
func NewDeviceHTTPSender(timeout time.Duration, logger *zap.Logger) *DeviceHTTPSender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DeviceHTTPSender{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Send posts msg to the device endpoint URL in target
func (s *DeviceHTTPSender) Send(ctx context.Context, target string, msg Message) error {
	endpoint, err := url.Parse(strings.TrimSpace(target))
	if err != nil || (endpoint.Scheme != "http" && endpoint.Scheme != "https") || endpoint.Host == "" {
		return Permanent("invalid device url %q", target)
	}

	payload, err := json.Marshal(NewDevicePayload(msg))
	if err != nil {
		return Permanent("failed to encode device payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return Permanent("failed to build device request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("device request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &HTTPError{Service: "device", StatusCode: resp.StatusCode, Body: string(body)}
	}

	s.logger.Debug("Device notified",
		zap.String("host", endpoint.Host),
		zap.String("medication_id", msg.MedicationID))
	return nil
}
