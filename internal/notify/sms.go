package notify

import (
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

// SMSConfig holds Twilio credentials
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	Timeout    time.Duration
}

// SMSSender delivers messages as SMS through the Twilio REST API
type SMSSender struct {
	cfg        SMSConfig
	httpClient *http.Client
	logger     *zap.Logger
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// NewSMSSender creates an SMSSender
func NewSMSSender(cfg SMSConfig, logger *zap.Logger) (*SMSSender, error) {
	cfg.AccountSID = strings.TrimSpace(cfg.AccountSID)
	cfg.AuthToken = strings.TrimSpace(cfg.AuthToken)
	cfg.From = strings.TrimSpace(cfg.From)
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("twilio account sid and auth token are required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("twilio sender number is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com/2010-04-01"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &SMSSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// Send texts msg to the phone number in target
func (s *SMSSender) Send(ctx context.Context, target string, msg Message) error {
	to := strings.TrimSpace(target)
	if to == "" {
		return Permanent("sms target is empty")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.cfg.From)
	form.Set("Body", smsBody(msg))

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.cfg.BaseURL, s.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Permanent("failed to build twilio request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read twilio response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := string(raw)
		var te twilioError
		if json.Unmarshal(raw, &te) == nil && te.Message != "" {
			body = fmt.Sprintf("%s (code=%d)", te.Message, te.Code)
		}
		return &HTTPError{Service: "twilio", StatusCode: resp.StatusCode, Body: body}
	}

	s.logger.Debug("SMS sent", zap.String("medication_id", msg.MedicationID))
	return nil
}

// smsBody falls back to the subject and truncates to Twilio's 1600 character limit
func smsBody(msg Message) string {
	body := strings.TrimSpace(msg.Body)
	if body == "" {
		body = msg.Subject
	}
	if len(body) > 1600 {
		body = body[:1597] + "..."
	}
	return body
}
