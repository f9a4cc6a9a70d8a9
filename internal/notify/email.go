package notify

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// MailClient is the part of the SendGrid client the email sender uses
type MailClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// EmailSender delivers messages through SendGrid
type EmailSender struct {
	client   MailClient
	fromName string
	fromAddr string
	logger   *zap.Logger
}

// NewEmailSender creates an EmailSender backed by a SendGrid API key
func NewEmailSender(apiKey, fromName, fromAddr string, logger *zap.Logger) *EmailSender {
	return NewEmailSenderWithClient(sendgrid.NewSendClient(apiKey), fromName, fromAddr, logger)
}

// NewEmailSenderWithClient creates an EmailSender around an existing client
func NewEmailSenderWithClient(client MailClient, fromName, fromAddr string, logger *zap.Logger) *EmailSender {
	return &EmailSender{
		client:   client,
		fromName: fromName,
		fromAddr: fromAddr,
		logger:   logger,
	}
}

// Send emails msg to target
func (s *EmailSender) Send(ctx context.Context, target string, msg Message) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(target))
	if err != nil {
		return Permanent("invalid email address: %v", err)
	}

	message := buildMail(s.fromName, s.fromAddr, addr.Address, msg)
	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("while sending mail through SendGrid: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Service: "sendgrid", StatusCode: resp.StatusCode, Body: resp.Body}
	}

	s.logger.Debug("Email sent",
		zap.String("medication_id", msg.MedicationID),
		zap.String("kind", string(msg.Kind)))
	return nil
}

func buildMail(fromName, fromAddr, to string, msg Message) *sgmail.SGMailV3 {
	message := sgmail.NewV3Mail()
	message.From = sgmail.NewEmail(fromName, fromAddr)
	message.Subject = msg.Subject

	personalization := sgmail.NewPersonalization()
	personalization.To = append(personalization.To, sgmail.NewEmail("", to))
	message.Personalizations = append(message.Personalizations, personalization)

	message.Content = append(message.Content, sgmail.NewContent("text/plain", msg.Body))
	return message
}
