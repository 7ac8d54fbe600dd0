package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// EmailSettings holds SMTP delivery settings.
type EmailSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

var emailTemplate = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <div style="max-width: 600px; margin: 0 auto; padding: 24px;">
    <h2 style="color: #1d4ed8;">{{.Title}}</h2>
    <p>Hello {{.Name}},</p>
    <p>{{.Body}}</p>
    <hr style="border: none; border-top: 1px solid #e5e7eb;">
    <p style="font-size: 12px; color: #6b7280;">You are receiving this because of activity on an issue you are involved with on {{.Sender}}.</p>
  </div>
</body>
</html>`))

// EmailSender delivers notifications over SMTP.
type EmailSender struct {
	settings EmailSettings
	logger   *zap.Logger
}

// NewEmailSender creates an SMTP sender.
func NewEmailSender(settings EmailSettings, logger *zap.Logger) *EmailSender {
	if settings.From == "" {
		settings.From = settings.Username
	}
	return &EmailSender{settings: settings, logger: logger.Named("EmailSender")}
}

func (s *EmailSender) Channel() string { return ChannelEmail }

// RenderEmailBody produces the HTML body for a notification email.
func RenderEmailBody(senderName string, msg Message) (string, error) {
	name := msg.RecipientName
	if name == "" {
		name = "there"
	}
	var buf bytes.Buffer
	err := emailTemplate.Execute(&buf, struct {
		Title, Name, Body, Sender string
	}{msg.Title, name, msg.Body, senderName})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Send delivers msg to the address in to. A fresh SMTP client is used per message.
func (s *EmailSender) Send(ctx context.Context, to string, msg Message) error {
	m := mail.NewMsg()
	if err := m.FromFormat(s.settings.FromName, s.settings.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Title)

	html, err := RenderEmailBody(s.settings.FromName, msg)
	if err != nil {
		return fmt.Errorf("failed to render email: %w", err)
	}
	m.SetBodyString(mail.TypeTextHTML, html)
	m.AddAlternativeString(mail.TypeTextPlain, msg.Title+"\n\n"+msg.Body)

	client, err := mail.NewClient(s.settings.Host,
		mail.WithPort(s.settings.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.settings.Username),
		mail.WithPassword(s.settings.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	s.logger.Debug("Email sent", zap.String("to", to), zap.String("title", msg.Title))
	return nil
}
