package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"

	"paygate_backend/internal/logger"
	"paygate_backend/internal/models"

	"gopkg.in/gomail.v2"
)

// Mailer delivers purchase receipts.
type Mailer interface {
	SendReceipt(ctx context.Context, to string, record models.PurchaseRecord) error
}

// SMTPMailer sends receipts through an SMTP relay.
type SMTPMailer struct {
	config Config
	sender gomail.Sender
}

func NewSMTPMailer(config Config) (*SMTPMailer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid email config: %w", err)
	}

	d := gomail.NewDialer(config.SMTPHost, config.SMTPPort, config.Username, config.Password)
	if config.UseTLS {
		d.SSL = true
		d.TLSConfig = &tls.Config{ServerName: config.SMTPHost}
	}

	return &SMTPMailer{config: config, sender: dialSender{d}}, nil
}

// NewMailerWithSender is used by tests to capture messages.
func NewMailerWithSender(config Config, sender gomail.Sender) *SMTPMailer {
	return &SMTPMailer{config: config, sender: sender}
}

func (m *SMTPMailer) SendReceipt(ctx context.Context, to string, record models.PurchaseRecord) error {
	var body bytes.Buffer
	if err := receiptTemplate.Execute(&body, newReceiptView(to, record)); err != nil {
		return fmt.Errorf("failed to render receipt: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.config.FromEmail, m.config.FromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", receiptSubject(record))
	msg.SetBody("text/html", body.String())

	if err := gomail.Send(m.sender, msg); err != nil {
		return fmt.Errorf("failed to send receipt: %w", err)
	}

	logger.CtxInfo(ctx, "Receipt sent", "to", to, "status", string(record.Status))
	return nil
}

// dialSender opens one SMTP connection per message.
type dialSender struct {
	d *gomail.Dialer
}

func (s dialSender) Send(from string, to []string, msg io.WriterTo) error {
	closer, err := s.d.Dial()
	if err != nil {
		return err
	}
	defer closer.Close()
	return closer.Send(from, to, msg)
}

// NoopMailer is used when email is disabled.
type NoopMailer struct{}

func (NoopMailer) SendReceipt(ctx context.Context, to string, record models.PurchaseRecord) error {
	logger.CtxDebug(ctx, "Receipt email disabled, skipping", "to", to)
	return nil
}
