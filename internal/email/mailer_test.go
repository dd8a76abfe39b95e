package email

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"paygate_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type captured struct {
	from string
	to   []string
	raw  string
}

func captureSender(out *[]captured) gomail.SendFunc {
	return func(from string, to []string, msg io.WriterTo) error {
		var buf bytes.Buffer
		if _, err := msg.WriteTo(&buf); err != nil {
			return err
		}
		*out = append(*out, captured{from: from, to: to, raw: buf.String()})
		return nil
	}
}

func TestSMTPMailer_SendReceipt(t *testing.T) {
	var sent []captured
	m := NewMailerWithSender(Config{FromEmail: "shop@example.com", FromName: "Shop"}, captureSender(&sent))

	record := models.PurchaseRecord{
		TransactionID: "1213",
		Timestamp:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Items:         []models.PurchaseItem{models.TextItem("Widget ($10)"), models.PricedItem("Gadget", 5)},
		Amount:        15,
		Status:        models.PurchaseStatusApproved,
		Method:        "Webpay Plus",
	}

	require.NoError(t, m.SendReceipt(context.Background(), "a@x.com", record))
	require.Len(t, sent, 1)

	assert.Equal(t, "shop@example.com", sent[0].from)
	assert.Equal(t, []string{"a@x.com"}, sent[0].to)
	assert.Contains(t, sent[0].raw, "Subject: Your purchase receipt")
	assert.Contains(t, sent[0].raw, "1213")
	assert.Contains(t, sent[0].raw, "Widget ($10)")
	assert.Contains(t, sent[0].raw, "Webpay Plus")
}

func TestSMTPMailer_RejectedSubject(t *testing.T) {
	var sent []captured
	m := NewMailerWithSender(Config{FromEmail: "shop@example.com"}, captureSender(&sent))

	record := models.PurchaseRecord{
		Items:  models.ItemsFromStrings("Widget"),
		Amount: 10,
		Status: models.PurchaseStatusRejected,
	}
	require.NoError(t, m.SendReceipt(context.Background(), "a@x.com", record))
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].raw, "Subject: Your payment was not completed (rejected)")
}

func TestNewSMTPMailer_ValidatesConfig(t *testing.T) {
	_, err := NewSMTPMailer(Config{})
	assert.Error(t, err)

	_, err = NewSMTPMailer(Config{SMTPHost: "smtp.example.com", SMTPPort: 587, FromEmail: "shop@example.com"})
	assert.NoError(t, err)
}

func TestNoopMailer(t *testing.T) {
	assert.NoError(t, NoopMailer{}.SendReceipt(context.Background(), "a@x.com", models.PurchaseRecord{}))
}
