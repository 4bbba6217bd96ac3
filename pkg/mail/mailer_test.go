package mail

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	gomail "gopkg.in/gomail.v2"

	"github.com/kamishop/kamishop-backend/pkg/config"
	"github.com/kamishop/kamishop-backend/pkg/db/models"
)

type captureSender struct {
	messages []*gomail.Message
}

func (c *captureSender) DialAndSend(msgs ...*gomail.Message) error {
	c.messages = append(c.messages, msgs...)
	return nil
}

func TestSendCardDelivery(t *testing.T) {
	capture := &captureSender{}
	mailer := &Mailer{from: "shop@example.com", sender: capture}

	order := &models.Order{
		ID:          uuid.New(),
		Email:       "buyer@example.com",
		Quantity:    2,
		TotalAmount: decimal.RequireFromString("16.00"),
		OutTradeNo:  "ORDER_1700000000_ABCD1234",
	}
	product := &models.Product{Name: "Gift Card 10"}
	cards := []models.Card{
		{Content: "CODE-AAAA"},
		{Content: "CODE-BBBB"},
	}

	if err := mailer.SendCardDelivery(order, product, cards); err != nil {
		t.Fatalf("SendCardDelivery: %v", err)
	}
	if len(capture.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(capture.messages))
	}

	var body strings.Builder
	if _, err := capture.messages[0].WriteTo(&body); err != nil {
		t.Fatalf("render message: %v", err)
	}
	rendered := body.String()
	for _, want := range []string{"Gift Card 10", "16.00", "CODE-AAAA", "CODE-BBBB"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestSendCardDeliveryDisabled(t *testing.T) {
	mailer := NewMailer(config.MailConfig{})
	if mailer.Enabled() {
		t.Fatal("mailer without SMTP host should be disabled")
	}
	if err := mailer.SendCardDelivery(nil, nil, nil); err != nil {
		t.Fatalf("disabled mailer should no-op, got %v", err)
	}
}
