package mail

import (
	"fmt"
	"strings"

	gomail "gopkg.in/gomail.v2"

	"github.com/kamishop/kamishop-backend/pkg/config"
	"github.com/kamishop/kamishop-backend/pkg/db/models"
	pkgerrors "github.com/kamishop/kamishop-backend/pkg/errors"
)

// sender abstracts gomail's dialer so tests can capture messages.
type sender interface {
	DialAndSend(...*gomail.Message) error
}

// Mailer delivers purchased card content over SMTP.
type Mailer struct {
	from   string
	sender sender
}

// NewMailer builds an SMTP mailer; missing host yields a disabled mailer.
func NewMailer(cfg config.MailConfig) *Mailer {
	if cfg.SMTPHost == "" {
		return &Mailer{}
	}
	return &Mailer{
		from:   cfg.From,
		sender: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password),
	}
}

// Enabled reports whether SMTP delivery is configured.
func (m *Mailer) Enabled() bool {
	return m != nil && m.sender != nil
}

// SendCardDelivery mails the buyer every card allocated to the order.
func (m *Mailer) SendCardDelivery(order *models.Order, product *models.Product, cards []models.Card) error {
	if !m.Enabled() {
		return nil
	}
	if order == nil || product == nil || len(cards) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order, product and cards are required")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", order.Email)
	msg.SetHeader("Subject", fmt.Sprintf("Your order %s is complete", order.OutTradeNo))
	msg.SetBody("text/plain", deliveryBody(order, product, cards))

	if err := m.sender.DialAndSend(msg); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send card delivery mail")
	}
	return nil
}

func deliveryBody(order *models.Order, product *models.Product, cards []models.Card) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\nYour order %s has been paid.\n\n", order.OutTradeNo)
	fmt.Fprintf(&b, "Product: %s\n", product.Name)
	fmt.Fprintf(&b, "Quantity: %d\n", order.Quantity)
	fmt.Fprintf(&b, "Total: %s\n\n", order.TotalAmount.StringFixed(2))
	if len(cards) == 1 {
		fmt.Fprintf(&b, "Your code:\n%s\n", cards[0].Content)
	} else {
		b.WriteString("Your codes:\n")
		for i, card := range cards {
			fmt.Fprintf(&b, "%d. %s\n", i+1, card.Content)
		}
	}
	b.WriteString("\nThank you for your purchase!\n")
	return b.String()
}
