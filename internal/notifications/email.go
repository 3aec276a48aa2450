package notifications

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/shopspring/decimal"

	"github.com/shreesanatan/pujapath-backend/pkg/config"
	"github.com/shreesanatan/pujapath-backend/pkg/db/models"
	"github.com/shreesanatan/pujapath-backend/pkg/enums"
	"github.com/shreesanatan/pujapath-backend/pkg/logger"
)

// mailSender is the SendGrid API slice we call, extracted for tests.
type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailSender delivers HTML order confirmations through SendGrid.
type EmailSender struct {
	client   mailSender
	from     *mail.Email
	adminTo  *mail.Email
	logg     *logger.Logger
	disabled bool
}

// NewEmailSender initializes the SendGrid client from config. A missing API
// key disables email silently; SMS remains the primary channel.
func NewEmailSender(cfg config.SendgridConfig, logg *logger.Logger) *EmailSender {
	sender := &EmailSender{
		from: mail.NewEmail("PujaPath", cfg.DefaultFrom),
		logg: logg,
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		sender.disabled = true
		return sender
	}
	sender.client = sendgrid.NewSendClient(cfg.APIKey)
	if strings.TrimSpace(cfg.AdminEmail) != "" {
		sender.adminTo = mail.NewEmail("PujaPath Orders", cfg.AdminEmail)
	}
	return sender
}

// Enabled reports whether the sender holds an API key.
func (e *EmailSender) Enabled() bool {
	return e != nil && !e.disabled
}

// SendOrderConfirmation emails the order summary to the customer.
func (e *EmailSender) SendOrderConfirmation(ctx context.Context, toEmail, toName string, order *models.Order) error {
	if !e.Enabled() {
		return nil
	}

	subject := fmt.Sprintf("Your PujaPath order %s is %s", shortOrderRef(order), statusPhrase(order))
	plain := fmt.Sprintf("Namaste %s, your order %s for Rs %s is %s.",
		toName, shortOrderRef(order), rupeeAmount(order.TotalPaise), statusPhrase(order))

	message := mail.NewSingleEmail(e.from, subject, mail.NewEmail(toName, toEmail), plain, orderConfirmationHTML(order))
	resp, err := e.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send: status %d", resp.StatusCode)
	}
	if e.logg != nil {
		logCtx := e.logg.WithFields(ctx, map[string]any{"order_id": order.ID.String()})
		e.logg.Info(logCtx, "confirmation email dispatched")
	}
	return nil
}

func orderConfirmationHTML(order *models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Namaste %s!</h2>", html.EscapeString(order.CustomerName))
	fmt.Fprintf(&b, "<p>Your order %s is <strong>%s</strong>.</p>", shortOrderRef(order), statusPhrase(order))
	b.WriteString("<table><tr><th align=\"left\">Item</th><th>Qty</th><th align=\"right\">Price</th></tr>")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "<tr><td>%s</td><td align=\"center\">%d</td><td align=\"right\">₹%s</td></tr>",
			html.EscapeString(item.Name), item.Quantity, html.EscapeString(item.Price))
	}
	b.WriteString("</table>")
	fmt.Fprintf(&b, "<p>Shipping: ₹%s<br>Total: <strong>₹%s</strong></p>",
		rupeeAmount(order.ShippingPaise), rupeeAmount(order.TotalPaise))
	fmt.Fprintf(&b, "<p>Delivery to: %s, %s</p>",
		html.EscapeString(order.ShippingAddress), html.EscapeString(order.Pincode))
	return b.String()
}

func statusPhrase(order *models.Order) string {
	if order.Status == enums.OrderStatusPendingCOD {
		return "placed, payable on delivery"
	}
	return "confirmed"
}

func rupeeAmount(paise int64) string {
	return decimal.New(paise, -2).StringFixed(2)
}
