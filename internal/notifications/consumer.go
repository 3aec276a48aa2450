package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/shreesanatan/pujapath-backend/pkg/db/models"
	"github.com/shreesanatan/pujapath-backend/pkg/enums"
	"github.com/shreesanatan/pujapath-backend/pkg/logger"
	"github.com/shreesanatan/pujapath-backend/pkg/outbox"
)

const (
	// After this many deliveries a failing message is dropped, not retried.
	defaultMaxDeliveryAttempts = 5

	providerTimeout = 10 * time.Second
)

type orderLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type confirmationTexter interface {
	SendOrderConfirmation(ctx context.Context, phone string, order *models.Order) error
}

type confirmationMailer interface {
	SendOrderConfirmation(ctx context.Context, toEmail, toName string, order *models.Order) error
	Enabled() bool
}

// Consumer turns order.created events into customer notifications. It only
// trusts the order id from the event and re-reads the row before sending.
type Consumer struct {
	subscription *pubsub.Subscriber
	orders       orderLoader
	users        userLoader
	sms          confirmationTexter
	email        confirmationMailer
	logg         *logger.Logger
	maxAttempts  int
}

// NewConsumer builds the order notification consumer.
func NewConsumer(subscription *pubsub.Subscriber, ordersRepo orderLoader, usersRepo userLoader, sms confirmationTexter, email confirmationMailer, logg *logger.Logger, maxAttempts int) (*Consumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if usersRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if sms == nil {
		return nil, fmt.Errorf("sms sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxDeliveryAttempts
	}
	return &Consumer{
		subscription: subscription,
		orders:       ordersRepo,
		users:        usersRepo,
		sms:          sms,
		email:        email,
		logg:         logg,
		maxAttempts:  maxAttempts,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		attempt := 1
		if msg.DeliveryAttempt != nil {
			attempt = *msg.DeliveryAttempt
		}
		if c.process(ctx, msg.Attributes["event_type"], msg.Data, attempt) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked.
func (c *Consumer) process(ctx context.Context, eventType string, data []byte, attempt int) bool {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_type": eventType,
		"attempt":    attempt,
	})

	if eventType != string(enums.EventOrderCreated) {
		c.logg.Info(logCtx, "skipping non-order event")
		return true
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}

	var payload orderCreatedPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return true
	}
	if payload.OrderID == uuid.Nil {
		c.logg.Error(logCtx, "order id missing from payload", nil)
		return true
	}
	logCtx = c.logg.WithFields(logCtx, map[string]any{"order_id": payload.OrderID.String()})

	if err := c.notify(ctx, payload.OrderID, logCtx); err != nil {
		c.logg.Error(logCtx, "order notification failed", err)
		if attempt >= c.maxAttempts {
			c.logg.Warn(logCtx, "attempt cap reached, dropping notification")
			return true
		}
		return false
	}
	return true
}

func (c *Consumer) notify(ctx context.Context, orderID uuid.UUID, logCtx context.Context) error {
	order, err := c.orders.FindByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	user, err := c.users.FindByID(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	smsCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()
	if err := c.sms.SendOrderConfirmation(smsCtx, "+91"+order.CustomerPhone, order); err != nil {
		return fmt.Errorf("confirmation sms: %w", err)
	}
	c.logg.Info(logCtx, "confirmation sms sent")

	// Placeholder addresses derived from the phone number get no email.
	if c.email == nil || !c.email.Enabled() || !user.HasRealEmail() {
		return nil
	}
	mailCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()
	if err := c.email.SendOrderConfirmation(mailCtx, user.Email, order.CustomerName, order); err != nil {
		// The customer already has the SMS; a failed email is logged, not retried.
		c.logg.Error(logCtx, "confirmation email failed", err)
		return nil
	}
	c.logg.Info(logCtx, "confirmation email sent")
	return nil
}

type orderCreatedPayload struct {
	OrderID uuid.UUID `json:"order_id"`
	UserID  uuid.UUID `json:"user_id"`
}
