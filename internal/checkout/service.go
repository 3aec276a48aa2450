package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shreesanatan/pujapath-backend/internal/orders"
	"github.com/shreesanatan/pujapath-backend/internal/payments"
	"github.com/shreesanatan/pujapath-backend/internal/shipping"
	"github.com/shreesanatan/pujapath-backend/pkg/config"
	"github.com/shreesanatan/pujapath-backend/pkg/db"
	"github.com/shreesanatan/pujapath-backend/pkg/db/models"
	"github.com/shreesanatan/pujapath-backend/pkg/enums"
	pkgerrors "github.com/shreesanatan/pujapath-backend/pkg/errors"
	"github.com/shreesanatan/pujapath-backend/pkg/logger"
	"github.com/shreesanatan/pujapath-backend/pkg/metrics"
	"github.com/shreesanatan/pujapath-backend/pkg/outbox"
	"github.com/shreesanatan/pujapath-backend/pkg/razorpay"
)

// Service drives the storefront checkout pipeline.
type Service interface {
	Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error)
	CreatePaymentOrder(ctx context.Context, userID uuid.UUID, req PaymentOrderRequest) (*PaymentOrderResponse, error)
	Complete(ctx context.Context, userID uuid.UUID, req CompleteRequest) (*CompleteResponse, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*orders.OrderDTO, error)
	ListOrders(ctx context.Context, userID uuid.UUID) ([]*orders.OrderDTO, error)
}

type service struct {
	gate     Gate
	gateway  razorpay.OrderAPI
	verifier paymentVerifier
	runner   txRunner
	orders   *orders.Repository
	events   eventEmitter
	metrics  *metrics.StorefrontMetrics
	cfg      config.CheckoutConfig
	logg     *logger.Logger
	now      func() time.Time
}

type paymentVerifier interface {
	Verify(ctx context.Context, payment payments.OnlinePayment, expectedPaise int64) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams bundles the dependencies required to build a checkout service.
type ServiceParams struct {
	Gateway  razorpay.OrderAPI
	Verifier paymentVerifier
	Runner   txRunner
	Orders   *orders.Repository
	Events   eventEmitter
	Metrics  *metrics.StorefrontMetrics
	Config   config.CheckoutConfig
	Logger   *logger.Logger
}

// NewService constructs the checkout service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client is required")
	}
	if params.Verifier == nil {
		return nil, fmt.Errorf("payment verifier is required")
	}
	if params.Runner == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository is required")
	}
	return &service{
		gate:     NewGate(params.Config),
		gateway:  params.Gateway,
		verifier: params.Verifier,
		runner:   params.Runner,
		orders:   params.Orders,
		events:   params.Events,
		metrics:  params.Metrics,
		cfg:      params.Config,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

// Quote prices a cart for a destination without touching the gateway.
func (s *service) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	_, subtotal, err := SanitizeItems(req.Items)
	if err != nil {
		return nil, err
	}

	quote := shipping.Calculate(req.Pincode)
	total := subtotal.Add(quote.Charge)
	return &QuoteResponse{
		Zone:     quote.Zone,
		Subtotal: subtotal.StringFixed(2),
		Shipping: quote.Charge.StringFixed(2),
		Total:    total.StringFixed(2),
	}, nil
}

// CreatePaymentOrder registers a gateway order for browser checkout.
func (s *service) CreatePaymentOrder(ctx context.Context, userID uuid.UUID, req PaymentOrderRequest) (*PaymentOrderResponse, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a decimal rupee value")
	}
	if err := payments.ValidateAmount(amount); err != nil {
		return nil, err
	}

	receipt := payments.SanitizeReceipt(req.Receipt)
	if receipt == "" {
		receipt = fmt.Sprintf("pp_%d", s.now().UnixMilli())
	}

	gatewayCtx := ctx
	if s.cfg.PaymentOrderTimeout > 0 {
		var cancel context.CancelFunc
		gatewayCtx, cancel = context.WithTimeout(ctx, s.cfg.PaymentOrderTimeout)
		defer cancel()
	}

	order, err := s.gateway.CreateOrder(gatewayCtx, payments.ToPaise(amount), "INR", receipt, map[string]any{
		"user_id": userID.String(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create gateway order")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"razorpay_order_id": order.ID,
			"amount_paise":      order.AmountPaise,
		})
		s.logg.Info(logCtx, "gateway order created")
	}

	return &PaymentOrderResponse{
		OrderID:  order.ID,
		Amount:   order.AmountPaise,
		Currency: order.Currency,
		KeyID:    s.gateway.KeyID(),
	}, nil
}

// Complete validates, verifies payment where applicable, and persists exactly
// one order row. A duplicate online delivery returns the already-persisted
// order rather than a second row.
func (s *service) Complete(ctx context.Context, userID uuid.UUID, req CompleteRequest) (*CompleteResponse, error) {
	started := s.now()

	if claimed := strings.TrimSpace(req.UserID); claimed != "" && claimed != userID.String() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "order user does not match session")
	}

	method, err := enums.ParsePaymentMethod(req.Payment.Method)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method must be cod or online")
	}

	items, subtotal, err := s.gate.Validate(req)
	if err != nil {
		s.metrics.IncCheckout(string(method), "rejected")
		return nil, err
	}

	quote := shipping.Calculate(req.Pincode)
	total := subtotal.Add(quote.Charge)
	expectedPaise := payments.ToPaise(total)

	order := &models.Order{
		UserID:          userID,
		CustomerName:    SanitizeName(req.CustomerName),
		CustomerPhone:   strings.TrimSpace(req.Phone),
		ShippingAddress: SanitizeAddress(req.ShippingAddress),
		Pincode:         strings.TrimSpace(req.Pincode),
		ShippingZone:    quote.Zone,
		Items:           items,
		SubtotalPaise:   payments.ToPaise(subtotal),
		ShippingPaise:   payments.ToPaise(quote.Charge),
		TotalPaise:      expectedPaise,
		PaymentMethod:   method,
		Status:          enums.OrderStatusPendingCOD,
	}

	if method == enums.PaymentMethodOnline {
		payment := payments.OnlinePayment{
			OrderID:   req.Payment.OrderID,
			PaymentID: req.Payment.PaymentID,
			Signature: req.Payment.Signature,
		}
		if err := s.verifier.Verify(ctx, payment, expectedPaise); err != nil {
			s.metrics.IncCheckout(string(method), "verification_failed")
			return nil, err
		}
		gatewayOrderID := strings.TrimSpace(req.Payment.OrderID)
		paymentID := strings.TrimSpace(req.Payment.PaymentID)
		order.RazorpayOrderID = &gatewayOrderID
		order.PaymentID = &paymentID
		order.Status = enums.OrderStatusConfirmed
	}

	persisted, inserted, err := s.persistOrder(ctx, order)
	if err != nil {
		s.metrics.IncCheckout(string(method), "persistence_failed")
		return nil, err
	}

	result := "completed"
	if !inserted {
		result = "duplicate"
	}
	s.metrics.IncCheckout(string(method), result)
	s.metrics.ObserveCheckoutDuration(string(method), s.now().Sub(started))

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":       persisted.ID.String(),
			"payment_method": method,
			"total_paise":    persisted.TotalPaise,
			"duplicate":      !inserted,
		})
		s.logg.Info(logCtx, "checkout completed")
	}

	return &CompleteResponse{Order: orders.FromModel(persisted), Duplicate: !inserted}, nil
}

// persistOrder inserts the row and queues the order.created event in one
// transaction. When the unique payment index trips under concurrency, the row
// persisted by the winner is re-read after rollback.
func (s *service) persistOrder(ctx context.Context, order *models.Order) (*models.Order, bool, error) {
	var persisted *models.Order
	inserted := false

	txErr := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		persisted, inserted, err = orders.NewRepository(tx).Create(ctx, order)
		if err != nil {
			return err
		}
		if !inserted || s.events == nil {
			return nil
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   persisted.ID,
			Actor:         &outbox.ActorRef{UserID: persisted.UserID},
			Data: map[string]any{
				"order_id":       persisted.ID.String(),
				"user_id":        persisted.UserID.String(),
				"total_paise":    persisted.TotalPaise,
				"payment_method": persisted.PaymentMethod,
			},
			Version: 1,
		})
	})
	if txErr == nil {
		return persisted, inserted, nil
	}

	if order.PaymentID != nil && db.IsUniqueViolation(txErr, "") {
		existing, findErr := s.orders.FindByPaymentID(ctx, *order.PaymentID)
		if findErr == nil {
			return existing, false, nil
		}
	}
	return nil, false, pkgerrors.Wrap(pkgerrors.CodeOrderPersistence, txErr, "persist order")
}

// GetOrder returns one of the user's orders.
func (s *service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*orders.OrderDTO, error) {
	order, err := s.orders.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if orders.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return orders.FromModel(order), nil
}

// ListOrders returns the user's order history, newest first.
func (s *service) ListOrders(ctx context.Context, userID uuid.UUID) ([]*orders.OrderDTO, error) {
	rows, err := s.orders.ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return orders.FromModels(rows), nil
}
