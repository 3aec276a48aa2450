package checkout

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shreesanatan/pujapath-backend/internal/orders"
	"github.com/shreesanatan/pujapath-backend/internal/payments"
	"github.com/shreesanatan/pujapath-backend/pkg/config"
	"github.com/shreesanatan/pujapath-backend/pkg/db"
	"github.com/shreesanatan/pujapath-backend/pkg/db/models"
	"github.com/shreesanatan/pujapath-backend/pkg/enums"
	pkgerrors "github.com/shreesanatan/pujapath-backend/pkg/errors"
	"github.com/shreesanatan/pujapath-backend/pkg/outbox"
	"github.com/shreesanatan/pujapath-backend/pkg/razorpay"
)

const testKeySecret = "test_key_secret"

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  customer_name TEXT NOT NULL,
  customer_phone TEXT NOT NULL,
  shipping_address TEXT NOT NULL,
  pincode TEXT NOT NULL,
  shipping_zone TEXT NOT NULL DEFAULT 'unknown',
  items TEXT NOT NULL,
  subtotal_paise INTEGER NOT NULL,
  shipping_paise INTEGER NOT NULL DEFAULT 0,
  total_paise INTEGER NOT NULL,
  payment_method TEXT NOT NULL,
  razorpay_order_id TEXT,
  payment_id TEXT UNIQUE,
  status TEXT NOT NULL DEFAULT 'pending_cod',
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, conn.Exec(schema).Error)
	return conn
}

type fakeGateway struct {
	fetchOrder *razorpay.GatewayOrder
	created    []createdOrder
	fetched    []string
}

type createdOrder struct {
	amountPaise int64
	currency    string
	receipt     string
	notes       map[string]any
}

func (f *fakeGateway) CreateOrder(_ context.Context, amountPaise int64, currency, receipt string, notes map[string]any) (*razorpay.GatewayOrder, error) {
	f.created = append(f.created, createdOrder{amountPaise: amountPaise, currency: currency, receipt: receipt, notes: notes})
	return &razorpay.GatewayOrder{ID: "order_new", AmountPaise: amountPaise, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

func (f *fakeGateway) FetchOrder(_ context.Context, orderID string) (*razorpay.GatewayOrder, error) {
	f.fetched = append(f.fetched, orderID)
	return f.fetchOrder, nil
}

func (f *fakeGateway) KeyID() string { return "rzp_test_key" }

func (f *fakeGateway) KeySecret() string { return testKeySecret }

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (r *recordingEmitter) Emit(_ context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if tx == nil {
		return fmt.Errorf("emit outside transaction")
	}
	r.events = append(r.events, event)
	return nil
}

func signPayment(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testKeySecret))
	fmt.Fprintf(mac, "%s|%s", orderID, paymentID)
	return hex.EncodeToString(mac.Sum(nil))
}

func newCheckoutTestService(t *testing.T, conn *gorm.DB, gateway *fakeGateway) (Service, *recordingEmitter) {
	t.Helper()

	verifier, err := payments.NewVerifier(gateway, nil)
	require.NoError(t, err)

	emitter := &recordingEmitter{}
	svc, err := NewService(ServiceParams{
		Gateway:  gateway,
		Verifier: verifier,
		Runner:   db.NewFromConn(conn),
		Orders:   orders.NewRepository(conn),
		Events:   emitter,
		Config:   config.CheckoutConfig{MinOrderValue: 399},
	})
	require.NoError(t, err)
	return svc, emitter
}

func validRequest(payment PaymentInput) CompleteRequest {
	return CompleteRequest{
		Payment:         payment,
		CustomerName:    "Asha Rao",
		Phone:           "9876543210",
		ShippingAddress: "12 Temple Street, Varanasi",
		Pincode:         "221001",
		Items: []ItemInput{
			{ID: "rudraksha-mala", Name: "Rudraksha Mala", Price: "449.00", Quantity: 1},
		},
	}
}

func TestCompleteCODOrder(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	gateway := &fakeGateway{}
	svc, emitter := newCheckoutTestService(t, conn, gateway)
	userID := uuid.New()

	resp, err := svc.Complete(context.Background(), userID, validRequest(PaymentInput{Method: "cod"}))
	require.NoError(t, err)

	assert.False(t, resp.Duplicate)
	assert.Equal(t, enums.OrderStatusPendingCOD, resp.Order.Status)
	assert.Equal(t, enums.PaymentMethodCOD, resp.Order.PaymentMethod)
	assert.Equal(t, enums.ShippingZoneLocal, resp.Order.ShippingZone)
	assert.Equal(t, "449.00", resp.Order.Subtotal)
	assert.Equal(t, "30.00", resp.Order.Shipping)
	assert.Equal(t, "479.00", resp.Order.Total)
	assert.Nil(t, resp.Order.PaymentID)

	// COD never touches the gateway.
	assert.Empty(t, gateway.fetched)

	require.Len(t, emitter.events, 1)
	assert.Equal(t, enums.EventOrderCreated, emitter.events[0].EventType)
	assert.Equal(t, enums.AggregateOrder, emitter.events[0].AggregateType)
	assert.Equal(t, resp.Order.ID, emitter.events[0].AggregateID)
}

func TestCompleteOnlineOrder(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	gateway := &fakeGateway{fetchOrder: &razorpay.GatewayOrder{ID: "order_abc", AmountPaise: 47900, Status: "paid"}}
	svc, emitter := newCheckoutTestService(t, conn, gateway)

	payment := PaymentInput{
		Method:    "online",
		OrderID:   "order_abc",
		PaymentID: "pay_xyz",
		Signature: signPayment("order_abc", "pay_xyz"),
	}
	resp, err := svc.Complete(context.Background(), uuid.New(), validRequest(payment))
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusConfirmed, resp.Order.Status)
	require.NotNil(t, resp.Order.PaymentID)
	assert.Equal(t, "pay_xyz", *resp.Order.PaymentID)
	require.NotNil(t, resp.Order.RazorpayOrderID)
	assert.Equal(t, "order_abc", *resp.Order.RazorpayOrderID)
	assert.Len(t, emitter.events, 1)
}

func TestCompleteOnlineTamperedSignature(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	gateway := &fakeGateway{fetchOrder: &razorpay.GatewayOrder{ID: "order_abc", AmountPaise: 47900}}
	svc, emitter := newCheckoutTestService(t, conn, gateway)

	payment := PaymentInput{
		Method:    "online",
		OrderID:   "order_abc",
		PaymentID: "pay_xyz",
		Signature: signPayment("order_abc", "pay_forged"),
	}
	_, err := svc.Complete(context.Background(), uuid.New(), validRequest(payment))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodePaymentVerification, typed.Code())

	var count int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, emitter.events)
}

func TestCompleteOnlineAmountMismatch(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	// Gateway order registered for a different amount than the cart totals to.
	gateway := &fakeGateway{fetchOrder: &razorpay.GatewayOrder{ID: "order_abc", AmountPaise: 100}}
	svc, _ := newCheckoutTestService(t, conn, gateway)

	payment := PaymentInput{
		Method:    "online",
		OrderID:   "order_abc",
		PaymentID: "pay_xyz",
		Signature: signPayment("order_abc", "pay_xyz"),
	}
	_, err := svc.Complete(context.Background(), uuid.New(), validRequest(payment))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeAmountMismatch, typed.Code())

	var count int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCompleteDuplicatePaymentDelivery(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	gateway := &fakeGateway{fetchOrder: &razorpay.GatewayOrder{ID: "order_abc", AmountPaise: 47900}}
	svc, emitter := newCheckoutTestService(t, conn, gateway)
	userID := uuid.New()

	payment := PaymentInput{
		Method:    "online",
		OrderID:   "order_abc",
		PaymentID: "pay_xyz",
		Signature: signPayment("order_abc", "pay_xyz"),
	}

	first, err := svc.Complete(context.Background(), userID, validRequest(payment))
	require.NoError(t, err)
	second, err := svc.Complete(context.Background(), userID, validRequest(payment))
	require.NoError(t, err)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Order.ID, second.Order.ID)

	var count int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	// Only the insert that created the row queued a notification.
	assert.Len(t, emitter.events, 1)
}

func TestCompleteBelowMinimum(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	svc, _ := newCheckoutTestService(t, conn, &fakeGateway{})

	req := validRequest(PaymentInput{Method: "cod"})
	req.Items = []ItemInput{{Name: "Agarbatti", Price: "99.00", Quantity: 1}}

	_, err := svc.Complete(context.Background(), uuid.New(), req)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "300", details["shortfall"])
}

func TestCompleteUserMismatch(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	svc, _ := newCheckoutTestService(t, conn, &fakeGateway{})

	req := validRequest(PaymentInput{Method: "cod"})
	req.UserID = uuid.NewString()

	_, err := svc.Complete(context.Background(), uuid.New(), req)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
}

func TestCompleteInvalidGateInputs(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	svc, _ := newCheckoutTestService(t, conn, &fakeGateway{})
	ctx := context.Background()

	badPhone := validRequest(PaymentInput{Method: "cod"})
	badPhone.Phone = "1234567890"
	_, err := svc.Complete(ctx, uuid.New(), badPhone)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	badPincode := validRequest(PaymentInput{Method: "cod"})
	badPincode.Pincode = "2210"
	_, err = svc.Complete(ctx, uuid.New(), badPincode)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	badMethod := validRequest(PaymentInput{Method: "card"})
	_, err = svc.Complete(ctx, uuid.New(), badMethod)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestQuote(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	svc, _ := newCheckoutTestService(t, conn, &fakeGateway{})

	resp, err := svc.Quote(context.Background(), QuoteRequest{
		Pincode: "400001",
		Items: []ItemInput{
			{Name: "Brass Diya", Price: "250.00", Quantity: 2},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, enums.ShippingZoneNational, resp.Zone)
	assert.Equal(t, "500.00", resp.Subtotal)
	assert.Equal(t, "80.00", resp.Shipping)
	assert.Equal(t, "580.00", resp.Total)
}

func TestCreatePaymentOrder(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	gateway := &fakeGateway{}
	svc, _ := newCheckoutTestService(t, conn, gateway)
	userID := uuid.New()

	resp, err := svc.CreatePaymentOrder(context.Background(), userID, PaymentOrderRequest{
		Amount:  "479.00",
		Receipt: "web checkout #42",
	})
	require.NoError(t, err)

	assert.Equal(t, "order_new", resp.OrderID)
	assert.EqualValues(t, 47900, resp.Amount)
	assert.Equal(t, "INR", resp.Currency)
	assert.Equal(t, "rzp_test_key", resp.KeyID)

	require.Len(t, gateway.created, 1)
	assert.Equal(t, "webcheckout42", gateway.created[0].receipt)
	assert.Equal(t, userID.String(), gateway.created[0].notes["user_id"])
}

func TestCreatePaymentOrderRejectsBadAmounts(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	svc, _ := newCheckoutTestService(t, conn, &fakeGateway{})
	ctx := context.Background()
	userID := uuid.New()

	for _, amount := range []string{"", "abc", "0", "-10", "10000001"} {
		_, err := svc.CreatePaymentOrder(ctx, userID, PaymentOrderRequest{Amount: amount})
		typed := pkgerrors.As(err)
		require.NotNil(t, typed, "amount %q", amount)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	}
}

func TestOrderHistory(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	svc, _ := newCheckoutTestService(t, conn, &fakeGateway{})
	ctx := context.Background()
	userID := uuid.New()

	resp, err := svc.Complete(ctx, userID, validRequest(PaymentInput{Method: "cod"}))
	require.NoError(t, err)

	listed, err := svc.ListOrders(ctx, userID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, resp.Order.ID, listed[0].ID)

	loaded, err := svc.GetOrder(ctx, userID, resp.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Order.ID, loaded.ID)

	_, err = svc.GetOrder(ctx, uuid.New(), resp.Order.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
