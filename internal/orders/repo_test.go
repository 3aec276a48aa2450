package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shreesanatan/pujapath-backend/pkg/db/models"
	"github.com/shreesanatan/pujapath-backend/pkg/enums"
	"github.com/shreesanatan/pujapath-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
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
	require.NoError(t, conn.Exec(orders).Error)
	return conn
}

func sampleOrder(userID uuid.UUID, paymentID *string) *models.Order {
	status := enums.OrderStatusPendingCOD
	method := enums.PaymentMethodCOD
	if paymentID != nil {
		status = enums.OrderStatusConfirmed
		method = enums.PaymentMethodOnline
	}
	return &models.Order{
		UserID:          userID,
		CustomerName:    "Asha Rao",
		CustomerPhone:   "9876543210",
		ShippingAddress: "12 Temple Street, Varanasi",
		Pincode:         "221001",
		ShippingZone:    enums.ShippingZoneLocal,
		Items: types.OrderItems{
			{ID: "rudraksha-mala", Name: "Rudraksha Mala", Price: "449.00", Quantity: 1},
		},
		SubtotalPaise: 44900,
		ShippingPaise: 3000,
		TotalPaise:    47900,
		PaymentMethod: method,
		PaymentID:     paymentID,
		Status:        status,
	}
}

func TestCreatePersistsOrder(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	created, inserted, err := repo.Create(ctx, sampleOrder(uuid.New(), nil))
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, enums.OrderStatusPendingCOD, created.Status)

	loaded, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.TotalPaise, loaded.TotalPaise)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, "Rudraksha Mala", loaded.Items[0].Name)
}

func TestCreateDuplicatePaymentIDReturnsExisting(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	userID := uuid.New()

	paymentID := "pay_abc123"
	first, inserted, err := repo.Create(ctx, sampleOrder(userID, &paymentID))
	require.NoError(t, err)
	require.True(t, inserted)

	second, inserted, err := repo.Create(ctx, sampleOrder(userID, &paymentID))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreateDistinctPaymentIDsInsertBoth(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	userID := uuid.New()

	a, b := "pay_a", "pay_b"
	_, inserted, err := repo.Create(ctx, sampleOrder(userID, &a))
	require.NoError(t, err)
	require.True(t, inserted)
	_, inserted, err = repo.Create(ctx, sampleOrder(userID, &b))
	require.NoError(t, err)
	require.True(t, inserted)
}

func TestFindByIDForUserScopesOwnership(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	owner := uuid.New()
	created, _, err := repo.Create(ctx, sampleOrder(owner, nil))
	require.NoError(t, err)

	_, err = repo.FindByIDForUser(ctx, created.ID, uuid.New())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	found, err := repo.FindByIDForUser(ctx, created.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestListByUserNewestFirst(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	userID := uuid.New()

	for _, paymentID := range []string{"pay_1", "pay_2", "pay_3"} {
		id := paymentID
		_, _, err := repo.Create(ctx, sampleOrder(userID, &id))
		require.NoError(t, err)
	}
	_, _, err := repo.Create(ctx, sampleOrder(uuid.New(), nil))
	require.NoError(t, err)

	listed, err := repo.ListByUser(ctx, userID, 0)
	require.NoError(t, err)
	assert.Len(t, listed, 3)
	for _, order := range listed {
		assert.Equal(t, userID, order.UserID)
	}
}

func TestFromModelFormatsRupees(t *testing.T) {
	order := sampleOrder(uuid.New(), nil)
	order.ID = uuid.New()
	dto := FromModel(order)
	assert.Equal(t, "449.00", dto.Subtotal)
	assert.Equal(t, "30.00", dto.Shipping)
	assert.Equal(t, "479.00", dto.Total)
}
