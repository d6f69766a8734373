package order

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ndudnik/goshop/internal/models"
	"github.com/ndudnik/goshop/internal/payment"
)

type stubGateway struct {
	mu        sync.Mutex
	sessions  map[string]*payment.Session
	paid      map[string]bool
	createErr error
	n         int
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		sessions: make(map[string]*payment.Session),
		paid:     make(map[string]bool),
	}
}

func (g *stubGateway) CreateSession(ctx context.Context, orderID, userID uint, items []payment.LineItem, successURL, cancelURL string) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.n++
	id := fmt.Sprintf("cs_test_%d", g.n)
	s := &payment.Session{ID: id, URL: "https://checkout.stripe.test/" + id}
	g.sessions[id] = s
	return s, nil
}

func (g *stubGateway) GetSession(ctx context.Context, id string) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no such session: %s", id)
	}
	return &payment.Session{ID: s.ID, URL: s.URL, Paid: g.paid[id]}, nil
}

func (g *stubGateway) markPaid(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paid[id] = true
}

func initTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
	))
	return db
}

func newTestService(t *testing.T) (*Service, *stubGateway, *gorm.DB) {
	t.Helper()
	db := initTestDB(t)
	gw := newStubGateway()
	svc := &Service{
		DB:          db,
		Gateway:     gw,
		FrontendURL: "http://localhost:3000",
	}
	return svc, gw, db
}

func seedProduct(t *testing.T, db *gorm.DB, title string, price float64, stock uint) models.Product {
	t.Helper()
	cat := models.Category{Name: "cat for " + title}
	require.NoError(t, db.Create(&cat).Error)
	p := models.Product{Title: title, Price: price, Stock: stock, CategoryID: cat.ID}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func addToCart(t *testing.T, db *gorm.DB, userID uint, productID uint, qty uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.CartItem{UserID: userID, ProductID: productID, Quantity: qty}).Error)
}

func productStock(t *testing.T, db *gorm.DB, id uint) uint {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, id).Error)
	return p.Stock
}

func orderCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Order{}).Count(&n).Error)
	return n
}

func TestCreateOrderEmptyCart(t *testing.T) {
	svc, _, db := newTestService(t)

	_, err := svc.CreateOrder(context.Background(), 1)
	require.ErrorIs(t, err, ErrEmptyCart)
	require.Zero(t, orderCount(t, db))
}

func TestCreateOrderInsufficientStockAllOrNothing(t *testing.T) {
	svc, _, db := newTestService(t)

	inStock := seedProduct(t, db, "plenty", 10, 100)
	scarce := seedProduct(t, db, "scarce", 20, 1)
	addToCart(t, db, 1, inStock.ID, 2)
	addToCart(t, db, 1, scarce.ID, 3)

	_, err := svc.CreateOrder(context.Background(), 1)

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, scarce.ID, insufficient.ProductID)
	require.Contains(t, err.Error(), "scarce")

	// All-or-nothing: no order row, no order items.
	require.Zero(t, orderCount(t, db))
	var itemCount int64
	require.NoError(t, db.Model(&models.OrderItem{}).Count(&itemCount).Error)
	require.Zero(t, itemCount)
}

func TestCheckoutConfirmDecrementsAndClearsCart(t *testing.T) {
	svc, gw, db := newTestService(t)

	p := seedProduct(t, db, "sneakers", 49.99, 5)
	addToCart(t, db, 1, p.ID, 2)

	res, err := svc.CreateOrder(context.Background(), 1)
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionID)
	require.NotEmpty(t, res.URL)

	// Price changes after checkout must not leak into the snapshot.
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", p.ID).Update("price", 999.0).Error)

	// No reservation before payment.
	require.Equal(t, uint(5), productStock(t, db, p.ID))

	gw.markPaid(res.SessionID)

	ord, paid, err := svc.ConfirmPayment(context.Background(), res.SessionID, 1)
	require.NoError(t, err)
	require.True(t, paid)
	require.Equal(t, models.OrderStatusPaid, ord.Status)
	require.InDelta(t, 99.98, ord.Total, 0.001)
	require.Len(t, ord.Items, 1)
	require.InDelta(t, 49.99, ord.Items[0].Price, 0.001)

	require.Equal(t, uint(3), productStock(t, db, p.ID))

	var remaining int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("user_id = ?", 1).Count(&remaining).Error)
	require.Zero(t, remaining)
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	svc, gw, db := newTestService(t)

	p := seedProduct(t, db, "lamp", 10, 5)
	addToCart(t, db, 1, p.ID, 2)

	res, err := svc.CreateOrder(context.Background(), 1)
	require.NoError(t, err)
	gw.markPaid(res.SessionID)

	first, paid, err := svc.ConfirmPayment(context.Background(), res.SessionID, 1)
	require.NoError(t, err)
	require.True(t, paid)
	require.Equal(t, uint(3), productStock(t, db, p.ID))

	// Page reload / webhook retry: same order back, stock untouched.
	second, paid, err := svc.ConfirmPayment(context.Background(), res.SessionID, 1)
	require.NoError(t, err)
	require.True(t, paid)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, models.OrderStatusPaid, second.Status)
	require.Equal(t, uint(3), productStock(t, db, p.ID))
}

func TestConfirmPaymentConcurrentDecrementsOnce(t *testing.T) {
	svc, gw, db := newTestService(t)

	p := seedProduct(t, db, "chair", 25, 5)
	addToCart(t, db, 1, p.ID, 2)

	res, err := svc.CreateOrder(context.Background(), 1)
	require.NoError(t, err)
	gw.markPaid(res.SessionID)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = svc.ConfirmPayment(context.Background(), res.SessionID, 1)
		}()
	}
	wg.Wait()

	require.Equal(t, uint(3), productStock(t, db, p.ID))
	var ord models.Order
	require.NoError(t, db.Where("stripe_session_id = ?", res.SessionID).First(&ord).Error)
	require.Equal(t, models.OrderStatusPaid, ord.Status)
}

func TestConfirmPaymentUnpaidSessionIsNoop(t *testing.T) {
	svc, _, db := newTestService(t)

	p := seedProduct(t, db, "mug", 5, 5)
	addToCart(t, db, 1, p.ID, 1)

	res, err := svc.CreateOrder(context.Background(), 1)
	require.NoError(t, err)

	ord, paid, err := svc.ConfirmPayment(context.Background(), res.SessionID, 1)
	require.NoError(t, err)
	require.False(t, paid)
	require.Equal(t, models.OrderStatusPending, ord.Status)
	require.Equal(t, uint(5), productStock(t, db, p.ID))

	var remaining int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("user_id = ?", 1).Count(&remaining).Error)
	require.Equal(t, int64(1), remaining)
}

func TestConfirmPaymentClampsStockAtZero(t *testing.T) {
	svc, gw, db := newTestService(t)

	p := seedProduct(t, db, "last units", 15, 5)
	addToCart(t, db, 1, p.ID, 5)

	res, err := svc.CreateOrder(context.Background(), 1)
	require.NoError(t, err)
	gw.markPaid(res.SessionID)

	// A concurrent sale drained the shelf between checkout and confirmation.
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", p.ID).Update("stock", 2).Error)

	_, paid, err := svc.ConfirmPayment(context.Background(), res.SessionID, 1)
	require.NoError(t, err)
	require.True(t, paid)
	require.Equal(t, uint(0), productStock(t, db, p.ID))
}

func TestCreateOrderGatewayFailureLeavesPendingOrder(t *testing.T) {
	svc, gw, db := newTestService(t)
	gw.createErr = fmt.Errorf("gateway unavailable")

	p := seedProduct(t, db, "doomed", 30, 5)
	addToCart(t, db, 1, p.ID, 1)

	_, err := svc.CreateOrder(context.Background(), 1)
	require.Error(t, err)

	// The order row survives without a session id: abandoned but cancellable.
	var ord models.Order
	require.NoError(t, db.Where("user_id = ?", 1).First(&ord).Error)
	require.Equal(t, models.OrderStatusPending, ord.Status)
	require.Empty(t, ord.StripeSessionID)

	cancelled, err := svc.CancelOrder(context.Background(), 1, ord.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCancelled, cancelled.Status)
}

func TestCancelOrder(t *testing.T) {
	svc, gw, db := newTestService(t)

	p := seedProduct(t, db, "jacket", 80, 5)
	addToCart(t, db, 1, p.ID, 1)

	res, err := svc.CreateOrder(context.Background(), 1)
	require.NoError(t, err)

	var ord models.Order
	require.NoError(t, db.Where("stripe_session_id = ?", res.SessionID).First(&ord).Error)

	cancelled, err := svc.CancelOrder(context.Background(), 1, ord.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	// Nothing was reserved, so nothing comes back.
	require.Equal(t, uint(5), productStock(t, db, p.ID))

	_, err = svc.CancelOrder(context.Background(), 1, ord.ID)
	require.ErrorIs(t, err, ErrNotCancellable)

	_, err = svc.CancelOrder(context.Background(), 1, 9999)
	require.ErrorIs(t, err, ErrOrderNotFound)

	// A paid order cannot be cancelled either.
	require.NoError(t, db.Where("user_id = ?", 1).Delete(&models.CartItem{}).Error)
	addToCart(t, db, 1, p.ID, 1)
	res2, err := svc.CreateOrder(context.Background(), 1)
	require.NoError(t, err)
	gw.markPaid(res2.SessionID)
	paidOrd, _, err := svc.ConfirmPayment(context.Background(), res2.SessionID, 1)
	require.NoError(t, err)
	_, err = svc.CancelOrder(context.Background(), 1, paidOrd.ID)
	require.ErrorIs(t, err, ErrNotCancellable)
}

func TestCancelOrderOtherUsersOrderNotFound(t *testing.T) {
	svc, _, db := newTestService(t)

	p := seedProduct(t, db, "private", 12, 3)
	addToCart(t, db, 1, p.ID, 1)

	_, err := svc.CreateOrder(context.Background(), 1)
	require.NoError(t, err)

	var ord models.Order
	require.NoError(t, db.Where("user_id = ?", 1).First(&ord).Error)

	_, err = svc.CancelOrder(context.Background(), 2, ord.ID)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestConfirmPaymentWebhookPathUnscoped(t *testing.T) {
	svc, gw, db := newTestService(t)

	p := seedProduct(t, db, "webhooked", 7, 4)
	addToCart(t, db, 3, p.ID, 2)

	res, err := svc.CreateOrder(context.Background(), 3)
	require.NoError(t, err)
	gw.markPaid(res.SessionID)

	// userID 0 is the webhook path: lookup by session only.
	ord, paid, err := svc.ConfirmPayment(context.Background(), res.SessionID, 0)
	require.NoError(t, err)
	require.True(t, paid)
	require.Equal(t, uint(3), ord.UserID)
	require.Equal(t, uint(2), productStock(t, db, p.ID))
}

func TestListOrdersNewestFirst(t *testing.T) {
	svc, _, db := newTestService(t)

	p := seedProduct(t, db, "listed", 5, 50)

	for i := 0; i < 3; i++ {
		addToCart(t, db, 1, p.ID, 1)
		_, err := svc.CreateOrder(context.Background(), 1)
		require.NoError(t, err)
		require.NoError(t, db.Where("user_id = ?", 1).Delete(&models.CartItem{}).Error)
	}

	orders, err := svc.ListOrders(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	for _, o := range orders {
		require.Len(t, o.Items, 1)
		require.NotNil(t, o.Items[0].Product)
	}
}
