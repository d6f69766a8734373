// Package order implements the checkout state machine: a cart becomes a
// PENDING order with frozen prices, the payment processor collects the money,
// and a confirmed payment finalizes the order (PAID), decrements stock and
// clears the cart. PENDING orders can be cancelled; PAID and CANCELLED are
// terminal.
package order

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ndudnik/goshop/internal/events"
	"github.com/ndudnik/goshop/internal/logging"
	"github.com/ndudnik/goshop/internal/models"
	"github.com/ndudnik/goshop/internal/payment"
)

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrOrderNotFound  = errors.New("order not found")
	ErrNotCancellable = errors.New("order cannot be cancelled")
)

// InsufficientStockError names the offending product, matching the API's
// "Insufficient stock for <title>" message.
type InsufficientStockError struct {
	ProductID uint
	Title     string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s", e.Title)
}

type Service struct {
	DB          *gorm.DB
	Gateway     payment.Gateway
	Producer    events.Publisher
	FrontendURL string
}

type CheckoutResult struct {
	OrderID   uint   `json:"orderId"`
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CreateOrder snapshots the cart into a PENDING order and opens a checkout
// session for it. Stock is re-validated per line at this moment,
// all-or-nothing: on any shortfall no order row is persisted. Nothing is
// reserved; the decrement happens at payment confirmation.
//
// If the session request fails after the order row exists, the order is left
// PENDING without a session id. It is abandoned and user-cancellable; it is
// never retried automatically.
func (s *Service) CreateOrder(ctx context.Context, userID uint) (*CheckoutResult, error) {
	var (
		order     models.Order
		lineItems []payment.LineItem
	)

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []models.CartItem
		if err := tx.Where("user_id = ?", userID).Order("created_at ASC").Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		var total float64
		orderItems := make([]models.OrderItem, 0, len(items))
		lineItems = make([]payment.LineItem, 0, len(items))
		for _, it := range items {
			var p models.Product
			if err := tx.First(&p, it.ProductID).Error; err != nil {
				return err
			}
			if p.Stock < it.Quantity {
				return &InsufficientStockError{ProductID: p.ID, Title: p.Title}
			}
			total += p.Price * float64(it.Quantity)
			orderItems = append(orderItems, models.OrderItem{
				ProductID: p.ID,
				Quantity:  it.Quantity,
				Price:     p.Price,
			})
			lineItems = append(lineItems, payment.LineItem{
				Name:        p.Title,
				Description: p.Description,
				Image:       p.Image,
				UnitAmount:  payment.Cents(p.Price),
				Quantity:    int64(it.Quantity),
			})
		}

		order = models.Order{
			UserID: userID,
			Total:  total,
			Status: models.OrderStatusPending,
			Items:  orderItems,
		}
		return tx.Create(&order).Error
	})
	if txErr != nil {
		return nil, txErr
	}

	successURL := s.FrontendURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"
	cancelURL := s.FrontendURL + "/cart"
	sess, err := s.Gateway.CreateSession(ctx, order.ID, userID, lineItems, successURL, cancelURL)
	if err != nil {
		logging.FromContext(ctx).Error("checkout session failed, order left pending",
			"order_id", order.ID, "error", err)
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	if err := s.DB.WithContext(ctx).Model(&order).Update("stripe_session_id", sess.ID).Error; err != nil {
		return nil, err
	}

	s.publish(ctx, userID, map[string]any{
		"type":    "order_created",
		"userID":  userID,
		"orderID": order.ID,
		"total":   order.Total,
		"session": sess.ID,
	})

	return &CheckoutResult{OrderID: order.ID, SessionID: sess.ID, URL: sess.URL}, nil
}

// ConfirmPayment moves the order behind the given checkout session from
// PENDING to PAID once the processor reports it paid: decrements stock per
// line, clears the owner's cart and returns the finalized order. Calling it
// again (page reload, webhook retry, race between the two) is a no-op that
// returns the existing order; the conditional status flip guarantees the
// decrement runs at most once.
//
// userID scopes the lookup to the caller's orders; pass 0 for the webhook
// path, which authenticates by signature instead.
func (s *Service) ConfirmPayment(ctx context.Context, sessionID string, userID uint) (*models.Order, bool, error) {
	sess, err := s.Gateway.GetSession(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}

	order, err := s.findBySession(ctx, sessionID, userID)
	if err != nil {
		return nil, false, err
	}

	if !sess.Paid || order.Status != models.OrderStatusPending {
		return order, order.Status == models.OrderStatusPaid, nil
	}

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
			Update("status", models.OrderStatusPaid)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race against a concurrent confirmation; its
			// transaction does the finalization.
			return nil
		}

		for _, it := range order.Items {
			if err := decrementStock(tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}

		return tx.Where("user_id = ?", order.UserID).Delete(&models.CartItem{}).Error
	})
	if txErr != nil {
		return nil, false, txErr
	}

	order, err = s.findBySession(ctx, sessionID, userID)
	if err != nil {
		return nil, false, err
	}

	s.publish(ctx, order.UserID, map[string]any{
		"type":    "order_paid",
		"userID":  order.UserID,
		"orderID": order.ID,
		"session": sessionID,
	})

	return order, order.Status == models.OrderStatusPaid, nil
}

// decrementStock is the conditional read-modify-write that keeps stock
// non-negative under concurrency: the WHERE clause only matches when enough
// stock remains. A shortfall (payment already collected, shelf drained by a
// concurrent sale) clamps the product to zero rather than going negative.
func decrementStock(tx *gorm.DB, productID, qty uint) error {
	res := tx.Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return tx.Model(&models.Product{}).
			Where("id = ? AND stock < ?", productID, qty).
			UpdateColumn("stock", 0).Error
	}
	return nil
}

// CancelOrder is allowed from PENDING only. No stock was reserved, so none is
// returned.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID uint) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	res := s.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
		Update("status", models.OrderStatusCancelled)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotCancellable
	}

	order.Status = models.OrderStatusCancelled

	s.publish(ctx, userID, map[string]any{
		"type":    "order_cancelled",
		"userID":  userID,
		"orderID": order.ID,
	})

	return &order, nil
}

func (s *Service) ListOrders(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.DB.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Preload("Items.Product.Category").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (s *Service) findBySession(ctx context.Context, sessionID string, userID uint) (*models.Order, error) {
	q := s.DB.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Where("stripe_session_id = ?", sessionID)
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}

	var order models.Order
	if err := q.First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (s *Service) publish(ctx context.Context, userID uint, event map[string]any) {
	if s.Producer == nil {
		return
	}
	if err := s.Producer.PublishEvent(ctx, events.TopicOrderEvents, fmt.Sprint(userID), event); err != nil {
		logging.FromContext(ctx).Error("kafka publish error", "error", err)
	}
}
