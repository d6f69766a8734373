package cart

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ndudnik/goshop/internal/events"
	"github.com/ndudnik/goshop/internal/jwtmiddleware"
	"github.com/ndudnik/goshop/internal/models"
)

type CartHandler struct {
	DB       *gorm.DB
	Producer events.Publisher
}

func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := jwtmiddleware.UserID(c)
	if err != nil {
		return err
	}

	var items []models.CartItem
	if err := h.DB.
		Preload("Product").
		Preload("Product.Category").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	var total float64
	for _, it := range items {
		if it.Product != nil {
			total += it.Product.Price * float64(it.Quantity)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"items": items,
		"total": fmt.Sprintf("%.2f", total),
	})
}

// AddToCart creates or increments the (user, product) cart row. The stock
// check covers the cumulative quantity. It is a best-effort read-then-check
// inside one transaction; the authoritative all-or-nothing validation runs
// again at checkout.
func (h *CartHandler) AddToCart(c echo.Context) error {
	userID, err := jwtmiddleware.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid input")
	}
	if req.ProductID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid input")
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	var item models.CartItem
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, req.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "Product not found")
			}
			return err
		}

		err := tx.Where("user_id = ? AND product_id = ?", userID, req.ProductID).First(&item).Error
		switch {
		case err == nil:
			newQty := item.Quantity + req.Quantity
			if product.Stock < newQty {
				return echo.NewHTTPError(http.StatusBadRequest, "Insufficient stock")
			}
			item.Quantity = newQty
			return tx.Save(&item).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			if product.Stock < req.Quantity {
				return echo.NewHTTPError(http.StatusBadRequest, "Insufficient stock")
			}
			item = models.CartItem{
				UserID:    userID,
				ProductID: req.ProductID,
				Quantity:  req.Quantity,
			}
			return tx.Create(&item).Error
		default:
			return err
		}
	})
	if txErr != nil {
		var he *echo.HTTPError
		if errors.As(txErr, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	if err := h.DB.Preload("Product").Preload("Product.Category").First(&item, item.ID).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	h.publish(c, userID, map[string]any{
		"type":      "cart_item_added",
		"userID":    userID,
		"productID": req.ProductID,
		"quantity":  item.Quantity,
	})

	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) UpdateItem(c echo.Context) error {
	userID, err := jwtmiddleware.UserID(c)
	if err != nil {
		return err
	}

	id, ok := parseID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid cart item ID")
	}

	var req struct {
		Quantity uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil || req.Quantity < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid input")
	}

	var item models.CartItem
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Product").
			Where("id = ? AND user_id = ?", id, userID).
			First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "Cart item not found")
			}
			return err
		}
		if item.Product == nil || item.Product.Stock < req.Quantity {
			return echo.NewHTTPError(http.StatusBadRequest, "Insufficient stock")
		}
		item.Quantity = req.Quantity
		return tx.Model(&models.CartItem{}).Where("id = ?", item.ID).Update("quantity", req.Quantity).Error
	})
	if txErr != nil {
		var he *echo.HTTPError
		if errors.As(txErr, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	if err := h.DB.Preload("Product").Preload("Product.Category").First(&item, item.ID).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	h.publish(c, userID, map[string]any{
		"type":     "cart_item_updated",
		"userID":   userID,
		"itemID":   item.ID,
		"quantity": item.Quantity,
	})

	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	userID, err := jwtmiddleware.UserID(c)
	if err != nil {
		return err
	}

	id, ok := parseID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid cart item ID")
	}

	res := h.DB.Where("id = ? AND user_id = ?", id, userID).Delete(&models.CartItem{})
	if res.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
	if res.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "Cart item not found")
	}

	h.publish(c, userID, map[string]any{
		"type":   "cart_item_removed",
		"userID": userID,
		"itemID": id,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "Item removed from cart"})
}
