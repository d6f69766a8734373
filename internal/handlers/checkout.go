package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ndudnik/goshop/internal/jwtmiddleware"
	"github.com/ndudnik/goshop/internal/logging"
	"github.com/ndudnik/goshop/internal/payment"
	"github.com/ndudnik/goshop/internal/service/order"
)

type CheckoutHandler struct {
	Orders *order.Service
}

func (h *CheckoutHandler) Checkout(c echo.Context) error {
	userID, err := jwtmiddleware.UserID(c)
	if err != nil {
		return err
	}

	res, err := h.Orders.CreateOrder(c.Request().Context(), userID)
	if err != nil {
		return mapOrderError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"sessionId": res.SessionID,
		"url":       res.URL,
		"orderId":   res.OrderID,
	})
}

// Success is the client-polled confirmation after the payment redirect. It is
// best-effort UX; the webhook performs the same transition authoritatively.
func (h *CheckoutHandler) Success(c echo.Context) error {
	userID, err := jwtmiddleware.UserID(c)
	if err != nil {
		return err
	}

	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Session ID is required")
	}

	ord, paid, err := h.Orders.ConfirmPayment(c.Request().Context(), sessionID, userID)
	if errors.Is(err, order.ErrOrderNotFound) {
		// A session that matches none of the caller's orders gets the same
		// not-completed response as an unpaid one, not a 404.
		return c.JSON(http.StatusOK, echo.Map{
			"success": false,
			"message": "Payment not completed or order not found.",
		})
	}
	if err != nil {
		return mapOrderError(c, err)
	}

	if !paid {
		return c.JSON(http.StatusOK, echo.Map{
			"success": false,
			"message": "Payment not completed or order not found.",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"order":   ord,
		"message": "Payment successful! Your order has been confirmed.",
	})
}

func mapOrderError(c echo.Context, err error) error {
	var insufficient *order.InsufficientStockError
	switch {
	case errors.Is(err, order.ErrEmptyCart):
		return echo.NewHTTPError(http.StatusBadRequest, "Cart is empty")
	case errors.As(err, &insufficient):
		return echo.NewHTTPError(http.StatusBadRequest, insufficient.Error())
	case errors.Is(err, order.ErrOrderNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Order not found")
	case errors.Is(err, order.ErrNotCancellable):
		return echo.NewHTTPError(http.StatusBadRequest, "Order cannot be cancelled")
	case errors.Is(err, payment.ErrDeclined):
		return echo.NewHTTPError(http.StatusBadRequest, "Payment declined")
	default:
		logging.FromContext(c.Request().Context()).Error("order operation failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
}
