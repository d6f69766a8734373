package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ndudnik/goshop/internal/jwtmiddleware"
	"github.com/ndudnik/goshop/internal/service/order"
)

type OrderHandler struct {
	Orders *order.Service
}

func (h *OrderHandler) List(c echo.Context) error {
	userID, err := jwtmiddleware.UserID(c)
	if err != nil {
		return err
	}

	orders, err := h.Orders.ListOrders(c.Request().Context(), userID)
	if err != nil {
		return mapOrderError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

func (h *OrderHandler) Cancel(c echo.Context) error {
	userID, err := jwtmiddleware.UserID(c)
	if err != nil {
		return err
	}

	id, ok := parseID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid order ID")
	}

	ord, err := h.Orders.CancelOrder(c.Request().Context(), userID, id)
	if err != nil {
		return mapOrderError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Order cancelled successfully",
		"order":   ord,
	})
}
