package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/ndudnik/goshop/internal/logging"
	"github.com/ndudnik/goshop/internal/service/order"
)

// WebhookHandler is the server-side source of truth for payment confirmation.
// A user closing the tab before the redirect no longer strands a paid order
// in PENDING.
type WebhookHandler struct {
	Orders        *order.Service
	WebhookSecret string
}

func (h *WebhookHandler) HandleStripe(c echo.Context) error {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, 65536))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid payload")
	}

	event, err := webhook.ConstructEvent(payload, c.Request().Header.Get("Stripe-Signature"), h.WebhookSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid signature")
	}

	if event.Type != "checkout.session.completed" {
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid payload")
	}

	// ConfirmPayment is idempotent, so redelivered events are harmless.
	if _, _, err := h.Orders.ConfirmPayment(c.Request().Context(), sess.ID, 0); err != nil {
		logging.FromContext(c.Request().Context()).Error("webhook confirm failed",
			"session_id", sess.ID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
