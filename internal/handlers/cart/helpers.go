package cart

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ndudnik/goshop/internal/events"
	"github.com/ndudnik/goshop/internal/logging"
)

func (h *CartHandler) publish(c echo.Context, userID uint, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	key := strconv.FormatUint(uint64(userID), 10)
	if err := h.Producer.PublishEvent(ctx, events.TopicCartEvents, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func parseID(s string) (uint, bool) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}
