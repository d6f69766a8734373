package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

func publishContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func parseID(s string) (uint, bool) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}
