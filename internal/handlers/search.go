package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/ndudnik/goshop/internal/logging"
	"github.com/ndudnik/goshop/internal/service/search"
	"github.com/ndudnik/goshop/internal/util"
)

type SearchHandler struct {
	ES    *elasticsearch.Client
	Index string
}

func (h *SearchHandler) Search(c echo.Context) error {
	var req struct {
		Query string `json:"query"`
		Page  int    `json:"page"`
		Limit int    `json:"limit"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Search query is required")
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Search query is required")
	}

	from, size := util.Calculate(req.Page, req.Limit)

	total, products, err := search.Search(c.Request().Context(), h.ES, h.Index, req.Query, from, size)
	if err != nil {
		logging.FromContext(c.Request().Context()).Error("search failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	message := fmt.Sprintf("Found %d products matching %q", total, req.Query)
	if total == 0 {
		message = fmt.Sprintf("No products found for %q", req.Query)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"query":   req.Query,
		"results": products,
		"total":   total,
		"message": message,
	})
}
