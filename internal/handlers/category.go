package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ndudnik/goshop/internal/models"
)

type CategoryHandler struct {
	DB *gorm.DB
}

type categoryWithCount struct {
	models.Category
	ProductCount int64 `json:"product_count"`
}

func (h *CategoryHandler) List(c echo.Context) error {
	var cats []models.Category
	if err := h.DB.Order("name ASC").Find(&cats).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	type countRow struct {
		CategoryID uint
		N          int64
	}
	var rows []countRow
	if err := h.DB.Model(&models.Product{}).
		Select("category_id, COUNT(*) AS n").
		Group("category_id").
		Scan(&rows).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.CategoryID] = r.N
	}

	out := make([]categoryWithCount, 0, len(cats))
	for _, cat := range cats {
		out = append(out, categoryWithCount{Category: cat, ProductCount: counts[cat.ID]})
	}

	return c.JSON(http.StatusOK, echo.Map{"categories": out})
}
