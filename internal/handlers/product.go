package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ndudnik/goshop/internal/events"
	"github.com/ndudnik/goshop/internal/jwtmiddleware"
	"github.com/ndudnik/goshop/internal/logging"
	"github.com/ndudnik/goshop/internal/models"
	"github.com/ndudnik/goshop/internal/util"
)

type ProductHandler struct {
	DB       *gorm.DB
	Producer events.Publisher
}

var imageURLRe = regexp.MustCompile(`^https?://.+`)

func validImage(s string) bool {
	return s == "" || imageURLRe.MatchString(s)
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	limit := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, limit)

	q := h.DB.Model(&models.Product{})

	if category := strings.TrimSpace(c.QueryParam("category")); category != "" {
		q = q.Joins("JOIN categories ON categories.id = products.category_id").
			Where("LOWER(categories.name) = LOWER(?)", category)
	}
	if search := strings.TrimSpace(c.QueryParam("search")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(products.title) LIKE ? OR LOWER(products.description) LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	var items []models.Product
	if err := q.Select("products.*").
		Preload("Category").
		Order("products.created_at DESC").
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"products": items,
		"pagination": echo.Map{
			"page":  page,
			"limit": limit,
			"total": total,
			"pages": (total + int64(limit) - 1) / int64(limit),
		},
	})
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, ok := parseID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid product ID")
	}

	var product models.Product
	if err := h.DB.Preload("Category").First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	userID, err := jwtmiddleware.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Price       float64 `json:"price"`
		Image       string  `json:"image"`
		Stock       uint    `json:"stock"`
		CategoryID  uint    `json:"category_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid input")
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.Price < 0 || !validImage(req.Image) || req.CategoryID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid input")
	}

	var category models.Category
	if err := h.DB.First(&category, req.CategoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Category not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	prod := models.Product{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Image:       req.Image,
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
	}
	if err := h.DB.Create(&prod).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
	prod.Category = &category

	h.publish(c, userID, map[string]any{
		"type":      "product_created",
		"userID":    userID,
		"productID": prod.ID,
		"title":     prod.Title,
	})

	return c.JSON(http.StatusCreated, prod)
}

func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	userID, err := jwtmiddleware.UserID(c)
	if err != nil {
		return err
	}

	id, ok := parseID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid product ID")
	}

	var req struct {
		Title       *string  `json:"title"`
		Description *string  `json:"description"`
		Price       *float64 `json:"price"`
		Image       *string  `json:"image"`
		Stock       *uint    `json:"stock"`
		CategoryID  *uint    `json:"category_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid input")
	}

	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid input")
		}
		prod.Title = title
	}
	if req.Description != nil {
		prod.Description = *req.Description
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid input")
		}
		prod.Price = *req.Price
	}
	if req.Image != nil {
		if !validImage(*req.Image) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid input")
		}
		prod.Image = *req.Image
	}
	if req.Stock != nil {
		prod.Stock = *req.Stock
	}
	if req.CategoryID != nil {
		var category models.Category
		if err := h.DB.First(&category, *req.CategoryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "Category not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
		}
		prod.CategoryID = *req.CategoryID
	}

	if err := h.DB.Save(&prod).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
	if err := h.DB.Preload("Category").First(&prod, prod.ID).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	h.publish(c, userID, map[string]any{
		"type":      "product_updated",
		"userID":    userID,
		"productID": prod.ID,
		"title":     prod.Title,
	})

	return c.JSON(http.StatusOK, prod)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	userID, err := jwtmiddleware.UserID(c)
	if err != nil {
		return err
	}

	id, ok := parseID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid product ID")
	}

	res := h.DB.Delete(&models.Product{}, id)
	if res.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
	if res.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "Product not found")
	}

	// Cart rows referencing the product go with it.
	if err := h.DB.Where("product_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
		logging.FromContext(c.Request().Context()).Error("cart cleanup after product delete failed", "error", err)
	}

	h.publish(c, userID, map[string]any{
		"type":      "product_deleted",
		"userID":    userID,
		"productID": id,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "Product deleted successfully"})
}

func (h *ProductHandler) publish(c echo.Context, userID uint, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := publishContext(c)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicProductEvents, itoa(userID), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}
