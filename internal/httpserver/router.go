package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ndudnik/goshop/internal/handlers"
	"github.com/ndudnik/goshop/internal/handlers/cart"
	"github.com/ndudnik/goshop/internal/jwtmiddleware"
)

type Deps struct {
	DB         *gorm.DB
	JWTSecret  []byte
	Auth       *handlers.AuthHandler
	Products   *handlers.ProductHandler
	Categories *handlers.CategoryHandler
	Cart       *cart.CartHandler
	Checkout   *handlers.CheckoutHandler
	Orders     *handlers.OrderHandler
	Search     *handlers.SearchHandler
	Webhook    *handlers.WebhookHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health", func(c echo.Context) error { return c.NoContent(200) })

	requireAuth := jwtmiddleware.RequireAuth(d.JWTSecret)

	api := e.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/logout", d.Auth.Logout)
	auth.GET("/me", d.Auth.Me, requireAuth)
	auth.PUT("/profile", d.Auth.UpdateProfile, requireAuth)
	auth.PUT("/password", d.Auth.ChangePassword, requireAuth)

	api.GET("/categories", d.Categories.List)

	api.GET("/products", d.Products.GetProducts)
	api.GET("/products/:id", d.Products.GetProduct)
	// NOTE: product mutation only requires a login. The upstream API has no
	// role model, so there is no admin check to enforce here.
	api.POST("/products", d.Products.CreateProduct, requireAuth)
	api.PUT("/products/:id", d.Products.UpdateProduct, requireAuth)
	api.DELETE("/products/:id", d.Products.DeleteProduct, requireAuth)

	cartGroup := api.Group("/cart", requireAuth)
	cartGroup.GET("", d.Cart.GetCart)
	cartGroup.POST("", d.Cart.AddToCart)
	cartGroup.PUT("/:id", d.Cart.UpdateItem)
	cartGroup.DELETE("/:id", d.Cart.RemoveItem)

	api.POST("/checkout", d.Checkout.Checkout, requireAuth)
	api.GET("/checkout/success", d.Checkout.Success, requireAuth)

	api.GET("/orders", d.Orders.List, requireAuth)
	api.PUT("/orders/:id/cancel", d.Orders.Cancel, requireAuth)

	api.POST("/search", d.Search.Search)

	api.POST("/webhooks/stripe", d.Webhook.HandleStripe)
}
