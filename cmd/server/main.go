package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ndudnik/goshop/internal/config"
	"github.com/ndudnik/goshop/internal/es"
	"github.com/ndudnik/goshop/internal/events"
	"github.com/ndudnik/goshop/internal/handlers"
	"github.com/ndudnik/goshop/internal/handlers/cart"
	"github.com/ndudnik/goshop/internal/httpserver"
	"github.com/ndudnik/goshop/internal/logging"
	"github.com/ndudnik/goshop/internal/payment"
	"github.com/ndudnik/goshop/internal/service/order"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}

	jwtSecret := []byte(configuration.JWT_SECRET)

	var producer events.Publisher = events.Noop{}
	var kafkaProducer *events.Producer
	if configuration.KAFKA_ADDRESS != "" {
		kafkaProducer = events.NewProducer([]string{configuration.KAFKA_ADDRESS})
		producer = kafkaProducer
	} else {
		logger.Warn("KAFKA_ADDRESS not set, events disabled")
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatalf("elasticsearch init failed: %v", err)
	}

	gateway := payment.NewStripeGateway(configuration.STRIPE_SECRET_KEY)

	orders := &order.Service{
		DB:          db,
		Gateway:     gateway,
		Producer:    producer,
		FrontendURL: configuration.FRONTEND_URL,
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), middleware.CORS())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	e.Use(logging.RequestLogger(logger))

	deps := httpserver.Deps{
		DB:         db,
		JWTSecret:  jwtSecret,
		Auth:       &handlers.AuthHandler{DB: db, JWTSecret: jwtSecret, Producer: producer},
		Products:   &handlers.ProductHandler{DB: db, Producer: producer},
		Categories: &handlers.CategoryHandler{DB: db},
		Cart:       &cart.CartHandler{DB: db, Producer: producer},
		Checkout:   &handlers.CheckoutHandler{Orders: orders},
		Orders:     &handlers.OrderHandler{Orders: orders},
		Search:     &handlers.SearchHandler{ES: esClient, Index: "products"},
		Webhook:    &handlers.WebhookHandler{Orders: orders, WebhookSecret: configuration.STRIPE_WEBHOOK_SECRET},
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}

	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			logger.Error("kafka close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
