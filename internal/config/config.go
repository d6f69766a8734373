package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ndudnik/goshop/internal/models"
)

type Config struct {
	PORT                  string
	DB_HOST               string
	DB_PORT               string
	DB_USER               string
	DB_PASSWORD           string
	DB_NAME               string
	ES_URL                string
	ES_USER               string
	ES_PASSWORD           string
	JWT_SECRET            string
	KAFKA_ADDRESS         string
	STRIPE_SECRET_KEY     string
	STRIPE_WEBHOOK_SECRET string
	FRONTEND_URL          string
	LOG_LEVEL             string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		PORT:                  getenv("PORT", "8080"),
		DB_HOST:               os.Getenv("DB_HOST"),
		DB_PORT:               getenv("DB_PORT", "5432"),
		DB_USER:               os.Getenv("DB_USER"),
		DB_PASSWORD:           os.Getenv("DB_PASSWORD"),
		DB_NAME:               os.Getenv("DB_NAME"),
		ES_URL:                os.Getenv("ES_URL"),
		ES_USER:               os.Getenv("ES_USER"),
		ES_PASSWORD:           os.Getenv("ES_PASSWORD"),
		JWT_SECRET:            os.Getenv("JWT_SECRET"),
		KAFKA_ADDRESS:         os.Getenv("KAFKA_ADDRESS"),
		STRIPE_SECRET_KEY:     os.Getenv("STRIPE_SECRET_KEY"),
		STRIPE_WEBHOOK_SECRET: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		FRONTEND_URL:          getenv("FRONTEND_URL", "http://localhost:3000"),
		LOG_LEVEL:             getenv("LOG_LEVEL", "info"),
	}

	if config.JWT_SECRET == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return config, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_HOST, cfg.DB_PORT, cfg.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}
