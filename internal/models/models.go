package models

import (
	"time"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"     json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Category struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"uniqueIndex;not null"     json:"name"`
}

type Product struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string    `gorm:"not null"                 json:"title"`
	Description string    `json:"description"`
	Price       float64   `gorm:"not null"                 json:"price"`
	Image       string    `json:"image"`
	Stock       uint      `gorm:"not null;default:0"       json:"stock"`
	CategoryID  uint      `gorm:"index;not null"           json:"category_id"`
	Category    *Category `json:"category,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CartItem struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"                              json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cart_user_product,priority:1" json:"user_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_cart_user_product,priority:2" json:"product_id"`
	Quantity  uint      `gorm:"not null;default:1;check:quantity>0"                   json:"quantity"`
	Product   *Product  `gorm:"constraint:OnDelete:CASCADE"                           json:"product,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	OrderStatusPending   = "PENDING"
	OrderStatusPaid      = "PAID"
	OrderStatusCancelled = "CANCELLED"
)

// Order is immutable after creation except for Status and StripeSessionID.
type Order struct {
	ID              uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          uint        `gorm:"index;not null"           json:"user_id"`
	Total           float64     `gorm:"not null"                 json:"total"`
	Status          string      `gorm:"not null;default:PENDING" json:"status"`
	StripeSessionID string      `gorm:"index"                    json:"stripe_session_id,omitempty"`
	Items           []OrderItem `gorm:"foreignKey:OrderID"       json:"items,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// OrderItem snapshots the price at purchase time, so later product price
// changes never affect historical orders.
type OrderItem struct {
	ID        uint     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   uint     `gorm:"index;not null"           json:"order_id"`
	ProductID uint     `gorm:"not null"                 json:"product_id"`
	Quantity  uint     `gorm:"not null"                 json:"quantity"`
	Price     float64  `gorm:"not null"                 json:"price"`
	Product   *Product `json:"product,omitempty"`
}
