package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Статусы товара
const (
	ProductStatusAvailable = "available"
	ProductStatusPending   = "pending"
	ProductStatusSold      = "sold"
)

// ValidProductStatuses список валидных статусов товара.
var ValidProductStatuses = map[string]struct{}{
	ProductStatusAvailable: {},
	ProductStatusPending:   {},
	ProductStatusSold:      {},
}

// Product описывает объявление о продаже товара.
type Product struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	SellerID      uuid.UUID      `db:"seller_id" json:"seller_id"`
	Title         string         `db:"title" json:"title"`
	Description   string         `db:"description" json:"description"`
	Price         float64        `db:"price" json:"price"`
	Currency      string         `db:"currency" json:"currency"`
	Category      string         `db:"category" json:"category"`
	Images        pq.StringArray `db:"images" json:"images"`
	Location      string         `db:"location" json:"location"`
	Status        string         `db:"status" json:"status"`
	Likes         int            `db:"likes" json:"likes"`
	Views         int            `db:"views" json:"views"`
	CommentsCount int            `db:"comments_count" json:"comments_count"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// ProductFilter задаёт параметры выборки списка товаров.
type ProductFilter struct {
	Category string
	Status   string
	SellerID *uuid.UUID
	Search   string
	Limit    int
	Offset   int
}
