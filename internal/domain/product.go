package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is never deleted, only deactivated. Stock is mutated only
// through inventory movements; the column carries a CHECK (stock >= 0).
type Product struct {
	ID                string          `json:"id"`
	ProviderID        string          `json:"provider_id"`
	CategoryID        string          `json:"category_id,omitempty"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	ImageURL          string          `json:"image_url,omitempty"`
	Price             decimal.Decimal `json:"price"`
	Stock             int             `json:"stock"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	Active            bool            `json:"active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Provider struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TradeName string    `json:"trade_name"`
	TaxID     string    `json:"tax_id"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Latitude  float64   `json:"latitude,omitempty"`
	Longitude float64   `json:"longitude,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
