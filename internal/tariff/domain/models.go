package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AnySubCategory matches every operator when no specific row exists.
const AnySubCategory = "*"

type Tariff struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	Category    string          `json:"category"`
	SubCategory string          `json:"sub_category"`
	ZoneClass   string          `json:"zone_class"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (Tariff) TableName() string { return "tariffs" }

// LineInput is one declared or measured device count.
type LineInput struct {
	Category    string `json:"category"`
	SubCategory string `json:"sub_category,omitempty"`
	Count       int    `json:"count"`
}

// PricedLine is a LineInput with the tariff applied.
type PricedLine struct {
	Category    string          `json:"category"`
	SubCategory string          `json:"sub_category"`
	Count       int             `json:"count"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

type Quote struct {
	ZoneClass string          `json:"zone_class"`
	Lines     []PricedLine    `json:"lines"`
	Total     decimal.Decimal `json:"total"`
}

type Repository interface {
	// Lookup returns the operator-specific row if present, else the wildcard row.
	Lookup(ctx context.Context, db *gorm.DB, category, subCategory, zoneClass string) (*Tariff, error)
	List(ctx context.Context, db *gorm.DB, zoneClass string) ([]*Tariff, error)
}
