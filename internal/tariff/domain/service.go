package domain

import (
	"context"

	"github.com/smallbiznis/redevance/internal/fault"
	"gorm.io/gorm"
)

type Service interface {
	// Quote prices lines on the given connection so callers can price inside their transaction.
	Quote(ctx context.Context, db *gorm.DB, zoneClass string, lines []LineInput) (Quote, error)
	List(ctx context.Context, zoneClass string) ([]Tariff, error)
}

var (
	ErrUnknownTariff    = fault.Invalid("unknown_tariff")
	ErrInvalidLine      = fault.Invalid("invalid_line")
	ErrEmptyLines       = fault.Invalid("empty_lines")
	ErrInvalidZoneClass = fault.Invalid("invalid_zone_class")
)
