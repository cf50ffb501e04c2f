package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	tariffdomain "github.com/smallbiznis/redevance/internal/tariff/domain"
	"gorm.io/datatypes"
)

// DueDays is the fixed payment term of every note.
const DueDays = 30

type Status string

const (
	StatusDraft         Status = "draft"
	StatusIssued        Status = "issued"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
	StatusOverdue       Status = "overdue"
	StatusVoid          Status = "void"
)

type Source string

const (
	SourceDeclaration Source = "declaration"
	SourceControl     Source = "control"
	SourceManual      Source = "manual"
)

type Series string

const (
	SeriesTaxation      Series = "NT"
	SeriesRectification Series = "NR"
)

type TaxationNote struct {
	ID                  snowflake.ID                                 `gorm:"primaryKey" json:"id"`
	Number              string                                       `json:"number"`
	TaxpayerID          snowflake.ID                                 `json:"taxpayer_id"`
	FiscalYear          int                                          `json:"fiscal_year"`
	ZoneCode            string                                       `json:"zone_code"`
	Source              Source                                       `json:"source"`
	SourceID            *snowflake.ID                                `json:"source_id,omitempty"`
	Lines               datatypes.JSONSlice[tariffdomain.PricedLine] `json:"lines"`
	TotalDue            decimal.Decimal                              `json:"total_due"`
	NetAmount           decimal.Decimal                              `json:"net_amount"`
	PaidAmount          decimal.Decimal                              `json:"paid_amount"`
	Status              Status                                       `json:"status"`
	IssuedAt            time.Time                                    `json:"issued_at"`
	DueDate             time.Time                                    `json:"due_date"`
	VoidReason          *string                                      `json:"void_reason,omitempty"`
	VoidedAt            *time.Time                                   `json:"voided_at,omitempty"`
	RectifiedAt         *time.Time                                   `json:"rectified_at,omitempty"`
	LastRectificationID *snowflake.ID                                `json:"last_rectification_id,omitempty"`
	CreatedAt           time.Time                                    `json:"created_at"`
	UpdatedAt           time.Time                                    `json:"updated_at"`
}

func (TaxationNote) TableName() string { return "taxation_notes" }

// Collectible reports whether the note still accepts payments and escalation.
func (n TaxationNote) Collectible() bool {
	switch n.Status {
	case StatusIssued, StatusPartiallyPaid, StatusOverdue:
		return true
	default:
		return false
	}
}

// Outstanding is the amount still owed, never negative.
func (n TaxationNote) Outstanding() decimal.Decimal {
	rest := n.TotalDue.Sub(n.PaidAmount)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// FormatNumber renders a note number such as NT-2026-KIN-0001.
func FormatNumber(series Series, year int, zoneCode string, seq int64) string {
	return fmt.Sprintf("%s-%d-%s-%04d", series, year, zoneCode, seq)
}

// DueDate returns the due date for a note issued at issuedAt.
func DueDate(issuedAt time.Time) time.Time {
	return issuedAt.AddDate(0, 0, DueDays)
}

// DeriveStatus computes the payment status of a collectible note from its confirmed sum.
// Overdue notes stay overdue until fully paid.
func DeriveStatus(current Status, totalDue, confirmed decimal.Decimal) Status {
	if current == StatusVoid || current == StatusDraft {
		return current
	}
	if confirmed.GreaterThanOrEqual(totalDue) {
		return StatusPaid
	}
	if current == StatusOverdue {
		return StatusOverdue
	}
	if confirmed.IsPositive() {
		return StatusPartiallyPaid
	}
	return StatusIssued
}
