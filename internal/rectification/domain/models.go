package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft   Status = "draft"
	StatusIssued  Status = "issued"
	StatusSettled Status = "settled"
)

// RectificationNote covers an audit-detected gap plus penalty. It never alters the original note.
type RectificationNote struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	Number         *string         `json:"number,omitempty"`
	ReportID       snowflake.ID    `json:"report_id"`
	OriginalNoteID snowflake.ID    `json:"original_note_id"`
	TaxpayerID     snowflake.ID    `json:"taxpayer_id"`
	FiscalYear     int             `json:"fiscal_year"`
	ZoneCode       string          `json:"zone_code"`
	GapAmount      decimal.Decimal `json:"gap_amount"`
	PenaltyAmount  decimal.Decimal `json:"penalty_amount"`
	Total          decimal.Decimal `json:"total"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	Motif          string          `json:"motif"`
	Status         Status          `json:"status"`
	IssuedAt       *time.Time      `json:"issued_at,omitempty"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	SettledAt      *time.Time      `json:"settled_at,omitempty"`
	CreatedBy      *snowflake.ID   `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (RectificationNote) TableName() string { return "rectification_notes" }

// SettlementStatus returns settled once confirmed payments cover the total.
func SettlementStatus(current Status, total, confirmed decimal.Decimal) Status {
	if current == StatusIssued && confirmed.GreaterThanOrEqual(total) {
		return StatusSettled
	}
	return current
}

// GapLine is one category where measured devices exceed declared ones.
type GapLine struct {
	Category    string          `json:"category"`
	SubCategory string          `json:"sub_category"`
	Declared    int             `json:"declared"`
	Measured    int             `json:"measured"`
	Missing     int             `json:"missing"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

type GapSuggestion struct {
	ReportID  snowflake.ID    `json:"report_id"`
	NoteID    snowflake.ID    `json:"original_note_id"`
	Lines     []GapLine       `json:"lines"`
	GapAmount decimal.Decimal `json:"gap_amount"`
}
