package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

type TargetKind string

const (
	TargetTaxationNote      TargetKind = "taxation_note"
	TargetRectificationNote TargetKind = "rectification_note"
)

type Payment struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	TargetKind  TargetKind      `json:"target_kind"`
	TargetID    snowflake.ID    `json:"target_id"`
	TaxpayerID  snowflake.ID    `json:"taxpayer_id"`
	Amount      decimal.Decimal `json:"amount"`
	Channel     string          `json:"channel"`
	Reference   string          `json:"reference"`
	Status      Status          `json:"status"`
	PaidAt      time.Time       `json:"paid_at"`
	RecordedBy  *snowflake.ID   `json:"recorded_by,omitempty"`
	ConfirmedAt *time.Time      `json:"confirmed_at,omitempty"`
	ConfirmedBy *snowflake.ID   `json:"confirmed_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (Payment) TableName() string { return "payments" }

// SumConfirmed adds the amounts of confirmed payments. Pending payments never count.
func SumConfirmed(payments []*Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p != nil && p.Status == StatusConfirmed {
			total = total.Add(p.Amount)
		}
	}
	return total
}
