package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	tariffdomain "github.com/smallbiznis/redevance/internal/tariff/domain"
	"gorm.io/datatypes"
)

type Status string

const StatusSubmitted Status = "submitted"

// Declaration is a taxpayer's self-reported device inventory for one fiscal year.
type Declaration struct {
	ID          snowflake.ID                                 `gorm:"primaryKey" json:"id"`
	TaxpayerID  snowflake.ID                                 `json:"taxpayer_id"`
	FiscalYear  int                                          `json:"fiscal_year"`
	Lines       datatypes.JSONSlice[tariffdomain.PricedLine] `json:"lines"`
	Total       decimal.Decimal                              `json:"total"`
	Status      Status                                       `json:"status"`
	NoteID      *snowflake.ID                                `json:"note_id,omitempty"`
	SubmittedBy *snowflake.ID                                `json:"submitted_by,omitempty"`
	SubmittedAt time.Time                                    `json:"submitted_at"`
	CreatedAt   time.Time                                    `json:"created_at"`
}

func (Declaration) TableName() string { return "declarations" }
