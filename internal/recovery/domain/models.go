package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusReferred Status = "referred"
	StatusClosed   Status = "closed"
)

const KindForcedRecovery = "forced_recovery"

// Dossier is a referral to the external authority for forced collection.
// A taxpayer has at most one referred dossier at a time.
type Dossier struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	Reference     string          `json:"reference"`
	TaxpayerID    snowflake.ID    `json:"taxpayer_id"`
	Kind          string          `json:"kind"`
	Status        Status          `json:"status"`
	AmountDue     decimal.Decimal `json:"amount_due"`
	InternalNotes string          `json:"internal_notes,omitempty"`
	ReferredAt    time.Time       `json:"referred_at"`
	ClosedAt      *time.Time      `json:"closed_at,omitempty"`
	Outcome       *string         `json:"outcome,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (Dossier) TableName() string { return "recovery_dossiers" }

// DossierNote links a referred note to its dossier with the amount owed at referral.
type DossierNote struct {
	DossierID snowflake.ID    `gorm:"primaryKey" json:"dossier_id"`
	NoteID    snowflake.ID    `gorm:"primaryKey" json:"note_id"`
	AmountDue decimal.Decimal `json:"amount_due"`
	AddedAt   time.Time       `json:"added_at"`
}

func (DossierNote) TableName() string { return "dossier_notes" }

// NewReference returns a dossier reference such as DR-2026-01J9...
func NewReference(at time.Time) string {
	return fmt.Sprintf("DR-%d-%s", at.Year(), ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String())
}

func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusReferred:
		return StatusReferred, true
	case StatusClosed:
		return StatusClosed, true
	default:
		return "", false
	}
}
