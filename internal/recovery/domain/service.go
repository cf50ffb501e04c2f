package domain

import (
	"context"
	"io"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/redevance/internal/fault"
	"gorm.io/gorm"
)

// ReferCommand refers one note of a taxpayer for forced recovery.
type ReferCommand struct {
	TaxpayerID snowflake.ID
	NoteID     snowflake.ID
	AmountDue  decimal.Decimal
}

type ReferResult struct {
	Dossier *Dossier
	// Created is false when the note joined the taxpayer's already referred dossier.
	Created bool
	// Added is false when the note was already part of the dossier.
	Added bool
}

type CloseRequest struct {
	Outcome string `json:"outcome"`
}

type DossierDetail struct {
	Dossier Dossier       `json:"dossier"`
	Notes   []DossierNote `json:"notes"`
}

type Service interface {
	// ReferInTx creates or joins the taxpayer's referred dossier inside tx.
	ReferInTx(ctx context.Context, tx *gorm.DB, cmd ReferCommand) (ReferResult, error)
	AfterRefer(ctx context.Context, result ReferResult)
	// Close records the authority's outcome. Only the authority tier may close a dossier.
	Close(ctx context.Context, id string, req CloseRequest) (Dossier, error)
	Get(ctx context.Context, id string) (DossierDetail, error)
	List(ctx context.Context, status string) ([]Dossier, error)
	// Export writes referred dossiers as an XLSX workbook.
	Export(ctx context.Context, w io.Writer) error
}

var (
	ErrNotFound       = fault.NotFound("dossier_not_found")
	ErrInvalidID      = fault.Invalid("invalid_dossier_id")
	ErrInvalidStatus  = fault.Invalid("invalid_dossier_status")
	ErrMissingOutcome = fault.Invalid("missing_outcome")
	ErrAlreadyClosed  = fault.Conflict("dossier_already_closed")
)
