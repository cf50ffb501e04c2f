package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/fault"
	tariffdomain "github.com/smallbiznis/redevance/internal/tariff/domain"
	"gorm.io/gorm"
)

type IssueRequest struct {
	TaxpayerID string                   `json:"taxpayer_id"`
	FiscalYear int                      `json:"fiscal_year"`
	Lines      []tariffdomain.LineInput `json:"lines"`
}

// IssueCommand is the in-transaction form used by declarations and controls.
type IssueCommand struct {
	TaxpayerID snowflake.ID
	FiscalYear int
	Lines      []tariffdomain.LineInput
	Source     Source
	SourceID   *snowflake.ID
}

type Service interface {
	Issue(ctx context.Context, req IssueRequest) (TaxationNote, error)
	IssueInTx(ctx context.Context, tx *gorm.DB, cmd IssueCommand) (*TaxationNote, error)
	AfterIssue(ctx context.Context, note *TaxationNote)
	Get(ctx context.Context, id string) (TaxationNote, error)
	ListByTaxpayer(ctx context.Context, taxpayerID string) ([]TaxationNote, error)
}

var (
	ErrNotFound          = fault.NotFound("note_not_found")
	ErrInvalidID         = fault.Invalid("invalid_note_id")
	ErrInvalidFiscalYear = fault.Invalid("invalid_fiscal_year")
	ErrDuplicateNote     = fault.Conflict("duplicate_note")
	ErrNotCollectible    = fault.Conflict("note_not_collectible")
	ErrMissingZone       = fault.Invalid("taxpayer_zone_missing")
	ErrNotOwner          = fault.Unauthorized("note_not_owner")
)
