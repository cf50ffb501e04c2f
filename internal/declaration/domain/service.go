package domain

import (
	"context"

	"github.com/smallbiznis/redevance/internal/fault"
	notedomain "github.com/smallbiznis/redevance/internal/note/domain"
	tariffdomain "github.com/smallbiznis/redevance/internal/tariff/domain"
)

type SubmitRequest struct {
	TaxpayerID string                   `json:"taxpayer_id"`
	FiscalYear int                      `json:"fiscal_year"`
	Lines      []tariffdomain.LineInput `json:"lines"`
}

type SubmitResult struct {
	Declaration Declaration             `json:"declaration"`
	Note        notedomain.TaxationNote `json:"note"`
}

type Service interface {
	// Submit records the declaration and issues its taxation note in the same transaction.
	Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error)
	Get(ctx context.Context, id string) (Declaration, error)
	ListByTaxpayer(ctx context.Context, taxpayerID string) ([]Declaration, error)
}

var (
	ErrNotFound        = fault.NotFound("declaration_not_found")
	ErrInvalidID       = fault.Invalid("invalid_declaration_id")
	ErrAlreadyDeclared = fault.Conflict("already_declared")
	ErrNotOwner        = fault.Unauthorized("declaration_not_owner")
)
