package domain

import (
	"context"

	"github.com/smallbiznis/redevance/internal/fault"
)

type GenerateRequest struct {
	ReportID      string `json:"report_id"`
	GapAmount     string `json:"gap_amount"`
	PenaltyAmount string `json:"penalty_amount"`
	Motif         string `json:"motif"`
}

type Service interface {
	// Generate creates a draft rectification for a report. A report is rectified at most once.
	Generate(ctx context.Context, req GenerateRequest) (RectificationNote, error)
	// SuggestGap prices the devices measured by the control beyond those on the original note.
	SuggestGap(ctx context.Context, reportID string) (GapSuggestion, error)
	Issue(ctx context.Context, id string) (RectificationNote, error)
	Get(ctx context.Context, id string) (RectificationNote, error)
	ListByTaxpayer(ctx context.Context, taxpayerID string) ([]RectificationNote, error)
}

var (
	ErrNotFound            = fault.NotFound("rectification_not_found")
	ErrInvalidID           = fault.Invalid("invalid_rectification_id")
	ErrInvalidReportID     = fault.Invalid("invalid_report_id")
	ErrInvalidAmount       = fault.Invalid("invalid_rectification_amount")
	ErrMissingMotif        = fault.Invalid("missing_motif")
	ErrOriginalNoteMissing = fault.NotFound("original_note_not_found")
	ErrAlreadyRectified    = fault.Conflict("already_rectified")
	ErrNotDraft            = fault.Conflict("rectification_not_draft")
	ErrNotOwner            = fault.Unauthorized("rectification_not_owner")
)
