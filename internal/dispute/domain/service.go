package domain

import (
	"context"

	"github.com/smallbiznis/redevance/internal/fault"
)

type FileRequest struct {
	NoteID string `json:"note_id"`
	Motif  string `json:"motif"`
}

type AdjudicateRequest struct {
	Decision     string `json:"decision"`
	DecisionText string `json:"decision_text"`
}

type Service interface {
	// File opens a dispute on a note owned by the calling taxpayer, inside the contestation window.
	File(ctx context.Context, req FileRequest) (Dispute, error)
	// Adjudicate closes a filed dispute. Acceptance voids the disputed note.
	Adjudicate(ctx context.Context, id string, req AdjudicateRequest) (Dispute, error)
	Get(ctx context.Context, id string) (Dispute, error)
	ListByTaxpayer(ctx context.Context, taxpayerID string) ([]Dispute, error)
}

var (
	ErrNotFound           = fault.NotFound("dispute_not_found")
	ErrInvalidID          = fault.Invalid("invalid_dispute_id")
	ErrMissingMotif       = fault.Invalid("missing_motif")
	ErrInvalidDecision    = fault.Invalid("invalid_decision")
	ErrMissingDecision    = fault.Invalid("missing_decision_text")
	ErrWindowClosed       = fault.Conflict("contestation_window_closed")
	ErrNoteNotContestable = fault.Conflict("note_not_contestable")
	ErrAlreadyFiled       = fault.Conflict("dispute_already_filed")
	ErrAlreadyDecided     = fault.Conflict("dispute_already_decided")
	ErrNoteReferred       = fault.Conflict("note_referred_for_recovery")
	ErrNotOwner           = fault.Unauthorized("dispute_not_owner")
)
