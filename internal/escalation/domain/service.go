package domain

import (
	"context"

	"github.com/smallbiznis/redevance/internal/fault"
)

type Service interface {
	// RunTick advances every overdue collectible note by at most one stage.
	RunTick(ctx context.Context) (TickReport, error)
	Get(ctx context.Context, noteID string) (Escalation, error)
}

var ErrInvalidNoteID = fault.Invalid("invalid_note_id")
