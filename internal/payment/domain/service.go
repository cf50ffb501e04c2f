package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/redevance/internal/fault"
)

type RecordRequest struct {
	TargetKind string     `json:"target_kind"`
	TargetID   string     `json:"target_id"`
	Amount     string     `json:"amount"`
	Channel    string     `json:"channel"`
	Reference  string     `json:"reference"`
	PaidAt     *time.Time `json:"paid_at"`
}

type ConfirmResult struct {
	Payment          Payment `json:"payment"`
	TargetStatus     string  `json:"target_status"`
	ConfirmedTotal   string  `json:"confirmed_total"`
	AlreadyConfirmed bool    `json:"already_confirmed"`
}

type Service interface {
	Record(ctx context.Context, req RecordRequest) (Payment, error)
	// Confirm is idempotent: confirming a confirmed payment returns it unchanged.
	Confirm(ctx context.Context, paymentID string) (ConfirmResult, error)
	ListByTarget(ctx context.Context, targetKind string, targetID string) ([]Payment, error)
}

var (
	ErrNotFound          = fault.NotFound("payment_not_found")
	ErrInvalidID         = fault.Invalid("invalid_payment_id")
	ErrInvalidAmount     = fault.Invalid("invalid_amount")
	ErrInvalidTargetKind = fault.Invalid("invalid_target_kind")
	ErrInvalidTargetID   = fault.Invalid("invalid_target_id")
	ErrTargetNotFound    = fault.NotFound("payment_target_not_found")
	ErrTargetNotPayable  = fault.Conflict("payment_target_not_payable")
	ErrNotOwner          = fault.Unauthorized("payment_target_not_owner")
)
