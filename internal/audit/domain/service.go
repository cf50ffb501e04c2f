package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/redevance/internal/fault"
	"github.com/smallbiznis/redevance/pkg/db/pagination"
)

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string
	TargetType string
	TargetID   string
	ActorRole  string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

// Service records who did what to which record. The actor is read from the context.
type Service interface {
	AuditLog(ctx context.Context, action string, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidPageToken = fault.Invalid("invalid_page_token")
	ErrInvalidTimeRange = fault.Invalid("invalid_time_range")
	ErrInvalidAction    = fault.Invalid("invalid_action")
)
