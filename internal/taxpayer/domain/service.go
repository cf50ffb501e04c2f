package domain

import (
	"context"

	"github.com/smallbiznis/redevance/internal/fault"
	"github.com/smallbiznis/redevance/pkg/db/pagination"
)

type RegisterRequest struct {
	Kind           string `json:"kind"`
	LegalName      string `json:"legal_name"`
	Email          string `json:"email"`
	ZoneCode       string `json:"zone_code"`
	ZoneClass      string `json:"zone_class"`
	Classification string `json:"classification"`
}

type UpdateProfileRequest struct {
	ID             string  `json:"-"`
	LegalName      *string `json:"legal_name"`
	Email          *string `json:"email"`
	ZoneCode       *string `json:"zone_code"`
	ZoneClass      *string `json:"zone_class"`
	Classification *string `json:"classification"`
}

type ListRequest struct {
	pagination.Pagination
	Status   string
	ZoneCode string
}

type ListResponse struct {
	pagination.PageInfo
	Taxpayers []Taxpayer `json:"taxpayers"`
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (Taxpayer, error)
	UpdateProfile(ctx context.Context, req UpdateProfileRequest) (Taxpayer, error)
	Get(ctx context.Context, id string) (Taxpayer, error)
	Deactivate(ctx context.Context, id string) (Taxpayer, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrNotFound         = fault.NotFound("taxpayer_not_found")
	ErrInvalidID        = fault.Invalid("invalid_taxpayer_id")
	ErrInvalidKind      = fault.Invalid("invalid_taxpayer_kind")
	ErrInvalidEmail     = fault.Invalid("invalid_email")
	ErrInvalidZone      = fault.Invalid("invalid_zone")
	ErrInvalidStatus    = fault.Invalid("invalid_taxpayer_status")
	ErrInvalidPageToken = fault.Invalid("invalid_page_token")
	ErrInactive         = fault.Conflict("taxpayer_inactive")
	ErrNotOwner         = fault.Unauthorized("taxpayer_not_owner")
)
