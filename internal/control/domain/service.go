package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/redevance/internal/fault"
	notedomain "github.com/smallbiznis/redevance/internal/note/domain"
	tariffdomain "github.com/smallbiznis/redevance/internal/tariff/domain"
)

type PlanRequest struct {
	TaxpayerID      string     `json:"taxpayer_id"`
	FiscalYear      int        `json:"fiscal_year"`
	Kind            string     `json:"kind"`
	AssignedAgentID string     `json:"assigned_agent_id"`
	ScheduledFor    *time.Time `json:"scheduled_for"`
}

type CompleteRequest struct {
	Findings       string                   `json:"findings"`
	Infraction     bool                     `json:"infraction"`
	InfractionText string                   `json:"infraction_text"`
	MeasuredLines  []tariffdomain.LineInput `json:"measured_lines"`
}

type CompleteResult struct {
	Control Control `json:"control"`
	Report  *Report `json:"report,omitempty"`
	// Note is set when the measured counts produced the year's first note.
	Note *notedomain.TaxationNote `json:"note,omitempty"`
}

type Service interface {
	Plan(ctx context.Context, req PlanRequest) (Control, error)
	// Complete records the findings. An infraction creates the Report and flags the taxpayer in the same transaction,
	// and measured counts issue the year's note when the taxpayer has none.
	Complete(ctx context.Context, controlID string, req CompleteRequest) (CompleteResult, error)
	Get(ctx context.Context, controlID string) (Control, error)
	ListByTaxpayer(ctx context.Context, taxpayerID string) ([]Control, error)
	GetReport(ctx context.Context, reportID string) (Report, error)
}

var (
	ErrNotFound         = fault.NotFound("control_not_found")
	ErrReportNotFound   = fault.NotFound("report_not_found")
	ErrInvalidID        = fault.Invalid("invalid_control_id")
	ErrInvalidReportID  = fault.Invalid("invalid_report_id")
	ErrInvalidKind      = fault.Invalid("invalid_control_kind")
	ErrInvalidAgent     = fault.Invalid("invalid_assigned_agent")
	ErrInvalidYear      = fault.Invalid("invalid_fiscal_year")
	ErrMissingFindings  = fault.Invalid("missing_findings")
	ErrInvalidLine      = fault.Invalid("invalid_measured_line")
	ErrAlreadyCompleted = fault.Conflict("control_already_completed")
	ErrNotAssignedAgent = fault.Unauthorized("control_not_assigned_agent")
)
