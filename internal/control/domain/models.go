package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	tariffdomain "github.com/smallbiznis/redevance/internal/tariff/domain"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPlanned   Status = "planned"
	StatusCompleted Status = "completed"
)

type Kind string

const (
	KindRoutine  Kind = "routine"
	KindTargeted Kind = "targeted"
	KindFollowUp Kind = "follow_up"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindRoutine, KindTargeted, KindFollowUp:
		return true
	default:
		return false
	}
}

type Control struct {
	ID              snowflake.ID                                `gorm:"primaryKey" json:"id"`
	TaxpayerID      snowflake.ID                                `json:"taxpayer_id"`
	FiscalYear      int                                         `json:"fiscal_year"`
	Kind            Kind                                        `json:"kind"`
	AssignedAgentID snowflake.ID                                `json:"assigned_agent_id"`
	PlannedBy       *snowflake.ID                               `json:"planned_by,omitempty"`
	Status          Status                                      `json:"status"`
	ScheduledFor    *time.Time                                  `json:"scheduled_for,omitempty"`
	Findings        string                                      `json:"findings"`
	Infraction      bool                                        `json:"infraction"`
	MeasuredLines   datatypes.JSONSlice[tariffdomain.LineInput] `json:"measured_lines,omitempty"`
	CompletedAt     *time.Time                                  `json:"completed_at,omitempty"`
	CompletedBy     *snowflake.ID                               `json:"completed_by,omitempty"`
	CreatedAt       time.Time                                   `json:"created_at"`
	UpdatedAt       time.Time                                   `json:"updated_at"`
}

func (Control) TableName() string { return "controls" }

// Report is the formal infraction record. A control yields at most one.
type Report struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	ControlID  snowflake.ID `json:"control_id"`
	TaxpayerID snowflake.ID `json:"taxpayer_id"`
	FiscalYear int          `json:"fiscal_year"`
	OfficerID  snowflake.ID `json:"officer_id"`
	Infraction string       `json:"infraction"`
	CreatedAt  time.Time    `json:"created_at"`
}

func (Report) TableName() string { return "reports" }
