package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Kind string

const (
	KindIndividual   Kind = "individual"
	KindOrganization Kind = "organization"
)

type Status string

const (
	StatusActive         Status = "active"
	StatusLiableForAudit Status = "liable_for_audit"
	StatusExempt         Status = "exempt"
	StatusInactive       Status = "inactive"
)

type Taxpayer struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	Kind            Kind         `json:"kind"`
	LegalName       string       `json:"legal_name"`
	Email           string       `json:"email"`
	ZoneCode        string       `json:"zone_code"`
	ZoneClass       string       `json:"zone_class"`
	Classification  string       `json:"classification"`
	ProfileComplete bool         `json:"profile_complete"`
	Status          Status       `json:"status"`
	DeactivatedAt   *time.Time   `json:"deactivated_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func (Taxpayer) TableName() string { return "taxpayers" }

// RefreshCompleteness recomputes the derived profile flag.
func (t *Taxpayer) RefreshCompleteness() {
	t.ProfileComplete = strings.TrimSpace(t.LegalName) != "" &&
		strings.TrimSpace(t.Email) != "" &&
		strings.TrimSpace(t.ZoneCode) != "" &&
		strings.TrimSpace(t.ZoneClass) != "" &&
		strings.TrimSpace(t.Classification) != ""
}

func (t Taxpayer) IsActive() bool {
	return t.Status != StatusInactive
}

func (k Kind) IsValid() bool {
	return k == KindIndividual || k == KindOrganization
}
