package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// DateLayout formats dates in letter variables.
const DateLayout = "02/01/2006"

type TemplateKind string

const (
	TemplateReminder            TemplateKind = "reminder"
	TemplateWarning             TemplateKind = "warning"
	TemplateFormalNotice        TemplateKind = "formal_notice"
	TemplateFinalNotice         TemplateKind = "final_notice"
	TemplateReferral            TemplateKind = "referral"
	TemplateDisputeDecision     TemplateKind = "dispute_decision"
	TemplateRectificationNotice TemplateKind = "rectification_notice"
)

// NeedsDocument reports whether the kind carries a rendered letter.
func (k TemplateKind) NeedsDocument() bool {
	switch k {
	case TemplateFormalNotice, TemplateFinalNotice, TemplateReferral, TemplateDisputeDecision, TemplateRectificationNotice:
		return true
	default:
		return false
	}
}

type SubjectType string

const (
	SubjectNote          SubjectType = "note"
	SubjectDossier       SubjectType = "dossier"
	SubjectDispute       SubjectType = "dispute"
	SubjectRectification SubjectType = "rectification"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Notification is one delivery attempt record, unique per (subject, template).
type Notification struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	SubjectType  SubjectType       `json:"subject_type"`
	SubjectID    snowflake.ID      `json:"subject_id"`
	TemplateKind TemplateKind      `json:"template_kind"`
	TaxpayerID   *snowflake.ID     `json:"taxpayer_id,omitempty"`
	Recipient    string            `json:"recipient"`
	Variables    datatypes.JSONMap `json:"variables"`
	Status       Status            `json:"status"`
	Attempts     int               `json:"attempts"`
	LastError    *string           `json:"last_error,omitempty"`
	ArtifactKey  *string           `json:"artifact_key,omitempty"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	ClaimedUntil *time.Time        `json:"claimed_until,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (Notification) TableName() string { return "notifications" }

// Attempt is the outcome of one delivery try.
type Attempt struct {
	Status      Status
	Attempts    int
	LastError   *string
	ArtifactKey *string
	SentAt      *time.Time
	At          time.Time
}

// NextAttempt folds a delivery outcome into the record. A failure past maxAttempts is terminal.
func NextAttempt(n Notification, deliveryErr error, artifactKey *string, at time.Time, maxAttempts int) Attempt {
	attempt := Attempt{
		Status:      StatusPending,
		Attempts:    n.Attempts + 1,
		ArtifactKey: n.ArtifactKey,
		At:          at,
	}
	if artifactKey != nil && *artifactKey != "" {
		attempt.ArtifactKey = artifactKey
	}
	if deliveryErr == nil {
		sentAt := at
		attempt.Status = StatusSent
		attempt.SentAt = &sentAt
		return attempt
	}
	msg := deliveryErr.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	attempt.LastError = &msg
	if maxAttempts > 0 && attempt.Attempts >= maxAttempts {
		attempt.Status = StatusFailed
	}
	return attempt
}
