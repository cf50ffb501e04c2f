package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusFiled    Status = "filed"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
)

// ParseDecision accepts the decision in any case.
func ParseDecision(raw string) (Decision, bool) {
	switch Decision(strings.ToLower(strings.TrimSpace(raw))) {
	case DecisionAccepted:
		return DecisionAccepted, true
	case DecisionRejected:
		return DecisionRejected, true
	default:
		return "", false
	}
}

// Status maps a decision to the terminal dispute status.
func (d Decision) Status() Status {
	if d == DecisionAccepted {
		return StatusAccepted
	}
	return StatusRejected
}

type Dispute struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	NoteID          snowflake.ID  `json:"note_id"`
	TaxpayerID      snowflake.ID  `json:"taxpayer_id"`
	Motif           string        `json:"motif"`
	Status          Status        `json:"status"`
	DecisionText    *string       `json:"decision_text,omitempty"`
	DecidedAt       *time.Time    `json:"decided_at,omitempty"`
	AdjudicatorID   *snowflake.ID `json:"adjudicator_id,omitempty"`
	AdjudicatorRole *string       `json:"adjudicator_role,omitempty"`
	FiledAt         time.Time     `json:"filed_at"`
	CreatedAt       time.Time     `json:"created_at"`
}

func (Dispute) TableName() string { return "disputes" }

// WithinWindow reports whether a note issued at issuedAt can still be contested at now.
func WithinWindow(issuedAt, now time.Time, windowDays int) bool {
	if windowDays <= 0 {
		return false
	}
	return !now.After(issuedAt.AddDate(0, 0, windowDays))
}
