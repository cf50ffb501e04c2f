package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/config"
	notificationdomain "github.com/smallbiznis/redevance/internal/notification/domain"
)

type Stage string

const (
	StageNone           Stage = "none"
	StageReminder       Stage = "reminder"
	StageWarning        Stage = "warning"
	StageFormalNotice   Stage = "formal_notice"
	StageFinalNotice    Stage = "final_notice"
	StageForcedRecovery Stage = "forced_recovery"
)

var stageOrder = []Stage{StageNone, StageReminder, StageWarning, StageFormalNotice, StageFinalNotice, StageForcedRecovery}

func (s Stage) rank() int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return 0
}

// Next returns the stage following s. The terminal stage has no successor.
func (s Stage) Next() (Stage, bool) {
	i := s.rank()
	if i+1 >= len(stageOrder) {
		return "", false
	}
	return stageOrder[i+1], true
}

func (s Stage) Terminal() bool {
	return s == StageForcedRecovery
}

// Template is the notification sent on entering s.
func (s Stage) Template() notificationdomain.TemplateKind {
	switch s {
	case StageReminder:
		return notificationdomain.TemplateReminder
	case StageWarning:
		return notificationdomain.TemplateWarning
	case StageFormalNotice:
		return notificationdomain.TemplateFormalNotice
	case StageFinalNotice:
		return notificationdomain.TemplateFinalNotice
	case StageForcedRecovery:
		return notificationdomain.TemplateReferral
	default:
		return ""
	}
}

// Escalation is the durable record of how far a note has been escalated.
type Escalation struct {
	NoteID          snowflake.ID  `gorm:"primaryKey" json:"note_id"`
	TaxpayerID      snowflake.ID  `json:"taxpayer_id"`
	Stage           Stage         `json:"stage"`
	StageReachedAt  *time.Time    `json:"stage_reached_at,omitempty"`
	LastAttemptedAt *time.Time    `json:"last_attempted_at,omitempty"`
	DossierID       *snowflake.ID `json:"dossier_id,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (Escalation) TableName() string { return "note_escalations" }

func threshold(stage Stage, p config.EscalationPolicy) int {
	switch stage {
	case StageReminder:
		return p.ReminderDays
	case StageWarning:
		return p.WarningDays
	case StageFormalNotice:
		return p.FormalNoticeDays
	case StageFinalNotice:
		return p.FinalNoticeDays
	case StageForcedRecovery:
		return p.ForcedRecoveryDays
	default:
		return 0
	}
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// Decide returns the single next stage a note should enter at now, if any.
// A stage is entered once its threshold after the due date has elapsed and,
// past the first stage, once the minimum interval since the previous stage has elapsed.
func Decide(current Stage, reachedAt *time.Time, dueDate, now time.Time, p config.EscalationPolicy) (Stage, bool) {
	if current == "" {
		current = StageNone
	}
	if !now.After(dueDate) {
		return "", false
	}
	next, ok := current.Next()
	if !ok {
		return "", false
	}
	if now.Sub(dueDate) < days(threshold(next, p)) {
		return "", false
	}
	if current != StageNone && reachedAt != nil && now.Sub(*reachedAt) < days(p.MinIntervalDays) {
		return "", false
	}
	return next, true
}

// Transition is one stage advancement applied by a tick.
type Transition struct {
	NoteID     snowflake.ID  `json:"note_id"`
	NoteNumber string        `json:"note_number"`
	TaxpayerID snowflake.ID  `json:"taxpayer_id"`
	From       Stage         `json:"from"`
	To         Stage         `json:"to"`
	DossierID  *snowflake.ID `json:"dossier_id,omitempty"`
}

type TickReport struct {
	Scanned       int                               `json:"scanned"`
	MarkedOverdue int                               `json:"marked_overdue"`
	Transitions   []Transition                      `json:"transitions"`
	Failed        int                               `json:"failed"`
	Deliveries    notificationdomain.DeliveryReport `json:"deliveries"`
}
