package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/fault"
	"gorm.io/gorm"
)

type EnqueueCommand struct {
	SubjectType  SubjectType
	SubjectID    snowflake.ID
	TemplateKind TemplateKind
	TaxpayerID   *snowflake.ID
	Recipient    string
	Variables    map[string]any
}

type DeliveryReport struct {
	Attempted int `json:"attempted"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Exhausted int `json:"exhausted"`
}

func (r *DeliveryReport) Add(other DeliveryReport) {
	r.Attempted += other.Attempted
	r.Sent += other.Sent
	r.Failed += other.Failed
	r.Exhausted += other.Exhausted
}

type Service interface {
	// Enqueue records the attempt inside tx. An existing attempt for the same subject and template is returned with created=false.
	Enqueue(ctx context.Context, tx *gorm.DB, cmd EnqueueCommand) (n *Notification, created bool, err error)
	// Deliver tries the given attempts once. Delivery failures are recorded, never returned.
	Deliver(ctx context.Context, ids ...snowflake.ID) DeliveryReport
	// RetryPending sweeps pending attempts that have not exhausted their budget.
	RetryPending(ctx context.Context, limit int) (DeliveryReport, error)
	ListBySubject(ctx context.Context, subjectType SubjectType, subjectID snowflake.ID) ([]Notification, error)
}

var (
	ErrInvalidTemplate = fault.Invalid("invalid_template_kind")
	ErrInvalidSubject  = fault.Invalid("invalid_notification_subject")
)
