package authorization

import (
	"context"

	"github.com/smallbiznis/redevance/internal/actorcontext"
	"github.com/smallbiznis/redevance/internal/fault"
)

const (
	ObjectTaxpayer      = "taxpayer"
	ObjectDeclaration   = "declaration"
	ObjectNote          = "note"
	ObjectPayment       = "payment"
	ObjectCompliance    = "compliance"
	ObjectControl       = "control"
	ObjectRectification = "rectification"
	ObjectDispute       = "dispute"
	ObjectEscalation    = "escalation"
	ObjectRecovery      = "recovery"
	ObjectNotification  = "notification"
	ObjectAuditLog      = "audit_log"
)

const (
	ActionTaxpayerView       = "taxpayer.view"
	ActionTaxpayerRegister   = "taxpayer.register"
	ActionTaxpayerUpdate     = "taxpayer.update"
	ActionTaxpayerDeactivate = "taxpayer.deactivate"

	ActionDeclarationSubmit = "declaration.submit"
	ActionDeclarationView   = "declaration.view"

	ActionNoteIssue = "note.issue"
	ActionNoteView  = "note.view"

	ActionPaymentRecord  = "payment.record"
	ActionPaymentConfirm = "payment.confirm"
	ActionPaymentView    = "payment.view"

	ActionComplianceView = "compliance.view"

	ActionControlPlan     = "control.plan"
	ActionControlComplete = "control.complete"
	ActionControlView     = "control.view"

	ActionRectificationGenerate = "rectification.generate"
	ActionRectificationIssue    = "rectification.issue"
	ActionRectificationView     = "rectification.view"

	ActionDisputeFile       = "dispute.file"
	ActionDisputeAdjudicate = "dispute.adjudicate"
	ActionDisputeView       = "dispute.view"

	ActionEscalationRun = "escalation.run"

	ActionRecoveryView   = "recovery.view"
	ActionRecoveryClose  = "recovery.close"
	ActionRecoveryExport = "recovery.export"

	ActionNotificationRetry = "notification.retry"

	ActionAuditLogView = "audit_log.view"
)

var (
	ErrForbidden     = fault.Unauthorized("forbidden")
	ErrInvalidActor  = fault.Unauthorized("invalid_actor")
	ErrInvalidObject = fault.Invalid("invalid_object")
	ErrInvalidAction = fault.Invalid("invalid_action")
)

// Service answers whether an actor's role tier may perform an action.
// Ownership rules (a taxpayer's own note, the assigned agent) are checked by the calling service.
type Service interface {
	Authorize(ctx context.Context, actor actorcontext.Actor, object string, action string) error
}

// Require resolves the caller from ctx and authorizes it in one step.
func Require(ctx context.Context, authz Service, object string, action string) (actorcontext.Actor, error) {
	actor, ok := actorcontext.FromContext(ctx)
	if !ok {
		return actorcontext.Actor{}, ErrInvalidActor
	}
	if err := authz.Authorize(ctx, actor, object, action); err != nil {
		return actor, err
	}
	return actor, nil
}
