package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/redevance/internal/actorcontext"
	auditdomain "github.com/smallbiznis/redevance/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

// NewEnforcer loads policies through the gorm adapter and seeds the role tiers.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

// NewMemoryEnforcer builds an enforcer without persistence.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor actorcontext.Actor, object string, action string) error {
	if _, ok := actorcontext.ParseRole(string(actor.Role)); !ok {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(actor.Subject(), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("role", string(actor.Role)),
			zap.String("object", object),
			zap.String("action", action),
		)
		s.auditDenied(ctx, actor, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actor actorcontext.Actor, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	targetID := object
	_ = s.auditSvc.AuditLog(actorcontext.WithActor(ctx, actor), "authorization.denied", "authorization", &targetID, map[string]any{
		"object":  object,
		"action":  action,
		"subject": actor.Subject(),
	})
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Taxpayers act on their own records; ownership is checked by each service.
		{"role:taxpayer", ObjectTaxpayer, ActionTaxpayerView},
		{"role:taxpayer", ObjectTaxpayer, ActionTaxpayerUpdate},
		{"role:taxpayer", ObjectDeclaration, ActionDeclarationSubmit},
		{"role:taxpayer", ObjectDeclaration, ActionDeclarationView},
		{"role:taxpayer", ObjectNote, ActionNoteView},
		{"role:taxpayer", ObjectPayment, ActionPaymentRecord},
		{"role:taxpayer", ObjectPayment, ActionPaymentView},
		{"role:taxpayer", ObjectCompliance, ActionComplianceView},
		{"role:taxpayer", ObjectDispute, ActionDisputeFile},
		{"role:taxpayer", ObjectDispute, ActionDisputeView},
		{"role:taxpayer", ObjectRectification, ActionRectificationView},

		// Cashier
		{"role:cashier", ObjectTaxpayer, ActionTaxpayerView},
		{"role:cashier", ObjectNote, ActionNoteView},
		{"role:cashier", ObjectPayment, ActionPaymentRecord},
		{"role:cashier", ObjectPayment, ActionPaymentConfirm},
		{"role:cashier", ObjectPayment, ActionPaymentView},
		{"role:cashier", ObjectCompliance, ActionComplianceView},

		// Field agent
		{"role:agent", ObjectTaxpayer, ActionTaxpayerView},
		{"role:agent", ObjectTaxpayer, ActionTaxpayerRegister},
		{"role:agent", ObjectTaxpayer, ActionTaxpayerUpdate},
		{"role:agent", ObjectDeclaration, ActionDeclarationSubmit},
		{"role:agent", ObjectDeclaration, ActionDeclarationView},
		{"role:agent", ObjectNote, ActionNoteView},
		{"role:agent", ObjectNote, ActionNoteIssue},
		{"role:agent", ObjectPayment, ActionPaymentView},
		{"role:agent", ObjectCompliance, ActionComplianceView},
		{"role:agent", ObjectControl, ActionControlView},
		{"role:agent", ObjectControl, ActionControlComplete},
		{"role:agent", ObjectRectification, ActionRectificationView},
		{"role:agent", ObjectDispute, ActionDisputeView},

		// Supervisor
		{"role:supervisor", ObjectTaxpayer, ActionTaxpayerDeactivate},
		{"role:supervisor", ObjectPayment, ActionPaymentConfirm},
		{"role:supervisor", ObjectControl, ActionControlPlan},
		{"role:supervisor", ObjectRectification, ActionRectificationGenerate},
		{"role:supervisor", ObjectRectification, ActionRectificationIssue},
		{"role:supervisor", ObjectDispute, ActionDisputeAdjudicate},
		{"role:supervisor", ObjectEscalation, ActionEscalationRun},
		{"role:supervisor", ObjectRecovery, ActionRecoveryView},
		{"role:supervisor", ObjectRecovery, ActionRecoveryExport},
		{"role:supervisor", ObjectNotification, ActionNotificationRetry},
		{"role:supervisor", ObjectAuditLog, ActionAuditLogView},

		// External judicial authority
		{"role:authority", ObjectRecovery, ActionRecoveryView},
		{"role:authority", ObjectRecovery, ActionRecoveryClose},
		{"role:authority", ObjectRecovery, ActionRecoveryExport},

		// Scheduled jobs
		{"role:system", ObjectEscalation, ActionEscalationRun},
		{"role:system", ObjectNotification, ActionNotificationRetry},
		{"role:system", ObjectNote, ActionNoteIssue},
		{"role:system", ObjectNote, ActionNoteView},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	groupings := [][]string{
		{"role:supervisor", "role:agent"},
		{"role:director", "role:supervisor"},
	}
	for _, grouping := range groupings {
		if _, err := enforcer.AddGroupingPolicy(grouping); err != nil {
			return err
		}
	}
	return nil
}
