package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/redevance/internal/actorcontext"
	auditdomain "github.com/smallbiznis/redevance/internal/audit/domain"
	"github.com/smallbiznis/redevance/internal/authorization"
	"github.com/smallbiznis/redevance/internal/clock"
	"github.com/smallbiznis/redevance/internal/taxpayer/domain"
	"github.com/smallbiznis/redevance/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var zonePattern = regexp.MustCompile(`^[A-Z0-9]{2,8}$`)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Authz    authorization.Service
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	authz    authorization.Service
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("taxpayer.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		authz:    p.Authz,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (domain.Taxpayer, error) {
	if _, err := authorization.Require(ctx, s.authz, authorization.ObjectTaxpayer, authorization.ActionTaxpayerRegister); err != nil {
		return domain.Taxpayer{}, err
	}

	kind := domain.Kind(strings.ToLower(strings.TrimSpace(req.Kind)))
	if !kind.IsValid() {
		return domain.Taxpayer{}, domain.ErrInvalidKind
	}

	now := s.clock.Now()
	taxpayer := domain.Taxpayer{
		ID:        s.genID.Generate(),
		Kind:      kind,
		Status:    domain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := applyProfile(&taxpayer, &req.LegalName, &req.Email, &req.ZoneCode, &req.ZoneClass, &req.Classification); err != nil {
		return domain.Taxpayer{}, err
	}

	if err := s.repo.Insert(ctx, s.db, &taxpayer); err != nil {
		return domain.Taxpayer{}, err
	}

	s.audit(ctx, "taxpayer.registered", taxpayer.ID, map[string]any{
		"kind":             string(taxpayer.Kind),
		"zone_code":        taxpayer.ZoneCode,
		"profile_complete": taxpayer.ProfileComplete,
	})
	return taxpayer, nil
}

func (s *Service) UpdateProfile(ctx context.Context, req domain.UpdateProfileRequest) (domain.Taxpayer, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectTaxpayer, authorization.ActionTaxpayerUpdate)
	if err != nil {
		return domain.Taxpayer{}, err
	}

	id, err := parseID(req.ID)
	if err != nil {
		return domain.Taxpayer{}, err
	}
	if err := ensureOwner(actor, id); err != nil {
		return domain.Taxpayer{}, err
	}

	var updated domain.Taxpayer
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taxpayer, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if taxpayer == nil {
			return domain.ErrNotFound
		}
		if !taxpayer.IsActive() {
			return domain.ErrInactive
		}

		if err := applyProfile(taxpayer, req.LegalName, req.Email, req.ZoneCode, req.ZoneClass, req.Classification); err != nil {
			return err
		}
		taxpayer.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, taxpayer); err != nil {
			return err
		}
		updated = *taxpayer
		return nil
	})
	if err != nil {
		return domain.Taxpayer{}, err
	}

	s.audit(ctx, "taxpayer.profile_updated", updated.ID, map[string]any{
		"profile_complete": updated.ProfileComplete,
	})
	return updated, nil
}

func (s *Service) Get(ctx context.Context, rawID string) (domain.Taxpayer, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectTaxpayer, authorization.ActionTaxpayerView)
	if err != nil {
		return domain.Taxpayer{}, err
	}

	id, err := parseID(rawID)
	if err != nil {
		return domain.Taxpayer{}, err
	}
	if err := ensureOwner(actor, id); err != nil {
		return domain.Taxpayer{}, err
	}

	taxpayer, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Taxpayer{}, err
	}
	if taxpayer == nil {
		return domain.Taxpayer{}, domain.ErrNotFound
	}
	return *taxpayer, nil
}

// Deactivate marks the taxpayer inactive. Records are never deleted.
func (s *Service) Deactivate(ctx context.Context, rawID string) (domain.Taxpayer, error) {
	if _, err := authorization.Require(ctx, s.authz, authorization.ObjectTaxpayer, authorization.ActionTaxpayerDeactivate); err != nil {
		return domain.Taxpayer{}, err
	}

	id, err := parseID(rawID)
	if err != nil {
		return domain.Taxpayer{}, err
	}

	var updated domain.Taxpayer
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taxpayer, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if taxpayer == nil {
			return domain.ErrNotFound
		}
		if !taxpayer.IsActive() {
			updated = *taxpayer
			return nil
		}

		now := s.clock.Now()
		taxpayer.Status = domain.StatusInactive
		taxpayer.DeactivatedAt = &now
		taxpayer.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, taxpayer); err != nil {
			return err
		}
		updated = *taxpayer
		return nil
	})
	if err != nil {
		return domain.Taxpayer{}, err
	}

	s.audit(ctx, "taxpayer.deactivated", updated.ID, nil)
	return updated, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	if _, err := authorization.Require(ctx, s.authz, authorization.ObjectTaxpayer, authorization.ActionTaxpayerRegister); err != nil {
		return domain.ListResponse{}, err
	}

	filter := domain.ListFilter{
		ZoneCode: strings.ToUpper(strings.TrimSpace(req.ZoneCode)),
		Limit:    pagination.NormalizeSize(req.PageSize),
	}
	if status := strings.TrimSpace(req.Status); status != "" {
		switch domain.Status(status) {
		case domain.StatusActive, domain.StatusLiableForAudit, domain.StatusExempt, domain.StatusInactive:
			filter.Status = domain.Status(status)
		default:
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		filter.AfterID = afterID
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}
	items, hasMore := pagination.Trim(items, filter.Limit)

	resp := domain.ListResponse{Taxpayers: make([]domain.Taxpayer, 0, len(items))}
	for _, item := range items {
		resp.Taxpayers = append(resp.Taxpayers, *item)
	}
	if hasMore && len(items) > 0 {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: items[len(items)-1].ID.String()})
		if err == nil {
			resp.NextPageToken = token
			resp.HasMore = true
		}
	}
	return resp, nil
}

func (s *Service) audit(ctx context.Context, action string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := id.String()
	_ = s.auditSvc.AuditLog(ctx, action, "taxpayer", &targetID, metadata)
}

func applyProfile(t *domain.Taxpayer, legalName, email, zoneCode, zoneClass, classification *string) error {
	if legalName != nil {
		t.LegalName = strings.TrimSpace(*legalName)
	}
	if email != nil {
		value := strings.TrimSpace(*email)
		if value != "" && !strings.Contains(value, "@") {
			return domain.ErrInvalidEmail
		}
		t.Email = value
	}
	if zoneCode != nil {
		value := strings.ToUpper(strings.TrimSpace(*zoneCode))
		if value != "" && !zonePattern.MatchString(value) {
			return domain.ErrInvalidZone
		}
		t.ZoneCode = value
	}
	if zoneClass != nil {
		t.ZoneClass = strings.ToUpper(strings.TrimSpace(*zoneClass))
	}
	if classification != nil {
		t.Classification = slug.Make(*classification)
	}
	t.RefreshCompleteness()
	return nil
}

// ensureOwner restricts taxpayer callers to their own record.
func ensureOwner(actor actorcontext.Actor, id snowflake.ID) error {
	if actor.Role == actorcontext.RoleTaxpayer && actor.ID != id {
		return domain.ErrNotOwner
	}
	return nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
