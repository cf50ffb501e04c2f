package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/actorcontext"
	auditdomain "github.com/smallbiznis/redevance/internal/audit/domain"
	"github.com/smallbiznis/redevance/internal/authorization"
	"github.com/smallbiznis/redevance/internal/clock"
	"github.com/smallbiznis/redevance/internal/config"
	"github.com/smallbiznis/redevance/internal/dispute/domain"
	notedomain "github.com/smallbiznis/redevance/internal/note/domain"
	notificationdomain "github.com/smallbiznis/redevance/internal/notification/domain"
	"github.com/smallbiznis/redevance/internal/observability/metrics"
	recoverydomain "github.com/smallbiznis/redevance/internal/recovery/domain"
	taxpayerdomain "github.com/smallbiznis/redevance/internal/taxpayer/domain"
	pkgdb "github.com/smallbiznis/redevance/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxTextLength = 4000

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          domain.Repository
	NoteRepo      notedomain.Repository
	RecoveryRepo  recoverydomain.Repository
	TaxpayerRepo  taxpayerdomain.Repository
	Notifications notificationdomain.Service
	Policy        *config.PolicyHolder
	Authz         authorization.Service
	AuditSvc      auditdomain.Service `optional:"true"`
	Metrics       *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          domain.Repository
	noteRepo      notedomain.Repository
	recoveryRepo  recoverydomain.Repository
	taxpayerRepo  taxpayerdomain.Repository
	notifications notificationdomain.Service
	policy        *config.PolicyHolder
	authz         authorization.Service
	auditSvc      auditdomain.Service
	metrics       *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("dispute.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		noteRepo:      p.NoteRepo,
		recoveryRepo:  p.RecoveryRepo,
		taxpayerRepo:  p.TaxpayerRepo,
		notifications: p.Notifications,
		policy:        p.Policy,
		authz:         p.Authz,
		auditSvc:      p.AuditSvc,
		metrics:       p.Metrics,
	}
}

func (s *Service) File(ctx context.Context, req domain.FileRequest) (domain.Dispute, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectDispute, authorization.ActionDisputeFile)
	if err != nil {
		return domain.Dispute{}, err
	}

	noteID, err := snowflake.ParseString(strings.TrimSpace(req.NoteID))
	if err != nil || noteID == 0 {
		return domain.Dispute{}, notedomain.ErrInvalidID
	}
	motif := truncate(strings.TrimSpace(req.Motif))
	if motif == "" {
		return domain.Dispute{}, domain.ErrMissingMotif
	}

	window := s.policy.Get().ContestationWindowDays
	var filed *domain.Dispute
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		note, err := s.noteRepo.FindByIDForUpdate(ctx, tx, noteID)
		if err != nil {
			return err
		}
		if note == nil {
			return notedomain.ErrNotFound
		}
		if actor.ID != note.TaxpayerID {
			return domain.ErrNotOwner
		}
		if note.Status == notedomain.StatusVoid || note.Status == notedomain.StatusDraft {
			return domain.ErrNoteNotContestable
		}

		now := s.clock.Now()
		if !domain.WithinWindow(note.IssuedAt, now, window) {
			return domain.ErrWindowClosed
		}

		existing, err := s.repo.FindFiledByNote(ctx, tx, noteID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyFiled
		}

		dispute := &domain.Dispute{
			ID:         s.genID.Generate(),
			NoteID:     noteID,
			TaxpayerID: note.TaxpayerID,
			Motif:      motif,
			Status:     domain.StatusFiled,
			FiledAt:    now,
			CreatedAt:  now,
		}
		if err := s.repo.Insert(ctx, tx, dispute); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return domain.ErrAlreadyFiled
			}
			return err
		}
		filed = dispute
		return nil
	})
	if err != nil {
		return domain.Dispute{}, pkgdb.Classify(err)
	}

	s.log.Info("dispute filed",
		zap.String("dispute_id", filed.ID.String()),
		zap.String("note_id", noteID.String()),
		zap.String("taxpayer_id", filed.TaxpayerID.String()),
	)
	s.metrics.RecordDisputeFiled(ctx)
	s.audit(ctx, "dispute.filed", filed.ID, map[string]any{
		"note_id": noteID.String(),
	})
	return *filed, nil
}

func (s *Service) Adjudicate(ctx context.Context, rawID string, req domain.AdjudicateRequest) (domain.Dispute, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectDispute, authorization.ActionDisputeAdjudicate)
	if err != nil {
		return domain.Dispute{}, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return domain.Dispute{}, domain.ErrInvalidID
	}
	decision, ok := domain.ParseDecision(req.Decision)
	if !ok {
		return domain.Dispute{}, domain.ErrInvalidDecision
	}
	text := truncate(strings.TrimSpace(req.DecisionText))
	if text == "" {
		return domain.Dispute{}, domain.ErrMissingDecision
	}

	var (
		decided      *domain.Dispute
		notification *notificationdomain.Notification
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dispute, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if dispute == nil {
			return domain.ErrNotFound
		}
		if dispute.Status != domain.StatusFiled {
			return domain.ErrAlreadyDecided
		}
		// A note held by a referred dossier must leave recovery before it can be voided.
		if decision == domain.DecisionAccepted {
			dossier, err := s.recoveryRepo.FindReferredForNote(ctx, tx, dispute.NoteID)
			if err != nil {
				return err
			}
			if dossier != nil {
				return domain.ErrNoteReferred
			}
		}

		now := s.clock.Now()
		adjudicatorID := actor.ID
		role := string(actor.Role)
		dispute.Status = decision.Status()
		dispute.DecisionText = &text
		dispute.DecidedAt = &now
		dispute.AdjudicatorID = &adjudicatorID
		dispute.AdjudicatorRole = &role

		changed, err := s.repo.Decide(ctx, tx, dispute)
		if err != nil {
			return err
		}
		if !changed {
			return domain.ErrAlreadyDecided
		}

		note, err := s.noteRepo.FindByIDForUpdate(ctx, tx, dispute.NoteID)
		if err != nil {
			return err
		}
		if note == nil {
			return notedomain.ErrNotFound
		}
		if decision == domain.DecisionAccepted && note.Status != notedomain.StatusVoid {
			if err := s.noteRepo.Void(ctx, tx, note.ID, dispute.ID.String(), now); err != nil {
				return err
			}
		}

		n, err := s.enqueueDecision(ctx, tx, dispute, note, decision)
		if err != nil {
			return err
		}
		decided = dispute
		notification = n
		return nil
	})
	if err != nil {
		return domain.Dispute{}, pkgdb.Classify(err)
	}

	s.log.Info("dispute adjudicated",
		zap.String("dispute_id", id.String()),
		zap.String("note_id", decided.NoteID.String()),
		zap.String("decision", string(decision)),
	)
	if notification != nil {
		s.notifications.Deliver(ctx, notification.ID)
	}
	s.audit(ctx, "dispute.adjudicated", id, map[string]any{
		"note_id":  decided.NoteID.String(),
		"decision": string(decision),
	})
	return *decided, nil
}

func (s *Service) enqueueDecision(ctx context.Context, tx *gorm.DB, dispute *domain.Dispute, note *notedomain.TaxationNote, decision domain.Decision) (*notificationdomain.Notification, error) {
	taxpayer, err := s.taxpayerRepo.FindByID(ctx, tx, dispute.TaxpayerID)
	if err != nil {
		return nil, err
	}
	if taxpayer == nil {
		return nil, taxpayerdomain.ErrNotFound
	}

	taxpayerID := dispute.TaxpayerID
	n, _, err := s.notifications.Enqueue(ctx, tx, notificationdomain.EnqueueCommand{
		SubjectType:  notificationdomain.SubjectDispute,
		SubjectID:    dispute.ID,
		TemplateKind: notificationdomain.TemplateDisputeDecision,
		TaxpayerID:   &taxpayerID,
		Recipient:    taxpayer.Email,
		Variables: map[string]any{
			"taxpayer_name": taxpayer.LegalName,
			"note_number":   note.Number,
			"decision":      string(decision),
			"decision_text": *dispute.DecisionText,
		},
	})
	return n, err
}

func (s *Service) Get(ctx context.Context, rawID string) (domain.Dispute, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectDispute, authorization.ActionDisputeView)
	if err != nil {
		return domain.Dispute{}, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return domain.Dispute{}, domain.ErrInvalidID
	}
	dispute, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Dispute{}, err
	}
	if dispute == nil {
		return domain.Dispute{}, domain.ErrNotFound
	}
	if actor.Role == actorcontext.RoleTaxpayer && actor.ID != dispute.TaxpayerID {
		return domain.Dispute{}, domain.ErrNotOwner
	}
	return *dispute, nil
}

func (s *Service) ListByTaxpayer(ctx context.Context, rawTaxpayerID string) ([]domain.Dispute, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectDispute, authorization.ActionDisputeView)
	if err != nil {
		return nil, err
	}

	taxpayerID, err := snowflake.ParseString(strings.TrimSpace(rawTaxpayerID))
	if err != nil || taxpayerID == 0 {
		return nil, taxpayerdomain.ErrInvalidID
	}
	if actor.Role == actorcontext.RoleTaxpayer && actor.ID != taxpayerID {
		return nil, domain.ErrNotOwner
	}

	disputes, err := s.repo.ListByTaxpayer(ctx, s.db, taxpayerID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Dispute, 0, len(disputes))
	for _, d := range disputes {
		out = append(out, *d)
	}
	return out, nil
}

func (s *Service) audit(ctx context.Context, action string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := id.String()
	if err := s.auditSvc.AuditLog(ctx, action, "dispute", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func truncate(text string) string {
	if len(text) > maxTextLength {
		return text[:maxTextLength]
	}
	return text
}
