package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/actorcontext"
	auditdomain "github.com/smallbiznis/redevance/internal/audit/domain"
	"github.com/smallbiznis/redevance/internal/authorization"
	"github.com/smallbiznis/redevance/internal/clock"
	"github.com/smallbiznis/redevance/internal/config"
	disputedomain "github.com/smallbiznis/redevance/internal/dispute/domain"
	"github.com/smallbiznis/redevance/internal/escalation/domain"
	notedomain "github.com/smallbiznis/redevance/internal/note/domain"
	notificationdomain "github.com/smallbiznis/redevance/internal/notification/domain"
	"github.com/smallbiznis/redevance/internal/observability/metrics"
	recoverydomain "github.com/smallbiznis/redevance/internal/recovery/domain"
	taxpayerdomain "github.com/smallbiznis/redevance/internal/taxpayer/domain"
	pkgdb "github.com/smallbiznis/redevance/pkg/db"
	"github.com/smallbiznis/redevance/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultBatchSize = 100

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Cfg           config.Config
	Clock         clock.Clock
	Repo          domain.Repository
	NoteRepo      notedomain.Repository
	TaxpayerRepo  taxpayerdomain.Repository
	DisputeRepo   disputedomain.Repository
	Recovery      recoverydomain.Service
	Notifications notificationdomain.Service
	Policy        *config.PolicyHolder
	Authz         authorization.Service
	AuditSvc      auditdomain.Service         `optional:"true"`
	Metrics       *metrics.EnforcementMetrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	authority     config.AuthorityConfig
	batchSize     int
	clock         clock.Clock
	repo          domain.Repository
	noteRepo      notedomain.Repository
	taxpayerRepo  taxpayerdomain.Repository
	disputeRepo   disputedomain.Repository
	recovery      recoverydomain.Service
	notifications notificationdomain.Service
	policy        *config.PolicyHolder
	authz         authorization.Service
	auditSvc      auditdomain.Service
	metrics       *metrics.EnforcementMetrics
}

func New(p Params) domain.Service {
	batchSize := p.Cfg.Scheduler.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("escalation.service"),
		authority:     p.Cfg.Authority,
		batchSize:     batchSize,
		clock:         p.Clock,
		repo:          p.Repo,
		noteRepo:      p.NoteRepo,
		taxpayerRepo:  p.TaxpayerRepo,
		disputeRepo:   p.DisputeRepo,
		recovery:      p.Recovery,
		notifications: p.Notifications,
		policy:        p.Policy,
		authz:         p.Authz,
		auditSvc:      p.AuditSvc,
		metrics:       p.Metrics,
	}
}

// noteOutcome collects what one note's transaction did, for post-commit work.
type noteOutcome struct {
	markedOverdue bool
	transition    *domain.Transition
	notifications []snowflake.ID
	referral      *recoverydomain.ReferResult
}

func (s *Service) RunTick(ctx context.Context) (domain.TickReport, error) {
	if _, err := authorization.Require(ctx, s.authz, authorization.ObjectEscalation, authorization.ActionEscalationRun); err != nil {
		return domain.TickReport{}, err
	}

	ctx, correlationID := correlation.EnsureCorrelationID(ctx)
	log := s.log.With(zap.String("correlation_id", correlationID))
	started := time.Now()
	defer func() { s.metrics.ObserveTick(time.Since(started)) }()

	now := s.clock.Now()
	policy := s.policy.Get().Escalation
	report := domain.TickReport{Transitions: []domain.Transition{}}

	var (
		pending   []snowflake.ID
		referrals []recoverydomain.ReferResult
		afterID   snowflake.ID
	)
	for {
		batch, err := s.noteRepo.ListCollectible(ctx, s.db, afterID, s.batchSize)
		if err != nil {
			return report, err
		}
		for _, note := range batch {
			afterID = note.ID
			if !now.After(note.DueDate) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Scanned++

			outcome, err := s.advance(ctx, note.ID, now, policy)
			if err != nil {
				report.Failed++
				s.metrics.IncOperationError("escalation.tick", err)
				log.Warn("escalation failed for note", zap.String("note_id", note.ID.String()), zap.Error(err))
				continue
			}
			if outcome.markedOverdue {
				report.MarkedOverdue++
			}
			if outcome.transition != nil {
				report.Transitions = append(report.Transitions, *outcome.transition)
				s.metrics.IncTransition(string(outcome.transition.From), string(outcome.transition.To))
				s.audit(ctx, outcome.transition)
			}
			if outcome.referral != nil {
				referrals = append(referrals, *outcome.referral)
			}
			pending = append(pending, outcome.notifications...)
		}
		if len(batch) < s.batchSize {
			break
		}
	}

	for _, referral := range referrals {
		s.recovery.AfterRefer(ctx, referral)
	}
	if len(pending) > 0 {
		report.Deliveries = s.notifications.Deliver(ctx, pending...)
	}

	log.Info("escalation tick finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("marked_overdue", report.MarkedOverdue),
		zap.Int("transitions", len(report.Transitions)),
		zap.Int("failed", report.Failed),
		zap.Int("notifications_sent", report.Deliveries.Sent),
	)
	return report, nil
}

// advance runs one note through a single transaction: overdue flag, at most one stage, its notification
// and, on the terminal stage, the recovery referral.
func (s *Service) advance(ctx context.Context, noteID snowflake.ID, now time.Time, policy config.EscalationPolicy) (noteOutcome, error) {
	var outcome noteOutcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		outcome = noteOutcome{}

		note, err := s.noteRepo.FindByIDForUpdate(ctx, tx, noteID)
		if err != nil {
			return err
		}
		if note == nil || !note.Collectible() || !now.After(note.DueDate) {
			return nil
		}

		dispute, err := s.disputeRepo.FindFiledByNote(ctx, tx, note.ID)
		if err != nil {
			return err
		}
		if dispute != nil {
			return nil
		}

		if note.Status != notedomain.StatusOverdue {
			if err := s.noteRepo.UpdateStatus(ctx, tx, note.ID, notedomain.StatusOverdue, now); err != nil {
				return err
			}
			outcome.markedOverdue = true
		}

		state, err := s.repo.FindByNoteForUpdate(ctx, tx, note.ID)
		if err != nil {
			return err
		}
		if state == nil {
			state = &domain.Escalation{NoteID: note.ID, TaxpayerID: note.TaxpayerID, Stage: domain.StageNone}
		}

		next, ok := domain.Decide(state.Stage, state.StageReachedAt, note.DueDate, now, policy)
		if !ok {
			return nil
		}

		taxpayer, err := s.taxpayerRepo.FindByID(ctx, tx, note.TaxpayerID)
		if err != nil {
			return err
		}
		if taxpayer == nil {
			return taxpayerdomain.ErrNotFound
		}

		from := state.Stage
		reachedAt := now
		state.Stage = next
		state.StageReachedAt = &reachedAt
		state.LastAttemptedAt = &reachedAt
		state.UpdatedAt = now

		var cmd notificationdomain.EnqueueCommand
		if next.Terminal() {
			referral, err := s.recovery.ReferInTx(ctx, tx, recoverydomain.ReferCommand{
				TaxpayerID: note.TaxpayerID,
				NoteID:     note.ID,
				AmountDue:  note.Outstanding(),
			})
			if err != nil {
				return err
			}
			dossierID := referral.Dossier.ID
			state.DossierID = &dossierID
			outcome.referral = &referral
			cmd = s.referralCommand(note, taxpayer, referral)
		} else {
			cmd = s.stageCommand(note, taxpayer, next)
		}

		if err := s.repo.Upsert(ctx, tx, state); err != nil {
			return err
		}

		n, created, err := s.notifications.Enqueue(ctx, tx, cmd)
		if err != nil {
			return err
		}
		if created {
			outcome.notifications = append(outcome.notifications, n.ID)
		}

		outcome.transition = &domain.Transition{
			NoteID:     note.ID,
			NoteNumber: note.Number,
			TaxpayerID: note.TaxpayerID,
			From:       from,
			To:         next,
			DossierID:  state.DossierID,
		}
		return nil
	})
	if err != nil {
		return noteOutcome{}, pkgdb.Classify(err)
	}
	return outcome, nil
}

func (s *Service) stageCommand(note *notedomain.TaxationNote, taxpayer *taxpayerdomain.Taxpayer, stage domain.Stage) notificationdomain.EnqueueCommand {
	taxpayerID := note.TaxpayerID
	return notificationdomain.EnqueueCommand{
		SubjectType:  notificationdomain.SubjectNote,
		SubjectID:    note.ID,
		TemplateKind: stage.Template(),
		TaxpayerID:   &taxpayerID,
		Recipient:    taxpayer.Email,
		Variables: map[string]any{
			"taxpayer_name": taxpayer.LegalName,
			"note_number":   note.Number,
			"due_date":      note.DueDate.Format(notificationdomain.DateLayout),
			"amount_due":    note.Outstanding().StringFixed(2),
		},
	}
}

// referralCommand addresses the authority. A new dossier is referred as a whole; a note joining
// an already referred dossier gets its own supplementary referral.
func (s *Service) referralCommand(note *notedomain.TaxationNote, taxpayer *taxpayerdomain.Taxpayer, referral recoverydomain.ReferResult) notificationdomain.EnqueueCommand {
	subjectType := notificationdomain.SubjectNote
	subjectID := note.ID
	if referral.Created {
		subjectType = notificationdomain.SubjectDossier
		subjectID = referral.Dossier.ID
	}
	taxpayerID := note.TaxpayerID
	return notificationdomain.EnqueueCommand{
		SubjectType:  subjectType,
		SubjectID:    subjectID,
		TemplateKind: notificationdomain.TemplateReferral,
		TaxpayerID:   &taxpayerID,
		Recipient:    s.authority.Email,
		Variables: map[string]any{
			"authority_name":    s.authority.Name,
			"dossier_reference": referral.Dossier.Reference,
			"taxpayer_name":     taxpayer.LegalName,
			"note_numbers":      note.Number,
			"amount_due":        note.Outstanding().StringFixed(2),
			"total":             referral.Dossier.AmountDue.StringFixed(2),
		},
	}
}

func (s *Service) Get(ctx context.Context, rawNoteID string) (domain.Escalation, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectNote, authorization.ActionNoteView)
	if err != nil {
		return domain.Escalation{}, err
	}

	noteID, err := snowflake.ParseString(strings.TrimSpace(rawNoteID))
	if err != nil || noteID == 0 {
		return domain.Escalation{}, domain.ErrInvalidNoteID
	}
	note, err := s.noteRepo.FindByID(ctx, s.db, noteID)
	if err != nil {
		return domain.Escalation{}, err
	}
	if note == nil {
		return domain.Escalation{}, notedomain.ErrNotFound
	}
	if actor.Role == actorcontext.RoleTaxpayer && actor.ID != note.TaxpayerID {
		return domain.Escalation{}, notedomain.ErrNotOwner
	}

	state, err := s.repo.FindByNote(ctx, s.db, noteID)
	if err != nil {
		return domain.Escalation{}, err
	}
	if state == nil {
		return domain.Escalation{NoteID: noteID, TaxpayerID: note.TaxpayerID, Stage: domain.StageNone}, nil
	}
	return *state, nil
}

func (s *Service) audit(ctx context.Context, transition *domain.Transition) {
	if s.auditSvc == nil {
		return
	}
	targetID := transition.NoteID.String()
	metadata := map[string]any{
		"from": string(transition.From),
		"to":   string(transition.To),
	}
	if transition.DossierID != nil {
		metadata["dossier_id"] = transition.DossierID.String()
	}
	if err := s.auditSvc.AuditLog(ctx, "escalation.advanced", "note", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", "escalation.advanced"), zap.Error(err))
	}
}
