package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/actorcontext"
	auditdomain "github.com/smallbiznis/redevance/internal/audit/domain"
	"github.com/smallbiznis/redevance/internal/authorization"
	"github.com/smallbiznis/redevance/internal/clock"
	"github.com/smallbiznis/redevance/internal/control/domain"
	notedomain "github.com/smallbiznis/redevance/internal/note/domain"
	"github.com/smallbiznis/redevance/internal/observability/metrics"
	tariffdomain "github.com/smallbiznis/redevance/internal/tariff/domain"
	tariffservice "github.com/smallbiznis/redevance/internal/tariff/service"
	taxpayerdomain "github.com/smallbiznis/redevance/internal/taxpayer/domain"
	pkgdb "github.com/smallbiznis/redevance/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	minFiscalYear     = 2000
	maxFindingsLength = 4000
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	TaxpayerRepo taxpayerdomain.Repository
	NoteRepo     notedomain.Repository
	Notes        notedomain.Service
	Authz        authorization.Service
	AuditSvc     auditdomain.Service `optional:"true"`
	Metrics      *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	taxpayerRepo taxpayerdomain.Repository
	noteRepo     notedomain.Repository
	notes        notedomain.Service
	authz        authorization.Service
	auditSvc     auditdomain.Service
	metrics      *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("control.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		taxpayerRepo: p.TaxpayerRepo,
		noteRepo:     p.NoteRepo,
		notes:        p.Notes,
		authz:        p.Authz,
		auditSvc:     p.AuditSvc,
		metrics:      p.Metrics,
	}
}

func (s *Service) Plan(ctx context.Context, req domain.PlanRequest) (domain.Control, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectControl, authorization.ActionControlPlan)
	if err != nil {
		return domain.Control{}, err
	}

	taxpayerID, err := snowflake.ParseString(strings.TrimSpace(req.TaxpayerID))
	if err != nil || taxpayerID == 0 {
		return domain.Control{}, taxpayerdomain.ErrInvalidID
	}
	agentID, err := snowflake.ParseString(strings.TrimSpace(req.AssignedAgentID))
	if err != nil || agentID == 0 {
		return domain.Control{}, domain.ErrInvalidAgent
	}
	kind := domain.Kind(strings.ToLower(strings.TrimSpace(req.Kind)))
	if kind == "" {
		kind = domain.KindRoutine
	}
	if !kind.IsValid() {
		return domain.Control{}, domain.ErrInvalidKind
	}

	now := s.clock.Now()
	year := req.FiscalYear
	if year == 0 {
		year = now.Year()
	}
	if year < minFiscalYear || year > now.Year() {
		return domain.Control{}, domain.ErrInvalidYear
	}

	var plannedBy *snowflake.ID
	if actor.ID != 0 {
		id := actor.ID
		plannedBy = &id
	}
	control := &domain.Control{
		ID:              s.genID.Generate(),
		TaxpayerID:      taxpayerID,
		FiscalYear:      year,
		Kind:            kind,
		AssignedAgentID: agentID,
		PlannedBy:       plannedBy,
		Status:          domain.StatusPlanned,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.ScheduledFor != nil && !req.ScheduledFor.IsZero() {
		at := req.ScheduledFor.UTC()
		control.ScheduledFor = &at
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taxpayer, err := s.taxpayerRepo.FindByID(ctx, tx, taxpayerID)
		if err != nil {
			return err
		}
		if taxpayer == nil {
			return taxpayerdomain.ErrNotFound
		}
		if !taxpayer.IsActive() {
			return taxpayerdomain.ErrInactive
		}
		return s.repo.Insert(ctx, tx, control)
	})
	if err != nil {
		return domain.Control{}, pkgdb.Classify(err)
	}

	s.log.Info("control planned",
		zap.String("control_id", control.ID.String()),
		zap.String("taxpayer_id", taxpayerID.String()),
		zap.String("assigned_agent_id", agentID.String()),
	)
	s.audit(ctx, "control.planned", control.ID, map[string]any{
		"taxpayer_id":       taxpayerID.String(),
		"fiscal_year":       year,
		"kind":              string(kind),
		"assigned_agent_id": agentID.String(),
	})
	return *control, nil
}

func (s *Service) Complete(ctx context.Context, rawID string, req domain.CompleteRequest) (domain.CompleteResult, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectControl, authorization.ActionControlComplete)
	if err != nil {
		return domain.CompleteResult{}, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return domain.CompleteResult{}, domain.ErrInvalidID
	}
	findings := strings.TrimSpace(req.Findings)
	if findings == "" {
		return domain.CompleteResult{}, domain.ErrMissingFindings
	}
	if len(findings) > maxFindingsLength {
		findings = findings[:maxFindingsLength]
	}
	lines, err := normalizeLines(req.MeasuredLines)
	if err != nil {
		return domain.CompleteResult{}, err
	}

	var result domain.CompleteResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		control, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if control == nil {
			return domain.ErrNotFound
		}
		if actor.Role == actorcontext.RoleAgent && actor.ID != control.AssignedAgentID {
			return domain.ErrNotAssignedAgent
		}
		if control.Status != domain.StatusPlanned {
			return domain.ErrAlreadyCompleted
		}

		now := s.clock.Now()
		completedBy := actor.ID
		control.Status = domain.StatusCompleted
		control.Findings = findings
		control.Infraction = req.Infraction
		control.MeasuredLines = lines
		control.CompletedAt = &now
		control.CompletedBy = &completedBy
		control.UpdatedAt = now

		changed, err := s.repo.Complete(ctx, tx, control)
		if err != nil {
			return err
		}
		if !changed {
			return domain.ErrAlreadyCompleted
		}
		result.Control = *control

		note, err := s.issueFromMeasured(ctx, tx, control)
		if err != nil {
			return err
		}
		result.Note = note

		if !req.Infraction {
			return nil
		}

		infraction := strings.TrimSpace(req.InfractionText)
		if infraction == "" {
			infraction = findings
		}
		report := &domain.Report{
			ID:         s.genID.Generate(),
			ControlID:  control.ID,
			TaxpayerID: control.TaxpayerID,
			FiscalYear: control.FiscalYear,
			OfficerID:  actor.ID,
			Infraction: infraction,
			CreatedAt:  now,
		}
		if err := s.repo.InsertReport(ctx, tx, report); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return domain.ErrAlreadyCompleted
			}
			return err
		}
		if err := s.taxpayerRepo.UpdateStatus(ctx, tx, control.TaxpayerID, taxpayerdomain.StatusLiableForAudit, now); err != nil {
			return err
		}
		result.Report = report
		return nil
	})
	if err != nil {
		return domain.CompleteResult{}, pkgdb.Classify(err)
	}
	if result.Note != nil {
		s.notes.AfterIssue(ctx, result.Note)
	}

	outcome := "clean"
	if result.Report != nil {
		outcome = "infraction"
	}
	s.log.Info("control completed",
		zap.String("control_id", id.String()),
		zap.String("taxpayer_id", result.Control.TaxpayerID.String()),
		zap.String("outcome", outcome),
	)
	s.metrics.RecordControlCompleted(ctx, outcome)

	metadata := map[string]any{
		"taxpayer_id": result.Control.TaxpayerID.String(),
		"outcome":     outcome,
	}
	if result.Report != nil {
		metadata["report_id"] = result.Report.ID.String()
	}
	if result.Note != nil {
		metadata["note_id"] = result.Note.ID.String()
	}
	s.audit(ctx, "control.completed", id, metadata)
	return result, nil
}

// issueFromMeasured issues the fiscal year's note from the measured counts when the taxpayer has none.
// A live note is never replaced; differences with it go through rectification.
func (s *Service) issueFromMeasured(ctx context.Context, tx *gorm.DB, control *domain.Control) (*notedomain.TaxationNote, error) {
	lines := make([]tariffdomain.LineInput, 0, len(control.MeasuredLines))
	for _, line := range control.MeasuredLines {
		if line.Count > 0 {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, nil
	}

	existing, err := s.noteRepo.FindActive(ctx, tx, control.TaxpayerID, control.FiscalYear)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nil
	}

	sourceID := control.ID
	return s.notes.IssueInTx(ctx, tx, notedomain.IssueCommand{
		TaxpayerID: control.TaxpayerID,
		FiscalYear: control.FiscalYear,
		Lines:      lines,
		Source:     notedomain.SourceControl,
		SourceID:   &sourceID,
	})
}

func (s *Service) Get(ctx context.Context, rawID string) (domain.Control, error) {
	if _, err := authorization.Require(ctx, s.authz, authorization.ObjectControl, authorization.ActionControlView); err != nil {
		return domain.Control{}, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return domain.Control{}, domain.ErrInvalidID
	}
	control, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Control{}, err
	}
	if control == nil {
		return domain.Control{}, domain.ErrNotFound
	}
	return *control, nil
}

func (s *Service) ListByTaxpayer(ctx context.Context, rawTaxpayerID string) ([]domain.Control, error) {
	if _, err := authorization.Require(ctx, s.authz, authorization.ObjectControl, authorization.ActionControlView); err != nil {
		return nil, err
	}

	taxpayerID, err := snowflake.ParseString(strings.TrimSpace(rawTaxpayerID))
	if err != nil || taxpayerID == 0 {
		return nil, taxpayerdomain.ErrInvalidID
	}
	controls, err := s.repo.ListByTaxpayer(ctx, s.db, taxpayerID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Control, 0, len(controls))
	for _, c := range controls {
		out = append(out, *c)
	}
	return out, nil
}

func (s *Service) GetReport(ctx context.Context, rawID string) (domain.Report, error) {
	if _, err := authorization.Require(ctx, s.authz, authorization.ObjectControl, authorization.ActionControlView); err != nil {
		return domain.Report{}, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return domain.Report{}, domain.ErrInvalidReportID
	}
	report, err := s.repo.FindReport(ctx, s.db, id)
	if err != nil {
		return domain.Report{}, err
	}
	if report == nil {
		return domain.Report{}, domain.ErrReportNotFound
	}
	return *report, nil
}

func (s *Service) audit(ctx context.Context, action string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := id.String()
	if err := s.auditSvc.AuditLog(ctx, action, "control", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func normalizeLines(lines []tariffdomain.LineInput) (datatypes.JSONSlice[tariffdomain.LineInput], error) {
	if len(lines) == 0 {
		return nil, nil
	}
	out := make(datatypes.JSONSlice[tariffdomain.LineInput], 0, len(lines))
	for _, line := range lines {
		category, subCategory := tariffservice.NormalizeCategory(line.Category, line.SubCategory)
		if category == "" || line.Count < 0 {
			return nil, domain.ErrInvalidLine
		}
		out = append(out, tariffdomain.LineInput{Category: category, SubCategory: subCategory, Count: line.Count})
	}
	return out, nil
}
