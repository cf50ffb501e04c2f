package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/authorization"
	"github.com/smallbiznis/redevance/internal/clock"
	"github.com/smallbiznis/redevance/internal/config"
	"github.com/smallbiznis/redevance/internal/notification/domain"
	"github.com/smallbiznis/redevance/internal/observability/metrics"
	"github.com/smallbiznis/redevance/internal/providers/email"
	"github.com/smallbiznis/redevance/internal/providers/pdf"
	"github.com/smallbiznis/redevance/internal/providers/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	deliveryConcurrency = 4
	deliveryTimeout     = 30 * time.Second
	claimLease          = deliveryTimeout + time.Minute
	defaultRetryBatch   = 100
)

var errNoRecipient = errors.New("notification has no recipient")

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Email   email.Provider
	PDF     pdf.Provider
	Archive storage.Archive
	Policy  *config.PolicyHolder
	Authz   authorization.Service
	Metrics *metrics.EnforcementMetrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	email   email.Provider
	pdf     pdf.Provider
	archive storage.Archive
	policy  *config.PolicyHolder
	authz   authorization.Service
	metrics *metrics.EnforcementMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("notification.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		email:   p.Email,
		pdf:     p.PDF,
		archive: p.Archive,
		policy:  p.Policy,
		authz:   p.Authz,
		metrics: p.Metrics,
	}
}

func (s *Service) Enqueue(ctx context.Context, tx *gorm.DB, cmd domain.EnqueueCommand) (*domain.Notification, bool, error) {
	if cmd.TemplateKind == "" {
		return nil, false, domain.ErrInvalidTemplate
	}
	if cmd.SubjectType == "" || cmd.SubjectID == 0 {
		return nil, false, domain.ErrInvalidSubject
	}

	now := s.clock.Now()
	n := &domain.Notification{
		ID:           s.genID.Generate(),
		SubjectType:  cmd.SubjectType,
		SubjectID:    cmd.SubjectID,
		TemplateKind: cmd.TemplateKind,
		TaxpayerID:   cmd.TaxpayerID,
		Recipient:    strings.TrimSpace(cmd.Recipient),
		Variables:    cmd.Variables,
		Status:       domain.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if n.Variables == nil {
		n.Variables = map[string]any{}
	}

	created, err := s.repo.InsertIgnore(ctx, tx, n)
	if err != nil {
		return nil, false, err
	}
	if created {
		return n, true, nil
	}

	existing, err := s.repo.FindBySubject(ctx, tx, cmd.SubjectType, cmd.SubjectID, cmd.TemplateKind)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *Service) Deliver(ctx context.Context, ids ...snowflake.ID) domain.DeliveryReport {
	items := make([]*domain.Notification, 0, len(ids))
	for _, id := range ids {
		n, err := s.repo.FindByID(ctx, s.db, id)
		if err != nil {
			s.log.Warn("load notification failed", zap.String("notification_id", id.String()), zap.Error(err))
			continue
		}
		if n == nil || n.Status != domain.StatusPending {
			continue
		}
		items = append(items, n)
	}
	return s.deliverAll(ctx, items)
}

func (s *Service) RetryPending(ctx context.Context, limit int) (domain.DeliveryReport, error) {
	if _, err := authorization.Require(ctx, s.authz, authorization.ObjectNotification, authorization.ActionNotificationRetry); err != nil {
		return domain.DeliveryReport{}, err
	}
	if limit <= 0 {
		limit = defaultRetryBatch
	}

	items, err := s.repo.ListPending(ctx, s.db, s.clock.Now(), limit)
	if err != nil {
		return domain.DeliveryReport{}, err
	}
	report := s.deliverAll(ctx, items)
	if report.Attempted > 0 {
		s.log.Info("notification retry sweep",
			zap.Int("attempted", report.Attempted),
			zap.Int("sent", report.Sent),
			zap.Int("failed", report.Failed),
			zap.Int("exhausted", report.Exhausted),
		)
	}
	return report, nil
}

func (s *Service) ListBySubject(ctx context.Context, subjectType domain.SubjectType, subjectID snowflake.ID) ([]domain.Notification, error) {
	items, err := s.repo.ListBySubject(ctx, s.db, subjectType, subjectID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Notification, 0, len(items))
	for _, n := range items {
		out = append(out, *n)
	}
	return out, nil
}

func (s *Service) deliverAll(ctx context.Context, items []*domain.Notification) domain.DeliveryReport {
	outcomes := make([]domain.Status, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deliveryConcurrency)
	for i, n := range items {
		g.Go(func() error {
			outcomes[i] = s.claimAndDeliver(gctx, n.ID)
			return nil
		})
	}
	_ = g.Wait()

	var report domain.DeliveryReport
	for _, status := range outcomes {
		if status == "" {
			continue
		}
		report.Attempted++
		switch status {
		case domain.StatusSent:
			report.Sent++
		case domain.StatusFailed:
			report.Failed++
			report.Exhausted++
		default:
			report.Failed++
		}
	}
	return report
}

// claimAndDeliver sends the notification only if this caller wins its claim.
// An empty status means another sender holds it or it is no longer pending.
func (s *Service) claimAndDeliver(ctx context.Context, id snowflake.ID) domain.Status {
	now := s.clock.Now()
	claimed, err := s.repo.Claim(ctx, s.db, id, now, now.Add(claimLease))
	if err != nil {
		s.log.Warn("claim notification failed", zap.String("notification_id", id.String()), zap.Error(err))
		return ""
	}
	if !claimed {
		s.log.Debug("notification held elsewhere", zap.String("notification_id", id.String()))
		return ""
	}

	n, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil || n == nil {
		s.log.Warn("reload claimed notification failed", zap.String("notification_id", id.String()), zap.Error(err))
		return ""
	}
	return s.deliverOne(ctx, n)
}

// deliverOne renders, archives and sends n, then records the attempt. It never fails the caller.
func (s *Service) deliverOne(ctx context.Context, n *domain.Notification) domain.Status {
	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	letter := domain.Compose(*n)
	artifactKey, sendErr := s.send(ctx, n, letter)

	attempt := domain.NextAttempt(*n, sendErr, artifactKey, s.clock.Now(), s.policy.Get().NotificationMaxAttempts)
	if err := s.repo.RecordAttempt(context.WithoutCancel(ctx), s.db, n.ID, attempt); err != nil {
		s.log.Error("record notification attempt failed", zap.String("notification_id", n.ID.String()), zap.Error(err))
	}

	outcome := "sent"
	switch attempt.Status {
	case domain.StatusSent:
		s.log.Info("notification sent",
			zap.String("notification_id", n.ID.String()),
			zap.String("template", string(n.TemplateKind)),
			zap.Int("attempts", attempt.Attempts),
		)
	case domain.StatusFailed:
		outcome = "exhausted"
		s.log.Error("notification exhausted",
			zap.String("notification_id", n.ID.String()),
			zap.String("template", string(n.TemplateKind)),
			zap.Int("attempts", attempt.Attempts),
			zap.Error(sendErr),
		)
	default:
		outcome = "failed"
		s.log.Warn("notification delivery failed",
			zap.String("notification_id", n.ID.String()),
			zap.String("template", string(n.TemplateKind)),
			zap.Int("attempts", attempt.Attempts),
			zap.Error(sendErr),
		)
	}
	s.metrics.IncDelivery(string(n.TemplateKind), outcome)
	return attempt.Status
}

func (s *Service) send(ctx context.Context, n *domain.Notification, letter domain.Letter) (*string, error) {
	if n.Recipient == "" {
		return nil, errNoRecipient
	}

	var (
		attachments []email.Attachment
		artifactKey *string
	)
	if n.TemplateKind.NeedsDocument() {
		doc, err := s.pdf.RenderLetter(ctx, toPDF(letter, s.clock.Now()))
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", n.TemplateKind, err)
		}
		if len(doc) > 0 {
			filename := fmt.Sprintf("%s-%s.pdf", n.TemplateKind, n.SubjectID.String())
			key := fmt.Sprintf("letters/%s/%s/%s", n.SubjectType, n.SubjectID.String(), filename)
			stored, err := s.archive.Put(ctx, key, doc, "application/pdf")
			if err != nil {
				return nil, fmt.Errorf("archive %s: %w", key, err)
			}
			if stored != "" {
				artifactKey = &stored
			}
			attachments = append(attachments, email.Attachment{
				Filename:    filename,
				ContentType: "application/pdf",
				Data:        doc,
			})
		}
	}

	html, err := email.RenderLetter(toEmail(letter))
	if err != nil {
		return artifactKey, err
	}
	err = s.email.Send(ctx, email.Message{
		To:          []string{n.Recipient},
		Subject:     letter.Subject,
		HTMLBody:    html,
		Attachments: attachments,
	})
	return artifactKey, err
}

func toPDF(letter domain.Letter, issuedAt time.Time) pdf.Letter {
	out := pdf.Letter{
		Title:      letter.Title,
		Reference:  letter.Reference,
		Recipient:  letter.Addressee,
		IssuedAt:   issuedAt,
		Paragraphs: letter.Paragraphs,
		Total:      letter.Total,
		Signature:  letter.Signature,
	}
	for _, line := range letter.Lines {
		out.Lines = append(out.Lines, pdf.Line{Description: line.Label, Qty: 1, UnitPrice: line.Amount, Amount: line.Amount})
	}
	return out
}

func toEmail(letter domain.Letter) email.LetterData {
	out := email.LetterData{
		Title:      letter.Title,
		Recipient:  letter.Addressee,
		Reference:  letter.Reference,
		Paragraphs: letter.Paragraphs,
	}
	for _, line := range letter.Lines {
		out.Lines = append(out.Lines, email.LetterLine{Label: line.Label, Amount: line.Amount})
	}
	if letter.Total != "" {
		out.Lines = append(out.Lines, email.LetterLine{Label: "Total", Amount: letter.Total})
	}
	return out
}
