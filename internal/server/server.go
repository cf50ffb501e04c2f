package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/redevance/internal/audit/domain"
	compliancedomain "github.com/smallbiznis/redevance/internal/compliance/domain"
	"github.com/smallbiznis/redevance/internal/authorization"
	"github.com/smallbiznis/redevance/internal/config"
	controldomain "github.com/smallbiznis/redevance/internal/control/domain"
	declarationdomain "github.com/smallbiznis/redevance/internal/declaration/domain"
	disputedomain "github.com/smallbiznis/redevance/internal/dispute/domain"
	"github.com/smallbiznis/redevance/internal/domains"
	escalationdomain "github.com/smallbiznis/redevance/internal/escalation/domain"
	notedomain "github.com/smallbiznis/redevance/internal/note/domain"
	notificationdomain "github.com/smallbiznis/redevance/internal/notification/domain"
	"github.com/smallbiznis/redevance/internal/observability"
	obslogger "github.com/smallbiznis/redevance/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/redevance/internal/observability/metrics"
	obstracing "github.com/smallbiznis/redevance/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/redevance/internal/payment/domain"
	"github.com/smallbiznis/redevance/internal/ratelimit"
	recoverydomain "github.com/smallbiznis/redevance/internal/recovery/domain"
	rectificationdomain "github.com/smallbiznis/redevance/internal/rectification/domain"
	tariffdomain "github.com/smallbiznis/redevance/internal/tariff/domain"
	taxpayerdomain "github.com/smallbiznis/redevance/internal/taxpayer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	domains.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Stack:    obsCfg.Debug(),
		Classify: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine           *gin.Engine
	cfg              config.Config
	taxpayerSvc      taxpayerdomain.Service
	tariffSvc        tariffdomain.Service
	noteSvc          notedomain.Service
	paymentSvc       paymentdomain.Service
	complianceSvc    compliancedomain.Service
	declarationSvc   declarationdomain.Service
	controlSvc       controldomain.Service
	rectificationSvc rectificationdomain.Service
	disputeSvc       disputedomain.Service
	recoverySvc      recoverydomain.Service
	escalationSvc    escalationdomain.Service
	notificationSvc  notificationdomain.Service
	auditSvc         auditdomain.Service
	authzSvc         authorization.Service
	taxpayerLimiter  *ratelimit.TaxpayerLimiter
	obsMetrics       *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin              *gin.Engine
	Cfg              config.Config
	TaxpayerSvc      taxpayerdomain.Service
	TariffSvc        tariffdomain.Service
	NoteSvc          notedomain.Service
	PaymentSvc       paymentdomain.Service
	ComplianceSvc    compliancedomain.Service
	DeclarationSvc   declarationdomain.Service
	ControlSvc       controldomain.Service
	RectificationSvc rectificationdomain.Service
	DisputeSvc       disputedomain.Service
	RecoverySvc      recoverydomain.Service
	EscalationSvc    escalationdomain.Service
	NotificationSvc  notificationdomain.Service
	AuditSvc         auditdomain.Service
	AuthzSvc         authorization.Service
	TaxpayerLimiter  *ratelimit.TaxpayerLimiter `optional:"true"`
	ObsMetrics       *obsmetrics.Metrics        `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:           p.Gin,
		cfg:              p.Cfg,
		taxpayerSvc:      p.TaxpayerSvc,
		tariffSvc:        p.TariffSvc,
		noteSvc:          p.NoteSvc,
		paymentSvc:       p.PaymentSvc,
		complianceSvc:    p.ComplianceSvc,
		declarationSvc:   p.DeclarationSvc,
		controlSvc:       p.ControlSvc,
		rectificationSvc: p.RectificationSvc,
		disputeSvc:       p.DisputeSvc,
		recoverySvc:      p.RecoverySvc,
		escalationSvc:    p.EscalationSvc,
		notificationSvc:  p.NotificationSvc,
		auditSvc:         p.AuditSvc,
		authzSvc:         p.AuthzSvc,
		taxpayerLimiter:  p.TaxpayerLimiter,
		obsMetrics:       p.ObsMetrics,
	}

	s.registerAPIRoutes()
	s.registerAdminRoutes()
	s.registerFallback()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(ActorContext(), RequireActor(), s.TaxpayerRateLimit())

	api.POST("/taxpayers", s.RegisterTaxpayer)
	api.GET("/taxpayers", s.ListTaxpayers)
	api.GET("/taxpayers/:id", s.GetTaxpayer)
	api.PATCH("/taxpayers/:id", s.UpdateTaxpayer)
	api.POST("/taxpayers/:id/deactivate", s.DeactivateTaxpayer)
	api.GET("/taxpayers/:id/compliance", s.ResolveCompliance)
	api.GET("/taxpayers/:id/declarations", s.ListDeclarationsByTaxpayer)
	api.GET("/taxpayers/:id/notes", s.ListNotesByTaxpayer)
	api.GET("/taxpayers/:id/controls", s.ListControlsByTaxpayer)
	api.GET("/taxpayers/:id/rectifications", s.ListRectificationsByTaxpayer)
	api.GET("/taxpayers/:id/disputes", s.ListDisputesByTaxpayer)

	api.GET("/tariffs", s.ListTariffs)

	api.POST("/declarations", s.SubmitDeclaration)
	api.GET("/declarations/:id", s.GetDeclaration)

	api.POST("/notes", s.IssueNote)
	api.GET("/notes/:id", s.GetNote)
	api.GET("/notes/:id/escalation", s.GetNoteEscalation)
	api.GET("/notes/:id/payments", s.ListNotePayments)

	api.POST("/payments", s.RecordPayment)
	api.POST("/payments/:id/confirm", s.ConfirmPayment)

	api.POST("/controls", s.PlanControl)
	api.GET("/controls/:id", s.GetControl)
	api.POST("/controls/:id/complete", s.CompleteControl)
	api.GET("/reports/:id", s.GetReport)
	api.GET("/reports/:id/gap", s.SuggestGap)

	api.POST("/rectifications", s.GenerateRectification)
	api.GET("/rectifications/:id", s.GetRectification)
	api.POST("/rectifications/:id/issue", s.IssueRectification)
	api.GET("/rectifications/:id/payments", s.ListRectificationPayments)

	api.POST("/disputes", s.FileDispute)
	api.GET("/disputes/:id", s.GetDispute)
	api.POST("/disputes/:id/adjudicate", s.AdjudicateDispute)

	api.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(ActorContext(), RequireActor())

	admin.POST("/escalation/tick", s.RunEscalationTick)
	admin.POST("/notifications/retry", s.RetryNotifications)

	admin.GET("/dossiers", s.ListDossiers)
	admin.GET("/dossiers/export", s.ExportDossiers)
	admin.GET("/dossiers/:id", s.GetDossier)
	admin.POST("/dossiers/:id/close", s.CloseDossier)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
