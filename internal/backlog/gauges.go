package backlog

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Gauges describe the enforcement backlog at the last refresh. They live on their own registry
// so a push only ships backlog series.
type Gauges struct {
	registry     *prometheus.Registry
	notes        *prometheus.GaugeVec
	escalations  *prometheus.GaugeVec
	dossiers     *prometheus.GaugeVec
	dossierDue   prometheus.Gauge
	notification *prometheus.GaugeVec
}

type statusCount struct {
	Status string
	Total  int64
}

func NewGauges(serviceName, environment string) *Gauges {
	labels := prometheus.Labels{"service": serviceName, "env": environment}
	g := &Gauges{
		registry: prometheus.NewRegistry(),
		notes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "redevance_backlog_notes",
			Help:        "Taxation notes by status.",
			ConstLabels: labels,
		}, []string{"status"}),
		escalations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "redevance_backlog_escalations",
			Help:        "Notes by escalation stage reached.",
			ConstLabels: labels,
		}, []string{"stage"}),
		dossiers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "redevance_backlog_dossiers",
			Help:        "Recovery dossiers by status.",
			ConstLabels: labels,
		}, []string{"status"}),
		dossierDue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "redevance_backlog_referred_amount_due",
			Help:        "Amount due across referred dossiers.",
			ConstLabels: labels,
		}),
		notification: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "redevance_backlog_notifications",
			Help:        "Notification attempts by delivery status.",
			ConstLabels: labels,
		}, []string{"status"}),
	}
	g.registry.MustRegister(g.notes, g.escalations, g.dossiers, g.dossierDue, g.notification)
	return g
}

func (g *Gauges) Registry() *prometheus.Registry {
	if g == nil {
		return nil
	}
	return g.registry
}

// Refresh recomputes every gauge from the store. Series for statuses that disappeared are dropped.
func (g *Gauges) Refresh(ctx context.Context, db *gorm.DB) error {
	if g == nil || db == nil {
		return nil
	}

	notes, err := countByColumn(ctx, db, "taxation_notes", "status")
	if err != nil {
		return err
	}
	escalations, err := countByColumn(ctx, db, "note_escalations", "stage")
	if err != nil {
		return err
	}
	dossiers, err := countByColumn(ctx, db, "recovery_dossiers", "status")
	if err != nil {
		return err
	}
	notifications, err := countByColumn(ctx, db, "notifications", "status")
	if err != nil {
		return err
	}

	var due float64
	if err := db.WithContext(ctx).
		Table("recovery_dossiers").
		Select("COALESCE(SUM(amount_due), 0)").
		Where("status = ?", "referred").
		Scan(&due).Error; err != nil {
		return err
	}

	setAll(g.notes, notes)
	setAll(g.escalations, escalations)
	setAll(g.dossiers, dossiers)
	setAll(g.notification, notifications)
	g.dossierDue.Set(due)
	return nil
}

func countByColumn(ctx context.Context, db *gorm.DB, table, column string) ([]statusCount, error) {
	var rows []statusCount
	err := db.WithContext(ctx).
		Table(table).
		Select(column + " AS status, COUNT(*) AS total").
		Group(column).
		Scan(&rows).Error
	return rows, err
}

func setAll(vec *prometheus.GaugeVec, rows []statusCount) {
	vec.Reset()
	for _, row := range rows {
		vec.WithLabelValues(row.Status).Set(float64(row.Total))
	}
}
