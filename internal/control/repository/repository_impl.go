package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/control/domain"
	pkgdb "github.com/smallbiznis/redevance/pkg/db"
	"gorm.io/gorm"
)

const controlColumns = `id, taxpayer_id, fiscal_year, kind, assigned_agent_id, planned_by, status,
	scheduled_for, findings, infraction, measured_lines, completed_at, completed_by, created_at, updated_at`

const reportColumns = `id, control_id, taxpayer_id, fiscal_year, officer_id, infraction, created_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, control *domain.Control) error {
	return db.WithContext(ctx).Create(control).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Control, error) {
	return r.findOne(ctx, db, `SELECT `+controlColumns+` FROM controls WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Control, error) {
	return r.findOne(ctx, db, `SELECT `+controlColumns+` FROM controls WHERE id = ?`+pkgdb.ForUpdate(db), id)
}

func (r *repo) Complete(ctx context.Context, db *gorm.DB, control *domain.Control) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE controls
		 SET status = ?, findings = ?, infraction = ?, measured_lines = ?, completed_at = ?, completed_by = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusCompleted, control.Findings, control.Infraction, control.MeasuredLines,
		control.CompletedAt, control.CompletedBy, control.UpdatedAt,
		control.ID, domain.StatusPlanned,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) ListByTaxpayer(ctx context.Context, db *gorm.DB, taxpayerID snowflake.ID) ([]*domain.Control, error) {
	var controls []*domain.Control
	err := db.WithContext(ctx).Raw(
		`SELECT `+controlColumns+` FROM controls
		 WHERE taxpayer_id = ?
		 ORDER BY created_at DESC, id DESC`,
		taxpayerID,
	).Scan(&controls).Error
	if err != nil {
		return nil, err
	}
	return controls, nil
}

func (r *repo) ListByAgent(ctx context.Context, db *gorm.DB, agentID snowflake.ID, status domain.Status) ([]*domain.Control, error) {
	var controls []*domain.Control
	err := db.WithContext(ctx).Raw(
		`SELECT `+controlColumns+` FROM controls
		 WHERE assigned_agent_id = ? AND status = ?
		 ORDER BY scheduled_for ASC, id ASC`,
		agentID, status,
	).Scan(&controls).Error
	if err != nil {
		return nil, err
	}
	return controls, nil
}

func (r *repo) InsertReport(ctx context.Context, db *gorm.DB, report *domain.Report) error {
	return db.WithContext(ctx).Create(report).Error
}

func (r *repo) FindReport(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Report, error) {
	return r.findReport(ctx, db, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
}

func (r *repo) FindReportByControl(ctx context.Context, db *gorm.DB, controlID snowflake.ID) (*domain.Report, error) {
	return r.findReport(ctx, db, `SELECT `+reportColumns+` FROM reports WHERE control_id = ?`, controlID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Control, error) {
	var control domain.Control
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&control).Error; err != nil {
		return nil, err
	}
	if control.ID == 0 {
		return nil, nil
	}
	return &control, nil
}

func (r *repo) findReport(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Report, error) {
	var report domain.Report
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&report).Error; err != nil {
		return nil, err
	}
	if report.ID == 0 {
		return nil, nil
	}
	return &report, nil
}
