package service

import (
	"context"
	"strings"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/redevance/internal/tariff/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("tariff.service"),
		repo: p.Repo,
	}
}

func (s *Service) Quote(ctx context.Context, db *gorm.DB, zoneClass string, lines []domain.LineInput) (domain.Quote, error) {
	zoneClass = strings.ToUpper(strings.TrimSpace(zoneClass))
	if zoneClass == "" {
		return domain.Quote{}, domain.ErrInvalidZoneClass
	}
	if len(lines) == 0 {
		return domain.Quote{}, domain.ErrEmptyLines
	}
	if db == nil {
		db = s.db
	}

	quote := domain.Quote{
		ZoneClass: zoneClass,
		Lines:     make([]domain.PricedLine, 0, len(lines)),
		Total:     decimal.Zero,
	}
	for _, line := range lines {
		category, subCategory := NormalizeCategory(line.Category, line.SubCategory)
		if category == "" || line.Count <= 0 {
			return domain.Quote{}, domain.ErrInvalidLine
		}

		tariff, err := s.repo.Lookup(ctx, db, category, subCategory, zoneClass)
		if err != nil {
			return domain.Quote{}, err
		}
		if tariff == nil {
			s.log.Debug("no tariff for line",
				zap.String("category", category),
				zap.String("sub_category", subCategory),
				zap.String("zone_class", zoneClass),
			)
			return domain.Quote{}, domain.ErrUnknownTariff
		}

		amount := tariff.UnitPrice.Mul(decimal.NewFromInt(int64(line.Count)))
		quote.Lines = append(quote.Lines, domain.PricedLine{
			Category:    category,
			SubCategory: subCategory,
			Count:       line.Count,
			UnitPrice:   tariff.UnitPrice,
			Amount:      amount,
		})
		quote.Total = quote.Total.Add(amount)
	}
	return quote, nil
}

func (s *Service) List(ctx context.Context, zoneClass string) ([]domain.Tariff, error) {
	rows, err := s.repo.List(ctx, s.db, strings.ToUpper(strings.TrimSpace(zoneClass)))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Tariff, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out, nil
}

// NormalizeCategory slugs category codes; an empty sub-category becomes the wildcard.
func NormalizeCategory(category, subCategory string) (string, string) {
	category = slug.Make(category)
	subCategory = strings.TrimSpace(subCategory)
	if subCategory == "" || subCategory == domain.AnySubCategory {
		return category, domain.AnySubCategory
	}
	return category, slug.Make(subCategory)
}
