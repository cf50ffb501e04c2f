package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/smallbiznis/redevance/internal/authorization"
	"github.com/smallbiznis/redevance/internal/recovery/domain"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	exportSheet    = "Dossiers"
	exportPageSize = 500
)

var exportHeader = []any{"Référence", "Contribuable", "Raison sociale", "Montant dû", "Transmis le", "Notes"}

func (s *Service) Export(ctx context.Context, w io.Writer) error {
	if _, err := authorization.Require(ctx, s.authz, authorization.ObjectRecovery, authorization.ActionRecoveryExport); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return err
	}

	row := 2
	for offset := 0; ; offset += exportPageSize {
		dossiers, err := s.repo.List(ctx, s.db, domain.StatusReferred, exportPageSize, offset)
		if err != nil {
			return err
		}
		for _, dossier := range dossiers {
			values, err := s.exportRow(ctx, dossier)
			if err != nil {
				return err
			}
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
				return err
			}
			row++
		}
		if len(dossiers) < exportPageSize {
			break
		}
	}

	s.log.Info("dossiers exported", zap.Int("rows", row-2))
	return f.Write(w)
}

func (s *Service) exportRow(ctx context.Context, dossier *domain.Dossier) ([]any, error) {
	name := ""
	taxpayer, err := s.taxpayerRepo.FindByID(ctx, s.db, dossier.TaxpayerID)
	if err != nil {
		return nil, err
	}
	if taxpayer != nil {
		name = taxpayer.LegalName
	}

	links, err := s.repo.ListNotes(ctx, s.db, dossier.ID)
	if err != nil {
		return nil, err
	}
	numbers := make([]string, 0, len(links))
	for _, link := range links {
		note, err := s.noteRepo.FindByID(ctx, s.db, link.NoteID)
		if err != nil {
			return nil, err
		}
		if note == nil {
			numbers = append(numbers, link.NoteID.String())
			continue
		}
		numbers = append(numbers, fmt.Sprintf("%s (%s)", note.Number, link.AmountDue.StringFixed(2)))
	}

	amount, _ := dossier.AmountDue.Round(2).Float64()
	return []any{
		dossier.Reference,
		dossier.TaxpayerID.String(),
		name,
		amount,
		dossier.ReferredAt.Format("2006-01-02"),
		strings.Join(numbers, ", "),
	}, nil
}
