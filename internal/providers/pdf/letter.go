package pdf

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

const dateLayout = "02/01/2006"

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) RenderLetter(ctx context.Context, letter Letter) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} / {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	issuer := letter.Issuer
	if issuer == "" {
		issuer = "Service de la redevance audiovisuelle"
	}
	m.AddRow(20,
		text.NewCol(8, issuer, props.Text{
			Size:  11,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, letter.IssuedAt.Format(dateLayout), props.Text{
			Size:  10,
			Align: align.Right,
		}),
	)

	m.AddRow(25,
		col.New(6),
		col.New(6).Add(
			text.New(letter.Recipient, props.Text{Style: fontstyle.Bold}),
			text.New(letter.Address, props.Text{Top: 5}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, letter.Title, props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Center,
		}),
	)
	if letter.Reference != "" {
		m.AddRow(8,
			text.NewCol(12, "Réf. "+letter.Reference, props.Text{Size: 9, Align: align.Center}),
		)
	}

	for _, paragraph := range letter.Paragraphs {
		m.AddRow(14,
			text.NewCol(12, paragraph, props.Text{Size: 10, Top: 2}),
		)
	}

	if len(letter.Lines) > 0 {
		m.AddRow(10,
			text.NewCol(6, "Désignation", props.Text{Style: fontstyle.Bold, Size: 9}),
			text.NewCol(2, "Qté", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
			text.NewCol(2, "Prix unitaire", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
			text.NewCol(2, "Montant", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		)
		for _, line := range letter.Lines {
			m.AddRow(8,
				text.NewCol(6, line.Description, props.Text{Size: 9}),
				text.NewCol(2, fmt.Sprintf("%d", line.Qty), props.Text{Size: 9, Align: align.Right}),
				text.NewCol(2, line.UnitPrice, props.Text{Size: 9, Align: align.Right}),
				text.NewCol(2, line.Amount, props.Text{Size: 9, Align: align.Right}),
			)
		}
	}
	if letter.Total != "" {
		m.AddRow(10,
			col.New(8),
			text.NewCol(2, "Total", props.Text{Size: 10, Style: fontstyle.Bold}),
			text.NewCol(2, letter.Total, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
		)
	}

	if letter.Signature != "" {
		m.AddRow(30,
			col.New(6),
			text.NewCol(6, letter.Signature, props.Text{Top: 15, Style: fontstyle.Italic, Align: align.Right}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
