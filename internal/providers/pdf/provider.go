package pdf

import (
	"context"
	"time"
)

// Letter is the document model shared by every enforcement letter.
type Letter struct {
	Title      string
	Reference  string
	Issuer     string
	Recipient  string
	Address    string
	IssuedAt   time.Time
	Paragraphs []string
	Lines      []Line
	Total      string
	Signature  string
}

type Line struct {
	Description string
	Qty         int
	UnitPrice   string
	Amount      string
}

type Provider interface {
	RenderLetter(ctx context.Context, letter Letter) ([]byte, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) RenderLetter(ctx context.Context, letter Letter) ([]byte, error) {
	return nil, nil
}
