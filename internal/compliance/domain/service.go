package domain

import (
	"context"
)

type Service interface {
	// Resolve recomputes the status from a single consistent read of the taxpayer's records.
	Resolve(ctx context.Context, taxpayerID string) (Result, error)
}
