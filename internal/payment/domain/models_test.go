package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSumConfirmedIgnoresPending(t *testing.T) {
	payments := []*Payment{
		{Amount: decimal.NewFromInt(10), Status: StatusConfirmed},
		{Amount: decimal.NewFromInt(15), Status: StatusPending},
		nil,
		{Amount: decimal.RequireFromString("2.50"), Status: StatusConfirmed},
	}
	assert.True(t, SumConfirmed(payments).Equal(decimal.RequireFromString("12.50")))
	assert.True(t, SumConfirmed(nil).IsZero())
}
