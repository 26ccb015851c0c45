package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/cardwise/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateContext(t *testing.T) {
	assert.NoError(t, validateContext(context.Background()))
	assert.ErrorIs(t, validateContext(nil), ErrNilContext) //nolint:staticcheck // nil context is the case under test
}

func TestValidateString(t *testing.T) {
	assert.NoError(t, validateString("id", "id"))
	assert.ErrorIs(t, validateString("   ", "id"), ErrEmptyString)
}

func TestValidateTransaction(t *testing.T) {
	valid := model.Transaction{
		ID:         "t1",
		CustomerID: "c1",
		Date:       time.Now(),
		Amount:     decimal.NewFromInt(10),
	}

	tests := []struct {
		mutate func(*model.Transaction)
		name   string
		want   error
	}{
		{name: "valid", mutate: func(*model.Transaction) {}},
		{name: "missing id", mutate: func(txn *model.Transaction) { txn.ID = "" }, want: ErrInvalidTransaction},
		{name: "missing customer", mutate: func(txn *model.Transaction) { txn.CustomerID = "" }, want: ErrInvalidTransaction},
		{name: "zero date", mutate: func(txn *model.Transaction) { txn.Date = time.Time{} }, want: ErrInvalidTransaction},
		{name: "negative amount", mutate: func(txn *model.Transaction) { txn.Amount = decimal.NewFromInt(-5) }, want: ErrInvalidTransaction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := valid
			tt.mutate(&txn)
			err := validateTransaction(&txn)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.ErrorIs(t, validateTransaction(nil), ErrNilParameter)
}
