// Package storage provides the data persistence layer for cardwise.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/cardwise/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidCustomer    = errors.New("invalid customer")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidSegment     = errors.New("invalid segment")
	ErrInvalidGeneration  = errors.New("invalid generation")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateCustomer(c *model.Customer) error {
	if c == nil {
		return fmt.Errorf("%w: customer", ErrNilParameter)
	}
	if c.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidCustomer)
	}
	if strings.TrimSpace(c.CompanyName) == "" {
		return fmt.Errorf("%w: missing company name", ErrInvalidCustomer)
	}
	if c.MonthlySpend.IsNegative() {
		return fmt.Errorf("%w: negative monthly spend", ErrInvalidCustomer)
	}
	if c.InternationalRatio < 0 || c.InternationalRatio > 1 {
		return fmt.Errorf("%w: international ratio %v out of range", ErrInvalidCustomer, c.InternationalRatio)
	}
	if c.TotalTransactions < 0 {
		return fmt.Errorf("%w: negative transaction count", ErrInvalidCustomer)
	}
	return nil
}

func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.CustomerID == "" {
		return fmt.Errorf("%w: missing customer ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if txn.Amount.IsNegative() {
		return fmt.Errorf("%w: negative amount", ErrInvalidTransaction)
	}
	return nil
}

func validateGeneration(gen *model.Generation, segments []model.Segment) error {
	if gen == nil {
		return fmt.Errorf("%w: generation", ErrNilParameter)
	}
	if gen.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidGeneration)
	}
	if len(segments) == 0 {
		return fmt.Errorf("%w: no segments", ErrInvalidGeneration)
	}
	for i := range segments {
		if segments[i].ID == "" {
			return fmt.Errorf("%w: segment %d missing ID", ErrInvalidSegment, i)
		}
	}
	return nil
}
