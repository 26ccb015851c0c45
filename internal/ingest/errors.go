// Package ingest turns external card data (CSV uploads and synthetic demo
// data) into customers and transactions ready for storage.
package ingest

import (
	"errors"
	"fmt"
)

// File-level import errors. Any of these aborts the whole import.
var (
	ErrEmptyFile     = errors.New("CSV file is empty")
	ErrMissingHeader = errors.New("CSV file missing header row")
	ErrMissingColumn = errors.New("CSV file missing required column")
)

// maxReportedErrors caps how many row errors a report keeps.
const maxReportedErrors = 100

// RowError describes a single rejected row.
type RowError struct {
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
	Row     int    `json:"row"`
}

func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column '%s': %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ImportReport summarizes an import. Rows counts data rows read; Rejected
// counts rows that produced an error, which may exceed len(Errors) once the
// cap is reached.
type ImportReport struct {
	Errors     []RowError `json:"errors"`
	Rows       int        `json:"rows"`
	Imported   int        `json:"imported"`
	Duplicates int        `json:"duplicates"`
	Rejected   int        `json:"rejected"`
}

func newReport() *ImportReport {
	return &ImportReport{Errors: []RowError{}}
}

func (r *ImportReport) reject(errs ...RowError) {
	r.Rejected++
	for _, err := range errs {
		if len(r.Errors) >= maxReportedErrors {
			return
		}
		r.Errors = append(r.Errors, err)
	}
}

// HasErrors reports whether any row was rejected.
func (r *ImportReport) HasErrors() bool {
	return r.Rejected > 0
}
