package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Column names accepted in customer uploads.
const (
	ColumnID                 = "id"
	ColumnCompanyName        = "company_name"
	ColumnMonthlySpend       = "monthly_spend"
	ColumnTotalTransactions  = "total_transactions"
	ColumnInternationalRatio = "international_ratio"
	ColumnTimelinessScore    = "payment_timeliness_score"
)

// Column names accepted in transaction uploads.
const (
	ColumnCustomerID       = "customer_id"
	ColumnTransactionDate  = "transaction_date"
	ColumnMerchantName     = "merchant_name"
	ColumnMerchantCategory = "merchant_category"
	ColumnAmount           = "amount"
	ColumnIsInternational  = "is_international"
	ColumnPaidOnTime       = "paid_on_time"
)

// CustomerColumns lists the required customer columns.
var CustomerColumns = []string{
	ColumnCompanyName,
	ColumnMonthlySpend,
	ColumnTotalTransactions,
	ColumnInternationalRatio,
}

// TransactionColumns lists the required transaction columns.
var TransactionColumns = []string{
	ColumnCustomerID,
	ColumnTransactionDate,
	ColumnMerchantName,
	ColumnMerchantCategory,
	ColumnAmount,
	ColumnIsInternational,
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

type customerRecord struct {
	ReportedTimeliness *float64 `csv:"payment_timeliness_score" validate:"omitempty,gte=0,lte=1"`
	ID                 string   `csv:"id" validate:"omitempty,max=64,printascii"`
	CompanyName        string   `csv:"company_name" validate:"required,max=200"`
	InternationalRatio float64  `csv:"international_ratio" validate:"gte=0,lte=1"`
	TotalTransactions  int      `csv:"total_transactions" validate:"gte=0"`
}

type transactionRecord struct {
	Date             time.Time `csv:"transaction_date" validate:"required"`
	CustomerID       string    `csv:"customer_id" validate:"required,max=64"`
	MerchantName     string    `csv:"merchant_name" validate:"required,max=200"`
	MerchantCategory string    `csv:"merchant_category" validate:"required,max=100"`
}

// Parser reads customer and transaction CSV uploads. Malformed rows are
// collected into the report; the remaining rows are returned.
type Parser struct {
	validate *validator.Validate
}

// NewParser creates a parser.
func NewParser() *Parser {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("csv")
	})
	return &Parser{validate: v}
}

// ParseCustomers reads a customer upload. Rows without an id get a new one.
func (p *Parser) ParseCustomers(r io.Reader) ([]model.Customer, *ImportReport, error) {
	tbl, err := readTable(r, CustomerColumns)
	if err != nil {
		return nil, nil, err
	}

	report := newReport()
	customers := []model.Customer{}
	seen := make(map[string]int)

	for {
		row, err := tbl.next()
		if errors.Is(err, io.EOF) {
			break
		}
		report.Rows++
		if err != nil {
			report.reject(RowError{Row: tbl.line, Message: err.Error()})
			continue
		}

		var rowErrs []RowError
		rec := customerRecord{
			ID:          row.get(ColumnID),
			CompanyName: row.get(ColumnCompanyName),
		}
		spend, rowErr := parseAmount(row, ColumnMonthlySpend)
		rowErrs = appendErr(rowErrs, rowErr)
		rec.TotalTransactions, rowErr = parseInt(row, ColumnTotalTransactions)
		rowErrs = appendErr(rowErrs, rowErr)
		rec.InternationalRatio, rowErr = parseFloat(row, ColumnInternationalRatio)
		rowErrs = appendErr(rowErrs, rowErr)
		if raw := row.get(ColumnTimelinessScore); raw != "" {
			score, rowErr := parseFloat(row, ColumnTimelinessScore)
			rowErrs = appendErr(rowErrs, rowErr)
			rec.ReportedTimeliness = &score
		}
		if len(rowErrs) == 0 {
			rowErrs = p.check(row.line, &rec)
		}
		if len(rowErrs) == 0 && rec.ID != "" {
			if first, dup := seen[rec.ID]; dup {
				rowErrs = append(rowErrs, RowError{
					Row:     row.line,
					Column:  ColumnID,
					Message: fmt.Sprintf("duplicate id, first seen on row %d", first),
					Value:   rec.ID,
				})
			}
		}
		if len(rowErrs) > 0 {
			report.reject(rowErrs...)
			continue
		}

		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		seen[rec.ID] = row.line
		customers = append(customers, model.Customer{
			ID:                 rec.ID,
			CompanyName:        rec.CompanyName,
			MonthlySpend:       spend,
			TotalTransactions:  rec.TotalTransactions,
			InternationalRatio: rec.InternationalRatio,
			ReportedTimeliness: rec.ReportedTimeliness,
		})
	}

	return customers, report, nil
}

// ParseTransactions reads a transaction upload. Rows referencing a customer
// absent from known are rejected. A nil known set skips the check.
func (p *Parser) ParseTransactions(r io.Reader, known map[string]bool) ([]model.Transaction, *ImportReport, error) {
	tbl, err := readTable(r, TransactionColumns)
	if err != nil {
		return nil, nil, err
	}

	report := newReport()
	txns := []model.Transaction{}
	occurrences := map[string]int{}

	for {
		row, err := tbl.next()
		if errors.Is(err, io.EOF) {
			break
		}
		report.Rows++
		if err != nil {
			report.reject(RowError{Row: tbl.line, Message: err.Error()})
			continue
		}

		var rowErrs []RowError
		rec := transactionRecord{
			CustomerID:       row.get(ColumnCustomerID),
			MerchantName:     row.get(ColumnMerchantName),
			MerchantCategory: row.get(ColumnMerchantCategory),
		}
		rec.Date, err = parseDate(row.get(ColumnTransactionDate))
		if err != nil {
			rowErrs = append(rowErrs, RowError{
				Row:     row.line,
				Column:  ColumnTransactionDate,
				Message: "expected ISO date",
				Value:   row.get(ColumnTransactionDate),
			})
		}
		amount, rowErr := parseAmount(row, ColumnAmount)
		rowErrs = appendErr(rowErrs, rowErr)
		international, rowErr := parseBool(row, ColumnIsInternational)
		rowErrs = appendErr(rowErrs, rowErr)

		var paid *bool
		if row.get(ColumnPaidOnTime) != "" {
			v, rowErr := parseBool(row, ColumnPaidOnTime)
			rowErrs = appendErr(rowErrs, rowErr)
			paid = &v
		}
		if len(rowErrs) == 0 {
			rowErrs = p.check(row.line, &rec)
		}
		if len(rowErrs) == 0 && known != nil && !known[rec.CustomerID] {
			rowErrs = append(rowErrs, RowError{
				Row:     row.line,
				Column:  ColumnCustomerID,
				Message: "unknown customer",
				Value:   rec.CustomerID,
			})
		}
		if len(rowErrs) > 0 {
			report.reject(rowErrs...)
			continue
		}

		txn := model.Transaction{
			ID:               uuid.NewString(),
			CustomerID:       rec.CustomerID,
			Date:             rec.Date,
			MerchantName:     rec.MerchantName,
			MerchantCategory: rec.MerchantCategory,
			Amount:           amount,
			International:    international,
			PaidOnTime:       paid,
		}
		key := txn.ContentKey()
		txn.Occurrence = occurrences[key]
		occurrences[key]++
		txn.Hash = txn.GenerateHash()
		txns = append(txns, txn)
	}

	return txns, report, nil
}

// check runs struct validation and maps failures onto CSV columns.
func (p *Parser) check(line int, rec any) []RowError {
	err := p.validate.Struct(rec)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []RowError{{Row: line, Message: err.Error()}}
	}

	out := make([]RowError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, RowError{
			Row:     line,
			Column:  fe.Field(),
			Message: describeTag(fe),
			Value:   fmt.Sprint(fe.Value()),
		})
	}
	return out
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "printascii":
		return "must be printable ASCII"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// table wraps a csv.Reader with header lookup and 1-based line tracking.
// The header is line 1.
type table struct {
	reader  *csv.Reader
	columns map[string]int
	line    int
}

type csvRow struct {
	columns map[string]int
	fields  []string
	line    int
}

func (r csvRow) get(column string) string {
	idx, ok := r.columns[column]
	if !ok || idx >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[idx])
}

func readTable(r io.Reader, required []string) (*table, error) {
	buf := bufio.NewReader(r)
	if bom, err := buf.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = buf.Discard(3)
	}

	reader := csv.NewReader(buf)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, common.NewValidationError("file", "no data", ErrEmptyFile)
	}
	if err != nil {
		return nil, common.NewValidationError("file", err.Error(), ErrMissingHeader)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, common.NewValidationError("header",
			"missing columns: "+strings.Join(missing, ", "), ErrMissingColumn)
	}

	return &table{reader: reader, columns: columns, line: 1}, nil
}

// next returns the next non-blank row.
func (t *table) next() (csvRow, error) {
	for {
		fields, err := t.reader.Read()
		if errors.Is(err, io.EOF) {
			return csvRow{}, io.EOF
		}
		t.line++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				t.line = parseErr.Line
			}
			return csvRow{}, fmt.Errorf("malformed row: %w", err)
		}
		if blank(fields) {
			continue
		}
		return csvRow{columns: t.columns, fields: fields, line: t.line}, nil
	}
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func appendErr(errs []RowError, err *RowError) []RowError {
	if err == nil {
		return errs
	}
	return append(errs, *err)
}

func parseAmount(r csvRow, column string) (decimal.Decimal, *RowError) {
	raw := strings.NewReplacer("$", "", ",", "").Replace(r.get(column))
	if raw == "" {
		return decimal.Zero, &RowError{Row: r.line, Column: column, Message: "field is required"}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &RowError{Row: r.line, Column: column, Message: "expected decimal amount", Value: r.get(column)}
	}
	if d.IsNegative() {
		return decimal.Zero, &RowError{Row: r.line, Column: column, Message: "must not be negative", Value: r.get(column)}
	}
	return d, nil
}

func parseFloat(r csvRow, column string) (float64, *RowError) {
	raw := r.get(column)
	if raw == "" {
		return 0, &RowError{Row: r.line, Column: column, Message: "field is required"}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &RowError{Row: r.line, Column: column, Message: "expected number", Value: raw}
	}
	return f, nil
}

func parseInt(r csvRow, column string) (int, *RowError) {
	raw := r.get(column)
	if raw == "" {
		return 0, &RowError{Row: r.line, Column: column, Message: "field is required"}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &RowError{Row: r.line, Column: column, Message: "expected integer", Value: raw}
	}
	return n, nil
}

func parseBool(r csvRow, column string) (bool, *RowError) {
	raw := strings.ToLower(r.get(column))
	switch raw {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	case "":
		return false, &RowError{Row: r.line, Column: column, Message: "field is required"}
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &RowError{Row: r.line, Column: column, Message: "expected boolean", Value: r.get(column)}
	}
	return b, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
