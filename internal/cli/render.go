package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/cardwise/internal/ingest"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
)

// maxReportErrors is how many row errors RenderImportReport lists.
const maxReportErrors = 10

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(BorderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		}).
		Headers(headers...)
}

// FormatMoney formats an amount as US dollars with thousands separators.
func FormatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	s := d.StringFixed(2)
	whole, frac := s[:len(s)-3], s[len(s)-2:]

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + frac
}

// FormatPercent formats a 0-1 ratio as a whole percentage.
func FormatPercent(ratio float64) string {
	return strconv.FormatFloat(ratio*100, 'f', 0, 64) + "%"
}

// RenderSegments renders the current segments as a table.
func RenderSegments(segments []model.Segment) string {
	if len(segments) == 0 {
		return FormatInfo("No segments yet. Run 'cardwise analyze' first.")
	}

	t := newTable("Segment", "Customers", "Avg Monthly Spend", "International", "Timeliness", "Volatility")
	for _, seg := range segments {
		c := seg.Characteristics
		t.Row(
			seg.Name,
			strconv.Itoa(seg.CustomerCount),
			FormatMoney(decimal.NewFromFloat(c.AvgMonthlySpend)),
			FormatPercent(c.AvgInternationalRatio),
			FormatPercent(c.AvgPaymentTimeliness),
			strconv.FormatFloat(c.AvgSpendVolatility, 'f', 2, 64),
		)
	}
	return t.String()
}

// RenderCustomers renders customers with the display name of their segment.
// segmentNames maps segment ID to name.
func RenderCustomers(customers []model.Customer, segmentNames map[string]string) string {
	if len(customers) == 0 {
		return FormatInfo("No customers found.")
	}

	t := newTable("ID", "Company", "Segment", "Monthly Spend", "Transactions", "International")
	for _, c := range customers {
		segment := "-"
		if c.HasSegment() {
			if name, ok := segmentNames[*c.SegmentID]; ok {
				segment = name
			}
		}
		t.Row(
			c.ID,
			c.CompanyName,
			segment,
			FormatMoney(c.MonthlySpend),
			strconv.Itoa(c.TotalTransactions),
			FormatPercent(c.InternationalRatio),
		)
	}
	return t.String()
}

// RenderTransactions renders transactions newest first as given.
func RenderTransactions(txns []model.Transaction) string {
	if len(txns) == 0 {
		return SubtleStyle.Render("No transactions.")
	}

	t := newTable("Date", "Merchant", "Category", "Amount", "Intl")
	for _, txn := range txns {
		intl := ""
		if txn.International {
			intl = SuccessIcon
		}
		t.Row(
			txn.Date.Format("2006-01-02"),
			txn.MerchantName,
			txn.MerchantCategory,
			FormatMoney(txn.Amount),
			intl,
		)
	}
	return t.String()
}

// RenderRecommendations renders a customer's recommendations in priority order.
func RenderRecommendations(companyName string, recs []model.Recommendation) string {
	if len(recs) == 0 {
		return FormatInfo(fmt.Sprintf("No recommendations for %s.", companyName))
	}

	var b strings.Builder
	for i, rec := range recs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(BoldStyle.Render(fmt.Sprintf("%d. %s", i+1, rec.ProductName)))
		b.WriteString(" " + priorityStyle(rec.Priority).Render("["+string(rec.Priority)+"]"))
		b.WriteString("\n   " + rec.Reason)
		b.WriteString("\n   " + SubtleStyle.Render(rec.ExpectedValue))
	}
	return RenderBox(TargetIcon+" Recommendations for "+companyName, b.String())
}

func priorityStyle(p model.Priority) lipgloss.Style {
	switch p {
	case model.PriorityHigh:
		return ErrorStyle
	case model.PriorityMedium:
		return WarningStyle
	default:
		return SubtleStyle
	}
}

// RenderStats renders the dashboard summary.
func RenderStats(stats *model.DashboardStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Customers:          %d\n", stats.TotalCustomers)
	fmt.Fprintf(&b, "Transactions:       %d\n", stats.TotalTransactions)
	fmt.Fprintf(&b, "Total spend:        %s\n", FormatMoney(stats.TotalSpend))
	fmt.Fprintf(&b, "Avg per customer:   %s", FormatMoney(stats.AvgSpendPerCustomer))

	if len(stats.SegmentDistribution) > 0 {
		b.WriteString("\n\n" + BoldStyle.Render("Segment distribution"))
		for _, share := range stats.SegmentDistribution {
			fmt.Fprintf(&b, "\n  • %-26s %d", share.Name, share.Count)
		}
	}
	return RenderBox(ChartIcon+" Portfolio", b.String())
}

// RenderRuns renders analysis run history.
func RenderRuns(runs []model.AnalysisRun) string {
	if len(runs) == 0 {
		return FormatInfo("No analysis runs recorded.")
	}

	t := newTable("Started", "Status", "Customers", "Duration", "Note")
	for _, run := range runs {
		duration := "-"
		if run.CompletedAt != nil {
			duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		note := ""
		switch {
		case run.Error != nil:
			note = *run.Error
		case run.Warning != nil:
			note = *run.Warning
		}
		t.Row(
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			runStatusStyle(run.Status).Render(string(run.Status)),
			strconv.Itoa(run.CustomerCount),
			duration,
			note,
		)
	}
	return t.String()
}

func runStatusStyle(s model.RunStatus) lipgloss.Style {
	switch s {
	case model.RunStatusCompleted:
		return SuccessStyle
	case model.RunStatusFailed:
		return ErrorStyle
	case model.RunStatusCancelled:
		return WarningStyle
	default:
		return InfoStyle
	}
}

// RenderImportReport summarizes an import and lists the first row errors.
func RenderImportReport(kind string, report *ingest.ImportReport) string {
	var b strings.Builder
	b.WriteString(FormatSuccess(fmt.Sprintf("Imported %d %s", report.Imported, kind)))
	if report.Duplicates > 0 {
		b.WriteString("\n" + FormatInfo(fmt.Sprintf("Skipped %d duplicates", report.Duplicates)))
	}
	if report.Rejected == 0 {
		return b.String()
	}

	b.WriteString("\n" + FormatWarning(fmt.Sprintf("Rejected %d of %d rows", report.Rejected, report.Rows)))
	for i, rowErr := range report.Errors {
		if i == maxReportErrors {
			fmt.Fprintf(&b, "\n  %s", SubtleStyle.Render(fmt.Sprintf("... and %d more", len(report.Errors)-i)))
			break
		}
		fmt.Fprintf(&b, "\n  %s", ErrorStyle.Render(rowErr.Error()))
	}
	return b.String()
}
