package recommend

import (
	"fmt"
	"math"

	"github.com/Veraticus/cardwise/internal/model"
	"github.com/shopspring/decimal"
)

// Product names in catalog order.
const (
	ProductGlobalCurrency    = "Global Currency Solutions"
	ProductTravelAccount     = "Corporate Travel Account"
	ProductPremiumExpense    = "Premium Expense Management Suite"
	ProductB2BPayments       = "B2B Payment Solutions"
	ProductPaymentAutomation = "Payment Automation"
	ProductFinancialHealth   = "Financial Health Dashboard"
	ProductAdvancedAnalytics = "Advanced Analytics Suite"
	ProductTravelInsurance   = "Travel Insurance Package"
	ProductBasicExpense      = "Basic Expense Management"
	ProductExpenseManagement = "Expense Management Suite"
)

// Feature thresholds used by the catalog.
const (
	HighInternationalRatio     = 0.3
	ModerateInternationalRatio = 0.15
	HighMonthlySpend           = 20000.0
	HighTransactionCount       = 50.0
	LowTransactionCount        = 10.0
	LateTimeliness             = 0.8
	HighSpendVolatility        = 0.5
	FXFeeRate                  = 0.03
	FXSavingsShare             = 0.4
	TravelSavingsShare         = 0.25
	AnalyticsSavingsShare      = 0.1
	MinutesPerExpenseReport    = 15.0
	TravelerMonthlyPremium     = 50.0
)

// DefaultCatalog returns the product rules in fixed catalog order.
func DefaultCatalog() []Rule {
	return []Rule{
		{Product: ProductGlobalCurrency, Evaluate: globalCurrency},
		{Product: ProductTravelAccount, Evaluate: travelAccount},
		{Product: ProductPremiumExpense, Evaluate: premiumExpense},
		{Product: ProductB2BPayments, Evaluate: b2bPayments},
		{Product: ProductPaymentAutomation, Evaluate: paymentAutomation},
		{Product: ProductFinancialHealth, Evaluate: financialHealth},
		{Product: ProductAdvancedAnalytics, Evaluate: advancedAnalytics},
		{Product: ProductTravelInsurance, Evaluate: travelInsurance},
		{Product: ProductBasicExpense, Evaluate: basicExpense},
		{Product: ProductExpenseManagement, Evaluate: expenseManagement},
	}
}

func globalCurrency(in Input) (model.Recommendation, bool) {
	f := in.Features
	travel := in.Category() == model.SegmentTravelHeavy
	if f.InternationalRatio < ModerateInternationalRatio && !travel {
		return model.Recommendation{}, false
	}

	priority := model.PriorityMedium
	if f.InternationalRatio >= HighInternationalRatio || travel {
		priority = model.PriorityHigh
	}
	savings := annual(f.AvgMonthlySpend * f.InternationalRatio * FXFeeRate * FXSavingsShare)

	return model.Recommendation{
		Priority:      priority,
		Reason:        fmt.Sprintf("%s of transactions are international; reduce FX fees on foreign spend", percent(f.InternationalRatio)),
		ExpectedValue: fmt.Sprintf("Cut currency conversion costs by 40%% (about %s/year)", formatUSD(savings)),
	}, true
}

func travelAccount(in Input) (model.Recommendation, bool) {
	f := in.Features
	var priority model.Priority
	switch {
	case in.Category() == model.SegmentTravelHeavy:
		priority = model.PriorityHigh
	case in.Category() == model.SegmentHighGrowth, f.InternationalRatio >= ModerateInternationalRatio:
		priority = model.PriorityMedium
	default:
		return model.Recommendation{}, false
	}

	travelShare := math.Max(f.InternationalRatio, ModerateInternationalRatio)
	savings := annual(f.AvgMonthlySpend * travelShare * TravelSavingsShare)

	return model.Recommendation{
		Priority:      priority,
		Reason:        fmt.Sprintf("International ratio of %s suggests regular business travel; book at corporate rates", percent(f.InternationalRatio)),
		ExpectedValue: fmt.Sprintf("Save up to 25%% on travel bookings (about %s/year)", formatUSD(savings)),
	}, true
}

func premiumExpense(in Input) (model.Recommendation, bool) {
	f := in.Features
	if in.Category() != model.SegmentHighGrowth && f.TransactionFrequency < HighTransactionCount {
		return model.Recommendation{}, false
	}

	hours := math.Ceil(f.TransactionFrequency * MinutesPerExpenseReport / 60)
	return model.Recommendation{
		Priority:      model.PriorityHigh,
		Reason:        fmt.Sprintf("%.0f card transactions to reconcile; automate expense tracking for a growing team", f.TransactionFrequency),
		ExpectedValue: fmt.Sprintf("Save %.0f+ hours on expense processing", hours),
	}, true
}

func b2bPayments(in Input) (model.Recommendation, bool) {
	f := in.Features
	var priority model.Priority
	switch {
	case f.AvgMonthlySpend >= HighMonthlySpend:
		priority = model.PriorityHigh
	case in.Category() == model.SegmentHighGrowth:
		priority = model.PriorityHigh
	case in.Category() == model.SegmentSteady:
		priority = model.PriorityMedium
	default:
		return model.Recommendation{}, false
	}

	spend := decimal.NewFromFloat(f.AvgMonthlySpend)
	return model.Recommendation{
		Priority:      priority,
		Reason:        fmt.Sprintf("Average monthly spend of %s; streamline vendor payments with better cashflow control", formatUSD(spend)),
		ExpectedValue: fmt.Sprintf("Extend payment terms by 30 days on about %s/month", formatUSD(spend)),
	}, true
}

func paymentAutomation(in Input) (model.Recommendation, bool) {
	f := in.Features
	if f.PaymentTimeliness >= LateTimeliness && in.Category() != model.SegmentAtRisk {
		return model.Recommendation{}, false
	}

	late := 1 - f.PaymentTimeliness
	return model.Recommendation{
		Priority:      model.PriorityHigh,
		Reason:        fmt.Sprintf("Payment timeliness of %s; automate recurring payments", percent(f.PaymentTimeliness)),
		ExpectedValue: fmt.Sprintf("Never miss a payment deadline (%s of payments currently late)", percent(late)),
	}, true
}

func financialHealth(in Input) (model.Recommendation, bool) {
	f := in.Features
	if in.Category() != model.SegmentAtRisk && f.SpendVolatility < HighSpendVolatility {
		return model.Recommendation{}, false
	}

	return model.Recommendation{
		Priority:      model.PriorityMedium,
		Reason:        fmt.Sprintf("Spend volatility of %.2f; monitor and improve financial metrics", f.SpendVolatility),
		ExpectedValue: "Real-time insights into spending health",
	}, true
}

func advancedAnalytics(in Input) (model.Recommendation, bool) {
	f := in.Features
	if in.Category() != model.SegmentSteady {
		return model.Recommendation{}, false
	}

	savings := annual(f.AvgMonthlySpend * AnalyticsSavingsShare)
	return model.Recommendation{
		Priority:      model.PriorityMedium,
		Reason:        fmt.Sprintf("Consistent spend of %s/month across %s of categories; find optimization opportunities", formatUSD(decimal.NewFromFloat(f.AvgMonthlySpend)), percent(f.CategoryDiversity)),
		ExpectedValue: fmt.Sprintf("Identify 10-15%% cost savings (about %s/year)", formatUSD(savings)),
	}, true
}

func travelInsurance(in Input) (model.Recommendation, bool) {
	f := in.Features
	if f.InternationalRatio < HighInternationalRatio {
		return model.Recommendation{}, false
	}

	trips := math.Max(1, math.Round(f.TransactionFrequency*f.InternationalRatio/10))
	premium := decimal.NewFromFloat(TravelerMonthlyPremium * trips)
	return model.Recommendation{
		Priority:      model.PriorityMedium,
		Reason:        fmt.Sprintf("%s of transactions are international; cover business travelers abroad", percent(f.InternationalRatio)),
		ExpectedValue: fmt.Sprintf("Full coverage for about %s/month", formatUSD(premium)),
	}, true
}

func basicExpense(in Input) (model.Recommendation, bool) {
	f := in.Features
	var priority model.Priority
	switch {
	case in.Category() == model.SegmentAtRisk:
		priority = model.PriorityMedium
	case f.TransactionFrequency < LowTransactionCount:
		priority = model.PriorityLow
	default:
		return model.Recommendation{}, false
	}

	return model.Recommendation{
		Priority:      priority,
		Reason:        fmt.Sprintf("Only %.0f transactions recorded; simple tools to improve payment tracking", f.TransactionFrequency),
		ExpectedValue: "Better visibility into spending patterns",
	}, true
}

func expenseManagement(in Input) (model.Recommendation, bool) {
	f := in.Features
	if f.TransactionFrequency < LowTransactionCount || f.TransactionFrequency >= HighTransactionCount {
		return model.Recommendation{}, false
	}
	if in.Category() == model.SegmentHighGrowth || in.Category() == model.SegmentAtRisk {
		return model.Recommendation{}, false
	}

	return model.Recommendation{
		Priority:      model.PriorityLow,
		Reason:        fmt.Sprintf("%.0f transactions with %s category diversity; comprehensive tracking and reporting", f.TransactionFrequency, percent(f.CategoryDiversity)),
		ExpectedValue: "Streamline expense workflows",
	}, true
}
