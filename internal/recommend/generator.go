// Package recommend derives ranked "beyond-the-card" product suggestions from
// a customer's features and segment.
package recommend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/cardwise/internal/features"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/shopspring/decimal"
)

// Input is what a rule sees for one customer.
type Input struct {
	Segment  *model.Segment
	Features features.FeatureVector
}

// Category returns the customer's segment tag, or "" when unassigned.
func (in Input) Category() model.SegmentCategory {
	if in.Segment == nil {
		return ""
	}
	return in.Segment.Category
}

// Rule evaluates one product's eligibility. Rules must not depend on each other.
type Rule struct {
	Evaluate func(Input) (model.Recommendation, bool)
	Product  string
}

// Generator evaluates a fixed rule catalog. It holds no mutable state and is
// safe for concurrent use.
type Generator struct {
	rules []Rule
}

// NewGenerator creates a generator over rules. A nil catalog uses DefaultCatalog.
func NewGenerator(rules []Rule) *Generator {
	if rules == nil {
		rules = DefaultCatalog()
	}
	return &Generator{rules: rules}
}

// Products returns the catalog's product names in catalog order.
func (g *Generator) Products() []string {
	names := make([]string, len(g.rules))
	for i, r := range g.rules {
		names[i] = r.Product
	}
	return names
}

// Generate returns recommendations ordered by priority, then catalog order.
// A customer with no transactions gets an empty list.
func (g *Generator) Generate(fv features.FeatureVector, seg *model.Segment) []model.Recommendation {
	recs := []model.Recommendation{}
	if fv.TransactionFrequency == 0 {
		return recs
	}

	in := Input{Features: fv, Segment: seg}
	for _, rule := range g.rules {
		rec, ok := rule.Evaluate(in)
		if !ok {
			continue
		}
		rec.ProductName = rule.Product
		recs = append(recs, rec)
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority.Rank() > recs[j].Priority.Rank()
	})
	return recs
}

// annual projects a monthly amount over twelve months.
func annual(monthly float64) decimal.Decimal {
	return decimal.NewFromFloat(monthly).Mul(decimal.NewFromInt(12))
}

// formatUSD renders a whole-dollar amount with thousands separators.
func formatUSD(d decimal.Decimal) string {
	s := d.Round(0).StringFixed(0)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}
