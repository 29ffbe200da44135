package crm

import (
	"github.com/shopspring/decimal"

	"github.com/donorflow/donorflow/pkg/dates"
)

// Stats is the read-only summary computed over a row set at query time.
// Average is zero (never NaN) for an empty set; the date and min/max
// fields are nil pointers when no row contributed a value.
type Stats struct {
	TotalCount        int              `json:"total_count"`
	TotalAmount       decimal.Decimal  `json:"total_amount"`
	AverageAmount     decimal.Decimal  `json:"average_amount"`
	MinAmount         *decimal.Decimal `json:"min_amount"`
	MaxAmount         *decimal.Decimal `json:"max_amount"`
	FirstDonation     *string          `json:"first_donation"`
	LastDonation      *string          `json:"last_donation"`
	MostFrequentMonth *string          `json:"most_frequent_month"`
}

// Aggregate computes summary statistics over the entries. Rows with
// unparseable amounts contribute to the count but not to the sums; rows
// with unparseable dates are left out of the date fields.
func Aggregate(entries []Entry) Stats {
	stats := Stats{TotalCount: len(entries)}

	var amounts []decimal.Decimal
	var first, last string
	monthCounts := make(map[string]int)
	var monthOrder []string

	for _, e := range entries {
		if amount, ok := e.Data.Amount(); ok {
			amounts = append(amounts, amount)
		}

		t, err := e.Data.Date()
		if err != nil {
			continue
		}
		day := t.Format(dates.CanonicalFormat)
		if first == "" || day < first {
			first = day
		}
		if last == "" || day > last {
			last = day
		}

		month := t.Format("2006-01")
		if _, seen := monthCounts[month]; !seen {
			monthOrder = append(monthOrder, month)
		}
		monthCounts[month]++
	}

	if len(amounts) > 0 {
		total := decimal.Zero
		minA, maxA := amounts[0], amounts[0]
		for _, a := range amounts {
			total = total.Add(a)
			if a.LessThan(minA) {
				minA = a
			}
			if a.GreaterThan(maxA) {
				maxA = a
			}
		}
		stats.TotalAmount = total
		stats.AverageAmount = total.Div(decimal.NewFromInt(int64(len(amounts))))
		stats.MinAmount = &minA
		stats.MaxAmount = &maxA
	}

	if first != "" {
		stats.FirstDonation = &first
		stats.LastDonation = &last
	}

	// Ties break toward the month seen first in iteration order.
	best, bestCount := "", 0
	for _, m := range monthOrder {
		if monthCounts[m] > bestCount {
			best, bestCount = m, monthCounts[m]
		}
	}
	if best != "" {
		stats.MostFrequentMonth = &best
	}

	return stats
}
