package metrics

import (
	"math"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/camuig/pie-watch/internal/portfolio"
)

const secondsPerYear = 365 * 86400

// AnnualizedReturn is the compound annual growth rate, in percent, of growing
// invested into current over the period from createdAt to now (unix seconds).
// It is 0 when invested is not positive or the creation date is unknown or not in the past.
func AnnualizedReturn(invested, current, createdAt, now float64) float64 {
	if invested <= 0 || createdAt <= 0 || now <= createdAt {
		return 0
	}
	return (math.Pow(current/invested, secondsPerYear/(now-createdAt)) - 1) * 100
}

// Totals aggregates invested and current value across records.
type Totals struct {
	Invested      float64 `json:"invested"`
	Current       float64 `json:"current"`
	ReturnPercent float64 `json:"return_percent"`
}

// AggregateTotals sums invested and current value across records. ReturnPercent
// is 0 when nothing is invested.
func AggregateTotals(records []portfolio.Record) Totals {
	invested := decimal.Zero
	current := decimal.Zero
	for _, r := range records {
		invested = invested.Add(decimal.NewFromFloat(r.Result.InvestedValue))
		current = current.Add(decimal.NewFromFloat(r.Result.CurrentValue))
	}

	t := Totals{
		Invested: invested.InexactFloat64(),
		Current:  current.InexactFloat64(),
	}
	if !invested.IsZero() {
		t.ReturnPercent = current.Sub(invested).Div(invested).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	return t
}

// finiteOrZero maps Inf and NaN to 0. Very young pies overflow the annualized
// exponent and JSON cannot carry non-finite numbers.
func finiteOrZero(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}

// Row is a record plus the figures every presentation shows next to it.
type Row struct {
	portfolio.Record
	DisplayName      string  `json:"display_name"`
	ResultPercent    float64 `json:"result_percent"`
	ProgressPercent  float64 `json:"progress_percent"`
	AnnualizedReturn float64 `json:"annualized_return"`
}

// Rows derives display rows from a snapshot at the given instant.
func Rows(records []portfolio.Record, now time.Time) []Row {
	ts := float64(now.Unix())
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		row := Row{
			Record:        r,
			DisplayName:   r.DisplayName(),
			ResultPercent: r.Result.ResultCoefficient * 100,
			AnnualizedReturn: finiteOrZero(AnnualizedReturn(
				r.Result.InvestedValue, r.Result.CurrentValue, r.CreatedAtSeconds(), ts)),
		}
		if r.Progress != nil {
			row.ProgressPercent = *r.Progress * 100
		}
		rows = append(rows, row)
	}
	return rows
}

// FormatAmount renders a value in the account currency, e.g. "€1,234.50".
func FormatAmount(v float64, currency string) string {
	if currency == "" {
		return decimal.NewFromFloat(v).StringFixed(2)
	}
	return money.NewFromFloat(v, currency).Display()
}
