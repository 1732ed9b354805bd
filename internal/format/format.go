// Package format renders numbers, sizes and text for the view endpoints.
package format

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"findoc-gateway/internal/kpi"
)

// Missing is shown for an absent value.
const Missing = "—"

var scales = []struct {
	threshold decimal.Decimal
	suffix    string
}{
	{decimal.New(1, 12), "T"},
	{decimal.New(1, 9), "B"},
	{decimal.New(1, 6), "M"},
	{decimal.New(1, 3), "K"},
}

// LargeNumber abbreviates v with a T/B/M/K suffix and two decimals. Values
// below one thousand are printed with up to three decimals.
func LargeNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Missing
	}
	d := decimal.NewFromFloat(v)
	abs := d.Abs()
	for _, s := range scales {
		if abs.GreaterThanOrEqual(s.threshold) {
			return d.Div(s.threshold).StringFixed(2) + s.suffix
		}
	}
	return d.Round(3).String()
}

// Value formats an optional number, using Missing when absent.
func Value(v *float64) string {
	if v == nil {
		return Missing
	}
	return LargeNumber(*v)
}

// Ratio prints v with a fixed number of decimal places.
func Ratio(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Missing
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// KpiLabel turns a canonical key like total_assets into TOTAL ASSETS.
func KpiLabel(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "_", " "))
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FileSize prints a byte count in binary units rounded to two decimals.
func FileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	i, div := 0, int64(1)
	for i < len(sizeUnits)-1 && bytes >= div*1024 {
		div *= 1024
		i++
	}
	return decimal.NewFromInt(bytes).Div(decimal.NewFromInt(div)).Round(2).String() + " " + sizeUnits[i]
}

// Point is one value of a chart series.
type Point struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
}

// PeriodLabels names the prior2, prior1 and latest slots, in that order.
type PeriodLabels [3]string

// DefaultPeriodLabels is used when the document carries no period names.
var DefaultPeriodLabels = PeriodLabels{"Prior 2", "Prior 1", "Latest"}

// Series lists the periods of ps oldest first. Absent periods are dropped.
func Series(ps kpi.PeriodSet, labels PeriodLabels) []Point {
	slots := []*float64{ps.Prior2, ps.Prior1, ps.Latest}
	out := make([]Point, 0, len(slots))
	for i, v := range slots {
		if v == nil {
			continue
		}
		out = append(out, Point{Period: labels[i], Value: *v})
	}
	return out
}

// Bullets splits a summary paragraph into sentences, each ending with a period.
func Bullets(text string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(text, ". ") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasSuffix(part, ".") {
			part += "."
		}
		out = append(out, part)
	}
	return out
}
