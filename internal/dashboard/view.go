package dashboard

import (
	"sort"

	"findoc-gateway/internal/format"
	"findoc-gateway/internal/kpi"
)

const (
	breakdownLimit = 6
	ratioPlaces    = 2
)

// Build derives the dashboard tiles, charts and breakdowns from a document.
// KPIs with no value get a card showing the missing marker but no chart.
func Build(doc kpi.DocumentAnalysis, specs []kpi.Spec) View {
	v := View{
		Analysis:    doc,
		Cards:       make([]Card, 0, len(specs)),
		Charts:      make([]Chart, 0, len(specs)),
		Ratios:      make([]Ratio, 0, len(doc.KPIs.Ratios)),
		Assets:      kpi.Breakdown(doc.BalanceSheet, "assets", breakdownLimit),
		Liabilities: kpi.Breakdown(doc.BalanceSheet, "liabilities", breakdownLimit),
	}

	for _, spec := range specs {
		label := spec.Label
		if label == "" {
			label = format.KpiLabel(spec.Key)
		}
		ps, ok := doc.KpiPeriods[spec.Key]
		latest := ps.Latest
		if latest == nil {
			if flat, found := doc.KPIs.Values[spec.Key]; found {
				latest = &flat
			}
		}
		v.Cards = append(v.Cards, Card{Key: spec.Key, Label: label, Value: format.Value(latest), Raw: latest})

		if !ok {
			continue
		}
		if points := format.Series(ps, format.DefaultPeriodLabels); len(points) > 0 {
			v.Charts = append(v.Charts, Chart{Key: spec.Key, Label: label, Points: points})
		}
	}

	keys := make([]string, 0, len(doc.KPIs.Ratios))
	for k := range doc.KPIs.Ratios {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		raw := doc.KPIs.Ratios[k]
		v.Ratios = append(v.Ratios, Ratio{Key: k, Label: format.KpiLabel(k), Value: format.Ratio(raw, ratioPlaces), Raw: raw})
	}
	return v
}
