package kpi

import "strings"

// Extract derives, for each spec, a PeriodSet and a latest scalar from a raw
// analysis payload. It never fails: malformed input yields omitted KPIs.
//
// Lookup order per KPI: a period object the service already labeled, then the
// first statement row whose label contains a keyword, then the flat scalar
// from the service's KPI summary (latest slot only). A KPI with no value
// anywhere is left out of KpiPeriods entirely.
func Extract(raw map[string]any, specs []Spec) Result {
	return extract(newPayload(raw), specs)
}

func extract(p payload, specs []Spec) Result {
	res := Result{
		Kpis:       make(map[string]float64),
		Ratios:     p.ratios(),
		KpiPeriods: make(map[string]PeriodSet),
	}

	rowsBySection := make(map[Section][]StatementRow, 3)
	for _, spec := range specs {
		rows, ok := rowsBySection[spec.Section]
		if !ok {
			rows = p.rows(spec.Section)
			rowsBySection[spec.Section] = rows
		}

		ps, found := periodsFor(p, spec, rows)
		if found {
			res.KpiPeriods[spec.Key] = ps
		}
		switch {
		case ps.Latest != nil:
			res.Kpis[spec.Key] = *ps.Latest
		default:
			if v, ok := p.flatKPI(spec.Key); ok {
				res.Kpis[spec.Key] = v
			}
		}
	}
	return res
}

func periodsFor(p payload, spec Spec, rows []StatementRow) (PeriodSet, bool) {
	if ps, ok := p.labeledPeriods(spec.Key); ok {
		return ps, true
	}
	if row, ok := matchRow(rows, spec.Keywords); ok {
		if ps, ok := mapColumns(row.Values); ok {
			return ps, true
		}
	}
	if v, ok := p.flatKPI(spec.Key); ok {
		return PeriodSet{Latest: &v}, true
	}
	return PeriodSet{}, false
}

// matchRow returns the first row whose lower-cased label contains any keyword.
func matchRow(rows []StatementRow, keywords []string) (StatementRow, bool) {
	for _, row := range rows {
		label := strings.ToLower(row.Label)
		if label == "" {
			continue
		}
		for _, kw := range keywords {
			if strings.Contains(label, kw) {
				return row, true
			}
		}
	}
	return StatementRow{}, false
}

// Build runs Extract and assembles the full DocumentAnalysis for a document.
func Build(documentID string, raw map[string]any, specs []Spec) DocumentAnalysis {
	p := newPayload(raw)
	res := extract(p, specs)
	return DocumentAnalysis{
		DocumentID:    documentID,
		CompanyName:   p.company(),
		BalanceSheet:  p.rows(SectionBalanceSheet),
		ProfitAndLoss: p.rows(SectionProfitAndLoss),
		CashFlow:      p.rows(SectionCashFlow),
		KPIs:          KPIs{Values: res.Kpis, Ratios: res.Ratios},
		KpiPeriods:    res.KpiPeriods,
	}
}

// Slice is a labeled latest value used for composition charts.
type Slice struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Breakdown returns up to limit balance-sheet rows tagged with the given
// section ("assets" or "liabilities") that carry a latest value.
func Breakdown(rows []StatementRow, section string, limit int) []Slice {
	out := make([]Slice, 0)
	for _, row := range rows {
		if limit > 0 && len(out) >= limit {
			break
		}
		if row.Section != section {
			continue
		}
		if v, ok := RowLatest(row); ok {
			out = append(out, Slice{Name: row.Label, Value: v})
		}
	}
	return out
}
