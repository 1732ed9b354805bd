package kpi

import (
	"encoding/json"
	"reflect"
	"testing"
)

func f(v float64) *float64 { return &v }

func testSpecs(t *testing.T) []Spec {
	t.Helper()
	specs, err := ParseSpecs([]byte(`
kpis:
  - key: total_assets
    label: Total Assets
    section: balance_sheet
    keywords: ["Total Assets"]
  - key: revenue
    section: profit_and_loss
    keywords: ["revenue from operations", "total income"]
  - key: net_cash_flow
    section: cash_flow
    keywords: ["net increase"]
`))
	if err != nil {
		t.Fatalf("parse specs: %v", err)
	}
	return specs
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return m
}

func assertPeriods(t *testing.T, got PeriodSet, latest, prior1, prior2 *float64) {
	t.Helper()
	want := PeriodSet{Latest: latest, Prior1: prior1, Prior2: prior2}
	if !reflect.DeepEqual(got, want) {
		gj, _ := json.Marshal(got)
		wj, _ := json.Marshal(want)
		t.Fatalf("periods = %s, want %s", gj, wj)
	}
}

func TestExtract_FiveColumnRow(t *testing.T) {
	payload := decode(t, `{
		"balance_sheet": [
			{"label": "Total Assets", "section": "assets",
			 "values": {"col_1": "Note 4", "col_2": 900, "col_3": 1000, "col_4": 1100, "col_5": 1200}}
		]
	}`)

	res := Extract(payload, testSpecs(t))

	ps, ok := res.KpiPeriods["total_assets"]
	if !ok {
		t.Fatal("expected total_assets periods")
	}
	assertPeriods(t, ps, f(1000), f(1100), f(1200))
	if res.Kpis["total_assets"] != 1000 {
		t.Fatalf("kpis.total_assets = %v, want 1000", res.Kpis["total_assets"])
	}
}

func TestExtract_FiveColumnNonNumericIsNull(t *testing.T) {
	payload := decode(t, `{
		"balance_sheet": [
			{"label": "TOTAL ASSETS", "values": {"col_3": "n/a", "col_4": 1100, "col_5": null}}
		]
	}`)

	res := Extract(payload, testSpecs(t))
	assertPeriods(t, res.KpiPeriods["total_assets"], nil, f(1100), nil)
	if _, ok := res.Kpis["total_assets"]; ok {
		t.Fatal("kpis.total_assets should be absent without a latest value")
	}
}

func TestExtract_FourColumnRow(t *testing.T) {
	payload := decode(t, `{
		"pnl_rows": [
			{"label": "Other income", "values": {"col_2": 1}},
			{"label": "Revenue from operations", "values": {"col_1": "12", "col_2": 50, "col_3": 40, "col_4": 30}}
		]
	}`)

	res := Extract(payload, testSpecs(t))
	assertPeriods(t, res.KpiPeriods["revenue"], f(50), f(40), f(30))
}

func TestExtract_TrailingNumericColumns(t *testing.T) {
	tests := []struct {
		name   string
		values string
		want   PeriodSet
	}{
		{
			name:   "three columns newest last",
			values: `{"col_1": 10, "col_2": 20, "col_3": 30}`,
			want:   PeriodSet{Latest: f(30), Prior1: f(20), Prior2: f(10)},
		},
		{
			name:   "two columns",
			values: `{"col_1": 7, "col_2": 8}`,
			want:   PeriodSet{Latest: f(8), Prior1: f(7)},
		},
		{
			name:   "ignores non numeric",
			values: `{"col_1": "x", "col_3": 5}`,
			want:   PeriodSet{Latest: f(5)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := decode(t, `{"cash_flow": [{"label": "Net increase in cash", "values": `+tt.values+`}]}`)
			res := Extract(payload, testSpecs(t))
			if !reflect.DeepEqual(res.KpiPeriods["net_cash_flow"], tt.want) {
				t.Fatalf("periods = %+v, want %+v", res.KpiPeriods["net_cash_flow"], tt.want)
			}
		})
	}
}

func TestExtract_FlatScalarFallback(t *testing.T) {
	payload := decode(t, `{
		"balance_sheet": [],
		"important_kpis": {"total_assets": 42, "revenue": "n/a", "ratios": {"current_ratio": 1.5, "bad": "x"}}
	}`)

	res := Extract(payload, testSpecs(t))
	assertPeriods(t, res.KpiPeriods["total_assets"], f(42), nil, nil)
	if _, ok := res.KpiPeriods["revenue"]; ok {
		t.Fatal("non-numeric flat scalar must not produce periods")
	}
	if !reflect.DeepEqual(res.Ratios, map[string]float64{"current_ratio": 1.5}) {
		t.Fatalf("ratios = %v", res.Ratios)
	}
}

func TestExtract_AllNullRowFallsBackToScalar(t *testing.T) {
	payload := decode(t, `{
		"balance_sheet": [{"label": "Total assets", "values": {"col_3": null, "col_4": "-", "col_5": null}}],
		"kpis": {"total_assets": 77}
	}`)

	res := Extract(payload, testSpecs(t))
	assertPeriods(t, res.KpiPeriods["total_assets"], f(77), nil, nil)
}

func TestExtract_OmitsUnresolvedKPIs(t *testing.T) {
	payload := decode(t, `{
		"balance_sheet": [{"label": "Inventories", "values": {"col_2": 1}}],
		"pnl": "not a list",
		"kpis": null
	}`)

	res := Extract(payload, testSpecs(t))
	if len(res.KpiPeriods) != 0 {
		t.Fatalf("expected no periods, got %v", res.KpiPeriods)
	}
	if len(res.Kpis) != 0 {
		t.Fatalf("expected no kpis, got %v", res.Kpis)
	}
}

func TestExtract_LabeledPeriodsBypassColumns(t *testing.T) {
	payload := decode(t, `{
		"balance_sheet": [{"label": "Total Assets", "values": {"col_3": 1, "col_4": 2, "col_5": 3}}],
		"kpi_periods": {"total_assets": {"latest": 9, "prev1": 8, "prev2": null}}
	}`)

	res := Extract(payload, testSpecs(t))
	assertPeriods(t, res.KpiPeriods["total_assets"], f(9), f(8), nil)
}

func TestExtract_YearKeyedPeriods(t *testing.T) {
	tests := []struct {
		name    string
		periods string
		want    PeriodSet
	}{
		{
			name:    "newest first",
			periods: `{"2023": 7, "2025": 9, "2024": 8}`,
			want:    PeriodSet{Latest: f(9), Prior1: f(8), Prior2: f(7)},
		},
		{
			name:    "keeps three newest",
			periods: `{"2021": 1, "2022": 2, "2023": 3, "2024": 4}`,
			want:    PeriodSet{Latest: f(4), Prior1: f(3), Prior2: f(2)},
		},
		{
			name:    "null year keeps its slot",
			periods: `{"2025": null, "2024": 8}`,
			want:    PeriodSet{Prior1: f(8)},
		},
		{
			name:    "slot names win",
			periods: `{"latest": 5, "2025": 9}`,
			want:    PeriodSet{Latest: f(5)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := decode(t, `{
				"balance_sheet": [{"label": "Total Assets", "values": {"col_3": 1, "col_4": 2, "col_5": 3}}],
				"kpi_periods": {"total_assets": `+tt.periods+`}
			}`)
			res := Extract(payload, testSpecs(t))
			if !reflect.DeepEqual(res.KpiPeriods["total_assets"], tt.want) {
				gj, _ := json.Marshal(res.KpiPeriods["total_assets"])
				t.Fatalf("periods = %s", gj)
			}
		})
	}
}

func TestExtract_Idempotent(t *testing.T) {
	payload := decode(t, `{
		"balance_sheet": [{"label": "Total Assets", "values": {"col_2": 1, "col_3": 2, "col_4": 3}}],
		"kpis": {"revenue": 5, "ratios": {"roe": 0.1}}
	}`)
	specs := testSpecs(t)

	a := Extract(payload, specs)
	b := Extract(payload, specs)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("extract not idempotent: %+v vs %+v", a, b)
	}
}

func TestExtract_CollidingColumnKeysAreDeterministic(t *testing.T) {
	payload := decode(t, `{
		"cash_flow": [{"label": "Net increase in cash",
			"values": {"col_1": 1, "col_2": 2, "col_3": 3, "col_03": 30, "COL_2": 20, " col_1 ": 10}}]
	}`)
	specs := testSpecs(t)

	for i := 0; i < 50; i++ {
		res := Extract(payload, specs)
		assertPeriods(t, res.KpiPeriods["net_cash_flow"], f(3), f(2), f(1))
	}
}

func TestColumnIndex(t *testing.T) {
	tests := []struct {
		key  string
		want int
		ok   bool
	}{
		{key: "col_3", want: 3, ok: true},
		{key: "col_12", want: 12, ok: true},
		{key: "col_03"},
		{key: "col_+3"},
		{key: "col_0"},
		{key: "col_"},
		{key: "value"},
	}
	for _, tt := range tests {
		got, ok := columnIndex(tt.key)
		if got != tt.want || ok != tt.ok {
			t.Errorf("columnIndex(%q) = %d, %v; want %d, %v", tt.key, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizeValuesPrefersExactKey(t *testing.T) {
	got := normalizeValues(map[string]any{"COL_2": 20, "col_2": 2, " Col_2": 200, "Col_4": 4, "COL_4": 40})
	if *got["col_2"] != 2 {
		t.Fatalf("col_2 = %v, want 2", *got["col_2"])
	}
	// "COL_4" sorts before "Col_4".
	if *got["col_4"] != 40 {
		t.Fatalf("col_4 = %v, want 40", *got["col_4"])
	}
}

func TestExtract_NilPayload(t *testing.T) {
	res := Extract(nil, testSpecs(t))
	if res.Kpis == nil || res.Ratios == nil || res.KpiPeriods == nil {
		t.Fatal("expected non-nil maps")
	}
}

func TestBuild_RoundTripsThroughJSON(t *testing.T) {
	payload := decode(t, `{
		"company": "Acme Ltd",
		"balance_sheet": [
			{"label": "Cash", "section": "assets", "values": {"col_2": 5, "col_3": 4, "col_4": 3}},
			{"label": "Total Assets", "section": "assets", "values": {"col_2": 50, "col_3": 40, "col_4": 30}}
		],
		"kpis": {"ratios": {"roe": 0.2}}
	}`)

	doc := Build("D1", payload, testSpecs(t))
	if doc.CompanyName != "Acme Ltd" {
		t.Fatalf("company = %q", doc.CompanyName)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got DocumentAnalysis
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, doc) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, doc)
	}

	var wire map[string]any
	_ = json.Unmarshal(data, &wire)
	periods := wire["kpi_periods"].(map[string]any)["total_assets"].(map[string]any)
	if _, ok := periods["prior2"]; !ok {
		t.Fatal("absent period slots must serialise as null")
	}
}

func TestBreakdown(t *testing.T) {
	rows := []StatementRow{
		{Label: "Cash", Section: "assets", Values: map[string]*float64{"col_2": f(5), "col_3": f(4), "col_4": f(3)}},
		{Label: "Loans", Section: "liabilities", Values: map[string]*float64{"col_1": f(9)}},
		{Label: "Goodwill", Section: "assets", Values: map[string]*float64{}, Value: f(2)},
		{Label: "Blank", Section: "assets", Values: map[string]*float64{}},
		{Label: "Land", Section: "assets", Values: map[string]*float64{"col_1": f(1)}},
	}

	got := Breakdown(rows, "assets", 2)
	want := []Slice{{Name: "Cash", Value: 5}, {Name: "Goodwill", Value: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("breakdown = %+v, want %+v", got, want)
	}
}
