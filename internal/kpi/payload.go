package kpi

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

// Aliases under which the analysis service has shipped each part of the
// payload. The first alias holding a value of the right shape wins.
var (
	sectionAliases = map[Section][]string{
		SectionBalanceSheet:  {"balance_sheet"},
		SectionProfitAndLoss: {"pnl_rows", "pnl", "profit_and_loss"},
		SectionCashFlow:      {"cash_flow", "cash_flow_rows"},
	}
	flatKPIAliases = []string{"kpis", "important_kpis"}
	companyAliases = []string{"company_name", "company"}
)

// payload wraps a decoded analysis response. Any field may be missing or
// of the wrong type; lookups degrade to "absent".
type payload struct {
	raw map[string]any
}

func newPayload(raw map[string]any) payload {
	if raw == nil {
		raw = map[string]any{}
	}
	return payload{raw: raw}
}

// keyPath builds a bracket-notation JSONPath so keys are never parsed as syntax.
func keyPath(keys ...string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, k := range keys {
		b.WriteString("[")
		b.WriteString(strconv.Quote(k))
		b.WriteString("]")
	}
	return b.String()
}

func (p payload) get(keys ...string) (any, bool) {
	v, err := jsonpath.Get(keyPath(keys...), p.raw)
	if err != nil || v == nil {
		return nil, false
	}
	return v, true
}

func (p payload) object(keys ...string) (map[string]any, bool) {
	v, ok := p.get(keys...)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

func (p payload) rows(section Section) []StatementRow {
	for _, alias := range sectionAliases[section] {
		v, ok := p.get(alias)
		if !ok {
			continue
		}
		list, ok := v.([]any)
		if !ok {
			continue
		}
		return normalizeRows(list)
	}
	return []StatementRow{}
}

func (p payload) flatKPI(key string) (float64, bool) {
	for _, alias := range flatKPIAliases {
		if v, ok := p.get(alias, key); ok {
			if n, ok := toNumber(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func (p payload) ratios() map[string]float64 {
	out := make(map[string]float64)
	for _, alias := range flatKPIAliases {
		obj, ok := p.object(alias, ratiosKey)
		if !ok {
			continue
		}
		for k, v := range obj {
			if n, ok := toNumber(v); ok {
				out[k] = n
			}
		}
		return out
	}
	return out
}

// labeledPeriods returns a period object the service already labeled for key,
// either under kpi_periods.<key> or kpis.<key>_periods. Slot names
// (latest/prior1/prior2, prev1/prev2) win over year keys.
func (p payload) labeledPeriods(key string) (PeriodSet, bool) {
	candidates := [][]string{{"kpi_periods", key}}
	for _, alias := range flatKPIAliases {
		candidates = append(candidates, []string{alias, key + "_periods"})
	}
	for _, path := range candidates {
		obj, ok := p.object(path...)
		if !ok {
			continue
		}
		ps := PeriodSet{
			Latest: numberPtr(obj["latest"]),
			Prior1: firstNumberPtr(obj["prior1"], obj["prev1"]),
			Prior2: firstNumberPtr(obj["prior2"], obj["prev2"]),
		}
		if ps.Empty() {
			ps = yearPeriods(obj)
		}
		if !ps.Empty() {
			return ps, true
		}
	}
	return PeriodSet{}, false
}

// yearPeriods reads a period object keyed by four-digit years, e.g.
// {"2025": 10, "2024": 9}. The newest three years fill the slots.
func yearPeriods(obj map[string]any) PeriodSet {
	var years []string
	for k := range obj {
		if isYear(k) {
			years = append(years, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(years)))

	slots := make([]*float64, 3)
	for i := 0; i < len(years) && i < len(slots); i++ {
		slots[i] = numberPtr(obj[years[i]])
	}
	return PeriodSet{Latest: slots[0], Prior1: slots[1], Prior2: slots[2]}
}

func isYear(k string) bool {
	if len(k) != 4 {
		return false
	}
	for _, r := range k {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (p payload) company() string {
	for _, alias := range companyAliases {
		if v, ok := p.get(alias); ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func normalizeRows(list []any) []StatementRow {
	rows := make([]StatementRow, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		row := StatementRow{
			Label:   firstString(obj, "label", "item", "name"),
			Section: firstString(obj, "section"),
			Values:  map[string]*float64{},
			Value:   numberPtr(obj["value"]),
		}
		if vals, ok := obj["values"].(map[string]any); ok {
			row.Values = normalizeValues(vals)
		}
		rows = append(rows, row)
	}
	return rows
}

// normalizeValues lower-cases and trims value keys. When several raw keys
// fold to the same key, an exact match wins, then the smallest raw key.
func normalizeValues(vals map[string]any) map[string]*float64 {
	raw := make([]string, 0, len(vals))
	for k := range vals {
		raw = append(raw, k)
	}
	sort.Strings(raw)

	out := make(map[string]*float64, len(vals))
	exact := make(map[string]bool, len(vals))
	for _, k := range raw {
		nk := strings.ToLower(strings.TrimSpace(k))
		if _, seen := out[nk]; seen && (exact[nk] || k != nk) {
			continue
		}
		out[nk] = numberPtr(vals[k])
		exact[nk] = k == nk
	}
	return out
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// toNumber accepts only finite numeric JSON values. Strings are never coerced.
func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func numberPtr(v any) *float64 {
	if n, ok := toNumber(v); ok {
		return &n
	}
	return nil
}

func firstNumberPtr(vs ...any) *float64 {
	for _, v := range vs {
		if p := numberPtr(v); p != nil {
			return p
		}
	}
	return nil
}
