package kpi

import (
	"sort"
	"strconv"
	"strings"
)

const columnPrefix = "col_"

// columnRule maps fixed column keys to the three period slots. It applies
// when the row carries the marker column.
type columnRule struct {
	name                   string
	marker                 string
	latest, prior1, prior2 string
}

// columnRules is evaluated in order; the first rule whose marker is present
// decides the mapping. Five-column statements keep notes/codes in columns 1-2,
// four-column statements keep them in column 1.
var columnRules = []columnRule{
	{name: "five-column", marker: "col_5", latest: "col_3", prior1: "col_4", prior2: "col_5"},
	{name: "four-column", marker: "col_4", latest: "col_2", prior1: "col_3", prior2: "col_4"},
}

// mapColumns assigns a row's values to period slots. The second result is
// false ("unmapped") when no slot ends up with a value.
func mapColumns(values map[string]*float64) (PeriodSet, bool) {
	for _, rule := range columnRules {
		if _, ok := values[rule.marker]; !ok {
			continue
		}
		ps := PeriodSet{
			Latest: values[rule.latest],
			Prior1: values[rule.prior1],
			Prior2: values[rule.prior2],
		}
		return ps, !ps.Empty()
	}
	return mapTrailing(values)
}

// mapTrailing keeps the last three numeric columns, newest first.
func mapTrailing(values map[string]*float64) (PeriodSet, bool) {
	type column struct {
		index int
		value *float64
	}
	var numeric []column
	for key, v := range values {
		if v == nil {
			continue
		}
		idx, ok := columnIndex(key)
		if !ok {
			continue
		}
		numeric = append(numeric, column{index: idx, value: v})
	}
	if len(numeric) == 0 {
		return PeriodSet{}, false
	}
	sort.Slice(numeric, func(i, j int) bool { return numeric[i].index < numeric[j].index })
	if len(numeric) > 3 {
		numeric = numeric[len(numeric)-3:]
	}

	slots := make([]*float64, 3)
	for i := range numeric {
		slots[i] = numeric[len(numeric)-1-i].value
	}
	return PeriodSet{Latest: slots[0], Prior1: slots[1], Prior2: slots[2]}, true
}

// columnIndex parses a canonical column key. Padded or signed suffixes
// ("col_03", "col_+3") are not columns.
func columnIndex(key string) (int, bool) {
	if !strings.HasPrefix(key, columnPrefix) {
		return 0, false
	}
	suffix := strings.TrimPrefix(key, columnPrefix)
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 1 || strconv.Itoa(n) != suffix {
		return 0, false
	}
	return n, true
}

// RowLatest returns the newest-period value of a row, falling back to its
// flat value.
func RowLatest(row StatementRow) (float64, bool) {
	if ps, ok := mapColumns(row.Values); ok && ps.Latest != nil {
		return *ps.Latest, true
	}
	if row.Value != nil {
		return *row.Value, true
	}
	return 0, false
}
