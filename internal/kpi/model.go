package kpi

import (
	"encoding/json"
	"fmt"
)

// Section names a financial statement a KPI is searched in.
type Section string

const (
	SectionBalanceSheet  Section = "balance_sheet"
	SectionProfitAndLoss Section = "profit_and_loss"
	SectionCashFlow      Section = "cash_flow"
)

// Valid reports whether s is one of the known statement sections.
func (s Section) Valid() bool {
	switch s {
	case SectionBalanceSheet, SectionProfitAndLoss, SectionCashFlow:
		return true
	default:
		return false
	}
}

// PeriodSet holds up to three periods relative to the latest one.
// Absent values serialise as null so every slot is always present.
type PeriodSet struct {
	Latest *float64 `json:"latest"`
	Prior1 *float64 `json:"prior1"`
	Prior2 *float64 `json:"prior2"`
}

// Empty reports whether no slot carries a value.
func (p PeriodSet) Empty() bool {
	return p.Latest == nil && p.Prior1 == nil && p.Prior2 == nil
}

// StatementRow is one normalized line item of a statement.
type StatementRow struct {
	Label   string              `json:"label"`
	Section string              `json:"section,omitempty"`
	Values  map[string]*float64 `json:"values"`
	Value   *float64            `json:"value,omitempty"`
}

// Result is the output of Extract.
type Result struct {
	Kpis       map[string]float64
	Ratios     map[string]float64
	KpiPeriods map[string]PeriodSet
}

// KPIs carries the flat latest values plus the ratios. On the wire the
// ratios live under the "ratios" key of the same object.
type KPIs struct {
	Values map[string]float64
	Ratios map[string]float64
}

const ratiosKey = "ratios"

func (k KPIs) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(k.Values)+1)
	for key, v := range k.Values {
		out[key] = v
	}
	ratios := k.Ratios
	if ratios == nil {
		ratios = map[string]float64{}
	}
	out[ratiosKey] = ratios
	return json.Marshal(out)
}

func (k *KPIs) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode kpis: %w", err)
	}
	k.Values = make(map[string]float64, len(raw))
	k.Ratios = make(map[string]float64)
	for key, msg := range raw {
		if key == ratiosKey {
			var ratios map[string]float64
			if err := json.Unmarshal(msg, &ratios); err != nil {
				return fmt.Errorf("decode kpis.ratios: %w", err)
			}
			for rk, rv := range ratios {
				k.Ratios[rk] = rv
			}
			continue
		}
		var v float64
		if err := json.Unmarshal(msg, &v); err != nil {
			continue
		}
		k.Values[key] = v
	}
	return nil
}

// DocumentAnalysis is the normalized payload for one uploaded document.
// It is built once after an analysis fetch and never mutated afterwards.
type DocumentAnalysis struct {
	DocumentID    string               `json:"file_id"`
	CompanyName   string               `json:"company_name,omitempty"`
	BalanceSheet  []StatementRow       `json:"balance_sheet"`
	ProfitAndLoss []StatementRow       `json:"pnl"`
	CashFlow      []StatementRow       `json:"cash_flow"`
	KPIs          KPIs                 `json:"kpis"`
	KpiPeriods    map[string]PeriodSet `json:"kpi_periods"`
}

// Rows returns the statement rows for a section.
func (a DocumentAnalysis) Rows(section Section) []StatementRow {
	switch section {
	case SectionBalanceSheet:
		return a.BalanceSheet
	case SectionProfitAndLoss:
		return a.ProfitAndLoss
	case SectionCashFlow:
		return a.CashFlow
	default:
		return nil
	}
}
