package dashboard

import (
	"findoc-gateway/internal/format"
	"findoc-gateway/internal/kpi"
)

// Card is one KPI tile.
type Card struct {
	Key   string   `json:"key"`
	Label string   `json:"label"`
	Value string   `json:"value"`
	Raw   *float64 `json:"raw"`
}

// Chart is the trend series of one KPI, oldest period first.
type Chart struct {
	Key    string         `json:"key"`
	Label  string         `json:"label"`
	Points []format.Point `json:"points"`
}

// Ratio is one point-in-time ratio.
type Ratio struct {
	Key   string  `json:"key"`
	Label string  `json:"label"`
	Value string  `json:"value"`
	Raw   float64 `json:"raw"`
}

// View is the dashboard payload for one document.
type View struct {
	Analysis    kpi.DocumentAnalysis `json:"analysis"`
	Cards       []Card               `json:"cards"`
	Charts      []Chart              `json:"charts"`
	Ratios      []Ratio              `json:"ratios"`
	Assets      []kpi.Slice          `json:"assets"`
	Liabilities []kpi.Slice          `json:"liabilities"`
}
