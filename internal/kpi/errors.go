package kpi

import "errors"

// ErrInvalidSpec is returned when a KPI table fails validation.
var ErrInvalidSpec = errors.New("invalid kpi spec")
