package analysisapi

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrShape is returned when a response lacks a field the caller depends on.
var ErrShape = errors.New("unexpected response shape")

// StatusError is a non-2xx answer from the analysis service.
type StatusError struct {
	Op     string
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: analysis service returned %d: %s", e.Op, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: analysis service returned %d", e.Op, e.Status)
}

// IsNotFound reports whether err is a 404 from the analysis service.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}

func shapeError(op, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", op, ErrShape, fmt.Sprintf(format, args...))
}

// Classify maps a client error to the gateway's error code and details.
// Shape errors become "shape_error", everything else "upstream_error".
func Classify(err error) (string, map[string]any) {
	if errors.Is(err, ErrShape) {
		return "shape_error", nil
	}
	var se *StatusError
	if errors.As(err, &se) {
		details := map[string]any{"status": se.Status}
		if se.Detail != "" {
			details["detail"] = se.Detail
		}
		return "upstream_error", details
	}
	return "upstream_error", nil
}
