package uploads

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	valid := minimalPDF(1)

	tests := []struct {
		name     string
		file     string
		data     []byte
		maxBytes int64
		want     string
	}{
		{name: "valid", file: "report.pdf", data: valid},
		{name: "upper case extension", file: "REPORT.PDF", data: valid},
		{name: "no size limit", file: "report.pdf", data: valid, maxBytes: -1},
		{name: "wrong extension", file: "report.docx", data: valid, want: "only PDF files"},
		{name: "empty", file: "report.pdf", data: nil, want: "file is empty"},
		{name: "too large", file: "report.pdf", data: valid, maxBytes: 10, want: "the limit is 10 Bytes"},
		{name: "not a pdf", file: "report.pdf", data: []byte("hello world"), want: "not a PDF"},
		{name: "broken pdf", file: "report.pdf", data: []byte("%PDF-1.4\ngarbage"), want: "could not be read"},
		{name: "no pages", file: "report.pdf", data: minimalPDF(0), want: "no pages"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			max := tc.maxBytes
			if max == 0 {
				max = 1 << 20
			}
			err := Validate(tc.file, tc.data, max)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	err := Validate("notes.txt", nil, 1<<20)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(verr.Problems) != 2 {
		t.Fatalf("expected 2 problems, got %v", verr.Problems)
	}
}
