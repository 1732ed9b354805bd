package uploads

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"findoc-gateway/internal/format"
)

const pdfMIME = "application/pdf"

var pdfSignature = []byte("%PDF")

// Validate checks an upload before it is sent to the analysis service.
// data holds the whole file; maxBytes <= 0 disables the size limit.
func Validate(name string, data []byte, maxBytes int64) error {
	var problems []string
	size := int64(len(data))

	if !strings.EqualFold(filepath.Ext(strings.TrimSpace(name)), ".pdf") {
		problems = append(problems, "only PDF files are supported")
	}
	switch {
	case size == 0:
		problems = append(problems, "file is empty")
	case maxBytes > 0 && size > maxBytes:
		problems = append(problems, fmt.Sprintf("file is %s, the limit is %s", format.FileSize(size), format.FileSize(maxBytes)))
	case !bytes.HasPrefix(data, pdfSignature):
		problems = append(problems, "file content is not a PDF")
	default:
		if pages, err := countPages(data); err != nil {
			problems = append(problems, "PDF could not be read")
		} else if pages == 0 {
			problems = append(problems, "PDF has no pages")
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// countPages opens the document with the PDF reader. The reader panics on
// some malformed inputs, which is reported as an error.
func countPages(data []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	return reader.NumPage(), nil
}
