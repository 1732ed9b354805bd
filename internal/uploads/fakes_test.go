package uploads

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"findoc-gateway/internal/analysisapi"
	"findoc-gateway/internal/cache"
)

const session = "tab-1"

type fakeBackend struct {
	mu sync.Mutex

	receipt    analysisapi.UploadReceipt
	analysis   map[string]any
	files      []analysisapi.FileRecord
	deleted    bool
	uploadErr  error
	analyzeErr error
	filesErr   error
	deleteErr  error
	saveErr    error

	uploads  int
	names    []string
	analyzed []string
	listed   int
	saved    []analysisapi.FileMetadata
}

func (f *fakeBackend) Upload(ctx context.Context, fileName string, r io.Reader) (analysisapi.UploadReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	f.names = append(f.names, fileName)
	if _, err := io.Copy(io.Discard, r); err != nil {
		return analysisapi.UploadReceipt{}, err
	}
	return f.receipt, f.uploadErr
}

func (f *fakeBackend) Analyze(ctx context.Context, storedAs string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzed = append(f.analyzed, storedAs)
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return f.analysis, nil
}

func (f *fakeBackend) Files(ctx context.Context) ([]analysisapi.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed++
	return f.files, f.filesErr
}

func (f *fakeBackend) DeleteFile(ctx context.Context, fileID string) (bool, error) {
	return f.deleted, f.deleteErr
}

func (f *fakeBackend) SaveFileMetadata(ctx context.Context, meta analysisapi.FileMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, meta)
	return f.saveErr
}

func acmeAnalysis() map[string]any {
	return map[string]any{
		"company_name": "Acme",
		"balance_sheet": []any{
			map[string]any{
				"label":   "Total Assets",
				"section": "assets",
				"values":  map[string]any{"col_1": "Note 4", "col_2": 900.0, "col_3": 1000.0, "col_4": 1100.0, "col_5": 1200.0},
			},
		},
		"kpis": map[string]any{"ratios": map[string]any{"current_ratio": 1.5}},
	}
}

func newTestService(t *testing.T, backend *fakeBackend) *Service {
	t.Helper()
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	coord := cache.New(cache.NewMemoryDurable(), cache.NewMemorySession(), cache.Options{})
	return &Service{
		Backend:  backend,
		Cache:    coord,
		MaxBytes: 1 << 20,
		Now:      func() time.Time { return now },
	}
}

// minimalPDF builds a well-formed PDF with the given number of empty pages.
func minimalPDF(pages int) []byte {
	objs := []string{"<< /Type /Catalog /Pages 2 0 R >>"}
	kids := make([]string, 0, pages)
	for i := 0; i < pages; i++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", i+3))
	}
	objs = append(objs, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		objs = append(objs, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, 0, len(objs))
	for i, obj := range objs {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}
