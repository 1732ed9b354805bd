package cache

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"slices"
	"testing"
	"time"

	"findoc-gateway/internal/analysisapi"
	"findoc-gateway/internal/kpi"
)

const session = "tab-1"

func newTestCoordinator(t *testing.T) (*Coordinator, *MemoryDurable, *MemorySession) {
	t.Helper()
	durable := NewMemoryDurable()
	sess := NewMemorySession()
	return New(durable, sess, Options{}), durable, sess
}

func analysisPayload(t *testing.T, company string, latest float64) map[string]any {
	t.Helper()
	var m map[string]any
	raw := `{
		"company": "` + company + `",
		"balance_sheet": [{"label": "Total Assets", "section": "assets", "values": {"col_2": 0, "col_3": 0, "col_4": 0}}]
	}`
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	m["balance_sheet"].([]any)[0].(map[string]any)["values"].(map[string]any)["col_2"] = latest
	return m
}

func recordUpload(t *testing.T, c *Coordinator, id, company string) kpi.DocumentAnalysis {
	t.Helper()
	return c.RecordUpload(context.Background(), session, Upload{
		DocumentID: id,
		Result:     map[string]any{"file_id": id, "stored_as": id + ".pdf"},
		Analysis:   analysisPayload(t, company, 100),
		File:       FileInfo{Name: id + ".pdf", Size: 10, Type: "application/pdf"},
	})
}

func sessionKeys(t *testing.T, s *MemorySession) []string {
	t.Helper()
	keys, err := s.Keys(context.Background(), session)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	return keys
}

func TestRecordUpload_FreshDocumentServedWithoutFetch(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	doc := recordUpload(t, c, "D1", "Acme")
	if doc.CompanyName != "Acme" {
		t.Fatalf("company = %q", doc.CompanyName)
	}

	var got kpi.DocumentAnalysis
	if !c.ReadForView(ctx, session, ViewDashboard, "D1", &got) {
		t.Fatal("expected dashboard hit for freshly recorded document")
	}
	if !reflect.DeepEqual(got, doc) {
		t.Fatalf("dashboard = %+v, want %+v", got, doc)
	}

	var up UploadView
	if !c.ReadForView(ctx, session, ViewUpload, "D1", &up) {
		t.Fatal("expected upload hit")
	}
	if up.Upload["stored_as"] != "D1.pdf" || up.File.ID != "D1" {
		t.Fatalf("unexpected upload view: %+v", up)
	}

	p, ok := c.Current(ctx)
	if !ok || p.DocumentID != "D1" || p.CompanyName != "Acme" {
		t.Fatalf("pointer = %+v, %v", p, ok)
	}
}

func TestRecordUpload_InvalidatesPreviousDocument(t *testing.T) {
	c, _, sess := newTestCoordinator(t)
	ctx := context.Background()

	recordUpload(t, c, "D1", "Acme")
	c.WriteForView(ctx, session, ViewDashboard, "D1", kpi.DocumentAnalysis{DocumentID: "D1"})
	c.WriteForView(ctx, session, ViewSummary, "D1", map[string]any{"summary": "old"})
	c.WriteForView(ctx, session, ViewNews, "Acme", []map[string]any{{"title": "x"}})
	c.WriteForView(ctx, session, ViewFiles, "", []FileInfo{{ID: "D1"}})

	doc2 := recordUpload(t, c, "D2", "Beta")

	keys := sessionKeys(t, sess)
	for _, stale := range []string{"dashboard_D1", "summary_D1", "document_D1", "news_Acme", "files_list"} {
		if slices.Contains(keys, stale) {
			t.Fatalf("expected %s removed, keys = %v", stale, keys)
		}
	}
	for _, absent := range []string{"upload_D2", "dashboard_D2"} {
		if slices.Contains(keys, absent) {
			t.Fatalf("expected %s absent until written, keys = %v", absent, keys)
		}
	}

	var got kpi.DocumentAnalysis
	if c.ReadForView(ctx, session, ViewDashboard, "D1", &got) {
		t.Fatal("dashboard for D1 should miss after D2 upload")
	}
	if !c.ReadForView(ctx, session, ViewDashboard, "D2", &got) {
		t.Fatal("dashboard for D2 should hit without a fetch")
	}
	if !reflect.DeepEqual(got, doc2) {
		t.Fatalf("dashboard D2 = %+v", got)
	}
}

func TestRecordUpload_PinnedDocumentSurvives(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	recordUpload(t, c, "D1", "Acme")
	want := kpi.DocumentAnalysis{DocumentID: "D1", CompanyName: "Acme", KpiPeriods: map[string]kpi.PeriodSet{}}
	c.WriteForView(ctx, session, ViewDashboard, "D1", want)
	if err := c.Pin(ctx, session, "D1"); err != nil {
		t.Fatalf("pin: %v", err)
	}

	recordUpload(t, c, "D2", "Beta")

	var got kpi.DocumentAnalysis
	if !c.ReadForView(ctx, session, ViewDashboard, "D1", &got) {
		t.Fatal("pinned dashboard should survive a new upload")
	}
	if got.DocumentID != "D1" {
		t.Fatalf("got %+v", got)
	}

	if err := c.Unpin(ctx, session, "D1"); err != nil {
		t.Fatalf("unpin: %v", err)
	}
	if pinned := c.Pinned(ctx, session); len(pinned) != 0 {
		t.Fatalf("pinned = %v", pinned)
	}
	recordUpload(t, c, "D3", "Gamma")
	if c.ReadForView(ctx, session, ViewDashboard, "D1", &got) {
		t.Fatal("unpinned dashboard should be invalidated")
	}
}

func TestWriteThenRead_RoundTrip(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	latest := 12.5

	tests := []struct {
		name string
		view View
		key  string
		data any
		dst  func() any
	}{
		{
			name: "dashboard",
			view: ViewDashboard,
			key:  "D9",
			data: &kpi.DocumentAnalysis{
				DocumentID:    "D9",
				BalanceSheet:  []kpi.StatementRow{{Label: "Cash", Values: map[string]*float64{"col_2": &latest}}},
				ProfitAndLoss: []kpi.StatementRow{},
				CashFlow:      []kpi.StatementRow{},
				KPIs:          kpi.KPIs{Values: map[string]float64{"revenue": 1}, Ratios: map[string]float64{}},
				KpiPeriods:    map[string]kpi.PeriodSet{"revenue": {Latest: &latest}},
			},
			dst: func() any { return &kpi.DocumentAnalysis{} },
		},
		{
			name: "summary",
			view: ViewSummary,
			key:  "D9",
			data: &map[string]any{"summary": "text", "start_page": 3.0},
			dst:  func() any { return &map[string]any{} },
		},
		{
			name: "news",
			view: ViewNews,
			key:  "Acme Corp",
			data: &[]map[string]any{{"title": "t", "url": "u"}},
			dst:  func() any { return &[]map[string]any{} },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.WriteForView(ctx, session, tt.view, tt.key, tt.data)
			dst := tt.dst()
			if !c.ReadForView(ctx, session, tt.view, tt.key, dst) {
				t.Fatal("expected hit after write")
			}
			if !reflect.DeepEqual(dst, tt.data) {
				t.Fatalf("read %+v, want %+v", dst, tt.data)
			}
		})
	}

	p, ok := c.Current(ctx)
	if !ok || p.DocumentID != "D9" {
		t.Fatalf("summary/dashboard writes should move the pointer, got %+v", p)
	}
}

func TestReadForView_CorruptEntryIsMiss(t *testing.T) {
	c, _, sess := newTestCoordinator(t)
	ctx := context.Background()

	if err := sess.Put(ctx, session, "summary_D1", []byte("{not json"), 0); err != nil {
		t.Fatalf("put: %v", err)
	}
	var dst map[string]any
	if c.ReadForView(ctx, session, ViewSummary, "D1", &dst) {
		t.Fatal("corrupt entry must be a miss")
	}

	c.WriteForView(ctx, session, ViewSummary, "D2", "plain string")
	var wrongType map[string]any
	if c.ReadForView(ctx, session, ViewSummary, "D2", &wrongType) {
		t.Fatal("undecodable entry must be a miss")
	}
}

func TestReadForView_NewsTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(NewMemoryDurable(), NewMemorySession(), Options{
		NewsTTL: time.Hour,
		Now:     func() time.Time { return now },
	})
	ctx := context.Background()

	c.WriteForView(ctx, session, ViewNews, "Acme", []string{"a"})
	var got []string
	if !c.ReadForView(ctx, session, ViewNews, "Acme", &got) {
		t.Fatal("expected fresh news hit")
	}
	now = now.Add(2 * time.Hour)
	if c.ReadForView(ctx, session, ViewNews, "Acme", &got) {
		t.Fatal("expected expired news miss")
	}
}

func TestClearNamespace(t *testing.T) {
	c, durable, sess := newTestCoordinator(t)
	ctx := context.Background()

	recordUpload(t, c, "D1", "Acme")
	if err := sess.Put(ctx, session, "foreign_key", []byte("x"), 0); err != nil {
		t.Fatalf("put: %v", err)
	}

	c.ClearNamespace(ctx, session)

	if keys := sessionKeys(t, sess); !reflect.DeepEqual(keys, []string{"foreign_key"}) {
		t.Fatalf("keys after clear = %v", keys)
	}
	if _, ok := c.Current(ctx); ok {
		t.Fatal("durable pointer should be cleared")
	}
	if _, err := durable.Get(ctx, durableUploadedFiles); err != nil {
		t.Fatalf("file list should be kept: %v", err)
	}
}

func TestResolveDocumentID(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	if id, ok := c.ResolveDocumentID(ctx, session, "X"); !ok || id != "X" {
		t.Fatalf("requested id should win, got %q", id)
	}
	if _, ok := c.ResolveDocumentID(ctx, session, ""); ok {
		t.Fatal("nothing should resolve on an empty cache")
	}

	recordUpload(t, c, "D1", "Acme")
	if id, ok := c.ResolveDocumentID(ctx, session, ""); !ok || id != "D1" {
		t.Fatalf("session latest upload should resolve, got %q", id)
	}
	if id, ok := c.ResolveDocumentID(ctx, "other-tab", ""); !ok || id != "D1" {
		t.Fatalf("durable pointer should resolve for another session, got %q", id)
	}

	var doc kpi.DocumentAnalysis
	if !c.ReadForView(ctx, "other-tab", ViewDashboard, "D1", &doc) {
		t.Fatal("durable latest analysis should serve another session")
	}
}

func TestWriteForView_PointerCompanyFollowsDocument(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	recordUpload(t, c, "D1", "Acme")

	c.WriteForView(ctx, session, ViewSummary, "D2", analysisapi.Summary{Company: "Globex", Summary: "s"})
	if p, ok := c.Current(ctx); !ok || p.DocumentID != "D2" || p.CompanyName != "Globex" {
		t.Fatalf("pointer = %+v", p)
	}

	c.WriteForView(ctx, session, ViewSummary, "D3", analysisapi.Summary{Summary: "no company"})
	if p, ok := c.Current(ctx); !ok || p.DocumentID != "D3" || p.CompanyName != "" {
		t.Fatalf("pointer = %+v, want D3 without a company", p)
	}

	c.WriteForView(ctx, session, ViewDashboard, "D4", kpi.DocumentAnalysis{DocumentID: "D4", CompanyName: "Initech"})
	if p, _ := c.Current(ctx); p.CompanyName != "Initech" {
		t.Fatalf("pointer = %+v", p)
	}
	c.WriteForView(ctx, session, ViewSummary, "D5", "plain string")
	if p, _ := c.Current(ctx); p.DocumentID != "D5" || p.CompanyName != "" {
		t.Fatalf("pointer = %+v, want D5 without a company", p)
	}
}

func TestFilesAndRemoveFile(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	recordUpload(t, c, "D1", "Acme")
	recordUpload(t, c, "D2", "Beta")
	recordUpload(t, c, "D1", "Acme")

	files := c.Files(ctx)
	if len(files) != 2 || files[0].ID != "D1" || files[1].ID != "D2" {
		t.Fatalf("files = %+v", files)
	}
	if !c.RemoveFile(ctx, "D2") {
		t.Fatal("expected D2 removed")
	}
	if c.RemoveFile(ctx, "D2") {
		t.Fatal("second removal should report false")
	}
	if files := c.Files(ctx); len(files) != 1 {
		t.Fatalf("files = %+v", files)
	}
}

type failingSession struct {
	*MemorySession
	failPut bool
}

func (f *failingSession) Put(ctx context.Context, sessionID, key string, value []byte, ttl time.Duration) error {
	if f.failPut {
		return errors.New("quota exceeded")
	}
	return f.MemorySession.Put(ctx, sessionID, key, value, ttl)
}

type failingDurable struct{}

func (failingDurable) Get(context.Context, string) ([]byte, error) { return nil, errors.New("down") }
func (failingDurable) Put(context.Context, string, []byte) error    { return errors.New("down") }
func (failingDurable) Delete(context.Context, string) error         { return errors.New("down") }

func TestFailedWritesAreBestEffort(t *testing.T) {
	sess := &failingSession{MemorySession: NewMemorySession(), failPut: true}
	c := New(failingDurable{}, sess, Options{})
	ctx := context.Background()

	doc := c.RecordUpload(ctx, session, Upload{DocumentID: "D1", Analysis: analysisPayload(t, "Acme", 5)})
	if doc.DocumentID != "D1" || doc.KpiPeriods["total_assets"].Latest == nil {
		t.Fatalf("upload result should still be returned, got %+v", doc)
	}

	c.WriteForView(ctx, session, ViewDashboard, "D1", doc)
	var got kpi.DocumentAnalysis
	if c.ReadForView(ctx, session, ViewDashboard, "D1", &got) {
		t.Fatal("nothing was stored, expected miss")
	}
	if _, ok := c.Current(ctx); ok {
		t.Fatal("failing durable scope should not resolve a pointer")
	}
	c.ClearNamespace(ctx, session)
}

func TestUnknownViewIsMiss(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	var dst any
	c.WriteForView(context.Background(), session, View("charts"), "D1", 1)
	if c.ReadForView(context.Background(), session, View("charts"), "D1", &dst) {
		t.Fatal("unknown view must miss")
	}
	if c.ReadForView(context.Background(), session, ViewDashboard, " ", &dst) {
		t.Fatal("blank id must miss")
	}
}
