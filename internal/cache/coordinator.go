// Package cache coordinates the durable and per-session caches behind the
// upload, dashboard, summary, news and file views. No other package reads or
// writes the scopes directly.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"strings"
	"time"

	"findoc-gateway/internal/analysisapi"
	"findoc-gateway/internal/kpi"
	"findoc-gateway/internal/shared/metrics"
	"findoc-gateway/internal/shared/telemetry"
)

// Options configures a Coordinator.
type Options struct {
	// Specs is the KPI table used when recording uploads.
	Specs []kpi.Spec
	// NewsTTL expires cached news entries; zero keeps them until invalidated.
	NewsTTL time.Duration
	// SessionTTL is passed to the session scope on every write.
	SessionTTL time.Duration
	Now        func() time.Time
}

// Coordinator owns the cache key namespace in both scopes.
type Coordinator struct {
	durable    DurableScope
	session    SessionScope
	specs      []kpi.Spec
	newsTTL    time.Duration
	sessionTTL time.Duration
	now        func() time.Time

	sessions  *keyedMutex
	durableMu sync.Mutex
}

// New builds a Coordinator over the given scopes.
func New(durable DurableScope, session SessionScope, opts Options) *Coordinator {
	specs := opts.Specs
	if len(specs) == 0 {
		specs = kpi.DefaultSpecs()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		durable:    durable,
		session:    session,
		specs:      specs,
		newsTTL:    opts.NewsTTL,
		sessionTTL: opts.SessionTTL,
		now:        now,
		sessions:   newKeyedMutex(),
	}
}

// Specs returns the KPI table the coordinator extracts with.
func (c *Coordinator) Specs() []kpi.Spec {
	return c.specs
}

// envelope wraps every session value with its write time.
type envelope struct {
	StoredAt time.Time       `json:"ts"`
	Data     json.RawMessage `json:"data"`
}

// RecordUpload normalizes a freshly analyzed document, makes it the current
// document in both scopes and invalidates every derived session cache that
// belongs to another, unpinned document.
func (c *Coordinator) RecordUpload(ctx context.Context, sessionID string, up Upload) kpi.DocumentAnalysis {
	unlock := c.sessions.Lock(sessionID)
	defer unlock()

	doc := kpi.Build(up.DocumentID, up.Analysis, c.specs)
	company := up.CompanyName
	if company == "" {
		company = doc.CompanyName
	}
	doc.CompanyName = company

	file := up.File
	file.ID = up.DocumentID
	if file.UploadedAt.IsZero() {
		file.UploadedAt = c.now().UTC()
	}
	if file.Company == "" {
		file.Company = company
	}

	c.invalidate(ctx, sessionID, up.DocumentID)

	entry := CacheEntry{
		DocumentID:  up.DocumentID,
		Analysis:    doc,
		CompanyName: company,
		Timestamp:   c.now().UTC(),
		Upload:      up.Result,
		File:        file,
	}
	c.putSession(ctx, sessionID, documentKey(up.DocumentID), entry)
	c.putSession(ctx, sessionID, keyLatestUpload, up.DocumentID)

	c.durableMu.Lock()
	defer c.durableMu.Unlock()
	c.putDurable(ctx, durableLatestDocumentID, up.DocumentID)
	c.putCompanyLocked(ctx, company)
	c.putDurable(ctx, durableLatestAnalysis, doc)
	c.putDurable(ctx, durableLatestUpload, entry.uploadView())
	c.addFileLocked(ctx, file)

	telemetry.Info("cache.upload_recorded", map[string]any{
		"session_id":  sessionID,
		"document_id": up.DocumentID,
		"company":     company,
		"kpis":        len(doc.KpiPeriods),
	})
	return doc
}

// invalidate removes derived session keys except those of keepID or of a
// pinned document. Callers hold the session lock.
func (c *Coordinator) invalidate(ctx context.Context, sessionID, keepID string) {
	keys, err := c.session.Keys(ctx, sessionID)
	if err != nil {
		metrics.IncCacheWriteFailure()
		telemetry.Warn("cache.invalidate_failed", map[string]any{"session_id": sessionID, "err": err})
		return
	}
	pinned := c.pinnedLocked(ctx, sessionID)

	var stale []string
	for _, key := range keys {
		prefix, id, ok := splitDerived(key)
		if !ok {
			continue
		}
		if prefix != prefixNews && prefix != prefixFiles && (id == keepID || slices.Contains(pinned, id)) {
			continue
		}
		stale = append(stale, key)
	}
	if len(stale) == 0 {
		return
	}
	if err := c.session.Delete(ctx, sessionID, stale...); err != nil {
		metrics.IncCacheWriteFailure()
		telemetry.Warn("cache.invalidate_failed", map[string]any{"session_id": sessionID, "keys": stale, "err": err})
		return
	}
	metrics.AddCacheInvalidated(len(stale))
	telemetry.Info("cache.invalidated", map[string]any{
		"session_id":  sessionID,
		"document_id": keepID,
		"keys":        stale,
	})
}

// ReadForView decodes the cached value for a view into dst. It reports false
// when the caller has to fetch. For news the key is the company name; for
// files it is ignored.
func (c *Coordinator) ReadForView(ctx context.Context, sessionID string, view View, key string, dst any) bool {
	skey, err := viewKey(view, key)
	if err != nil {
		telemetry.Warn("cache.bad_key", map[string]any{"session_id": sessionID, "view": view, "err": err})
		metrics.IncCacheMiss()
		return false
	}

	unlock := c.sessions.Lock(sessionID)
	defer unlock()

	hit := c.readSession(ctx, sessionID, skey, view == ViewNews, dst)
	if !hit && (view == ViewUpload || view == ViewDashboard) {
		hit = c.readDocument(ctx, sessionID, view, key, dst)
	}
	if hit {
		metrics.IncCacheHit()
	} else {
		metrics.IncCacheMiss()
	}
	return hit
}

func (c *Coordinator) readSession(ctx context.Context, sessionID, key string, expires bool, dst any) bool {
	raw, err := c.session.Get(ctx, sessionID, key)
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		telemetry.Warn("cache.read_failed", map[string]any{"session_id": sessionID, "key": key, "err": err})
		return false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Data) == 0 {
		c.corrupt(sessionID, key, err)
		return false
	}
	if expires && c.newsTTL > 0 && c.now().Sub(env.StoredAt) > c.newsTTL {
		return false
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		c.corrupt(sessionID, key, err)
		return false
	}
	return true
}

// readDocument serves the upload and dashboard views from the per-document
// entry, or from the durable latest records when id is the current document.
func (c *Coordinator) readDocument(ctx context.Context, sessionID string, view View, id string, dst any) bool {
	var entry CacheEntry
	if c.readSession(ctx, sessionID, documentKey(id), false, &entry) {
		if view == ViewUpload {
			return c.convert(sessionID, entry.uploadView(), dst)
		}
		return c.convert(sessionID, entry.Analysis, dst)
	}

	var current string
	if !c.getDurable(ctx, durableLatestDocumentID, &current) || current != id {
		return false
	}
	if view == ViewUpload {
		var up UploadView
		return c.getDurable(ctx, durableLatestUpload, &up) && up.Analysis.DocumentID == id && c.convert(sessionID, up, dst)
	}
	var doc kpi.DocumentAnalysis
	return c.getDurable(ctx, durableLatestAnalysis, &doc) && doc.DocumentID == id && c.convert(sessionID, doc, dst)
}

func (c *Coordinator) convert(sessionID string, src, dst any) bool {
	data, err := json.Marshal(src)
	if err == nil {
		err = json.Unmarshal(data, dst)
	}
	if err != nil {
		telemetry.Warn("cache.convert_failed", map[string]any{"session_id": sessionID, "err": err})
		return false
	}
	return true
}

func (c *Coordinator) corrupt(sessionID, key string, err error) {
	metrics.IncCacheCorrupt()
	fields := map[string]any{"session_id": sessionID, "key": key}
	if err != nil {
		fields["err"] = err
	}
	telemetry.Warn("cache.corrupt_entry", fields)
}

// WriteForView stores data for a view. Writes are best-effort: failures are
// logged and counted, never returned. Upload, dashboard and summary writes
// also move the durable pointer to the document, and the pointer's company
// name follows it: taken from data when it carries one, cleared otherwise.
func (c *Coordinator) WriteForView(ctx context.Context, sessionID string, view View, key string, data any) {
	skey, err := viewKey(view, key)
	if err != nil {
		telemetry.Warn("cache.bad_key", map[string]any{"session_id": sessionID, "view": view, "err": err})
		return
	}

	unlock := c.sessions.Lock(sessionID)
	defer unlock()

	c.putSession(ctx, sessionID, skey, data)
	if !view.updatesPointer() {
		return
	}

	c.durableMu.Lock()
	defer c.durableMu.Unlock()
	c.putDurable(ctx, durableLatestDocumentID, key)
	switch v := data.(type) {
	case kpi.DocumentAnalysis:
		c.putAnalysisLocked(ctx, v)
	case *kpi.DocumentAnalysis:
		if v != nil {
			c.putAnalysisLocked(ctx, *v)
		}
	case UploadView:
		c.putDurable(ctx, durableLatestUpload, v)
		c.putAnalysisLocked(ctx, v.Analysis)
	case analysisapi.Summary:
		c.putCompanyLocked(ctx, v.Company)
	case *analysisapi.Summary:
		if v != nil {
			c.putCompanyLocked(ctx, v.Company)
		}
	default:
		c.putCompanyLocked(ctx, "")
	}
}

func (c *Coordinator) putAnalysisLocked(ctx context.Context, doc kpi.DocumentAnalysis) {
	c.putDurable(ctx, durableLatestAnalysis, doc)
	c.putCompanyLocked(ctx, doc.CompanyName)
}

// putCompanyLocked records the current document's company, or removes the
// record when name is empty.
func (c *Coordinator) putCompanyLocked(ctx context.Context, name string) {
	if name = strings.TrimSpace(name); name != "" {
		c.putDurable(ctx, durableLatestCompany, name)
		return
	}
	if err := c.durable.Delete(ctx, durableLatestCompany); err != nil && !errors.Is(err, ErrNotFound) {
		metrics.IncCacheWriteFailure()
		telemetry.Warn("cache.write_failed", map[string]any{"scope": "durable", "key": durableLatestCompany, "err": err})
	}
}

// ClearNamespace removes every key this package owns for the session plus
// the durable pointer records. The durable file list is kept.
func (c *Coordinator) ClearNamespace(ctx context.Context, sessionID string) {
	unlock := c.sessions.Lock(sessionID)
	defer unlock()
	c.clearLocked(ctx, sessionID)
}

func (c *Coordinator) clearLocked(ctx context.Context, sessionID string) {
	keys, err := c.session.Keys(ctx, sessionID)
	if err != nil {
		telemetry.Warn("cache.clear_failed", map[string]any{"session_id": sessionID, "err": err})
	}
	var owned []string
	for _, key := range keys {
		if _, _, ok := splitDerived(key); ok || key == keyLatestUpload || key == keyPinned {
			owned = append(owned, key)
		}
	}
	if len(owned) > 0 {
		if err := c.session.Delete(ctx, sessionID, owned...); err != nil {
			metrics.IncCacheWriteFailure()
			telemetry.Warn("cache.clear_failed", map[string]any{"session_id": sessionID, "err": err})
		} else {
			metrics.AddCacheInvalidated(len(owned))
		}
	}

	c.durableMu.Lock()
	defer c.durableMu.Unlock()
	for _, key := range pointerKeys {
		if err := c.durable.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			metrics.IncCacheWriteFailure()
			telemetry.Warn("cache.clear_failed", map[string]any{"key": key, "err": err})
		}
	}
	telemetry.Info("cache.namespace_cleared", map[string]any{"session_id": sessionID, "keys": len(owned)})
}

// Pin keeps a document's derived caches across later uploads in the session.
func (c *Coordinator) Pin(ctx context.Context, sessionID, documentID string) error {
	return c.updatePinned(ctx, sessionID, func(ids []string) []string {
		if slices.Contains(ids, documentID) {
			return ids
		}
		return append(ids, documentID)
	})
}

// Unpin reverses Pin.
func (c *Coordinator) Unpin(ctx context.Context, sessionID, documentID string) error {
	return c.updatePinned(ctx, sessionID, func(ids []string) []string {
		return slices.DeleteFunc(ids, func(id string) bool { return id == documentID })
	})
}

// Pinned lists the session's pinned document ids.
func (c *Coordinator) Pinned(ctx context.Context, sessionID string) []string {
	unlock := c.sessions.Lock(sessionID)
	defer unlock()
	return c.pinnedLocked(ctx, sessionID)
}

func (c *Coordinator) updatePinned(ctx context.Context, sessionID string, fn func([]string) []string) error {
	unlock := c.sessions.Lock(sessionID)
	defer unlock()

	ids := fn(c.pinnedLocked(ctx, sessionID))
	slices.Sort(ids)
	data, err := c.encode(ids)
	if err != nil {
		return err
	}
	if err := c.session.Put(ctx, sessionID, keyPinned, data, c.sessionTTL); err != nil {
		return fmt.Errorf("save pinned ids: %w", err)
	}
	return nil
}

func (c *Coordinator) pinnedLocked(ctx context.Context, sessionID string) []string {
	var ids []string
	if !c.readSession(ctx, sessionID, keyPinned, false, &ids) {
		return []string{}
	}
	return ids
}

// Current returns the durable pointer to the most recently analyzed document.
func (c *Coordinator) Current(ctx context.Context) (Pointer, bool) {
	var p Pointer
	if !c.getDurable(ctx, durableLatestDocumentID, &p.DocumentID) || p.DocumentID == "" {
		return Pointer{}, false
	}
	c.getDurable(ctx, durableLatestCompany, &p.CompanyName)
	return p, true
}

// ResolveDocumentID picks the document a view should show: the requested id,
// else the session's last upload, else the durable pointer. When nothing
// resolves the namespace is cleared and false is returned.
func (c *Coordinator) ResolveDocumentID(ctx context.Context, sessionID, requested string) (string, bool) {
	if requested != "" {
		return requested, true
	}

	unlock := c.sessions.Lock(sessionID)
	defer unlock()

	var id string
	if c.readSession(ctx, sessionID, keyLatestUpload, false, &id) && id != "" {
		return id, true
	}
	if c.getDurable(ctx, durableLatestDocumentID, &id) && id != "" {
		return id, true
	}
	c.clearLocked(ctx, sessionID)
	return "", false
}

// LatestUpload returns the durable record of the most recent upload.
func (c *Coordinator) LatestUpload(ctx context.Context) (UploadView, bool) {
	var up UploadView
	if !c.getDurable(ctx, durableLatestUpload, &up) {
		return UploadView{}, false
	}
	return up, true
}

// Files returns the durable fallback file list, newest first.
func (c *Coordinator) Files(ctx context.Context) []FileInfo {
	c.durableMu.Lock()
	defer c.durableMu.Unlock()
	return c.filesLocked(ctx)
}

// RemoveFile drops a document from the durable file list.
func (c *Coordinator) RemoveFile(ctx context.Context, documentID string) bool {
	c.durableMu.Lock()
	defer c.durableMu.Unlock()

	files := c.filesLocked(ctx)
	before := len(files)
	kept := slices.DeleteFunc(files, func(f FileInfo) bool { return f.ID == documentID })
	if len(kept) == before {
		return false
	}
	c.putDurable(ctx, durableUploadedFiles, kept)
	return true
}

func (c *Coordinator) filesLocked(ctx context.Context) []FileInfo {
	var files []FileInfo
	if !c.getDurable(ctx, durableUploadedFiles, &files) || files == nil {
		return []FileInfo{}
	}
	return files
}

func (c *Coordinator) addFileLocked(ctx context.Context, file FileInfo) {
	files := c.filesLocked(ctx)
	files = slices.DeleteFunc(files, func(f FileInfo) bool { return f.ID == file.ID })
	files = append([]FileInfo{file}, files...)
	c.putDurable(ctx, durableUploadedFiles, files)
}

func (c *Coordinator) encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode cache value: %w", err)
	}
	return json.Marshal(envelope{StoredAt: c.now().UTC(), Data: data})
}

func (c *Coordinator) putSession(ctx context.Context, sessionID, key string, v any) {
	data, err := c.encode(v)
	if err == nil {
		err = c.session.Put(ctx, sessionID, key, data, c.sessionTTL)
	}
	if err != nil {
		metrics.IncCacheWriteFailure()
		telemetry.Warn("cache.write_failed", map[string]any{"session_id": sessionID, "key": key, "err": err})
	}
}

func (c *Coordinator) putDurable(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err == nil {
		err = c.durable.Put(ctx, key, data)
	}
	if err != nil {
		metrics.IncCacheWriteFailure()
		telemetry.Warn("cache.write_failed", map[string]any{"scope": "durable", "key": key, "err": err})
	}
}

func (c *Coordinator) getDurable(ctx context.Context, key string, dst any) bool {
	raw, err := c.durable.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		telemetry.Warn("cache.read_failed", map[string]any{"scope": "durable", "key": key, "err": err})
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		metrics.IncCacheCorrupt()
		telemetry.Warn("cache.corrupt_entry", map[string]any{"scope": "durable", "key": key, "err": err})
		return false
	}
	return true
}
