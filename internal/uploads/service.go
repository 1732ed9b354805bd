package uploads

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"findoc-gateway/internal/analysisapi"
	"findoc-gateway/internal/cache"
	"findoc-gateway/internal/kpi"
	"findoc-gateway/internal/shared/metrics"
	"findoc-gateway/internal/shared/telemetry"
	"findoc-gateway/internal/shared/util"
)

// Backend is the part of the analysis service the upload view uses.
type Backend interface {
	Upload(ctx context.Context, fileName string, r io.Reader) (analysisapi.UploadReceipt, error)
	Analyze(ctx context.Context, storedAs string) (map[string]any, error)
	Files(ctx context.Context) ([]analysisapi.FileRecord, error)
	DeleteFile(ctx context.Context, fileID string) (bool, error)
	SaveFileMetadata(ctx context.Context, meta analysisapi.FileMetadata) error
}

// File list sources.
const (
	SourceBackend = "backend"
	SourceLocal   = "local"
)

// Service implements the upload and file-list views.
type Service struct {
	Backend  Backend
	Cache    *cache.Coordinator
	MaxBytes int64
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Upload validates the file, sends it for analysis and records the result as
// the session's current document. Nothing is cached unless both calls succeed.
func (s *Service) Upload(ctx context.Context, sessionID, fileName string, data []byte) (cache.UploadView, error) {
	fileName, err := util.CleanFileName(fileName)
	if err != nil {
		return cache.UploadView{}, &ValidationError{Problems: []string{"file name is not allowed"}}
	}
	if err := Validate(fileName, data, s.MaxBytes); err != nil {
		return cache.UploadView{}, err
	}

	receipt, err := s.Backend.Upload(ctx, fileName, bytes.NewReader(data))
	if err != nil {
		metrics.IncUploadFailed()
		return cache.UploadView{}, fmt.Errorf("upload %s: %w", fileName, err)
	}
	storedAs := receipt.StoredAs
	if storedAs == "" {
		storedAs = receipt.FileID
	}

	analysis, err := s.Backend.Analyze(ctx, storedAs)
	if err != nil {
		metrics.IncUploadFailed()
		return cache.UploadView{}, fmt.Errorf("analyze %s: %w", receipt.FileID, err)
	}

	file := cache.FileInfo{
		ID:         receipt.FileID,
		StoredAs:   storedAs,
		Name:       fileName,
		Size:       int64(len(data)),
		Type:       pdfMIME,
		UploadedAt: s.now(),
		Company:    receipt.Company,
	}

	// The result is valid even if the client has gone away.
	persistCtx := context.WithoutCancel(ctx)
	doc := s.Cache.RecordUpload(persistCtx, sessionID, cache.Upload{
		DocumentID:  receipt.FileID,
		Result:      receiptMap(receipt),
		Analysis:    analysis,
		CompanyName: receipt.Company,
		File:        file,
	})
	if file.Company == "" {
		file.Company = doc.CompanyName
	}

	if err := s.Backend.SaveFileMetadata(persistCtx, analysisapi.FileMetadata{
		ID:         file.ID,
		StoredAs:   file.StoredAs,
		Name:       file.Name,
		UploadedAt: file.UploadedAt.Format(time.RFC3339),
		Size:       file.Size,
		Type:       file.Type,
		Company:    file.Company,
	}); err != nil {
		telemetry.Warn("uploads.metadata_save_failed", map[string]any{
			"session_id":  sessionID,
			"document_id": file.ID,
			"err":         err,
		})
	}

	metrics.IncUpload()
	return cache.UploadView{Upload: receiptMap(receipt), File: file, Analysis: doc}, nil
}

// Last returns the upload view for the session's current document. A miss
// re-runs the analysis and caches the result.
func (s *Service) Last(ctx context.Context, sessionID string) (cache.UploadView, bool, error) {
	id, ok := s.Cache.ResolveDocumentID(ctx, sessionID, "")
	if !ok {
		return cache.UploadView{}, false, ErrNoDocument
	}

	var view cache.UploadView
	if s.Cache.ReadForView(ctx, sessionID, cache.ViewUpload, id, &view) {
		return view, true, nil
	}

	file := s.lookup(ctx, id)
	analysis, err := s.Backend.Analyze(ctx, file.StoredAs)
	if err != nil {
		return cache.UploadView{}, false, fmt.Errorf("analyze %s: %w", id, err)
	}
	view = cache.UploadView{
		Upload:   map[string]any{"file_id": id, "stored_as": file.StoredAs},
		File:     file,
		Analysis: kpi.Build(id, analysis, s.Cache.Specs()),
	}
	s.Cache.WriteForView(context.WithoutCancel(ctx), sessionID, cache.ViewUpload, id, view)
	return view, false, nil
}

// Files lists uploaded documents. The backend list is cached per session;
// when the backend cannot list files the durable fallback list is used.
func (s *Service) Files(ctx context.Context, sessionID string) ([]cache.FileInfo, string, error) {
	var files []cache.FileInfo
	if s.Cache.ReadForView(ctx, sessionID, cache.ViewFiles, "", &files) {
		return nonNil(files), SourceBackend, nil
	}

	records, err := s.Backend.Files(ctx)
	if err != nil {
		telemetry.Warn("uploads.files_fallback", map[string]any{"session_id": sessionID, "err": err})
		return s.Cache.Files(ctx), SourceLocal, nil
	}

	files = make([]cache.FileInfo, 0, len(records))
	for _, r := range records {
		files = append(files, cache.FileInfo{
			ID:         r.ID,
			StoredAs:   r.StoredAs,
			Name:       r.Name,
			Size:       r.Size,
			Type:       r.Type,
			UploadedAt: r.UploadedAt.Time,
			Company:    r.Company,
		})
	}
	s.Cache.WriteForView(context.WithoutCancel(ctx), sessionID, cache.ViewFiles, "", files)
	return files, SourceBackend, nil
}

// Delete removes a document from the backend and the fallback list. It only
// fails when neither knew the document.
func (s *Service) Delete(ctx context.Context, sessionID, fileID string) error {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return &ValidationError{Problems: []string{"file id is required"}}
	}

	deleted, err := s.Backend.DeleteFile(ctx, fileID)
	persistCtx := context.WithoutCancel(ctx)
	removed := s.Cache.RemoveFile(persistCtx, fileID)

	var files []cache.FileInfo
	if s.Cache.ReadForView(ctx, sessionID, cache.ViewFiles, "", &files) {
		kept := files[:0]
		for _, f := range files {
			if f.ID != fileID {
				kept = append(kept, f)
			}
		}
		s.Cache.WriteForView(persistCtx, sessionID, cache.ViewFiles, "", nonNil(kept))
	}

	switch {
	case err != nil && !removed:
		return fmt.Errorf("delete %s: %w", fileID, err)
	case err != nil:
		telemetry.Warn("uploads.delete_fallback", map[string]any{"session_id": sessionID, "document_id": fileID, "err": err})
	case !deleted && !removed:
		return fmt.Errorf("delete %s: %w", fileID, ErrFileNotFound)
	}
	return nil
}

// Pin keeps the document's cached views across later uploads.
func (s *Service) Pin(ctx context.Context, sessionID, fileID string) ([]string, error) {
	if strings.TrimSpace(fileID) == "" {
		return nil, &ValidationError{Problems: []string{"file id is required"}}
	}
	if err := s.Cache.Pin(ctx, sessionID, fileID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return s.Cache.Pinned(ctx, sessionID), nil
}

// Unpin reverses Pin.
func (s *Service) Unpin(ctx context.Context, sessionID, fileID string) ([]string, error) {
	if err := s.Cache.Unpin(ctx, sessionID, fileID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return s.Cache.Pinned(ctx, sessionID), nil
}

// StoredName returns the name the backend stored a document under. The
// backend analyzes files by that name, not by id.
func (s *Service) StoredName(ctx context.Context, fileID string) string {
	return s.lookup(ctx, fileID).StoredAs
}

func (s *Service) lookup(ctx context.Context, fileID string) cache.FileInfo {
	for _, f := range s.Cache.Files(ctx) {
		if f.ID == fileID && f.StoredAs != "" {
			return f
		}
	}
	if records, err := s.Backend.Files(ctx); err == nil {
		for _, r := range records {
			if r.ID == fileID && r.StoredAs != "" {
				return cache.FileInfo{ID: r.ID, StoredAs: r.StoredAs, Name: r.Name, Size: r.Size, Type: r.Type, UploadedAt: r.UploadedAt.Time, Company: r.Company}
			}
		}
	}
	return cache.FileInfo{ID: fileID, StoredAs: fileID}
}

func receiptMap(r analysisapi.UploadReceipt) map[string]any {
	out := map[string]any{"file_id": r.FileID}
	if r.StoredAs != "" {
		out["stored_as"] = r.StoredAs
	}
	if r.Company != "" {
		out["company"] = r.Company
	}
	if r.Message != "" {
		out["message"] = r.Message
	}
	return out
}

func nonNil(files []cache.FileInfo) []cache.FileInfo {
	if files == nil {
		return []cache.FileInfo{}
	}
	return files
}
