package dashboard

import (
	"context"
	"fmt"

	"findoc-gateway/internal/cache"
	"findoc-gateway/internal/kpi"
)

// Backend fetches raw analysis payloads.
type Backend interface {
	Analyze(ctx context.Context, storedAs string) (map[string]any, error)
}

// Locator maps a document id to the name the backend stored it under.
type Locator interface {
	StoredName(ctx context.Context, fileID string) string
}

// Service implements the dashboard view.
type Service struct {
	Backend Backend
	Files   Locator
	Cache   *cache.Coordinator
}

// Load returns the dashboard for fileID, or for the session's current
// document when fileID is empty. The bool reports a cache hit.
func (s *Service) Load(ctx context.Context, sessionID, fileID string) (View, bool, error) {
	id, ok := s.Cache.ResolveDocumentID(ctx, sessionID, fileID)
	if !ok {
		return View{}, false, ErrNoDocument
	}

	var doc kpi.DocumentAnalysis
	if s.Cache.ReadForView(ctx, sessionID, cache.ViewDashboard, id, &doc) {
		return Build(doc, s.Cache.Specs()), true, nil
	}

	storedAs := id
	if s.Files != nil {
		storedAs = s.Files.StoredName(ctx, id)
	}
	raw, err := s.Backend.Analyze(ctx, storedAs)
	if err != nil {
		return View{}, false, fmt.Errorf("analyze %s: %w", id, err)
	}

	doc = kpi.Build(id, raw, s.Cache.Specs())
	// A later reader can use the result even if this request was abandoned.
	s.Cache.WriteForView(context.WithoutCancel(ctx), sessionID, cache.ViewDashboard, id, doc)
	return Build(doc, s.Cache.Specs()), false, nil
}
