// Package summary serves the narrative summary view.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"findoc-gateway/internal/analysisapi"
	"findoc-gateway/internal/cache"
	"findoc-gateway/internal/format"
)

// ErrNoDocument is returned when no document can be resolved for the session.
var ErrNoDocument = errors.New("no document available")

// Backend fetches document summaries.
type Backend interface {
	Summary(ctx context.Context, fileID string) (analysisapi.Summary, error)
}

// Service implements the summary view.
type Service struct {
	Backend Backend
	Cache   *cache.Coordinator
}

// Result is the summary view of one document.
type Result struct {
	DocumentID string              `json:"documentId"`
	Summary    analysisapi.Summary `json:"summary"`
	Highlights []string            `json:"highlights"`
	Cached     bool                `json:"cached"`
}

// Load returns the summary for fileID or the session's current document.
// Cached entries without summary text are refetched.
func (s *Service) Load(ctx context.Context, sessionID, fileID string) (Result, error) {
	id, ok := s.Cache.ResolveDocumentID(ctx, sessionID, strings.TrimSpace(fileID))
	if !ok {
		return Result{}, ErrNoDocument
	}

	var sum analysisapi.Summary
	if s.Cache.ReadForView(ctx, sessionID, cache.ViewSummary, id, &sum) && strings.TrimSpace(sum.Summary) != "" {
		return newResult(id, sum, true), nil
	}

	sum, err := s.Backend.Summary(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("summary %s: %w", id, err)
	}
	s.Cache.WriteForView(context.WithoutCancel(ctx), sessionID, cache.ViewSummary, id, sum)
	return newResult(id, sum, false), nil
}

func newResult(id string, sum analysisapi.Summary, cached bool) Result {
	return Result{
		DocumentID: id,
		Summary:    sum,
		Highlights: format.Bullets(sum.Summary),
		Cached:     cached,
	}
}
