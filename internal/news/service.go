// Package news serves company news through the session cache.
package news

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"findoc-gateway/internal/analysisapi"
	"findoc-gateway/internal/cache"
)

// ErrNoCompany is returned when neither the request nor the current
// document names a company.
var ErrNoCompany = errors.New("no company to look up")

// Backend fetches news for a company.
type Backend interface {
	News(ctx context.Context, company string) ([]analysisapi.Article, error)
}

// Service implements the news view.
type Service struct {
	Backend Backend
	Cache   *cache.Coordinator
}

// Result is the news for one company.
type Result struct {
	Company  string                `json:"company"`
	Articles []analysisapi.Article `json:"articles"`
	Cached   bool                  `json:"cached"`
}

// Get returns news for company, defaulting to the current document's
// company. A failed fetch leaves the cache as it was.
func (s *Service) Get(ctx context.Context, sessionID, company string) (Result, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		if ptr, ok := s.Cache.Current(ctx); ok {
			company = strings.TrimSpace(ptr.CompanyName)
		}
	}
	if company == "" {
		return Result{}, ErrNoCompany
	}

	var articles []analysisapi.Article
	if s.Cache.ReadForView(ctx, sessionID, cache.ViewNews, company, &articles) {
		if articles == nil {
			articles = []analysisapi.Article{}
		}
		return Result{Company: company, Articles: articles, Cached: true}, nil
	}

	articles, err := s.Backend.News(ctx, company)
	if err != nil {
		return Result{}, fmt.Errorf("news for %s: %w", company, err)
	}
	s.Cache.WriteForView(context.WithoutCancel(ctx), sessionID, cache.ViewNews, company, articles)
	return Result{Company: company, Articles: articles}, nil
}
