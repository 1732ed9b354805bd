package dashboard

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"findoc-gateway/internal/analysisapi"
	"findoc-gateway/internal/shared/server/middleware"
	"findoc-gateway/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches dashboard routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/dashboard", h.get)
}

func (h *Handler) get(c *gin.Context) {
	sessionID := middleware.SessionIDFromContext(c)
	fileID := strings.TrimSpace(c.Query("fileId"))

	view, cached, err := h.Svc.Load(c.Request.Context(), sessionID, fileID)
	if err != nil {
		if errors.Is(err, ErrNoDocument) {
			respond.Error(c, http.StatusNotFound, "no_document", "no document has been uploaded", nil)
			return
		}
		code, details := analysisapi.Classify(err)
		respond.Error(c, http.StatusBadGateway, code, "failed to load dashboard", details)
		return
	}

	c.Set(middleware.DocumentIDKey, view.Analysis.DocumentID)
	if cached {
		c.Set(middleware.CacheKey, "hit")
	} else {
		c.Set(middleware.CacheKey, "miss")
	}
	respond.OK(c, gin.H{
		"cached":      cached,
		"analysis":    view.Analysis,
		"cards":       view.Cards,
		"charts":      view.Charts,
		"ratios":      view.Ratios,
		"assets":      view.Assets,
		"liabilities": view.Liabilities,
	})
}
