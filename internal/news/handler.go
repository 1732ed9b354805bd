package news

import (
	"errors"
	"net/http"

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

// RegisterRoutes attaches news routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/news", h.get)
}

func (h *Handler) get(c *gin.Context) {
	res, err := h.Svc.Get(c.Request.Context(), middleware.SessionIDFromContext(c), c.Query("company"))
	if err != nil {
		if errors.Is(err, ErrNoCompany) {
			respond.Error(c, http.StatusNotFound, "no_company", "no company selected", nil)
			return
		}
		code, details := analysisapi.Classify(err)
		respond.Error(c, http.StatusBadGateway, code, "failed to load news", details)
		return
	}

	if res.Cached {
		c.Set(middleware.CacheKey, "hit")
	} else {
		c.Set(middleware.CacheKey, "miss")
	}
	respond.OK(c, res)
}
