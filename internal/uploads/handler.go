package uploads

import (
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"findoc-gateway/internal/analysisapi"
	"findoc-gateway/internal/cache"
	"findoc-gateway/internal/format"
	"findoc-gateway/internal/shared/server/middleware"
	"findoc-gateway/internal/shared/server/respond"
)

// multipart framing allowance on top of the file size limit
const formOverhead = 1 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches upload and file routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads", h.upload)
	rg.GET("/uploads/last", h.last)
	rg.GET("/files", h.list)
	rg.DELETE("/files/:id", h.delete)
	rg.POST("/files/:id/pin", h.pin)
	rg.DELETE("/files/:id/pin", h.unpin)
}

func (h *Handler) upload(c *gin.Context) {
	sessionID := middleware.SessionIDFromContext(c)
	if h.Svc.MaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Svc.MaxBytes+formOverhead)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "validation_error", "file is too large", gin.H{
				"limit": format.FileSize(h.Svc.MaxBytes),
			})
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}

	view, err := h.Svc.Upload(c.Request.Context(), sessionID, fileHeader.Filename, data)
	if err != nil {
		writeError(c, "upload failed", err)
		return
	}

	c.Set(middleware.DocumentIDKey, view.File.ID)
	respond.JSON(c, http.StatusCreated, uploadResponse{UploadView: view})
}

func (h *Handler) last(c *gin.Context) {
	sessionID := middleware.SessionIDFromContext(c)

	view, cached, err := h.Svc.Last(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, "failed to load upload", err)
		return
	}

	c.Set(middleware.DocumentIDKey, view.File.ID)
	c.Set(middleware.CacheKey, cacheLabel(cached))
	respond.OK(c, uploadResponse{UploadView: view, Cached: cached})
}

func (h *Handler) list(c *gin.Context) {
	sessionID := middleware.SessionIDFromContext(c)
	ctx := c.Request.Context()

	files, source, err := h.Svc.Files(ctx, sessionID)
	if err != nil {
		writeError(c, "failed to list files", err)
		return
	}
	pinned := h.Svc.Cache.Pinned(ctx, sessionID)

	resp := filesResponse{Files: make([]fileResponse, 0, len(files)), Source: source}
	for _, f := range files {
		resp.Files = append(resp.Files, toFileResponse(f, slices.Contains(pinned, f.ID)))
	}
	respond.OK(c, resp)
}

func (h *Handler) delete(c *gin.Context) {
	sessionID := middleware.SessionIDFromContext(c)
	id := c.Param("id")

	if err := h.Svc.Delete(c.Request.Context(), sessionID, id); err != nil {
		writeError(c, "failed to delete file", err)
		return
	}

	c.Set(middleware.DocumentIDKey, id)
	respond.OK(c, gin.H{"deleted": true, "id": id})
}

func (h *Handler) pin(c *gin.Context) {
	sessionID := middleware.SessionIDFromContext(c)
	id := c.Param("id")

	pinned, err := h.Svc.Pin(c.Request.Context(), sessionID, id)
	if err != nil {
		writeError(c, "failed to pin file", err)
		return
	}
	respond.OK(c, pinResponse{Pinned: pinned})
}

func (h *Handler) unpin(c *gin.Context) {
	sessionID := middleware.SessionIDFromContext(c)

	pinned, err := h.Svc.Unpin(c.Request.Context(), sessionID, c.Param("id"))
	if err != nil {
		writeError(c, "failed to unpin file", err)
		return
	}
	respond.OK(c, pinResponse{Pinned: pinned})
}

func writeError(c *gin.Context, message string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		respond.Error(c, http.StatusBadRequest, "validation_error", verr.Error(), gin.H{"problems": verr.Problems})
	case errors.Is(err, ErrNoDocument):
		respond.Error(c, http.StatusNotFound, "no_document", "no document has been uploaded", nil)
	case errors.Is(err, ErrFileNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "file not found", nil)
	case errors.Is(err, ErrStorage):
		respond.Error(c, http.StatusInternalServerError, "internal_error", message, nil)
	default:
		code, details := analysisapi.Classify(err)
		respond.Error(c, http.StatusBadGateway, code, message, details)
	}
}

func toFileResponse(f cache.FileInfo, pinned bool) fileResponse {
	uploadedAt := ""
	if !f.UploadedAt.IsZero() {
		uploadedAt = f.UploadedAt.UTC().Format(time.RFC3339)
	}
	return fileResponse{
		ID:         f.ID,
		StoredAs:   f.StoredAs,
		Name:       f.Name,
		Size:       f.Size,
		SizeLabel:  format.FileSize(f.Size),
		Type:       f.Type,
		UploadedAt: uploadedAt,
		Company:    f.Company,
		Pinned:     pinned,
	}
}

func cacheLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
