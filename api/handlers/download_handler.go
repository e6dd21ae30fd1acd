package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/ytfetch-go/internal/app"
	"github.com/yourusername/ytfetch-go/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// DownloadHandler handles download-related HTTP requests
type DownloadHandler struct {
	downloadMgr *app.DownloadManager
	logger      *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(downloadMgr *app.DownloadManager, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		downloadMgr: downloadMgr,
		logger:      logger,
	}
}

// AddDownloadRequest represents a request to add a download
type AddDownloadRequest struct {
	URL    string `json:"url" binding:"required"`
	Format string `json:"format,omitempty"`
}

// AddDownload handles POST /api/v1/downloads
func (h *DownloadHandler) AddDownload(c *gin.Context) {
	var req AddDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	format, err := domain.ParseFormat(req.Format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !domain.ValidateURL(domain.NormalizeURL(req.URL)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter a valid YouTube URL"})
		return
	}

	job, err := h.downloadMgr.RequestDownload(c.Request.Context(), req.URL, format)
	if err != nil {
		h.logger.Error("Failed to add download", zap.String("url", req.URL), zap.Error(err))
		respondError(c, err)
		return
	}
	// the HTTP caller follows progress through the events endpoint
	job.Close()

	c.JSON(http.StatusAccepted, job.Download)
}

// GetDownload handles GET /api/v1/downloads/:id
func (h *DownloadHandler) GetDownload(c *gin.Context) {
	download, err := h.downloadMgr.GetDownload(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, download)
}

// ListDownloads handles GET /api/v1/downloads
func (h *DownloadHandler) ListDownloads(c *gin.Context) {
	filters := make(map[string]interface{})
	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}
	if format := c.Query("format"); format != "" {
		filters["format"] = format
	}
	if videoID := c.Query("video_id"); videoID != "" {
		filters["video_id"] = videoID
	}

	var (
		downloads []*domain.Download
		err       error
	)
	if len(filters) == 0 {
		downloads, err = h.downloadMgr.RecentDownloads(parseLimit(c, defaultListLimit, maxListLimit))
	} else {
		downloads, err = h.downloadMgr.ListDownloads(filters)
	}
	if err != nil {
		h.logger.Error("Failed to list downloads", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, downloads)
}

// GetStats handles GET /api/v1/downloads/stats
func (h *DownloadHandler) GetStats(c *gin.Context) {
	stats, err := h.downloadMgr.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// CancelDownload handles POST /api/v1/downloads/:id/cancel
func (h *DownloadHandler) CancelDownload(c *gin.Context) {
	id := c.Param("id")

	if err := h.downloadMgr.CancelDownload(id); err != nil {
		h.logger.Warn("Failed to cancel download", zap.String("id", id), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "download cancelled"})
}

// RetryDownload handles POST /api/v1/downloads/:id/retry
func (h *DownloadHandler) RetryDownload(c *gin.Context) {
	id := c.Param("id")

	job, err := h.downloadMgr.RetryDownload(c.Request.Context(), id)
	if err != nil {
		h.logger.Warn("Failed to retry download", zap.String("id", id), zap.Error(err))
		respondError(c, err)
		return
	}
	job.Close()

	c.JSON(http.StatusAccepted, job.Download)
}

// DeleteDownload handles DELETE /api/v1/downloads/:id
func (h *DownloadHandler) DeleteDownload(c *gin.Context) {
	id := c.Param("id")

	if err := h.downloadMgr.DeleteDownload(id); err != nil {
		h.logger.Warn("Failed to delete download", zap.String("id", id), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "download deleted"})
}

// respondError maps manager and domain errors to HTTP status codes
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case domain.IsKind(err, domain.KindValidation):
		status = http.StatusBadRequest
	case errors.Is(err, app.ErrAlreadyFinished),
		errors.Is(err, app.ErrNotRetryable),
		errors.Is(err, app.ErrInProgress):
		status = http.StatusConflict
	case errors.Is(err, app.ErrShuttingDown):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// parseLimit reads the limit query parameter, falling back to def
func parseLimit(c *gin.Context, def, max int) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
