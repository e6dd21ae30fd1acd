package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/ytfetch-go/internal/app"
	"github.com/yourusername/ytfetch-go/pkg/logger"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

// LogHandler serves the per-day download logs
type LogHandler struct {
	logReader   *logger.LogReader
	downloadMgr *app.DownloadManager
}

// NewLogHandler creates a new log handler
func NewLogHandler(logsDir string, downloadMgr *app.DownloadManager) *LogHandler {
	return &LogHandler{
		logReader:   logger.NewLogReader(logsDir, "download"),
		downloadMgr: downloadMgr,
	}
}

// GetLogs handles GET /api/v1/logs/downloads
func (h *LogHandler) GetLogs(c *gin.Context) {
	date, ok := parseDate(c)
	if !ok {
		return
	}

	lines, err := h.logReader.ReadLines(date, parseLimit(c, defaultLogLimit, maxLogLimit))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":  date.Format("2006-01-02"),
		"lines": lines,
		"count": len(lines),
	})
}

// SearchLogs handles GET /api/v1/logs/downloads/search
func (h *LogHandler) SearchLogs(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}

	date, ok := parseDate(c)
	if !ok {
		return
	}

	lines, err := h.logReader.SearchLines(date, query, parseLimit(c, defaultLogLimit, maxLogLimit))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":  date.Format("2006-01-02"),
		"query": query,
		"lines": lines,
		"count": len(lines),
	})
}

// GetDownloadLog handles GET /api/v1/downloads/:id/log
func (h *LogHandler) GetDownloadLog(c *gin.Context) {
	download, err := h.downloadMgr.GetDownload(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	// the block is written when the attempt ends
	day := time.Now()
	if download.CompletedAt != nil {
		day = *download.CompletedAt
	}

	lines, err := h.logReader.ReadEntry(day, download.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":    download.ID,
		"lines": lines,
	})
}

// parseDate reads the date query parameter, defaulting to today
func parseDate(c *gin.Context) (time.Time, bool) {
	dateStr := c.Query("date")
	if dateStr == "" {
		return time.Now(), true
	}

	date, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date format, use YYYY-MM-DD"})
		return time.Time{}, false
	}
	return date, true
}
