package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DownloadStatus represents the persisted status of a download record
type DownloadStatus string

const (
	StatusQueued     DownloadStatus = "queued"
	StatusProcessing DownloadStatus = "processing"
	StatusCompleted  DownloadStatus = "completed"
	StatusFailed     DownloadStatus = "failed"
	StatusCancelled  DownloadStatus = "cancelled"
)

// Format is the requested output container
type Format string

const (
	FormatMP4 Format = "mp4"
	FormatMP3 Format = "mp3"
)

// ParseFormat parses a user supplied format name. Empty input means MP4.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mp4", "video":
		return FormatMP4, nil
	case "mp3", "audio":
		return FormatMP3, nil
	default:
		return "", fmt.Errorf("unsupported format: %q", s)
	}
}

// Label returns the upper-case name used in status lines
func (f Format) Label() string {
	return strings.ToUpper(string(f))
}

// IsAudio reports whether the format only keeps the audio track
func (f Format) IsAudio() bool {
	return f == FormatMP3
}

// ValidateFormat checks if a format is supported
func ValidateFormat(f Format) bool {
	return f == FormatMP4 || f == FormatMP3
}

// DownloadRequest is a single caller request. It is immutable once built.
type DownloadRequest struct {
	RawURL string
	Format Format
}

// NewDownloadRequest creates a request for the given url and format
func NewDownloadRequest(rawURL string, format Format) DownloadRequest {
	return DownloadRequest{RawURL: rawURL, Format: format}
}

// Download represents a download attempt as kept in history
type Download struct {
	ID            string         `json:"id" gorm:"primaryKey"`
	URL           string         `json:"url" gorm:"not null"`
	NormalizedURL string         `json:"normalized_url,omitempty"`
	VideoID       string         `json:"video_id,omitempty" gorm:"index"`
	Format        Format         `json:"format" gorm:"not null"`
	Status        DownloadStatus `json:"status" gorm:"not null;index"`
	ErrorKind     ErrorKind      `json:"error_kind,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	OutputDir     string         `json:"output_dir,omitempty"`
	ExitCode      *int           `json:"exit_code,omitempty"`
	ProcessLog    string         `json:"process_log,omitempty" gorm:"type:text"` // status lines, one per line
	CreatedAt     time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// NewDownload creates a new queued download record
func NewDownload(url string, format Format) *Download {
	now := time.Now()
	return &Download{
		ID:        uuid.New().String(),
		URL:       url,
		Format:    format,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Request returns the engine request for this record
func (d *Download) Request() DownloadRequest {
	return NewDownloadRequest(d.URL, d.Format)
}

// MarkProcessing marks the download as processing
func (d *Download) MarkProcessing() {
	d.Status = StatusProcessing
	now := time.Now()
	d.StartedAt = &now
	d.UpdatedAt = now
}

// MarkCompleted marks the download as completed
func (d *Download) MarkCompleted(outputDir string) {
	d.Status = StatusCompleted
	d.OutputDir = outputDir
	d.ErrorKind = ""
	d.ErrorMessage = ""
	now := time.Now()
	d.CompletedAt = &now
	d.UpdatedAt = now
}

// MarkFailed marks the download as failed
func (d *Download) MarkFailed(err error) {
	d.Status = StatusFailed
	d.ErrorKind = KindOf(err)
	d.ErrorMessage = err.Error()
	now := time.Now()
	d.CompletedAt = &now
	d.UpdatedAt = now
}

// MarkCancelled marks the download as cancelled
func (d *Download) MarkCancelled() {
	d.Status = StatusCancelled
	now := time.Now()
	d.CompletedAt = &now
	d.UpdatedAt = now
}

// SetExitCode records the exit code reported by the downloader
func (d *Download) SetExitCode(code int) {
	d.ExitCode = &code
}

// ResetForRetry puts a finished download back in the queued state
func (d *Download) ResetForRetry() {
	d.Status = StatusQueued
	d.ErrorKind = ""
	d.ErrorMessage = ""
	d.ExitCode = nil
	d.ProcessLog = ""
	d.StartedAt = nil
	d.CompletedAt = nil
	d.UpdatedAt = time.Now()
}

// IsTerminal checks if the download is in a terminal state
func (d *Download) IsTerminal() bool {
	return d.Status == StatusCompleted || d.Status == StatusFailed || d.Status == StatusCancelled
}

// IsProcessing checks if the download is currently processing
func (d *Download) IsProcessing() bool {
	return d.Status == StatusProcessing
}
