package domain

import "errors"

// ErrNotFound is returned when a download record does not exist
var ErrNotFound = errors.New("download not found")

// DownloadRepository defines the interface for download history persistence
type DownloadRepository interface {
	// Create creates a new download
	Create(download *Download) error

	// Update updates an existing download
	Update(download *Download) error

	// Delete deletes a download by ID
	Delete(id string) error

	// FindByID finds a download by ID
	FindByID(id string) (*Download, error)

	// FindByURL finds the newest download of a normalized url and format
	// whose status is one of statuses. Returns nil if none matches.
	FindByURL(normalizedURL string, format Format, statuses []DownloadStatus) (*Download, error)

	// FindByStatus finds downloads by status
	FindByStatus(status DownloadStatus) ([]*Download, error)

	// FindAll finds all downloads with optional filters, newest first
	FindAll(filters map[string]interface{}) ([]*Download, error)

	// FindRecent returns at most limit downloads, newest first
	FindRecent(limit int) ([]*Download, error)

	// Count returns the total number of downloads
	Count() (int64, error)

	// GetStats returns download statistics
	GetStats() (*DownloadStats, error)
}

// DownloadStats represents download statistics
type DownloadStats struct {
	Total      int64 `json:"total"`
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Cancelled  int64 `json:"cancelled"`
}
