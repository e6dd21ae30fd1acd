package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DownloadLog appends raw downloader output to a per-day file in logsDir.
// Entries are buffered and written as one block, so concurrent downloads
// never interleave inside the file.
type DownloadLog struct {
	logsDir string
	mu      sync.Mutex
	now     func() time.Time
}

// NewDownloadLog creates a download log writer
func NewDownloadLog(logsDir string) *DownloadLog {
	return &DownloadLog{logsDir: logsDir, now: time.Now}
}

// Path returns the log file for the given day
func (l *DownloadLog) Path(day time.Time) string {
	return filepath.Join(l.logsDir, "download-"+day.Format("20060102")+".log")
}

// Begin starts an entry with the download start marker
func (l *DownloadLog) Begin(downloadID, cmdLine string) *DownloadLogEntry {
	entry := &DownloadLogEntry{log: l}
	timestamp := l.now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(&entry.buf, "\n=== [%s] Download: %s ===\n", timestamp, downloadID)
	if cmdLine != "" {
		fmt.Fprintf(&entry.buf, "$ %s\n", cmdLine)
	}
	return entry
}

func (l *DownloadLog) write(block string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	file, err := os.OpenFile(l.Path(l.now()), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(block); err != nil {
		return fmt.Errorf("failed to write log file: %w", err)
	}
	return nil
}

// DownloadLogEntry collects the output of one download
type DownloadLogEntry struct {
	log  *DownloadLog
	mu   sync.Mutex
	buf  strings.Builder
	done bool
}

// Command records an additional command line, e.g. a title query
func (e *DownloadLogEntry) Command(cmdLine string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintf(&e.buf, "$ %s\n", cmdLine)
}

// Line records one output line
func (e *DownloadLogEntry) Line(line string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buf.WriteString(line)
	e.buf.WriteByte('\n')
}

// End writes the end marker and flushes the entry. Later calls are no-ops.
func (e *DownloadLogEntry) End(success bool, message string) error {
	e.mu.Lock()
	if e.done {
		e.mu.Unlock()
		return nil
	}
	e.done = true

	timestamp := e.log.now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	fmt.Fprintf(&e.buf, "[%s] %s: %s\n", timestamp, status, message)
	e.buf.WriteString("=== END ===\n\n")
	block := e.buf.String()
	e.mu.Unlock()

	return e.log.write(block)
}
