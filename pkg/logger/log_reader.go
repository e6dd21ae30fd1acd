package logger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LogReader reads the per-day plain text logs written next to the
// structured log, e.g. download-20240309.log
type LogReader struct {
	logsDir string
	prefix  string
}

// NewLogReader creates a log reader for files named <prefix>-YYYYMMDD.log
func NewLogReader(logsDir, prefix string) *LogReader {
	return &LogReader{
		logsDir: logsDir,
		prefix:  prefix,
	}
}

// GetLogPath returns the log file path for a specific date
func (lr *LogReader) GetLogPath(date time.Time) string {
	filename := fmt.Sprintf("%s-%s.log", lr.prefix, date.Format("20060102"))
	return filepath.Join(lr.logsDir, filename)
}

// ReadLines returns the last limit lines of the log for date.
// A missing file yields no lines. limit <= 0 returns everything.
func (lr *LogReader) ReadLines(date time.Time, limit int) ([]string, error) {
	file, err := os.Open(lr.GetLogPath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines, nil
}

// SearchLines returns lines containing query, case-insensitive, keeping
// at most the last limit matches
func (lr *LogReader) SearchLines(date time.Time, query string, limit int) ([]string, error) {
	lines, err := lr.ReadLines(date, 0)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	matches := []string{}
	for _, line := range lines {
		if strings.Contains(strings.ToLower(line), query) {
			matches = append(matches, line)
		}
	}

	if limit > 0 && len(matches) > limit {
		matches = matches[len(matches)-limit:]
	}
	return matches, nil
}

// ReadEntry returns the block logged for one download id on date, from its
// start marker through its end marker. Empty if the id is not in the file.
func (lr *LogReader) ReadEntry(date time.Time, downloadID string) ([]string, error) {
	lines, err := lr.ReadLines(date, 0)
	if err != nil {
		return nil, err
	}

	header := fmt.Sprintf("] Download: %s ===", downloadID)
	var (
		entry  []string
		inside bool
	)
	for _, line := range lines {
		if !inside {
			if strings.HasPrefix(line, "=== [") && strings.HasSuffix(line, header) {
				inside = true
				entry = append(entry, line)
			}
			continue
		}
		entry = append(entry, line)
		if line == "=== END ===" {
			inside = false
		}
	}
	return entry, nil
}
