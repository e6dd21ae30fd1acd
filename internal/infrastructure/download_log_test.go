package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestDownloadLog_EntryFormat(t *testing.T) {
	dir := t.TempDir()
	log := NewDownloadLog(dir)
	log.now = fixedClock(time.Date(2024, 3, 9, 14, 5, 6, 0, time.Local))

	entry := log.Begin("dl-1", "/bin/yt-dlp -f 'best[ext=mp4]/best' https://youtu.be/abc")
	entry.Line("[download] 100%")
	require.NoError(t, entry.End(true, "Saved to /out"))

	data, err := os.ReadFile(filepath.Join(dir, "download-20240309.log"))
	require.NoError(t, err)

	expected := "\n=== [2024-03-09 14:05:06] Download: dl-1 ===\n" +
		"$ /bin/yt-dlp -f 'best[ext=mp4]/best' https://youtu.be/abc\n" +
		"[download] 100%\n" +
		"[2024-03-09 14:05:06] SUCCESS: Saved to /out\n" +
		"=== END ===\n\n"
	assert.Equal(t, expected, string(data))
}

func TestDownloadLog_EndIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	log := NewDownloadLog(dir)

	entry := log.Begin("dl-1", "")
	require.NoError(t, entry.End(false, "ERROR: Video unavailable"))
	require.NoError(t, entry.End(false, "again"))

	data, err := os.ReadFile(log.Path(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "=== END ==="))
	assert.Contains(t, string(data), "FAILED: ERROR: Video unavailable")
}

func TestDownloadLog_ConcurrentEntriesDoNotInterleave(t *testing.T) {
	dir := t.TempDir()
	log := NewDownloadLog(dir)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("dl-%d", i)
			entry := log.Begin(id, "")
			for j := 0; j < 20; j++ {
				entry.Line(fmt.Sprintf("%s line %d", id, j))
			}
			assert.NoError(t, entry.End(true, id))
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(log.Path(time.Now()))
	require.NoError(t, err)

	blocks := strings.Split(strings.TrimSpace(string(data)), "=== END ===")
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		header := strings.SplitN(block, "\n", 2)[0]
		id := strings.TrimSuffix(header[strings.Index(header, "Download: ")+len("Download: "):], " ===")
		for _, line := range strings.Split(block, "\n")[1:] {
			if strings.Contains(line, " line ") {
				assert.True(t, strings.HasPrefix(line, id+" "), "line %q leaked into entry %s", line, id)
			}
		}
	}
}
