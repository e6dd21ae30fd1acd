package infrastructure

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/ytfetch-go/internal/domain"
)

func setupTestRepo(t *testing.T) *SQLiteDownloadRepository {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "history", "test.db")
	repo, err := NewSQLiteDownloadRepository(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestDownload(url string, format domain.Format) *domain.Download {
	dl := domain.NewDownload(url, format)
	dl.NormalizedURL = domain.NormalizeURL(url)
	dl.VideoID = domain.ExtractVideoID(dl.NormalizedURL)
	return dl
}

func TestRepository_CreateAndFindByID(t *testing.T) {
	repo := setupTestRepo(t)

	dl := newTestDownload("youtube.com/watch?v=abc123", domain.FormatMP4)
	dl.SetExitCode(0)
	dl.MarkCompleted("/downloads")
	require.NoError(t, repo.Create(dl))

	found, err := repo.FindByID(dl.ID)
	require.NoError(t, err)
	assert.Equal(t, dl.ID, found.ID)
	assert.Equal(t, "https://youtube.com/watch?v=abc123", found.NormalizedURL)
	assert.Equal(t, "abc123", found.VideoID)
	assert.Equal(t, domain.StatusCompleted, found.Status)
	require.NotNil(t, found.ExitCode)
	assert.Equal(t, 0, *found.ExitCode)
}

func TestRepository_FindByIDNotFound(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.FindByID("missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRepository_UpdateKeepsErrorKind(t *testing.T) {
	repo := setupTestRepo(t)

	dl := newTestDownload("https://youtu.be/abc123", domain.FormatMP3)
	require.NoError(t, repo.Create(dl))

	dl.MarkFailed(domain.NewDownloadError(domain.KindExternalTool, "yt-dlp exited with code 1", nil))
	require.NoError(t, repo.Update(dl))

	found, err := repo.FindByID(dl.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, found.Status)
	assert.Equal(t, domain.KindExternalTool, found.ErrorKind)
	assert.Equal(t, "yt-dlp exited with code 1", found.ErrorMessage)
}

func TestRepository_Delete(t *testing.T) {
	repo := setupTestRepo(t)

	dl := newTestDownload("https://youtu.be/abc123", domain.FormatMP4)
	require.NoError(t, repo.Create(dl))

	require.NoError(t, repo.Delete(dl.ID))
	_, err := repo.FindByID(dl.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, repo.Delete(dl.ID), domain.ErrNotFound)
}

func TestRepository_FindByURL(t *testing.T) {
	repo := setupTestRepo(t)
	active := []domain.DownloadStatus{domain.StatusQueued, domain.StatusProcessing}

	mp4 := newTestDownload("https://youtu.be/abc123", domain.FormatMP4)
	mp4.MarkProcessing()
	require.NoError(t, repo.Create(mp4))

	failed := newTestDownload("https://youtu.be/abc123", domain.FormatMP3)
	failed.MarkFailed(assert.AnError)
	require.NoError(t, repo.Create(failed))

	found, err := repo.FindByURL("https://youtu.be/abc123", domain.FormatMP4, active)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, mp4.ID, found.ID)

	// format is part of the match
	found, err = repo.FindByURL("https://youtu.be/abc123", domain.FormatMP3, active)
	require.NoError(t, err)
	assert.Nil(t, found, "failed download should not match active statuses")

	found, err = repo.FindByURL("https://youtu.be/other", domain.FormatMP4, active)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRepository_FindAllFilters(t *testing.T) {
	repo := setupTestRepo(t)

	for _, format := range []domain.Format{domain.FormatMP4, domain.FormatMP3, domain.FormatMP3} {
		require.NoError(t, repo.Create(newTestDownload("https://youtu.be/abc123", format)))
	}

	all, err := repo.FindAll(nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	audio, err := repo.FindAll(map[string]interface{}{"format": domain.FormatMP3})
	require.NoError(t, err)
	assert.Len(t, audio, 2)

	_, err = repo.FindAll(map[string]interface{}{"1=1; DROP TABLE downloads; --": "x"})
	assert.Error(t, err)
}

func TestRepository_FindRecent(t *testing.T) {
	repo := setupTestRepo(t)

	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := 0; i < 4; i++ {
		dl := newTestDownload("https://youtu.be/abc123", domain.FormatMP4)
		dl.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(dl))
		ids = append(ids, dl.ID)
	}

	recent, err := repo.FindRecent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[3], recent[0].ID)
	assert.Equal(t, ids[2], recent[1].ID)
}

func TestRepository_GetStats(t *testing.T) {
	repo := setupTestRepo(t)

	queued := newTestDownload("https://youtu.be/a", domain.FormatMP4)
	require.NoError(t, repo.Create(queued))

	completed := newTestDownload("https://youtu.be/b", domain.FormatMP4)
	completed.MarkCompleted("/out")
	require.NoError(t, repo.Create(completed))

	failed := newTestDownload("https://youtu.be/c", domain.FormatMP3)
	failed.MarkFailed(assert.AnError)
	require.NoError(t, repo.Create(failed))

	cancelled := newTestDownload("https://youtu.be/d", domain.FormatMP3)
	cancelled.MarkCancelled()
	require.NoError(t, repo.Create(cancelled))

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(1), stats.Queued)
	assert.Equal(t, int64(0), stats.Processing)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Cancelled)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}
