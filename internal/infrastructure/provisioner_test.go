package infrastructure

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/ytfetch-go/internal/domain"
)

func testAssets() fstest.MapFS {
	return fstest.MapFS{
		domain.ToolDownloader: {Data: []byte("#!/bin/sh\necho yt-dlp\n")},
		domain.ToolTranscoder: {Data: []byte("#!/bin/sh\necho ffmpeg\n")},
	}
}

func newTestProvisioner(t *testing.T, assets fstest.MapFS, policy domain.RefreshPolicy) (*BinaryProvisioner, string) {
	t.Helper()
	binDir := filepath.Join(t.TempDir(), "bin")
	config := &domain.ToolsConfig{BinDir: binDir, Refresh: policy}
	return NewBinaryProvisioner(assets, config, nil), binDir
}

func TestEnsure_CopiesAndMakesExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not used on windows")
	}
	provisioner, binDir := newTestProvisioner(t, testAssets(), domain.RefreshAlways)

	tool, err := provisioner.Ensure(context.Background(), domain.ToolDownloader)
	require.NoError(t, err)

	assert.Equal(t, domain.ToolDownloader, tool.LogicalName)
	assert.Equal(t, filepath.Join(binDir, domain.ToolDownloader), tool.InstalledPath)
	assert.True(t, tool.Executable)

	data, err := os.ReadFile(tool.InstalledPath)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho yt-dlp\n", string(data))

	info, err := os.Stat(tool.InstalledPath)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0100, "owner execute bit must be set")
	assert.NotZero(t, info.Mode().Perm()&0400, "owner read bit must be set")
	assert.NotZero(t, info.Mode().Perm()&0200, "owner write bit must be set")
}

func TestEnsure_Idempotent(t *testing.T) {
	provisioner, _ := newTestProvisioner(t, testAssets(), domain.RefreshAlways)
	ctx := context.Background()

	first, err := provisioner.Ensure(ctx, domain.ToolDownloader)
	require.NoError(t, err)
	before, err := os.ReadFile(first.InstalledPath)
	require.NoError(t, err)

	second, err := provisioner.Ensure(ctx, domain.ToolDownloader)
	require.NoError(t, err)
	after, err := os.ReadFile(second.InstalledPath)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, after)
}

func TestEnsure_OncePerLifetime(t *testing.T) {
	provisioner, _ := newTestProvisioner(t, testAssets(), domain.RefreshAlways)
	ctx := context.Background()

	tool, err := provisioner.Ensure(ctx, domain.ToolDownloader)
	require.NoError(t, err)

	// A second pass must not copy again within the same process.
	require.NoError(t, os.WriteFile(tool.InstalledPath, []byte("local"), 0755))
	_, err = provisioner.Ensure(ctx, domain.ToolDownloader)
	require.NoError(t, err)

	data, err := os.ReadFile(tool.InstalledPath)
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))
}

func TestEnsure_RefreshAlwaysOverwritesStaleBinary(t *testing.T) {
	provisioner, binDir := newTestProvisioner(t, testAssets(), domain.RefreshAlways)
	require.NoError(t, os.MkdirAll(binDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(binDir, domain.ToolDownloader), []byte("stale"), 0644))

	tool, err := provisioner.Ensure(context.Background(), domain.ToolDownloader)
	require.NoError(t, err)

	data, err := os.ReadFile(tool.InstalledPath)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho yt-dlp\n", string(data))
}

func TestEnsure_RefreshMissingKeepsExistingBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not used on windows")
	}
	provisioner, binDir := newTestProvisioner(t, testAssets(), domain.RefreshMissing)
	require.NoError(t, os.MkdirAll(binDir, 0755))
	existing := filepath.Join(binDir, domain.ToolDownloader)
	require.NoError(t, os.WriteFile(existing, []byte("existing"), 0644))

	tool, err := provisioner.Ensure(context.Background(), domain.ToolDownloader)
	require.NoError(t, err)

	data, err := os.ReadFile(tool.InstalledPath)
	require.NoError(t, err)
	assert.Equal(t, "existing", string(data))

	// permissions are still applied to a kept binary
	info, err := os.Stat(existing)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0100)
}

func TestEnsure_MissingAsset(t *testing.T) {
	provisioner, _ := newTestProvisioner(t, fstest.MapFS{}, domain.RefreshAlways)

	_, err := provisioner.Ensure(context.Background(), domain.ToolDownloader)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindProvisioning))
	assert.Contains(t, err.Error(), "bundled asset")
}

func TestEnsure_UnwritableDestination(t *testing.T) {
	root := t.TempDir()
	// bin dir path is occupied by a regular file
	blocked := filepath.Join(root, "bin")
	require.NoError(t, os.WriteFile(blocked, []byte("not a dir"), 0644))

	provisioner := NewBinaryProvisioner(testAssets(), &domain.ToolsConfig{BinDir: blocked}, nil)

	_, err := provisioner.Ensure(context.Background(), domain.ToolDownloader)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindProvisioning))
}

func TestEnsure_InvalidName(t *testing.T) {
	provisioner, _ := newTestProvisioner(t, testAssets(), domain.RefreshAlways)

	_, err := provisioner.Ensure(context.Background(), "../yt-dlp")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindProvisioning))
}

func TestEnsure_ConcurrentFirstUse(t *testing.T) {
	provisioner, _ := newTestProvisioner(t, testAssets(), domain.RefreshAlways)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]domain.ToolBinary, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = provisioner.Ensure(ctx, domain.ToolTranscoder)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}

	data, err := os.ReadFile(results[0].InstalledPath)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho ffmpeg\n", string(data))

	// no temp files are left behind
	entries, err := os.ReadDir(filepath.Dir(results[0].InstalledPath))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEnsureAll(t *testing.T) {
	provisioner, _ := newTestProvisioner(t, testAssets(), domain.RefreshAlways)

	tools, err := provisioner.EnsureAll(context.Background(), domain.ToolDownloader, domain.ToolTranscoder)
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, domain.ToolDownloader, tools[0].LogicalName)
	assert.Equal(t, domain.ToolTranscoder, tools[1].LogicalName)
}
