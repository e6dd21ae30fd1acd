package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ytfetch-go/internal/domain"
)

const executablePerm = 0755

// BinaryProvisioner copies bundled tool binaries from a read-only asset
// store into a private bin directory and makes them executable.
// Each logical name is provisioned at most once per process lifetime.
type BinaryProvisioner struct {
	assets       fs.FS
	binDir       string
	policy       domain.RefreshPolicy
	chmodTimeout time.Duration
	logger       *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	ready map[string]domain.ToolBinary
}

// NewBinaryProvisioner creates a provisioner reading assets from the given FS
func NewBinaryProvisioner(assets fs.FS, config *domain.ToolsConfig, logger *zap.Logger) *BinaryProvisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := config.Refresh
	if policy == "" {
		policy = domain.RefreshAlways
	}
	chmodTimeout := config.ChmodTimeout
	if chmodTimeout <= 0 {
		chmodTimeout = 10 * time.Second
	}
	return &BinaryProvisioner{
		assets:       assets,
		binDir:       config.BinDir,
		policy:       policy,
		chmodTimeout: chmodTimeout,
		logger:       logger,
		locks:        make(map[string]*sync.Mutex),
		ready:        make(map[string]domain.ToolBinary),
	}
}

// InstalledPath returns where a logical name is installed
func (p *BinaryProvisioner) InstalledPath(logicalName string) string {
	name := logicalName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(p.binDir, name)
}

// Ensure makes sure logicalName is installed and executable
func (p *BinaryProvisioner) Ensure(ctx context.Context, logicalName string) (domain.ToolBinary, error) {
	if !fs.ValidPath(logicalName) {
		return domain.ToolBinary{}, domain.NewDownloadError(domain.KindProvisioning,
			fmt.Sprintf("invalid tool name %q", logicalName), nil)
	}

	lock := p.lockFor(logicalName)
	lock.Lock()
	defer lock.Unlock()

	if tool, ok := p.cached(logicalName); ok {
		return tool, nil
	}

	dest := p.InstalledPath(logicalName)
	if p.policy == domain.RefreshMissing && fileExists(dest) {
		p.logger.Debug("Tool already installed", zap.String("tool", logicalName), zap.String("path", dest))
	} else {
		if err := p.install(logicalName, dest); err != nil {
			return domain.ToolBinary{}, err
		}
		p.logger.Info("Tool installed", zap.String("tool", logicalName), zap.String("path", dest))
	}

	if err := p.makeExecutable(ctx, dest); err != nil {
		return domain.ToolBinary{}, err
	}

	tool := domain.ToolBinary{LogicalName: logicalName, InstalledPath: dest, Executable: true}
	p.mu.Lock()
	p.ready[logicalName] = tool
	p.mu.Unlock()

	return tool, nil
}

// EnsureAll provisions several tools in order, stopping at the first failure
func (p *BinaryProvisioner) EnsureAll(ctx context.Context, logicalNames ...string) ([]domain.ToolBinary, error) {
	tools := make([]domain.ToolBinary, 0, len(logicalNames))
	for _, name := range logicalNames {
		tool, err := p.Ensure(ctx, name)
		if err != nil {
			return nil, err
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

func (p *BinaryProvisioner) lockFor(logicalName string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.locks[logicalName]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[logicalName] = lock
	}
	return lock
}

func (p *BinaryProvisioner) cached(logicalName string) (domain.ToolBinary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tool, ok := p.ready[logicalName]
	return tool, ok
}

// install streams the asset into a temp file next to dest and renames it
// into place, so a reader never sees a partially written binary.
func (p *BinaryProvisioner) install(logicalName, dest string) error {
	src, err := p.assets.Open(logicalName)
	if err != nil {
		return domain.NewDownloadError(domain.KindProvisioning,
			fmt.Sprintf("failed to open bundled asset %s", logicalName), err)
	}
	defer src.Close()

	if err := os.MkdirAll(p.binDir, executablePerm); err != nil {
		return domain.NewDownloadError(domain.KindProvisioning, "failed to create bin directory", err)
	}

	tmp, err := os.CreateTemp(p.binDir, "."+logicalName+".*.tmp")
	if err != nil {
		return domain.NewDownloadError(domain.KindProvisioning,
			fmt.Sprintf("failed to create %s in %s", logicalName, p.binDir), err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return domain.NewDownloadError(domain.KindProvisioning,
			fmt.Sprintf("failed to copy bundled asset %s", logicalName), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return domain.NewDownloadError(domain.KindProvisioning,
			fmt.Sprintf("failed to write %s", logicalName), err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return domain.NewDownloadError(domain.KindProvisioning,
			fmt.Sprintf("failed to install %s", dest), err)
	}
	return nil
}

// makeExecutable sets the permission bits, falling back to the chmod
// utility where the syscall alone does not stick.
func (p *BinaryProvisioner) makeExecutable(ctx context.Context, path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}

	chmodErr := os.Chmod(path, executablePerm)
	if chmodErr == nil && isExecutable(path) && runtime.GOOS != "android" {
		return nil
	}

	p.chmodFallback(ctx, path)

	if !isExecutable(path) {
		if chmodErr == nil {
			chmodErr = errors.New("execute bit not set")
		}
		return domain.NewDownloadError(domain.KindProvisioning,
			fmt.Sprintf("failed to make %s executable", path), chmodErr)
	}
	return nil
}

// chmodFallback is best effort: its failure is logged and swallowed
func (p *BinaryProvisioner) chmodFallback(ctx context.Context, path string) {
	ctx, cancel := context.WithTimeout(ctx, p.chmodTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, "chmod", "755", path).CombinedOutput()
	if err != nil {
		p.logger.Debug("chmod fallback failed",
			zap.String("path", path),
			zap.String("output", string(output)),
			zap.Error(err))
	}
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0100 != 0
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
