package app

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/yourusername/ytfetch-go/internal/domain"
	"github.com/yourusername/ytfetch-go/internal/infrastructure"
)

// Services holds the components a server or CLI process runs with
type Services struct {
	Config       *domain.Config
	Repo         *infrastructure.SQLiteDownloadRepository
	Provisioner  *infrastructure.BinaryProvisioner
	Orchestrator *Orchestrator
	Manager      *DownloadManager
	Hub          *EventHub
}

// NewServices wires the download stack for config. The caller must Close it.
func NewServices(config *domain.Config, log *zap.Logger) (*Services, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if err := os.MkdirAll(config.Download.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	repo, err := infrastructure.NewSQLiteDownloadRepository(config.History.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize repository: %w", err)
	}

	provisioner := infrastructure.NewBinaryProvisioner(os.DirFS(config.Tools.AssetsDir), &config.Tools, log)
	runner := infrastructure.NewExecRunner(config.Download.DrainGrace, log)
	downloadLog := infrastructure.NewDownloadLog(config.Download.LogsDir)
	orchestrator := NewOrchestrator(provisioner, runner, config, downloadLog, log)

	notifier := infrastructure.NewNotificationService(&config.Notification, log)
	hub := NewEventHub(DefaultFinishedRetention)
	manager := NewDownloadManager(orchestrator, repo, notifier, hub, &config.Download, log)

	return &Services{
		Config:       config,
		Repo:         repo,
		Provisioner:  provisioner,
		Orchestrator: orchestrator,
		Manager:      manager,
		Hub:          hub,
	}, nil
}

// Close releases the history database
func (s *Services) Close() error {
	return s.Repo.Close()
}
