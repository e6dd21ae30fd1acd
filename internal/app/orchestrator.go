package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ytfetch-go/internal/domain"
	"github.com/yourusername/ytfetch-go/internal/infrastructure"
)

const (
	// ReadyMessage is the status shown once the tools are provisioned
	ReadyMessage = "Tools initialized successfully. Ready to download."

	// PlaceholderMessage stands in the status log until the first event
	PlaceholderMessage = "Initializing download tools..."
)

// Engine runs single downloads. Implemented by Orchestrator.
type Engine interface {
	Init(ctx context.Context) error
	DownloadAs(ctx context.Context, id string, req domain.DownloadRequest, sink domain.StatusSink) (string, error)
}

// Orchestrator composes validation, provisioning, command building and
// process execution into one download operation
type Orchestrator struct {
	provisioner domain.Provisioner
	runner      domain.ProcessRunner
	download    *domain.DownloadConfig
	tools       *domain.ToolsConfig
	downloadLog *infrastructure.DownloadLog
	logger      *zap.Logger

	mu         sync.Mutex
	ready      bool
	initErr    error
	downloader domain.ToolBinary
	builder    *infrastructure.CommandBuilder
}

// NewOrchestrator creates a new orchestrator. downloadLog may be nil.
func NewOrchestrator(
	provisioner domain.Provisioner,
	runner domain.ProcessRunner,
	config *domain.Config,
	downloadLog *infrastructure.DownloadLog,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		provisioner: provisioner,
		runner:      runner,
		download:    &config.Download,
		tools:       &config.Tools,
		downloadLog: downloadLog,
		logger:      logger,
	}
}

// Init provisions the downloader and transcoder. A failure is kept and
// returned by every later Download until a later Init succeeds.
func (o *Orchestrator) Init(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.initLocked(ctx)
}

func (o *Orchestrator) initLocked(ctx context.Context) error {
	if o.ready {
		return nil
	}

	downloader, err := o.provisioner.Ensure(ctx, o.tools.Downloader)
	if err != nil {
		o.initErr = err
		o.logger.Error("Failed to provision downloader", zap.String("tool", o.tools.Downloader), zap.Error(err))
		return err
	}

	transcoder, err := o.provisioner.Ensure(ctx, o.tools.Transcoder)
	if err != nil {
		o.initErr = err
		o.logger.Error("Failed to provision transcoder", zap.String("tool", o.tools.Transcoder), zap.Error(err))
		return err
	}

	o.downloader = downloader
	o.builder = infrastructure.NewCommandBuilder(o.download.AudioQuality, transcoder.InstalledPath)
	o.ready = true
	o.initErr = nil

	o.logger.Info("Tools ready",
		zap.String("downloader", downloader.InstalledPath),
		zap.String("transcoder", transcoder.InstalledPath))
	return nil
}

// InitError returns the remembered provisioning failure, if any
func (o *Orchestrator) InitError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.initErr
}

// Download runs a single download and returns its output directory
func (o *Orchestrator) Download(ctx context.Context, req domain.DownloadRequest, sink domain.StatusSink) (string, error) {
	return o.DownloadAs(ctx, "", req, sink)
}

// DownloadAs is Download with an id stamped on every status event
func (o *Orchestrator) DownloadAs(ctx context.Context, id string, req domain.DownloadRequest, sink domain.StatusSink) (string, error) {
	s := &session{
		id:     id,
		sink:   sink,
		status: domain.NewStatusLog(PlaceholderMessage),
	}

	s.emit(domain.StateValidating, fmt.Sprintf("Starting %s download...", req.Format.Label()))

	url := domain.NormalizeURL(req.RawURL)
	if !domain.ValidateURL(url) {
		s.emit(domain.StateRejected, "Please enter a valid YouTube URL")
		return "", domain.NewDownloadError(domain.KindValidation,
			fmt.Sprintf("invalid or unsupported url %q", req.RawURL), nil)
	}
	if !domain.ValidateFormat(req.Format) {
		s.emit(domain.StateRejected, fmt.Sprintf("Unsupported format: %s", req.Format))
		return "", domain.NewDownloadError(domain.KindValidation,
			fmt.Sprintf("unsupported format %q", req.Format), nil)
	}

	downloader, builder, err := o.tooling(ctx, s)
	if err != nil {
		s.emit(domain.StateProvisionError, fmt.Sprintf("Failed to initialize tools: %v", err))
		return "", err
	}

	outputDir := o.download.OutputDir
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		s.emit(domain.StateFailed, fmt.Sprintf("Cannot write to %s", outputDir))
		return "", domain.NewDownloadError(domain.KindIO,
			fmt.Sprintf("failed to create output directory %s", outputDir), err)
	}

	title := ""
	if o.download.PrefetchTitle {
		s.emit(domain.StateBuildingCommand, "Fetching video information...")
		title, err = o.fetchTitle(ctx, builder, downloader, url, s)
		if err != nil {
			s.emit(domain.StateFailed, err.Error())
			return "", err
		}
		if ctx.Err() != nil {
			s.emit(domain.StateTimedOut, "Download cancelled")
			return "", domain.NewDownloadError(domain.KindTimeout, "Download cancelled", ctx.Err()).WithExitCode(-1)
		}
	}

	spec := builder.Build(downloader, url, req.Format, outputDir, title)
	o.logger.Info("Starting download",
		zap.String("id", id),
		zap.String("url", url),
		zap.String("format", string(req.Format)),
		zap.String("command", infrastructure.CommandLine(spec)))

	if req.Format.IsAudio() {
		s.emit(domain.StateRunning, "Downloading audio...")
	} else {
		s.emit(domain.StateRunning, "Downloading video...")
	}

	s.begin(o.downloadLog, infrastructure.CommandLine(spec))

	outcome, err := o.runner.Run(ctx, spec, o.download.Timeout, func(line string) {
		s.entryLine(line)
		s.emit(domain.StateRunning, line)
	})
	if err != nil {
		s.emit(domain.StateFailed, fmt.Sprintf("Error: %v", err))
		s.end(false, err.Error(), o.logger)
		return "", err
	}

	s.emit(domain.StateRunning, fmt.Sprintf("Process finished with exit code %d", outcome.ExitCode))

	if resultErr := classifyOutcome(outcome, o.download.Timeout, ctx.Err()); resultErr != nil {
		if resultErr.Kind == domain.KindTimeout {
			s.emit(domain.StateTimedOut, resultErr.Message)
		} else {
			s.emit(domain.StateFailed, fmt.Sprintf("Download failed with exit code %d", outcome.ExitCode))
		}
		s.end(false, resultErr.Message, o.logger)
		o.logger.Warn("Download failed",
			zap.String("id", id),
			zap.String("url", url),
			zap.String("kind", string(resultErr.Kind)),
			zap.Int("exit_code", outcome.ExitCode))
		return "", resultErr
	}

	s.emit(domain.StateSucceeded, fmt.Sprintf("Download completed! Saved to %s", outputDir))
	s.end(true, fmt.Sprintf("Saved to %s", outputDir), o.logger)
	o.logger.Info("Download completed",
		zap.String("id", id),
		zap.String("url", url),
		zap.Duration("duration", outcome.Duration))

	return outputDir, nil
}

// tooling returns the provisioned downloader, initializing on first use
func (o *Orchestrator) tooling(ctx context.Context, s *session) (domain.ToolBinary, *infrastructure.CommandBuilder, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ready {
		return o.downloader, o.builder, nil
	}
	if o.initErr != nil {
		return domain.ToolBinary{}, nil, o.initErr
	}

	s.emit(domain.StateProvisioning, "Initializing tools...")
	if err := o.initLocked(ctx); err != nil {
		return domain.ToolBinary{}, nil, err
	}
	return o.downloader, o.builder, nil
}

// fetchTitle asks the downloader for the video title. Only a launch
// failure is fatal; any other problem falls back to the title template.
func (o *Orchestrator) fetchTitle(ctx context.Context, builder *infrastructure.CommandBuilder, downloader domain.ToolBinary, url string, s *session) (string, error) {
	spec := builder.BuildTitleQuery(downloader, url)
	s.begin(o.downloadLog, infrastructure.CommandLine(spec))

	outcome, err := o.runner.Run(ctx, spec, o.download.TitleTimeout, s.entryLine)
	if err != nil {
		return "", err
	}
	if !outcome.Succeeded() {
		o.logger.Warn("Title query failed, using title template",
			zap.String("url", url),
			zap.Int("exit_code", outcome.ExitCode),
			zap.Bool("timed_out", outcome.TimedOut))
		return "", nil
	}

	title := SanitizeTitleOutput(outcome.CombinedOutput)
	if title != "" {
		s.emit(domain.StateBuildingCommand, fmt.Sprintf("Title: %s", title))
	}
	return title, nil
}

// SanitizeTitleOutput picks the title line out of --get-title output,
// skipping downloader warnings, and sanitizes it
func SanitizeTitleOutput(output string) string {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "WARNING:") || strings.HasPrefix(line, "ERROR:") {
			continue
		}
		return infrastructure.SanitizeTitle(line)
	}
	return ""
}

// classifyOutcome maps a finished process to nil or a classified error
func classifyOutcome(outcome domain.ProcessOutcome, timeout time.Duration, ctxErr error) *domain.DownloadError {
	switch {
	case outcome.TimedOut && outcome.Canceled:
		if ctxErr == nil {
			ctxErr = context.Canceled
		}
		return domain.NewDownloadError(domain.KindTimeout, "Download cancelled", ctxErr).
			WithDetail(outcome.CombinedOutput).
			WithExitCode(-1)
	case outcome.TimedOut:
		return domain.NewDownloadError(domain.KindTimeout,
			fmt.Sprintf("Download timed out after %s", timeout), context.DeadlineExceeded).
			WithDetail(outcome.CombinedOutput).
			WithExitCode(-1)
	case outcome.ExitCode != 0:
		return domain.NewDownloadError(domain.KindExternalTool,
			fmt.Sprintf("downloader exited with code %d", outcome.ExitCode), nil).
			WithDetail(outcome.CombinedOutput).
			WithExitCode(outcome.ExitCode)
	}
	return nil
}

// IsCancellation reports whether err comes from a canceled context
func IsCancellation(err error) bool {
	return domain.IsKind(err, domain.KindTimeout) && errors.Is(err, context.Canceled)
}

// session is the per-download status state
type session struct {
	id     string
	seq    int
	sink   domain.StatusSink
	status *domain.StatusLog
	entry  *infrastructure.DownloadLogEntry
}

func (s *session) emit(state domain.State, message string) {
	s.seq++
	replaced := s.status.Append(message)
	if s.sink == nil {
		return
	}
	s.sink(domain.StatusEvent{
		DownloadID:          s.id,
		Seq:                 s.seq,
		State:               state,
		Message:             message,
		ReplacesPlaceholder: replaced,
		Time:                time.Now(),
	})
}

// begin opens the download log entry, or appends another command to it
func (s *session) begin(log *infrastructure.DownloadLog, cmdLine string) {
	if log == nil {
		return
	}
	if s.entry != nil {
		s.entry.Command(cmdLine)
		return
	}
	id := s.id
	if id == "" {
		id = "-"
	}
	s.entry = log.Begin(id, cmdLine)
}

func (s *session) entryLine(line string) {
	if s.entry != nil {
		s.entry.Line(line)
	}
}

func (s *session) end(success bool, message string, logger *zap.Logger) {
	if s.entry == nil {
		return
	}
	if err := s.entry.End(success, message); err != nil {
		logger.Warn("Failed to write download log", zap.Error(err))
	}
}
