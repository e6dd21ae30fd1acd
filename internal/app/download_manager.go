package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ytfetch-go/internal/domain"
	"github.com/yourusername/ytfetch-go/internal/infrastructure"
)

var (
	// ErrAlreadyFinished is returned when cancelling a finished download
	ErrAlreadyFinished = errors.New("download already in terminal state")
	// ErrNotRetryable is returned when retrying a download that did not fail
	ErrNotRetryable = errors.New("download is not in a failed or cancelled state")
	// ErrInProgress is returned when deleting an active download
	ErrInProgress = errors.New("download is in progress")
	// ErrShuttingDown is returned for requests after Shutdown
	ErrShuttingDown = errors.New("download manager is shutting down")
)

var activeStatuses = []domain.DownloadStatus{domain.StatusQueued, domain.StatusProcessing}

// DownloadManager runs downloads in the background, keeps their history
// and lets callers follow, cancel and retry them
type DownloadManager struct {
	engine   Engine
	repo     domain.DownloadRepository
	notifier *infrastructure.NotificationService
	hub      *EventHub
	config   *domain.DownloadConfig
	logger   *zap.Logger

	semaphore chan struct{}
	baseCtx   context.Context
	stop      context.CancelFunc
	wg        sync.WaitGroup

	mu       sync.Mutex
	active   map[string]*jobRun
	closed   bool
	started  bool
	startErr error
}

// jobRun is the shared state of one running attempt
type jobRun struct {
	id        string
	cancel    context.CancelFunc
	done      chan struct{}
	outputDir string
	err       error
}

// Job is a caller's handle on a download attempt
type Job struct {
	ID       string
	Download *domain.Download

	run *jobRun
	sub *Subscription
}

// Events delivers the status events of the attempt in order, earlier
// events first. It is closed once the attempt has finished.
func (j *Job) Events() <-chan domain.StatusEvent {
	return j.sub.C()
}

// Done is closed when the attempt reached a terminal state
func (j *Job) Done() <-chan struct{} {
	return j.run.done
}

// Result blocks until the attempt finished and returns its outcome
func (j *Job) Result() (string, error) {
	<-j.run.done
	return j.run.outputDir, j.run.err
}

// Close stops event delivery to this handle. The download keeps running.
func (j *Job) Close() {
	j.sub.Close()
}

// NewDownloadManager creates a new download manager
func NewDownloadManager(
	engine Engine,
	repo domain.DownloadRepository,
	notifier *infrastructure.NotificationService,
	hub *EventHub,
	config *domain.DownloadConfig,
	logger *zap.Logger,
) *DownloadManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = NewEventHub(0)
	}
	limit := config.ConcurrentLimit
	if limit < 1 {
		limit = 1
	}

	baseCtx, stop := context.WithCancel(context.Background())
	return &DownloadManager{
		engine:    engine,
		repo:      repo,
		notifier:  notifier,
		hub:       hub,
		config:    config,
		logger:    logger,
		semaphore: make(chan struct{}, limit),
		baseCtx:   baseCtx,
		stop:      stop,
		active:    make(map[string]*jobRun),
	}
}

// RecoverInterrupted fails queued or processing records left behind by a
// previous process and returns how many it changed. Only the process that
// owns the history database may call it: records of downloads running in
// another process sharing the database would be failed too.
func (dm *DownloadManager) RecoverInterrupted() (int, error) {
	recovered := 0
	for _, status := range activeStatuses {
		stale, err := dm.repo.FindByStatus(status)
		if err != nil {
			return recovered, fmt.Errorf("failed to load unfinished downloads: %w", err)
		}
		for _, download := range stale {
			dm.mu.Lock()
			_, running := dm.active[download.ID]
			dm.mu.Unlock()
			if running {
				continue
			}

			download.MarkFailed(domain.NewDownloadError(domain.KindUnknown, "interrupted before completion", nil))
			if err := dm.repo.Update(download); err != nil {
				dm.logger.Error("Failed to update download status", zap.String("id", download.ID), zap.Error(err))
				continue
			}
			recovered++
		}
	}

	if recovered > 0 {
		dm.logger.Warn("Marked interrupted downloads as failed", zap.Int("count", recovered))
	}
	return recovered, nil
}

// Start provisions the tools. A provisioning error is returned but the
// manager stays usable: every download then fails with that error.
func (dm *DownloadManager) Start(ctx context.Context) error {
	err := dm.engine.Init(ctx)
	if err != nil {
		err = fmt.Errorf("failed to initialize tools: %w", err)
	}

	dm.mu.Lock()
	dm.started = true
	dm.startErr = err
	dm.mu.Unlock()

	if err != nil {
		return err
	}
	dm.logger.Info(ReadyMessage)
	return nil
}

// Ready returns nil once Start provisioned the tools successfully
func (dm *DownloadManager) Ready() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	switch {
	case dm.closed:
		return ErrShuttingDown
	case !dm.started:
		return errors.New("download manager not started")
	}
	return dm.startErr
}

// RequestDownload records a download and starts it in the background.
// A request for a url and format that is already queued or running joins
// that download instead of starting another one. ctx only carries values;
// the download runs until it finishes, is cancelled or the manager shuts down.
func (dm *DownloadManager) RequestDownload(ctx context.Context, rawURL string, format domain.Format) (*Job, error) {
	normalized := domain.NormalizeURL(rawURL)

	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.closed {
		return nil, ErrShuttingDown
	}

	if normalized != "" {
		existing, err := dm.repo.FindByURL(normalized, format, activeStatuses)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing downloads: %w", err)
		}
		if existing != nil {
			if run, ok := dm.active[existing.ID]; ok {
				dm.logger.Info("Joining active download",
					zap.String("id", existing.ID),
					zap.String("url", normalized))
				return dm.attach(existing, run), nil
			}
		}
	}

	download := domain.NewDownload(rawURL, format)
	download.NormalizedURL = normalized
	download.VideoID = domain.ExtractVideoID(normalized)
	if err := dm.repo.Create(download); err != nil {
		return nil, fmt.Errorf("failed to create download: %w", err)
	}

	dm.logger.Info("Download requested",
		zap.String("id", download.ID),
		zap.String("url", rawURL),
		zap.String("format", string(format)))

	return dm.launch(ctx, download), nil
}

// CancelDownload cancels a queued or running download
func (dm *DownloadManager) CancelDownload(id string) error {
	dm.mu.Lock()
	run, ok := dm.active[id]
	dm.mu.Unlock()
	if ok {
		run.cancel()
		dm.logger.Info("Download cancellation requested", zap.String("id", id))
		return nil
	}

	download, err := dm.repo.FindByID(id)
	if err != nil {
		return fmt.Errorf("failed to find download: %w", err)
	}
	if download.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrAlreadyFinished, download.Status)
	}

	// known to history but not running in this process
	download.MarkCancelled()
	if err := dm.repo.Update(download); err != nil {
		return fmt.Errorf("failed to update download: %w", err)
	}

	dm.logger.Info("Download cancelled", zap.String("id", id))
	return nil
}

// RetryDownload starts a failed or cancelled download again under the same id
func (dm *DownloadManager) RetryDownload(ctx context.Context, id string) (*Job, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.closed {
		return nil, ErrShuttingDown
	}
	if _, ok := dm.active[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRetryable, domain.StatusProcessing)
	}

	download, err := dm.repo.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to find download: %w", err)
	}
	if download.Status != domain.StatusFailed && download.Status != domain.StatusCancelled {
		return nil, fmt.Errorf("%w: %s", ErrNotRetryable, download.Status)
	}

	download.ResetForRetry()
	if err := dm.repo.Update(download); err != nil {
		return nil, fmt.Errorf("failed to update download: %w", err)
	}

	dm.logger.Info("Download queued for retry", zap.String("id", id))
	return dm.launch(ctx, download), nil
}

// DeleteDownload removes a finished download from history
func (dm *DownloadManager) DeleteDownload(id string) error {
	dm.mu.Lock()
	_, running := dm.active[id]
	dm.mu.Unlock()
	if running {
		return ErrInProgress
	}

	if err := dm.repo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete download: %w", err)
	}
	return nil
}

// GetDownload returns a download record
func (dm *DownloadManager) GetDownload(id string) (*domain.Download, error) {
	return dm.repo.FindByID(id)
}

// ListDownloads returns history records matching filters, newest first
func (dm *DownloadManager) ListDownloads(filters map[string]interface{}) ([]*domain.Download, error) {
	return dm.repo.FindAll(filters)
}

// RecentDownloads returns the newest history records
func (dm *DownloadManager) RecentDownloads(limit int) ([]*domain.Download, error) {
	return dm.repo.FindRecent(limit)
}

// GetStats returns history statistics
func (dm *DownloadManager) GetStats() (*domain.DownloadStats, error) {
	return dm.repo.GetStats()
}

// Subscribe follows the events of a download. For a download that is no
// longer in memory the stored status lines are replayed.
func (dm *DownloadManager) Subscribe(id string) (*Subscription, error) {
	if sub, ok := dm.hub.Subscribe(id); ok {
		return sub, nil
	}

	download, err := dm.repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	return newSubscriptionFromHistory(id, historyEvents(download)), nil
}

// ActiveCount returns the number of downloads queued or running in memory
func (dm *DownloadManager) ActiveCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.active)
}

// Shutdown cancels running downloads and waits for them to finish
func (dm *DownloadManager) Shutdown(ctx context.Context) error {
	dm.mu.Lock()
	dm.closed = true
	dm.mu.Unlock()
	dm.stop()

	done := make(chan struct{})
	go func() {
		dm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for downloads: %w", ctx.Err())
	}
}

// launch must be called with dm.mu held
func (dm *DownloadManager) launch(ctx context.Context, download *domain.Download) *Job {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopAfter := context.AfterFunc(dm.baseCtx, cancel)

	run := &jobRun{
		id:     download.ID,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	dm.active[download.ID] = run
	dm.hub.Open(download.ID)
	job := dm.attach(download, run)

	dm.wg.Add(1)
	go func() {
		defer dm.wg.Done()
		defer stopAfter()
		defer cancel()
		dm.process(runCtx, download, run)
	}()

	return job
}

func (dm *DownloadManager) attach(download *domain.Download, run *jobRun) *Job {
	sub, ok := dm.hub.Subscribe(download.ID)
	if !ok {
		sub = newSubscriptionFromHistory(download.ID, nil)
	}
	snapshot := *download
	return &Job{ID: download.ID, Download: &snapshot, run: run, sub: sub}
}

// process runs one attempt to completion and records its outcome
func (dm *DownloadManager) process(ctx context.Context, download *domain.Download, run *jobRun) {
	var lines []string
	sink := func(ev domain.StatusEvent) {
		ev.DownloadID = download.ID
		lines = append(lines, ev.Message)
		dm.hub.Publish(ev)
	}

	outputDir, err := dm.execute(ctx, download, sink)

	download.ProcessLog = strings.Join(lines, "\n")
	var de *domain.DownloadError
	if errors.As(err, &de) && (de.Kind == domain.KindExternalTool || de.Kind == domain.KindTimeout) {
		download.SetExitCode(de.ExitCode)
	} else if err == nil {
		download.SetExitCode(0)
	}

	switch {
	case err == nil:
		download.MarkCompleted(outputDir)
		dm.logger.Info("Download completed",
			zap.String("id", download.ID),
			zap.String("url", download.URL),
			zap.String("output_dir", outputDir))
		dm.notifier.NotifyDownloadCompleted(download.URL, download.Format)
	case ctx.Err() != nil:
		download.MarkCancelled()
		dm.logger.Info("Download cancelled", zap.String("id", download.ID))
	default:
		download.MarkFailed(err)
		dm.logger.Error("Download failed",
			zap.String("id", download.ID),
			zap.String("url", download.URL),
			zap.String("kind", string(domain.KindOf(err))),
			zap.Error(err))
		dm.notifier.NotifyDownloadFailed(download.URL, download.Format, err)
	}

	if updateErr := dm.repo.Update(download); updateErr != nil {
		dm.logger.Error("Failed to update download status", zap.String("id", download.ID), zap.Error(updateErr))
	}

	dm.mu.Lock()
	delete(dm.active, download.ID)
	dm.mu.Unlock()

	run.outputDir = outputDir
	run.err = err
	dm.hub.Close(download.ID)
	close(run.done)
}

func (dm *DownloadManager) execute(ctx context.Context, download *domain.Download, sink domain.StatusSink) (string, error) {
	select {
	case dm.semaphore <- struct{}{}:
		defer func() { <-dm.semaphore }()
	case <-ctx.Done():
		sink(domain.StatusEvent{Seq: 1, State: domain.StateTimedOut, Message: "Download cancelled", Time: time.Now()})
		return "", domain.NewDownloadError(domain.KindTimeout, "Download cancelled", ctx.Err()).WithExitCode(-1)
	}

	download.MarkProcessing()
	if err := dm.repo.Update(download); err != nil {
		dm.logger.Error("Failed to update download status", zap.String("id", download.ID), zap.Error(err))
	}

	return dm.engine.DownloadAs(ctx, download.ID, download.Request(), sink)
}

// historyEvents rebuilds events from the stored status lines of a download
func historyEvents(download *domain.Download) []domain.StatusEvent {
	if download.ProcessLog == "" {
		return nil
	}

	final := domain.StateRunning
	switch download.Status {
	case domain.StatusCompleted:
		final = domain.StateSucceeded
	case domain.StatusFailed:
		final = domain.StateFailed
		if download.ErrorKind == domain.KindTimeout {
			final = domain.StateTimedOut
		}
	case domain.StatusCancelled:
		final = domain.StateTimedOut
	}

	lines := strings.Split(download.ProcessLog, "\n")
	events := make([]domain.StatusEvent, len(lines))
	for i, line := range lines {
		state := domain.StateRunning
		if i == len(lines)-1 {
			state = final
		}
		events[i] = domain.StatusEvent{
			DownloadID:          download.ID,
			Seq:                 i + 1,
			State:               state,
			Message:             line,
			ReplacesPlaceholder: i == 0,
			Time:                download.UpdatedAt,
		}
	}
	return events
}

// newSubscriptionFromHistory returns a finished subscription replaying events
func newSubscriptionFromHistory(id string, events []domain.StatusEvent) *Subscription {
	sub := newSubscription(nil, id, events)
	sub.finish()
	return sub
}
