package infrastructure

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/yourusername/ytfetch-go/internal/domain"
)

const (
	// DefaultDrainGrace bounds how long trailing output is read after exit
	DefaultDrainGrace = 2 * time.Second

	maxLineSize = 1024 * 1024
)

// ExecRunner runs external commands with a merged stdout/stderr stream
type ExecRunner struct {
	drainGrace time.Duration
	logger     *zap.Logger
}

// NewExecRunner creates a new process runner
func NewExecRunner(drainGrace time.Duration, logger *zap.Logger) *ExecRunner {
	if drainGrace <= 0 {
		drainGrace = DefaultDrainGrace
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecRunner{
		drainGrace: drainGrace,
		logger:     logger,
	}
}

// Run starts spec and blocks until it exits, the timeout elapses or ctx is
// canceled. onLine is called from the calling goroutine, once per line, in
// emission order. A zero timeout means only ctx bounds the run.
func (r *ExecRunner) Run(ctx context.Context, spec domain.CommandSpec, timeout time.Duration, onLine domain.LineFunc) (domain.ProcessOutcome, error) {
	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	// One pipe for both streams keeps the true interleaving of the output
	reader, writer, err := os.Pipe()
	if err != nil {
		return domain.ProcessOutcome{}, domain.NewDownloadError(domain.KindIO, "failed to create output pipe", err)
	}
	defer reader.Close()

	cmd := exec.Command(spec.Binary, spec.Args...)
	cmd.Stdout = writer
	cmd.Stderr = writer
	SetProcessGroup(cmd)

	started := time.Now()
	if err := cmd.Start(); err != nil {
		writer.Close()
		return domain.ProcessOutcome{}, domain.NewDownloadError(domain.KindLaunch,
			fmt.Sprintf("failed to start %s", spec.Binary), err)
	}
	// the child holds its own copy, ours must go so EOF can arrive
	writer.Close()

	pid := cmd.Process.Pid
	r.logger.Debug("Process started",
		zap.Int("pid", pid),
		zap.String("command", CommandLine(spec)))

	lines := make(chan string, 64)
	go readLines(reader, lines)

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	var (
		output   []string
		exited   bool
		timedOut bool
		canceled bool
		drain    <-chan time.Time
		done     = runCtx.Done()
	)
	drainTimer := time.NewTimer(r.drainGrace)
	drainTimer.Stop()
	defer drainTimer.Stop()

	for lines != nil || !exited {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			output = append(output, line)
			if onLine != nil {
				onLine(line)
			}

		case err := <-waitCh:
			exited = true
			waitCh = nil
			done = nil
			if err != nil {
				r.logger.Debug("Process exited with error", zap.Int("pid", pid), zap.Error(err))
			}
			drainTimer.Reset(r.drainGrace)
			drain = drainTimer.C

		case <-done:
			done = nil
			timedOut = true
			canceled = ctx.Err() != nil
			r.logger.Warn("Process exceeded its budget, terminating",
				zap.Int("pid", pid),
				zap.Duration("timeout", timeout),
				zap.Bool("canceled", canceled))
			killProcessTree(cmd.Process)

		case <-drain:
			// a detached grandchild may still hold the pipe open
			drain = nil
			reader.Close()
		}
	}

	outcome := domain.ProcessOutcome{
		CombinedOutput: strings.Join(output, "\n"),
		TimedOut:       timedOut,
		Canceled:       canceled,
		PID:            pid,
		Duration:       time.Since(started),
	}
	if timedOut {
		outcome.ExitCode = -1
	} else {
		outcome.ExitCode = cmd.ProcessState.ExitCode()
	}

	r.logger.Debug("Process finished",
		zap.Int("pid", pid),
		zap.Int("exit_code", outcome.ExitCode),
		zap.Bool("timed_out", outcome.TimedOut),
		zap.Duration("duration", outcome.Duration))

	return outcome, nil
}

// readLines scans r until EOF or close and sends every line on out.
// A line longer than maxLineSize is delivered in maxLineSize pieces.
func readLines(r io.Reader, out chan<- string) {
	defer close(out)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(splitLines(maxLineSize))
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

// splitLines wraps scanAnyLineEnding so that a full buffer without a line
// terminator yields its contents as a line instead of ErrTooLong
func splitLines(max int) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		advance, token, err := scanAnyLineEnding(data, atEOF)
		if advance == 0 && token == nil && err == nil && len(data) >= max {
			return max, bytes.TrimSuffix(data[:max], []byte("\r")), nil
		}
		return advance, token, err
	}
}

// scanAnyLineEnding is a bufio.SplitFunc that treats \n, \r\n and a bare \r
// as line terminators. Progress bars redraw with \r.
func scanAnyLineEnding(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		// need one more byte to tell \r from \r\n
		return 0, nil, nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// killProcessTree kills the process and every descendant it spawned.
// Descendants are collected first since they get reparented once their
// parent dies.
func killProcessTree(p *os.Process) {
	descendants := collectDescendants(int32(p.Pid))

	killProcessGroup(p.Pid)
	p.Kill()

	for _, child := range descendants {
		child.Kill()
	}
}

func collectDescendants(pid int32) []*process.Process {
	parent, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}
	children, err := parent.Children()
	if err != nil {
		return nil
	}

	var all []*process.Process
	for _, child := range children {
		all = append(all, child)
		all = append(all, collectDescendants(child.Pid)...)
	}
	return all
}

// ProcessAlive reports whether pid is still running
func ProcessAlive(pid int) bool {
	exists, err := process.PidExists(int32(pid))
	if err != nil || !exists {
		return false
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	// a reaped-but-listed zombie does not count as running
	status, err := p.Status()
	if err == nil {
		for _, s := range status {
			if s == process.Zombie {
				return false
			}
		}
	}
	return true
}
