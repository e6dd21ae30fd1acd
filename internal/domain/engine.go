package domain

import (
	"context"
	"time"
)

// Logical names of the bundled tools
const (
	ToolDownloader = "yt-dlp"
	ToolTranscoder = "ffmpeg"
)

// ToolBinary is a provisioned external executable
type ToolBinary struct {
	LogicalName   string `json:"logical_name"`
	InstalledPath string `json:"installed_path"`
	Executable    bool   `json:"executable"`
}

// CommandSpec is the binary and argument vector of one external invocation
type CommandSpec struct {
	Binary string
	Args   []string
}

// NewCommandSpec copies args so later changes by the caller do not leak in
func NewCommandSpec(binary string, args ...string) CommandSpec {
	copied := make([]string, len(args))
	copy(copied, args)
	return CommandSpec{Binary: binary, Args: copied}
}

// ProcessOutcome is the result of one process run.
// ExitCode is -1 whenever TimedOut is set.
type ProcessOutcome struct {
	ExitCode       int
	CombinedOutput string
	TimedOut       bool
	Canceled       bool // terminated because the caller's context was canceled
	PID            int
	Duration       time.Duration
}

// Succeeded reports a clean zero exit
func (o ProcessOutcome) Succeeded() bool {
	return !o.TimedOut && o.ExitCode == 0
}

// LineFunc receives one output line at a time, in emission order
type LineFunc func(line string)

// Provisioner makes tool binaries available on disk
type Provisioner interface {
	Ensure(ctx context.Context, logicalName string) (ToolBinary, error)
}

// ProcessRunner runs an external command with a wall-clock budget
type ProcessRunner interface {
	Run(ctx context.Context, spec CommandSpec, timeout time.Duration, onLine LineFunc) (ProcessOutcome, error)
}
