package domain

import (
	"strings"
	"sync"
	"time"
)

// State is a step of the per-request download state machine
type State string

const (
	StateIdle            State = "idle"
	StateValidating      State = "validating"
	StateRejected        State = "rejected"
	StateProvisioning    State = "provisioning"
	StateProvisionError  State = "provision_error"
	StateBuildingCommand State = "building_command"
	StateRunning         State = "running"
	StateTimedOut        State = "timed_out"
	StateFailed          State = "failed"
	StateSucceeded       State = "succeeded"
)

// IsTerminal reports whether no further transition can follow
func (s State) IsTerminal() bool {
	switch s {
	case StateRejected, StateProvisionError, StateTimedOut, StateFailed, StateSucceeded:
		return true
	}
	return false
}

// StatusEvent is one human-readable progress line of a download
type StatusEvent struct {
	DownloadID          string    `json:"download_id,omitempty"`
	Seq                 int       `json:"seq"`
	State               State     `json:"state"`
	Message             string    `json:"message"`
	ReplacesPlaceholder bool      `json:"replaces_placeholder,omitempty"`
	Time                time.Time `json:"time"`
}

// StatusSink receives status events in the order they were produced
type StatusSink func(StatusEvent)

// StatusLog is an append-only list of status lines. An optional placeholder
// line is overwritten by the first real line instead of being appended to.
type StatusLog struct {
	mu          sync.Mutex
	lines       []string
	placeholder bool
}

// NewStatusLog creates a log. A non-empty placeholder is shown until the
// first Append.
func NewStatusLog(placeholder string) *StatusLog {
	l := &StatusLog{}
	if placeholder != "" {
		l.lines = []string{placeholder}
		l.placeholder = true
	}
	return l
}

// Append adds a line and reports whether it replaced the placeholder
func (l *StatusLog) Append(line string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.placeholder {
		l.lines[0] = line
		l.placeholder = false
		return true
	}
	l.lines = append(l.lines, line)
	return false
}

// Lines returns a copy of all lines
func (l *StatusLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines := make([]string, len(l.lines))
	copy(lines, l.lines)
	return lines
}

// Len returns the number of lines, the placeholder included
func (l *StatusLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

func (l *StatusLog) String() string {
	return strings.Join(l.Lines(), "\n")
}
