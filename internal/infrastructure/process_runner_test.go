package infrastructure

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/ytfetch-go/internal/domain"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not available on windows")
	}
}

func shell(script string) domain.CommandSpec {
	return domain.NewCommandSpec("/bin/sh", "-c", script)
}

type lineRecorder struct {
	lines []string
}

func (r *lineRecorder) record(line string) {
	r.lines = append(r.lines, line)
}

func TestExecRunner_ExitZeroDeliversLinesInOrder(t *testing.T) {
	skipWithoutShell(t)
	runner := NewExecRunner(0, nil)
	rec := &lineRecorder{}

	outcome, err := runner.Run(context.Background(),
		shell(`echo "[youtube] abc123: Downloading webpage"; echo "WARNING: on stderr" 1>&2; echo "[download] 100% of 1.00MiB"`),
		10*time.Second, rec.record)
	require.NoError(t, err)

	assert.False(t, outcome.TimedOut)
	assert.False(t, outcome.Canceled)
	assert.Equal(t, 0, outcome.ExitCode)
	assert.True(t, outcome.Succeeded())
	assert.Equal(t, []string{
		"[youtube] abc123: Downloading webpage",
		"WARNING: on stderr",
		"[download] 100% of 1.00MiB",
	}, rec.lines)
	assert.Equal(t, strings.Join(rec.lines, "\n"), outcome.CombinedOutput)
	assert.NotZero(t, outcome.PID)
}

func TestExecRunner_CarriageReturnProgress(t *testing.T) {
	skipWithoutShell(t)
	runner := NewExecRunner(0, nil)
	rec := &lineRecorder{}

	_, err := runner.Run(context.Background(),
		shell(`printf '10%%\r50%%\r100%%\r\ndone'`),
		10*time.Second, rec.record)
	require.NoError(t, err)

	assert.Equal(t, []string{"10%", "50%", "100%", "done"}, rec.lines)
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	skipWithoutShell(t)
	runner := NewExecRunner(0, nil)

	outcome, err := runner.Run(context.Background(),
		shell(`echo "ERROR: Video unavailable"; exit 1`),
		10*time.Second, nil)
	require.NoError(t, err)

	assert.False(t, outcome.TimedOut)
	assert.Equal(t, 1, outcome.ExitCode)
	assert.False(t, outcome.Succeeded())
	assert.Equal(t, "ERROR: Video unavailable", outcome.CombinedOutput)
}

func TestExecRunner_OverlongLineKeepsLaterOutput(t *testing.T) {
	skipWithoutShell(t)
	runner := NewExecRunner(0, nil)

	var rec lineRecorder
	outcome, err := runner.Run(context.Background(),
		shell(`head -c 1100000 /dev/zero | tr '\0' x; echo; echo "ERROR: Video unavailable"; exit 1`),
		30*time.Second, rec.record)
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.ExitCode)
	assert.True(t, strings.HasSuffix(outcome.CombinedOutput, "\nERROR: Video unavailable"))
	assert.Len(t, outcome.CombinedOutput, 1100000+2+len("ERROR: Video unavailable"))

	lines := rec.lines
	require.Len(t, lines, 3)
	assert.Len(t, lines[0], maxLineSize)
	assert.Len(t, lines[1], 1100000-maxLineSize)
	assert.Equal(t, "ERROR: Video unavailable", lines[2])
}

func TestSplitLines_CutsFullBuffer(t *testing.T) {
	split := splitLines(4)

	advance, token, err := split([]byte("abcdef"), false)
	require.NoError(t, err)
	assert.Equal(t, 4, advance)
	assert.Equal(t, "abcd", string(token))

	// shorter data still waits for a terminator
	advance, token, err = split([]byte("ab"), false)
	require.NoError(t, err)
	assert.Equal(t, 0, advance)
	assert.Nil(t, token)

	advance, token, err = split([]byte("ab\ncd"), false)
	require.NoError(t, err)
	assert.Equal(t, 3, advance)
	assert.Equal(t, "ab", string(token))
}

func TestExecRunner_TimeoutKillsProcess(t *testing.T) {
	skipWithoutShell(t)
	runner := NewExecRunner(0, nil)

	start := time.Now()
	outcome, err := runner.Run(context.Background(), shell("sleep 30"), 300*time.Millisecond, nil)
	require.NoError(t, err)

	assert.True(t, outcome.TimedOut)
	assert.False(t, outcome.Canceled)
	assert.Equal(t, -1, outcome.ExitCode)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.False(t, ProcessAlive(outcome.PID), "process must be terminated after Run returns")
}

func TestExecRunner_TimeoutKillsDescendants(t *testing.T) {
	skipWithoutShell(t)
	runner := NewExecRunner(0, nil)
	rec := &lineRecorder{}

	outcome, err := runner.Run(context.Background(),
		shell(`sleep 30 & echo $!; wait`),
		500*time.Millisecond, rec.record)
	require.NoError(t, err)
	require.True(t, outcome.TimedOut)
	require.NotEmpty(t, rec.lines)

	childPID, err := strconv.Atoi(rec.lines[0])
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return !ProcessAlive(childPID)
	}, 5*time.Second, 50*time.Millisecond)
}

func TestExecRunner_CancelBehavesLikeTimeout(t *testing.T) {
	skipWithoutShell(t)
	runner := NewExecRunner(0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	outcome, err := runner.Run(ctx, shell("sleep 30"), time.Minute, nil)
	require.NoError(t, err)

	assert.True(t, outcome.TimedOut)
	assert.True(t, outcome.Canceled)
	assert.Equal(t, -1, outcome.ExitCode)
	assert.False(t, ProcessAlive(outcome.PID))
}

func TestExecRunner_DrainGraceBoundsTrailingOutput(t *testing.T) {
	skipWithoutShell(t)
	runner := NewExecRunner(200*time.Millisecond, nil)
	rec := &lineRecorder{}

	start := time.Now()
	// the background subshell keeps the pipe open after sh exits
	outcome, err := runner.Run(context.Background(),
		shell(`(sleep 5; echo late) & echo early`),
		10*time.Second, rec.record)
	require.NoError(t, err)

	assert.Equal(t, 0, outcome.ExitCode)
	assert.Equal(t, []string{"early"}, rec.lines)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestExecRunner_LaunchErrorMissingBinary(t *testing.T) {
	runner := NewExecRunner(0, nil)

	_, err := runner.Run(context.Background(),
		domain.NewCommandSpec(filepath.Join(t.TempDir(), "missing-yt-dlp")),
		time.Second, nil)
	require.Error(t, err)

	assert.True(t, domain.IsKind(err, domain.KindLaunch))
	assert.Contains(t, err.Error(), domain.LaunchHint)
}

func TestExecRunner_LaunchErrorNotExecutable(t *testing.T) {
	skipWithoutShell(t)
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0644))

	_, err := NewExecRunner(0, nil).Run(context.Background(), domain.NewCommandSpec(path), time.Second, nil)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindLaunch))
}

func TestScanAnyLineEnding(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"lf", "a\nb\n", []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"bare cr", "a\rb\rc", []string{"a", "b", "c"}},
		{"mixed", "a\r\nb\rc\nd", []string{"a", "b", "c", "d"}},
		{"trailing cr", "a\r", []string{"a"}},
		{"empty lines kept", "a\n\nb", []string{"a", "", "b"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := bufio.NewScanner(strings.NewReader(tt.input))
			scanner.Split(scanAnyLineEnding)

			var got []string
			for scanner.Scan() {
				got = append(got, scanner.Text())
			}
			require.NoError(t, scanner.Err())
			assert.Equal(t, tt.expected, got)
		})
	}
}
