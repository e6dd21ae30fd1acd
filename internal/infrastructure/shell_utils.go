package infrastructure

import (
	"strings"

	"github.com/yourusername/ytfetch-go/internal/domain"
)

// ShellEscape quotes s for display in a copy-pasteable command line.
// exec.Command never goes through a shell, so this is only for logs.
func ShellEscape(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsFunc(s, isShellSpecialChar) {
		return s
	}

	// Single quotes protect everything except a single quote, which is
	// written as '"'"' (close, quoted quote, reopen).
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// ShellEscapeCommand renders binary and args as one escaped line
func ShellEscapeCommand(binary string, args ...string) string {
	var b strings.Builder
	b.WriteString(ShellEscape(binary))
	for _, arg := range args {
		b.WriteByte(' ')
		b.WriteString(ShellEscape(arg))
	}
	return b.String()
}

// CommandLine renders a command spec for logs and status lines
func CommandLine(spec domain.CommandSpec) string {
	return ShellEscapeCommand(spec.Binary, spec.Args...)
}

func isShellSpecialChar(c rune) bool {
	switch c {
	case ' ', '\t', '\'', '"', '$', '`', '\\', '!', '*', '?', '[', ']',
		'(', ')', '{', '}', '|', ';', '<', '>', '&', '~', '#', '%', '\n', '\r':
		return true
	default:
		return false
	}
}
