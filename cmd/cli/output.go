package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/yourusername/ytfetch-go/internal/domain"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))             // green
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))             // red
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))            // yellow
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))            // blue
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))            // cyan
	streamStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))           // grey
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")) // purple
)

// styleFor picks the color a status line is printed in
func styleFor(state domain.State) lipgloss.Style {
	switch state {
	case domain.StateSucceeded:
		return successStyle
	case domain.StateFailed, domain.StateRejected, domain.StateProvisionError:
		return errorStyle
	case domain.StateTimedOut:
		return warningStyle
	case domain.StateRunning:
		return streamStyle
	case domain.StateValidating, domain.StateProvisioning, domain.StateBuildingCommand:
		return pendingStyle
	default:
		return infoStyle
	}
}

// formatEvent renders one status event for the terminal
func formatEvent(ev domain.StatusEvent) string {
	return styleFor(ev.State).Render(ev.Message)
}

func printEvent(ev domain.StatusEvent) {
	fmt.Println(formatEvent(ev))
}

func printSuccess(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...interface{}) {
	fmt.Println(infoStyle.Render(fmt.Sprintf(format, args...)))
}

func printHeader(text string) {
	fmt.Println(headerStyle.Render(text))
}

// downloadsTable renders history records as a table
func downloadsTable(downloads []*domain.Download) string {
	t := table.New().Headers("ID", "URL", "FORMAT", "STATUS", "CREATED")
	t = t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return lipgloss.NewStyle().Bold(true).Align(lipgloss.Center).Padding(0, 1)
		}
		return lipgloss.NewStyle().Padding(0, 1)
	})

	for _, d := range downloads {
		t.Row(
			d.ID,
			truncate(d.URL, 48),
			d.Format.Label(),
			string(d.Status),
			d.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	return t.String()
}

// downloadDetails renders one record as labeled lines
func downloadDetails(d *domain.Download) []string {
	lines := []string{
		fmt.Sprintf("ID:       %s", d.ID),
		fmt.Sprintf("URL:      %s", d.URL),
		fmt.Sprintf("Format:   %s", d.Format.Label()),
		fmt.Sprintf("Status:   %s", d.Status),
		fmt.Sprintf("Created:  %s", d.CreatedAt.Local().Format("2006-01-02 15:04:05")),
	}
	if d.OutputDir != "" {
		lines = append(lines, fmt.Sprintf("Saved to: %s", d.OutputDir))
	}
	if d.ExitCode != nil {
		lines = append(lines, fmt.Sprintf("Exit:     %d", *d.ExitCode))
	}
	if d.ErrorMessage != "" {
		lines = append(lines, fmt.Sprintf("Error:    %s (%s)", d.ErrorMessage, d.ErrorKind))
	}
	return lines
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
