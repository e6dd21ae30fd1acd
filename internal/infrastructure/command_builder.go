package infrastructure

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yourusername/ytfetch-go/internal/domain"
)

const (
	// DefaultAudioQuality is the MP3 bitrate passed to the downloader
	DefaultAudioQuality = "192K"

	// TitleTemplate lets the downloader name the file after the video title
	TitleTemplate = "%(title)s"

	maxTitleRunes = 50
)

var titleDisallowed = regexp.MustCompile(`[^a-zA-Z0-9\s_-]`)

// CommandBuilder assembles yt-dlp argument vectors
type CommandBuilder struct {
	audioQuality   string
	transcoderPath string
}

// NewCommandBuilder creates a builder. An empty transcoderPath leaves
// ffmpeg discovery to the downloader.
func NewCommandBuilder(audioQuality, transcoderPath string) *CommandBuilder {
	if audioQuality == "" {
		audioQuality = DefaultAudioQuality
	}
	return &CommandBuilder{
		audioQuality:   audioQuality,
		transcoderPath: transcoderPath,
	}
}

// Build builds the download command for a normalized url.
// An empty title falls back to the downloader's own title template.
func (b *CommandBuilder) Build(tool domain.ToolBinary, normalizedURL string, format domain.Format, outputDir, title string) domain.CommandSpec {
	args := []string{"--newline", "--no-playlist"}

	if b.transcoderPath != "" {
		args = append(args, "--ffmpeg-location", b.transcoderPath)
	}

	switch format {
	case domain.FormatMP3:
		args = append(args,
			"-f", "bestaudio[ext=m4a]/bestaudio",
			"--extract-audio",
			"--audio-format", "mp3",
			"--audio-quality", b.audioQuality,
		)
	default:
		args = append(args, "-f", "best[ext=mp4]/best")
	}

	name := TitleTemplate
	if title != "" {
		name = title
	}
	args = append(args, "-o", filepath.Join(outputDir, name+".%(ext)s"))
	args = append(args, normalizedURL)

	return domain.NewCommandSpec(tool.InstalledPath, args...)
}

// BuildTitleQuery builds the metadata query that prints the video title
func (b *CommandBuilder) BuildTitleQuery(tool domain.ToolBinary, normalizedURL string) domain.CommandSpec {
	return domain.NewCommandSpec(tool.InstalledPath, "--get-title", "--no-playlist", normalizedURL)
}

// SanitizeTitle turns a raw video title into a safe file name stem.
// An empty result means no usable title.
func SanitizeTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if runes := []rune(title); len(runes) > maxTitleRunes {
		title = string(runes[:maxTitleRunes])
	}
	title = titleDisallowed.ReplaceAllString(title, "")
	// collapse newlines and tabs, they are allowed by \s but not wanted in a file name
	title = strings.Join(strings.Fields(title), " ")
	return strings.TrimSpace(title)
}
