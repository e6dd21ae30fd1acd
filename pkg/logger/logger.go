package logger

import (
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config represents logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console; empty picks by output
	OutputPath string // stdout, stderr, or file path
}

// New creates a server logger. Log files get JSON lines unless Format
// says otherwise; a terminal gets colored console output.
func New(config Config) (*zap.Logger, error) {
	writer, stream, err := openOutput(config.OutputPath)
	if err != nil {
		return nil, err
	}
	tty := stream != nil && isTerminal(stream)

	format := config.Format
	if format == "" {
		format = "json"
		if tty {
			format = "console"
		}
	}

	var encoder zapcore.Encoder
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(serverEncoderConfig(zap.NewProductionEncoderConfig()))
	} else {
		encoderConfig := serverEncoderConfig(zap.NewDevelopmentEncoderConfig())
		if tty {
			encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, writer, parseLevel(config.Level, zapcore.InfoLevel))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// NewDefault creates a console logger on stdout
func NewDefault() *zap.Logger {
	logger, _ := New(Config{
		Level:      "info",
		Format:     "console",
		OutputPath: "stdout",
	})
	return logger
}

// NewCLI creates a logger for interactive commands. Only warnings and
// errors reach stderr so stdout stays free for command output.
func NewCLI(verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	return newCLI(zapcore.Lock(os.Stderr), isTerminal(os.Stderr), level)
}

// newCLI writes bare "LEVEL message fields" lines: no timestamp, no caller
func newCLI(writer zapcore.WriteSyncer, color bool, level zapcore.Level) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
	if color {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), writer, level)
	return zap.New(core)
}

// NewNop returns a logger that discards everything, for tests
func NewNop() *zap.Logger {
	return zap.NewNop()
}

func serverEncoderConfig(encoderConfig zapcore.EncoderConfig) zapcore.EncoderConfig {
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return encoderConfig
}

func parseLevel(name string, fallback zapcore.Level) zapcore.Level {
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return fallback
	}
	return level
}

// openOutput resolves OutputPath. The returned stream is nil for log files.
func openOutput(path string) (zapcore.WriteSyncer, *os.File, error) {
	switch path {
	case "stdout", "":
		return zapcore.Lock(os.Stdout), os.Stdout, nil
	case "stderr":
		return zapcore.Lock(os.Stderr), os.Stderr, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}
	return zapcore.AddSync(file), nil, nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
