package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for managed process log files.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Known log stream names. Each managed role owns its stream; "error" collects
// stderr from both roles.
const (
	StreamBot   = "bot"
	StreamWeb   = "web"
	StreamError = "error"
)

// Setup installs the colored text handler as the default slog logger and
// returns it. The orchestrator's own output goes to stderr so that attached
// child process output on stdout stays readable.
func Setup(level slog.Level) *slog.Logger {
	h := NewColorTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	l := slog.New(h)
	slog.SetDefault(l)
	return l
}

// Streams hands out rotating writers for managed process logs under Dir.
type Streams struct {
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Path returns the on-disk path for a stream name.
func (s Streams) Path(stream string) string {
	return filepath.Join(s.Dir, stream+".log")
}

// Valid reports whether stream names a known log stream.
func Valid(stream string) bool {
	switch stream {
	case StreamBot, StreamWeb, StreamError:
		return true
	}
	return false
}

// Writer returns a rotating writer for the given stream, creating Dir when
// absent. The child process is the sole writer of its stream; the
// orchestrator only hands the descriptor over at launch.
func (s Streams) Writer(stream string) (io.WriteCloser, error) {
	if err := os.MkdirAll(s.Dir, 0o750); err != nil {
		return nil, err
	}
	return &lj.Logger{
		Filename:   s.Path(stream),
		MaxSize:    valOr(s.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(s.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(s.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   s.Compress,
	}, nil
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
