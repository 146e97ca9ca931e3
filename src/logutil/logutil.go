package logutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	logFileName  = "cad_lingo_debug.log"
	maxSizeBytes = 10 * 1024 * 1024 // 10 MB
	maxArchives  = 3
)

type Options struct {
	// EnableFileLogging writes to a size-rotated file in Dir.
	EnableFileLogging bool
	// Dir holds the log file; empty means the working directory.
	Dir string
	// Console, when non-nil, receives human-readable output (CLI --verbose).
	Console io.Writer
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
}

// Setup builds the process logger, installs it as the zap global and returns it.
// With neither file logging nor a console writer, logs are discarded.
func Setup(opts Options) *zap.Logger {
	level := parseLevel(opts.Level)
	var cores []zapcore.Core

	if opts.EnableFileLogging {
		w, err := newRotatingWriter(filepath.Join(opts.Dir, logFileName))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		} else {
			enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
			cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(w), level))
		}
	}

	if opts.Console != nil {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(opts.Console), level))
	}

	logger := zap.NewNop()
	if len(cores) > 0 {
		logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	}
	zap.ReplaceGlobals(logger)
	return logger
}

func parseLevel(s string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil || s == "" {
		return zapcore.InfoLevel
	}
	return lvl
}

type rotatingWriter struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func newRotatingWriter(path string) (*rotatingWriter, error) {
	rotateIfNeeded(path, 0)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	return &rotatingWriter{path: path, f: f}, nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if st, err := w.f.Stat(); err == nil && st.Size()+int64(len(p)) > maxSizeBytes {
		_ = w.f.Close()
		rotateIfNeeded(w.path, len(p))
		nf, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return 0, err
		}
		w.f = nf
	}
	return w.f.Write(p)
}

func (w *rotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Sync()
}

// rotateIfNeeded shifts path -> path.1 -> ... -> path.N when appending
// pending bytes would push the base file over the limit. The oldest archive is dropped.
func rotateIfNeeded(path string, pending int) {
	st, err := os.Stat(path)
	if err != nil || st.Size()+int64(pending) <= maxSizeBytes {
		return
	}
	_ = os.Remove(archiveName(path, maxArchives))
	for i := maxArchives - 1; i >= 1; i-- {
		_ = os.Rename(archiveName(path, i), archiveName(path, i+1))
	}
	_ = os.Rename(path, archiveName(path, 1))
}

func archiveName(path string, n int) string { return fmt.Sprintf("%s.%d", path, n) }

// RedactKey masks an API key, leaving first/last 4 chars: xxxx...yyyy
func RedactKey(k string) string {
	if len(k) <= 8 {
		return "********"
	}
	return fmt.Sprintf("%s...%s", k[:4], k[len(k)-4:])
}

// Sanitize shortens text to 100 runes and escapes control characters so OCR
// output cannot forge log lines.
func Sanitize(text string) string {
	const maxLogLength = 100
	runes := []rune(text)
	truncated := false
	if len(runes) > maxLogLength {
		runes = runes[:maxLogLength]
		truncated = true
	}

	var b strings.Builder
	for _, r := range runes {
		switch {
		case r == '\n' || r == '\r':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 32 || r == 127:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	if truncated {
		b.WriteString("...")
	}
	return b.String()
}
