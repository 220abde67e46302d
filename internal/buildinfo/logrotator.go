package buildinfo

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
)

const (
	DefaultMaxLogFiles    = 10
	DefaultMaxLogFileSize = 20 // megabytes
	DefaultLogFilename    = "actorkitd.log"
)

// LogRotatorConfig describes where a RotatingLogWriter should write and how
// aggressively it should roll files over. A zero-valued field falls back to
// the package Default* constant, except MaxLogFiles: 0 there means
// "rotation disabled, single file, unbounded growth".
type LogRotatorConfig struct {
	LogDir         string
	MaxLogFiles    int
	MaxLogFileSize int
	Filename       string
}

func DefaultLogRotatorConfig() *LogRotatorConfig {
	return &LogRotatorConfig{
		MaxLogFiles:    DefaultMaxLogFiles,
		MaxLogFileSize: DefaultMaxLogFileSize,
		Filename:       DefaultLogFilename,
	}
}

func (cfg *LogRotatorConfig) filePath() string {
	name := cfg.Filename
	if name == "" {
		name = DefaultLogFilename
	}
	return filepath.Join(cfg.LogDir, name)
}

// RotatingLogWriter is an io.Writer backed by a jrick/logrotate rotator.
// Writes go through a pipe into a background goroutine running the
// rotator, which gzips each file it rolls off.
type RotatingLogWriter struct {
	feed *io.PipeWriter
	rot  *rotator.Rotator
}

// NewRotatingLogWriter returns an uninitialized writer; InitLogRotator must
// run before the first Write.
func NewRotatingLogWriter() *RotatingLogWriter {
	return &RotatingLogWriter{}
}

// InitLogRotator creates cfg's log directory, builds the underlying
// rotator, and starts the goroutine that drains writes into it. Rotated
// files are gzip-compressed.
func (r *RotatingLogWriter) InitLogRotator(cfg *LogRotatorConfig) error {
	logFile := cfg.filePath()

	if err := os.MkdirAll(filepath.Dir(logFile), 0o700); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	maxSize := cfg.MaxLogFileSize
	if maxSize == 0 {
		maxSize = DefaultMaxLogFileSize
	}

	rot, err := rotator.New(
		logFile,
		int64(maxSize)*1024, // rotator wants KB, config is MB
		false,
		cfg.MaxLogFiles,
	)
	if err != nil {
		return fmt.Errorf("creating file rotator: %w", err)
	}
	rot.SetCompressor(gzip.NewWriter(nil), ".gz")

	pr, pw := io.Pipe()
	go runRotator(rot, pr)

	r.rot = rot
	r.feed = pw

	return nil
}

// runRotator drives the rotator off pr until it's closed. The rotator is
// the log sink itself, so a failure here can only go to stderr.
func runRotator(rot *rotator.Rotator, pr *io.PipeReader) {
	if err := rot.Run(pr); err != nil {
		fmt.Fprintf(os.Stderr, "log rotator exited: %v\n", err)
	}
}

// Write discards silently if InitLogRotator hasn't run yet, so a logger
// built before rotation is configured doesn't have to special-case it.
func (r *RotatingLogWriter) Write(b []byte) (int, error) {
	if r.feed == nil {
		return len(b), nil
	}
	return r.feed.Write(b)
}

// Close ends the feed pipe, which lets the rotator goroutine flush and
// return.
func (r *RotatingLogWriter) Close() error {
	if r.feed == nil {
		return nil
	}
	return r.feed.Close()
}
