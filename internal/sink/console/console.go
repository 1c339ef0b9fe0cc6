// Package console implements the console sink: writing a serialized line
// plus a trailing newline to an io.Writer (standard output by default).
package console

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Sink writes each line followed by "\n" to the configured writer. Safe for
// concurrent use, though the dispatcher is single-threaded and never calls
// Write concurrently with itself.
type Sink struct {
	mu     sync.Mutex
	w      io.Writer
	logger *slog.Logger
}

// New constructs a console Sink. w defaults to os.Stdout when nil.
func New(w io.Writer, logger *slog.Logger) *Sink {
	if w == nil {
		w = os.Stdout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sink{w: w, logger: logger}
}

// Init is a no-op that always succeeds.
func (s *Sink) Init() error { return nil }

// Write emits line followed by a single newline.
func (s *Sink) Write(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := io.WriteString(s.w, line); err != nil {
		return fmt.Errorf("sink/console: write: %w", err)
	}
	if _, err := io.WriteString(s.w, "\n"); err != nil {
		return fmt.Errorf("sink/console: write newline: %w", err)
	}
	s.logger.Debug("sink/console: wrote line", "bytes", len(line))
	return nil
}

// Close is a no-op; the console sink never owns the writer's lifetime.
func (s *Sink) Close() error { return nil }
