// Package errorlog writes one file per failure with the full error chain so
// operators can inspect callbacks that were acknowledged as unsuccessful.
package errorlog

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"presale/pkg/requestcontext"
)

const timeLayout = "2006.01.02_150405"

// Entry describes one failure.
type Entry struct {
	Time      time.Time
	Operation string
	Err       error
	// Fields carries extra context such as the transaction identifier.
	Fields map[string]string
}

// Sink persists failure entries.
type Sink interface {
	Write(ctx context.Context, entry Entry) error
}

// FileSink appends entries to <dir>/<YYYY.MM.DD_HHMMSS>_errorLog. Entries in
// the same second share a file.
type FileSink struct {
	dir string
	mu  sync.Mutex
}

// NewFileSink creates dir if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create error log dir: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Path returns the file an entry logged at t is written to.
func (s *FileSink) Path(t time.Time) string {
	return filepath.Join(s.dir, t.Format(timeLayout)+"_errorLog")
}

func (s *FileSink) Write(ctx context.Context, entry Entry) error {
	if entry.Time.IsZero() {
		entry.Time = requestcontext.Now(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.Path(entry.Time), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open error log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(format(ctx, entry)); err != nil {
		return fmt.Errorf("write error log: %w", err)
	}
	return nil
}

func format(ctx context.Context, entry Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "time: %s\n", entry.Time.UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(&b, "operation: %s\n", entry.Operation)
	if id := requestcontext.RequestID(ctx); id != "" {
		fmt.Fprintf(&b, "request_id: %s\n", id)
	}
	for _, k := range slices.Sorted(maps.Keys(entry.Fields)) {
		fmt.Fprintf(&b, "%s: %s\n", k, entry.Fields[k])
	}
	b.WriteString("error chain:\n")
	for depth, err := 0, entry.Err; err != nil; depth, err = depth+1, errors.Unwrap(err) {
		fmt.Fprintf(&b, "  %d: %s (%T)\n", depth, err.Error(), err)
	}
	b.WriteString("\n")
	return b.String()
}

// Discard drops entries.
type Discard struct{}

func (Discard) Write(context.Context, Entry) error { return nil }
