package ledger

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"relocate/internal/logging"
)

// Step is one idempotent unit of work identified by a stable string.
type Step interface {
	StepID() string
}

// Ledger is the durable record of completed steps. It is append-only for the
// lifetime of the process and has a single writer.
type Ledger struct {
	path    string
	file    *os.File
	done    map[string]struct{}
	entries []string
	logger  *slog.Logger
}

// Open loads the ledger at path, creating it when absent.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	logger = logging.NewComponentLogger(logger, "ledger")
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	l := &Ledger{path: path, done: make(map[string]struct{}), logger: logger}
	valid, torn := l.load(data)

	if torn != "" {
		logger.Warn("discarding incomplete ledger entry",
			logging.String("entry", torn),
			logging.String("path", path),
			logging.Int64("kept_bytes", int64(valid)),
			logging.Alert("torn_write"),
		)
		// A torn tail may be a prefix of a longer identifier, so it is cut
		// rather than terminated.
		if err := os.Truncate(path, int64(valid)); err != nil {
			return nil, fmt.Errorf("repair ledger: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	l.file = file
	if torn != "" {
		if err := file.Sync(); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("sync ledger: %w", err)
		}
	}

	logger.Debug("ledger loaded", logging.String("path", path), logging.Int("entries", len(l.entries)))
	return l, nil
}

// load parses complete lines. It returns the length of the well-formed prefix
// and the trailing partial line, if any.
func (l *Ledger) load(data []byte) (int, string) {
	var torn string
	if len(data) > 0 && data[len(data)-1] != '\n' {
		idx := bytes.LastIndexByte(data, '\n')
		torn = strings.TrimSpace(string(data[idx+1:]))
		data = data[:idx+1]
		if torn == "" {
			torn = "(blank)"
		}
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id == "" {
			continue
		}
		if _, ok := l.done[id]; ok {
			continue
		}
		l.done[id] = struct{}{}
		l.entries = append(l.entries, id)
	}
	return len(data), torn
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Has reports whether step has been recorded as complete.
func (l *Ledger) Has(step Step) bool {
	return l.HasID(step.StepID())
}

// HasID reports whether the raw identifier has been recorded.
func (l *Ledger) HasID(id string) bool {
	_, ok := l.done[id]
	return ok
}

// Record durably appends step. The entry is flushed to stable storage before
// the completion is logged. Recording a known step is a no-op.
func (l *Ledger) Record(step Step) error {
	id := step.StepID()
	if id == "" || strings.ContainsAny(id, "\r\n") {
		return fmt.Errorf("invalid step identifier %q", id)
	}
	if l.HasID(id) {
		return nil
	}
	if l.file == nil {
		return errors.New("ledger is closed")
	}
	if _, err := l.file.WriteString(id + "\n"); err != nil {
		return fmt.Errorf("append %s to ledger: %w", id, err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync ledger after %s: %w", id, err)
	}
	l.done[id] = struct{}{}
	l.entries = append(l.entries, id)
	l.logger.Info("mark_done", logging.String(logging.FieldStep, id))
	return nil
}

// Entries returns the recorded identifiers in the order they were written.
func (l *Ledger) Entries() []string {
	return append([]string(nil), l.entries...)
}

// Close releases the underlying file.
func (l *Ledger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// ReadEntries loads the identifiers at path without opening it for writing.
func ReadEntries(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	l := &Ledger{done: make(map[string]struct{})}
	l.load(data)
	return l.entries, nil
}

// Clear retires the ledger at path by renaming it with a timestamp suffix and
// returns the new location. It is an operator action and must not run while
// a migration holds the ledger.
func Clear(path string, now time.Time) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("stat ledger: %w", err)
	}
	target := fmt.Sprintf("%s.cleared-%s", path, now.UTC().Format("20060102T150405Z"))
	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("retire ledger: %w", err)
	}
	return target, nil
}
