package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const maxLineBytes = 1024 * 1024

// Filter selects log lines. The zero value matches every line.
type Filter struct {
	// Resource keeps lines tagged with this resource in either the console
	// or the JSON format.
	Resource string
}

// Match reports whether line passes the filter.
func (f Filter) Match(line string) bool {
	if f.Resource == "" {
		return true
	}
	return strings.Contains(line, "["+f.Resource+"]") ||
		strings.Contains(line, `"resource":"`+f.Resource+`"`)
}

// Chunk is a batch of lines and the file offset just after the last
// complete line that was read.
type Chunk struct {
	Lines  []string
	Offset int64
}

// Last returns up to limit matching lines from the end of path. A missing
// file yields an empty chunk.
func Last(path string, limit int, filter Filter) (Chunk, error) {
	chunk, err := Since(path, 0, filter)
	if err != nil {
		return Chunk{}, err
	}
	if limit <= 0 {
		chunk.Lines = nil
		return chunk, nil
	}
	if len(chunk.Lines) > limit {
		chunk.Lines = chunk.Lines[len(chunk.Lines)-limit:]
	}
	return chunk, nil
}

// Since returns the complete matching lines written after offset. An offset
// past the end of the file, as left by truncation, restarts from the top.
func Since(path string, offset int64, filter Filter) (Chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Chunk{}, nil
		}
		return Chunk{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Chunk{}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return Chunk{}, fmt.Errorf("log path %q is a directory", path)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Chunk{}, fmt.Errorf("seek log file: %w", err)
	}

	chunk := Chunk{Offset: offset}
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				// A trailing partial line is left for the next read.
				return chunk, nil
			}
			return Chunk{}, fmt.Errorf("read log file: %w", err)
		}
		chunk.Offset += int64(len(line))
		text := strings.TrimRight(line, "\r\n")
		if len(text) > maxLineBytes {
			text = text[:maxLineBytes]
		}
		if filter.Match(text) {
			chunk.Lines = append(chunk.Lines, text)
		}
	}
}

// Follow polls path every interval and passes each new matching line to emit
// until ctx is done. Cancellation is the normal way to stop and returns nil.
func Follow(ctx context.Context, path string, offset int64, filter Filter, interval time.Duration, emit func(string)) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		chunk, err := Since(path, offset, filter)
		if err != nil {
			return err
		}
		for _, line := range chunk.Lines {
			emit(line)
		}
		offset = chunk.Offset

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
