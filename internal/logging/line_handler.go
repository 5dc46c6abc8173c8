package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// lineHandler writes one human-readable line per record:
//
//	2026-01-02T03:04:05Z INFO [docker] migrator: services stopped step=docker_stopped
//
// The resource and component attributes are lifted out of the key/value tail
// into the prefix. Attributes bound with WithAttrs are rendered once, when
// they are bound.
type lineHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool

	group     string
	resource  string
	component string
	bound     string
}

func newLineHandler(w io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return &lineHandler{mu: new(sync.Mutex), w: w, level: level, addSource: addSource}
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *lineHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}
	resource, component := h.resource, h.component
	var tail strings.Builder
	tail.WriteString(h.bound)
	record.Attrs(func(attr slog.Attr) bool {
		h.render(&tail, h.group, attr, &resource, &component)
		return true
	})

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var line strings.Builder
	line.Grow(96 + tail.Len())
	line.WriteString(ts.UTC().Format(time.RFC3339))
	line.WriteString(" " + levelLabel(record.Level) + " ")
	if resource != "" {
		line.WriteString("[" + resource + "] ")
	}
	if component != "" {
		line.WriteString(component + ": ")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	line.WriteString(msg)
	if h.addSource {
		if src := record.Source(); src != nil && src.File != "" {
			fmt.Fprintf(&line, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	line.WriteString(tail.String())
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line.String())
	return err
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	var tail strings.Builder
	tail.WriteString(h.bound)
	for _, attr := range attrs {
		h.render(&tail, h.group, attr, &next.resource, &next.component)
	}
	next.bound = tail.String()
	return &next
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = joinKey(h.group, name)
	return &next
}

// render appends " key=value" for attr, descending into groups. Ungrouped
// resource and component attributes fill the prefix fields instead, first
// value wins.
func (h *lineHandler) render(b *strings.Builder, group string, attr slog.Attr, resource, component *string) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	if attr.Value.Kind() == slog.KindGroup {
		inner := group
		if attr.Key != "" {
			inner = joinKey(group, attr.Key)
		}
		for _, member := range attr.Value.Group() {
			h.render(b, inner, member, resource, component)
		}
		return
	}
	if group == "" {
		switch attr.Key {
		case FieldResource:
			if *resource == "" {
				*resource = plainValue(attr.Value)
			}
			return
		case FieldComponent:
			if *component == "" {
				*component = plainValue(attr.Value)
			}
			return
		}
	}
	if attr.Key == "" {
		return
	}
	b.WriteByte(' ')
	b.WriteString(joinKey(group, attr.Key))
	b.WriteByte('=')
	b.WriteString(quoteIfNeeded(plainValue(attr.Value)))
}

func joinKey(group, key string) string {
	if group == "" {
		return key
	}
	return group + "." + key
}

func plainValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return x.Error()
		case []string:
			return strings.Join(x, ",")
		case fmt.Stringer:
			return x.String()
		default:
			return fmt.Sprint(x)
		}
	default:
		return v.String()
	}
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
