package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// SheetTimeLayout is the timestamp format of log worksheet rows.
const SheetTimeLayout = "2006-01-02 15:04:05"

// SheetHeader is the header row of the log worksheet.
var SheetHeader = []string{"timestamp", "level", "message"}

// RowAppender appends a single row to a remote worksheet.
type RowAppender interface {
	AppendRow(ctx context.Context, row []string) error
}

// SheetHandlerOptions configures a SheetHandler.
type SheetHandlerOptions struct {
	// Level is the minimum level mirrored to the sheet. Records below info
	// are never mirrored.
	Level slog.Leveler
	// Console receives append failures. Defaults to stdout.
	Console io.Writer
	// Timeout bounds a single append. Zero means no extra bound.
	Timeout time.Duration
}

// SheetHandler is a slog.Handler that mirrors records into a worksheet as
// [timestamp, level, message] rows. Append failures are printed to the
// console and never returned to the caller.
type SheetHandler struct {
	sink    RowAppender
	opts    SheetHandlerOptions
	mu      *sync.Mutex
	attrs   []slog.Attr
	groups  []string
	console io.Writer
}

// NewSheetHandler creates a handler appending rows through sink.
func NewSheetHandler(sink RowAppender, opts *SheetHandlerOptions) *SheetHandler {
	h := &SheetHandler{
		sink:    sink,
		mu:      &sync.Mutex{},
		console: os.Stdout,
	}

	if opts != nil {
		h.opts = *opts
		if opts.Console != nil {
			h.console = opts.Console
		}
	}

	return h
}

// Enabled reports whether level is info or above and passes the configured
// minimum.
func (h *SheetHandler) Enabled(_ context.Context, level slog.Level) bool {
	if level < slog.LevelInfo {
		return false
	}

	if h.opts.Level != nil && level < h.opts.Level.Level() {
		return false
	}

	return true
}

// Handle appends one row for r.
func (h *SheetHandler) Handle(ctx context.Context, r slog.Record) error {
	row := []string{
		r.Time.Local().Format(SheetTimeLayout),
		r.Level.String(),
		h.message(r),
	}

	ctx = context.WithoutCancel(ctx)
	if h.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.Timeout)
		defer cancel()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.sink.AppendRow(ctx, row); err != nil {
		fmt.Fprintf(h.console, "Failed to log to Google Sheet: %v\n", err)
	}

	return nil
}

// WithAttrs returns a handler that includes attrs in every message.
func (h *SheetHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}

	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, h.qualify(a))
	}

	return &clone
}

// WithGroup returns a handler that prefixes later attribute keys with name.
func (h *SheetHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)

	return &clone
}

func (h *SheetHandler) qualify(a slog.Attr) slog.Attr {
	if len(h.groups) == 0 {
		return a
	}

	a.Key = strings.Join(h.groups, ".") + "." + a.Key

	return a
}

// message renders the record message followed by key=value attributes.
func (h *SheetHandler) message(r slog.Record) string {
	var b strings.Builder
	b.WriteString(r.Message)

	write := func(a slog.Attr) {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return
		}

		if a.Value.Kind() == slog.KindGroup {
			for _, ga := range a.Value.Group() {
				ga.Key = a.Key + "." + ga.Key
				fmt.Fprintf(&b, " %s=%v", ga.Key, ga.Value)
			}
			return
		}

		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
	}

	for _, a := range h.attrs {
		write(a)
	}

	r.Attrs(func(a slog.Attr) bool {
		write(h.qualify(a))
		return true
	})

	return b.String()
}
