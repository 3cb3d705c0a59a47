package logger

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// redacted lists attribute keys whose values never reach the output.
var redacted = map[string]bool{
	"password":        true,
	"userpassword":    true,
	"bind_password":   true,
	"sambantpassword": true,
	"sambalmpassword": true,
}

// ColorTextHandler is a slog.Handler writing one human readable line per
// record, optionally colored.
type ColorTextHandler struct {
	opts     slog.HandlerOptions
	w        io.Writer
	mu       *sync.Mutex
	prefix   string // pre-rendered attrs from WithAttrs
	group    string
	useColor bool
}

// NewColorTextHandler creates a new ColorTextHandler
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, useColor bool) *ColorTextHandler {
	h := &ColorTextHandler{w: w, mu: &sync.Mutex{}, useColor: useColor}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

// Enabled reports whether the handler handles records at the given level
func (h *ColorTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle formats and writes a log record
func (h *ColorTextHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.WriteByte('[')
	sb.WriteString(r.Time.Format("2006-01-02 15:04:05"))
	sb.WriteString("] [")
	sb.WriteString(h.level(r.Level))
	sb.WriteString("] ")
	sb.WriteString(r.Message)
	sb.WriteString(h.prefix)

	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&sb, h.group, a)
		return true
	})
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *ColorTextHandler) level(l slog.Level) string {
	name, color := "ERROR", colorRed
	switch {
	case l < slog.LevelInfo:
		name, color = "DEBUG", colorGray
	case l < slog.LevelWarn:
		name, color = "INFO", colorGreen
	case l < slog.LevelError:
		name, color = "WARN", colorYellow
	}
	if !h.useColor {
		return name
	}
	return color + name + colorReset
}

func (h *ColorTextHandler) writeAttr(sb *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if group != "" {
		key = group + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.writeAttr(sb, key, ga)
		}
		return
	}

	sb.WriteByte(' ')
	if h.useColor {
		sb.WriteString(colorCyan + key + colorReset)
	} else {
		sb.WriteString(key)
	}
	sb.WriteByte('=')
	if redacted[strings.ToLower(a.Key)] {
		sb.WriteString("[REDACTED]")
		return
	}
	sb.WriteString(formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if strings.ContainsAny(s, " \t\n\"") {
			return strconv.Quote(s)
		}
		return s
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', 3, 64)
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	default:
		return v.String()
	}
}

// WithAttrs returns a handler that renders attrs on every record
func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var sb strings.Builder
	for _, a := range attrs {
		h.writeAttr(&sb, h.group, a)
	}
	c := *h
	c.prefix = h.prefix + sb.String()
	return &c
}

// WithGroup returns a handler that qualifies subsequent keys with name
func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	if c.group != "" {
		c.group += "." + name
	} else {
		c.group = name
	}
	return &c
}
