package common

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

type palette struct {
	time, group, key, msg, number, duration *color.Color
	debug, info, warn, err                  *color.Color
	passed, failed, errored                 *color.Color
}

func newPalette() *palette {
	p := &palette{
		time:     color.New(color.FgHiBlack),
		group:    color.New(color.FgCyan),
		key:      color.New(color.FgCyan),
		msg:      color.New(color.FgWhite),
		number:   color.New(color.FgMagenta),
		duration: color.New(color.FgYellow),
		debug:    color.New(color.FgHiBlack),
		info:     color.New(color.FgGreen),
		warn:     color.New(color.FgYellow),
		err:      color.New(color.FgRed),
		passed:   color.New(color.FgGreen),
		failed:   color.New(color.FgRed),
		errored:  color.New(color.FgMagenta, color.Bold),
	}
	// The handler decides itself whether to colorize, independent of
	// color.NoColor which only looks at stdout.
	for _, c := range []*color.Color{p.time, p.group, p.key, p.msg, p.number, p.duration,
		p.debug, p.info, p.warn, p.err, p.passed, p.failed, p.errored} {
		c.EnableColor()
	}
	return p
}

// ColorHandler is a slog.Handler printing one colorized line per record.
// Attribute values are passed through the Masker before they are written.
// Values of an "outcome" attribute are colored by call outcome.
type ColorHandler struct {
	opts     *slog.HandlerOptions
	writer   io.Writer
	attrs    []slog.Attr
	groups   []string
	masker   *Masker
	colors   *palette
	useColor bool
}

func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &ColorHandler{
		opts:     opts,
		writer:   w,
		useColor: shouldUseColor(w),
		masker:   GetGlobalMasker(),
		colors:   newPalette(),
	}
}

func shouldUseColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	if !r.Time.IsZero() {
		b.WriteString(h.paint(h.colors.time, r.Time.Format(time.RFC3339)))
		b.WriteByte(' ')
	}
	b.WriteString(h.level(r.Level))
	b.WriteByte(' ')
	if len(h.groups) > 0 {
		b.WriteString(h.paint(h.colors.group, "["+strings.Join(h.groups, ".")+"]"))
		b.WriteByte(' ')
	}
	b.WriteString(h.paint(h.colors.msg, r.Message))

	attrs := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs))
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	for _, a := range h.mask(attrs) {
		b.WriteByte(' ')
		b.WriteString(h.paint(h.colors.key, a.Key))
		b.WriteByte('=')
		b.WriteString(h.value(a.Key, a.Value))
	}
	b.WriteByte('\n')

	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *ColorHandler) level(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return h.paint(h.colors.err, "[ERROR]")
	case l >= slog.LevelWarn:
		return h.paint(h.colors.warn, "[WARN ]")
	case l >= slog.LevelInfo:
		return h.paint(h.colors.info, "[INFO ]")
	default:
		return h.paint(h.colors.debug, "[DEBUG]")
	}
}

func (h *ColorHandler) value(key string, v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		return h.paint(h.stringColor(key, s), strconv.Quote(s))
	case slog.KindInt64, slog.KindUint64, slog.KindFloat64:
		return h.paint(h.colors.number, v.String())
	case slog.KindBool:
		if v.Bool() {
			return h.paint(h.colors.passed, "true")
		}
		return h.paint(h.colors.failed, "false")
	case slog.KindDuration:
		return h.paint(h.colors.duration, v.Duration().String())
	case slog.KindTime:
		return h.paint(h.colors.time, v.Time().Format(time.RFC3339))
	default:
		return h.paint(h.colors.msg, v.String())
	}
}

func (h *ColorHandler) stringColor(key, s string) *color.Color {
	lower := strings.ToLower(s)
	if key == "outcome" {
		switch lower {
		case "passed":
			return h.colors.passed
		case "failed":
			return h.colors.failed
		case "errored":
			return h.colors.errored
		}
	}
	switch {
	case key == "error" || strings.Contains(lower, "fail") || strings.Contains(lower, "panic"):
		return h.colors.failed
	case lower == "ok" || strings.Contains(lower, "success"):
		return h.colors.passed
	}
	return h.colors.msg
}

func (h *ColorHandler) paint(c *color.Color, text string) string {
	if !h.useColor {
		return text
	}
	return c.Sprint(text)
}

func (h *ColorHandler) mask(attrs []slog.Attr) []slog.Attr {
	if h.masker == nil || !h.masker.IsEnabled() {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		switch {
		case a.Value.Kind() == slog.KindString:
			out[i] = slog.String(a.Key, h.masker.MaskValue(a.Key, a.Value.String()))
		case h.masker.IsSensitiveKey(a.Key):
			out[i] = slog.String(a.Key, MaskedValue)
		default:
			out[i] = a
		}
	}
	return out
}

func (h *ColorHandler) clone() *ColorHandler {
	c := *h
	return &c
}

func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	c.attrs = append(append(make([]slog.Attr, 0, len(h.attrs)+len(attrs)), h.attrs...), attrs...)
	return c
}

func (h *ColorHandler) WithGroup(name string) slog.Handler {
	c := h.clone()
	c.groups = append(append(make([]string, 0, len(h.groups)+1), h.groups...), name)
	return c
}

func (h *ColorHandler) SetMasker(masker *Masker) { h.masker = masker }

// SetColorEnabled overrides terminal detection.
func (h *ColorHandler) SetColorEnabled(enabled bool) { h.useColor = enabled }
