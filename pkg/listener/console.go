package listener

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/fatih/color"
	"github.com/loykin/apiverify/pkg/call"
)

// Latency histogram bounds, in microseconds.
const (
	histMin      = 1
	histMax      = int64(10 * time.Minute / time.Microsecond)
	histSigFigs  = 3
	errorPreview = 200
)

// ColorScheme holds the colors used by Console.
type ColorScheme struct {
	Method  *color.Color
	URL     *color.Color
	Passed  *color.Color
	Failed  *color.Color
	Errored *color.Color
	Dim     *color.Color
}

func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Method:  color.New(color.FgBlue, color.Bold),
		URL:     color.New(color.FgCyan),
		Passed:  color.New(color.FgGreen, color.Bold),
		Failed:  color.New(color.FgRed, color.Bold),
		Errored: color.New(color.FgMagenta, color.Bold),
		Dim:     color.New(color.Faint),
	}
}

// NoColorScheme returns a scheme with all colors disabled.
func NoColorScheme() *ColorScheme {
	s := DefaultColorScheme()
	for _, c := range []*color.Color{s.Method, s.URL, s.Passed, s.Failed, s.Errored, s.Dim} {
		c.DisableColor()
	}
	return s
}

// Stats summarizes the calls a Console has seen.
type Stats struct {
	Total, Passed, Failed, Errored int
	Min, Mean, P50, P90, P99, Max  time.Duration
}

// Console prints one line per finished call and keeps a latency histogram.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	scheme *ColorScheme
	hist   *hdrhistogram.Histogram
	stats  Stats
}

// NewConsole writes to w (stdout when nil). noColor disables colors.
func NewConsole(w io.Writer, noColor bool) *Console {
	if w == nil {
		w = os.Stdout
	}
	scheme := DefaultColorScheme()
	if noColor {
		scheme = NoColorScheme()
	}
	return &Console{w: w, scheme: scheme, hist: hdrhistogram.New(histMin, histMax, histSigFigs)}
}

func (c *Console) CallStarted(call.StartedEvent) {}
func (c *Console) CallFailed(call.FailedEvent)   {}
func (c *Console) CallErrored(call.ErroredEvent) {}

func (c *Console) CallFinished(e call.FinishedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	us := e.Duration.Microseconds()
	if us < histMin {
		us = histMin
	}
	_ = c.hist.RecordValue(us)
	c.stats.Total++

	var mark string
	switch e.Outcome {
	case call.OutcomePassed:
		c.stats.Passed++
		mark = c.scheme.Passed.Sprint("✓")
	case call.OutcomeFailed:
		c.stats.Failed++
		mark = c.scheme.Failed.Sprint("✗")
	default:
		c.stats.Errored++
		mark = c.scheme.Errored.Sprint("!")
	}
	line := fmt.Sprintf("%s %s %s", mark, c.scheme.Method.Sprint(e.Method), c.scheme.URL.Sprint(e.URL))
	if status := statusOf(e.Response); status > 0 {
		line += fmt.Sprintf(" %d", status)
	}
	line += c.scheme.Dim.Sprintf(" (%s)", e.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintln(c.w, line)
	if e.Err != nil {
		_, _ = fmt.Fprintf(c.w, "    %s\n", preview(e.Err.Error()))
	}
}

// preview cuts s to errorPreview runes.
func preview(s string) string {
	if utf8.RuneCountInString(s) <= errorPreview {
		return s
	}
	return string([]rune(s)[:errorPreview]) + "..."
}

// Stats returns the counts and latency percentiles so far.
func (c *Console) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	if s.Total == 0 {
		return s
	}
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	s.Min = us(c.hist.Min())
	s.Max = us(c.hist.Max())
	s.Mean = us(int64(c.hist.Mean()))
	s.P50 = us(c.hist.ValueAtQuantile(50))
	s.P90 = us(c.hist.ValueAtQuantile(90))
	s.P99 = us(c.hist.ValueAtQuantile(99))
	return s
}

// PrintSummary writes the totals and latency percentiles.
func (c *Console) PrintSummary() {
	s := c.Stats()
	summary := fmt.Sprintf("%d calls: %s, %s, %s",
		s.Total,
		c.scheme.Passed.Sprintf("%d passed", s.Passed),
		c.scheme.Failed.Sprintf("%d failed", s.Failed),
		c.scheme.Errored.Sprintf("%d errored", s.Errored))
	_, _ = fmt.Fprintln(c.w, summary)
	if s.Total > 0 {
		_, _ = fmt.Fprintf(c.w, "latency: min=%s p50=%s p90=%s p99=%s max=%s\n",
			s.Min.Round(time.Microsecond), s.P50.Round(time.Microsecond), s.P90.Round(time.Microsecond),
			s.P99.Round(time.Microsecond), s.Max.Round(time.Microsecond))
	}
}
