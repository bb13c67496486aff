package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/mojify/internal/index"
)

const barWidth = 30

// StyledRenderer redraws a single colored progress line in place and prints
// a summary panel on completion.
type StyledRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	styles  Styles
	start   time.Time
	stage   index.Stage
	pending bool // a progress line without trailing newline is on screen
}

// NewStyledRenderer creates a styled renderer.
func NewStyledRenderer(cfg Config) *StyledRenderer {
	return &StyledRenderer{
		out:    cfg.Output,
		styles: GetStyles(cfg.NoColor || DetectNoColor()),
	}
}

// Start implements Renderer.
func (r *StyledRenderer) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = time.Now()
	return nil
}

// UpdateProgress implements Renderer.
func (r *StyledRenderer) UpdateProgress(event index.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending && event.Stage != r.stage {
		_, _ = fmt.Fprintln(r.out)
	}
	r.stage = event.Stage

	label := r.styles.Stage.Render(fmt.Sprintf("%-6s", Icon(event.Stage)))
	if event.Total <= 0 {
		_, _ = fmt.Fprintf(r.out, "\r%s", label)
		r.pending = true
		return
	}

	pct := float64(event.Current) / float64(event.Total) * 100
	bar := r.styles.Progress.Render(renderProgressBar(event.Current, event.Total, barWidth))
	_, _ = fmt.Fprintf(r.out, "\r%s %s %3.0f%% %s",
		label, bar, pct, r.styles.Label.Render(fmt.Sprintf("%d/%d", event.Current, event.Total)))
	r.pending = true
}

// AddError implements Renderer.
func (r *StyledRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.breakLine()
	style, prefix := r.styles.Error, "error"
	if event.IsWarn {
		style, prefix = r.styles.Warning, "warning"
	}
	_, _ = fmt.Fprintf(r.out, "%s %v\n", style.Render(prefix+":"), event.Err)
}

// Complete implements Renderer.
func (r *StyledRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.breakLine()

	var b strings.Builder
	b.WriteString(r.styles.Header.Render("Index rebuilt"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %d\n", r.styles.Label.Render("entities:"), stats.Entities)
	for _, line := range countLines(stats.Counts) {
		fmt.Fprintf(&b, "  %s\n", r.styles.Dim.Render(line))
	}
	fmt.Fprintf(&b, "%s %d\n", r.styles.Label.Render("embedded:"), stats.Embedded)
	model := stats.Model
	if model == "" {
		model = r.styles.Warning.Render("none (lexical only)")
	}
	fmt.Fprintf(&b, "%s %s\n", r.styles.Label.Render("model:"), model)
	fmt.Fprintf(&b, "%s %s", r.styles.Label.Render("took:"), stats.Duration.Round(100*time.Millisecond))

	_, _ = fmt.Fprintln(r.out, r.styles.Panel.Render(b.String()))
}

// Stop implements Renderer.
func (r *StyledRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakLine()
	return nil
}

func (r *StyledRenderer) breakLine() {
	if r.pending {
		_, _ = fmt.Fprintln(r.out)
		r.pending = false
	}
}

// renderProgressBar creates a text progress bar.
func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}
	filled := int(float64(current) / float64(total) * float64(width))
	filled = max(0, min(filled, width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
