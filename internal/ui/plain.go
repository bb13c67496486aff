package ui

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/Aman-CERP/mojify/internal/index"
)

// PlainRenderer outputs plain text progress (for CI/pipes). One line per
// event, no escape codes.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	errors []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event index.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Total > 0 {
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d\n", Icon(event.Stage), event.Current, event.Total)
		return
	}
	_, _ = fmt.Fprintf(r.out, "[%s]\n", Icon(event.Stage))
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)
	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d entities indexed, %d embedded in %s\n",
		stats.Entities, stats.Embedded, stats.Duration.Round(100*time.Millisecond))
	for _, line := range countLines(stats.Counts) {
		_, _ = fmt.Fprintf(r.out, "  %s\n", line)
	}
	if stats.Model != "" {
		_, _ = fmt.Fprintf(r.out, "Model: %s\n", stats.Model)
	} else {
		_, _ = fmt.Fprintln(r.out, "Model: none (lexical only)")
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

// countLines renders per-type counts in a stable order.
func countLines(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%-10s %d", k+":", counts[k]))
	}
	return lines
}
