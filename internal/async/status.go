// Package async runs index rebuilds in the background and tracks their
// progress for the HTTP API, the MCP tools and the CLI.
package async

import (
	"sync"
	"time"

	"github.com/Aman-CERP/mojify/internal/index"
)

// RebuildStatus represents the overall state of a rebuild.
type RebuildStatus string

const (
	// StatusIdle means no rebuild has run in this process.
	StatusIdle RebuildStatus = "idle"
	// StatusRunning indicates a rebuild is in progress.
	StatusRunning RebuildStatus = "running"
	// StatusReady indicates the last rebuild finished.
	StatusReady RebuildStatus = "ready"
	// StatusError indicates the last rebuild failed.
	StatusError RebuildStatus = "error"
)

// ProgressSnapshot is an immutable snapshot of rebuild progress.
type ProgressSnapshot struct {
	RunID          string     `json:"run_id,omitempty"`
	Status         string     `json:"status"`
	Stage          string     `json:"stage,omitempty"`
	Total          int        `json:"total"`
	Processed      int        `json:"processed"`
	ProgressPct    float64    `json:"progress_pct"`
	Entities       int        `json:"entities"`
	Embedded       int        `json:"embedded"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	ElapsedSeconds int        `json:"elapsed_seconds"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}

// Progress provides thread-safe tracking of one rebuild.
type Progress struct {
	mu sync.RWMutex

	runID        string
	status       RebuildStatus
	stage        index.Stage
	total        int
	processed    int
	entities     int
	embedded     int
	startTime    time.Time
	finishTime   time.Time
	errorMessage string
}

// NewProgress creates a tracker for a run that starts now.
func NewProgress(runID string) *Progress {
	return &Progress{
		runID:     runID,
		status:    StatusRunning,
		stage:     index.StageFetching,
		startTime: time.Now(),
	}
}

// Observe records an indexer progress event. Events from concurrent workers
// may arrive out of order; processed counts never go backwards within a
// stage.
func (p *Progress) Observe(e index.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e.Stage != p.stage {
		p.stage = e.Stage
		p.processed = 0
	}
	p.total = e.Total
	if e.Current > p.processed {
		p.processed = e.Current
	}
}

// SetResult marks the run finished.
func (p *Progress) SetResult(res *index.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusReady
	p.stage = index.StageDone
	p.entities = res.Entities
	p.embedded = res.Embedded
	p.total = res.Entities
	p.processed = res.Entities
	p.finishTime = time.Now()
}

// SetError marks the run as failed with an error message.
func (p *Progress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusError
	p.errorMessage = message
	p.finishTime = time.Now()
}

// IsRunning returns true while the rebuild is in progress.
func (p *Progress) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status == StatusRunning
}

// Snapshot returns an immutable copy of the current progress state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var progressPct float64
	if p.total > 0 {
		progressPct = float64(p.processed) / float64(p.total) * 100.0
	}

	end := time.Now()
	var finished *time.Time
	if !p.finishTime.IsZero() {
		end = p.finishTime
		f := p.finishTime
		finished = &f
	}
	started := p.startTime

	return ProgressSnapshot{
		RunID:          p.runID,
		Status:         string(p.status),
		Stage:          string(p.stage),
		Total:          p.total,
		Processed:      p.processed,
		ProgressPct:    progressPct,
		Entities:       p.entities,
		Embedded:       p.embedded,
		StartedAt:      &started,
		FinishedAt:     finished,
		ElapsedSeconds: int(end.Sub(p.startTime).Seconds()),
		ErrorMessage:   p.errorMessage,
	}
}
