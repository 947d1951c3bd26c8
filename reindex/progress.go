package reindex

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker reports how far a reindex has come.
type ProgressTracker struct {
	writer         io.Writer
	total          int
	indexed        int
	skipped        int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewProgressTracker creates a new progress tracker.
// writer: where to write progress output (typically os.Stderr)
// total: total number of records to visit
// reportInterval: report progress every N records
func NewProgressTracker(writer io.Writer, total, reportInterval int) *ProgressTracker {
	return &ProgressTracker{
		writer:         writer,
		total:          total,
		reportInterval: max(reportInterval, 1),
	}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.indexed = 0
	p.skipped = 0
	p.lastReported = 0
}

// Add records the outcome of one batch.
func (p *ProgressTracker) Add(result BatchResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.indexed += result.Indexed
	p.skipped += result.Skipped

	if p.visited()-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.visited()
	}
}

// Finish prints the final line of progress.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.report()
	fmt.Fprintln(p.writer)
}

// Totals returns the indexed and skipped counts so far.
func (p *ProgressTracker) Totals() (indexed, skipped int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.indexed, p.skipped
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}

	return time.Since(p.startTime)
}

func (p *ProgressTracker) visited() int {
	return p.indexed + p.skipped
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	visited := min(p.visited(), p.total)
	rate := float64(visited) / time.Since(p.startTime).Seconds()

	percentage := 0.0
	if p.total > 0 {
		percentage = float64(visited) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\rProgress: %d/%d (%.1f%%) indexed=%d skipped=%d - %.1f records/s",
		visited, p.total, percentage, p.indexed, p.skipped, rate)
}
