package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures the progress reporter.
type Options struct {
	// Label names the work being tracked, e.g. "Converting layers".
	Label string

	// TotalTasks is the number of tasks expected. Zero for byte transfers.
	TotalTasks int

	// TotalBytes is the expected transfer size. Zero if unknown.
	TotalBytes int64

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 2s
	UpdateInterval time.Duration
}

// Reporter tracks concurrent tasks or a byte transfer and prints progress.
// The counting methods are safe for concurrent use.
type Reporter struct {
	opts Options

	mu             sync.Mutex
	completedBytes atomic.Int64
	completed      atomic.Int32
	failed         atomic.Int32
	inProgress     atomic.Int32
	startTime      time.Time
	stopCh         chan struct{}
	doneCh         chan struct{}
	started        bool
	stopped        bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 2 * time.Second
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start prints the header and begins periodic updates.
func (r *Reporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.startTime = time.Now()

	switch {
	case r.opts.TotalTasks > 0:
		fmt.Fprintf(r.opts.Output, "%s%s: %d tasks\n", Prefix, r.opts.Label, r.opts.TotalTasks)
	case r.opts.TotalBytes > 0:
		fmt.Fprintf(r.opts.Output, "%s%s: %s\n", Prefix, r.opts.Label, formatBytes(r.opts.TotalBytes))
	default:
		fmt.Fprintf(r.opts.Output, "%s%s\n", Prefix, r.opts.Label)
	}

	go r.updateLoop()
}

// Stop stops periodic updates and prints the final status.
// It is safe to call more than once.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped || !r.started {
		r.stopped = true
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

// TaskStarted marks a task as in progress.
func (r *Reporter) TaskStarted() {
	r.inProgress.Add(1)
}

// TaskCompleted marks a running task as completed.
func (r *Reporter) TaskCompleted() {
	r.completed.Add(1)
	r.inProgress.Add(-1)
}

// TaskFailed marks a running task as failed.
func (r *Reporter) TaskFailed() {
	r.failed.Add(1)
	r.inProgress.Add(-1)
}

// Write counts transferred bytes, so a Reporter can sit in an io.MultiWriter.
func (r *Reporter) Write(p []byte) (int, error) {
	r.completedBytes.Add(int64(len(p)))
	return len(p), nil
}

// Completed returns the number of completed tasks.
func (r *Reporter) Completed() int { return int(r.completed.Load()) }

// Failed returns the number of failed tasks.
func (r *Reporter) Failed() int { return int(r.failed.Load()) }

// Bytes returns the number of bytes counted so far.
func (r *Reporter) Bytes() int64 { return r.completedBytes.Load() }

func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

func (r *Reporter) printProgress() {
	if r.opts.TotalTasks > 0 {
		fmt.Fprintf(r.opts.Output, "%s%s: %d/%d done | %d running | %d failed\n",
			Prefix,
			r.opts.Label,
			r.completed.Load()+r.failed.Load(),
			r.opts.TotalTasks,
			r.inProgress.Load(),
			r.failed.Load(),
		)
		return
	}

	done := r.completedBytes.Load()
	elapsed := time.Since(r.startTime).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(done) / elapsed

	if r.opts.TotalBytes > 0 {
		percent := float64(done) / float64(r.opts.TotalBytes) * 100
		fmt.Fprintf(r.opts.Output, "%s%s: %.1f%% | %s / %s | %s/s\n",
			Prefix, r.opts.Label, percent,
			formatBytes(done), formatBytes(r.opts.TotalBytes), formatBytes(int64(speed)))
		return
	}
	fmt.Fprintf(r.opts.Output, "%s%s: %s | %s/s\n",
		Prefix, r.opts.Label, formatBytes(done), formatBytes(int64(speed)))
}

func (r *Reporter) printFinalStatus() {
	duration := time.Since(r.startTime)

	if r.opts.TotalTasks > 0 {
		fmt.Fprintf(r.opts.Output, "%s%s: %d/%d done | %d failed | %s\n",
			Prefix,
			r.opts.Label,
			r.completed.Load()+r.failed.Load(),
			r.opts.TotalTasks,
			r.failed.Load(),
			formatDuration(duration),
		)
		return
	}

	fmt.Fprintf(r.opts.Output, "%s%s: %s in %s\n",
		Prefix, r.opts.Label, formatBytes(r.completedBytes.Load()), formatDuration(duration))
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes is exported for use by other packages.
func FormatBytes(b int64) string {
	return formatBytes(b)
}
