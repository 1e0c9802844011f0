package report

import (
	"context"
	"sync"
	"time"

	"github.com/cx-tal-miterani/flightpulse/pkg/logger"
)

// Report captures one unrecoverable step failure with enough context to
// replay the execution.
type Report struct {
	Workflow    string         `json:"workflow"`
	Step        string         `json:"step"`
	ErrorKind   string         `json:"error_kind"`
	Cause       string         `json:"cause"`
	Input       map[string]any `json:"input"`
	ExecutionID string         `json:"execution_id"`
	Time        time.Time      `json:"time"`
}

// Reporter routes failure reports to a durable alerting channel. Report
// must never fail loudly: delivery problems are logged, not returned, so a
// broken alerting path cannot take the engine down with it.
type Reporter interface {
	Report(ctx context.Context, r Report)
}

// LogReporter writes failure reports to the structured log only.
type LogReporter struct {
	log logger.Logger
}

// NewLogReporter creates a Reporter backed by the log.
func NewLogReporter(log logger.Logger) *LogReporter {
	return &LogReporter{log: log}
}

func (r *LogReporter) Report(ctx context.Context, rep Report) {
	r.log.Error("workflow step failed",
		"workflow", rep.Workflow,
		"step", rep.Step,
		"errorKind", rep.ErrorKind,
		"cause", rep.Cause,
		"executionId", rep.ExecutionID,
		"input", rep.Input,
	)
}

// Capture is a Reporter for tests that records every report it receives.
type Capture struct {
	mu      sync.Mutex
	reports []Report
}

// NewCapture creates an empty capturing reporter.
func NewCapture() *Capture {
	return &Capture{}
}

func (c *Capture) Report(ctx context.Context, r Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
}

// Reports returns a copy of everything reported so far.
func (c *Capture) Reports() []Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Report, len(c.reports))
	copy(out, c.reports)
	return out
}
