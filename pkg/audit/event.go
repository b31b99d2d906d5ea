// Package audit records one event per device per run as JSON lines.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/newtron-network/bulkcfg/pkg/classify"
)

// Operation names the kind of run that produced an event.
type Operation string

const (
	OperationRun    Operation = "run"
	OperationBackup Operation = "backup"
)

// Event is the audit record for one device in one run.
type Event struct {
	ID           string            `json:"id"`
	RunID        string            `json:"run_id"`
	Timestamp    time.Time         `json:"timestamp"`
	Device       string            `json:"device"`
	Operation    Operation         `json:"operation"`
	Reachable    bool              `json:"reachable"`
	Results      []classify.Result `json:"results,omitempty"`
	Saved        bool              `json:"saved"`
	SnapshotPath string            `json:"snapshot_path,omitempty"`
	DiffPath     string            `json:"diff_path,omitempty"`
	Success      bool              `json:"success"`
	Error        string            `json:"error,omitempty"`
	Duration     time.Duration     `json:"duration"`
}

// Filter defines criteria for querying audit events
type Filter struct {
	Device      string
	RunID       string
	Operation   Operation
	StartTime   time.Time
	EndTime     time.Time
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates an event stamped with a fresh ID and the current time.
func NewEvent(runID, device string, op Operation) *Event {
	return &Event{
		ID:        uuid.NewString(),
		RunID:     runID,
		Timestamp: time.Now(),
		Device:    device,
		Operation: op,
	}
}

// WithResults sets the classified command results. The event succeeds
// only when none of them failed.
func (e *Event) WithResults(results []classify.Result) *Event {
	e.Results = results
	e.Success = e.Error == ""
	for _, r := range results {
		if r.Kind.Failed() {
			e.Success = false
		}
	}
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the worker duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// Failures returns the results that did not succeed.
func (e *Event) Failures() []classify.Result {
	var out []classify.Result
	for _, r := range e.Results {
		if r.Kind.Failed() {
			out = append(out, r)
		}
	}
	return out
}
