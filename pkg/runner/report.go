package runner

import (
	"errors"
	"time"

	"github.com/newtron-network/bulkcfg/pkg/classify"
	"github.com/newtron-network/bulkcfg/pkg/snapshot"
)

// Mode selects what a run does on each device.
type Mode string

const (
	// ModeRun sends the show list, then applies the config block.
	ModeRun Mode = "run"
	// ModeBackup captures the running config and diffs it against the
	// previous day.
	ModeBackup Mode = "backup"
)

// Stage is the orchestrator's position in a run.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageValidating Stage = "validating"
	StageProbing    Stage = "probing"
	StageExecuting  Stage = "executing"
	StageDiffing    Stage = "diffing"
	StageDone       Stage = "done"
)

// DeviceStatus summarises one device's outcome.
type DeviceStatus string

const (
	StatusOK      DeviceStatus = "ok"
	StatusFailed  DeviceStatus = "failed"
	StatusSkipped DeviceStatus = "skipped"
)

// DeviceReport aggregates every result for one device.
type DeviceReport struct {
	Address   string
	Reachable bool
	Skipped   bool
	Results   []classify.Result

	// Saved is true when the config block was applied and persisted.
	Saved bool

	SnapshotPath string
	Diff         *snapshot.Record

	// Err is the connect or transport error that ended the worker, if any.
	Err      error
	Duration time.Duration

	// unreported marks a failure recorded after the worker context ended.
	unreported bool
}

// Status derives the summary status from the results.
func (d *DeviceReport) Status() DeviceStatus {
	if d.Skipped {
		return StatusSkipped
	}
	if d.Err != nil {
		return StatusFailed
	}
	for _, r := range d.Results {
		if r.Kind.Failed() {
			return StatusFailed
		}
	}
	return StatusOK
}

// Rejections joins the errors of every command the device refused.
func (d *DeviceReport) Rejections() error {
	var errs []error
	for _, r := range d.Results {
		if err := r.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Report is the outcome of one run.
type Report struct {
	RunID    string
	Mode     Mode
	Start    time.Time
	Duration time.Duration

	// Aborted is set when the run stopped before any device was contacted.
	Aborted bool

	// Devices is in inventory order.
	Devices []*DeviceReport

	// DiffErr joins per-device diff failures.
	DiffErr error
}

// Counts tallies device statuses.
func (r *Report) Counts() (ok, failed, skipped int) {
	for _, d := range r.Devices {
		switch d.Status() {
		case StatusOK:
			ok++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return ok, failed, skipped
}

// Device returns the report for address, or nil.
func (r *Report) Device(address string) *DeviceReport {
	for _, d := range r.Devices {
		if d.Address == address {
			return d
		}
	}
	return nil
}
