// Package runner orchestrates a bulk run: validate the inventory, probe
// reachability, fan out one worker per device, join, and diff snapshots.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newtron-network/bulkcfg/pkg/audit"
	"github.com/newtron-network/bulkcfg/pkg/classify"
	"github.com/newtron-network/bulkcfg/pkg/device"
	"github.com/newtron-network/bulkcfg/pkg/inventory"
	"github.com/newtron-network/bulkcfg/pkg/probe"
	"github.com/newtron-network/bulkcfg/pkg/sink"
	"github.com/newtron-network/bulkcfg/pkg/snapshot"
	"github.com/newtron-network/bulkcfg/pkg/util"
)

// BackupCommand captures the running configuration.
const BackupCommand = "show running-config"

// DefaultWorkerTimeout bounds one device's worker.
const DefaultWorkerTimeout = 5 * time.Minute

// Job is the input of one run.
type Job struct {
	Mode        Mode
	Addresses   []string
	Credentials inventory.Credentials

	// Commands is required for ModeRun and ignored for ModeBackup.
	Commands *inventory.CommandSet
}

// Runner holds the collaborators of a run. Dialer and Classifier are
// required; the rest are optional and skipped when nil.
type Runner struct {
	Validator  *inventory.Validator
	Prober     probe.Prober
	Dialer     device.Dialer
	Classifier *classify.Classifier
	Sink       *sink.Sink
	Snapshots  *snapshot.Store
	Audit      audit.Logger
	Progress   ProgressReporter

	WorkerTimeout   time.Duration
	SkipUnreachable bool

	// Now supplies the reference date for snapshots and diffs.
	Now func() time.Time

	mu    sync.Mutex
	stage Stage
}

// Stage returns the current stage.
func (r *Runner) Stage() Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stage == "" {
		return StageIdle
	}
	return r.stage
}

func (r *Runner) enter(s Stage) {
	r.mu.Lock()
	r.stage = s
	r.mu.Unlock()
	util.Debugf("runner: entering %s", s)
}

func (r *Runner) progress() ProgressReporter {
	if r.Progress == nil {
		return nopProgress{}
	}
	return r.Progress
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Validate checks every address in order and stops at the first invalid
// one, reporting a status line per address checked.
func (r *Runner) Validate(addresses []string) error {
	v := inventory.Validator{}
	if r.Validator != nil {
		v = *r.Validator
	}
	p := r.progress()
	p.ValidateStart(len(addresses))
	next := v.Report
	v.Report = func(address string, err error) {
		p.Validated(address, err)
		if next != nil {
			next(address, err)
		}
	}
	return v.Validate(addresses)
}

// Probe checks reachability of every address. With no Prober configured
// every address is assumed reachable.
func (r *Runner) Probe(ctx context.Context, addresses []string) []probe.Result {
	if r.Prober == nil {
		results := make([]probe.Result, len(addresses))
		for i, a := range addresses {
			results[i] = probe.Result{Address: a, Reachable: true}
		}
		return results
	}
	results := probe.All(ctx, r.Prober, addresses)
	r.progress().Probed(results)
	return results
}

// Run executes job. The returned error is non-nil only when the run was
// aborted before contacting any device; per-device failures are in the
// report.
func (r *Runner) Run(ctx context.Context, job Job) (*Report, error) {
	if r.Dialer == nil || r.Classifier == nil {
		return nil, errors.New("runner: dialer and classifier are required")
	}
	switch job.Mode {
	case ModeRun:
		if job.Commands == nil {
			return nil, errors.New("runner: run mode needs a command set")
		}
	case ModeBackup:
		if r.Snapshots == nil {
			return nil, errors.New("runner: backup mode needs a snapshot store")
		}
	default:
		return nil, fmt.Errorf("runner: unknown mode %q", job.Mode)
	}

	report := &Report{
		RunID: uuid.NewString(),
		Mode:  job.Mode,
		Start: time.Now(),
	}
	log := util.WithRun(report.RunID)
	defer r.enter(StageDone)

	r.enter(StageValidating)
	if err := r.Validate(job.Addresses); err != nil {
		report.Aborted = true
		report.Duration = time.Since(report.Start)
		log.Errorf("validation failed, no device contacted: %v", err)
		return report, err
	}

	r.enter(StageProbing)
	reach := r.Probe(ctx, job.Addresses)

	r.enter(StageExecuting)
	today := r.now()
	report.Devices = r.execute(ctx, job, reach, today)

	if job.Mode == ModeBackup {
		r.enter(StageDiffing)
		report.DiffErr = r.diff(report, today)
	}

	report.Duration = time.Since(report.Start)
	r.publish(report)
	r.progress().RunEnd(report)

	ok, failed, skipped := report.Counts()
	log.Infof("run complete: %d ok, %d failed, %d skipped in %s", ok, failed, skipped, report.Duration.Round(time.Millisecond))
	return report, nil
}

// execute fans out one worker per device and waits for all of them.
func (r *Runner) execute(ctx context.Context, job Job, reach []probe.Result, today time.Time) []*DeviceReport {
	reports := make([]*DeviceReport, len(job.Addresses))
	r.progress().ExecuteStart(job.Mode, len(job.Addresses))

	var wg sync.WaitGroup
	for i, res := range reach {
		if !res.Reachable && r.SkipUnreachable {
			reports[i] = &DeviceReport{Address: res.Address, Skipped: true}
			r.progress().DeviceEnd(reports[i])
			continue
		}
		wg.Add(1)
		go func(i int, res probe.Result) {
			defer wg.Done()
			rep := r.worker(ctx, job, res.Address, today)
			rep.Reachable = res.Reachable
			reports[i] = rep
			r.progress().DeviceEnd(rep)
		}(i, res)
	}
	wg.Wait()
	return reports
}

// worker bounds one device with the worker timeout. A worker that
// overruns is recorded as a connect timeout and abandoned; its session
// calls observe the cancelled context and unwind on their own.
func (r *Runner) worker(ctx context.Context, job Job, address string, today time.Time) *DeviceReport {
	timeout := r.WorkerTimeout
	if timeout <= 0 {
		timeout = DefaultWorkerTimeout
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan *DeviceReport, 1)
	go func() {
		rep := &DeviceReport{Address: address}
		r.device(wctx, job, rep, today)
		done <- rep
	}()

	var rep *DeviceReport
	select {
	case rep = <-done:
	case <-wctx.Done():
		select {
		case rep = <-done:
		default:
			err := util.NewConnectError(address, util.ConnectTimeout,
				fmt.Errorf("worker exceeded %s: %w", timeout, wctx.Err()))
			rep = &DeviceReport{Address: address}
			r.connectFailed(ctx, rep, "", err)
		}
	}
	if rep.unreported {
		rep.unreported = false
		r.reportFailure(rep.Address, rep.Err)
	}
	rep.Duration = time.Since(start)
	return rep
}

// device runs the job against one device, filling rep.
func (r *Runner) device(ctx context.Context, job Job, rep *DeviceReport, today time.Time) {
	address := rep.Address
	r.progress().DeviceStart(address)

	sess, err := r.Dialer.Open(ctx, job.Credentials, address)
	if err != nil {
		r.connectFailed(ctx, rep, "", err)
		return
	}
	defer func() {
		if err := sess.Disconnect(); err != nil {
			util.WithDevice(address).Debugf("disconnect: %v", err)
		}
	}()

	if job.Mode == ModeBackup {
		r.backup(ctx, sess, rep, today)
		return
	}

	for _, cmd := range job.Commands.Show {
		out, err := sess.RunCommand(ctx, cmd)
		if err != nil {
			r.connectFailed(ctx, rep, cmd, err)
			return
		}
		r.record(ctx, rep, r.Classifier.Classify(out, cmd, !r.Classifier.IsRead(cmd)))
	}

	if len(job.Commands.Config) == 0 {
		return
	}
	block := strings.Join(job.Commands.Config, "\n")
	transcript, err := sess.ApplyConfig(ctx, job.Commands.Config)
	if err != nil {
		r.connectFailed(ctx, rep, block, err)
		return
	}
	res := r.Classifier.Classify(transcript, block, true)
	r.record(ctx, rep, res)
	if res.Kind == classify.WriteInvalid {
		util.WithDevice(address).Infof("config rejected, not saving")
		return
	}

	if ctx.Err() != nil {
		r.connectFailed(ctx, rep, "save", util.NewConnectError(address, util.ConnectTimeout, ctx.Err()))
		return
	}
	r.progress().Saving(address)
	if _, err := sess.SaveConfig(ctx); err != nil {
		r.connectFailed(ctx, rep, "save", err)
		return
	}
	rep.Saved = true
}

func (r *Runner) backup(ctx context.Context, sess device.Session, rep *DeviceReport, today time.Time) {
	out, err := sess.RunCommand(ctx, BackupCommand)
	if err != nil {
		r.connectFailed(ctx, rep, BackupCommand, err)
		return
	}
	res := r.Classifier.Classify(out, BackupCommand, false)
	rep.Results = append(rep.Results, res)
	if res.Kind != classify.ReadSuccess {
		r.progress().CommandEnd(rep.Address, res)
		return
	}

	if ctx.Err() != nil {
		r.connectFailed(ctx, rep, BackupCommand, util.NewConnectError(rep.Address, util.ConnectTimeout, ctx.Err()))
		return
	}
	path, err := r.Snapshots.Save(today, rep.Address, out)
	if err != nil {
		rep.Err = err
		util.WithDevice(rep.Address).Warnf("snapshot not saved: %v", err)
		r.progress().DeviceError(rep.Address, err)
		return
	}
	rep.SnapshotPath = path
	r.progress().CommandEnd(rep.Address, res)
}

// record classifies, persists and reports one command result.
func (r *Runner) record(ctx context.Context, rep *DeviceReport, res classify.Result) {
	rep.Results = append(rep.Results, res)
	if ctx.Err() != nil {
		return
	}
	if r.Sink != nil {
		if err := r.Sink.Record(rep.Address, res); err != nil {
			util.WithCommand(rep.Address, res.Command).Warnf("persisting result: %v", err)
		}
	}
	r.progress().CommandEnd(rep.Address, res)
}

// connectFailed records a session failure and ends the worker. Once ctx
// is done the failure is only recorded: an abandoned worker stays silent,
// and a worker that still returns in time is reported by worker.
func (r *Runner) connectFailed(ctx context.Context, rep *DeviceReport, command string, err error) {
	rep.Err = err
	rep.Results = append(rep.Results, classify.Result{Kind: classify.ConnectFailed, Command: command})
	if ctx.Err() != nil {
		rep.unreported = true
		return
	}
	r.reportFailure(rep.Address, err)
}

func (r *Runner) reportFailure(address string, err error) {
	util.WithDevice(address).Warnf("%v", err)
	r.progress().DeviceError(address, err)
}

// diff compares today's snapshots, captured by this run, against the
// previous day's.
func (r *Runner) diff(report *Report, today time.Time) error {
	var captured []string
	for _, d := range report.Devices {
		if d.SnapshotPath != "" {
			captured = append(captured, d.Address)
		}
	}
	differ := snapshot.Differ{Store: r.Snapshots, Today: today}
	records, err := differ.DiffAll(captured)
	for _, rec := range records {
		if d := report.Device(rec.Address); d != nil {
			d.Diff = rec
		}
		r.progress().Diffed(rec)
	}
	if err != nil {
		util.WithRun(report.RunID).Warnf("diffing: %v", err)
	}
	return err
}

// publish writes one audit event per device.
func (r *Runner) publish(report *Report) {
	if r.Audit == nil {
		return
	}
	op := audit.OperationRun
	if report.Mode == ModeBackup {
		op = audit.OperationBackup
	}
	for _, d := range report.Devices {
		e := audit.NewEvent(report.RunID, d.Address, op)
		if d.Err != nil {
			e.WithError(d.Err)
		} else if err := d.Rejections(); err != nil {
			e.WithError(err)
		}
		e.WithResults(d.Results).WithDuration(d.Duration)
		if d.Skipped {
			e.Success = false
			e.Error = "skipped: unreachable"
		}
		e.Reachable = d.Reachable
		e.Saved = d.Saved
		e.SnapshotPath = d.SnapshotPath
		if d.Diff != nil {
			e.DiffPath = d.Diff.Path
		}
		if err := r.Audit.Log(e); err != nil {
			util.WithDevice(d.Address).Warnf("audit: %v", err)
		}
	}
}
