package runner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/newtron-network/bulkcfg/pkg/classify"
	"github.com/newtron-network/bulkcfg/pkg/cli"
	"github.com/newtron-network/bulkcfg/pkg/probe"
	"github.com/newtron-network/bulkcfg/pkg/snapshot"
	"github.com/newtron-network/bulkcfg/pkg/util"
)

// ProgressReporter receives lifecycle callbacks during a run. Device
// callbacks arrive from concurrent workers.
type ProgressReporter interface {
	ValidateStart(total int)
	Validated(address string, err error)
	Probed(results []probe.Result)
	ExecuteStart(mode Mode, total int)
	DeviceStart(address string)
	CommandEnd(address string, result classify.Result)
	Saving(address string)
	DeviceError(address string, err error)
	DeviceEnd(report *DeviceReport)
	Diffed(record *snapshot.Record)
	RunEnd(report *Report)
}

type nopProgress struct{}

func (nopProgress) ValidateStart(int)                  {}
func (nopProgress) Validated(string, error)            {}
func (nopProgress) Probed([]probe.Result)              {}
func (nopProgress) ExecuteStart(Mode, int)             {}
func (nopProgress) DeviceStart(string)                 {}
func (nopProgress) CommandEnd(string, classify.Result) {}
func (nopProgress) Saving(string)                      {}
func (nopProgress) DeviceError(string, error)          {}
func (nopProgress) DeviceEnd(*DeviceReport)            {}
func (nopProgress) Diffed(*snapshot.Record)            {}
func (nopProgress) RunEnd(*Report)                     {}

// consoleProgress is an append-only terminal progress reporter. Lines
// from concurrent workers are serialized and prefixed with the device.
type consoleProgress struct {
	W       io.Writer
	Verbose bool

	mu   sync.Mutex
	mode Mode
}

// NewConsoleProgress creates a consoleProgress writing to stdout.
func NewConsoleProgress(verbose bool) ProgressReporter {
	return NewConsoleProgressTo(os.Stdout, verbose)
}

// NewConsoleProgressTo creates a consoleProgress writing to w.
func NewConsoleProgressTo(w io.Writer, verbose bool) ProgressReporter {
	return &consoleProgress{W: w, Verbose: verbose}
}

func (p *consoleProgress) printf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.W, format, args...)
}

func (p *consoleProgress) ValidateStart(total int) {
	p.printf("\n%s\n", cli.Bold("Validating ip addresses:"))
}

func (p *consoleProgress) Validated(address string, err error) {
	if err == nil {
		p.printf("%s\n", cli.Green(address+" is a valid IP address."))
		return
	}
	reason := ""
	var ia *util.InvalidAddressError
	if errors.As(err, &ia) {
		reason = "  (" + ia.Reason + ")"
	}
	p.printf("%s%s\n", cli.Red(address+" is NOT a valid IP address."), cli.Dim(reason))
}

func (p *consoleProgress) Probed(results []probe.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.W, "\n%s\n", cli.Bold("Testing reachability:"))
	for _, r := range results {
		if r.Reachable {
			fmt.Fprintf(p.W, "%s\n", cli.Green(r.Address+" is reachable."))
		} else {
			fmt.Fprintf(p.W, "%s\n", cli.Red(r.Address+" is not responding."))
		}
	}
}

func (p *consoleProgress) ExecuteStart(mode Mode, total int) {
	p.mu.Lock()
	p.mode = mode
	p.mu.Unlock()
	if mode == ModeBackup {
		p.printf("\n%s\n", cli.Bold(fmt.Sprintf("Backing up %d devices:", total)))
		return
	}
	p.printf("\n%s\n", cli.Bold(fmt.Sprintf("Executing commands on %d devices:", total)))
}

func (p *consoleProgress) DeviceStart(address string) {
	if p.Verbose {
		p.printf("%s: %s\n", address, cli.Dim("connecting"))
	}
}

func (p *consoleProgress) CommandEnd(address string, r classify.Result) {
	p.mu.Lock()
	mode := p.mode
	p.mu.Unlock()

	switch r.Kind {
	case classify.ReadSuccess:
		if mode == ModeBackup {
			p.printf("%s: %s\n", address, cli.Green("Backup complete."))
			return
		}
		p.printf("%s: %s\n", address, cli.Green(r.Command+" - success."))
	case classify.ReadInvalid:
		p.printf("%s: %s\n", address, cli.Red("Invalid command: "+r.Command))
	case classify.WriteSuccess:
		p.printf("%s: %s\n", address, cli.Green("Configuration successful."))
	case classify.WriteInvalid:
		p.printf("%s: %s\n", address, cli.Red("Invalid command: "+r.OffendingLine))
	}
}

func (p *consoleProgress) Saving(address string) {
	p.printf("%s: Saving config.\n", address)
}

func (p *consoleProgress) DeviceError(address string, err error) {
	var ce *util.ConnectError
	if errors.As(err, &ce) {
		p.printf("%s: %s  %s\n", address, cli.Red("Authentication failed or ssh timeout."), cli.Dim(string(ce.Kind)))
		return
	}
	p.printf("%s: %s\n", address, cli.Red(err.Error()))
}

func (p *consoleProgress) DeviceEnd(d *DeviceReport) {
	if d.Skipped {
		p.printf("%s: %s\n", d.Address, cli.Yellow("skipped (unreachable)"))
		return
	}
	if p.Verbose {
		p.printf("%s: %s  (%s)\n", d.Address, colorStatus(d.Status()), formatDuration(d.Duration))
	}
}

func (p *consoleProgress) Diffed(rec *snapshot.Record) {
	p.printf("%s: config changed (+%d -%d) %s\n", rec.Address, rec.Added, rec.Removed, cli.Dim(rec.Path))
}

func (p *consoleProgress) RunEnd(report *Report) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.W)
	t := cli.NewTableTo(p.W, "DEVICE", "REACHABLE", "STATUS", "COMMANDS", "FAILED", "SAVED", "DURATION")
	for _, d := range report.Devices {
		failed := 0
		for _, r := range d.Results {
			if r.Kind.Failed() {
				failed++
			}
		}
		saved := "-"
		if d.Saved {
			saved = "yes"
		} else if d.SnapshotPath != "" {
			saved = "snapshot"
		}
		t.Row(d.Address, yesNo(d.Reachable), string(d.Status()),
			strconv.Itoa(len(d.Results)), strconv.Itoa(failed), saved, formatDuration(d.Duration))
	}
	t.Flush()

	ok, failed, skipped := report.Counts()
	line := fmt.Sprintf("%d ok, %d failed, %d skipped", ok, failed, skipped)
	switch {
	case failed > 0:
		line = cli.Red(line)
	case skipped > 0:
		line = cli.Yellow(line)
	default:
		line = cli.Green(line)
	}
	fmt.Fprintf(p.W, "\n%s  (%s, run %s)\n", line, formatDuration(report.Duration), report.RunID)
}

func colorStatus(s DeviceStatus) string {
	switch s {
	case StatusOK:
		return cli.Green("OK")
	case StatusSkipped:
		return cli.Yellow("SKIP")
	default:
		return cli.Red("FAIL")
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
