package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/bulkcfg/pkg/audit"
	"github.com/newtron-network/bulkcfg/pkg/classify"
	"github.com/newtron-network/bulkcfg/pkg/cli"
	"github.com/newtron-network/bulkcfg/pkg/device"
	"github.com/newtron-network/bulkcfg/pkg/inventory"
	"github.com/newtron-network/bulkcfg/pkg/probe"
	"github.com/newtron-network/bulkcfg/pkg/runner"
	"github.com/newtron-network/bulkcfg/pkg/snapshot"
	"github.com/newtron-network/bulkcfg/pkg/store"
	"github.com/newtron-network/bulkcfg/pkg/util"
)

// execFlags are shared by run and backup.
type execFlags struct {
	workerTimeout   time.Duration
	skipUnreachable bool
	noProbe         bool
	linkLocal       string
	exclude         []string
	knownHosts      string
	port            int
	connectTimeout  time.Duration
	commandTimeout  time.Duration
	redisAddr       string
	redisDB         int
	auditLog        string
}

func addExecFlags(cmd *cobra.Command, f *execFlags) {
	addInventoryFlags(cmd, f)
	cmd.Flags().DurationVar(&f.workerTimeout, "worker-timeout", 0, "Upper bound for one device's work (default 5m)")
	cmd.Flags().BoolVar(&f.skipUnreachable, "skip-unreachable", false, "Do not contact devices that fail the ping probe")
	cmd.Flags().BoolVar(&f.noProbe, "no-probe", false, "Skip the reachability probe")
	cmd.Flags().StringVar(&f.knownHosts, "known-hosts", "", "Verify SSH host keys against this known_hosts file")
	cmd.Flags().IntVar(&f.port, "port", 22, "SSH port")
	cmd.Flags().DurationVar(&f.connectTimeout, "connect-timeout", 30*time.Second, "SSH connect and login timeout")
	cmd.Flags().DurationVar(&f.commandTimeout, "command-timeout", 60*time.Second, "Time to wait for the prompt after each command")
	cmd.Flags().StringVar(&f.redisAddr, "redis", "", "Publish results to the Redis at host:port")
	cmd.Flags().IntVar(&f.redisDB, "redis-db", 0, "Redis database number")
	cmd.Flags().StringVar(&f.auditLog, "audit-log", "", "Audit trail file (default ~/.bulkcfg/audit.log)")
}

func addInventoryFlags(cmd *cobra.Command, f *execFlags) {
	cmd.Flags().StringVar(&f.linkLocal, "link-local", string(inventory.LinkLocalPair),
		"Link-local rule: pair rejects 169.254.x.x, component rejects first octet 169 or second octet 254")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "Reject addresses inside these prefixes (CIDR or address, repeatable)")
}

// flagOr returns the flag value when the operator set it, else fallback.
func flagOr(cmd *cobra.Command, name, value, fallback string) string {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		return value
	}
	return fallback
}

func resolvedDevicesFile(cmd *cobra.Command) string {
	return flagOr(cmd, "devices", devicesFile, userSettings.GetDevicesFile())
}

func resolvedCredsFile(cmd *cobra.Command) string {
	return flagOr(cmd, "creds", credsFile, userSettings.GetCredsFile())
}

func resolvedOutputDir(cmd *cobra.Command) string {
	return flagOr(cmd, "out", outputDir, userSettings.GetOutputDir())
}

// requireFiles prints a status line per input file and fails on the
// first missing one.
func requireFiles(paths ...string) error {
	fmt.Printf("\n%s\n", cli.Bold("Checking for required files:"))
	return inventory.RequireFiles(paths, func(path string, found bool) {
		if found {
			fmt.Println(cli.Green(path + " file found."))
		} else {
			fmt.Println(cli.Red(path + " file not found."))
		}
	})
}

func newValidator(f *execFlags) (*inventory.Validator, error) {
	rule, err := inventory.ParseLinkLocalRule(f.linkLocal)
	if err != nil {
		return nil, err
	}
	exclude, err := inventory.ParseExclusions(f.exclude)
	if err != nil {
		return nil, err
	}
	return &inventory.Validator{LinkLocal: rule, Exclude: exclude}, nil
}

// newRunner wires the collaborators shared by run and backup. The
// returned cleanup closes the audit backends.
func newRunner(cmd *cobra.Command, f *execFlags) (*runner.Runner, func(), error) {
	validator, err := newValidator(f)
	if err != nil {
		return nil, nil, err
	}

	dialer := device.NewSSHDialer()
	dialer.Port = f.port
	dialer.ConnectTimeout = f.connectTimeout
	dialer.CommandTimeout = f.commandTimeout
	dialer.KnownHostsFile = flagOr(cmd, "known-hosts", f.knownHosts, userSettings.KnownHosts)

	workerTimeout := userSettings.GetWorkerTimeout()
	if cmd.Flags().Changed("worker-timeout") {
		if f.workerTimeout <= 0 {
			return nil, nil, fmt.Errorf("--worker-timeout must be positive")
		}
		workerTimeout = f.workerTimeout
	}

	r := &runner.Runner{
		Validator:       validator,
		Dialer:          dialer,
		Classifier:      classify.New(),
		Progress:        runner.NewConsoleProgress(verbose),
		WorkerTimeout:   workerTimeout,
		SkipUnreachable: f.skipUnreachable,
	}
	if !f.noProbe {
		r.Prober = probe.NewPing()
	}

	var loggers audit.MultiLogger
	auditPath := flagOr(cmd, "audit-log", f.auditLog, userSettings.GetAuditLog())
	fileLogger, err := audit.NewFileLogger(auditPath, audit.RotationConfig{
		MaxSize:    10 * 1024 * 1024, // 10MB
		MaxBackups: 10,
	})
	if err != nil {
		util.Warnf("Could not initialize audit logging: %v", err)
	} else {
		loggers = append(loggers, fileLogger)
	}

	if addr := flagOr(cmd, "redis", f.redisAddr, userSettings.RedisAddr); addr != "" {
		rs := store.NewRedisStore(addr, f.redisDB)
		rs.RunTTL = 30 * 24 * time.Hour
		if err := rs.Connect(); err != nil {
			util.Warnf("Redis publication disabled: %v", err)
			rs.Close()
		} else {
			loggers = append(loggers, rs)
		}
	}
	if len(loggers) > 0 {
		r.Audit = loggers
	}

	cleanup := func() {
		if err := loggers.Close(); err != nil {
			util.Warnf("closing audit backends: %v", err)
		}
	}
	return r, cleanup, nil
}

// loadInventory reads the address list and credentials.
func loadInventory(devicesPath, credsPath string) ([]string, inventory.Credentials, error) {
	addrs, err := inventory.LoadAddresses(devicesPath)
	if err != nil {
		return nil, inventory.Credentials{}, err
	}
	var creds inventory.Credentials
	if credsPath != "" {
		creds, err = inventory.LoadCredentials(credsPath)
		if err != nil {
			return nil, inventory.Credentials{}, err
		}
	}
	return addrs, creds, nil
}

// signalContext is cancelled on SIGINT or SIGTERM so in-flight sessions
// unwind and the run still reports.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// parseDate parses a YYYY-MM-DD reference date in local time.
func parseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(snapshot.DateFormat, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return d, nil
}
