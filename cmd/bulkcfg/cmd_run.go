package main

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/bulkcfg/pkg/inventory"
	"github.com/newtron-network/bulkcfg/pkg/runner"
	"github.com/newtron-network/bulkcfg/pkg/sink"
	"github.com/newtron-network/bulkcfg/pkg/util"
)

// ErrorLogName is the shared log of rejected config lines.
const ErrorLogName = "config_error_log.log"

var (
	runFlags     execFlags
	commandsFile string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Send show commands and apply the config block on every device",
	Long: `Validate the inventory, ping every device, then connect to all of
them concurrently. On each device the show list runs in order, then the
config block is applied in one configuration session and saved with
"write memory" unless the device rejected a line.

Show output is appended to <out>/<address>.txt. Rejected config lines
are appended to <out>/config_error_log.log.

The command file is JSON or YAML with two lists:

  {"show": ["show version"], "config": ["ntp server 10.0.0.1"]}

Examples:
  bulkcfg run
  bulkcfg run --commands ntp.yaml --devices branch.txt --out logs
  bulkcfg run --skip-unreachable --worker-timeout 2m`,
	RunE: func(cmd *cobra.Command, args []string) error {
		devicesPath := resolvedDevicesFile(cmd)
		credsPath := resolvedCredsFile(cmd)
		commandsPath := flagOr(cmd, "commands", commandsFile, userSettings.GetCommandsFile())

		if err := requireFiles(credsPath, commandsPath, devicesPath); err != nil {
			return err
		}
		addrs, creds, err := loadInventory(devicesPath, credsPath)
		if err != nil {
			return err
		}
		commands, err := inventory.LoadCommandSet(commandsPath)
		if err != nil {
			return err
		}
		if commands.Empty() {
			util.Warnf("%s has no show or config commands", commandsPath)
		}

		out := resolvedOutputDir(cmd)
		reads, err := sink.NewReadLog(out, time.Now)
		if err != nil {
			return err
		}
		errLog, err := sink.OpenErrorLog(filepath.Join(out, ErrorLogName), time.Now)
		if err != nil {
			return err
		}
		defer errLog.Close()

		r, cleanup, err := newRunner(cmd, &runFlags)
		if err != nil {
			return err
		}
		defer cleanup()
		r.Sink = &sink.Sink{Reads: reads, Errors: errLog}

		ctx, stop := signalContext()
		defer stop()

		_, err = r.Run(ctx, runner.Job{
			Mode:        runner.ModeRun,
			Addresses:   addrs,
			Credentials: creds,
			Commands:    commands,
		})
		return err
	},
}

func init() {
	addExecFlags(runCmd, &runFlags)
	runCmd.Flags().StringVar(&commandsFile, "commands", "", "Command file with show and config lists (default cmd.json)")
}
