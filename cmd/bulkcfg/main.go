// Bulkcfg - bulk configuration for Cisco IOS-style network devices
//
// Runs the same show and config commands against every device in an
// inventory, concurrently, and records what each device accepted:
//
//	bulkcfg run        validate, probe, send show list, apply config block, save
//	bulkcfg backup     capture running-config snapshots and diff against yesterday
//	bulkcfg validate   check the inventory only
//	bulkcfg probe      check the inventory and ping every device
//	bulkcfg history    query the audit trail of previous runs
//
// Inputs default to devices.txt, creds.txt and cmd.json in the working
// directory; override them with flags or `bulkcfg settings set`.
//
// Examples:
//
//	bulkcfg run
//	bulkcfg run --devices core.txt --commands ntp.yaml --skip-unreachable
//	bulkcfg backup --cfg-dir /var/backups/ios
//	bulkcfg history --failures --last 24h
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/bulkcfg/pkg/cli"
	"github.com/newtron-network/bulkcfg/pkg/settings"
	"github.com/newtron-network/bulkcfg/pkg/util"
	"github.com/newtron-network/bulkcfg/pkg/version"
)

var (
	// Global option flags
	verbose bool
	logJSON bool
	noColor bool

	// Input and output locations; empty means settings, then built-ins.
	devicesFile string
	credsFile   string
	outputDir   string

	// Global state
	userSettings *settings.Settings
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.Red("Error: "+err.Error()))
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error onto the process status. Input and validation
// failures abort a run and are distinguished for scripts.
func exitCode(err error) int {
	switch {
	case errors.Is(err, util.ErrInputMissing):
		return 2
	case errors.Is(err, util.ErrInvalidAddress):
		return 3
	default:
		return 1
	}
}

var rootCmd = &cobra.Command{
	Use:               "bulkcfg",
	Short:             "Bulk configuration for network devices",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Bulkcfg validates a device inventory, checks reachability, and runs
show and config commands on every device concurrently over SSH.

A device that fails never stops the others. Only a missing input file or
an invalid inventory address aborts a run.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Set log level: quiet by default, verbose on -v
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}
		if logJSON {
			util.SetJSONFormat()
		}
		if noColor {
			cli.SetColor(false)
		}

		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output and debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log to stderr as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.PersistentFlags().StringVar(&devicesFile, "devices", "", "Inventory file, one address per line (default devices.txt)")
	rootCmd.PersistentFlags().StringVar(&credsFile, "creds", "", "Credentials file, username,password (default creds.txt)")
	rootCmd.PersistentFlags().StringVar(&outputDir, "out", "", "Directory for read logs and the config error log (default .)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "ops", Title: "Device Operations:"},
		&cobra.Group{ID: "checks", Title: "Inventory Checks:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{runCmd, backupCmd} {
		cmd.GroupID = "ops"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{validateCmd, probeCmd} {
		cmd.GroupID = "checks"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{historyCmd, settingsCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(versionLine())
	},
}

func versionLine() string {
	if version.Version == "dev" {
		return "bulkcfg dev build (no version stamped; build with -ldflags -X " +
			"github.com/newtron-network/bulkcfg/pkg/version.Version=<version>)"
	}
	return "bulkcfg " + version.Info()
}
