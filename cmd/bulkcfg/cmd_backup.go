package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/bulkcfg/pkg/runner"
	"github.com/newtron-network/bulkcfg/pkg/snapshot"
)

var (
	backupFlags execFlags
	cfgDir      string
	forceBackup bool
	backupDate  string
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot running configs and diff them against yesterday",
	Long: `Capture "show running-config" from every device into
<cfg-dir>/<date>_<address>.cfg. After all devices finish, each new
snapshot is compared with the previous day's; when they differ a
zero-context unified diff is written to <cfg-dir>/<date>_<address>_diff.cfg.

A snapshot that already exists for the date is left untouched unless
--force is given.

Examples:
  bulkcfg backup
  bulkcfg backup --cfg-dir /var/backups/ios
  bulkcfg backup --date 2026-10-18 --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		devicesPath := resolvedDevicesFile(cmd)
		credsPath := resolvedCredsFile(cmd)

		now := time.Now
		if backupDate != "" {
			d, err := parseDate(backupDate)
			if err != nil {
				return err
			}
			now = func() time.Time { return d }
		}

		if err := requireFiles(credsPath, devicesPath); err != nil {
			return err
		}
		addrs, creds, err := loadInventory(devicesPath, credsPath)
		if err != nil {
			return err
		}

		store, err := snapshot.NewStore(flagOr(cmd, "cfg-dir", cfgDir, userSettings.GetSnapshotDir()))
		if err != nil {
			return err
		}
		store.Overwrite = forceBackup

		r, cleanup, err := newRunner(cmd, &backupFlags)
		if err != nil {
			return err
		}
		defer cleanup()
		r.Snapshots = store
		r.Now = now

		ctx, stop := signalContext()
		defer stop()

		_, err = r.Run(ctx, runner.Job{
			Mode:        runner.ModeBackup,
			Addresses:   addrs,
			Credentials: creds,
		})
		return err
	},
}

func init() {
	addExecFlags(backupCmd, &backupFlags)
	backupCmd.Flags().StringVar(&cfgDir, "cfg-dir", "", "Snapshot directory (default cfgfiles)")
	backupCmd.Flags().BoolVar(&forceBackup, "force", false, "Replace a snapshot already captured for the date")
	backupCmd.Flags().StringVar(&backupDate, "date", "", "Reference date YYYY-MM-DD (default today)")
}
