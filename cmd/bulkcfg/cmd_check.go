package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/bulkcfg/pkg/cli"
	"github.com/newtron-network/bulkcfg/pkg/probe"
	"github.com/newtron-network/bulkcfg/pkg/runner"
)

var (
	checkFlags   execFlags
	probeCount   int
	probeTimeout time.Duration
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check inventory addresses without contacting any device",
	Long: `Check every address in the inventory, in order, stopping at the first
invalid one. An address is valid when it has four numeric octets in 0-255,
a first octet in 1-223 other than 127, and is not link-local.

Examples:
  bulkcfg validate
  bulkcfg validate --devices core.txt --exclude 10.99.0.0/16`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, addrs, err := checkRunner(cmd)
		if err != nil {
			return err
		}
		if err := r.Validate(addrs); err != nil {
			return err
		}
		fmt.Printf("\n%s\n", cli.Green(fmt.Sprintf("All %d addresses valid.", len(addrs))))
		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Validate the inventory and ping every device",
	Long: `Validate the inventory, then ping every device concurrently and report
which answer. Unreachable devices are reported only; the command still
exits zero.

Examples:
  bulkcfg probe
  bulkcfg probe --count 4 --timeout 5s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, addrs, err := checkRunner(cmd)
		if err != nil {
			return err
		}
		if err := r.Validate(addrs); err != nil {
			return err
		}

		r.Prober = &probe.Ping{Count: probeCount, Timeout: probeTimeout}
		results := r.Probe(context.Background(), addrs)

		up := 0
		for _, res := range results {
			if res.Reachable {
				up++
			}
		}
		fmt.Printf("\n%d of %d devices reachable.\n", up, len(results))
		return nil
	},
}

// checkRunner builds a runner that only validates and probes.
func checkRunner(cmd *cobra.Command) (*runner.Runner, []string, error) {
	devicesPath := resolvedDevicesFile(cmd)
	if err := requireFiles(devicesPath); err != nil {
		return nil, nil, err
	}
	addrs, _, err := loadInventory(devicesPath, "")
	if err != nil {
		return nil, nil, err
	}
	v, err := newValidator(&checkFlags)
	if err != nil {
		return nil, nil, err
	}
	return &runner.Runner{Validator: v, Progress: runner.NewConsoleProgress(verbose)}, addrs, nil
}

func init() {
	addInventoryFlags(validateCmd, &checkFlags)
	addInventoryFlags(probeCmd, &checkFlags)
	probeCmd.Flags().IntVar(&probeCount, "count", 2, "Echo requests per device")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 10*time.Second, "Ping timeout per device")
}
