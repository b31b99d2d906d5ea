package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/bulkcfg/pkg/audit"
	"github.com/newtron-network/bulkcfg/pkg/cli"
	"github.com/newtron-network/bulkcfg/pkg/store"
)

var (
	historyDevice   string
	historyRun      string
	historyLast     string
	historyLimit    int
	historyFailures bool
	historyJSON     bool
	historyAuditLog string
	historyRedis    string
	historyRedisDB  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the results of previous runs",
	Long: `Query the audit trail. Every run writes one event per device with the
outcome of each command it sent.

With --run and --redis the events are read from Redis instead of the
local audit file.

Examples:
  bulkcfg history --device 10.0.0.1
  bulkcfg history --failures --last 24h
  bulkcfg history --run 3f2c... --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := queryHistory(cmd)
		if err != nil {
			return err
		}

		if historyJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(events)
		}

		if len(events) == 0 {
			fmt.Println("No events found")
			return nil
		}

		t := cli.NewTable("TIMESTAMP", "RUN", "DEVICE", "OPERATION", "STATUS", "DETAIL")
		for _, e := range events {
			status := cli.Green("ok")
			if !e.Success {
				status = cli.Red("failed")
			}
			t.Row(
				e.Timestamp.Format("2006-01-02 15:04:05"),
				shortID(e.RunID),
				e.Device,
				string(e.Operation),
				status,
				eventDetail(e),
			)
		}
		t.Flush()
		return nil
	},
}

func queryHistory(cmd *cobra.Command) ([]*audit.Event, error) {
	filter := audit.Filter{
		Device:      historyDevice,
		RunID:       historyRun,
		Limit:       historyLimit,
		FailureOnly: historyFailures,
	}
	if historyLast != "" {
		d, err := parseLast(historyLast)
		if err != nil {
			return nil, err
		}
		filter.StartTime = time.Now().Add(-d)
	}

	addr := flagOr(cmd, "redis", historyRedis, "")
	if historyRun != "" && addr != "" {
		rs := store.NewRedisStore(addr, historyRedisDB)
		defer rs.Close()
		if err := rs.Connect(); err != nil {
			return nil, err
		}
		events, err := rs.RunEvents(historyRun)
		if err != nil {
			return nil, err
		}
		var out []*audit.Event
		for _, e := range events {
			if (filter.Device == "" || e.Device == filter.Device) && (!filter.FailureOnly || !e.Success) {
				out = append(out, e)
			}
		}
		return out, nil
	}

	path := flagOr(cmd, "audit-log", historyAuditLog, userSettings.GetAuditLog())
	events, err := audit.ReadFile(path, filter)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	return events, nil
}

// parseLast accepts Go durations plus a day suffix, e.g. "7d".
func parseLast(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid duration: %s", s)
	}
	return d, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// eventDetail summarises why an event failed, or what it produced.
func eventDetail(e *audit.Event) string {
	if e.Error != "" {
		return e.Error
	}
	if f := e.Failures(); len(f) > 0 {
		first := f[0]
		detail := string(first.Kind) + ": " + firstLine(first.Command)
		if first.OffendingLine != "" {
			detail = string(first.Kind) + ": " + first.OffendingLine
		}
		if len(f) > 1 {
			detail += fmt.Sprintf(" (+%d more)", len(f)-1)
		}
		return detail
	}
	if e.DiffPath != "" {
		return "changed: " + e.DiffPath
	}
	if e.SnapshotPath != "" {
		return e.SnapshotPath
	}
	if e.Saved {
		return "saved"
	}
	return ""
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func init() {
	historyCmd.Flags().StringVar(&historyDevice, "device", "", "Filter by device address")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Filter by run ID")
	historyCmd.Flags().StringVar(&historyLast, "last", "", "Show events from last duration (e.g., 24h, 7d)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 100, "Maximum events to show")
	historyCmd.Flags().BoolVar(&historyFailures, "failures", false, "Show only failed devices")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output as JSON")
	historyCmd.Flags().StringVar(&historyAuditLog, "audit-log", "", "Audit trail file (default ~/.bulkcfg/audit.log)")
	historyCmd.Flags().StringVar(&historyRedis, "redis", "", "Read --run events from the Redis at host:port")
	historyCmd.Flags().IntVar(&historyRedisDB, "redis-db", 0, "Redis database number")
}
