// Package probe checks device reachability with the system ping utility.
// Results are advisory: the runner reports them but the session layer
// remains the authoritative gate.
package probe

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/newtron-network/bulkcfg/pkg/util"
)

// Prober reports whether a single address answers.
type Prober interface {
	Probe(ctx context.Context, address string) bool
}

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Ping probes with `ping -c <Count>`.
type Ping struct {
	Count   int
	Timeout time.Duration

	// Run overrides command execution; nil uses os/exec.
	Run Runner
}

// NewPing returns a prober sending two echo requests with a 10s ceiling.
func NewPing() *Ping {
	return &Ping{Count: 2, Timeout: 10 * time.Second}
}

// Probe returns false when the output reports 100% packet loss, or when
// ping failed without producing any output (unknown host, missing binary).
func (p *Ping) Probe(ctx context.Context, address string) bool {
	count := p.Count
	if count <= 0 {
		count = 2
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	run := p.Run
	if run == nil {
		run = execRunner
	}

	out, err := run(ctx, "ping", "-c", strconv.Itoa(count), address)
	if err != nil && len(strings.TrimSpace(string(out))) == 0 {
		util.WithDevice(address).Debugf("ping failed: %v", err)
		return false
	}
	return !strings.Contains(string(out), "100% packet loss")
}

// Result is the reachability of one address.
type Result struct {
	Address   string
	Reachable bool
}

// All probes every address concurrently and returns results in input order.
func All(ctx context.Context, p Prober, addresses []string) []Result {
	results := make([]Result, len(addresses))
	var wg sync.WaitGroup
	for i, addr := range addresses {
		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()
			results[i] = Result{Address: addr, Reachable: p.Probe(ctx, addr)}
		}(i, addr)
	}
	wg.Wait()
	return results
}
