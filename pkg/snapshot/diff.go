package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/newtron-network/bulkcfg/pkg/util"
)

// Record describes a diff written for one device.
type Record struct {
	Address string
	Date    time.Time
	Path    string
	Added   int
	Removed int
}

// Differ compares each device's snapshot for Today against the day before.
type Differ struct {
	Store *Store
	Today time.Time
}

// Diff writes the diff file for address and returns its record, or nil
// when there is nothing to write: yesterday's snapshot is missing (first
// run), today's is missing, or both are byte-identical.
func (d *Differ) Diff(address string) (*Record, error) {
	yesterday := d.Today.AddDate(0, 0, -1)
	if !d.Store.Exists(yesterday, address) || !d.Store.Exists(d.Today, address) {
		util.WithDevice(address).Debugf("no snapshot pair for %s, skipping diff", d.Today.Format(DateFormat))
		return nil, nil
	}

	before, err := d.Store.Load(yesterday, address)
	if err != nil {
		return nil, fmt.Errorf("reading %s snapshot of %s: %w", yesterday.Format(DateFormat), address, err)
	}
	after, err := d.Store.Load(d.Today, address)
	if err != nil {
		return nil, fmt.Errorf("reading %s snapshot of %s: %w", d.Today.Format(DateFormat), address, err)
	}
	if bytes.Equal(before, after) {
		return nil, nil
	}

	text, added, removed, err := UnifiedDiff(string(before), string(after),
		filepath.Base(d.Store.Path(yesterday, address)), filepath.Base(d.Store.Path(d.Today, address)))
	if err != nil {
		return nil, fmt.Errorf("diffing %s: %w", address, err)
	}
	if text == "" {
		return nil, nil
	}

	path := d.Store.DiffPath(d.Today, address)
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return nil, fmt.Errorf("writing diff for %s: %w", address, err)
	}
	return &Record{Address: address, Date: d.Today, Path: path, Added: added, Removed: removed}, nil
}

// DiffAll diffs every address. A failure on one device does not stop the
// others; all failures are returned joined.
func (d *Differ) DiffAll(addresses []string) ([]*Record, error) {
	var records []*Record
	var errs []error
	for _, a := range addresses {
		rec, err := d.Diff(a)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if rec != nil {
			records = append(records, rec)
		}
	}
	return records, errors.Join(errs...)
}

// UnifiedDiff returns a zero-context unified diff of two texts: removed
// lines are prefixed "-", added lines "+", and no unchanged line is shown.
// An empty string means the texts have the same lines.
func UnifiedDiff(from, to, fromName, toName string) (text string, added, removed int, err error) {
	text, err = difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(from),
		B:        splitLines(to),
		FromFile: fromName,
		ToFile:   toName,
		Context:  0,
	})
	if err != nil {
		return "", 0, 0, err
	}
	for i, line := range strings.Split(text, "\n") {
		switch {
		case i < 2:
			// --- and +++ file headers
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return text, added, removed, nil
}

// splitLines splits text into newline-terminated lines, dropping carriage
// returns and the empty element after a final newline.
func splitLines(s string) []string {
	s = strings.TrimSuffix(strings.ReplaceAll(s, "\r", ""), "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] += "\n"
	}
	return lines
}
