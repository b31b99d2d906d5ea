// Package inventory loads and checks the inputs of a run: the device
// address list, the credentials file, and the command set.
package inventory

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/newtron-network/bulkcfg/pkg/util"
)

// RequireFiles checks that every path exists and is a regular file.
// report, if non-nil, is called for each path checked. The first missing
// file stops the check with an InputMissingError.
func RequireFiles(paths []string, report func(path string, found bool)) error {
	for _, p := range paths {
		info, err := os.Stat(p)
		found := err == nil && info.Mode().IsRegular()
		if report != nil {
			report(p, found)
		}
		if !found {
			return util.NewInputMissingError(p)
		}
	}
	return nil
}

// LoadAddresses reads a newline-separated device list. Blank lines are
// skipped and surrounding whitespace is kept so that the validator sees
// exactly what the operator wrote.
func LoadAddresses(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, util.NewInputMissingError(path)
		}
		return nil, fmt.Errorf("opening inventory: %w", err)
	}
	defer f.Close()

	var addrs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		addrs = append(addrs, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading inventory %s: %w", path, err)
	}
	return addrs, nil
}
