package inventory

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/bulkcfg/pkg/util"
)

// CommandSet is the work sent to every device: read commands run one at a
// time, then the config lines are applied as a single block.
type CommandSet struct {
	Show   []string `yaml:"show" json:"show"`
	Config []string `yaml:"config" json:"config"`
}

// Empty reports whether there is nothing to send.
func (c *CommandSet) Empty() bool {
	return len(c.Show) == 0 && len(c.Config) == 0
}

// Validate checks the shape of the set. Either list may be empty but no
// entry may be blank.
func (c *CommandSet) Validate() error {
	v := &util.ValidationBuilder{}
	for i, s := range c.Show {
		v.Add(strings.TrimSpace(s) != "", fmt.Sprintf("show[%d] is blank", i))
	}
	for i, s := range c.Config {
		v.Add(strings.TrimSpace(s) != "", fmt.Sprintf("config[%d] is blank", i))
	}
	return v.Build()
}

// LoadCommandSet reads a command document. JSON (cmd.json) and YAML are
// both accepted since the YAML decoder reads JSON objects. Unknown
// top-level fields are rejected.
func LoadCommandSet(path string) (*CommandSet, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, util.NewInputMissingError(path)
		}
		return nil, fmt.Errorf("opening command file: %w", err)
	}
	defer f.Close()
	return ParseCommandSet(f)
}

// ParseCommandSet decodes and validates a command document from r.
func ParseCommandSet(r io.Reader) (*CommandSet, error) {
	cs := &CommandSet{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cs); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing command file: %w", err)
	}
	if err := cs.Validate(); err != nil {
		return nil, err
	}
	return cs, nil
}
