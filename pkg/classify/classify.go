// Package classify turns raw device output into typed command results.
//
// Classification is pure: persisting the result (read log, error log) is
// the caller's job, so the same output always yields the same Result.
package classify

import (
	"fmt"
	"strings"

	"github.com/newtron-network/bulkcfg/pkg/util"
)

// Defaults match the Cisco IOS CLI.
const (
	DefaultMarker          = "% Invalid input"
	DefaultReadPrefix      = "show"
	DefaultPromptDelimiter = "#"

	// DefaultLookback is how many lines above the error marker the CLI
	// echoes the rejected config line: the echo, then a caret line, then
	// the marker.
	DefaultLookback = 2
)

// Kind is the outcome of one command on one device.
type Kind string

const (
	ReadSuccess   Kind = "read-success"
	ReadInvalid   Kind = "read-invalid"
	WriteSuccess  Kind = "write-success"
	WriteInvalid  Kind = "write-invalid"
	ConnectFailed Kind = "connect-failed"
)

// Failed reports whether the kind represents a failure.
func (k Kind) Failed() bool {
	return k == ReadInvalid || k == WriteInvalid || k == ConnectFailed
}

// Result is a classified command outcome.
type Result struct {
	Kind    Kind   `json:"kind"`
	Command string `json:"command"`

	// Output is the raw output, kept for ReadSuccess only.
	Output string `json:"-"`

	// OffendingLine and Context are set for WriteInvalid: the rejected
	// config line and the prompt it was typed at, e.g. "R1(config)".
	OffendingLine string `json:"offending_line,omitempty"`
	Context       string `json:"context,omitempty"`
}

// Err returns an error wrapping util.ErrCommandRejected for a command the
// device refused, nil otherwise.
func (r Result) Err() error {
	switch r.Kind {
	case ReadInvalid:
		return fmt.Errorf("%w: %s", util.ErrCommandRejected, r.Command)
	case WriteInvalid:
		return fmt.Errorf("%w: %s", util.ErrCommandRejected, r.OffendingLine)
	}
	return nil
}

// Classifier holds the transcript conventions of the target CLI.
type Classifier struct {
	Marker          string
	ReadPrefix      string
	PromptDelimiter string
	Lookback        int
}

// New returns a classifier configured for IOS-style transcripts.
func New() *Classifier {
	return &Classifier{
		Marker:          DefaultMarker,
		ReadPrefix:      DefaultReadPrefix,
		PromptDelimiter: DefaultPromptDelimiter,
		Lookback:        DefaultLookback,
	}
}

// IsRead reports whether command is a read-only command.
func (c *Classifier) IsRead(command string) bool {
	return strings.HasPrefix(command, c.ReadPrefix)
}

// Classify decides the outcome of command given its raw output.
func (c *Classifier) Classify(raw, command string, isWrite bool) Result {
	if strings.Contains(raw, c.Marker) {
		if !isWrite {
			return Result{Kind: ReadInvalid, Command: command}
		}
		ctx, line := c.offendingLine(raw)
		return Result{
			Kind:          WriteInvalid,
			Command:       command,
			OffendingLine: line,
			Context:       ctx,
		}
	}
	if !isWrite {
		return Result{Kind: ReadSuccess, Command: command, Output: raw}
	}
	return Result{Kind: WriteSuccess, Command: command}
}

// offendingLine finds the first marker line and returns the prompt and
// command text of the echoed line Lookback lines above it. When the
// transcript is too short the context is empty and the line is unknown.
func (c *Classifier) offendingLine(raw string) (context, line string) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r", ""), "\n")
	idx := -1
	for i, l := range lines {
		if strings.Contains(l, c.Marker) {
			idx = i
			break
		}
	}
	src := idx - c.Lookback
	if idx < 0 || src < 0 {
		return "", ""
	}
	before, after, found := strings.Cut(lines[src], c.PromptDelimiter)
	if !found {
		return "", lines[src]
	}
	return before, after
}
