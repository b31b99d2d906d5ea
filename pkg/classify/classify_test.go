package classify

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/newtron-network/bulkcfg/pkg/util"
)

const rejectedConfig = `configure terminal
Enter configuration commands, one per line.  End with CNTL/Z.
R1(config)#interface Loopback0
R1(config-if)#descriptio test
                   ^
% Invalid input detected at '^' marker.

R1(config-if)#end
R1#`

func TestClassify(t *testing.T) {
	c := New()

	tests := []struct {
		name        string
		raw         string
		command     string
		wantKind    Kind
		wantLine    string
		wantContext string
	}{
		{
			name:     "read success",
			raw:      "Cisco IOS Software, Version 15.2",
			command:  "show version",
			wantKind: ReadSuccess,
		},
		{
			name:     "read invalid",
			raw:      "        ^\n% Invalid input detected at '^' marker.",
			command:  "show verison",
			wantKind: ReadInvalid,
		},
		{
			name:     "write success",
			raw:      "R1(config)#hostname R1\nR1(config)#end\nR1#",
			command:  "hostname R1",
			wantKind: WriteSuccess,
		},
		{
			name:        "write invalid",
			raw:         rejectedConfig,
			command:     "interface Loopback0\ndescriptio test",
			wantKind:    WriteInvalid,
			wantLine:    "descriptio test",
			wantContext: "R1(config-if)",
		},
		{
			name:        "write invalid with carriage returns",
			raw:         strings.ReplaceAll(rejectedConfig, "\n", "\r\n"),
			command:     "descriptio test",
			wantKind:    WriteInvalid,
			wantLine:    "descriptio test",
			wantContext: "R1(config-if)",
		},
		{
			name:     "write invalid marker too early",
			raw:      "% Invalid input detected at '^' marker.",
			command:  "bogus",
			wantKind: WriteInvalid,
		},
		{
			name:     "write invalid without prompt",
			raw:      "bogus line\n ^\n% Invalid input detected at '^' marker.",
			command:  "bogus line",
			wantKind: WriteInvalid,
			wantLine: "bogus line",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.raw, tt.command, !c.IsRead(tt.command))
			if got.Kind != tt.wantKind {
				t.Fatalf("Kind = %s, want %s", got.Kind, tt.wantKind)
			}
			if got.OffendingLine != tt.wantLine {
				t.Errorf("OffendingLine = %q, want %q", got.OffendingLine, tt.wantLine)
			}
			if got.Context != tt.wantContext {
				t.Errorf("Context = %q, want %q", got.Context, tt.wantContext)
			}
			if got.Command != tt.command {
				t.Errorf("Command = %q, want %q", got.Command, tt.command)
			}
		})
	}
}

func TestClassify_ReadSuccessKeepsOutput(t *testing.T) {
	c := New()
	got := c.Classify("uptime is 3 weeks", "show version", false)
	if got.Output != "uptime is 3 weeks" {
		t.Errorf("Output = %q", got.Output)
	}
	if inv := c.Classify("% Invalid input", "show x", false); inv.Output != "" {
		t.Errorf("ReadInvalid should not carry output, got %q", inv.Output)
	}
}

func TestClassify_CustomLookback(t *testing.T) {
	c := New()
	c.Lookback = 1
	c.Marker = "syntax error"
	c.PromptDelimiter = ">"

	raw := "user@sw1# set foo\nuser@sw1>set vlan bogus\nsyntax error, expecting <data>"
	got := c.Classify(raw, "set vlan bogus", true)
	if got.Kind != WriteInvalid || got.OffendingLine != "set vlan bogus" || got.Context != "user@sw1" {
		t.Errorf("got %+v", got)
	}
}

func TestIsRead(t *testing.T) {
	c := New()
	if !c.IsRead("show ip route") {
		t.Error("show command should be read")
	}
	if c.IsRead("interface Gi0/1") || c.IsRead(" show run") {
		t.Error("non-show commands should not be read")
	}
}

func TestKindFailed(t *testing.T) {
	for k, want := range map[Kind]bool{
		ReadSuccess:   false,
		WriteSuccess:  false,
		ReadInvalid:   true,
		WriteInvalid:  true,
		ConnectFailed: true,
	} {
		if k.Failed() != want {
			t.Errorf("%s.Failed() = %v", k, !want)
		}
	}
}

func TestResultErr(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{"read invalid", Result{Kind: ReadInvalid, Command: "show bogus"}, "command rejected by device: show bogus"},
		{"write invalid", Result{Kind: WriteInvalid, Command: "block", OffendingLine: "descriptio x"}, "command rejected by device: descriptio x"},
		{"read success", Result{Kind: ReadSuccess, Command: "show clock"}, ""},
		{"write success", Result{Kind: WriteSuccess}, ""},
		{"connect failed", Result{Kind: ConnectFailed}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Err()
			if tt.want == "" {
				if err != nil {
					t.Errorf("Err() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, util.ErrCommandRejected) {
				t.Errorf("Err() = %v, want ErrCommandRejected", err)
			}
			if err.Error() != tt.want {
				t.Errorf("Err() = %q, want %q", err, tt.want)
			}
		})
	}
}

func TestClassify_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	c := New()

	properties.Property("marker-free output of a show command is ReadSuccess", prop.ForAll(
		func(out, rest string) bool {
			r := c.Classify(out, "show "+rest, !c.IsRead("show "+rest))
			return r.Kind == ReadSuccess && r.Output == out
		},
		gen.AlphaString(), gen.AlphaString(),
	))

	properties.Property("marker-free output of a config command is WriteSuccess", prop.ForAll(
		func(out, cmd string) bool {
			cmd = "ip " + cmd
			return c.Classify(out, cmd, !c.IsRead(cmd)).Kind == WriteSuccess
		},
		gen.AlphaString(), gen.AlphaString(),
	))

	properties.Property("marker output of a show command is ReadInvalid", prop.ForAll(
		func(before, after string) bool {
			raw := before + "\n% Invalid input detected\n" + after
			return c.Classify(raw, "show x", false).Kind == ReadInvalid
		},
		gen.AlphaString(), gen.AlphaString(),
	))

	properties.Property("offending line is the line two above the marker split at the first #", prop.ForAll(
		func(prompt, line, junk string) bool {
			raw := fmt.Sprintf("%s\n%s#%s\n   ^\n%% Invalid input detected at '^' marker.\n", junk, prompt, line)
			r := c.Classify(raw, "cfg", true)
			return r.Kind == WriteInvalid && r.OffendingLine == line && r.Context == prompt
		},
		gen.Identifier(), gen.AlphaString(), gen.AlphaString(),
	))

	properties.TestingRun(t)
}
