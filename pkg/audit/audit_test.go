package audit

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/newtron-network/bulkcfg/pkg/classify"
)

func TestEvent_New(t *testing.T) {
	event := NewEvent("run-1", "10.0.0.1", OperationRun)

	if event.RunID != "run-1" {
		t.Errorf("RunID = %q, want %q", event.RunID, "run-1")
	}
	if event.Device != "10.0.0.1" {
		t.Errorf("Device = %q, want %q", event.Device, "10.0.0.1")
	}
	if event.Operation != OperationRun {
		t.Errorf("Operation = %q, want %q", event.Operation, OperationRun)
	}
	if event.ID == "" {
		t.Error("ID should not be empty")
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}

	other := NewEvent("run-1", "10.0.0.1", OperationRun)
	if other.ID == event.ID {
		t.Error("event IDs should be unique")
	}
}

func TestEvent_WithResults(t *testing.T) {
	tests := []struct {
		name    string
		results []classify.Result
		want    bool
	}{
		{"no commands", nil, true},
		{"all succeed", []classify.Result{
			{Kind: classify.ReadSuccess, Command: "show version"},
			{Kind: classify.WriteSuccess, Command: "ntp server 1.1.1.1"},
		}, true},
		{"write rejected", []classify.Result{
			{Kind: classify.ReadSuccess, Command: "show version"},
			{Kind: classify.WriteInvalid, Command: "descriptio x", OffendingLine: "descriptio x"},
		}, false},
		{"connect failed", []classify.Result{{Kind: classify.ConnectFailed}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := NewEvent("run-1", "10.0.0.1", OperationRun).WithResults(tt.results)
			if event.Success != tt.want {
				t.Errorf("Success = %v, want %v", event.Success, tt.want)
			}
		})
	}
}

func TestEvent_WithError(t *testing.T) {
	event := NewEvent("run-1", "10.0.0.1", OperationRun).
		WithError(errors.New("ssh timeout")).
		WithResults(nil)

	if event.Success {
		t.Error("Success should stay false once an error is recorded")
	}
	if event.Error != "ssh timeout" {
		t.Errorf("Error = %q", event.Error)
	}

	event2 := NewEvent("run-1", "10.0.0.1", OperationRun).WithError(nil)
	if event2.Success {
		t.Error("Success should be false even with nil error")
	}
	if event2.Error != "" {
		t.Errorf("Error should be empty with nil error, got %q", event2.Error)
	}
}

func TestEvent_Failures(t *testing.T) {
	event := NewEvent("run-1", "10.0.0.1", OperationRun).WithResults([]classify.Result{
		{Kind: classify.ReadSuccess, Command: "show clock"},
		{Kind: classify.ReadInvalid, Command: "show bogus"},
		{Kind: classify.WriteSuccess, Command: "logging host 10.1.1.1"},
	})

	failures := event.Failures()
	if len(failures) != 1 || failures[0].Command != "show bogus" {
		t.Errorf("Failures() = %+v", failures)
	}
}

func TestEvent_JSONOmitsOutput(t *testing.T) {
	event := NewEvent("run-1", "10.0.0.1", OperationRun).WithResults([]classify.Result{
		{Kind: classify.ReadSuccess, Command: "show running-config", Output: "enable secret 5 $1$abcd"},
	})

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(data), "enable secret") {
		t.Errorf("device output leaked into audit record: %s", data)
	}
}

func newTestLogger(t *testing.T, rotation RotationConfig) (*FileLogger, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(logPath, rotation)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger, logPath
}

func TestFileLogger_Basic(t *testing.T) {
	logger, logPath := newTestLogger(t, RotationConfig{})

	event := NewEvent("run-1", "10.0.0.1", OperationBackup).WithResults([]classify.Result{
		{Kind: classify.ReadSuccess, Command: "show running-config"},
	})
	event.SnapshotPath = "cfgfiles/2026-10-19_10.0.0.1.cfg"

	if err := logger.Log(event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("Log file should exist")
	}

	events, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	got := events[0]
	if got.ID != event.ID || got.Device != "10.0.0.1" || got.Operation != OperationBackup {
		t.Errorf("round-tripped event = %+v", got)
	}
	if got.SnapshotPath != event.SnapshotPath {
		t.Errorf("SnapshotPath = %q", got.SnapshotPath)
	}
	if len(got.Results) != 1 || got.Results[0].Kind != classify.ReadSuccess {
		t.Errorf("Results = %+v", got.Results)
	}
}

func TestFileLogger_QueryFilters(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{})

	rejected := []classify.Result{{Kind: classify.WriteInvalid, Command: "x"}}
	events := []*Event{
		NewEvent("run-1", "10.0.0.1", OperationRun).WithResults(nil),
		NewEvent("run-1", "10.0.0.2", OperationRun).WithResults(rejected),
		NewEvent("run-2", "10.0.0.1", OperationBackup).WithResults(nil),
		NewEvent("run-2", "10.0.0.3", OperationBackup).WithError(errors.New("auth")),
	}
	for _, e := range events {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"no filter", Filter{}, 4},
		{"by device", Filter{Device: "10.0.0.1"}, 2},
		{"by run", Filter{RunID: "run-2"}, 2},
		{"by operation", Filter{Operation: OperationRun}, 2},
		{"failures only", Filter{FailureOnly: true}, 2},
		{"run and failures", Filter{RunID: "run-1", FailureOnly: true}, 1},
		{"limit", Filter{Limit: 3}, 3},
		{"offset", Filter{Offset: 3}, 1},
		{"offset beyond events", Filter{Offset: 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := logger.Query(tt.filter)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(results) != tt.want {
				t.Errorf("got %d events, want %d", len(results), tt.want)
			}
		})
	}
}

func TestFileLogger_QueryTimeFilter(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{})

	old := NewEvent("run-1", "10.0.0.1", OperationRun)
	old.Timestamp = time.Now().Add(-48 * time.Hour)
	logger.Log(old)
	logger.Log(NewEvent("run-2", "10.0.0.1", OperationRun))

	results, err := logger.Query(Filter{StartTime: time.Now().Add(-time.Hour)})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 1 || results[0].RunID != "run-2" {
		t.Errorf("StartTime filter returned %d events", len(results))
	}

	results, _ = logger.Query(Filter{EndTime: time.Now().Add(-24 * time.Hour)})
	if len(results) != 1 || results[0].RunID != "run-1" {
		t.Errorf("EndTime filter returned %d events", len(results))
	}
}

func TestReadFile_Missing(t *testing.T) {
	events, err := ReadFile(filepath.Join(t.TempDir(), "none.log"), Filter{})
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected no events, got %d", len(events))
	}
}

func TestReadFile_MalformedJSON(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	content := `{"run_id":"r1","device":"10.0.0.1","operation":"run","success":true}
invalid json line
{"run_id":"r1","device":"10.0.0.2","operation":"run","success":false}
`
	if err := os.WriteFile(logPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test data: %v", err)
	}

	results, err := ReadFile(logPath, Filter{})
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 valid events (skipping malformed), got %d", len(results))
	}
}

func TestReadFile_Directory(t *testing.T) {
	if _, err := ReadFile(t.TempDir(), Filter{}); err == nil {
		t.Error("ReadFile should fail when reading a directory")
	}
}

func TestFileLogger_Rotation(t *testing.T) {
	logger, logPath := newTestLogger(t, RotationConfig{MaxSize: 100, MaxBackups: 2})

	clock := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	logger.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	for i := 0; i < 6; i++ {
		if err := logger.Log(NewEvent("run-1", "10.0.0.1", OperationRun).WithResults(nil)); err != nil {
			t.Fatalf("Log failed on iteration %d: %v", i, err)
		}
	}

	matches, err := filepath.Glob(logPath + ".*")
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("Expected 2 backup files after cleanup, got %d", len(matches))
	}

	// The active file holds only events written after the last rotation.
	events, _ := logger.Query(Filter{})
	if len(events) != 1 {
		t.Errorf("Expected 1 event in the active file, got %d", len(events))
	}
}

func TestFileLogger_LogAfterClose(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close should be a no-op: %v", err)
	}
	if err := logger.Log(NewEvent("run-1", "10.0.0.1", OperationRun)); err == nil {
		t.Error("Log after Close should fail")
	}
}

func TestFileLogger_MkdirError(t *testing.T) {
	if _, err := NewFileLogger("/dev/null/impossible/audit.log", RotationConfig{}); err == nil {
		t.Error("Expected error creating logger under /dev/null")
	}
}

type recordingLogger struct {
	events []*Event
	err    error
	closed bool
}

func (r *recordingLogger) Log(e *Event) error {
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingLogger) Close() error {
	r.closed = true
	return nil
}

func TestMultiLogger(t *testing.T) {
	failing := &recordingLogger{err: errors.New("redis down")}
	ok := &recordingLogger{}
	m := MultiLogger{failing, ok}

	err := m.Log(NewEvent("run-1", "10.0.0.1", OperationRun))
	if err == nil || !strings.Contains(err.Error(), "redis down") {
		t.Errorf("Log error = %v, want the backend error", err)
	}
	if len(ok.events) != 1 {
		t.Error("a failing backend must not stop the others")
	}

	if err := m.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !failing.closed || !ok.closed {
		t.Error("Close should reach every backend")
	}
}
