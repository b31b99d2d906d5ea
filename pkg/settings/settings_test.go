package settings

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestSettings_Defaults(t *testing.T) {
	s := &Settings{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"devices", s.GetDevicesFile(), "devices.txt"},
		{"creds", s.GetCredsFile(), "creds.txt"},
		{"commands", s.GetCommandsFile(), "cmd.json"},
		{"output", s.GetOutputDir(), "."},
		{"snapshots", s.GetSnapshotDir(), "cfgfiles"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s default = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
	if s.GetWorkerTimeout() != 5*time.Minute {
		t.Errorf("GetWorkerTimeout() default = %s", s.GetWorkerTimeout())
	}
	if filepath.Base(s.GetAuditLog()) != "audit.log" {
		t.Errorf("GetAuditLog() default = %q", s.GetAuditLog())
	}
}

func TestSettings_SetGet(t *testing.T) {
	s := &Settings{}

	if err := s.Set("devices_file", "/srv/inv/core.txt"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if s.GetDevicesFile() != "/srv/inv/core.txt" {
		t.Errorf("GetDevicesFile() = %q", s.GetDevicesFile())
	}
	if v, _ := s.Get("devices_file"); v != "/srv/inv/core.txt" {
		t.Errorf("Get(devices_file) = %q", v)
	}

	if err := s.Set("worker_timeout", "90s"); err != nil {
		t.Fatalf("Set worker_timeout: %v", err)
	}
	if s.GetWorkerTimeout() != 90*time.Second {
		t.Errorf("GetWorkerTimeout() = %s", s.GetWorkerTimeout())
	}

	if err := s.Set("devices_file", ""); err != nil {
		t.Fatalf("clearing: %v", err)
	}
	if s.GetDevicesFile() != DefaultDevicesFile {
		t.Error("empty value should clear back to the default")
	}
}

func TestSettings_SetErrors(t *testing.T) {
	s := &Settings{}
	tests := []struct {
		key, value string
	}{
		{"network", "prod"},
		{"worker_timeout", "soon"},
		{"worker_timeout", "-5s"},
	}
	for _, tt := range tests {
		if err := s.Set(tt.key, tt.value); err == nil {
			t.Errorf("Set(%q, %q) should fail", tt.key, tt.value)
		}
	}
	if _, err := s.Get("network"); err == nil {
		t.Error("Get of unknown key should fail")
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	if len(keys) != 9 {
		t.Errorf("Keys() = %v", keys)
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Errorf("Keys() not sorted: %v", keys)
		}
	}
}

func TestSettings_Clear(t *testing.T) {
	s := &Settings{DevicesFile: "a", RedisAddr: "b", WorkerTimeout: "1m"}
	s.Clear()
	if !reflect.DeepEqual(*s, Settings{}) {
		t.Errorf("Clear() left %+v", *s)
	}
}

func TestSettings_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")

	original := &Settings{
		DevicesFile:   "devices.txt",
		SnapshotDir:   "/var/backups/cfg",
		RedisAddr:     "127.0.0.1:6379",
		WorkerTimeout: "2m",
	}
	if err := original.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}
	if !reflect.DeepEqual(loaded, original) {
		t.Errorf("loaded %+v, want %+v", loaded, original)
	}
}

func TestSettings_LoadMissing(t *testing.T) {
	s, err := LoadFrom(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatalf("LoadFrom() = %v", err)
	}
	if !reflect.DeepEqual(*s, Settings{}) {
		t.Errorf("missing file should give empty settings, got %+v", *s)
	}
}

func TestSettings_LoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("LoadFrom() should fail on invalid JSON")
	}
}
