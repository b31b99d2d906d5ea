// Package settings manages persistent user settings for the bulkcfg CLI.
// Command-line flags override settings; settings override built-in
// defaults.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Built-in defaults, matching the file names operators already use.
const (
	DefaultDevicesFile   = "devices.txt"
	DefaultCredsFile     = "creds.txt"
	DefaultCommandsFile  = "cmd.json"
	DefaultOutputDir     = "."
	DefaultSnapshotDir   = "cfgfiles"
	DefaultWorkerTimeout = 5 * time.Minute
)

// Settings holds persistent user preferences
type Settings struct {
	DevicesFile  string `json:"devices_file,omitempty"`
	CredsFile    string `json:"creds_file,omitempty"`
	CommandsFile string `json:"commands_file,omitempty"`

	// OutputDir holds per-device read logs and the config error log.
	OutputDir string `json:"output_dir,omitempty"`

	// SnapshotDir holds daily running-config snapshots and diffs.
	SnapshotDir string `json:"snapshot_dir,omitempty"`

	// AuditLog is the JSON-lines audit file. Empty uses ~/.bulkcfg/audit.log.
	AuditLog string `json:"audit_log,omitempty"`

	// RedisAddr enables result publication when set.
	RedisAddr string `json:"redis_addr,omitempty"`

	// WorkerTimeout is a Go duration string such as "90s".
	WorkerTimeout string `json:"worker_timeout,omitempty"`

	// KnownHosts enables SSH host key verification.
	KnownHosts string `json:"known_hosts,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	return filepath.Join(configDir(), "settings.json")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bulkcfg"
	}
	return filepath.Join(home, ".bulkcfg")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path. A missing file yields
// empty settings.
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// fields maps setting keys to their storage. Keys match the JSON names.
func (s *Settings) fields() map[string]*string {
	return map[string]*string{
		"devices_file":   &s.DevicesFile,
		"creds_file":     &s.CredsFile,
		"commands_file":  &s.CommandsFile,
		"output_dir":     &s.OutputDir,
		"snapshot_dir":   &s.SnapshotDir,
		"audit_log":      &s.AuditLog,
		"redis_addr":     &s.RedisAddr,
		"worker_timeout": &s.WorkerTimeout,
		"known_hosts":    &s.KnownHosts,
	}
}

// Keys lists the settable keys in sorted order.
func Keys() []string {
	var keys []string
	for k := range (&Settings{}).fields() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns value to key. An empty value clears the key.
func (s *Settings) Set(key, value string) error {
	p, ok := s.fields()[key]
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	if key == "worker_timeout" && value != "" {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("worker_timeout: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("worker_timeout must be positive, got %s", value)
		}
	}
	*p = value
	return nil
}

// Get returns the stored value of key.
func (s *Settings) Get(key string) (string, error) {
	p, ok := s.fields()[key]
	if !ok {
		return "", fmt.Errorf("unknown setting %q", key)
	}
	return *p, nil
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// GetDevicesFile returns the inventory file (with fallback)
func (s *Settings) GetDevicesFile() string { return or(s.DevicesFile, DefaultDevicesFile) }

// GetCredsFile returns the credentials file (with fallback)
func (s *Settings) GetCredsFile() string { return or(s.CredsFile, DefaultCredsFile) }

// GetCommandsFile returns the command file (with fallback)
func (s *Settings) GetCommandsFile() string { return or(s.CommandsFile, DefaultCommandsFile) }

// GetOutputDir returns the log directory (with fallback)
func (s *Settings) GetOutputDir() string { return or(s.OutputDir, DefaultOutputDir) }

// GetSnapshotDir returns the snapshot directory (with fallback)
func (s *Settings) GetSnapshotDir() string { return or(s.SnapshotDir, DefaultSnapshotDir) }

// GetAuditLog returns the audit log path (with fallback)
func (s *Settings) GetAuditLog() string {
	return or(s.AuditLog, filepath.Join(configDir(), "audit.log"))
}

// GetWorkerTimeout returns the worker timeout, falling back to the
// default when unset or unparsable.
func (s *Settings) GetWorkerTimeout() time.Duration {
	if d, err := time.ParseDuration(s.WorkerTimeout); err == nil && d > 0 {
		return d
	}
	return DefaultWorkerTimeout
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
