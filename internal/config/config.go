package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Environment variables understood by every claude-mem process.
const (
	EnvDataDir    = "CLAUDE_MEM_DATA_DIR"
	EnvWorkerPort = "CLAUDE_MEM_WORKER_PORT"
	EnvWorkerHost = "CLAUDE_MEM_WORKER_HOST"
)

// Defaults used when neither the environment nor the settings file
// provides a value. The worker probes upward from DefaultWorkerPort
// when the base port is taken.
const (
	DefaultWorkerPort = 37777
	DefaultWorkerHost = "127.0.0.1"
)

// ErrConfiguration marks a missing or unparsable settings file. A handler
// that needs the worker cannot proceed past this error: the settings file
// is the only source of truth for the worker's address.
var ErrConfiguration = errors.New("configuration error")

// Settings is the on-disk worker connection record. The worker writes it
// once at startup; hooks only ever read it. Keys match the settings file
// the worker produces, hence the screaming-snake JSON tags.
type Settings struct {
	WorkerPort    string `json:"CLAUDE_MEM_WORKER_PORT"`
	WorkerHost    string `json:"CLAUDE_MEM_WORKER_HOST"`
	WorkerVersion string `json:"CLAUDE_MEM_WORKER_VERSION,omitempty"`
}

// Port parses the numeric worker port out of the settings.
func (s *Settings) Port() (int, error) {
	port, err := strconv.Atoi(s.WorkerPort)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("%w: invalid worker port %q", ErrConfiguration, s.WorkerPort)
	}
	return port, nil
}

// DataDir returns the claude-mem data directory.
// Priority: CLAUDE_MEM_DATA_DIR env var > ~/.claude-mem default.
func DataDir() string {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/.claude-mem"
	}
	return filepath.Join(home, ".claude-mem")
}

// SettingsPath returns the settings file path under dataDir.
func SettingsPath(dataDir string) string {
	return filepath.Join(dataDir, "settings.json")
}

// DBPath returns the SQLite database path under dataDir.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, "claude-mem.db")
}

// LogPath returns the shared log file path under dataDir.
func LogPath(dataDir string) string {
	return filepath.Join(dataDir, "worker.log")
}

// Load reads and parses the settings file under dataDir.
// Absence or malformed content is a ConfigurationError.
func Load(dataDir string) (*Settings, error) {
	path := SettingsPath(dataDir)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrConfiguration, path, err)
	}
	if s.WorkerPort == "" {
		return nil, fmt.Errorf("%w: %s missing %s", ErrConfiguration, path, EnvWorkerPort)
	}
	if s.WorkerHost == "" {
		s.WorkerHost = DefaultWorkerHost
	}
	return &s, nil
}

// Save writes the settings file under dataDir, creating the directory if
// needed. The write goes through a temp file and rename so hooks never
// observe a partially written settings file.
func Save(dataDir string, s *Settings) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	path := SettingsPath(dataDir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
