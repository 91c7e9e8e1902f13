package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected error for missing settings file")
	}
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(SettingsPath(dir), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestLoadMissingPort(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(SettingsPath(dir), []byte(`{"CLAUDE_MEM_WORKER_HOST":"localhost"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for missing port, got %v", err)
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	in := &Settings{WorkerPort: "38000", WorkerHost: "10.0.0.5", WorkerVersion: "1.2.3"}

	if err := Save(dir, in); err != nil {
		t.Fatal(err)
	}
	out, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	if out.WorkerPort != "38000" || out.WorkerHost != "10.0.0.5" || out.WorkerVersion != "1.2.3" {
		t.Errorf("roundtrip mismatch: %+v", out)
	}
	port, err := out.Port()
	if err != nil || port != 38000 {
		t.Errorf("Port() = %d, %v", port, err)
	}
}

func TestLoadDefaultsHost(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(SettingsPath(dir), []byte(`{"CLAUDE_MEM_WORKER_PORT":"37777"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if s.WorkerHost != DefaultWorkerHost {
		t.Errorf("host = %q, want %q", s.WorkerHost, DefaultWorkerHost)
	}
}

func TestPortInvalid(t *testing.T) {
	for _, bad := range []string{"", "abc", "-1", "0", "70000"} {
		s := &Settings{WorkerPort: bad}
		if _, err := s.Port(); !errors.Is(err, ErrConfiguration) {
			t.Errorf("Port(%q): expected ErrConfiguration, got %v", bad, err)
		}
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	if err := Save(dir, &Settings{WorkerPort: "37777", WorkerHost: "127.0.0.1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(SettingsPath(dir) + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after save")
	}
}

func TestDataDirEnvOverride(t *testing.T) {
	custom := filepath.Join(t.TempDir(), "mem")
	t.Setenv(EnvDataDir, custom)

	if got := DataDir(); got != custom {
		t.Errorf("DataDir() = %q, want %q", got, custom)
	}
}
