// Package logging wires zerolog for both sides of claude-mem.
//
// The worker logs to the shared log file and stderr. Hooks log to the file
// only: a hook's stdout and stderr belong to the host runtime contract
// (exit-3 payloads and exit-2 diagnostics) and must not carry log noise.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/Pamacea/claude-mem/internal/config"
)

// ForWorker returns a logger writing to the shared log file and stderr.
func ForWorker(dataDir string) zerolog.Logger {
	return build(dataDir, "worker", true)
}

// ForHook returns a logger for a hook process writing to the log file only.
func ForHook(dataDir, hook string) zerolog.Logger {
	return build(dataDir, hook, false)
}

func build(dataDir, component string, stderr bool) zerolog.Logger {
	var writers []io.Writer
	if f := openLogFile(dataDir); f != nil {
		writers = append(writers, f)
	}
	if stderr {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	logger := zerolog.New(io.MultiWriter(writers...)).With().
		Timestamp().
		Str("component", component).
		Logger()
	return logger.Level(levelFromEnv())
}

func openLogFile(dataDir string) *os.File {
	path := config.LogPath(dataDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil
	}
	return f
}

func levelFromEnv() zerolog.Level {
	switch os.Getenv("CLAUDE_MEM_LOG") {
	case "trace":
		return zerolog.TraceLevel
	case "debug", "1", "true":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
