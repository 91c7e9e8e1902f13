package worker

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/Pamacea/claude-mem/internal/config"
)

// watchSettings watches the settings file for writes this process did not
// make. Another worker claiming the data directory rewrites settings.json
// with its own port; when that happens this worker shuts down rather than
// serve an address no hook will resolve anymore. expected is the port this
// process registered.
func watchSettings(dataDir string, expected string, log zerolog.Logger, trigger func()) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: settings.json is replaced via
	// rename, which drops a watch on the file itself.
	if err := watcher.Add(dataDir); err != nil {
		watcher.Close()
		return nil, err
	}

	settingsName := filepath.Base(config.SettingsPath(dataDir))

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != settingsName {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				s, err := config.Load(dataDir)
				if err != nil {
					log.Warn().Err(err).Msg("settings file changed but is unreadable")
					continue
				}
				if s.WorkerPort == expected {
					continue
				}
				log.Info().
					Str("registered", expected).
					Str("found", s.WorkerPort).
					Msg("another worker took over the settings file, shutting down")
				trigger()
				return

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("settings watcher error")
			}
		}
	}()

	return watcher, nil
}
