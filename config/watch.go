package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kava-labs/kava-dev-proxy/logging"
)

const DefaultWatchDebounce = 250 * time.Millisecond

// WatchExternal calls onChange whenever one of the external config files
// in dir is written, created, renamed or removed, until ctx is done.
// Bursts of events closer than debounce apart trigger a single call.
func WatchExternal(ctx context.Context, dir string, debounce time.Duration, logger *logging.ServiceLogger, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	watched := make(map[string]bool, len(ExternalConfigFiles))
	for _, name := range ExternalConfigFiles {
		watched[name] = true
	}

	go func() {
		defer watcher.Close()

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !watched[filepath.Base(event.Name)] {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}

				logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("external proxy config changed")

				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, onChange)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error().Err(err).Msg("external proxy config watcher error")
			}
		}
	}()

	return nil
}
