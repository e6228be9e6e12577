// Package config provides configuration reload triggers: SIGHUP and a file
// watcher. Both funnel into a Reloader so that reloads never run
// concurrently.
package config

import (
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// ReloadFunc is called when a reload is triggered. Errors are logged and do
// not stop the triggers.
type ReloadFunc func(configPath string) error

// Reloader serializes reloads of one configuration file.
type Reloader struct {
	mu   sync.Mutex
	path string
	fn   ReloadFunc
}

// NewReloader returns a Reloader for configPath.
func NewReloader(configPath string, fn ReloadFunc) *Reloader {
	return &Reloader{path: configPath, fn: fn}
}

// Path returns the watched configuration path.
func (r *Reloader) Path() string {
	return r.path
}

// Trigger runs the reload function, waiting for any reload in progress.
func (r *Reloader) Trigger(source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	log.Infof("Reloading configuration (%s)...", source)
	if err := r.fn(r.path); err != nil {
		log.Errorf("Configuration reload failed: %v", err)
		return err
	}
	return nil
}

// SetupSIGHUPHandler reloads on every SIGHUP until the returned stop function
// is called.
//
// Usage:
//
//	stop := SetupSIGHUPHandler(reloader)
//	defer stop()
//	// Now: kill -HUP <pid> triggers reload
func SetupSIGHUPHandler(r *Reloader) (stop func()) {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-sighup:
				_ = r.Trigger("SIGHUP")
			case <-done:
				return
			}
		}
	}()

	log.Info("SIGHUP handler configured for config reload")
	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sighup)
			close(done)
		})
	}
}

// WatchConfigFile reloads when the configuration file is written or
// replaced.
//
// The directory is watched rather than the file: editors save by writing a
// temp file and renaming it over the original, which replaces the inode a
// file-level watch is attached to.
//
// The caller closes the returned watcher to stop watching.
func WatchConfigFile(r *Reloader) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	configDir := filepath.Dir(r.Path())
	configName := filepath.Base(r.Path())

	if err := watcher.Add(configDir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != configName {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					_ = r.Trigger("file change")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Errorf("File watcher error: %v", err)
			}
		}
	}()

	log.Infof("Watching config file: %s", r.Path())
	return watcher, nil
}
