package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Watcher re-reads a config file when its modification time changes. It is
// polled from the frame loop, so it needs no locking.
type Watcher struct {
	path    string
	modTime time.Time
	current *Config
}

// NewWatcher loads path (or the defaults if path is empty) and remembers its
// modification time.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: path, current: cfg}
	if path != "" {
		if st, err := os.Stat(path); err == nil {
			w.modTime = st.ModTime()
		}
	}
	return w, nil
}

// Current returns the last successfully loaded configuration.
func (w *Watcher) Current() *Config { return w.current }

// Path returns the watched file, empty when running on defaults.
func (w *Watcher) Path() string { return w.path }

// Poll reloads the file if it changed since the last load. A broken file keeps
// the previous configuration and is reported as an error.
func (w *Watcher) Poll() (*Config, bool, error) {
	if w.path == "" {
		return w.current, false, nil
	}
	st, err := os.Stat(w.path)
	if err != nil {
		return w.current, false, fmt.Errorf("stat config: %w", err)
	}
	if st.ModTime().Equal(w.modTime) {
		return w.current, false, nil
	}
	w.modTime = st.ModTime()
	return w.reload()
}

// Reload re-reads the file unconditionally.
func (w *Watcher) Reload() (*Config, bool, error) {
	if w.path == "" {
		return w.current, false, nil
	}
	return w.reload()
}

func (w *Watcher) reload() (*Config, bool, error) {
	cfg, err := Load(w.path)
	if err != nil {
		return w.current, false, err
	}
	w.current = cfg
	slog.Info("configuration reloaded", "path", w.path)
	return cfg, true, nil
}
