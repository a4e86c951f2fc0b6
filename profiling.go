package main

import (
	"log/slog"
	"os"
	"runtime/pprof"
	"sync"
)

// startDefaultPGORecording begins writing CPU profiles to the provided path.
// The returned stop function is safe to call more than once.
func startDefaultPGORecording(path string) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, err
	}
	var once sync.Once
	stop := func() {
		once.Do(func() {
			pprof.StopCPUProfile()
			if err := f.Close(); err != nil {
				slog.Warn("closing profile", "path", path, "error", err)
				return
			}
			slog.Info("profile written", "path", path)
		})
	}
	return stop, nil
}
