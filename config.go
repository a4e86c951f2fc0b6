package main

import "time"

// Runtime constants that are not worth a configuration key.
const (
	pgoRecordDuration     = 15 * time.Second
	pgoProfilePath        = "default.pgo"
	configPollInterval    = time.Second
	autoWalkSpeed         = 0.012
	audioSampleRate       = 48000
	audioBufferDuration   = 80 * time.Millisecond
	headlessFrameDelayMs  = 1000 / 60
	remoteShutdownTimeout = 2 * time.Second
	overlayEnergyHistory  = 120
)
