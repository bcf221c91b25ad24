// Package beep plays short audio cues on session transitions: recording
// started, recording stopped, session failed.
package beep

var disabled bool

func Disable() { disabled = true }

const (
	sampleRate = 44100

	// Recording started: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// Recording stopped: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Session failed: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

// Platform-specific durations (darwin uses shorter durations)
