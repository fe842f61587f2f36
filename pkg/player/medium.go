// Package player keeps an external audio track in sync with a video track,
// mirroring play state, rate and volume and correcting drift over time.
package player

import "fmt"

// MediaErrorCode classifies playback failures.
type MediaErrorCode int

const (
	MediaErrAborted     MediaErrorCode = 1
	MediaErrNetwork     MediaErrorCode = 2
	MediaErrDecode      MediaErrorCode = 3
	MediaErrUnsupported MediaErrorCode = 4
)

func (c MediaErrorCode) String() string {
	switch c {
	case MediaErrAborted:
		return "playback aborted"
	case MediaErrNetwork:
		return "network error while loading media"
	case MediaErrDecode:
		return "media decode failed"
	case MediaErrUnsupported:
		return "media format not supported"
	default:
		return fmt.Sprintf("unknown media error %d", int(c))
	}
}

// MediaError is a terminal playback failure on one medium.
type MediaError struct {
	Code    MediaErrorCode
	Message string
}

func (e *MediaError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code.String()
}

// Medium is one playable track. Times are seconds.
type Medium interface {
	Play() error
	Pause()

	CurrentTime() float64
	SetCurrentTime(seconds float64)
	Duration() float64

	SetRate(rate float64)
	SetVolume(volume float64)
	SetMuted(muted bool)

	// Ready reports whether the medium has enough data to play.
	Ready() bool

	// Err returns the terminal playback error, if any.
	Err() *MediaError
}
