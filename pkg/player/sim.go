package player

import (
	"sync"
	"time"
)

// SimMedium is a clock-driven Medium with no real media behind it. It backs
// the demo playback mode and the sync tests.
type SimMedium struct {
	mu sync.Mutex

	now      func() time.Time
	duration float64

	playing    bool
	pos        float64
	lastUpdate time.Time

	rate   float64
	volume float64
	muted  bool
	ready  bool
	err    *MediaError

	playErr error
}

// NewSimMedium creates a ready medium of the given duration in seconds.
func NewSimMedium(duration float64) *SimMedium {
	return &SimMedium{
		now:      time.Now,
		duration: duration,
		rate:     1.0,
		volume:   1.0,
		ready:    true,
	}
}

// SetNowFunc replaces the clock. Tests drive position by moving it.
func (m *SimMedium) SetNowFunc(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	m.now = now
	m.lastUpdate = now()
}

// FailWith puts the medium into a terminal error state.
func (m *SimMedium) FailWith(err *MediaError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	m.playing = false
}

// SetPlayError makes subsequent Play calls fail with err.
func (m *SimMedium) SetPlayError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playErr = err
}

// advance folds elapsed wall time into the position. Callers hold the lock.
func (m *SimMedium) advance() {
	now := m.now()
	if m.playing {
		m.pos += now.Sub(m.lastUpdate).Seconds() * m.rate
		if m.pos > m.duration {
			m.pos = m.duration
			m.playing = false
		}
	}
	m.lastUpdate = now
}

func (m *SimMedium) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playErr != nil {
		return m.playErr
	}
	m.advance()
	m.playing = true
	return nil
}

func (m *SimMedium) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	m.playing = false
}

func (m *SimMedium) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	return m.pos
}

func (m *SimMedium) SetCurrentTime(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	if seconds < 0 {
		seconds = 0
	}
	if seconds > m.duration {
		seconds = m.duration
	}
	m.pos = seconds
}

func (m *SimMedium) Duration() float64 { return m.duration }

func (m *SimMedium) SetRate(rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	m.rate = rate
}

func (m *SimMedium) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

func (m *SimMedium) SetVolume(volume float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = volume
}

func (m *SimMedium) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *SimMedium) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
}

func (m *SimMedium) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

func (m *SimMedium) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *SimMedium) Err() *MediaError {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// IsPlaying reports whether the medium is advancing.
func (m *SimMedium) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	return m.playing
}
