package player

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// tightThreshold is the correction bound right after a seek, play or
	// delay change.
	tightThreshold = 0.05

	// driftThreshold is the looser bound used by the periodic check, so
	// small scheduling jitter does not cause constant re-seeking.
	driftThreshold = 0.2

	// driftInterval is how often drift is checked during playback.
	driftInterval = 5 * time.Second
)

// Player plays a video track with an optional replacement audio track and
// keeps the two aligned. The audio target position is always the video
// position minus the configured delay.
type Player struct {
	mu sync.Mutex

	video Medium
	audio Medium

	playing       bool
	delay         time.Duration
	rate          float64
	volume        float64
	muted         bool
	unlocked      bool
	audioDisabled bool

	ticker    *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
	log       *zap.Logger
}

// New wraps a video track and starts the periodic drift check.
func New(video Medium, log *zap.Logger) *Player {
	p := &Player{
		video:  video,
		rate:   1.0,
		volume: 1.0,
		ticker: time.NewTicker(driftInterval),
		done:   make(chan struct{}),
		log:    log,
	}
	go p.driftLoop()
	return p
}

// Close stops the drift check goroutine. Safe to call more than once.
func (p *Player) Close() {
	p.closeOnce.Do(func() {
		p.ticker.Stop()
		close(p.done)
	})
}

func (p *Player) driftLoop() {
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C:
			p.mu.Lock()
			p.correctDrift()
			p.mu.Unlock()
		}
	}
}

// LoadAudio attaches a replacement audio track. The sync delay resets,
// since delay is a property of a specific recording.
func (p *Player) LoadAudio(audio Medium) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.audio != nil {
		p.audio.Pause()
	}
	p.audio = audio
	p.audioDisabled = false
	p.delay = 0

	audio.SetRate(p.rate)
	audio.SetVolume(p.volume)
	audio.SetMuted(p.muted)

	if p.playing {
		p.syncAudio(true)
		p.playAudio()
	}
}

// HasAudio reports whether a usable external audio track is attached.
func (p *Player) HasAudio() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.audio != nil && !p.audioDisabled
}

// Playing reports whether playback is running.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// TogglePlay flips between playing and paused and returns the new state.
func (p *Player) TogglePlay() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.playing {
		p.pauseLocked()
		return false, nil
	}

	if err := p.video.Play(); err != nil {
		return false, err
	}
	p.playing = true
	p.syncAudio(true)
	p.playAudio()
	return true, nil
}

// Play starts playback if paused.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.playing {
		return nil
	}
	if err := p.video.Play(); err != nil {
		return err
	}
	p.playing = true
	p.syncAudio(true)
	p.playAudio()
	return nil
}

// Pause stops playback.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauseLocked()
}

func (p *Player) pauseLocked() {
	p.playing = false
	p.video.Pause()
	if p.audio != nil {
		p.audio.Pause()
	}
}

// Seek jumps to a fraction of the video duration and immediately realigns
// the audio.
func (p *Player) Seek(ratio float64) {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.video.SetCurrentTime(ratio * p.video.Duration())
	p.syncAudio(true)
}

// Position returns the video position and duration in seconds.
func (p *Player) Position() (current, duration float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.video.CurrentTime(), p.video.Duration()
}

// Delay returns the audio delay.
func (p *Player) Delay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delay
}

// SetDelay sets the audio delay and realigns immediately. Positive delay
// plays the audio behind the video.
func (p *Player) SetDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
	p.syncAudio(true)
}

// AdjustDelay shifts the delay by delta and returns the new value.
func (p *Player) AdjustDelay(delta time.Duration) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay += delta
	p.syncAudio(true)
	return p.delay
}

// SetRate sets the playback rate on both tracks.
func (p *Player) SetRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rate = rate
	p.video.SetRate(rate)
	if p.audio != nil {
		p.audio.SetRate(rate)
	}
}

// SetVolume sets the volume on both tracks.
func (p *Player) SetVolume(volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.volume = volume
	p.video.SetVolume(volume)
	if p.audio != nil {
		p.audio.SetVolume(volume)
	}
}

// SetMuted mutes or unmutes both tracks.
func (p *Player) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.muted = muted
	p.video.SetMuted(muted)
	if p.audio != nil {
		p.audio.SetMuted(muted)
	}
}

// Unlock performs the play-then-pause gesture some media backends require
// before programmatic playback is allowed, on both tracks. Calling it
// again is a no-op.
func (p *Player) Unlock() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.unlocked {
		return
	}
	if err := p.video.Play(); err == nil {
		p.video.Pause()
	}
	if p.audio != nil && !p.audioDisabled {
		if err := p.audio.Play(); err == nil {
			p.audio.Pause()
		}
	}
	p.unlocked = true
}

// playAudio starts the audio track, disabling it on failure so playback
// continues with the video's own sound. Callers hold the lock.
func (p *Player) playAudio() {
	if p.audio == nil || p.audioDisabled {
		return
	}
	if err := p.audio.Play(); err != nil {
		p.disableAudio(err)
	}
}

// syncAudio aligns the audio position to the video position minus the
// delay. tight selects the post-seek bound; the periodic check uses the
// looser one. Callers hold the lock.
func (p *Player) syncAudio(tight bool) {
	if p.audio == nil || p.audioDisabled {
		return
	}

	threshold := driftThreshold
	if tight {
		threshold = tightThreshold
	}

	target := p.video.CurrentTime() - p.delay.Seconds()
	if target < 0 {
		target = 0
	}

	diff := p.audio.CurrentTime() - target
	if diff < 0 {
		diff = -diff
	}
	if diff > threshold {
		p.log.Debug("correcting audio position",
			zap.Float64("drift", diff),
			zap.Float64("target", target))
		p.audio.SetCurrentTime(target)
	}
}

// correctDrift is the periodic check. A failed audio track is retired here
// rather than aborting playback. Callers hold the lock.
func (p *Player) correctDrift() {
	if !p.playing || p.audio == nil || p.audioDisabled {
		return
	}
	if merr := p.audio.Err(); merr != nil {
		p.disableAudio(merr)
		return
	}
	p.syncAudio(false)
}

func (p *Player) disableAudio(err error) {
	p.log.Warn("external audio disabled", zap.Error(err))
	p.audio.Pause()
	p.audioDisabled = true
}
