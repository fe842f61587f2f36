package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clonesync/csync/pkg/models"
)

// StatusAPI is the slice of the API client the tracker needs.
type StatusAPI interface {
	PreloadEngine(ctx context.Context, engine models.Engine) (models.PreloadResponse, error)
	EngineStatus(ctx context.Context, engine models.Engine) (models.EngineStatusResponse, error)
	SetEngine(ctx context.Context, engine models.Engine) error
}

// TrackerConfig controls readiness tracking.
type TrackerConfig struct {
	// PollInterval between backend status sweeps in Watch.
	PollInterval time.Duration

	// MaxPollFailures is how many consecutive status failures an engine
	// tolerates before it is marked errored. Below the threshold the
	// previous state is kept so transient failures do not flicker the
	// display.
	MaxPollFailures int

	// DemoMode runs without a backend: preloads succeed after
	// SimulatedDelay and Watch does nothing.
	DemoMode       bool
	SimulatedDelay time.Duration

	// OnChange, if set, is called with every state transition.
	OnChange func(models.EngineStatusInfo)
}

// DefaultTrackerConfig polls every two seconds and tolerates three failures.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		PollInterval:    2 * time.Second,
		MaxPollFailures: 3,
		SimulatedDelay:  1500 * time.Millisecond,
	}
}

// Tracker follows the readiness of every engine and knows which one is
// active.
type Tracker struct {
	api StatusAPI
	cfg TrackerConfig
	log *zap.Logger

	mu       sync.RWMutex
	current  models.Engine
	states   map[models.Engine]models.EngineStatusInfo
	failures map[models.Engine]int
}

// NewTracker starts with every engine idle and the default engine active.
func NewTracker(api StatusAPI, cfg TrackerConfig, log *zap.Logger) *Tracker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxPollFailures <= 0 {
		cfg.MaxPollFailures = 3
	}

	states := make(map[models.Engine]models.EngineStatusInfo)
	for _, e := range models.AllEngines() {
		states[e] = models.EngineStatusInfo{Engine: e, State: models.EngineIdle}
	}

	return &Tracker{
		api:      api,
		cfg:      cfg,
		log:      log,
		current:  models.DefaultEngine,
		states:   states,
		failures: make(map[models.Engine]int),
	}
}

// Current returns the active engine.
func (t *Tracker) Current() models.Engine {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Status returns the tracked state of one engine.
func (t *Tracker) Status(e models.Engine) models.EngineStatusInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[e]
}

// CurrentStatus returns the tracked state of the active engine.
func (t *Tracker) CurrentStatus() models.EngineStatusInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[t.current]
}

// IsReady reports whether the active engine can take jobs.
func (t *Tracker) IsReady() bool {
	return t.CurrentStatus().State == models.EngineReady
}

// All returns every engine's state in display order.
func (t *Tracker) All() []models.EngineStatusInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.EngineStatusInfo, 0, len(t.states))
	for _, e := range models.AllEngines() {
		out = append(out, t.states[e])
	}
	return out
}

func (t *Tracker) setState(e models.Engine, state models.EngineState, progress int, errMsg, fallbackReason string) {
	if state == models.EngineReady {
		progress = 100
	}
	if progress < 0 {
		progress = 0
	} else if progress > 100 {
		progress = 100
	}

	t.mu.Lock()
	info := t.states[e]
	changed := info.State != state || info.Progress != progress ||
		info.ErrorMessage != errMsg || info.FallbackReason != fallbackReason
	info.State = state
	info.Progress = progress
	info.ErrorMessage = errMsg
	info.FallbackReason = fallbackReason
	t.states[e] = info
	t.mu.Unlock()

	if changed && t.cfg.OnChange != nil {
		t.cfg.OnChange(info)
	}
}

// Preload asks the backend to load an engine and records the outcome. A
// fallback answer counts as ready, with the reason recorded.
func (t *Tracker) Preload(ctx context.Context, e models.Engine) error {
	if !e.IsValid() {
		return fmt.Errorf("unknown engine %q", e)
	}

	t.setState(e, models.EngineLoading, 0, "", "")

	if t.cfg.DemoMode {
		if t.cfg.SimulatedDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.cfg.SimulatedDelay):
			}
		}
		t.setState(e, models.EngineReady, 100, "", "")
		return nil
	}

	resp, err := t.api.PreloadEngine(ctx, e)
	if err != nil {
		t.log.Error("engine preload failed", zap.String("engine", string(e)), zap.Error(err))
		t.setState(e, models.EngineError, 0, err.Error(), "")
		return fmt.Errorf("preload engine %s: %w", e, err)
	}

	switch {
	case resp.Fallback:
		reason := resp.Message
		if reason == "" {
			reason = "backend substituted another engine"
		}
		t.log.Warn("engine preload fell back",
			zap.String("engine", string(e)),
			zap.String("reason", reason))
		t.setState(e, models.EngineReady, 100, "", reason)
		return nil

	case resp.Success && resp.Status == "ready":
		t.setState(e, models.EngineReady, 100, "", "")
		return nil

	default:
		msg := resp.Error
		if msg == "" {
			msg = fmt.Sprintf("preload failed for %s", e)
		}
		t.setState(e, models.EngineError, 0, msg, "")
		return fmt.Errorf("preload engine %s: %s", e, msg)
	}
}

// ChangeEngine makes e the active engine. Selecting the engine that is
// already active does nothing, and an engine that is already ready or
// loading is not preloaded again.
func (t *Tracker) ChangeEngine(ctx context.Context, e models.Engine) error {
	if !e.IsValid() {
		return fmt.Errorf("unknown engine %q", e)
	}

	t.mu.Lock()
	if e == t.current {
		t.mu.Unlock()
		return nil
	}
	t.current = e
	state := t.states[e].State
	t.mu.Unlock()

	t.log.Info("changing engine", zap.String("engine", string(e)))

	if t.cfg.DemoMode {
		t.setState(e, models.EngineReady, 100, "", "")
		return nil
	}

	if err := t.api.SetEngine(ctx, e); err != nil {
		return fmt.Errorf("set engine %s: %w", e, err)
	}

	switch state {
	case models.EngineReady, models.EngineLoading:
		return nil
	}
	return t.Preload(ctx, e)
}

// Watch polls the backend's per-engine status until ctx is cancelled. It
// returns immediately in demo mode.
func (t *Tracker) Watch(ctx context.Context) {
	if t.cfg.DemoMode {
		return
	}

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sweep(ctx)
		}
	}
}

// sweep checks every engine once.
func (t *Tracker) sweep(ctx context.Context) {
	for _, e := range models.AllEngines() {
		resp, err := t.api.EngineStatus(ctx, e)
		if err != nil {
			t.mu.Lock()
			t.failures[e]++
			count := t.failures[e]
			t.mu.Unlock()

			if count >= t.cfg.MaxPollFailures {
				t.setState(e, models.EngineError, t.Status(e).Progress, "failed to poll engine status", "")
			}
			continue
		}

		t.mu.Lock()
		t.failures[e] = 0
		t.mu.Unlock()

		switch {
		case resp.Loaded && resp.Status == "available":
			t.setState(e, models.EngineReady, 100, "", "")
		case !resp.Loaded && resp.Status == "unavailable":
			t.setState(e, models.EngineLoading, resp.Progress, "", "")
		default:
			t.setState(e, models.EngineIdle, resp.Progress, "", "")
		}
	}
}
