// Package task tracks backend tasks from submission to completion and
// resolves the download location of their results.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clonesync/csync/pkg/api"
	"github.com/clonesync/csync/pkg/models"
)

// ErrPollTimeout is returned when a task does not reach a terminal state
// within the polling window. The backend may still finish the task.
var ErrPollTimeout = errors.New("operation timeout: task did not finish within the polling window")

// State is the poller's position in its lifecycle.
type State string

const (
	StateIdle     State = "idle"
	StatePolling  State = "polling"
	StateDone     State = "done"
	StateFailed   State = "failed"
	StateTimedOut State = "timed_out"
)

// PollConfig controls the polling loop.
type PollConfig struct {
	// Interval between status checks. Failed checks wait twice this.
	Interval time.Duration

	// MaxConsecutiveFailures aborts polling after this many status checks
	// in a row fail with a non-404 error.
	MaxConsecutiveFailures int

	// MaxWait bounds the whole poll.
	MaxWait time.Duration

	// SynthesizeOn404 turns a 404 from the status endpoint into a
	// degraded completed result instead of an error. Deployments without
	// a task store rely on this.
	SynthesizeOn404 bool
}

// DefaultPollConfig matches the backend's expectations: one check per
// second for at most ten minutes, giving up after five straight failures.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:               time.Second,
		MaxConsecutiveFailures: 5,
		MaxWait:                10 * time.Minute,
		SynthesizeOn404:        true,
	}
}

// StatusClient is the slice of the API client the poller needs.
type StatusClient interface {
	GetTask(ctx context.Context, taskID string) (models.TaskStatusResponse, error)
}

// Poller drives one task to a terminal state.
type Poller struct {
	client StatusClient
	cfg    PollConfig
	clock  Clock
	log    *zap.Logger

	mu       sync.Mutex
	state    State
	progress int
}

// NewPoller builds a poller. clock may be nil, which means real time.
func NewPoller(client StatusClient, cfg PollConfig, clock Clock, log *zap.Logger) *Poller {
	if clock == nil {
		clock = RealClock()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Poller{
		client: client,
		cfg:    cfg,
		clock:  clock,
		log:    log,
		state:  StateIdle,
	}
}

// State returns the poller's current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Progress returns the last reported progress percentage.
func (p *Poller) Progress() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Poller) setProgress(n int, onProgress func(int)) {
	p.mu.Lock()
	p.progress = n
	p.mu.Unlock()
	if onProgress != nil {
		onProgress(n)
	}
}

// Poll checks the task once per interval until it completes, fails, or the
// window closes. When the backend omits a progress figure, progress is
// synthesized by slow increments capped at 95 so callers still see
// activity.
func (p *Poller) Poll(ctx context.Context, taskID string, onProgress func(int)) (models.TaskResult, error) {
	p.setState(StatePolling)
	deadline := p.clock.Now().Add(p.cfg.MaxWait)

	var failures int
	var last models.TaskStatus

	for {
		resp, err := p.client.GetTask(ctx, taskID)
		if err != nil {
			result, done, perr := p.handlePollError(taskID, err, &failures, onProgress)
			if done {
				return result, perr
			}
			if waitErr := p.wait(ctx, 2*p.cfg.Interval); waitErr != nil {
				p.setState(StateFailed)
				return models.TaskResult{}, waitErr
			}
			continue
		}
		failures = 0

		// The backend must never move a task backwards or out of a
		// terminal state across a poll sequence.
		if resp.Status != "" {
			if last != "" && last != resp.Status {
				if verr := models.ValidateTransition(last, resp.Status); verr != nil {
					p.setState(StateFailed)
					return models.TaskResult{}, fmt.Errorf("task %s status sequence rejected: %w", taskID, verr)
				}
			}
			last = resp.Status
		}

		switch resp.Status {
		case models.TaskStatusCompleted:
			p.setProgress(100, onProgress)
			p.setState(StateDone)
			return models.TaskResult{
				ID:        resp.ID,
				Status:    models.TaskStatusCompleted,
				Progress:  100,
				OutputURL: resp.OutputURL(),
				Data:      resp.Data,
			}, nil

		case models.TaskStatusFailed:
			p.setState(StateFailed)
			return models.TaskResult{
				ID:     resp.ID,
				Status: models.TaskStatusFailed,
			}, &api.TaskFailedError{TaskID: taskID, Message: resp.Error}

		default:
			if resp.Progress != nil {
				p.setProgress(*resp.Progress, onProgress)
			} else {
				next := p.Progress() + 1
				if next > 95 {
					next = 95
				}
				p.setProgress(next, onProgress)
			}
		}

		if !p.clock.Now().Before(deadline) {
			p.log.Warn("task polling timed out", zap.String("task_id", taskID))
			p.setState(StateTimedOut)
			return models.TaskResult{
				ID:       taskID,
				Status:   models.TaskStatusTimedOut,
				Progress: p.Progress(),
			}, ErrPollTimeout
		}

		if err := p.wait(ctx, p.cfg.Interval); err != nil {
			p.setState(StateFailed)
			return models.TaskResult{}, err
		}
	}
}

// handlePollError classifies a failed status check. A 404 can mean the
// deployment has no task store at all; in that case a degraded completed
// result is synthesized rather than reported as an error.
func (p *Poller) handlePollError(taskID string, err error, failures *int, onProgress func(int)) (models.TaskResult, bool, error) {
	if p.cfg.SynthesizeOn404 && errors.Is(err, api.ErrEndpointUnavailable) {
		p.log.Warn("task status endpoint unavailable, synthesizing result",
			zap.String("task_id", taskID))
		p.setProgress(100, onProgress)
		p.setState(StateDone)

		outputURL := SynthesizeOutputPath(taskID)
		return models.TaskResult{
			ID:             taskID,
			Status:         models.TaskStatusCompleted,
			Progress:       100,
			OutputURL:      outputURL,
			Data:           map[string]any{"output_url": outputURL},
			Degraded:       true,
			DegradedReason: "task status endpoint unavailable",
		}, true, nil
	}

	*failures++
	p.log.Debug("task status check failed",
		zap.String("task_id", taskID),
		zap.Int("consecutive_failures", *failures),
		zap.Error(err))

	if *failures >= p.cfg.MaxConsecutiveFailures {
		p.setState(StateFailed)
		return models.TaskResult{}, true,
			fmt.Errorf("checking task %s status failed %d times in a row: %w", taskID, *failures, err)
	}
	return models.TaskResult{}, false, nil
}

func (p *Poller) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.clock.After(d):
		return nil
	}
}
