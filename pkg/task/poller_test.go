package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clonesync/csync/pkg/api"
	"github.com/clonesync/csync/pkg/models"
)

// fakeClock advances virtual time instantly on every wait, so polling
// loops run at full speed in tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// scriptedClient replays a fixed sequence of status responses. The last
// entry repeats once the script runs out.
type scriptedClient struct {
	mu     sync.Mutex
	script []func() (models.TaskStatusResponse, error)
	calls  int
}

func (s *scriptedClient) GetTask(ctx context.Context, taskID string) (models.TaskStatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	return s.script[i]()
}

func processing(progress *int) func() (models.TaskStatusResponse, error) {
	return func() (models.TaskStatusResponse, error) {
		return models.TaskStatusResponse{ID: "t", Status: models.TaskStatusProcessing, Progress: progress}, nil
	}
}

func completed(outputURL string) func() (models.TaskStatusResponse, error) {
	return func() (models.TaskStatusResponse, error) {
		return models.TaskStatusResponse{
			ID:     "t",
			Status: models.TaskStatusCompleted,
			Data:   map[string]any{"output_url": outputURL},
		}, nil
	}
}

func failing(err error) func() (models.TaskStatusResponse, error) {
	return func() (models.TaskStatusResponse, error) {
		return models.TaskStatusResponse{}, err
	}
}

func intPtr(n int) *int { return &n }

func newTestPoller(client StatusClient, cfg PollConfig) *Poller {
	return NewPoller(client, cfg, newFakeClock(), zap.NewNop())
}

func TestPollCompletes(t *testing.T) {
	client := &scriptedClient{script: []func() (models.TaskStatusResponse, error){
		processing(nil),
		processing(nil),
		completed("/out/a.mp4"),
	}}

	p := newTestPoller(client, DefaultPollConfig())

	var progress []int
	result, err := p.Poll(context.Background(), "t", func(n int) { progress = append(progress, n) })
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusCompleted, result.Status)
	assert.Equal(t, "/out/a.mp4", result.OutputURL)
	assert.False(t, result.Degraded)
	assert.Equal(t, StateDone, p.State())

	// Synthesized progress ticks up while the backend stays silent, then
	// jumps to 100 on completion.
	assert.Equal(t, []int{1, 2, 100}, progress)
}

func TestPollUsesBackendProgress(t *testing.T) {
	client := &scriptedClient{script: []func() (models.TaskStatusResponse, error){
		processing(intPtr(40)),
		processing(intPtr(80)),
		completed("/out/a.mp4"),
	}}

	p := newTestPoller(client, DefaultPollConfig())

	var progress []int
	_, err := p.Poll(context.Background(), "t", func(n int) { progress = append(progress, n) })
	require.NoError(t, err)
	assert.Equal(t, []int{40, 80, 100}, progress)
}

func TestPollSynthesizedProgressCapsAt95(t *testing.T) {
	cfg := DefaultPollConfig()
	cfg.MaxWait = 200 * time.Second

	client := &scriptedClient{script: []func() (models.TaskStatusResponse, error){
		processing(nil),
	}}

	p := newTestPoller(client, cfg)

	_, err := p.Poll(context.Background(), "t", nil)
	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.Equal(t, 95, p.Progress())
	assert.Equal(t, StateTimedOut, p.State())
}

func TestPollRejectsStatusRegression(t *testing.T) {
	uploading := func() (models.TaskStatusResponse, error) {
		return models.TaskStatusResponse{ID: "t", Status: models.TaskStatusUploading}, nil
	}
	client := &scriptedClient{script: []func() (models.TaskStatusResponse, error){
		processing(nil),
		uploading,
	}}

	p := newTestPoller(client, DefaultPollConfig())

	_, err := p.Poll(context.Background(), "t", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transition")
	assert.Equal(t, StateFailed, p.State())
}

func TestPollTaskFailure(t *testing.T) {
	client := &scriptedClient{script: []func() (models.TaskStatusResponse, error){
		processing(nil),
		func() (models.TaskStatusResponse, error) {
			return models.TaskStatusResponse{ID: "t", Status: models.TaskStatusFailed, Error: "face not detected"}, nil
		},
	}}

	p := newTestPoller(client, DefaultPollConfig())

	_, err := p.Poll(context.Background(), "t", nil)
	require.Error(t, err)

	var tfe *api.TaskFailedError
	require.ErrorAs(t, err, &tfe)
	assert.Equal(t, "face not detected", tfe.Message)
	assert.Equal(t, StateFailed, p.State())
}

func TestPoll404SynthesizesDegradedResult(t *testing.T) {
	notFound := &api.ServerError{StatusCode: 404, Message: "Not Found"}
	client := &scriptedClient{script: []func() (models.TaskStatusResponse, error){
		failing(notFound),
	}}

	p := newTestPoller(client, DefaultPollConfig())

	result, err := p.Poll(context.Background(), "abc123-lipSyncTask-42", nil)
	require.NoError(t, err)

	assert.True(t, result.Degraded)
	assert.NotEmpty(t, result.DegradedReason)
	assert.Equal(t, models.TaskStatusCompleted, result.Status)
	assert.Equal(t, "/media/outputs/lipsync/abc123.mp4", result.OutputURL)
	assert.Equal(t, StateDone, p.State())
}

func TestPoll404ErrorsWhenSynthesisDisabled(t *testing.T) {
	notFound := &api.ServerError{StatusCode: 404, Message: "Not Found"}
	client := &scriptedClient{script: []func() (models.TaskStatusResponse, error){
		failing(notFound),
	}}

	cfg := DefaultPollConfig()
	cfg.SynthesizeOn404 = false

	p := newTestPoller(client, cfg)

	_, err := p.Poll(context.Background(), "t", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrEndpointUnavailable)
}

func TestPollGivesUpAfterConsecutiveFailures(t *testing.T) {
	boom := errors.New("connection refused")
	client := &scriptedClient{script: []func() (models.TaskStatusResponse, error){
		failing(boom),
	}}

	p := newTestPoller(client, DefaultPollConfig())

	_, err := p.Poll(context.Background(), "t", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 5, client.calls)
	assert.Equal(t, StateFailed, p.State())
}

func TestPollSuccessResetsFailureCount(t *testing.T) {
	boom := errors.New("connection refused")
	client := &scriptedClient{script: []func() (models.TaskStatusResponse, error){
		failing(boom),
		failing(boom),
		failing(boom),
		failing(boom),
		processing(nil),
		failing(boom),
		failing(boom),
		completed("/out/b.mp4"),
	}}

	p := newTestPoller(client, DefaultPollConfig())

	result, err := p.Poll(context.Background(), "t", nil)
	require.NoError(t, err)
	assert.Equal(t, "/out/b.mp4", result.OutputURL)
}

func TestPollTimesOut(t *testing.T) {
	cfg := DefaultPollConfig()
	cfg.MaxWait = 10 * time.Second

	client := &scriptedClient{script: []func() (models.TaskStatusResponse, error){
		processing(nil),
	}}

	p := newTestPoller(client, cfg)

	result, err := p.Poll(context.Background(), "t", nil)
	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.Equal(t, models.TaskStatusTimedOut, result.Status)
}

func TestPollHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &scriptedClient{script: []func() (models.TaskStatusResponse, error){
		processing(nil),
	}}

	p := newTestPoller(client, DefaultPollConfig())

	_, err := p.Poll(ctx, "t", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
