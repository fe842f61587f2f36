package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clonesync/csync/pkg/api"
	"github.com/clonesync/csync/pkg/models"
)

func TestSynthesizeOutputPath(t *testing.T) {
	tests := []struct {
		taskID string
		want   string
	}{
		{"abc123-lipSyncTask-1", "/media/outputs/lipsync/abc123.mp4"},
		{"xyz-audioTask-2", "/media/audio/xyz.mp3"},
		{"xyz-voiceTask-9", "/media/audio/xyz.mp3"},
		{"file42-uploadTask-3", "/media/inputs/file42.mp4"},
		{"plainid", "/media/inputs/plainid.mp4"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SynthesizeOutputPath(tt.taskID), tt.taskID)
	}
}

func TestResolveAbsolutizesRelativeURL(t *testing.T) {
	client := &scriptedClient{script: []func() (models.TaskStatusResponse, error){
		completed("/media/outputs/lipsync/a.mp4"),
	}}
	r := NewDownloadResolver(client, "https://gw.example.com/", zap.NewNop())

	info, err := r.Resolve(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "https://gw.example.com/media/outputs/lipsync/a.mp4", info.URL)
	assert.False(t, info.Degraded)
}

func TestResolveKeepsAbsoluteURL(t *testing.T) {
	client := &scriptedClient{script: []func() (models.TaskStatusResponse, error){
		completed("https://cdn.example.com/a.mp4"),
	}}
	r := NewDownloadResolver(client, "https://gw.example.com", zap.NewNop())

	info, err := r.Resolve(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.mp4", info.URL)
}

func TestResolveCachesConfirmedResults(t *testing.T) {
	client := &scriptedClient{script: []func() (models.TaskStatusResponse, error){
		completed("/out/a.mp4"),
	}}
	r := NewDownloadResolver(client, "https://gw.example.com", zap.NewNop())

	_, err := r.Resolve(context.Background(), "t")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "t")
	require.NoError(t, err)

	assert.Equal(t, 1, client.calls)
}

func TestResolveNotReady(t *testing.T) {
	client := &scriptedClient{script: []func() (models.TaskStatusResponse, error){
		processing(nil),
	}}
	r := NewDownloadResolver(client, "https://gw.example.com", zap.NewNop())

	_, err := r.Resolve(context.Background(), "t")
	assert.ErrorIs(t, err, ErrResultNotReady)
}

func TestResolve404SynthesizesDegradedURL(t *testing.T) {
	notFound := &api.ServerError{StatusCode: 404}
	client := &scriptedClient{script: []func() (models.TaskStatusResponse, error){
		failing(notFound),
	}}
	r := NewDownloadResolver(client, "https://gw.example.com", zap.NewNop())

	info, err := r.Resolve(context.Background(), "song1-audioTask-7")
	require.NoError(t, err)
	assert.True(t, info.Degraded)
	assert.Equal(t, "https://gw.example.com/media/audio/song1.mp3", info.URL)

	// Degraded guesses are not cached; a later call probes again.
	_, err = r.Resolve(context.Background(), "song1-audioTask-7")
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
}
