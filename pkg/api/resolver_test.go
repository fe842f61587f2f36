package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectResolverAddsPrefixOnce(t *testing.T) {
	r := NewResolver("http://localhost:8000", ModeDirect)

	plan := r.Resolve("GET", "/tasks/abc", nil)
	assert.Equal(t, "http://localhost:8000/api/v1/tasks/abc", plan.URL)
	assert.Equal(t, "GET", plan.Method)
	assert.False(t, plan.Enveloped)

	// A caller that already included the prefix must not get it twice.
	plan = r.Resolve("GET", "/api/v1/tasks/abc", nil)
	assert.Equal(t, "http://localhost:8000/api/v1/tasks/abc", plan.URL)
}

func TestDirectResolverNormalizesSlashes(t *testing.T) {
	r := NewResolver("http://localhost:8000/", ModeDirect)

	plan := r.Resolve("POST", "lip_sync/start", nil)
	assert.Equal(t, "http://localhost:8000/api/v1/lip_sync/start", plan.URL)
}

func TestServerlessResolverEnvelopesByDefault(t *testing.T) {
	r := NewResolver("https://gw.example.com", ModeServerless)

	payload := map[string]string{"engine": "wav2lip"}
	plan := r.Resolve("POST", "/api/v1/lip_sync/engine", payload)

	assert.Equal(t, "https://gw.example.com/run", plan.URL)
	assert.Equal(t, "POST", plan.Method)
	assert.True(t, plan.Enveloped)

	env, ok := plan.Body.(Envelope)
	require.True(t, ok)
	assert.Equal(t, "/lip_sync/engine", env.Input.Endpoint)
	assert.Equal(t, "POST", env.Input.Method)
	assert.Equal(t, payload, env.Input.Payload)
}

func TestServerlessResolverBypassesUploads(t *testing.T) {
	r := NewResolver("https://gw.example.com", ModeServerless)

	for _, path := range []string{"/upload", "/upload/audio", "/upload/video", "/upload/chunk"} {
		plan := r.Resolve("POST", path, nil)
		assert.Equal(t, "https://gw.example.com"+path, plan.URL, path)
		assert.False(t, plan.Enveloped, path)
	}
}

func TestServerlessResolverBypassesEngineStatus(t *testing.T) {
	r := NewResolver("https://gw.example.com", ModeServerless)

	plan := r.Resolve("GET", "/lip_sync/engine/status?engine=sadtalker", nil)
	assert.Equal(t, "https://gw.example.com/lip_sync/engine/status?engine=sadtalker", plan.URL)
	assert.Equal(t, "GET", plan.Method)
	assert.False(t, plan.Enveloped)
}

func TestServerlessResolverForcesPostThroughRun(t *testing.T) {
	r := NewResolver("https://gw.example.com", ModeServerless)

	plan := r.Resolve("GET", "/tasks/abc", nil)
	assert.Equal(t, "POST", plan.Method)

	env := plan.Body.(Envelope)
	assert.Equal(t, "GET", env.Input.Method)
	assert.Equal(t, "/tasks/abc", env.Input.Endpoint)
}

func TestDetectMode(t *testing.T) {
	tests := []struct {
		url  string
		want Mode
	}{
		{"http://localhost:8000", ModeDirect},
		{"http://127.0.0.1:8000", ModeDirect},
		{"http://[::1]:8000", ModeDirect},
		{"https://abc123.api.example.com", ModeServerless},
		{"https://gw.example.com/v2/abc", ModeServerless},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectMode(tt.url), tt.url)
	}
}
