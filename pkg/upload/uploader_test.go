package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clonesync/csync/pkg/api"
	"github.com/clonesync/csync/pkg/retry"
)

func writeTempFile(t *testing.T, name string, size int) string {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newUploader(t *testing.T, handler http.Handler, mode api.Mode, cfg Config) *Uploader {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := api.NewClient(api.NewResolver(srv.URL, mode), zap.NewNop())
	t.Cleanup(func() { client.Close() })
	return New(client, cfg, zap.NewNop())
}

func TestEndpointForType(t *testing.T) {
	assert.Equal(t, "/upload/audio", EndpointForType("audio/mpeg"))
	assert.Equal(t, "/upload/video", EndpointForType("video/mp4"))
	assert.Equal(t, "/upload", EndpointForType("application/octet-stream"))
	assert.Equal(t, "/upload", EndpointForType(""))
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFileSize = 100

	u := newUploader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}), api.ModeDirect, cfg)

	path := writeTempFile(t, "big.mp4", 200)
	_, err := u.Upload(context.Background(), path, nil)
	assert.ErrorIs(t, err, api.ErrFileTooLarge)
}

func TestUploadSmallFileDirect(t *testing.T) {
	var gotPath, gotName string

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		gotName = header.Filename
		json.NewEncoder(w).Encode(Response{Filename: "song.mp3", BlobName: "inputs/song.mp3"})
	})

	u := newUploader(t, handler, api.ModeDirect, DefaultConfig())
	path := writeTempFile(t, "song.mp3", 2048)

	var progress []int
	resp, err := u.Upload(context.Background(), path, func(p int) { progress = append(progress, p) })
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/upload/audio", gotPath)
	assert.Equal(t, "song.mp3", gotName)
	assert.Equal(t, "inputs/song.mp3", resp.Identifier())

	require.NotEmpty(t, progress)
	assert.Equal(t, 100, progress[len(progress)-1])
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
}

func TestUploadChunked(t *testing.T) {
	const fileSize = 10*1024 + 512 // 11 chunks at 1 KiB

	var chunkIndexes []int
	var totalChunks []int
	var finalized bool
	var received bytes.Buffer

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/upload/init":
			var req struct {
				Filename    string `json:"filename"`
				Filesize    int64  `json:"filesize"`
				ContentType string `json:"content_type"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "clip.mp4", req.Filename)
			assert.Equal(t, int64(fileSize), req.Filesize)
			json.NewEncoder(w).Encode(map[string]string{"upload_id": "up-1"})

		case "/api/v1/upload/chunk":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "up-1", r.FormValue("upload_id"))
			idx, _ := strconv.Atoi(r.FormValue("chunk_index"))
			total, _ := strconv.Atoi(r.FormValue("total_chunks"))
			chunkIndexes = append(chunkIndexes, idx)
			totalChunks = append(totalChunks, total)

			file, _, err := r.FormFile("chunk")
			require.NoError(t, err)
			defer file.Close()
			_, err = received.ReadFrom(file)
			require.NoError(t, err)
			w.WriteHeader(http.StatusOK)

		case "/api/v1/upload/finalize":
			var req map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "up-1", req["upload_id"])
			finalized = true
			json.NewEncoder(w).Encode(Response{Filename: "clip.mp4", BlobName: "inputs/clip.mp4"})

		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	cfg := DefaultConfig()
	cfg.ChunkSize = 1024
	cfg.ChunkThreshold = 4096

	u := newUploader(t, handler, api.ModeDirect, cfg)
	path := writeTempFile(t, "clip.mp4", fileSize)

	var progress []int
	resp, err := u.Upload(context.Background(), path, func(p int) { progress = append(progress, p) })
	require.NoError(t, err)

	assert.True(t, finalized)
	assert.Equal(t, "inputs/clip.mp4", resp.BlobName)

	require.Len(t, chunkIndexes, 11)
	for i, idx := range chunkIndexes {
		assert.Equal(t, i, idx)
		assert.Equal(t, 11, totalChunks[i])
	}

	assert.Equal(t, fileSize, received.Len())

	require.NotEmpty(t, progress)
	assert.Equal(t, 100, progress[len(progress)-1])
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
}

func TestUploadChunkRetriesNetworkFailure(t *testing.T) {
	attempts := 0

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/upload/init":
			json.NewEncoder(w).Encode(map[string]string{"upload_id": "up-2"})
		case "/api/v1/upload/chunk":
			attempts++
			if attempts == 1 {
				// Drop the connection so the client sees a transport error.
				hj, ok := w.(http.Hijacker)
				require.True(t, ok)
				conn, _, err := hj.Hijack()
				require.NoError(t, err)
				conn.Close()
				return
			}
			w.WriteHeader(http.StatusOK)
		case "/api/v1/upload/finalize":
			json.NewEncoder(w).Encode(Response{Filename: "clip.mp4"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	cfg := DefaultConfig()
	cfg.ChunkSize = 8 * 1024
	cfg.ChunkThreshold = 4096
	cfg.Retry = retry.LinearConfig(3, time.Millisecond)
	cfg.Retry.RetryIf = api.IsNetworkError

	u := newUploader(t, handler, api.ModeDirect, cfg)
	path := writeTempFile(t, "clip.mp4", 6*1024)

	_, err := u.Upload(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestUploadDirectRetryKeepsProgressMonotonic(t *testing.T) {
	attempts := 0

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			// Read part of the body, then drop the connection so the
			// retry rereads the file from the start.
			io.CopyN(io.Discard, r.Body, 1024)
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		io.Copy(io.Discard, r.Body)
		json.NewEncoder(w).Encode(Response{Filename: "clip.mp4"})
	})

	cfg := DefaultConfig()
	cfg.Retry = retry.LinearConfig(3, time.Millisecond)
	cfg.Retry.RetryIf = api.IsNetworkError

	u := newUploader(t, handler, api.ModeDirect, cfg)
	path := writeTempFile(t, "clip.mp4", 4096)

	var reported []int
	_, err := u.Upload(context.Background(), path, func(p int) {
		reported = append(reported, p)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	require.NotEmpty(t, reported)
	for i := 1; i < len(reported); i++ {
		assert.GreaterOrEqual(t, reported[i], reported[i-1],
			"progress regressed at index %d: %v", i, reported)
	}
	assert.Equal(t, 100, reported[len(reported)-1])
}

func TestUploadChunkDoesNotRetryServerError(t *testing.T) {
	attempts := 0

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/upload/init":
			json.NewEncoder(w).Encode(map[string]string{"upload_id": "up-3"})
		case "/api/v1/upload/chunk":
			attempts++
			http.Error(w, `{"detail":"assembly failed"}`, http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	cfg := DefaultConfig()
	cfg.ChunkSize = 8 * 1024
	cfg.ChunkThreshold = 4096
	cfg.Retry = retry.LinearConfig(3, time.Millisecond)
	cfg.Retry.RetryIf = api.IsNetworkError

	u := newUploader(t, handler, api.ModeDirect, cfg)
	path := writeTempFile(t, "clip.mp4", 6*1024)

	_, err := u.Upload(context.Background(), path, nil)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	var serr *api.ServerError
	assert.ErrorAs(t, err, &serr)
}

func TestUploadServerlessEncodesBase64(t *testing.T) {
	original := []byte("tiny audio payload")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/upload/audio", r.URL.Path)

		var payload struct {
			FileData    string `json:"file_data"`
			FileName    string `json:"file_name"`
			ContentType string `json:"content_type"`
			IsBase64    bool   `json:"is_base64"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		assert.Equal(t, "voice.mp3", payload.FileName)
		assert.True(t, payload.IsBase64)

		decoded, err := base64.StdEncoding.DecodeString(payload.FileData)
		require.NoError(t, err)
		assert.Equal(t, original, decoded)

		json.NewEncoder(w).Encode(Response{Filename: "voice.mp3"})
	})

	u := newUploader(t, handler, api.ModeServerless, DefaultConfig())

	path := filepath.Join(t.TempDir(), "voice.mp3")
	require.NoError(t, os.WriteFile(path, original, 0o644))

	resp, err := u.Upload(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, "voice.mp3", resp.Filename)
}
