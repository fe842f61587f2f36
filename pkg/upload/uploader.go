// Package upload sends local media files to the backend, switching between
// a single multipart POST and a chunked init/chunk/finalize handshake based
// on file size.
package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clonesync/csync/pkg/api"
	"github.com/clonesync/csync/pkg/models"
	"github.com/clonesync/csync/pkg/retry"
)

const (
	// DefaultMaxFileSize is the hard cap on a single upload.
	DefaultMaxFileSize = 5 * 1024 * 1024 * 1024

	// DefaultChunkThreshold is the size above which uploads are chunked.
	DefaultChunkThreshold = 50 * 1024 * 1024

	// DefaultChunkSize is the size of each chunk in a chunked upload.
	DefaultChunkSize = 5 * 1024 * 1024

	// DefaultTimeout bounds a whole upload. Large files over slow links
	// legitimately take a long time.
	DefaultTimeout = time.Hour
)

// Config controls upload behavior. Sizes are bytes.
type Config struct {
	MaxFileSize    int64
	ChunkThreshold int64
	ChunkSize      int64
	Timeout        time.Duration
	Retry          retry.Config
}

// DefaultConfig returns the standard upload policy: 5 GiB cap, chunking
// above 50 MiB in 5 MiB chunks, three linear-backoff retries on network
// failures only.
func DefaultConfig() Config {
	r := retry.LinearConfig(3, time.Second)
	r.RetryIf = api.IsNetworkError
	return Config{
		MaxFileSize:    DefaultMaxFileSize,
		ChunkThreshold: DefaultChunkThreshold,
		ChunkSize:      DefaultChunkSize,
		Timeout:        DefaultTimeout,
		Retry:          r,
	}
}

// Response is the backend's answer to a completed upload.
type Response struct {
	TaskID   string `json:"task_id,omitempty"`
	FileID   string `json:"file_id,omitempty"`
	Filename string `json:"filename,omitempty"`
	BlobName string `json:"blob_name,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Identifier returns the name the backend will know this file by.
func (r Response) Identifier() string {
	if r.BlobName != "" {
		return r.BlobName
	}
	if r.FileID != "" {
		return r.FileID
	}
	return r.Filename
}

// ProgressFunc receives upload progress as a 0-100 percentage. Calls are
// monotonically non-decreasing.
type ProgressFunc func(percent int)

// Uploader sends files to the backend.
type Uploader struct {
	client *api.Client
	cfg    Config
	httpc  *http.Client
	log    *zap.Logger
}

// New builds an Uploader on top of an API client.
func New(client *api.Client, cfg Config, log *zap.Logger) *Uploader {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkThreshold <= 0 {
		cfg.ChunkThreshold = DefaultChunkThreshold
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Uploader{
		client: client,
		cfg:    cfg,
		httpc:  &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

// EndpointForType maps a MIME type onto the upload route for that media
// kind. Unknown types land on the generic route.
func EndpointForType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "audio/"):
		return "/upload/audio"
	case strings.HasPrefix(contentType, "video/"):
		return "/upload/video"
	default:
		return "/upload"
	}
}

func contentTypeOf(path string) string {
	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}

// Upload sends the file at path, choosing direct or chunked transfer by
// size. progress may be nil.
func (u *Uploader) Upload(ctx context.Context, path string, progress ProgressFunc) (Response, error) {
	f, err := os.Open(path)
	if err != nil {
		return Response{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Response{}, fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()

	if size > u.cfg.MaxFileSize {
		return Response{}, fmt.Errorf("%s is %d bytes (limit %d): %w",
			info.Name(), size, u.cfg.MaxFileSize, api.ErrFileTooLarge)
	}

	if progress == nil {
		progress = func(int) {}
	}

	// The transfer is tracked as an upload task. Reported progress is
	// clamped to the task's high-water mark so a retry that rereads the
	// file never makes the percentage go backwards.
	task := models.UploadTask{
		ID:       uuid.NewString(),
		Filename: info.Name(),
		Status:   models.TaskStatusUploading,
	}
	clamped := func(percent int) {
		if percent < task.Progress {
			percent = task.Progress
		}
		task.Progress = percent
		progress(percent)
	}

	var resp Response
	if size > u.cfg.ChunkThreshold {
		resp, err = u.uploadChunked(ctx, f, info.Name(), size, clamped)
	} else {
		resp, err = u.uploadDirect(ctx, f, info.Name(), size, clamped)
	}
	if err != nil {
		task.Status = models.TaskStatusFailed
		return Response{}, err
	}

	task.Status = models.TaskStatusCompleted
	task.ResultIdentifier = resp.Identifier()
	u.log.Info("upload finished",
		zap.String("upload_task", task.ID),
		zap.String("file", task.Filename),
		zap.String("identifier", task.ResultIdentifier))
	return resp, nil
}

type initRequest struct {
	Filename    string `json:"filename"`
	Filesize    int64  `json:"filesize"`
	ContentType string `json:"content_type"`
}

type initResponse struct {
	UploadID string `json:"upload_id"`
}

// uploadChunked runs the init/chunk/finalize handshake. Each chunk is
// retried independently so a flaky link does not restart the whole file.
func (u *Uploader) uploadChunked(ctx context.Context, f *os.File, name string, size int64, progress ProgressFunc) (Response, error) {
	var init initResponse
	err := u.client.Call(ctx, "POST", "/upload/init", initRequest{
		Filename:    name,
		Filesize:    size,
		ContentType: contentTypeOf(name),
	}, &init)
	if err != nil {
		return Response{}, fmt.Errorf("initialize upload: %w", err)
	}
	if init.UploadID == "" {
		return Response{}, fmt.Errorf("initialize upload: backend returned no upload id")
	}

	totalChunks := int((size + u.cfg.ChunkSize - 1) / u.cfg.ChunkSize)
	u.log.Info("starting chunked upload",
		zap.String("file", name),
		zap.Int64("size", size),
		zap.Int("chunks", totalChunks),
		zap.String("upload_id", init.UploadID))

	buf := make([]byte, u.cfg.ChunkSize)
	var uploaded int64

	for i := 0; i < totalChunks; i++ {
		n, err := io.ReadFull(f, buf)
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			err = nil
		}
		if err != nil {
			return Response{}, fmt.Errorf("read chunk %d of %s: %w", i, name, err)
		}

		if err := u.sendChunk(ctx, init.UploadID, name, i, totalChunks, buf[:n]); err != nil {
			return Response{}, fmt.Errorf("upload chunk %d/%d: %w", i+1, totalChunks, err)
		}

		uploaded += int64(n)
		progress(int(uploaded * 100 / size))
	}

	var resp Response
	err = u.client.Call(ctx, "POST", "/upload/finalize", map[string]string{"upload_id": init.UploadID}, &resp)
	if err != nil {
		return Response{}, fmt.Errorf("finalize upload: %w", err)
	}
	progress(100)
	return resp, nil
}

// sendChunk posts one chunk as multipart form data, with retries. The body
// is built in memory so a retry can resend identical bytes.
func (u *Uploader) sendChunk(ctx context.Context, uploadID, filename string, index, total int, data []byte) error {
	plan := u.client.Resolver().Resolve("POST", "/upload/chunk", nil)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	w.WriteField("upload_id", uploadID)
	w.WriteField("chunk_index", strconv.Itoa(index))
	w.WriteField("total_chunks", strconv.Itoa(total))
	part, err := w.CreateFormFile("chunk", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return retry.Do(ctx, u.cfg.Retry, func() error {
		req, err := http.NewRequestWithContext(ctx, "POST", plan.URL, bytes.NewReader(body.Bytes()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())

		resp, err := u.httpc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return &api.ServerError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
		}
		io.Copy(io.Discard, resp.Body)
		return nil
	})
}

// uploadDirect sends a small file in one request. Serverless hosts cannot
// accept multipart bodies through their gateway, so the file is embedded
// base64-encoded in a JSON payload instead.
func (u *Uploader) uploadDirect(ctx context.Context, f *os.File, name string, size int64, progress ProgressFunc) (Response, error) {
	contentType := contentTypeOf(name)
	endpoint := EndpointForType(contentType)

	if u.client.Resolver().Mode() == api.ModeServerless {
		data, err := io.ReadAll(f)
		if err != nil {
			return Response{}, fmt.Errorf("read %s: %w", name, err)
		}
		payload := map[string]any{
			"file_data":    base64.StdEncoding.EncodeToString(data),
			"file_name":    name,
			"content_type": contentType,
			"is_base64":    true,
		}
		var resp Response
		err = retry.Do(ctx, u.cfg.Retry, func() error {
			return u.client.Call(ctx, "POST", endpoint, payload, &resp)
		})
		if err != nil {
			return Response{}, err
		}
		progress(100)
		return resp, nil
	}

	var resp Response
	err := retry.Do(ctx, u.cfg.Retry, func() error {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		r, err := u.postMultipart(ctx, endpoint, f, name, size, progress)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// postMultipart streams the file body through a pipe so progress tracks
// bytes actually handed to the transport.
func (u *Uploader) postMultipart(ctx context.Context, endpoint string, f *os.File, name string, size int64, progress ProgressFunc) (Response, error) {
	plan := u.client.Resolver().Resolve("POST", endpoint, nil)

	pr, pw := io.Pipe()
	w := multipart.NewWriter(pw)

	go func() {
		part, err := w.CreateFormFile("file", name)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, &progressReader{r: f, total: size, report: progress}); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(w.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, "POST", plan.URL, pr)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	u.log.Info("uploading file",
		zap.String("file", name),
		zap.Int64("size", size),
		zap.String("endpoint", endpoint))

	resp, err := u.httpc.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("upload %s: %w", name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Response{}, fmt.Errorf("read upload response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		var detail struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(raw, &detail) == nil && detail.Detail != "" {
			msg = detail.Detail
		}
		return Response{}, &api.ServerError{StatusCode: resp.StatusCode, Message: msg}
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return Response{}, fmt.Errorf("decode upload response: %w", err)
	}
	progress(100)
	return out, nil
}

// progressReader counts bytes as the transport consumes them.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		if p.total > 0 {
			p.report(int(p.read * 100 / p.total))
		}
	}
	return n, err
}
