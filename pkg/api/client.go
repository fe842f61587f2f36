package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"resty.dev/v3"

	"github.com/clonesync/csync/pkg/models"
)

const (
	defaultTimeout = 60 * time.Second
	healthTimeout  = 8 * time.Second
)

// Client is the typed API client. All calls go through the resolver, so the
// same method works against a direct REST backend and a serverless host.
type Client struct {
	rest     *resty.Client
	resolver Resolver
	log      *zap.Logger
}

// NewClient builds a client for the given resolver.
func NewClient(resolver Resolver, log *zap.Logger) *Client {
	rest := resty.New()
	rest.SetTimeout(defaultTimeout)
	rest.SetHeader("Accept", "application/json")

	return &Client{
		rest:     rest,
		resolver: resolver,
		log:      log,
	}
}

func (c *Client) Close() error { return c.rest.Close() }

func (c *Client) Resolver() Resolver { return c.resolver }

// SetTimeout overrides the per-request timeout. Uploads of large files need
// far more than the default.
func (c *Client) SetTimeout(d time.Duration) {
	c.rest.SetTimeout(d)
}

// Call resolves a logical path and executes the request, decoding the JSON
// response into out when out is non-nil. Enveloped responses are unwrapped
// before decoding.
func (c *Client) Call(ctx context.Context, method, logicalPath string, payload, out any) error {
	plan := c.resolver.Resolve(method, logicalPath, payload)

	requestID := uuid.NewString()
	var raw json.RawMessage
	req := c.rest.R().SetContext(ctx).SetResult(&raw).SetHeader("X-Request-ID", requestID)
	if plan.Body != nil {
		req.SetBody(plan.Body)
	}

	c.log.Debug("api request",
		zap.String("method", plan.Method),
		zap.String("url", plan.URL),
		zap.String("request_id", requestID),
		zap.Bool("enveloped", plan.Enveloped))

	resp, err := execute(req, plan.Method, plan.URL)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", plan.Method, logicalPath, err)
	}

	if resp.IsError() {
		serr := &ServerError{
			StatusCode: resp.StatusCode(),
			Message:    errorMessage(resp.String()),
		}
		c.log.Debug("api error response",
			zap.String("url", plan.URL),
			zap.Int("status", serr.StatusCode))
		return serr
	}

	if out == nil {
		return nil
	}

	body := raw
	if plan.Enveloped {
		body = unwrapOutput(raw)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", logicalPath, err)
	}
	return nil
}

func execute(req *resty.Request, method, u string) (*resty.Response, error) {
	switch method {
	case "GET":
		return req.Get(u)
	case "POST":
		return req.Post(u)
	case "PUT":
		return req.Put(u)
	case "DELETE":
		return req.Delete(u)
	default:
		return nil, fmt.Errorf("unsupported method %q", method)
	}
}

// unwrapOutput strips the serverless result envelope. Workers answer with
// {"output": {...}}; anything else is passed through unchanged.
func unwrapOutput(raw json.RawMessage) json.RawMessage {
	var envelope struct {
		Output json.RawMessage `json:"output"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Output) > 0 {
		return envelope.Output
	}
	return raw
}

// errorMessage pulls a human-readable message out of an error body. FastAPI
// backends use "detail"; others use "error" or "message".
func errorMessage(body string) string {
	var parsed struct {
		Detail  string `json:"detail"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err == nil {
		switch {
		case parsed.Detail != "":
			return parsed.Detail
		case parsed.Error != "":
			return parsed.Error
		case parsed.Message != "":
			return parsed.Message
		}
	}
	body = strings.TrimSpace(body)
	if len(body) > 200 {
		body = body[:200]
	}
	return body
}

// StartLipSync submits a lip sync job and returns the task handle.
func (c *Client) StartLipSync(ctx context.Context, req models.LipSyncRequest) (models.LipSyncResponse, error) {
	var out models.LipSyncResponse
	if err := c.Call(ctx, "POST", "/lip_sync/start", req, &out); err != nil {
		return models.LipSyncResponse{}, err
	}
	if out.TaskID == "" {
		return models.LipSyncResponse{}, fmt.Errorf("backend accepted job but returned no task id")
	}
	return out, nil
}

// GetTask fetches the current status of a task.
func (c *Client) GetTask(ctx context.Context, taskID string) (models.TaskStatusResponse, error) {
	var out models.TaskStatusResponse
	path := "/tasks/" + url.PathEscape(taskID)
	if err := c.Call(ctx, "GET", path, nil, &out); err != nil {
		return models.TaskStatusResponse{}, err
	}
	if out.ID == "" {
		out.ID = taskID
	}
	return out, nil
}

// PushSettings sends the full backend-shaped settings payload.
func (c *Client) PushSettings(ctx context.Context, payload map[string]any) error {
	return c.Call(ctx, "POST", "/lip_sync/settings", payload, nil)
}

// SetEngine tells the backend which engine subsequent jobs should use.
func (c *Client) SetEngine(ctx context.Context, engine models.Engine) error {
	body := map[string]string{"engine": string(engine)}
	return c.Call(ctx, "POST", "/lip_sync/engine", body, nil)
}

// PreloadEngine asks the backend to load an engine's models into memory.
func (c *Client) PreloadEngine(ctx context.Context, engine models.Engine) (models.PreloadResponse, error) {
	var out models.PreloadResponse
	path := "/lip_sync/engine/preload?engine=" + url.QueryEscape(string(engine))
	if err := c.Call(ctx, "POST", path, nil, &out); err != nil {
		return models.PreloadResponse{}, err
	}
	return out, nil
}

// EngineStatus reports the load state of one engine.
func (c *Client) EngineStatus(ctx context.Context, engine models.Engine) (models.EngineStatusResponse, error) {
	var out models.EngineStatusResponse
	path := "/lip_sync/engine/status?engine=" + url.QueryEscape(string(engine))
	if err := c.Call(ctx, "GET", path, nil, &out); err != nil {
		return models.EngineStatusResponse{}, err
	}
	if out.Engine == "" {
		out.Engine = string(engine)
	}
	return out, nil
}

// CheckHealth probes the backend and reports reachability. It never returns
// an error: an unreachable backend is a normal answer, not a failure.
func (c *Client) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	// Serverless hosts expose a bare /health on the origin; direct
	// backends mount the probe under the API prefix.
	var u string
	if c.resolver.Mode() == ModeServerless {
		u = c.resolver.Origin() + "/health"
	} else {
		u = c.resolver.Resolve("GET", "/status/health", nil).URL
	}

	resp, err := c.rest.R().SetContext(ctx).Get(u)
	if err != nil {
		c.log.Debug("health check failed", zap.String("url", u), zap.Error(err))
		return false
	}
	return resp.IsSuccess()
}
