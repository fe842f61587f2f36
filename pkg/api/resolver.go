package api

import (
	"net/url"
	"strings"
)

// Mode selects how logical API paths are turned into concrete requests.
type Mode string

const (
	// ModeDirect talks to a backend that serves REST routes under /api/v1.
	ModeDirect Mode = "direct"

	// ModeServerless wraps most calls in a request envelope posted to a
	// single /run entrypoint, as serverless GPU hosts expect.
	ModeServerless Mode = "serverless"
)

// APIPrefix is the version prefix direct backends mount their routes under.
const APIPrefix = "/api/v1"

// RequestPlan is a fully resolved request: where to send it, how, and
// whether the body has been wrapped in a serverless envelope.
type RequestPlan struct {
	URL       string
	Method    string
	Body      any
	Enveloped bool
}

// Envelope is the serverless request wrapper. The worker unwraps Input and
// dispatches on Endpoint and Method internally.
type Envelope struct {
	Input EnvelopeInput `json:"input"`
}

type EnvelopeInput struct {
	Endpoint string `json:"endpoint"`
	Method   string `json:"method"`
	Payload  any    `json:"payload,omitempty"`
}

// Resolver maps a logical path like /tasks/{id} onto a concrete request
// for one deployment flavor.
type Resolver interface {
	// Resolve builds the request plan for a logical path. payload is the
	// JSON body the caller wants delivered; for enveloped plans it is
	// embedded inside the envelope rather than sent as-is.
	Resolve(method, logicalPath string, payload any) RequestPlan

	// Origin returns the backend base URL, used to absolutize relative
	// download paths returned by the backend.
	Origin() string

	Mode() Mode
}

// NewResolver builds the resolver for the given mode.
func NewResolver(baseURL string, mode Mode) Resolver {
	base := strings.TrimRight(baseURL, "/")
	if mode == ModeServerless {
		return &ServerlessResolver{base: base}
	}
	return &DirectResolver{base: base}
}

// DetectMode picks the deployment flavor from the backend URL. Local
// addresses get direct REST; anything else is assumed to sit behind a
// serverless gateway.
func DetectMode(baseURL string) Mode {
	u, err := url.Parse(baseURL)
	if err != nil {
		return ModeDirect
	}
	host := u.Hostname()
	switch host {
	case "", "localhost", "127.0.0.1", "0.0.0.0", "::1":
		return ModeDirect
	}
	return ModeServerless
}

// normalizePath guarantees a single leading slash and no version prefix,
// so resolvers can add (or omit) the prefix exactly once.
func normalizePath(logicalPath string) string {
	p := "/" + strings.TrimLeft(logicalPath, "/")
	p = strings.TrimPrefix(p, APIPrefix)
	if p == "" {
		p = "/"
	}
	return p
}

// DirectResolver targets a REST backend mounted under APIPrefix.
type DirectResolver struct {
	base string
}

func (r *DirectResolver) Resolve(method, logicalPath string, payload any) RequestPlan {
	return RequestPlan{
		URL:    r.base + APIPrefix + normalizePath(logicalPath),
		Method: method,
		Body:   payload,
	}
}

func (r *DirectResolver) Origin() string { return r.base }
func (r *DirectResolver) Mode() Mode     { return ModeDirect }

// ServerlessResolver posts enveloped requests to a single /run entrypoint.
// Upload and engine status routes are exempt: the gateway proxies those
// straight through, since multipart bodies and frequent status polls do
// not fit the envelope.
type ServerlessResolver struct {
	base string
}

// bypassEnvelope reports whether a normalized path must be called directly
// instead of through /run.
func bypassEnvelope(path string) bool {
	if strings.HasPrefix(path, "/upload") {
		return true
	}
	return strings.Contains(path, "/engine/status")
}

func (r *ServerlessResolver) Resolve(method, logicalPath string, payload any) RequestPlan {
	path := normalizePath(logicalPath)

	if bypassEnvelope(path) {
		return RequestPlan{
			URL:    r.base + path,
			Method: method,
			Body:   payload,
		}
	}

	return RequestPlan{
		URL:    r.base + "/run",
		Method: "POST",
		Body: Envelope{Input: EnvelopeInput{
			Endpoint: path,
			Method:   method,
			Payload:  payload,
		}},
		Enveloped: true,
	}
}

func (r *ServerlessResolver) Origin() string { return r.base }
func (r *ServerlessResolver) Mode() Mode     { return ModeServerless }
