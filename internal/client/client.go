// Package client talks to the worker's HTTP API on behalf of hook
// processes and the CLI.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Pamacea/claude-mem/internal/endpoint"
	"github.com/Pamacea/claude-mem/internal/protocol"
	"github.com/Pamacea/claude-mem/internal/transport"
	"github.com/Pamacea/claude-mem/internal/version"
)

// Deadlines for outbound calls. The health probe is tighter than regular
// requests: a hook uses it to fail fast, not to wait for the worker.
const (
	RequestTimeout = 10 * time.Second
	HealthTimeout  = 2 * time.Second
)

// ProtocolError is a non-2xx response from the worker.
type ProtocolError struct {
	Status int
	Body   string
}

func (e *ProtocolError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("worker returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("worker returned HTTP %d: %s", e.Status, e.Body)
}

// Client issues requests to the worker, resolving its address through the
// endpoint cache and sharing one keep-alive transport across all calls.
type Client struct {
	cache *endpoint.Cache
	tr    *transport.Transport
	log   zerolog.Logger
}

// New creates a client. A nil transport gets the default pool policy.
func New(cache *endpoint.Cache, tr *transport.Transport, log zerolog.Logger) *Client {
	if tr == nil {
		tr = transport.New(transport.DefaultPoolConfig())
	}
	return &Client{cache: cache, tr: tr, log: log}
}

// Transport exposes the shared transport for pool diagnostics.
func (c *Client) Transport() *transport.Transport {
	return c.tr
}

func (c *Client) baseURL() (string, error) {
	host, err := c.cache.Host()
	if err != nil {
		return "", err
	}
	port, err := c.cache.Port()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://%s:%d", host, port), nil
}

func (c *Client) do(method, path string, body, out interface{}, timeout time.Duration) error {
	base, err := c.baseURL()
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.tr.Do(req, timeout)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ProtocolError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) post(path string, body, out interface{}) error {
	return c.do(http.MethodPost, path, body, out, RequestTimeout)
}

func (c *Client) get(path string, out interface{}, timeout time.Duration) error {
	return c.do(http.MethodGet, path, nil, out, timeout)
}

// InitSession registers a session with the worker.
func (c *Client) InitSession(req protocol.InitRequest) (*protocol.InitResponse, error) {
	var resp protocol.InitResponse
	if err := c.post(protocol.PathInit, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Prompt records a user prompt against a session.
func (c *Client) Prompt(sessionID string, req protocol.PromptRequest) (*protocol.PromptResponse, error) {
	var resp protocol.PromptResponse
	if err := c.post(sessionPath(sessionID, "prompt"), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Observation forwards a tool observation to the worker.
func (c *Client) Observation(sessionID string, req protocol.ObservationRequest) (*protocol.ObservationResponse, error) {
	var resp protocol.ObservationResponse
	if err := c.post(sessionPath(sessionID, "observation"), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Prepare snapshots a session ahead of context compaction.
func (c *Client) Prepare(sessionID string) (*protocol.PrepareResponse, error) {
	var resp protocol.PrepareResponse
	if err := c.post(sessionPath(sessionID, "prepare"), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Compress folds a session's observations into a summary.
func (c *Client) Compress(sessionID string, req protocol.CompressRequest) (*protocol.CompressResponse, error) {
	var resp protocol.CompressResponse
	if err := c.post(sessionPath(sessionID, "compress"), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health fetches the worker's liveness payload.
func (c *Client) Health() (*protocol.HealthResponse, error) {
	var resp protocol.HealthResponse
	if err := c.get(protocol.PathHealth, &resp, HealthTimeout); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Readiness reports whether the worker finished initializing.
func (c *Client) Readiness() error {
	return c.get(protocol.PathReadiness, nil, HealthTimeout)
}

// WorkerVersion fetches the worker's build version.
func (c *Client) WorkerVersion() (string, error) {
	var resp protocol.VersionResponse
	if err := c.get(protocol.PathVersion, &resp, HealthTimeout); err != nil {
		return "", err
	}
	return resp.Version, nil
}

// Sessions lists recent sessions for the dashboard and status command.
func (c *Client) Sessions() ([]protocol.SessionInfo, error) {
	var resp protocol.SessionsResponse
	if err := c.get(protocol.PathSessions, &resp, RequestTimeout); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func sessionPath(sessionID, op string) string {
	return protocol.PathSessions + "/" + sessionID + "/" + op
}

// IsHealthy issues a single liveness probe. It deliberately hits the
// health endpoint, not readiness: the listener comes up immediately while
// full initialization may take minutes, and a hook only needs the former.
// Network failures are swallowed and reported as "not healthy".
func (c *Client) IsHealthy() bool {
	_, err := c.Health()
	return err == nil
}

// CheckVersion compares this binary's version against the worker's and
// logs a diagnostic on mismatch. Restarting a stale worker is the worker
// startup path's job, not ours.
func (c *Client) CheckVersion() {
	workerVersion, err := c.WorkerVersion()
	if err != nil {
		c.log.Debug().Err(err).Msg("version check skipped")
		return
	}
	cmp, err := version.Compare(workerVersion, version.Version)
	if err != nil {
		c.log.Debug().Err(err).Msg("version compare failed")
		return
	}
	if cmp != 0 {
		c.log.Warn().
			Str("worker", workerVersion).
			Str("hook", version.Version).
			Msg("worker version differs from hook binary")
	}
}

// EnsureRunning performs exactly one liveness attempt. Hooks block the
// interactive session, so there is no retry or poll loop: a worker that is
// down stays down for this invocation. On success the version check runs
// best-effort.
func (c *Client) EnsureRunning() bool {
	if !c.IsHealthy() {
		c.log.Warn().Msg("worker is not reachable")
		return false
	}
	c.CheckVersion()
	return true
}
