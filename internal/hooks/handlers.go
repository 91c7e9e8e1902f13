package hooks

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/Pamacea/claude-mem/internal/client"
	"github.com/Pamacea/claude-mem/internal/protocol"
)

// showPayload is the exit-3 body: the host shows it to the user and the
// "continue": true field tells it not to block the session.
type showPayload struct {
	Continue bool   `json:"continue"`
	Message  string `json:"message,omitempty"`
}

// Handler binds the lifecycle hooks to a worker client. One Handler lives
// for exactly one hook process.
type Handler struct {
	client *client.Client
	log    zerolog.Logger
}

// NewHandler creates a handler around an existing worker client.
func NewHandler(c *client.Client, log zerolog.Logger) *Handler {
	return &Handler{client: c, log: log}
}

// SessionStart registers the session with the worker. The liveness probe
// runs first so an absent worker fails fast instead of eating the full
// request timeout.
func (h *Handler) SessionStart(in *Input) (*Outcome, error) {
	sessionID := resolveSessionID(in)

	if !h.client.EnsureRunning() {
		return nil, fmt.Errorf("claude-mem worker is not running")
	}

	resp, err := h.client.InitSession(protocol.InitRequest{
		SessionID: sessionID,
		Project:   projectFromCWD(in.CWD),
		CWD:       in.CWD,
	})
	if err != nil {
		return nil, err
	}

	h.log.Info().
		Str("session", sessionID).
		Int64("dbId", resp.SessionDBID).
		Bool("created", resp.Created).
		Msg("session registered")
	return &Outcome{Code: ExitSuccess}, nil
}

// PromptSubmit records the user's prompt. Success is exit 3: the host
// shows the payload but does not block the prompt.
func (h *Handler) PromptSubmit(in *Input) (*Outcome, error) {
	sessionID := resolveSessionID(in)

	resp, err := h.client.Prompt(sessionID, protocol.PromptRequest{Prompt: in.Prompt})
	if err != nil {
		return nil, err
	}

	h.log.Debug().
		Str("session", sessionID).
		Int("prompt", resp.PromptNumber).
		Msg("prompt recorded")
	return &Outcome{Code: ExitShow, Payload: showPayload{Continue: true}}, nil
}

// PostToolUse forwards one tool observation.
func (h *Handler) PostToolUse(in *Input) (*Outcome, error) {
	sessionID := resolveSessionID(in)

	resp, err := h.client.Observation(sessionID, protocol.ObservationRequest{
		ToolName:     in.ToolName,
		ToolInput:    in.ToolInput,
		ToolResponse: in.ToolResponse,
		CWD:          in.CWD,
	})
	if err != nil {
		return nil, err
	}

	h.log.Debug().
		Str("session", sessionID).
		Str("tool", in.ToolName).
		Int64("observation", resp.ObservationID).
		Msg("observation saved")
	return &Outcome{Code: ExitShow, Payload: showPayload{Continue: true}}, nil
}

// PreCompact snapshots the session before the host compacts its context.
func (h *Handler) PreCompact(in *Input) (*Outcome, error) {
	sessionID := resolveSessionID(in)

	if _, err := h.client.Prepare(sessionID); err != nil {
		return nil, err
	}
	return &Outcome{Code: ExitSuccess}, nil
}

// SessionEnd asks the worker to compress the session into a summary.
func (h *Handler) SessionEnd(in *Input) (*Outcome, error) {
	sessionID := resolveSessionID(in)

	resp, err := h.client.Compress(sessionID, protocol.CompressRequest{})
	if err != nil {
		return nil, err
	}

	h.log.Info().
		Str("session", sessionID).
		Int64("summary", resp.SummaryID).
		Int("observations", resp.Observations).
		Msg("session compressed")
	return &Outcome{Code: ExitSuccess}, nil
}

func projectFromCWD(cwd string) string {
	if cwd == "" {
		return ""
	}
	return filepath.Base(cwd)
}
