// Package protocol defines the JSON types exchanged over the worker HTTP
// API. Both the worker's handlers and the hook-side client import it, so
// the wire contract lives in one place.
package protocol

import "encoding/json"

// API paths. Session operations interpolate the Claude session ID.
const (
	PathHealth    = "/api/health"
	PathReadiness = "/api/readiness"
	PathVersion   = "/api/version"
	PathSessions  = "/api/sessions"
	PathInit      = "/api/sessions/init"
)

// Worker status values reported by the health endpoint.
const (
	StatusStarting = "starting"
	StatusReady    = "ready"
	StatusError    = "error"
)

// Session lifecycle states stored by the worker.
const (
	SessionActive    = "active"
	SessionPreparing = "preparing"
	SessionCompleted = "completed"
)

// HealthResponse is the liveness payload. It answers as soon as the
// listener is up, before initialization completes.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// VersionResponse carries the worker's build version for the hook-side
// version reconciler.
type VersionResponse struct {
	Version string `json:"version"`
}

// InitRequest registers a Claude session with the worker.
type InitRequest struct {
	SessionID string `json:"claudeSessionId"`
	Project   string `json:"project,omitempty"`
	CWD       string `json:"cwd,omitempty"`
}

// InitResponse reports the worker-side row for the session.
type InitResponse struct {
	SessionDBID int64 `json:"sessionDbId"`
	Created     bool  `json:"created"`
}

// PromptRequest records a user prompt against a session.
type PromptRequest struct {
	Prompt string `json:"prompt"`
}

// PromptResponse returns the per-session prompt counter.
type PromptResponse struct {
	PromptNumber int `json:"promptNumber"`
}

// ObservationRequest forwards a tool call observed by a PostToolUse hook.
// Tool input and response are passed through opaque; the worker's storage
// does not interpret them.
type ObservationRequest struct {
	ToolName     string          `json:"tool_name"`
	ToolInput    json.RawMessage `json:"tool_input,omitempty"`
	ToolResponse json.RawMessage `json:"tool_response,omitempty"`
	CWD          string          `json:"cwd,omitempty"`
}

// ObservationResponse acknowledges a stored observation.
type ObservationResponse struct {
	ObservationID int64 `json:"observationId"`
	Pending       int   `json:"pending"`
}

// PrepareResponse reports the state snapshot taken before compaction.
type PrepareResponse struct {
	Pending int `json:"pending"`
}

// CompressRequest asks the worker to fold a session's observations into a
// summary. The trailing messages give the summarizer its anchor.
type CompressRequest struct {
	LastUserMessage      string `json:"lastUserMessage,omitempty"`
	LastAssistantMessage string `json:"lastAssistantMessage,omitempty"`
}

// CompressResponse reports the produced summary.
type CompressResponse struct {
	SummaryID    int64 `json:"summaryId"`
	Observations int   `json:"observations"`
}

// SessionInfo is the dashboard/status view of a session.
type SessionInfo struct {
	ID           int64  `json:"id"`
	SessionID    string `json:"claudeSessionId"`
	Project      string `json:"project,omitempty"`
	Status       string `json:"status"`
	Prompts      int    `json:"prompts"`
	Observations int    `json:"observations"`
	StartedAt    string `json:"startedAt"`
	EndedAt      string `json:"endedAt,omitempty"`
}

// SessionsResponse lists recent sessions.
type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// Event types broadcast to dashboard WebSocket clients.
const (
	EventSessionStarted   = "session_started"
	EventPromptRecorded   = "prompt_recorded"
	EventObservationSaved = "observation_saved"
	EventSessionCompacted = "session_compacted"
)

// Event is a worker-side notification pushed to connected dashboards.
type Event struct {
	Type    string       `json:"type"`
	Session *SessionInfo `json:"session,omitempty"`
}
