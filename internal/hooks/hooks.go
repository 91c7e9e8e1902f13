// Package hooks implements the lifecycle hook entry points invoked by the
// host runtime. Each hook is a short-lived process: it reads a JSON payload
// from stdin, makes a single call to the worker, and terminates with an
// exit status the host understands.
package hooks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
)

// Exit codes forming the host runtime contract. Nothing else leaves a hook
// process.
const (
	ExitSuccess = 0 // silent success
	ExitBlock   = 2 // blocking error, diagnostic on stderr
	ExitShow    = 3 // non-blocking, stdout shown to the user
)

// Input is the JSON the host runtime pipes to a hook on stdin.
type Input struct {
	SessionID     string          `json:"session_id"`
	HookEventName string          `json:"hook_event_name"`
	CWD           string          `json:"cwd"`
	Prompt        string          `json:"prompt"`
	ToolName      string          `json:"tool_name"`
	ToolInput     json.RawMessage `json:"tool_input"`
	ToolResponse  json.RawMessage `json:"tool_response"`
}

// Outcome is the terminal result of one hook invocation.
type Outcome struct {
	Code    int
	Payload interface{} // JSON body for ExitShow
	Message string      // diagnostic for ExitBlock
}

// readInput decodes the hook payload from r. An empty stream yields an
// empty Input rather than an error: some host events carry no body.
func readInput(r io.Reader) (*Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read hook input: %w", err)
	}
	if len(data) == 0 {
		return &Input{}, nil
	}
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parse hook input: %w", err)
	}
	return &in, nil
}

// resolveSessionID picks the session identity: stdin payload first, then
// the host environment, then a generated one so a session that predates
// hook configuration still gets tracked.
func resolveSessionID(in *Input) string {
	if in.SessionID != "" {
		return in.SessionID
	}
	if id := os.Getenv("CLAUDE_SESSION_ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// Run is the hook process boundary. It reads stdin, invokes fn, and turns
// the result into an exit status. Every failure path lands here: a hook
// must never crash uncaught, because the host runtime blocks on the
// process and interprets nothing but the exit code and streams.
func Run(fn func(*Input) (*Outcome, error)) {
	os.Exit(run(fn, os.Stdin, os.Stdout, os.Stderr))
}

func run(fn func(*Input) (*Outcome, error), stdin io.Reader, stdout, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stderr, "claude-mem hook panic: %v\n", r)
			code = ExitBlock
		}
	}()

	in, err := readInput(stdin)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return ExitBlock
	}

	outcome, err := fn(in)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return ExitBlock
	}
	if outcome == nil {
		return ExitSuccess
	}

	switch outcome.Code {
	case ExitShow:
		if outcome.Payload != nil {
			json.NewEncoder(stdout).Encode(outcome.Payload)
		}
	case ExitBlock:
		if outcome.Message != "" {
			fmt.Fprintln(stderr, outcome.Message)
		}
	}
	return outcome.Code
}
