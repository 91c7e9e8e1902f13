package worker

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Pamacea/claude-mem/internal/protocol"
	"github.com/Pamacea/claude-mem/internal/store"
	"github.com/Pamacea/claude-mem/internal/version"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	svc := NewForTesting(st, zerolog.Nop())
	t.Cleanup(svc.stop)

	srv := httptest.NewServer(svc.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body, out interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatal(err)
		}
	}
	return resp
}

func TestHealthBeforeReady(t *testing.T) {
	// A service that has not finished initializing still answers health.
	svc := New(t.TempDir(), zerolog.Nop())
	srv := httptest.NewServer(svc.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + protocol.PathHealth)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want 200 while starting", resp.StatusCode)
	}
	var health protocol.HealthResponse
	json.NewDecoder(resp.Body).Decode(&health)
	if health.Status != protocol.StatusStarting {
		t.Errorf("status = %q, want %q", health.Status, protocol.StatusStarting)
	}
}

func TestReadinessGatesSessionAPI(t *testing.T) {
	svc := New(t.TempDir(), zerolog.Nop())
	srv := httptest.NewServer(svc.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + protocol.PathReadiness)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("readiness = %d before init, want 503", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+protocol.PathInit, protocol.InitRequest{SessionID: "x"}, nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("session API = %d before init, want 503", resp.StatusCode)
	}
}

func TestReadinessWhenReady(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + protocol.PathReadiness)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("readiness = %d, want 200", resp.StatusCode)
	}
}

func TestVersionEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + protocol.PathVersion)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var v protocol.VersionResponse
	json.NewDecoder(resp.Body).Decode(&v)
	if v.Version != version.Version {
		t.Errorf("version = %q, want %q", v.Version, version.Version)
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	var initResp protocol.InitResponse
	resp := postJSON(t, srv.URL+protocol.PathInit,
		protocol.InitRequest{SessionID: "sess-1", Project: "widget", CWD: "/work/widget"}, &initResp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("init = %d", resp.StatusCode)
	}
	if !initResp.Created {
		t.Error("first init should create the session")
	}

	sessURL := srv.URL + protocol.PathSessions + "/sess-1"

	var promptResp protocol.PromptResponse
	postJSON(t, sessURL+"/prompt", protocol.PromptRequest{Prompt: "hello"}, &promptResp)
	if promptResp.PromptNumber != 1 {
		t.Errorf("prompt number = %d, want 1", promptResp.PromptNumber)
	}

	var obsResp protocol.ObservationResponse
	postJSON(t, sessURL+"/observation", protocol.ObservationRequest{
		ToolName:  "Bash",
		ToolInput: json.RawMessage(`{"command":"ls"}`),
	}, &obsResp)
	if obsResp.ObservationID == 0 || obsResp.Pending != 1 {
		t.Errorf("observation = %+v", obsResp)
	}

	var prepResp protocol.PrepareResponse
	postJSON(t, sessURL+"/prepare", nil, &prepResp)
	if prepResp.Pending != 1 {
		t.Errorf("prepare pending = %d, want 1", prepResp.Pending)
	}

	var compResp protocol.CompressResponse
	postJSON(t, sessURL+"/compress", protocol.CompressRequest{LastUserMessage: "thanks"}, &compResp)
	if compResp.SummaryID == 0 || compResp.Observations != 1 {
		t.Errorf("compress = %+v", compResp)
	}

	resp2, err := http.Get(srv.URL + protocol.PathSessions)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	var list protocol.SessionsResponse
	json.NewDecoder(resp2.Body).Decode(&list)
	if len(list.Sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(list.Sessions))
	}
	if list.Sessions[0].Status != protocol.SessionCompleted {
		t.Errorf("status = %q, want %q", list.Sessions[0].Status, protocol.SessionCompleted)
	}
}

func TestInitRequiresSessionID(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+protocol.PathInit, protocol.InitRequest{}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestObservationRequiresToolName(t *testing.T) {
	srv := newTestServer(t)
	postJSON(t, srv.URL+protocol.PathInit, protocol.InitRequest{SessionID: "sess-1"}, nil)

	resp := postJSON(t, srv.URL+protocol.PathSessions+"/sess-1/observation",
		protocol.ObservationRequest{}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestShutdownBeforeInitDiscardsLateStore(t *testing.T) {
	svc := New(t.TempDir(), zerolog.Nop())

	if err := svc.shutdown(); err != nil {
		t.Fatal(err)
	}
	// Initialization finishing after shutdown must not resurrect the
	// service or leak the freshly opened store.
	svc.initialize()

	if svc.ready.Load() {
		t.Error("service became ready after shutdown")
	}
	svc.storeMu.Lock()
	if svc.store != nil {
		t.Error("late-opened store kept past shutdown")
	}
	svc.storeMu.Unlock()
}

func TestActiveSessionsGauge(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	svc := NewForTesting(st, zerolog.Nop())
	t.Cleanup(svc.stop)
	srv := httptest.NewServer(svc.Routes())
	t.Cleanup(srv.Close)

	postJSON(t, srv.URL+protocol.PathInit, protocol.InitRequest{SessionID: "sess-1"}, nil)
	if got := svc.activeSessionCount(); got != 1 {
		t.Errorf("gauge = %d after init, want 1", got)
	}

	sessURL := srv.URL + protocol.PathSessions + "/sess-1"
	postJSON(t, sessURL+"/compress", protocol.CompressRequest{}, nil)
	if got := svc.activeSessionCount(); got != 0 {
		t.Errorf("gauge = %d after compress, want 0", got)
	}

	// Re-compressing a completed session must not drive the gauge negative.
	postJSON(t, sessURL+"/compress", protocol.CompressRequest{}, nil)
	if got := svc.activeSessionCount(); got != 0 {
		t.Errorf("gauge = %d after double compress, want 0", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics = %d, want 200", resp.StatusCode)
	}
}
