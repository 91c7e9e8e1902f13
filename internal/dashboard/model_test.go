package dashboard

import (
	"strings"
	"testing"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Pamacea/claude-mem/internal/protocol"
)

func testSessions() []protocol.SessionInfo {
	return []protocol.SessionInfo{
		{ID: 1, SessionID: "sess-1", Project: "alpha", Status: "active", Prompts: 2},
		{ID: 2, SessionID: "sess-2", Project: "beta", Status: "completed", Prompts: 5},
		{ID: 3, SessionID: "sess-3", Project: "gamma", Status: "active", Prompts: 1},
	}
}

func TestUpdateStoresSessions(t *testing.T) {
	m := NewModel(nil)

	updated, _ := m.Update(sessionsMsg{sessions: testSessions()})
	m = updated.(*Model)

	if len(m.sessions) != 3 {
		t.Fatalf("sessions = %d, want 3", len(m.sessions))
	}
	if m.err != nil {
		t.Errorf("err should clear on refresh, got %v", m.err)
	}
}

func TestCursorMovement(t *testing.T) {
	m := NewModel(nil)
	m.sessions = testSessions()

	m.moveCursor(1)
	m.moveCursor(1)
	if m.cursor != 2 {
		t.Errorf("cursor = %d, want 2", m.cursor)
	}

	m.moveCursor(1)
	if m.cursor != 2 {
		t.Errorf("cursor past end = %d, want clamped to 2", m.cursor)
	}

	m.moveCursor(-5)
	if m.cursor != 0 {
		t.Errorf("cursor before start = %d, want clamped to 0", m.cursor)
	}
}

func TestCursorClampsOnShrink(t *testing.T) {
	m := NewModel(nil)
	m.sessions = testSessions()
	m.cursor = 2

	updated, _ := m.Update(sessionsMsg{sessions: testSessions()[:1]})
	m = updated.(*Model)

	if m.cursor != 0 {
		t.Errorf("cursor = %d after shrink, want 0", m.cursor)
	}
}

func TestSelectedSession(t *testing.T) {
	m := NewModel(nil)
	if m.SelectedSession() != nil {
		t.Error("empty model should have no selection")
	}

	m.sessions = testSessions()
	m.cursor = 1
	sel := m.SelectedSession()
	if sel == nil || sel.SessionID != "sess-2" {
		t.Errorf("selected = %+v", sel)
	}
}

func TestViewRendersSessions(t *testing.T) {
	m := NewModel(nil)
	m.sessions = testSessions()

	view := m.View()
	for _, want := range []string{"alpha", "beta", "gamma"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestViewEmptyState(t *testing.T) {
	m := NewModel(nil)
	if !strings.Contains(m.View(), "no sessions yet") {
		t.Error("empty view should say so")
	}
}

func TestTruncateMultibyte(t *testing.T) {
	got := truncate("émojis-🎉-project", 8)
	if !utf8.ValidString(got) {
		t.Errorf("truncate split a rune: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 8 {
		t.Errorf("rune count = %d, want 8", n)
	}

	if got := truncate("short", 20); got != "short" {
		t.Errorf("short string changed: %q", got)
	}
	if got := truncate("日本語テキスト", 1); got != "日" {
		t.Errorf("max 1 = %q, want first rune", got)
	}
}

func TestQuitKey(t *testing.T) {
	m := NewModel(nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should produce a quit command")
	}
	if msg := cmd(); msg == nil {
		t.Error("expected tea.Quit message")
	}
}
