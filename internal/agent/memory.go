package agent

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one conversation message, optionally carrying the structured tool
// results that produced an assistant reply.
type Turn struct {
	Role        string         `json:"role"`
	Content     string         `json:"content"`
	ToolResults map[string]any `json:"tool_results,omitempty"`
}

// SessionMemory is a bounded append-only log of one session's turns. Appends
// are serialized per session; everything else in a request runs concurrently.
type SessionMemory struct {
	mu     sync.Mutex
	window int
	turns  []Turn
}

func newSessionMemory(window int) *SessionMemory {
	return &SessionMemory{window: window}
}

// Append adds turns in order, evicting the oldest beyond the window.
func (m *SessionMemory) Append(turns ...Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turns...)
	if len(m.turns) > m.window {
		m.turns = m.turns[len(m.turns)-m.window:]
	}
}

// Recent returns up to n most recent turns in original order.
func (m *SessionMemory) Recent(n int) []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := len(m.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(m.turns)-start)
	copy(out, m.turns[start:])
	return out
}

func (m *SessionMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

func (m *SessionMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
}

// Memory holds per-session conversation logs. Sessions are keyed by the
// user's session identifier and evicted least-recently-used, so idle
// conversations age out without unbounded growth.
type Memory struct {
	mu       sync.Mutex
	window   int
	sessions *lru.Cache[string, *SessionMemory]
}

func NewMemory(maxSessions, window int) (*Memory, error) {
	sessions, err := lru.New[string, *SessionMemory](maxSessions)
	if err != nil {
		return nil, err
	}
	return &Memory{window: window, sessions: sessions}, nil
}

// Session returns the session's memory, creating it on first use.
func (m *Memory) Session(key string) *SessionMemory {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions.Get(key); ok {
		return session
	}
	session := newSessionMemory(m.window)
	m.sessions.Add(key, session)
	return session
}

// Drop discards a session entirely.
func (m *Memory) Drop(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions.Remove(key)
}
