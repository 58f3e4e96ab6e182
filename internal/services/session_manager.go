package services

import (
	"sync"
	"time"

	"dcr-backend/internal/drafts"
	"dcr-backend/internal/metrics"
	"dcr-backend/internal/notify"
)

// SessionManager hands out one ReportSession per project. Sessions are
// created lazily on first use and keep their autosave timer until closed.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*ReportSession

	drafts           drafts.Store
	remote           RemoteReports
	exporter         ExportDispatcher
	notifier         notify.Notifier
	autosaveInterval time.Duration
}

func NewSessionManager(draftStore drafts.Store, remote RemoteReports, exporter ExportDispatcher, notifier notify.Notifier, autosaveInterval time.Duration) *SessionManager {
	if autosaveInterval <= 0 {
		autosaveInterval = DefaultAutosaveInterval
	}
	return &SessionManager{
		sessions:         make(map[string]*ReportSession),
		drafts:           draftStore,
		remote:           remote,
		exporter:         exporter,
		notifier:         notifier,
		autosaveInterval: autosaveInterval,
	}
}

// Get returns the session for a project, creating and starting it if needed.
func (m *SessionManager) Get(project string) *ReportSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[project]; ok {
		return session
	}

	session := NewReportSession(project, m.drafts, m.remote, m.exporter, m.notifier)
	session.SetAutosaveInterval(m.autosaveInterval)
	session.StartAutosave()
	m.sessions[project] = session
	metrics.ActiveSessions.Inc()
	return session
}

// Lookup returns an existing session without creating one.
func (m *SessionManager) Lookup(project string) (*ReportSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[project]
	return session, ok
}

// Close tears down a project's session, stopping its autosave timer.
func (m *SessionManager) Close(project string) {
	m.mu.Lock()
	session, ok := m.sessions[project]
	if ok {
		delete(m.sessions, project)
	}
	m.mu.Unlock()

	if ok {
		session.Close()
		metrics.ActiveSessions.Dec()
	}
}

// CloseAll tears down every session; called on server shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*ReportSession, 0, len(m.sessions))
	for project, session := range m.sessions {
		sessions = append(sessions, session)
		delete(m.sessions, project)
	}
	m.mu.Unlock()

	for _, session := range sessions {
		session.Close()
		metrics.ActiveSessions.Dec()
	}
}
