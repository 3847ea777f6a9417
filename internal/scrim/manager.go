package scrim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quailrun-gg/scrimsync/internal/config"
	"github.com/quailrun-gg/scrimsync/internal/discord"
	"github.com/quailrun-gg/scrimsync/internal/store"
	"github.com/quailrun-gg/scrimsync/internal/webhook"
)

type sessionStatus string

const (
	statusScheduled sessionStatus = "scheduled"
	statusWarned    sessionStatus = "warned"
	statusActive    sessionStatus = "active"
	statusEnded     sessionStatus = "ended"
	statusCancelled sessionStatus = "cancelled"
)

// trackedSession is the controller's logical view of one scrim. The status
// here is deliberately not the scheduled event's own status: it is what lets
// the controller tell an externally ended event that should be resurrected
// apart from one we tore down on purpose.
type trackedSession struct {
	sessionID       string
	signupMessageID string
	name            string
	status          sessionStatus
	startAt         time.Time
}

func (s *trackedSession) live() bool {
	switch s.status {
	case statusScheduled, statusWarned, statusActive:
		return true
	default:
		return false
	}
}

type Manager struct {
	cfg     *config.Config
	store   store.Store
	discord discord.Client
	notify  webhook.Sender

	mu          sync.Mutex
	sessions    map[string]*trackedSession
	warned      map[string]struct{}
	tearingDown bool
	botUserID   string

	// storeMu serializes read-modify-write cycles against the store so
	// interleaving passes cannot lose each other's updates.
	storeMu sync.Mutex
}

// updateSessionMap runs one exclusive read-modify-write cycle against the
// persisted session mapping.
func (m *Manager) updateSessionMap(ctx context.Context, mutate func(store.SessionMap)) error {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()
	sessionMap, err := m.store.SessionMap(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session map: %w", err)
	}
	mutate(sessionMap)
	return m.store.PutSessionMap(ctx, sessionMap)
}

func NewManager(cfg *config.Config, st store.Store, dc discord.Client, notify webhook.Sender) *Manager {
	return &Manager{
		cfg:      cfg,
		store:    st,
		discord:  dc,
		notify:   notify,
		sessions: make(map[string]*trackedSession),
		warned:   make(map[string]struct{}),
	}
}

func (m *Manager) SetBotUserID(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.botUserID = userID
}

// isOwnUser identifies the bot's own account, which seeds the signup marker
// on every announcement and must never count as a registrant even when the
// gateway payload lacks the bot flag.
func (m *Manager) isOwnUser(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.botUserID != "" && userID == m.botUserID
}

// Bootstrap rebuilds the in-memory session view from the persisted mapping
// and the guild's scheduled events, then runs one full registration pass so
// role state is correct even after the process was down for a while.
func (m *Manager) Bootstrap(ctx context.Context) error {
	sessionMap, err := m.store.SessionMap(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session map: %w", err)
	}
	events, err := m.discord.ListScheduledEvents(m.cfg.DiscordGuildID)
	if err != nil {
		return fmt.Errorf("failed to list scheduled events: %w", err)
	}
	eventsByID := make(map[string]discord.ScheduledEvent, len(events))
	for _, ev := range events {
		eventsByID[ev.ID] = ev
	}

	m.mu.Lock()
	for sessionID, messageID := range sessionMap {
		ts := &trackedSession{
			sessionID:       sessionID,
			signupMessageID: messageID,
			status:          statusEnded,
		}
		if ev, ok := eventsByID[sessionID]; ok {
			ts.name = ev.Name
			ts.startAt = ev.StartAt
			switch ev.Status {
			case discord.EventStatusScheduled:
				ts.status = statusScheduled
			case discord.EventStatusActive:
				ts.status = statusActive
			}
		}
		m.sessions[sessionID] = ts
	}
	tracked := len(m.sessions)
	m.mu.Unlock()

	slog.Info("bootstrap: session view rebuilt", "tracked_sessions", tracked)
	if err := m.ReconcileRegistration(ctx); err != nil {
		return fmt.Errorf("bootstrap registration reconcile failed: %w", err)
	}
	return nil
}

// liveSession returns the at-most-one session that is scheduled, warned or
// active. Callers must hold m.mu.
func (m *Manager) liveSessionLocked() *trackedSession {
	for _, ts := range m.sessions {
		if ts.live() {
			return ts
		}
	}
	return nil
}

func (m *Manager) hasLiveSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveSessionLocked() != nil
}

func (m *Manager) sendLifecycleEvent(ctx context.Context, kind string, ts *trackedSession) {
	event := webhook.LifecycleEvent{
		Kind:       kind,
		OccurredAt: time.Now(),
	}
	if ts != nil {
		event.SessionID = ts.sessionID
		event.SignupMessageID = ts.signupMessageID
	}
	if err := m.notify.SendLifecycleEvent(ctx, event); err != nil {
		slog.Error("failed to send lifecycle webhook", "error", err, "kind", kind)
	}
}
