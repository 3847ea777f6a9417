package scrim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quailrun-gg/scrimsync/internal/discord"
	"github.com/quailrun-gg/scrimsync/internal/store"
)

// The poll runs once a minute, so every time-based trigger uses a tolerance
// band instead of an exact instant: a skipped tick may never observe the
// exact remaining time.
const (
	warnLead      = 30 * time.Minute
	warnTolerance = 2 * time.Minute
	startGrace    = 5 * time.Minute

	// Discord rejects events scheduled in the past, so a resurrected
	// session is created a moment ahead and started immediately.
	resurrectStartDelay = time.Minute
)

var (
	errSessionInProgress = errors.New("a scrim session is already live")
	errNoLiveSession     = errors.New("no scrim session is currently live")
)

// BeginSession posts the signup announcement, seeds the signup marker,
// creates the guild scheduled event and persists the mapping. Partial
// failures roll the external artifacts back so no orphan announcement or
// event survives a failed create.
func (m *Manager) BeginSession(ctx context.Context, name, description string, startAt time.Time) error {
	m.mu.Lock()
	if live := m.liveSessionLocked(); live != nil {
		m.mu.Unlock()
		return errSessionInProgress
	}
	m.mu.Unlock()

	messageID, err := m.discord.SendSignupAnnouncement(discord.SignupAnnouncement{
		ChannelID:      m.cfg.SignupChannelID,
		Title:          name,
		Description:    description,
		StartAt:        startAt,
		MentionRoleIDs: m.cfg.MentionRoleIDs,
	})
	if err != nil {
		return fmt.Errorf("failed to post signup announcement: %w", err)
	}
	if err := m.discord.AddReaction(m.cfg.SignupChannelID, messageID, m.cfg.SignupEmoji); err != nil {
		slog.Warn("failed to seed signup marker", "error", err, "message_id", messageID)
	}

	ev, err := m.discord.CreateScheduledEvent(ctx, discord.CreateEventInput{
		GuildID:     m.cfg.DiscordGuildID,
		Name:        name,
		Description: description,
		ChannelID:   m.cfg.MeetingVCID,
		StartAt:     startAt,
	})
	if err != nil {
		_ = m.discord.DeleteMessage(m.cfg.SignupChannelID, messageID)
		return fmt.Errorf("failed to create scheduled event: %w", err)
	}

	err = m.updateSessionMap(ctx, func(sessionMap store.SessionMap) {
		sessionMap[ev.ID] = messageID
	})
	if err != nil {
		_ = m.discord.DeleteScheduledEvent(m.cfg.DiscordGuildID, ev.ID)
		_ = m.discord.DeleteMessage(m.cfg.SignupChannelID, messageID)
		return fmt.Errorf("failed to persist session mapping: %w", err)
	}

	ts := &trackedSession{
		sessionID:       ev.ID,
		signupMessageID: messageID,
		name:            name,
		status:          statusScheduled,
		startAt:         startAt,
	}
	m.mu.Lock()
	m.sessions[ev.ID] = ts
	m.mu.Unlock()

	slog.Info("scrim session scheduled", "session_id", ev.ID, "message_id", messageID, "start_at", startAt)
	m.sendLifecycleEvent(ctx, "scheduled", ts)
	return nil
}

// PollLifecycle advances the live session along its time-based transitions:
// a single warning inside the lead window, then auto-start once the start
// instant is reached or was passed within the grace band.
func (m *Manager) PollLifecycle(ctx context.Context, now time.Time) {
	m.mu.Lock()
	ts := m.liveSessionLocked()
	if ts == nil {
		m.mu.Unlock()
		return
	}
	remaining := ts.startAt.Sub(now)

	var warnDue, startDue bool
	switch {
	case remaining <= 0 && remaining > -startGrace:
		if ts.status == statusScheduled || ts.status == statusWarned {
			ts.status = statusActive
			startDue = true
		}
	case remaining <= warnLead && remaining > warnLead-warnTolerance:
		if ts.status == statusScheduled {
			if _, already := m.warned[ts.sessionID]; !already {
				m.warned[ts.sessionID] = struct{}{}
				ts.status = statusWarned
				warnDue = true
			}
		}
	}
	snapshot := *ts
	m.mu.Unlock()

	if warnDue {
		slog.Info("scrim starting soon; posting warning", "session_id", snapshot.sessionID, "remaining", remaining)
		if err := m.discord.SendChannelMessage(m.cfg.SignupChannelID, warningMessage(snapshot.name, snapshot.startAt)); err != nil {
			slog.Error("failed to post start warning", "error", err, "session_id", snapshot.sessionID)
		}
	}
	if startDue {
		m.startSession(ctx, snapshot)
	}
}

func (m *Manager) startSession(ctx context.Context, snapshot trackedSession) {
	if err := m.discord.StartScheduledEvent(m.cfg.DiscordGuildID, snapshot.sessionID); err != nil {
		slog.Error("failed to start scheduled event; retrying next tick", "error", err, "session_id", snapshot.sessionID)
		m.mu.Lock()
		if ts, ok := m.sessions[snapshot.sessionID]; ok && ts.status == statusActive {
			ts.status = statusWarned
		}
		m.mu.Unlock()
		return
	}
	slog.Info("scrim session started", "session_id", snapshot.sessionID)
	if err := m.discord.SendChannelMessage(m.cfg.SignupChannelID, startedMessage(snapshot.name)); err != nil {
		slog.Error("failed to post start announcement", "error", err, "session_id", snapshot.sessionID)
	}
	m.sendLifecycleEvent(ctx, "started", &snapshot)
}

// EndSession tears the live session down on purpose. The teardown flag keeps
// the scheduled-event update handler from treating the resulting external
// "ended" notification as an unwanted termination.
func (m *Manager) EndSession(ctx context.Context) error {
	m.mu.Lock()
	ts := m.liveSessionLocked()
	if ts == nil {
		m.mu.Unlock()
		return errNoLiveSession
	}
	m.tearingDown = true
	wasActive := ts.status == statusActive
	ts.status = statusEnded
	snapshot := *ts
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.tearingDown = false
		m.mu.Unlock()
	}()

	var err error
	if wasActive {
		err = m.discord.EndScheduledEvent(m.cfg.DiscordGuildID, snapshot.sessionID)
	} else {
		err = m.discord.DeleteScheduledEvent(m.cfg.DiscordGuildID, snapshot.sessionID)
	}
	if err != nil && !errors.Is(err, discord.ErrNotFound) {
		slog.Error("failed to end scheduled event", "error", err, "session_id", snapshot.sessionID)
		return fmt.Errorf("failed to end scheduled event: %w", err)
	}

	if err := m.discord.SendChannelMessage(m.cfg.SignupChannelID, endedMessage(snapshot.name)); err != nil {
		slog.Error("failed to post end announcement", "error", err, "session_id", snapshot.sessionID)
	}
	slog.Info("scrim session ended", "session_id", snapshot.sessionID)
	m.sendLifecycleEvent(ctx, "ended", &snapshot)
	return nil
}

// CancelSession is the administrative delete: the scheduled event, the
// signup message and the mapping entry all go away, and resurrection is
// suppressed for the duration.
func (m *Manager) CancelSession(ctx context.Context) error {
	m.mu.Lock()
	ts := m.liveSessionLocked()
	if ts == nil {
		m.mu.Unlock()
		return errNoLiveSession
	}
	m.tearingDown = true
	ts.status = statusCancelled
	delete(m.sessions, ts.sessionID)
	delete(m.warned, ts.sessionID)
	snapshot := *ts
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.tearingDown = false
		m.mu.Unlock()
	}()

	if err := m.discord.DeleteScheduledEvent(m.cfg.DiscordGuildID, snapshot.sessionID); err != nil && !errors.Is(err, discord.ErrNotFound) {
		slog.Error("failed to delete scheduled event", "error", err, "session_id", snapshot.sessionID)
	}
	if err := m.discord.DeleteMessage(m.cfg.SignupChannelID, snapshot.signupMessageID); err != nil && !errors.Is(err, discord.ErrNotFound) {
		slog.Error("failed to delete signup message", "error", err, "message_id", snapshot.signupMessageID)
	}

	err := m.updateSessionMap(ctx, func(sessionMap store.SessionMap) {
		delete(sessionMap, snapshot.sessionID)
	})
	if err != nil {
		slog.Error("failed to remove cancelled session from store; will self-heal on next pass", "error", err, "session_id", snapshot.sessionID)
	}

	slog.Info("scrim session cancelled", "session_id", snapshot.sessionID)
	m.sendLifecycleEvent(ctx, "cancelled", &snapshot)
	return nil
}

// HandleScheduledEventUpdate reacts to external lifecycle transitions. A
// session that Discord reports as ended while the controller still considers
// it active was terminated against our intent and gets resurrected, unless
// an intentional teardown is in flight.
func (m *Manager) HandleScheduledEventUpdate(event discord.ScheduledEventUpdateEvent) {
	if event.GuildID != m.cfg.DiscordGuildID {
		return
	}
	if event.Status != discord.EventStatusCompleted && event.Status != discord.EventStatusCancelled {
		return
	}

	m.mu.Lock()
	if m.tearingDown {
		m.mu.Unlock()
		slog.Info("external session end during intentional teardown; not resurrecting", "session_id", event.EventID)
		return
	}
	ts, ok := m.sessions[event.EventID]
	if !ok || ts.status != statusActive {
		m.mu.Unlock()
		return
	}
	// Claim the resurrection before releasing the lock so a duplicate
	// notification cannot create a second replacement session.
	ts.status = statusEnded
	snapshot := *ts
	m.mu.Unlock()

	slog.Warn("session ended externally while logically active; resurrecting", "session_id", snapshot.sessionID)
	m.resurrect(context.Background(), snapshot)
}

// resurrect replaces an externally terminated session with a fresh one that
// starts immediately, re-keying the mapping so the existing signup message
// now tracks the new session.
func (m *Manager) resurrect(ctx context.Context, old trackedSession) {
	name := old.name
	if name == "" {
		name = "Scrim"
	}
	startAt := time.Now().Add(resurrectStartDelay)
	ev, err := m.discord.CreateScheduledEvent(ctx, discord.CreateEventInput{
		GuildID:   m.cfg.DiscordGuildID,
		Name:      name,
		ChannelID: m.cfg.MeetingVCID,
		StartAt:   startAt,
	})
	if err != nil {
		slog.Error("resurrection failed: could not create replacement event", "error", err, "old_session_id", old.sessionID)
		return
	}
	if err := m.discord.StartScheduledEvent(m.cfg.DiscordGuildID, ev.ID); err != nil {
		slog.Error("failed to start resurrected event; it will start on schedule", "error", err, "session_id", ev.ID)
	}

	err = m.updateSessionMap(ctx, func(sessionMap store.SessionMap) {
		delete(sessionMap, old.sessionID)
		sessionMap[ev.ID] = old.signupMessageID
	})
	if err != nil {
		slog.Error("failed to re-key session mapping; will retry via next reconciliation", "error", err, "session_id", ev.ID)
	}

	ts := &trackedSession{
		sessionID:       ev.ID,
		signupMessageID: old.signupMessageID,
		name:            name,
		status:          statusActive,
		startAt:         startAt,
	}
	m.mu.Lock()
	delete(m.sessions, old.sessionID)
	m.sessions[ev.ID] = ts
	// The replacement is already running; it must never receive a warning.
	m.warned[ev.ID] = struct{}{}
	m.mu.Unlock()

	slog.Info("session resurrected", "old_session_id", old.sessionID, "session_id", ev.ID, "message_id", old.signupMessageID)
	if err := m.discord.SendChannelMessage(m.cfg.SignupChannelID, resurrectedMessage(name)); err != nil {
		slog.Error("failed to post resurrection announcement", "error", err, "session_id", ev.ID)
	}
	m.sendLifecycleEvent(ctx, "resurrected", ts)
}
