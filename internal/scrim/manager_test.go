package scrim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/quailrun-gg/scrimsync/internal/config"
	"github.com/quailrun-gg/scrimsync/internal/discord"
	"github.com/quailrun-gg/scrimsync/internal/store"
	"github.com/quailrun-gg/scrimsync/internal/webhook"
)

type mockStore struct {
	sessionMap store.SessionMap
	attendance store.AttendanceMap
	wins       store.WinMap

	sessionMapErr  error
	putSessionMaps int
}

func newMockStore() *mockStore {
	return &mockStore{
		sessionMap: store.SessionMap{},
		attendance: store.AttendanceMap{},
		wins:       store.WinMap{},
	}
}

func (s *mockStore) SessionMap(_ context.Context) (store.SessionMap, error) {
	if s.sessionMapErr != nil {
		return nil, s.sessionMapErr
	}
	m := store.SessionMap{}
	for k, v := range s.sessionMap {
		m[k] = v
	}
	return m, nil
}

func (s *mockStore) PutSessionMap(_ context.Context, m store.SessionMap) error {
	s.putSessionMaps++
	s.sessionMap = store.SessionMap{}
	for k, v := range m {
		s.sessionMap[k] = v
	}
	return nil
}

func (s *mockStore) Attendance(_ context.Context) (store.AttendanceMap, error) {
	m := store.AttendanceMap{}
	for k, v := range s.attendance {
		m[k] = v
	}
	return m, nil
}

func (s *mockStore) PutAttendance(_ context.Context, m store.AttendanceMap) error {
	s.attendance = m
	return nil
}

func (s *mockStore) Wins(_ context.Context) (store.WinMap, error) {
	m := store.WinMap{}
	for k, v := range s.wins {
		m[k] = v
	}
	return m, nil
}

func (s *mockStore) PutWins(_ context.Context, m store.WinMap) error {
	s.wins = m
	return nil
}

type mockDiscordClient struct {
	reactions       map[string][]discord.ReactionUser
	missingMessages map[string]struct{}
	roleHolders     map[string]map[string]struct{}
	occupants       []discord.VoiceOccupant
	occupancyErr    error
	listedEvents    []discord.ScheduledEvent

	fetchedMessages []string
	roleAdds        []string
	roleRemoves     []string
	sentMessages    []string
	announcements   []discord.SignupAnnouncement
	deletedMessages []string
	createdEvents   []discord.CreateEventInput
	startedEvents   []string
	endedEvents     []string
	deletedEvents   []string
	nextEventID     int
	nextMessageID   int
}

func newMockDiscordClient() *mockDiscordClient {
	return &mockDiscordClient{
		reactions:       map[string][]discord.ReactionUser{},
		missingMessages: map[string]struct{}{},
		roleHolders:     map[string]map[string]struct{}{},
	}
}

func (m *mockDiscordClient) holders(roleID string) map[string]struct{} {
	if m.roleHolders[roleID] == nil {
		m.roleHolders[roleID] = map[string]struct{}{}
	}
	return m.roleHolders[roleID]
}

func (m *mockDiscordClient) Connect(_ context.Context) error { return nil }
func (m *mockDiscordClient) Close() error                    { return nil }
func (m *mockDiscordClient) Run() error                      { return nil }
func (m *mockDiscordClient) GetBotUserID() (string, error)   { return "bot-self", nil }

func (m *mockDiscordClient) SendSignupAnnouncement(msg discord.SignupAnnouncement) (string, error) {
	m.announcements = append(m.announcements, msg)
	m.nextMessageID++
	return fmt.Sprintf("msg-%d", m.nextMessageID), nil
}

func (m *mockDiscordClient) SendChannelMessage(_ string, content string) error {
	m.sentMessages = append(m.sentMessages, content)
	return nil
}

func (m *mockDiscordClient) DeleteMessage(_, messageID string) error {
	m.deletedMessages = append(m.deletedMessages, messageID)
	return nil
}

func (m *mockDiscordClient) AddReaction(_, _, _ string) error { return nil }

func (m *mockDiscordClient) ListReactionUsers(_, messageID, _ string) ([]discord.ReactionUser, error) {
	m.fetchedMessages = append(m.fetchedMessages, messageID)
	if _, gone := m.missingMessages[messageID]; gone {
		return nil, discord.ErrNotFound
	}
	return m.reactions[messageID], nil
}

func (m *mockDiscordClient) RoleMembers(_, roleID string) ([]string, error) {
	out := make([]string, 0, len(m.holders(roleID)))
	for userID := range m.holders(roleID) {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out, nil
}

func (m *mockDiscordClient) AddMemberRole(_, userID, roleID string) error {
	m.roleAdds = append(m.roleAdds, userID+":"+roleID)
	m.holders(roleID)[userID] = struct{}{}
	return nil
}

func (m *mockDiscordClient) RemoveMemberRole(_, userID, roleID string) error {
	m.roleRemoves = append(m.roleRemoves, userID+":"+roleID)
	delete(m.holders(roleID), userID)
	return nil
}

func (m *mockDiscordClient) VoiceOccupancy(_ string) ([]discord.VoiceOccupant, error) {
	if m.occupancyErr != nil {
		return nil, m.occupancyErr
	}
	return m.occupants, nil
}

func (m *mockDiscordClient) CreateScheduledEvent(_ context.Context, input discord.CreateEventInput) (*discord.ScheduledEvent, error) {
	m.createdEvents = append(m.createdEvents, input)
	m.nextEventID++
	return &discord.ScheduledEvent{
		ID:        fmt.Sprintf("event-%d", m.nextEventID),
		Name:      input.Name,
		ChannelID: input.ChannelID,
		StartAt:   input.StartAt,
		Status:    discord.EventStatusScheduled,
	}, nil
}

func (m *mockDiscordClient) StartScheduledEvent(_, eventID string) error {
	m.startedEvents = append(m.startedEvents, eventID)
	return nil
}

func (m *mockDiscordClient) EndScheduledEvent(_, eventID string) error {
	m.endedEvents = append(m.endedEvents, eventID)
	return nil
}

func (m *mockDiscordClient) DeleteScheduledEvent(_, eventID string) error {
	m.deletedEvents = append(m.deletedEvents, eventID)
	return nil
}

func (m *mockDiscordClient) ListScheduledEvents(_ string) ([]discord.ScheduledEvent, error) {
	return m.listedEvents, nil
}

func (m *mockDiscordClient) RegisterReactionAddHandler(_ func(discord.ReactionEvent))    {}
func (m *mockDiscordClient) RegisterReactionRemoveHandler(_ func(discord.ReactionEvent)) {}
func (m *mockDiscordClient) RegisterMessageDeleteHandler(_ func(discord.MessageDeleteEvent)) {
}
func (m *mockDiscordClient) RegisterScheduledEventUpdateHandler(_ func(discord.ScheduledEventUpdateEvent)) {
}
func (m *mockDiscordClient) RegisterSlashCommandHandler(_ func(discord.SlashCommandEvent)) {}
func (m *mockDiscordClient) UpsertGuildSlashCommands(_ string, _ []discord.SlashCommandDefinition) error {
	return nil
}

type mockSender struct {
	events []webhook.LifecycleEvent
}

func (m *mockSender) SendLifecycleEvent(_ context.Context, event webhook.LifecycleEvent) error {
	m.events = append(m.events, event)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Env:              "development",
		DiscordToken:     "token",
		DiscordGuildID:   "guild-1",
		SignupChannelID:  "signup-1",
		MeetingVCID:      "vc-meeting",
		RegisteredRoleID: "role-reg",
		ActiveRoleID:     "role-active",
		SpectatorRoleID:  "role-spec",
		SignupEmoji:      "✅",
		DatabaseURL:      "postgres://localhost/scrimsync",
	}
}

func newTestManager(st *mockStore, dc *mockDiscordClient) *Manager {
	return NewManager(testConfig(), st, dc, &mockSender{})
}

func (m *Manager) seedSession(ts *trackedSession) {
	m.mu.Lock()
	m.sessions[ts.sessionID] = ts
	m.mu.Unlock()
}

func TestReconcileRegistration_Converges(t *testing.T) {
	st := newMockStore()
	st.sessionMap["event-old"] = "msg-1"
	dc := newMockDiscordClient()
	dc.reactions["msg-1"] = []discord.ReactionUser{
		{UserID: "user-a"},
		{UserID: "user-b"},
		{UserID: "bot-1", IsBot: true},
	}
	dc.holders("role-reg")["user-b"] = struct{}{}
	dc.holders("role-reg")["user-c"] = struct{}{}
	manager := newTestManager(st, dc)

	if err := manager.ReconcileRegistration(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := dc.RoleMembers("guild-1", "role-reg")
	want := []string{"user-a", "user-b"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("unexpected role holders: %v", got)
	}
}

func TestReconcileRegistration_Idempotent(t *testing.T) {
	st := newMockStore()
	st.sessionMap["event-old"] = "msg-1"
	dc := newMockDiscordClient()
	dc.reactions["msg-1"] = []discord.ReactionUser{{UserID: "user-a"}}
	dc.holders("role-reg")["user-c"] = struct{}{}
	manager := newTestManager(st, dc)

	if err := manager.ReconcileRegistration(context.Background()); err != nil {
		t.Fatalf("unexpected error on first pass: %v", err)
	}
	mutations := len(dc.roleAdds) + len(dc.roleRemoves)
	if mutations == 0 {
		t.Fatal("expected mutations on the first pass")
	}

	if err := manager.ReconcileRegistration(context.Background()); err != nil {
		t.Fatalf("unexpected error on second pass: %v", err)
	}
	if got := len(dc.roleAdds) + len(dc.roleRemoves); got != mutations {
		t.Fatalf("expected no mutations on second pass, got %d extra", got-mutations)
	}
}

func TestReconcileRegistration_DropsVanishedMessage(t *testing.T) {
	st := newMockStore()
	st.sessionMap["event-1"] = "msg-1"
	st.sessionMap["event-2"] = "msg-2"
	dc := newMockDiscordClient()
	dc.reactions["msg-1"] = []discord.ReactionUser{{UserID: "user-a"}}
	dc.missingMessages["msg-2"] = struct{}{}
	manager := newTestManager(st, dc)

	if err := manager.ReconcileRegistration(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := st.sessionMap["event-2"]; ok {
		t.Fatal("expected vanished message mapping to be dropped from store")
	}
	if _, ok := st.sessionMap["event-1"]; !ok {
		t.Fatal("expected surviving mapping to be kept")
	}

	dc.fetchedMessages = nil
	if err := manager.ReconcileRegistration(context.Background()); err != nil {
		t.Fatalf("unexpected error on second pass: %v", err)
	}
	for _, messageID := range dc.fetchedMessages {
		if messageID == "msg-2" {
			t.Fatal("expected dropped message to never be fetched again")
		}
	}
}

func TestReconcileRegistration_IgnoresOwnSeedReaction(t *testing.T) {
	st := newMockStore()
	st.sessionMap["event-1"] = "msg-1"
	dc := newMockDiscordClient()
	// The bot's own seed reaction arrives without the bot flag set.
	dc.reactions["msg-1"] = []discord.ReactionUser{
		{UserID: "bot-self"},
		{UserID: "user-a"},
	}
	manager := newTestManager(st, dc)
	manager.SetBotUserID("bot-self")

	if err := manager.ReconcileRegistration(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := dc.RoleMembers("guild-1", "role-reg")
	if len(got) != 1 || got[0] != "user-a" {
		t.Fatalf("expected only user-a to be registered, got %v", got)
	}
}

func TestReconcileRegistration_StoreFailureMutatesNothing(t *testing.T) {
	st := newMockStore()
	st.sessionMapErr = errors.New("storage offline")
	dc := newMockDiscordClient()
	dc.holders("role-reg")["user-c"] = struct{}{}
	manager := newTestManager(st, dc)

	if err := manager.ReconcileRegistration(context.Background()); err == nil {
		t.Fatal("expected pass-level error when the store is unavailable")
	}
	if len(dc.roleAdds)+len(dc.roleRemoves) != 0 {
		t.Fatalf("expected no role mutations, got adds=%v removes=%v", dc.roleAdds, dc.roleRemoves)
	}
}

func TestReconcileVoicePresence_Partition(t *testing.T) {
	st := newMockStore()
	dc := newMockDiscordClient()
	dc.occupants = []discord.VoiceOccupant{
		{UserID: "user-m", ChannelID: "vc-meeting"},
		{UserID: "user-n", ChannelID: "vc-other"},
		{UserID: "bot-1", ChannelID: "vc-other", IsBot: true},
	}
	// user-p left voice but still carries both roles from an earlier pass.
	dc.holders("role-active")["user-p"] = struct{}{}
	dc.holders("role-spec")["user-p"] = struct{}{}
	dc.holders("role-active")["user-m"] = struct{}{}
	manager := newTestManager(st, dc)

	if err := manager.ReconcileVoicePresence(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := dc.holders("role-spec")["user-m"]; !ok {
		t.Fatal("expected meeting-channel occupant to hold spectator")
	}
	if _, ok := dc.holders("role-active")["user-m"]; ok {
		t.Fatal("expected meeting-channel occupant to not hold active")
	}
	if _, ok := dc.holders("role-active")["user-n"]; !ok {
		t.Fatal("expected other-VC occupant to hold active")
	}
	if _, ok := dc.holders("role-spec")["user-n"]; ok {
		t.Fatal("expected other-VC occupant to not hold spectator")
	}
	if _, ok := dc.holders("role-active")["user-p"]; ok {
		t.Fatal("expected member outside voice to lose active")
	}
	if _, ok := dc.holders("role-spec")["user-p"]; ok {
		t.Fatal("expected member outside voice to lose spectator")
	}
	if _, ok := dc.holders("role-active")["bot-1"]; ok {
		t.Fatal("expected bots to be ignored")
	}
}

func TestReconcileVoicePresence_SnapshotFailureMutatesNothing(t *testing.T) {
	st := newMockStore()
	dc := newMockDiscordClient()
	dc.occupancyErr = errors.New("guild not in state")
	dc.holders("role-active")["user-p"] = struct{}{}
	dc.holders("role-spec")["user-q"] = struct{}{}
	manager := newTestManager(st, dc)

	if err := manager.ReconcileVoicePresence(context.Background()); err == nil {
		t.Fatal("expected pass-level error when occupancy cannot be enumerated")
	}
	if len(dc.roleAdds)+len(dc.roleRemoves) != 0 {
		t.Fatalf("expected no role mutations, got adds=%v removes=%v", dc.roleAdds, dc.roleRemoves)
	}
	if _, ok := dc.holders("role-active")["user-p"]; !ok {
		t.Fatal("expected existing active holder to be untouched")
	}
	if _, ok := dc.holders("role-spec")["user-q"]; !ok {
		t.Fatal("expected existing spectator holder to be untouched")
	}
}

func TestPollLifecycle_WarnsExactlyOnce(t *testing.T) {
	st := newMockStore()
	dc := newMockDiscordClient()
	manager := newTestManager(st, dc)
	base := time.Now()
	manager.seedSession(&trackedSession{
		sessionID:       "event-1",
		signupMessageID: "msg-1",
		name:            "Friday Scrim",
		status:          statusScheduled,
		startAt:         base.Add(29*time.Minute + 50*time.Second),
	})

	for i := 0; i < 10; i++ {
		manager.PollLifecycle(context.Background(), base.Add(time.Duration(i)*time.Minute))
	}

	if len(dc.sentMessages) != 1 {
		t.Fatalf("expected exactly one warning across ten ticks, got %d: %v", len(dc.sentMessages), dc.sentMessages)
	}
	if len(dc.startedEvents) != 0 {
		t.Fatalf("expected no auto-start yet, got %v", dc.startedEvents)
	}
}

func TestPollLifecycle_AutoStartsOnce(t *testing.T) {
	st := newMockStore()
	dc := newMockDiscordClient()
	manager := newTestManager(st, dc)
	base := time.Now()
	manager.seedSession(&trackedSession{
		sessionID:       "event-1",
		signupMessageID: "msg-1",
		name:            "Friday Scrim",
		status:          statusWarned,
		startAt:         base.Add(-30 * time.Second),
	})

	manager.PollLifecycle(context.Background(), base)
	manager.PollLifecycle(context.Background(), base.Add(time.Minute))

	if len(dc.startedEvents) != 1 || dc.startedEvents[0] != "event-1" {
		t.Fatalf("expected exactly one start, got %v", dc.startedEvents)
	}
	manager.mu.Lock()
	status := manager.sessions["event-1"].status
	manager.mu.Unlock()
	if status != statusActive {
		t.Fatalf("expected session to be active, got %s", status)
	}
}

func TestHandleScheduledEventUpdate_Resurrects(t *testing.T) {
	st := newMockStore()
	st.sessionMap["event-old"] = "msg-1"
	dc := newMockDiscordClient()
	manager := newTestManager(st, dc)
	manager.seedSession(&trackedSession{
		sessionID:       "event-old",
		signupMessageID: "msg-1",
		name:            "Friday Scrim",
		status:          statusActive,
		startAt:         time.Now().Add(-time.Hour),
	})

	update := discord.ScheduledEventUpdateEvent{
		GuildID: "guild-1",
		EventID: "event-old",
		Status:  discord.EventStatusCompleted,
	}
	manager.HandleScheduledEventUpdate(update)
	manager.HandleScheduledEventUpdate(update) // duplicate notification

	if len(dc.createdEvents) != 1 {
		t.Fatalf("expected exactly one replacement event, got %d", len(dc.createdEvents))
	}
	if _, ok := st.sessionMap["event-old"]; ok {
		t.Fatal("expected old session key to be removed from store")
	}
	if got := st.sessionMap["event-1"]; got != "msg-1" {
		t.Fatalf("expected re-keyed mapping to keep the signup message, got %q", got)
	}
	manager.mu.Lock()
	ts := manager.sessions["event-1"]
	manager.mu.Unlock()
	if ts == nil || ts.status != statusActive {
		t.Fatalf("expected resurrected session to be active, got %+v", ts)
	}
}

func TestHandleScheduledEventUpdate_TeardownGuard(t *testing.T) {
	st := newMockStore()
	st.sessionMap["event-old"] = "msg-1"
	dc := newMockDiscordClient()
	manager := newTestManager(st, dc)
	manager.seedSession(&trackedSession{
		sessionID:       "event-old",
		signupMessageID: "msg-1",
		status:          statusActive,
	})
	manager.mu.Lock()
	manager.tearingDown = true
	manager.mu.Unlock()

	manager.HandleScheduledEventUpdate(discord.ScheduledEventUpdateEvent{
		GuildID: "guild-1",
		EventID: "event-old",
		Status:  discord.EventStatusCompleted,
	})

	if len(dc.createdEvents) != 0 {
		t.Fatalf("expected no resurrection during teardown, got %d creates", len(dc.createdEvents))
	}
}

func TestCancelSession_NoResurrectionAfterwards(t *testing.T) {
	st := newMockStore()
	st.sessionMap["event-1"] = "msg-1"
	dc := newMockDiscordClient()
	manager := newTestManager(st, dc)
	manager.seedSession(&trackedSession{
		sessionID:       "event-1",
		signupMessageID: "msg-1",
		status:          statusActive,
	})

	if err := manager.CancelSession(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dc.deletedEvents) != 1 || dc.deletedEvents[0] != "event-1" {
		t.Fatalf("expected scheduled event deletion, got %v", dc.deletedEvents)
	}
	if len(dc.deletedMessages) != 1 || dc.deletedMessages[0] != "msg-1" {
		t.Fatalf("expected signup message deletion, got %v", dc.deletedMessages)
	}
	if len(st.sessionMap) != 0 {
		t.Fatalf("expected empty session map, got %v", st.sessionMap)
	}

	manager.HandleScheduledEventUpdate(discord.ScheduledEventUpdateEvent{
		GuildID: "guild-1",
		EventID: "event-1",
		Status:  discord.EventStatusCancelled,
	})
	if len(dc.createdEvents) != 0 {
		t.Fatalf("expected no resurrection after cancel, got %d creates", len(dc.createdEvents))
	}
}

func TestHandleReactionRemove_KeepsRoleWhenReactedElsewhere(t *testing.T) {
	st := newMockStore()
	st.sessionMap["event-1"] = "msg-1"
	st.sessionMap["event-2"] = "msg-2"
	dc := newMockDiscordClient()
	dc.reactions["msg-2"] = []discord.ReactionUser{{UserID: "user-a"}}
	dc.holders("role-reg")["user-a"] = struct{}{}
	manager := newTestManager(st, dc)

	manager.HandleReactionRemove(discord.ReactionEvent{
		GuildID:   "guild-1",
		ChannelID: "signup-1",
		MessageID: "msg-1",
		UserID:    "user-a",
		Emoji:     "✅",
	})

	if len(dc.roleRemoves) != 0 {
		t.Fatalf("expected role to be kept, got removes %v", dc.roleRemoves)
	}
}

func TestHandleReactionRemove_RevokesWhenLastMarkerGone(t *testing.T) {
	st := newMockStore()
	st.sessionMap["event-1"] = "msg-1"
	dc := newMockDiscordClient()
	dc.holders("role-reg")["user-a"] = struct{}{}
	manager := newTestManager(st, dc)

	manager.HandleReactionRemove(discord.ReactionEvent{
		GuildID:   "guild-1",
		ChannelID: "signup-1",
		MessageID: "msg-1",
		UserID:    "user-a",
		Emoji:     "✅",
	})

	if len(dc.roleRemoves) != 1 || dc.roleRemoves[0] != "user-a:role-reg" {
		t.Fatalf("expected registered role revocation, got %v", dc.roleRemoves)
	}
}

func TestHandleReactionAdd_IgnoresUntrackedAndWrongEmoji(t *testing.T) {
	st := newMockStore()
	st.sessionMap["event-1"] = "msg-1"
	dc := newMockDiscordClient()
	manager := newTestManager(st, dc)

	manager.HandleReactionAdd(discord.ReactionEvent{
		GuildID: "guild-1", MessageID: "msg-other", UserID: "user-a", Emoji: "✅",
	})
	manager.HandleReactionAdd(discord.ReactionEvent{
		GuildID: "guild-1", MessageID: "msg-1", UserID: "user-a", Emoji: "🎉",
	})
	manager.HandleReactionAdd(discord.ReactionEvent{
		GuildID: "guild-1", MessageID: "msg-1", UserID: "bot-1", Emoji: "✅", UserIsBot: true,
	})
	manager.SetBotUserID("bot-self")
	manager.HandleReactionAdd(discord.ReactionEvent{
		GuildID: "guild-1", MessageID: "msg-1", UserID: "bot-self", Emoji: "✅",
	})

	if len(dc.roleAdds) != 0 {
		t.Fatalf("expected no role grants, got %v", dc.roleAdds)
	}

	manager.HandleReactionAdd(discord.ReactionEvent{
		GuildID: "guild-1", MessageID: "msg-1", UserID: "user-a", Emoji: "✅",
	})
	if len(dc.roleAdds) != 1 || dc.roleAdds[0] != "user-a:role-reg" {
		t.Fatalf("expected registered role grant, got %v", dc.roleAdds)
	}
}

func TestUpdateAttendance_PointSample(t *testing.T) {
	st := newMockStore()
	st.sessionMap["event-1"] = "msg-1"
	dc := newMockDiscordClient()
	dc.reactions["msg-1"] = []discord.ReactionUser{{UserID: "user-a"}, {UserID: "user-b"}}
	dc.occupants = []discord.VoiceOccupant{{UserID: "user-a", ChannelID: "vc-other"}}
	manager := newTestManager(st, dc)

	registered, attended, err := manager.UpdateAttendance(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if registered != 2 || attended != 1 {
		t.Fatalf("unexpected counts: registered=%d attended=%d", registered, attended)
	}
	if got := st.attendance["user-a"]; got.Registered != 1 || got.Attended != 1 {
		t.Fatalf("unexpected record for user-a: %+v", got)
	}
	if got := st.attendance["user-b"]; got.Registered != 1 || got.Attended != 0 {
		t.Fatalf("unexpected record for user-b: %+v", got)
	}
}

func TestBeginSession_RejectsSecondLiveSession(t *testing.T) {
	st := newMockStore()
	dc := newMockDiscordClient()
	manager := newTestManager(st, dc)
	manager.seedSession(&trackedSession{
		sessionID: "event-1",
		status:    statusScheduled,
		startAt:   time.Now().Add(time.Hour),
	})

	err := manager.BeginSession(context.Background(), "Second", "", time.Now().Add(2*time.Hour))
	if !errors.Is(err, errSessionInProgress) {
		t.Fatalf("expected errSessionInProgress, got %v", err)
	}
	if len(dc.announcements) != 0 {
		t.Fatalf("expected no announcement, got %d", len(dc.announcements))
	}
}

func TestBeginSession_PersistsMappingAndTracks(t *testing.T) {
	st := newMockStore()
	dc := newMockDiscordClient()
	manager := newTestManager(st, dc)
	startAt := time.Now().Add(time.Hour)

	if err := manager.BeginSession(context.Background(), "Friday Scrim", "bring tryhards", startAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dc.announcements) != 1 || dc.announcements[0].Title != "Friday Scrim" {
		t.Fatalf("unexpected announcements: %+v", dc.announcements)
	}
	if len(dc.createdEvents) != 1 {
		t.Fatalf("expected one scheduled event, got %d", len(dc.createdEvents))
	}
	if got := st.sessionMap["event-1"]; got != "msg-1" {
		t.Fatalf("unexpected mapping: %v", st.sessionMap)
	}
	if !manager.hasLiveSession() {
		t.Fatal("expected a live session after begin")
	}
}

func TestEndSession_SetsEndedAndNotifies(t *testing.T) {
	st := newMockStore()
	st.sessionMap["event-1"] = "msg-1"
	dc := newMockDiscordClient()
	sender := &mockSender{}
	manager := NewManager(testConfig(), st, dc, sender)
	manager.seedSession(&trackedSession{
		sessionID:       "event-1",
		signupMessageID: "msg-1",
		name:            "Friday Scrim",
		status:          statusActive,
	})

	if err := manager.EndSession(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dc.endedEvents) != 1 || dc.endedEvents[0] != "event-1" {
		t.Fatalf("expected event end call, got %v", dc.endedEvents)
	}
	if manager.hasLiveSession() {
		t.Fatal("expected no live session after end")
	}
	if len(sender.events) != 1 || sender.events[0].Kind != "ended" {
		t.Fatalf("unexpected lifecycle events: %+v", sender.events)
	}
	// The mapping survives an end so signups keep counting.
	if _, ok := st.sessionMap["event-1"]; !ok {
		t.Fatal("expected mapping to be kept after end")
	}
}

func TestRecordWin_Accumulates(t *testing.T) {
	st := newMockStore()
	dc := newMockDiscordClient()
	manager := newTestManager(st, dc)

	if _, err := manager.RecordWin(context.Background(), "user-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	total, err := manager.RecordWin(context.Background(), "user-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 wins, got %d", total)
	}
	wins, err := manager.WinCounts(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wins["user-a"] != 2 {
		t.Fatalf("unexpected win map: %v", wins)
	}
}

func TestBootstrap_RebuildsSessionView(t *testing.T) {
	st := newMockStore()
	st.sessionMap["event-1"] = "msg-1"
	st.sessionMap["event-2"] = "msg-2"
	dc := newMockDiscordClient()
	dc.reactions["msg-1"] = []discord.ReactionUser{{UserID: "user-a"}}
	dc.reactions["msg-2"] = nil
	dc.listedEvents = []discord.ScheduledEvent{
		{ID: "event-1", Name: "Friday Scrim", Status: discord.EventStatusScheduled, StartAt: time.Now().Add(time.Hour)},
	}
	manager := newTestManager(st, dc)

	if err := manager.Bootstrap(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !manager.hasLiveSession() {
		t.Fatal("expected live session from listed scheduled event")
	}
	manager.mu.Lock()
	ended := manager.sessions["event-2"]
	manager.mu.Unlock()
	if ended == nil || ended.status != statusEnded {
		t.Fatalf("expected session without event to be ended, got %+v", ended)
	}
	got, _ := dc.RoleMembers("guild-1", "role-reg")
	if len(got) != 1 || got[0] != "user-a" {
		t.Fatalf("expected bootstrap registration resync, got %v", got)
	}
}
