package raffle

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nantokaworks/twitch-raffle-bot/internal/dispatcher"
	"github.com/nantokaworks/twitch-raffle-bot/internal/types"
)

type fakeStore struct {
	raffle       *types.Raffle
	participants []types.RaffleParticipant
}

func (s *fakeStore) GetRaffle() (*types.Raffle, error) {
	if s.raffle == nil {
		return nil, nil
	}
	copied := *s.raffle
	return &copied, nil
}

func (s *fakeStore) UpsertRaffle(r types.Raffle) error {
	s.raffle = &r
	return nil
}

func (s *fakeStore) LockRaffle() error {
	if s.raffle != nil {
		s.raffle.Locked = true
	}
	return nil
}

func (s *fakeStore) SetRaffleWinner(username string, pickedAt time.Time) error {
	if s.raffle != nil {
		s.raffle.Winner = username
		s.raffle.Locked = true
	}
	return nil
}

func (s *fakeStore) AddParticipant(username string, eligible bool) error {
	for _, p := range s.participants {
		if p.Username == username {
			return nil
		}
	}
	s.participants = append(s.participants, types.RaffleParticipant{
		Username: username,
		Eligible: eligible,
	})
	return nil
}

func (s *fakeStore) EligibleParticipants() ([]types.RaffleParticipant, error) {
	var out []types.RaffleParticipant
	for _, p := range s.participants {
		if p.Eligible {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkIneligible(username string) error {
	for i := range s.participants {
		if s.participants[i].Username == username {
			s.participants[i].Eligible = false
		}
	}
	return nil
}

func (s *fakeStore) DeleteAllParticipants() error {
	s.participants = nil
	return nil
}

type fakeNotifier struct {
	said     []string
	forced   []string
	whispers map[string][]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{whispers: make(map[string][]string)}
}

func (n *fakeNotifier) Say(text string)       { n.said = append(n.said, text) }
func (n *fakeNotifier) SayForced(text string) { n.forced = append(n.forced, text) }
func (n *fakeNotifier) Whisper(userID, text string) {
	n.whispers[userID] = append(n.whispers[userID], text)
}

func (n *fakeNotifier) lastSaid() string {
	if len(n.said) == 0 {
		return ""
	}
	return n.said[len(n.said)-1]
}

type fakeBinder struct {
	handlers     map[string]dispatcher.Handler
	unregistered []string
}

func newFakeBinder() *fakeBinder {
	return &fakeBinder{handlers: make(map[string]dispatcher.Handler)}
}

func (b *fakeBinder) Register(keyword string, tier dispatcher.Tier, handler dispatcher.Handler) {
	b.handlers[keyword] = handler
}

func (b *fakeBinder) Unregister(keyword string) {
	delete(b.handlers, keyword)
	b.unregistered = append(b.unregistered, keyword)
}

func (b *fakeBinder) IsRegistered(keyword string) bool {
	_, ok := b.handlers[keyword]
	return ok
}

type fakeDirectory struct {
	viewers map[string]*types.Viewer
}

func (d *fakeDirectory) Viewer(username string) (*types.Viewer, error) {
	return d.viewers[username], nil
}

type fakeTitles struct {
	title    string
	setCalls []string
}

func (t *fakeTitles) Title() (string, error) { return t.title, nil }
func (t *fakeTitles) SetTitle(title string) error {
	t.title = title
	t.setCalls = append(t.setCalls, title)
	return nil
}

type fakeConfig struct {
	interval int
	custom   string
	template string
}

func (c *fakeConfig) AnnounceIntervalMinutes() int  { return c.interval }
func (c *fakeConfig) CustomAnnounceMessage() string { return c.custom }
func (c *fakeConfig) TitleTemplate() string         { return c.template }

type fakeWidgets struct {
	winners []WinnerEvent
}

func (w *fakeWidgets) SendWinner(winner WinnerEvent) {
	w.winners = append(w.winners, winner)
}

type engineFixture struct {
	engine  *Engine
	store   *fakeStore
	notify  *fakeNotifier
	binder  *fakeBinder
	dir     *fakeDirectory
	titles  *fakeTitles
	config  *fakeConfig
	widgets *fakeWidgets
	clock   time.Time
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	f := &engineFixture{
		store:   &fakeStore{},
		notify:  newFakeNotifier(),
		binder:  newFakeBinder(),
		dir:     &fakeDirectory{viewers: make(map[string]*types.Viewer)},
		titles:  &fakeTitles{title: "Playing games"},
		config:  &fakeConfig{interval: 10},
		widgets: &fakeWidgets{},
		clock:   time.Date(2026, 1, 10, 20, 0, 0, 0, time.UTC),
	}
	f.engine = New(Deps{
		Binder:    f.binder,
		Store:     f.store,
		Notify:    f.notify,
		Directory: f.dir,
		Titles:    f.titles,
		Config:    f.config,
		Widgets:   f.widgets,
	})
	f.engine.now = func() time.Time { return f.clock }
	return f
}

func (f *engineFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

var owner = dispatcher.Sender{UserID: "1", Username: "streamer", IsOwner: true}

func TestOpenPersistsAndAnnounces(t *testing.T) {
	f := newEngineFixture(t)

	f.engine.Open(owner, "winme Steam Key")

	if f.store.raffle == nil {
		t.Fatal("raffle was not persisted")
	}
	if f.store.raffle.Keyword != "winme" {
		t.Fatalf("unexpected keyword: got=%q want=%q", f.store.raffle.Keyword, "winme")
	}
	if f.store.raffle.Product != "Steam Key" {
		t.Fatalf("unexpected product: got=%q", f.store.raffle.Product)
	}

	want := "Raffle about Steam Key is running! Join with !winme."
	if f.notify.lastSaid() != want {
		t.Fatalf("unexpected announcement: got=%q want=%q", f.notify.lastSaid(), want)
	}
	if !f.binder.IsRegistered("winme") {
		t.Fatal("keyword was not bound as a command")
	}
}

func TestOpenWipesParticipantsAndRebindsKeyword(t *testing.T) {
	f := newEngineFixture(t)

	f.engine.Open(owner, "first")
	f.store.participants = []types.RaffleParticipant{{Username: "alice", Eligible: true}}

	f.engine.Open(owner, "second")

	if len(f.store.participants) != 0 {
		t.Fatalf("participants should have been wiped, got %d", len(f.store.participants))
	}
	if f.binder.IsRegistered("first") {
		t.Fatal("previous keyword should have been unregistered")
	}
	if !f.binder.IsRegistered("second") {
		t.Fatal("new keyword should be registered")
	}
}

func TestOpenParseFailureLeavesStateUntouched(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.Open(owner, "first")
	f.store.participants = []types.RaffleParticipant{{Username: "alice", Eligible: true}}

	if err := f.engine.Open(owner, "min=x second"); !errors.Is(err, ErrInvalidOpenArgs) {
		t.Fatalf("expected ErrInvalidOpenArgs, got: %v", err)
	}

	if f.notify.lastSaid() != "Raffle could not be opened" {
		t.Fatalf("unexpected error message: got=%q", f.notify.lastSaid())
	}
	if f.store.raffle.Keyword != "first" {
		t.Fatal("existing raffle should be untouched after a parse failure")
	}
	if len(f.store.participants) != 1 {
		t.Fatal("participants should be untouched after a parse failure")
	}
}

func TestOpenKeywordCollision(t *testing.T) {
	f := newEngineFixture(t)
	f.binder.Register("raffle", dispatcher.TierViewer, func(dispatcher.Sender, string) {})

	if err := f.engine.Open(owner, "raffle"); !errors.Is(err, ErrKeywordInUse) {
		t.Fatalf("expected ErrKeywordInUse, got: %v", err)
	}

	if !strings.Contains(f.notify.lastSaid(), "already in use") {
		t.Fatalf("expected collision message, got=%q", f.notify.lastSaid())
	}
	if f.store.raffle != nil {
		t.Fatal("no raffle should be persisted on a keyword collision")
	}
}

func TestOpenFromDashboardPreservesParticipants(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.Open(owner, "winme")
	f.store.participants = []types.RaffleParticipant{{Username: "alice", Eligible: true}}

	if err := f.engine.OpenFromDashboard("winme New Product"); err != nil {
		t.Fatalf("dashboard reopen with the raffle's own keyword failed: %v", err)
	}

	if len(f.store.participants) != 1 {
		t.Fatal("dashboard reopen should preserve participants")
	}
	if f.store.raffle.Product != "New Product" {
		t.Fatalf("raffle config should be replaced, got product=%q", f.store.raffle.Product)
	}
}

func TestOpenReusesCurrentKeyword(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.Open(owner, "winme Old Prize")
	f.store.participants = []types.RaffleParticipant{{Username: "alice", Eligible: true}}

	// The engine bound "winme" itself at open time; reopening with the
	// same keyword supersedes the raffle instead of colliding.
	if err := f.engine.Open(owner, "winme New Prize"); err != nil {
		t.Fatalf("reopen with the same keyword failed: %v", err)
	}

	if f.store.raffle.Product != "New Prize" {
		t.Fatalf("raffle config should be replaced, got product=%q", f.store.raffle.Product)
	}
	if len(f.store.participants) != 0 {
		t.Fatal("plain reopen should still wipe participants")
	}
	if !f.binder.IsRegistered("winme") {
		t.Fatal("keyword should remain bound after the reopen")
	}
}

func TestParticipateEligibleAddsAndWhispers(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.Open(owner, "winme")
	f.dir.viewers["alice"] = &types.Viewer{Username: "alice"}

	f.engine.Participate(dispatcher.Sender{UserID: "42", Username: "alice"})

	if len(f.store.participants) != 1 || f.store.participants[0].Username != "alice" {
		t.Fatalf("participant not recorded: %+v", f.store.participants)
	}
	whispers := f.notify.whispers["42"]
	if len(whispers) != 1 || !strings.Contains(whispers[0], "successfully joined") {
		t.Fatalf("expected success whisper, got: %v", whispers)
	}
}

func TestParticipateIneligibleWhispersOnly(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.Open(owner, "followers winme")
	f.dir.viewers["bob"] = &types.Viewer{Username: "bob"} // follower state unknown

	f.engine.Participate(dispatcher.Sender{UserID: "43", Username: "bob"})

	if len(f.store.participants) != 0 {
		t.Fatal("ineligible viewer must not be recorded")
	}
	whispers := f.notify.whispers["43"]
	if len(whispers) != 1 || !strings.Contains(whispers[0], "not eligible") {
		t.Fatalf("expected failure whisper, got: %v", whispers)
	}
}

func TestParticipateIgnoredWithoutOpenRaffle(t *testing.T) {
	f := newEngineFixture(t)

	f.engine.Participate(dispatcher.Sender{UserID: "42", Username: "alice"})
	if len(f.notify.whispers) != 0 {
		t.Fatal("no whisper expected when no raffle exists")
	}

	f.engine.Open(owner, "winme")
	f.store.raffle.Locked = true
	f.engine.Participate(dispatcher.Sender{UserID: "42", Username: "alice"})
	if len(f.store.participants) != 0 {
		t.Fatal("locked raffle must ignore participation")
	}
}

func TestPickWinnerWithoutReplacement(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.Open(owner, "winme")
	f.store.participants = []types.RaffleParticipant{
		{Username: "alice", Eligible: true},
		{Username: "bob", Eligible: true},
	}

	orig := drawRandomInt
	defer func() { drawRandomInt = orig }()
	drawRandomInt = func(max int) (int, error) { return 0, nil }

	f.engine.Pick(owner)

	if f.store.raffle.Winner != "alice" {
		t.Fatalf("unexpected winner: got=%q want=%q", f.store.raffle.Winner, "alice")
	}
	if !f.store.raffle.Locked {
		t.Fatal("picking a winner must lock the raffle")
	}
	if f.store.participants[0].Eligible {
		t.Fatal("winner must be excluded from re-picks")
	}
	if f.binder.IsRegistered("winme") {
		t.Fatal("keyword must be unregistered after a pick")
	}
	if len(f.widgets.winners) != 1 || f.widgets.winners[0].Username != "alice" {
		t.Fatalf("widget sink should receive the winner, got: %+v", f.widgets.winners)
	}
	if f.notify.lastSaid() != "Winner is alice! Congratulations!" {
		t.Fatalf("unexpected winner message: got=%q", f.notify.lastSaid())
	}

	// Re-pick only considers the remaining entrant.
	drawRandomInt = func(max int) (int, error) {
		if max != 1 {
			t.Fatalf("re-pick range should exclude the winner: got=%d", max)
		}
		return 0, nil
	}
	f.engine.Pick(owner)
	if f.store.raffle.Winner != "bob" {
		t.Fatalf("unexpected second winner: got=%q", f.store.raffle.Winner)
	}
}

func TestPickWithProductMentionsProduct(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.Open(owner, "winme Steam Key")
	f.store.participants = []types.RaffleParticipant{{Username: "alice", Eligible: true}}

	orig := drawRandomInt
	defer func() { drawRandomInt = orig }()
	drawRandomInt = func(max int) (int, error) { return 0, nil }

	f.engine.Pick(owner)

	want := "Winner of Steam Key is alice! Congratulations!"
	if f.notify.lastSaid() != want {
		t.Fatalf("unexpected winner message: got=%q want=%q", f.notify.lastSaid(), want)
	}
}

func TestPickUsesDisplayName(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.Open(owner, "winme")
	f.store.participants = []types.RaffleParticipant{{Username: "alice", Eligible: true}}
	f.dir.viewers["alice"] = &types.Viewer{Username: "alice", DisplayName: "Alice_TV"}

	orig := drawRandomInt
	defer func() { drawRandomInt = orig }()
	drawRandomInt = func(max int) (int, error) { return 0, nil }

	f.engine.Pick(owner)

	if !strings.Contains(f.notify.lastSaid(), "Alice_TV") {
		t.Fatalf("winner message should use the display name: got=%q", f.notify.lastSaid())
	}
}

func TestPickNoParticipants(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.Open(owner, "winme")

	f.engine.Pick(owner)

	if f.notify.lastSaid() != "There are no participants to pick a winner from" {
		t.Fatalf("unexpected message: got=%q", f.notify.lastSaid())
	}
	if f.store.raffle.HasWinner() {
		t.Fatal("no winner should be set")
	}
}

func TestCloseLocksWithoutWinner(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.Open(owner, "winme")

	f.engine.Close(owner)

	if !f.store.raffle.Locked {
		t.Fatal("close must lock the raffle")
	}
	if f.store.raffle.HasWinner() {
		t.Fatal("close must not pick a winner")
	}
	if f.binder.IsRegistered("winme") {
		t.Fatal("keyword must be unregistered after close")
	}
	if f.notify.lastSaid() != "Raffle was closed" {
		t.Fatalf("unexpected message: got=%q", f.notify.lastSaid())
	}
}

func TestCloseWithoutRaffle(t *testing.T) {
	f := newEngineFixture(t)

	f.engine.Close(owner)

	if f.notify.lastSaid() != "No raffle is currently running" {
		t.Fatalf("unexpected message: got=%q", f.notify.lastSaid())
	}
}

func TestTitleTemplateAppliedAndRestored(t *testing.T) {
	f := newEngineFixture(t)
	f.config.template = "Giveaway: (product) type !(keyword)"

	f.engine.Open(owner, "winme Steam Key")

	if f.titles.title != "Playing games Giveaway: Steam Key type !winme" {
		t.Fatalf("unexpected rewritten title: got=%q", f.titles.title)
	}

	f.engine.Close(owner)

	if f.titles.title != "Playing games" {
		t.Fatalf("title should be restored on close: got=%q", f.titles.title)
	}
}

func TestInfoStates(t *testing.T) {
	f := newEngineFixture(t)
	viewer := dispatcher.Sender{UserID: "9", Username: "carol"}

	f.engine.Info(viewer)
	if f.notify.lastSaid() != "No raffle is currently running" {
		t.Fatalf("unexpected no-raffle info: got=%q", f.notify.lastSaid())
	}

	f.engine.Open(owner, "winme")
	f.engine.Info(viewer)
	if f.notify.lastSaid() != "Raffle is running! Join with !winme." {
		t.Fatalf("unexpected open info: got=%q", f.notify.lastSaid())
	}

	f.store.raffle.Locked = true
	f.engine.Info(viewer)
	if f.notify.lastSaid() != "Raffle is closed and waiting for a winner pick" {
		t.Fatalf("unexpected closed info: got=%q", f.notify.lastSaid())
	}

	f.store.raffle.Winner = "alice"
	f.engine.Info(viewer)
	if f.notify.lastSaid() != "No raffle is currently running" {
		t.Fatalf("unexpected finished info: got=%q", f.notify.lastSaid())
	}
}

func TestAnnounceTickRespectsInterval(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.Open(owner, "winme")

	f.advance(5 * time.Minute)
	f.engine.announceTick()
	if len(f.notify.forced) != 0 {
		t.Fatal("no re-announcement expected before the interval elapses")
	}

	f.advance(5 * time.Minute)
	f.engine.announceTick()
	if len(f.notify.forced) != 1 {
		t.Fatalf("expected one re-announcement, got %d", len(f.notify.forced))
	}
	if f.notify.forced[0] != "Raffle is running! Join with !winme." {
		t.Fatalf("unexpected re-announcement: got=%q", f.notify.forced[0])
	}

	// Interval restarts from the announcement just sent.
	f.engine.announceTick()
	if len(f.notify.forced) != 1 {
		t.Fatal("re-announcement should not repeat within the interval")
	}
}

func TestAnnounceTickSkipsLockedAndDisabled(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.Open(owner, "winme")
	f.advance(time.Hour)

	f.store.raffle.Locked = true
	f.engine.announceTick()
	if len(f.notify.forced) != 0 {
		t.Fatal("locked raffle must not be re-announced")
	}

	f.store.raffle.Locked = false
	f.config.interval = 0
	f.engine.announceTick()
	if len(f.notify.forced) != 0 {
		t.Fatal("interval 0 disables re-announcements")
	}
}

func TestRestoreRebindsKeyword(t *testing.T) {
	f := newEngineFixture(t)
	f.store.raffle = &types.Raffle{Keyword: "winme"}

	f.engine.Restore()

	if !f.binder.IsRegistered("winme") {
		t.Fatal("restore should rebind the persisted keyword")
	}
}

func TestRegisterCommandsBindsRaffleCommands(t *testing.T) {
	f := newEngineFixture(t)

	f.engine.RegisterCommands()

	for _, keyword := range []string{"raffle", "raffle open", "raffle pick", "raffle close"} {
		if !f.binder.IsRegistered(keyword) {
			t.Fatalf("command %q not registered", keyword)
		}
	}
}
