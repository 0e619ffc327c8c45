package localdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nantokaworks/twitch-raffle-bot/internal/types"
)

func setupRaffleTestDB(t *testing.T) {
	t.Helper()

	if DBClient != nil {
		_ = DBClient.Close()
		DBClient = nil
	}

	dbPath := filepath.Join(t.TempDir(), "raffle.db")
	db, err := SetupDB(dbPath)
	if err != nil {
		t.Fatalf("SetupDB failed: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
		DBClient = nil
	})
}

func TestGetRaffleEmpty(t *testing.T) {
	setupRaffleTestDB(t)

	r, err := GetRaffle()
	if err != nil {
		t.Fatalf("GetRaffle failed: %v", err)
	}
	if r != nil {
		t.Fatalf("expected no raffle, got: %+v", r)
	}
}

func TestUpsertRaffleRoundTrip(t *testing.T) {
	setupRaffleTestDB(t)

	in := types.Raffle{
		Keyword:               "winme",
		Product:               "Steam Key",
		Eligibility:           types.EligibilityFollowers,
		TicketMode:            types.TicketModeTickets,
		MinTickets:            2,
		MaxTickets:            50,
		MinWatchedTimeMinutes: 30,
		CreatedAt:             time.Now(),
	}
	if err := UpsertRaffle(in); err != nil {
		t.Fatalf("UpsertRaffle failed: %v", err)
	}

	out, err := GetRaffle()
	if err != nil {
		t.Fatalf("GetRaffle failed: %v", err)
	}
	if out == nil {
		t.Fatal("raffle not found after upsert")
	}
	if out.Keyword != in.Keyword || out.Product != in.Product {
		t.Fatalf("unexpected raffle: got=%+v", out)
	}
	if out.Eligibility != in.Eligibility || out.TicketMode != in.TicketMode {
		t.Fatalf("unexpected modes: got=%+v", out)
	}
	if out.MinTickets != 2 || out.MaxTickets != 50 || out.MinWatchedTimeMinutes != 30 {
		t.Fatalf("unexpected numbers: got=%+v", out)
	}
	if out.Locked || out.HasWinner() {
		t.Fatalf("fresh raffle should be open with no winner: got=%+v", out)
	}
}

func TestUpsertRaffleReplacesSingleRow(t *testing.T) {
	setupRaffleTestDB(t)

	first := types.Raffle{Keyword: "first", CreatedAt: time.Now()}
	second := types.Raffle{Keyword: "second", CreatedAt: time.Now()}

	if err := UpsertRaffle(first); err != nil {
		t.Fatalf("UpsertRaffle failed: %v", err)
	}
	if err := UpsertRaffle(second); err != nil {
		t.Fatalf("UpsertRaffle failed: %v", err)
	}

	out, err := GetRaffle()
	if err != nil {
		t.Fatalf("GetRaffle failed: %v", err)
	}
	if out.Keyword != "second" {
		t.Fatalf("second upsert should replace the row: got=%q", out.Keyword)
	}

	var count int
	if err := GetDB().QueryRow("SELECT COUNT(*) FROM raffle").Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("raffle table must hold a single row: got=%d", count)
	}
}

func TestLockRaffle(t *testing.T) {
	setupRaffleTestDB(t)

	if err := UpsertRaffle(types.Raffle{Keyword: "winme", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("UpsertRaffle failed: %v", err)
	}
	if err := LockRaffle(); err != nil {
		t.Fatalf("LockRaffle failed: %v", err)
	}

	out, err := GetRaffle()
	if err != nil {
		t.Fatalf("GetRaffle failed: %v", err)
	}
	if !out.Locked {
		t.Fatal("raffle should be locked")
	}
	if out.HasWinner() {
		t.Fatal("lock must not set a winner")
	}
}

func TestSetRaffleWinner(t *testing.T) {
	setupRaffleTestDB(t)

	if err := UpsertRaffle(types.Raffle{Keyword: "winme", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("UpsertRaffle failed: %v", err)
	}
	if err := SetRaffleWinner("alice", time.Now()); err != nil {
		t.Fatalf("SetRaffleWinner failed: %v", err)
	}

	out, err := GetRaffle()
	if err != nil {
		t.Fatalf("GetRaffle failed: %v", err)
	}
	if out.Winner != "alice" {
		t.Fatalf("unexpected winner: got=%q want=%q", out.Winner, "alice")
	}
	if !out.Locked {
		t.Fatal("picking a winner must lock the raffle")
	}
}

func TestRaffleParticipantsLifecycle(t *testing.T) {
	setupRaffleTestDB(t)

	if err := AddRaffleParticipant("alice", true); err != nil {
		t.Fatalf("AddRaffleParticipant failed: %v", err)
	}
	if err := AddRaffleParticipant("bob", true); err != nil {
		t.Fatalf("AddRaffleParticipant failed: %v", err)
	}

	// Re-entry is idempotent.
	if err := AddRaffleParticipant("alice", true); err != nil {
		t.Fatalf("duplicate AddRaffleParticipant failed: %v", err)
	}

	count, err := CountRaffleParticipants()
	if err != nil {
		t.Fatalf("CountRaffleParticipants failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("unexpected participant count: got=%d want=2", count)
	}

	if err := MarkRaffleParticipantIneligible("alice"); err != nil {
		t.Fatalf("MarkRaffleParticipantIneligible failed: %v", err)
	}

	eligible, err := EligibleRaffleParticipants()
	if err != nil {
		t.Fatalf("EligibleRaffleParticipants failed: %v", err)
	}
	if len(eligible) != 1 || eligible[0].Username != "bob" {
		t.Fatalf("unexpected eligible participants: %+v", eligible)
	}

	all, err := AllRaffleParticipants()
	if err != nil {
		t.Fatalf("AllRaffleParticipants failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ineligible participants must stay listed: got=%d want=2", len(all))
	}

	if err := DeleteAllRaffleParticipants(); err != nil {
		t.Fatalf("DeleteAllRaffleParticipants failed: %v", err)
	}
	count, err = CountRaffleParticipants()
	if err != nil {
		t.Fatalf("CountRaffleParticipants failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("participants should be wiped: got=%d", count)
	}
}

func TestViewerFlagsAndWatchedTime(t *testing.T) {
	setupRaffleTestDB(t)

	if err := TouchViewer("alice", "Alice_TV", time.Now()); err != nil {
		t.Fatalf("TouchViewer failed: %v", err)
	}

	v, err := GetViewer("alice")
	if err != nil {
		t.Fatalf("GetViewer failed: %v", err)
	}
	if v == nil {
		t.Fatal("viewer not found after TouchViewer")
	}
	if v.IsFollower != nil || v.IsSubscriber != nil {
		t.Fatalf("fresh viewer flags should be unknown: %+v", v)
	}

	if err := SetViewerFollower("alice", true); err != nil {
		t.Fatalf("SetViewerFollower failed: %v", err)
	}
	if err := SetViewerSubscriber("alice", false); err != nil {
		t.Fatalf("SetViewerSubscriber failed: %v", err)
	}

	v, err = GetViewer("alice")
	if err != nil {
		t.Fatalf("GetViewer failed: %v", err)
	}
	if v.IsFollower == nil || !*v.IsFollower {
		t.Fatalf("follower flag not stored: %+v", v)
	}
	if v.IsSubscriber == nil || *v.IsSubscriber {
		t.Fatalf("subscriber flag not stored: %+v", v)
	}

	credited, err := AccrueWatchedTime(time.Now().Add(-15*time.Minute), time.Minute)
	if err != nil {
		t.Fatalf("AccrueWatchedTime failed: %v", err)
	}
	if credited != 1 {
		t.Fatalf("one active viewer should be credited: got=%d", credited)
	}

	v, err = GetViewer("alice")
	if err != nil {
		t.Fatalf("GetViewer failed: %v", err)
	}
	if v.WatchedTimeMs == nil || *v.WatchedTimeMs != time.Minute.Milliseconds() {
		t.Fatalf("watched time not accrued: %+v", v.WatchedTimeMs)
	}

	// A viewer inactive since before the window gets nothing.
	if err := TouchViewer("bob", "Bob", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("TouchViewer failed: %v", err)
	}
	credited, err = AccrueWatchedTime(time.Now().Add(-15*time.Minute), time.Minute)
	if err != nil {
		t.Fatalf("AccrueWatchedTime failed: %v", err)
	}
	if credited != 1 {
		t.Fatalf("inactive viewer must not be credited: got=%d", credited)
	}
}

func TestGetViewerUnknown(t *testing.T) {
	setupRaffleTestDB(t)

	v, err := GetViewer("nobody")
	if err != nil {
		t.Fatalf("GetViewer failed: %v", err)
	}
	if v != nil {
		t.Fatalf("unknown viewer should be nil, got: %+v", v)
	}
}
