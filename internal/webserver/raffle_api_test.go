package webserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/nantokaworks/twitch-raffle-bot/internal/dispatcher"
	"github.com/nantokaworks/twitch-raffle-bot/internal/localdb"
	"github.com/nantokaworks/twitch-raffle-bot/internal/raffle"
	"github.com/nantokaworks/twitch-raffle-bot/internal/types"
)

// testStore backs the engine with the real SQLite store.
type testStore struct{}

func (testStore) GetRaffle() (*types.Raffle, error) { return localdb.GetRaffle() }
func (testStore) UpsertRaffle(r types.Raffle) error { return localdb.UpsertRaffle(r) }
func (testStore) LockRaffle() error                 { return localdb.LockRaffle() }
func (testStore) SetRaffleWinner(u string, t time.Time) error {
	return localdb.SetRaffleWinner(u, t)
}
func (testStore) AddParticipant(u string, eligible bool) error {
	return localdb.AddRaffleParticipant(u, eligible)
}
func (testStore) EligibleParticipants() ([]types.RaffleParticipant, error) {
	return localdb.EligibleRaffleParticipants()
}
func (testStore) MarkIneligible(u string) error { return localdb.MarkRaffleParticipantIneligible(u) }
func (testStore) DeleteAllParticipants() error  { return localdb.DeleteAllRaffleParticipants() }

type nopNotifier struct{}

func (nopNotifier) Say(string)            {}
func (nopNotifier) SayForced(string)      {}
func (nopNotifier) Whisper(string, string) {}

type nopDirectory struct{}

func (nopDirectory) Viewer(string) (*types.Viewer, error) { return nil, nil }

type nopTitles struct{}

func (nopTitles) Title() (string, error) { return "", nil }
func (nopTitles) SetTitle(string) error  { return nil }

type staticConfig struct{}

func (staticConfig) AnnounceIntervalMinutes() int  { return 10 }
func (staticConfig) CustomAnnounceMessage() string { return "" }
func (staticConfig) TitleTemplate() string         { return "" }

type nopWidgets struct{}

func (nopWidgets) SendWinner(raffle.WinnerEvent) {}

func setupRaffleAPITest(t *testing.T) {
	t.Helper()

	if localdb.DBClient != nil {
		_ = localdb.DBClient.Close()
		localdb.DBClient = nil
	}

	dbPath := filepath.Join(t.TempDir(), "raffle.db")
	db, err := localdb.SetupDB(dbPath)
	if err != nil {
		t.Fatalf("SetupDB failed: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
		localdb.DBClient = nil
		raffleEngine = nil
	})

	engine := raffle.New(raffle.Deps{
		Binder:    dispatcher.New(),
		Store:     testStore{},
		Notify:    nopNotifier{},
		Directory: nopDirectory{},
		Titles:    nopTitles{},
		Config:    staticConfig{},
		Widgets:   nopWidgets{},
	})
	SetRaffleEngine(engine)
}

func postJSON(t *testing.T, handler http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestRaffleAPIStateEmpty(t *testing.T) {
	setupRaffleAPITest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/raffle", nil)
	rec := httptest.NewRecorder()
	handleRaffleState(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Raffle           *types.Raffle `json:"raffle"`
		ParticipantCount int           `json:"participant_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp.Raffle != nil {
		t.Fatalf("expected no raffle, got: %+v", resp.Raffle)
	}
	if resp.ParticipantCount != 0 {
		t.Fatalf("unexpected participant count: got=%d", resp.ParticipantCount)
	}
}

func TestRaffleAPIOpenAndState(t *testing.T) {
	setupRaffleAPITest(t)

	rec := postJSON(t, handleRaffleOpen, RaffleOpenRequest{Args: "winme Steam Key"})
	if rec.Code != http.StatusOK {
		t.Fatalf("open failed: status=%d body=%s", rec.Code, rec.Body.String())
	}

	current, err := localdb.GetRaffle()
	if err != nil {
		t.Fatalf("GetRaffle failed: %v", err)
	}
	if current == nil || current.Keyword != "winme" {
		t.Fatalf("raffle not persisted via API: %+v", current)
	}
}

func TestRaffleAPIOpenRequiresArgs(t *testing.T) {
	setupRaffleAPITest(t)

	rec := postJSON(t, handleRaffleOpen, RaffleOpenRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty args should be rejected: status=%d", rec.Code)
	}
}

func TestRaffleAPIOpenRejectsInvalidArgs(t *testing.T) {
	setupRaffleAPITest(t)

	rec := postJSON(t, handleRaffleOpen, RaffleOpenRequest{Args: "min=x winme"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unparseable args should be rejected: status=%d body=%s", rec.Code, rec.Body.String())
	}

	current, err := localdb.GetRaffle()
	if err != nil {
		t.Fatalf("GetRaffle failed: %v", err)
	}
	if current != nil {
		t.Fatalf("no raffle should be persisted on a rejected open: %+v", current)
	}
}

func TestRaffleAPIOpenPreservesParticipants(t *testing.T) {
	setupRaffleAPITest(t)

	rec := postJSON(t, handleRaffleOpen, RaffleOpenRequest{Args: "winme"})
	if rec.Code != http.StatusOK {
		t.Fatalf("open failed: status=%d", rec.Code)
	}
	if err := localdb.AddRaffleParticipant("alice", true); err != nil {
		t.Fatalf("AddRaffleParticipant failed: %v", err)
	}

	rec = postJSON(t, handleRaffleOpen, RaffleOpenRequest{Args: "winme New Product", PreserveParticipants: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("reopen with the raffle's own keyword failed: status=%d body=%s", rec.Code, rec.Body.String())
	}

	count, err := localdb.CountRaffleParticipants()
	if err != nil {
		t.Fatalf("CountRaffleParticipants failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("participants should be preserved: got=%d want=1", count)
	}
	current, err := localdb.GetRaffle()
	if err != nil {
		t.Fatalf("GetRaffle failed: %v", err)
	}
	if current == nil || current.Product != "New Product" {
		t.Fatalf("reopen should replace the raffle config: %+v", current)
	}

	rec = postJSON(t, handleRaffleOpen, RaffleOpenRequest{Args: "other"})
	if rec.Code != http.StatusOK {
		t.Fatalf("open failed: status=%d", rec.Code)
	}
	count, err = localdb.CountRaffleParticipants()
	if err != nil {
		t.Fatalf("CountRaffleParticipants failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("plain open should wipe participants: got=%d", count)
	}
}

func TestRaffleAPIPickAndClose(t *testing.T) {
	setupRaffleAPITest(t)

	rec := postJSON(t, handleRaffleOpen, RaffleOpenRequest{Args: "winme"})
	if rec.Code != http.StatusOK {
		t.Fatalf("open failed: status=%d", rec.Code)
	}
	if err := localdb.AddRaffleParticipant("alice", true); err != nil {
		t.Fatalf("AddRaffleParticipant failed: %v", err)
	}

	rec = postJSON(t, handleRafflePick, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pick failed: status=%d", rec.Code)
	}

	current, err := localdb.GetRaffle()
	if err != nil {
		t.Fatalf("GetRaffle failed: %v", err)
	}
	if current.Winner != "alice" {
		t.Fatalf("unexpected winner: got=%q want=%q", current.Winner, "alice")
	}

	rec = postJSON(t, handleRaffleOpen, RaffleOpenRequest{Args: "again"})
	if rec.Code != http.StatusOK {
		t.Fatalf("reopen failed: status=%d", rec.Code)
	}
	rec = postJSON(t, handleRaffleClose, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("close failed: status=%d", rec.Code)
	}

	current, err = localdb.GetRaffle()
	if err != nil {
		t.Fatalf("GetRaffle failed: %v", err)
	}
	if !current.Locked || current.HasWinner() {
		t.Fatalf("close should lock without a winner: %+v", current)
	}
}

func TestRaffleAPIParticipants(t *testing.T) {
	setupRaffleAPITest(t)

	if err := localdb.AddRaffleParticipant("alice", true); err != nil {
		t.Fatalf("AddRaffleParticipant failed: %v", err)
	}
	if err := localdb.AddRaffleParticipant("bob", false); err != nil {
		t.Fatalf("AddRaffleParticipant failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/raffle/participants", nil)
	rec := httptest.NewRecorder()
	handleRaffleParticipants(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d", rec.Code)
	}

	var resp struct {
		Participants []types.RaffleParticipant `json:"participants"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if len(resp.Participants) != 2 {
		t.Fatalf("unexpected participant count: got=%d want=2", len(resp.Participants))
	}
}
