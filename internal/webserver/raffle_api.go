package webserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nantokaworks/twitch-raffle-bot/internal/dispatcher"
	"github.com/nantokaworks/twitch-raffle-bot/internal/localdb"
	"github.com/nantokaworks/twitch-raffle-bot/internal/raffle"
	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/logger"
	"go.uber.org/zap"
)

var raffleEngine *raffle.Engine

// SetRaffleEngine wires the engine used by the raffle API handlers.
// Must be called before StartWebServer.
func SetRaffleEngine(e *raffle.Engine) {
	raffleEngine = e
}

// dashboardSender is used for raffle operations triggered from the
// dashboard instead of chat.
var dashboardSender = dispatcher.Sender{
	Username:    "dashboard",
	DisplayName: "Dashboard",
	IsOwner:     true,
}

// handleRaffleState returns the current raffle and participant count.
func handleRaffleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if raffleEngine == nil {
		http.Error(w, "Raffle engine not initialized", http.StatusServiceUnavailable)
		return
	}

	current, err := raffleEngine.State()
	if err != nil {
		logger.Error("Failed to load raffle state", zap.Error(err))
		http.Error(w, "Failed to load raffle state", http.StatusInternalServerError)
		return
	}

	count, err := localdb.CountRaffleParticipants()
	if err != nil {
		logger.Error("Failed to count raffle participants", zap.Error(err))
		http.Error(w, "Failed to count participants", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"raffle":            current,
		"participant_count": count,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// RaffleOpenRequest is the body of POST /api/raffle/open.
type RaffleOpenRequest struct {
	Args                 string `json:"args"`
	PreserveParticipants bool   `json:"preserve_participants"`
}

// handleRaffleOpen opens a raffle from the dashboard. With
// preserve_participants set, entrants of the current cycle carry over.
func handleRaffleOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if raffleEngine == nil {
		http.Error(w, "Raffle engine not initialized", http.StatusServiceUnavailable)
		return
	}

	var req RaffleOpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Args == "" {
		http.Error(w, "args is required", http.StatusBadRequest)
		return
	}

	var err error
	if req.PreserveParticipants {
		err = raffleEngine.OpenFromDashboard(req.Args)
	} else {
		err = raffleEngine.Open(dashboardSender, req.Args)
	}
	switch {
	case err == nil:
	case errors.Is(err, raffle.ErrInvalidOpenArgs):
		http.Error(w, "Invalid raffle arguments", http.StatusBadRequest)
		return
	case errors.Is(err, raffle.ErrKeywordInUse):
		http.Error(w, "Keyword is already in use", http.StatusConflict)
		return
	default:
		logger.Error("Failed to open raffle", zap.Error(err))
		http.Error(w, "Failed to open raffle", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleRafflePick picks a winner from the dashboard.
func handleRafflePick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if raffleEngine == nil {
		http.Error(w, "Raffle engine not initialized", http.StatusServiceUnavailable)
		return
	}

	raffleEngine.Pick(dashboardSender)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleRaffleClose closes the raffle from the dashboard.
func handleRaffleClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if raffleEngine == nil {
		http.Error(w, "Raffle engine not initialized", http.StatusServiceUnavailable)
		return
	}

	raffleEngine.Close(dashboardSender)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleRaffleParticipants lists all participants of the current cycle,
// including past winners already excluded from re-picks.
func handleRaffleParticipants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	participants, err := localdb.AllRaffleParticipants()
	if err != nil {
		logger.Error("Failed to load raffle participants", zap.Error(err))
		http.Error(w, "Failed to load participants", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"participants": participants,
	})
}
