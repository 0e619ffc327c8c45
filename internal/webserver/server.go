// Package webserver serves the dashboard API and the WebSocket widget
// feed.
package webserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nantokaworks/twitch-raffle-bot/internal/broadcast"
	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/logger"
	"github.com/nantokaworks/twitch-raffle-bot/internal/twitcheventsub"
	"github.com/nantokaworks/twitch-raffle-bot/internal/twitchtoken"
	"github.com/nantokaworks/twitch-raffle-bot/internal/userdir"
	"go.uber.org/zap"
)

var httpServer *http.Server

// webSocketBroadcaster implements the broadcast.Broadcaster interface
// using the WebSocket hub.
type webSocketBroadcaster struct{}

func (w *webSocketBroadcaster) BroadcastMessage(eventType string, data interface{}) {
	BroadcastWSMessage(eventType, data)
}

// corsMiddleware adds CORS headers to HTTP handlers
func corsMiddleware(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		handler(w, r)
	}
}

func StartWebServer(port int) error {
	broadcast.SetBroadcaster(&webSocketBroadcaster{})

	mux := http.NewServeMux()

	// Raffle API endpoints
	mux.HandleFunc("/api/raffle/open", corsMiddleware(handleRaffleOpen))
	mux.HandleFunc("/api/raffle/pick", corsMiddleware(handleRafflePick))
	mux.HandleFunc("/api/raffle/close", corsMiddleware(handleRaffleClose))
	mux.HandleFunc("/api/raffle/participants", corsMiddleware(handleRaffleParticipants))
	mux.HandleFunc("/api/raffle", corsMiddleware(handleRaffleState))

	// Settings API endpoints
	mux.HandleFunc("/api/settings/status", corsMiddleware(handleSettingsStatus))
	mux.HandleFunc("/api/settings/auth/status", corsMiddleware(handleAuthStatus))
	mux.HandleFunc("/api/settings", corsMiddleware(handleSettings))

	// WebSocket endpoint
	RegisterWebSocketRoute(mux)

	// Status endpoint
	mux.HandleFunc("/status", handleStatus)

	// OAuth endpoints
	mux.HandleFunc("/auth", handleAuth)

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting web server", zap.String("address", addr))

	httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		WriteTimeout: 30 * time.Second,
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine and wait briefly to check for immediate errors
	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			logger.Error("Failed to start web server", zap.Error(err))
			return fmt.Errorf("failed to start web server on port %d: %w", port, err)
		}
	case <-time.After(100 * time.Millisecond):
		// Server started successfully
	}

	return nil
}

// Shutdown gracefully shuts down the web server
func Shutdown() {
	if httpServer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown web server gracefully", zap.Error(err))
	} else {
		logger.Info("Web server shutdown complete")
	}
}

// handleStatus returns the current system status
func handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")

	statusData := map[string]interface{}{
		"eventsub_connected": twitcheventsub.IsConnected(),
		"stream_live":        userdir.IsStreamLive(),
		"timestamp":          time.Now().Format(time.RFC3339),
	}

	jsonData, err := json.Marshal(statusData)
	if err != nil {
		http.Error(w, "Failed to marshal status", http.StatusInternalServerError)
		return
	}

	w.Write(jsonData)
}

// handleAuth handles OAuth authentication redirect
func handleAuth(w http.ResponseWriter, r *http.Request) {
	authURL := twitchtoken.GetAuthURL()
	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleAuthStatus returns current Twitch authentication status
func handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token, isValid, err := twitchtoken.GetOrRefreshToken()

	response := map[string]interface{}{
		"authUrl":       twitchtoken.GetAuthURL(),
		"authenticated": false,
		"expiresAt":     nil,
		"error":         nil,
	}

	if err != nil {
		response["error"] = "No token found"
	} else {
		response["authenticated"] = isValid
		response["expiresAt"] = token.ExpiresAt
		if !isValid {
			response["error"] = "Token expired and refresh failed"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
