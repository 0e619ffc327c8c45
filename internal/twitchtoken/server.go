package twitchtoken

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/logger"
	"go.uber.org/zap"
)

var (
	callbackServer *http.Server
	serverOnce     sync.Once
)

// SetupCallbackServer starts the OAuth callback listener once.
func SetupCallbackServer() {
	serverOnce.Do(func() {
		setupCallbackServerInternal()
	})
}

func setupCallbackServerInternal() {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if errParam := r.URL.Query().Get("error"); errParam != "" {
			errDesc := r.URL.Query().Get("error_description")
			logger.Error("OAuth error", zap.String("error", errParam), zap.String("description", errDesc))

			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprintf(w, "<html><body><h1>Authorization failed</h1><p>%s: %s</p></body></html>", errParam, errDesc)
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "code not found", http.StatusBadRequest)
			return
		}

		result, err := GetTwitchToken(code)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		expiresInFloat, ok := result["expires_in"].(float64)
		if !ok {
			http.Error(w, "invalid expires_in", http.StatusInternalServerError)
			return
		}
		newToken := Token{
			AccessToken:  result["access_token"].(string),
			RefreshToken: result["refresh_token"].(string),
			Scope:        result["scope"].(string),
			ExpiresAt:    time.Now().Unix() + int64(expiresInFloat),
		}
		if err := newToken.SaveToken(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body><h1>Authorization complete</h1><p>You can close this window.</p></body></html>"))
	})

	logger.Info("Starting OAuth callback server on port 30303")

	callbackServer = &http.Server{
		Addr:    ":30303",
		Handler: mux,
	}

	go func() {
		if err := callbackServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start OAuth callback server", zap.Error(err))
		}
	}()
}
