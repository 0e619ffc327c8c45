package webserver

import (
	"encoding/json"
	"net/http"

	"github.com/nantokaworks/twitch-raffle-bot/internal/localdb"
	"github.com/nantokaworks/twitch-raffle-bot/internal/settings"
	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/logger"
	"go.uber.org/zap"
)

// handleSettings serves the settings table: GET returns all settings
// with secret values masked, PUT updates a single setting.
func handleSettings(w http.ResponseWriter, r *http.Request) {
	db := localdb.GetDB()
	if db == nil {
		http.Error(w, "Database not initialized", http.StatusServiceUnavailable)
		return
	}
	manager := settings.NewSettingsManager(db)

	switch r.Method {
	case http.MethodGet:
		all, err := manager.GetAllSettings()
		if err != nil {
			logger.Error("Failed to load settings", zap.Error(err))
			http.Error(w, "Failed to load settings", http.StatusInternalServerError)
			return
		}

		// シークレット値はマスクして返す
		for key, s := range all {
			if s.Type == settings.SettingTypeSecret && s.Value != "" {
				s.Value = "********"
				all[key] = s
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(all)

	case http.MethodPut:
		var req struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if req.Key == "" {
			http.Error(w, "key is required", http.StatusBadRequest)
			return
		}

		if err := settings.ValidateSetting(req.Key, req.Value); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := manager.SetSetting(req.Key, req.Value); err != nil {
			logger.Error("Failed to save setting", zap.String("key", req.Key), zap.Error(err))
			http.Error(w, "Failed to save setting", http.StatusInternalServerError)
			return
		}

		logger.Info("Setting updated", zap.String("key", req.Key))
		BroadcastWSMessage("settings_updated", map[string]string{"key": req.Key})

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSettingsStatus reports whether the bot has the credentials it
// needs to run.
func handleSettingsStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	db := localdb.GetDB()
	if db == nil {
		http.Error(w, "Database not initialized", http.StatusServiceUnavailable)
		return
	}

	manager := settings.NewSettingsManager(db)
	status, err := manager.CheckFeatureStatus()
	if err != nil {
		logger.Error("Failed to check feature status", zap.Error(err))
		http.Error(w, "Failed to check feature status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}
