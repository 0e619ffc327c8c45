package env

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/nantokaworks/twitch-raffle-bot/internal/localdb"
	"github.com/nantokaworks/twitch-raffle-bot/internal/settings"
	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/logger"
	"go.uber.org/zap"
)

// EnvValue holds process-level configuration. Secret values are pointers so
// an unset credential is distinguishable from an empty one.
type EnvValue struct {
	ClientID      *string
	ClientSecret  *string
	BroadcasterID *string
	BotUserID     *string
	ServerPort    int
	DebugMode     bool
}

var Value EnvValue

// LoadEnv populates Value from .env / process env, then overlays values
// stored in the settings table. Must run after localdb.SetupDB.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using process environment")
	}

	Value.ClientID = lookup("CLIENT_ID")
	Value.ClientSecret = lookup("CLIENT_SECRET")
	Value.BroadcasterID = lookup("BROADCASTER_USER_ID")
	Value.BotUserID = lookup("BOT_USER_ID")

	if port := os.Getenv("SERVER_PORT"); port != "" {
		if v, err := strconv.Atoi(port); err == nil {
			Value.ServerPort = v
		} else {
			logger.Warn("Invalid SERVER_PORT value", zap.String("value", port))
		}
	}
	Value.DebugMode = os.Getenv("DEBUG_MODE") == "true"

	overlayFromSettings()
}

func lookup(key string) *string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return &v
	}
	return nil
}

// overlayFromSettings fills credentials managed through the dashboard
// settings screen. Environment variables win when both are present.
func overlayFromSettings() {
	db := localdb.GetDB()
	if db == nil {
		return
	}

	manager := settings.NewSettingsManager(db)
	for key, target := range map[string]**string{
		"CLIENT_ID":           &Value.ClientID,
		"CLIENT_SECRET":       &Value.ClientSecret,
		"BROADCASTER_USER_ID": &Value.BroadcasterID,
		"BOT_USER_ID":         &Value.BotUserID,
	} {
		if *target != nil {
			continue
		}
		stored, err := manager.GetRealValue(key)
		if err != nil || stored == "" {
			continue
		}
		v := stored
		*target = &v
	}
}
