package paths

import (
	"os"
	"path/filepath"
)

const appDirName = "twitch-raffle-bot"

// GetDataDir returns the application data directory. RAFFLE_BOT_DATA_DIR
// overrides the default of ~/.local/share/twitch-raffle-bot.
func GetDataDir() string {
	if dir := os.Getenv("RAFFLE_BOT_DATA_DIR"); dir != "" {
		return dir
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", appDirName)
	}
	return filepath.Join(home, ".local", "share", appDirName)
}

// GetDBPath returns the sqlite database path inside the data directory.
func GetDBPath() string {
	return filepath.Join(GetDataDir(), "raffle.db")
}

// EnsureDataDirs creates the data directory tree if missing.
func EnsureDataDirs() error {
	return os.MkdirAll(GetDataDir(), 0o755)
}
