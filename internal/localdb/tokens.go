package localdb

import (
	"database/sql"
	"fmt"

	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/logger"
	"go.uber.org/zap"
)

type Token struct {
	AccessToken  string
	RefreshToken string
	Scope        string
	ExpiresAt    int64
}

// GetLatestToken returns the most recently saved token.
func GetLatestToken() (*Token, error) {
	db := GetDB()
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	var t Token
	err := db.QueryRow(`
		SELECT access_token, refresh_token, scope, expires_at
		FROM tokens ORDER BY id DESC LIMIT 1
	`).Scan(&t.AccessToken, &t.RefreshToken, &t.Scope, &t.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.Error("Failed to get latest token", zap.Error(err))
		return nil, fmt.Errorf("failed to get latest token: %w", err)
	}

	return &t, nil
}

// SaveToken replaces the stored token with the given one.
func SaveToken(t Token) error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	_, err := db.Exec(`
		INSERT INTO tokens (id, access_token, refresh_token, scope, expires_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			scope = excluded.scope,
			expires_at = excluded.expires_at
	`, t.AccessToken, t.RefreshToken, t.Scope, t.ExpiresAt)
	if err != nil {
		logger.Error("Failed to save token", zap.Error(err))
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}

// DeleteAllTokens deletes all tokens from the database.
// Used when OAuth scopes change and re-authentication is required.
func DeleteAllTokens() error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	if _, err := db.Exec("DELETE FROM tokens"); err != nil {
		logger.Error("Failed to delete tokens", zap.Error(err))
		return fmt.Errorf("failed to delete tokens: %w", err)
	}

	logger.Info("All tokens have been deleted (scope update requires re-authentication)")
	return nil
}
