package localdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/logger"
	"github.com/nantokaworks/twitch-raffle-bot/internal/types"
	"go.uber.org/zap"
)

// SetupViewersTable はviewersテーブルを作成する。
// follower/subscriber列はNULLで「不明」を表す。
func SetupViewersTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS viewers (
			username TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			is_follower BOOLEAN,
			is_subscriber BOOLEAN,
			watched_time_ms INTEGER NOT NULL DEFAULT 0,
			last_seen_at TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		logger.Error("Failed to create viewers table", zap.Error(err))
		return fmt.Errorf("failed to create viewers table: %w", err)
	}

	return nil
}

// GetViewer returns directory attributes for a username, or (nil, nil)
// when the viewer has never been seen.
func GetViewer(username string) (*types.Viewer, error) {
	db := GetDB()
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	var (
		v            types.Viewer
		isFollower   sql.NullBool
		isSubscriber sql.NullBool
		watchedMs    int64
	)
	err := db.QueryRow(`
		SELECT username, display_name, is_follower, is_subscriber, watched_time_ms
		FROM viewers WHERE username = ?
	`, username).Scan(&v.Username, &v.DisplayName, &isFollower, &isSubscriber, &watchedMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.Error("Failed to get viewer", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("failed to get viewer: %w", err)
	}

	if isFollower.Valid {
		v.IsFollower = &isFollower.Bool
	}
	if isSubscriber.Valid {
		v.IsSubscriber = &isSubscriber.Bool
	}
	v.WatchedTimeMs = &watchedMs

	return &v, nil
}

// TouchViewer records chat activity for a viewer, creating the row when
// missing. Unknown follower/subscriber state is left NULL.
func TouchViewer(username, displayName string, seenAt time.Time) error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	_, err := db.Exec(`
		INSERT INTO viewers (username, display_name, last_seen_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			display_name = excluded.display_name,
			last_seen_at = excluded.last_seen_at,
			updated_at = excluded.updated_at
	`, username, displayName, seenAt, time.Now())
	if err != nil {
		logger.Error("Failed to touch viewer", zap.String("username", username), zap.Error(err))
		return fmt.Errorf("failed to touch viewer: %w", err)
	}

	return nil
}

// SetViewerFollower records known follower state for a viewer.
func SetViewerFollower(username string, isFollower bool) error {
	return setViewerFlag(username, "is_follower", isFollower)
}

// SetViewerSubscriber records known subscriber state for a viewer.
func SetViewerSubscriber(username string, isSubscriber bool) error {
	return setViewerFlag(username, "is_subscriber", isSubscriber)
}

func setViewerFlag(username, column string, value bool) error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	query := fmt.Sprintf(`
		INSERT INTO viewers (username, %s, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			%s = excluded.%s,
			updated_at = excluded.updated_at
	`, column, column, column)

	_, err := db.Exec(query, username, value, time.Now())
	if err != nil {
		logger.Error("Failed to set viewer flag",
			zap.String("username", username),
			zap.String("column", column),
			zap.Error(err))
		return fmt.Errorf("failed to set viewer %s: %w", column, err)
	}

	return nil
}

// AccrueWatchedTime adds delta watched time to every viewer active in chat
// since the given cutoff. Called once a minute while the stream is live.
func AccrueWatchedTime(activeSince time.Time, delta time.Duration) (int, error) {
	db := GetDB()
	if db == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	res, err := db.Exec(`
		UPDATE viewers
		SET watched_time_ms = watched_time_ms + ?, updated_at = ?
		WHERE last_seen_at >= ?
	`, delta.Milliseconds(), time.Now(), activeSince)
	if err != nil {
		logger.Error("Failed to accrue watched time", zap.Error(err))
		return 0, fmt.Errorf("failed to accrue watched time: %w", err)
	}

	affected, _ := res.RowsAffected()
	return int(affected), nil
}
