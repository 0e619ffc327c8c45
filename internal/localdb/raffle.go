package localdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/logger"
	"github.com/nantokaworks/twitch-raffle-bot/internal/types"
	"go.uber.org/zap"
)

// SetupRaffleTables creates the raffle and raffle_participants tables.
// The raffle table holds at most one row; opening a raffle upserts it.
func SetupRaffleTables(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS raffle (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			keyword TEXT NOT NULL,
			product TEXT NOT NULL DEFAULT '',
			eligibility INTEGER NOT NULL DEFAULT 2,
			ticket_mode INTEGER NOT NULL DEFAULT 0,
			min_tickets INTEGER NOT NULL DEFAULT 0,
			max_tickets INTEGER NOT NULL DEFAULT 1000,
			min_watched_minutes INTEGER NOT NULL DEFAULT 0,
			winner TEXT NOT NULL DEFAULT '',
			locked BOOLEAN NOT NULL DEFAULT false,
			picked_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		)
	`); err != nil {
		logger.Error("Failed to create raffle table", zap.Error(err))
		return fmt.Errorf("failed to create raffle table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS raffle_participants (
			username TEXT PRIMARY KEY,
			eligible BOOLEAN NOT NULL DEFAULT true,
			entered_at TIMESTAMP NOT NULL
		)
	`); err != nil {
		logger.Error("Failed to create raffle_participants table", zap.Error(err))
		return fmt.Errorf("failed to create raffle_participants table: %w", err)
	}

	return nil
}

// GetRaffle returns the current raffle, or (nil, nil) when none exists.
func GetRaffle() (*types.Raffle, error) {
	db := GetDB()
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	var r types.Raffle
	err := db.QueryRow(`
		SELECT keyword, product, eligibility, ticket_mode, min_tickets, max_tickets,
		       min_watched_minutes, winner, locked, created_at
		FROM raffle WHERE id = 1
	`).Scan(
		&r.Keyword,
		&r.Product,
		&r.Eligibility,
		&r.TicketMode,
		&r.MinTickets,
		&r.MaxTickets,
		&r.MinWatchedTimeMinutes,
		&r.Winner,
		&r.Locked,
		&r.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.Error("Failed to get raffle", zap.Error(err))
		return nil, fmt.Errorf("failed to get raffle: %w", err)
	}

	return &r, nil
}

// UpsertRaffle replaces the current raffle record with the given one.
func UpsertRaffle(r types.Raffle) error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	_, err := db.Exec(`
		INSERT INTO raffle (
			id, keyword, product, eligibility, ticket_mode, min_tickets, max_tickets,
			min_watched_minutes, winner, locked, created_at
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			keyword = excluded.keyword,
			product = excluded.product,
			eligibility = excluded.eligibility,
			ticket_mode = excluded.ticket_mode,
			min_tickets = excluded.min_tickets,
			max_tickets = excluded.max_tickets,
			min_watched_minutes = excluded.min_watched_minutes,
			winner = excluded.winner,
			locked = excluded.locked,
			created_at = excluded.created_at
	`,
		r.Keyword,
		r.Product,
		r.Eligibility,
		r.TicketMode,
		r.MinTickets,
		r.MaxTickets,
		r.MinWatchedTimeMinutes,
		r.Winner,
		r.Locked,
		r.CreatedAt,
	)
	if err != nil {
		logger.Error("Failed to upsert raffle", zap.String("keyword", r.Keyword), zap.Error(err))
		return fmt.Errorf("failed to upsert raffle: %w", err)
	}

	return nil
}

// LockRaffle marks the current raffle as no longer accepting entries.
func LockRaffle() error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	if _, err := db.Exec(`UPDATE raffle SET locked = true WHERE id = 1`); err != nil {
		logger.Error("Failed to lock raffle", zap.Error(err))
		return fmt.Errorf("failed to lock raffle: %w", err)
	}

	return nil
}

// SetRaffleWinner records the winner and locks the raffle.
func SetRaffleWinner(username string, pickedAt time.Time) error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	_, err := db.Exec(
		`UPDATE raffle SET winner = ?, locked = true, picked_at = ? WHERE id = 1`,
		username, pickedAt,
	)
	if err != nil {
		logger.Error("Failed to set raffle winner",
			zap.String("winner", username),
			zap.Error(err))
		return fmt.Errorf("failed to set raffle winner: %w", err)
	}

	logger.Info("Raffle winner persisted",
		zap.String("winner", username),
		zap.Time("picked_at", pickedAt))
	return nil
}
