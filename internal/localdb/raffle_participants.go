package localdb

import (
	"fmt"
	"time"

	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/logger"
	"github.com/nantokaworks/twitch-raffle-bot/internal/types"
	"go.uber.org/zap"
)

// AddRaffleParticipant は参加者を登録する。同じユーザーの再参加は無視される。
func AddRaffleParticipant(username string, eligible bool) error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	_, err := db.Exec(`
		INSERT INTO raffle_participants (username, eligible, entered_at)
		VALUES (?, ?, ?)
		ON CONFLICT(username) DO NOTHING
	`, username, eligible, time.Now())
	if err != nil {
		logger.Error("Failed to add raffle participant",
			zap.String("username", username),
			zap.Error(err))
		return fmt.Errorf("failed to add raffle participant: %w", err)
	}

	return nil
}

// EligibleRaffleParticipants returns all participants still marked eligible.
func EligibleRaffleParticipants() ([]types.RaffleParticipant, error) {
	db := GetDB()
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := db.Query(`
		SELECT username, eligible, entered_at
		FROM raffle_participants
		WHERE eligible = true
		ORDER BY entered_at ASC
	`)
	if err != nil {
		logger.Error("Failed to query eligible raffle participants", zap.Error(err))
		return nil, fmt.Errorf("failed to query eligible raffle participants: %w", err)
	}
	defer rows.Close()

	var participants []types.RaffleParticipant
	for rows.Next() {
		var p types.RaffleParticipant
		if err := rows.Scan(&p.Username, &p.Eligible, &p.EnteredAt); err != nil {
			logger.Error("Failed to scan raffle participant", zap.Error(err))
			continue
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate raffle participants: %w", err)
	}

	return participants, nil
}

// AllRaffleParticipants returns every participant of the current cycle.
func AllRaffleParticipants() ([]types.RaffleParticipant, error) {
	db := GetDB()
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := db.Query(`
		SELECT username, eligible, entered_at
		FROM raffle_participants
		ORDER BY entered_at ASC
	`)
	if err != nil {
		logger.Error("Failed to query raffle participants", zap.Error(err))
		return nil, fmt.Errorf("failed to query raffle participants: %w", err)
	}
	defer rows.Close()

	var participants []types.RaffleParticipant
	for rows.Next() {
		var p types.RaffleParticipant
		if err := rows.Scan(&p.Username, &p.Eligible, &p.EnteredAt); err != nil {
			logger.Error("Failed to scan raffle participant", zap.Error(err))
			continue
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate raffle participants: %w", err)
	}

	return participants, nil
}

// MarkRaffleParticipantIneligible flips a participant's eligible flag to
// false, excluding them from subsequent picks in the same cycle.
func MarkRaffleParticipantIneligible(username string) error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	_, err := db.Exec(`UPDATE raffle_participants SET eligible = false WHERE username = ?`, username)
	if err != nil {
		logger.Error("Failed to mark raffle participant ineligible",
			zap.String("username", username),
			zap.Error(err))
		return fmt.Errorf("failed to mark raffle participant ineligible: %w", err)
	}

	return nil
}

// DeleteAllRaffleParticipants wipes the participant registry. Called on
// every command-driven open; skipped for dashboard reopens.
func DeleteAllRaffleParticipants() error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	if _, err := db.Exec(`DELETE FROM raffle_participants`); err != nil {
		logger.Error("Failed to delete raffle participants", zap.Error(err))
		return fmt.Errorf("failed to delete raffle participants: %w", err)
	}

	return nil
}

// CountRaffleParticipants returns the number of participants in this cycle.
func CountRaffleParticipants() (int, error) {
	db := GetDB()
	if db == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM raffle_participants`).Scan(&count); err != nil {
		logger.Error("Failed to count raffle participants", zap.Error(err))
		return 0, fmt.Errorf("failed to count raffle participants: %w", err)
	}

	return count, nil
}
