package twitchapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nantokaworks/twitch-raffle-bot/internal/env"
	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/logger"
	"go.uber.org/zap"
)

func senderUserID() string {
	if env.Value.BotUserID != nil && *env.Value.BotUserID != "" {
		return *env.Value.BotUserID
	}
	return *env.Value.BroadcasterID
}

// SendChatMessage posts a message to the broadcaster's chat.
func SendChatMessage(message string) error {
	body, err := json.Marshal(map[string]string{
		"broadcaster_id": *env.Value.BroadcasterID,
		"sender_id":      senderUserID(),
		"message":        message,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	resp, err := makeAuthenticatedRequest(http.MethodPost, "https://api.twitch.tv/helix/chat/messages", body)
	if err != nil {
		return fmt.Errorf("failed to send chat message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		logger.Error("Twitch API returned error for chat message",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)))
		return fmt.Errorf("API request failed with status: %d", resp.StatusCode)
	}

	return nil
}

// SendWhisper sends a private message to a user. Whisper delivery is
// best-effort; Twitch silently drops whispers to users with whispers
// disabled.
func SendWhisper(toUserID, message string) error {
	reqURL := fmt.Sprintf("https://api.twitch.tv/helix/whispers?from_user_id=%s&to_user_id=%s",
		senderUserID(), toUserID)

	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	resp, err := makeAuthenticatedRequest(http.MethodPost, reqURL, body)
	if err != nil {
		return fmt.Errorf("failed to send whisper: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		logger.Error("Twitch API returned error for whisper",
			zap.Int("status", resp.StatusCode),
			zap.String("to_user_id", toUserID),
			zap.String("body", string(respBody)))
		return fmt.Errorf("API request failed with status: %d", resp.StatusCode)
	}

	return nil
}
