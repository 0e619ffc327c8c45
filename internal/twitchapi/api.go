package twitchapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nantokaworks/twitch-raffle-bot/internal/env"
	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/logger"
	"github.com/nantokaworks/twitch-raffle-bot/internal/twitchtoken"
	"go.uber.org/zap"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

func makeAuthenticatedRequest(method, reqURL string, body []byte) (*http.Response, error) {
	token, valid, err := twitchtoken.GetOrRefreshToken()
	if err != nil || !valid {
		return nil, fmt.Errorf("no valid twitch token: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Client-Id", *env.Value.ClientID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return httpClient.Do(req)
}

func makeAuthenticatedGetRequest(reqURL string) (*http.Response, error) {
	return makeAuthenticatedRequest(http.MethodGet, reqURL, nil)
}

// UserInfo contains the directory identity of a Twitch user.
type UserInfo struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

// GetUserByLogin resolves a login name into a Helix user record.
func GetUserByLogin(login string) (*UserInfo, error) {
	reqURL := fmt.Sprintf("https://api.twitch.tv/helix/users?login=%s", url.QueryEscape(login))

	resp, err := makeAuthenticatedGetRequest(reqURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data []UserInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	if len(result.Data) == 0 {
		return nil, fmt.Errorf("user not found: %s", login)
	}
	return &result.Data[0], nil
}

// GetChannelTitle returns the broadcaster's current stream title.
func GetChannelTitle() (string, error) {
	reqURL := fmt.Sprintf("https://api.twitch.tv/helix/channels?broadcaster_id=%s",
		url.QueryEscape(*env.Value.BroadcasterID))

	resp, err := makeAuthenticatedGetRequest(reqURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data []struct {
			Title string `json:"title"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	if len(result.Data) == 0 {
		return "", fmt.Errorf("channel not found")
	}
	return result.Data[0].Title, nil
}

// UpdateChannelTitle rewrites the broadcaster's stream title.
func UpdateChannelTitle(title string) error {
	reqURL := fmt.Sprintf("https://api.twitch.tv/helix/channels?broadcaster_id=%s",
		url.QueryEscape(*env.Value.BroadcasterID))

	body, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	resp, err := makeAuthenticatedRequest(http.MethodPatch, reqURL, body)
	if err != nil {
		return fmt.Errorf("failed to update channel title: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		logger.Error("Twitch API returned error for channel update",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)))
		return fmt.Errorf("API request failed with status: %d", resp.StatusCode)
	}

	logger.Info("Stream title updated", zap.String("title", title))
	return nil
}

// IsStreamLive reports whether the broadcaster is currently streaming.
func IsStreamLive() (bool, error) {
	reqURL := fmt.Sprintf("https://api.twitch.tv/helix/streams?user_id=%s",
		url.QueryEscape(*env.Value.BroadcasterID))

	resp, err := makeAuthenticatedGetRequest(reqURL)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("API request failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data []struct {
			Type string `json:"type"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}

	return len(result.Data) > 0, nil
}
