// Package twitcheventsub maintains the EventSub WebSocket connection and
// routes incoming events to the command dispatcher and viewer directory.
package twitcheventsub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/joeyak/go-twitch-eventsub/v3"
	"github.com/nantokaworks/twitch-raffle-bot/internal/dispatcher"
	"github.com/nantokaworks/twitch-raffle-bot/internal/env"
	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/logger"
	"github.com/nantokaworks/twitch-raffle-bot/internal/twitchtoken"
	"go.uber.org/zap"
)

var (
	client      *twitch.Client
	commands    *dispatcher.Dispatcher
	isRunning   bool
	isConnected bool
	lastError   error
)

// Start connects to EventSub, refreshing the stored token first when it
// is expired or close to expiry.
func Start(d *dispatcher.Dispatcher) error {
	if isRunning {
		return nil
	}
	commands = d

	token, valid, err := twitchtoken.GetLatestToken()
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("no access token available")
	}

	if !valid {
		logger.Info("Token expired or about to expire, refreshing...")
		if err := token.RefreshTwitchToken(); err != nil {
			return fmt.Errorf("failed to refresh token: %w", err)
		}
		token, _, err = twitchtoken.GetLatestToken()
		if err != nil {
			return fmt.Errorf("failed to get refreshed token: %w", err)
		}
		logger.Info("Token refreshed successfully")
	} else if timeUntilExpiry := token.ExpiresAt - time.Now().Unix(); timeUntilExpiry <= 30*60 {
		// 期限が30分以内の場合も事前にリフレッシュ
		logger.Info("Token expires in less than 30 minutes, refreshing proactively...",
			zap.Int64("seconds_until_expiry", timeUntilExpiry))
		if err := token.RefreshTwitchToken(); err != nil {
			logger.Warn("Failed to refresh token proactively", zap.Error(err))
		} else if token, _, err = twitchtoken.GetLatestToken(); err != nil {
			logger.Warn("Failed to get refreshed token", zap.Error(err))
		} else {
			logger.Info("Token refreshed proactively")
		}
	}

	SetupEventSub(&token)

	if client != nil {
		go func() {
			logger.Info("Connecting to EventSub...")
			if err := client.Connect(); err != nil {
				logger.Error("Failed to connect EventSub", zap.Error(err))
				lastError = err
				isConnected = false
			}
		}()
		isRunning = true
	}

	return nil
}

// Stop closes the EventSub client.
func Stop() {
	if client != nil && isRunning {
		client.Close()
		isRunning = false
		isConnected = false
	}
}

// IsConnected returns whether EventSub is connected
func IsConnected() bool {
	return isConnected
}

// GetLastError returns the last EventSub error
func GetLastError() error {
	return lastError
}

func SetupEventSub(token *twitchtoken.Token) {
	client = twitch.NewClient()

	client.OnError(func(err error) {
		logger.Error("EventSub error", zap.Error(err))
		lastError = err
		isConnected = false
	})
	client.OnWelcome(func(message twitch.WelcomeMessage) {
		logger.Info("EventSub connected successfully")
		isConnected = true
		lastError = nil

		// EventSubは既存の配信をstream.onlineイベントとして通知しないため、
		// 接続時に現在の配信状態を確認する
		go checkStreamStatusOnConnect()

		events := []twitch.EventSubscription{
			twitch.SubChannelChatMessage,
			twitch.SubChannelFollow,
			twitch.SubChannelSubscribe,
			twitch.SubStreamOffline,
			twitch.SubStreamOnline,
		}

		for _, event := range events {
			logger.Info("Subscribing to EventSub event", zap.String("event", string(event)))

			_, err := twitch.SubscribeEvent(twitch.SubscribeRequest{
				SessionID:   message.Payload.Session.ID,
				ClientID:    *env.Value.ClientID,
				AccessToken: token.AccessToken,
				Event:       event,
				Condition: map[string]string{
					"broadcaster_user_id": *env.Value.BroadcasterID,
					"moderator_user_id":   *env.Value.BroadcasterID,
					"user_id":             *env.Value.BroadcasterID,
				},
			})
			if err != nil {
				logger.Error("Failed to subscribe to event",
					zap.String("event", string(event)),
					zap.Error(err))
				// エラーが発生しても他のイベントのサブスクリプションを続ける
				continue
			}
			logger.Info("Successfully subscribed to event", zap.String("event", string(event)))
		}
	})
	client.OnNotification(func(message twitch.NotificationMessage) {
		logger.Debug("Received EventSub notification",
			zap.String("type", string(message.Payload.Subscription.Type)))

		switch message.Payload.Subscription.Type {

		case twitch.SubChannelChatMessage:
			var evt twitch.EventChannelChatMessage
			if err := json.Unmarshal(*message.Payload.Event, &evt); err != nil {
				logger.Error("Failed to parse channel chat message event", zap.Error(err))
			} else {
				HandleChannelChatMessage(evt)
			}

		case twitch.SubChannelFollow:
			var evt twitch.EventChannelFollow
			if err := json.Unmarshal(*message.Payload.Event, &evt); err != nil {
				logger.Error("Failed to parse follow event", zap.Error(err))
			} else {
				HandleChannelFollow(evt)
			}

		case twitch.SubChannelSubscribe:
			var evt twitch.EventChannelSubscribe
			if err := json.Unmarshal(*message.Payload.Event, &evt); err != nil {
				logger.Error("Failed to parse subscribe event", zap.Error(err))
			} else {
				HandleChannelSubscribe(evt)
			}

		case twitch.SubStreamOffline:
			var evt twitch.EventStreamOffline
			if err := json.Unmarshal(*message.Payload.Event, &evt); err != nil {
				logger.Error("Failed to parse stream offline event", zap.Error(err))
			} else {
				HandleStreamOffline(evt)
			}

		case twitch.SubStreamOnline:
			var evt twitch.EventStreamOnline
			if err := json.Unmarshal(*message.Payload.Event, &evt); err != nil {
				logger.Error("Failed to parse stream online event", zap.Error(err))
			} else {
				HandleStreamOnline(evt)
			}

		default:
			logger.Debug("Unhandled EventSub notification",
				zap.String("type", string(message.Payload.Subscription.Type)))
		}
	})
	client.OnKeepAlive(func(message twitch.KeepAliveMessage) {
		isConnected = true
	})
	client.OnRevoke(func(message twitch.RevokeMessage) {
		logger.Warn("EventSub subscription revoked",
			zap.String("type", string(message.Payload.Subscription.Type)),
			zap.String("status", message.Payload.Subscription.Status))
	})

	// Connect処理はStart()関数で行うため、ここでは接続しない
}
