package twitcheventsub

import (
	"github.com/joeyak/go-twitch-eventsub/v3"
	"github.com/nantokaworks/twitch-raffle-bot/internal/broadcast"
	"github.com/nantokaworks/twitch-raffle-bot/internal/dispatcher"
	"github.com/nantokaworks/twitch-raffle-bot/internal/env"
	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/logger"
	"github.com/nantokaworks/twitch-raffle-bot/internal/userdir"
	"go.uber.org/zap"
)

// HandleChannelChatMessage records chat activity for the viewer directory
// and routes the message through the command dispatcher.
func HandleChannelChatMessage(message twitch.EventChannelChatMessage) {
	username := message.Chatter.ChatterUserLogin
	if username == "" {
		username = message.Chatter.ChatterUserName
	}
	if username == "" {
		return
	}

	userdir.RecordChatActivity(username, message.Chatter.ChatterUserName)

	isOwner := env.Value.BroadcasterID != nil && message.Chatter.ChatterUserId == *env.Value.BroadcasterID
	isModerator := false
	for _, badge := range message.Badges {
		switch badge.SetId {
		case "broadcaster":
			isOwner = true
		case "moderator":
			isModerator = true
		}
	}

	sender := dispatcher.Sender{
		UserID:      message.Chatter.ChatterUserId,
		Username:    username,
		DisplayName: message.Chatter.ChatterUserName,
		IsOwner:     isOwner,
		IsModerator: isModerator,
	}

	if commands != nil && commands.Dispatch(sender, message.Message.Text) {
		logger.Debug("Chat command dispatched",
			zap.String("username", username),
			zap.String("text", message.Message.Text))
	}
}

// HandleChannelFollow stores the follower state used by eligibility checks.
func HandleChannelFollow(message twitch.EventChannelFollow) {
	username := message.User.UserLogin
	if username == "" {
		username = message.User.UserName
	}
	if username == "" {
		return
	}

	userdir.RecordFollower(username, true)
	logger.Debug("Follower recorded", zap.String("username", username))
}

// HandleChannelSubscribe stores the subscriber state used by eligibility
// checks. Gift subs count the recipient like any other subscriber.
func HandleChannelSubscribe(message twitch.EventChannelSubscribe) {
	username := message.User.UserLogin
	if username == "" {
		username = message.User.UserName
	}
	if username == "" {
		return
	}

	userdir.RecordSubscriber(username, true)
	logger.Debug("Subscriber recorded",
		zap.String("username", username),
		zap.String("tier", message.Tier))
}

// HandleStreamOnline enables watched-time accrual.
func HandleStreamOnline(message twitch.EventStreamOnline) {
	logger.Info("Stream is now LIVE")
	userdir.SetStreamLive(true)
	broadcast.Send("stream_status", map[string]interface{}{
		"is_live":    true,
		"started_at": message.StartedAt,
	})
}

// HandleStreamOffline disables watched-time accrual.
func HandleStreamOffline(message twitch.EventStreamOffline) {
	logger.Info("Stream is now OFFLINE")
	userdir.SetStreamLive(false)
	broadcast.Send("stream_status", map[string]interface{}{
		"is_live": false,
	})
}
