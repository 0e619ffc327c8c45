package twitcheventsub

import (
	"time"

	"github.com/nantokaworks/twitch-raffle-bot/internal/env"
	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/logger"
	"github.com/nantokaworks/twitch-raffle-bot/internal/twitchapi"
	"github.com/nantokaworks/twitch-raffle-bot/internal/userdir"
	"go.uber.org/zap"
)

// checkStreamStatusOnConnect queries the current stream state once after
// the EventSub session is established. A stream already live before the
// bot started never produces a stream.online event.
func checkStreamStatusOnConnect() {
	if env.Value.BroadcasterID == nil || *env.Value.BroadcasterID == "" {
		logger.Warn("Cannot check stream status: broadcaster ID not configured")
		return
	}

	// サブスクリプション処理を優先するため少し待つ
	time.Sleep(1 * time.Second)

	live, err := twitchapi.IsStreamLive()
	if err != nil {
		logger.Error("Failed to get stream status on EventSub connect", zap.Error(err))
		return
	}

	if live != userdir.IsStreamLive() {
		logger.Info("Updating stream status from API check", zap.Bool("is_live", live))
		userdir.SetStreamLive(live)
	}
}
