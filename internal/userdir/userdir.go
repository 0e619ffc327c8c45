// Package userdir exposes viewer attributes used by raffle eligibility:
// follower state, subscriber state and cumulative watched time. Data is
// fed by EventSub handlers and a watched-time accrual loop.
package userdir

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nantokaworks/twitch-raffle-bot/internal/localdb"
	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/logger"
	"github.com/nantokaworks/twitch-raffle-bot/internal/types"
	"go.uber.org/zap"
)

// activityWindow is how recently a viewer must have chatted to count as
// actively watching.
const activityWindow = 15 * time.Minute

var streamLive atomic.Bool

// GetViewer returns directory attributes for a username. Nil means the
// viewer has never been seen; callers treat that as all-unknown.
func GetViewer(username string) (*types.Viewer, error) {
	return localdb.GetViewer(username)
}

// RecordChatActivity marks a viewer as active in chat.
func RecordChatActivity(username, displayName string) {
	if err := localdb.TouchViewer(username, displayName, time.Now()); err != nil {
		logger.Error("Failed to record chat activity",
			zap.String("username", username),
			zap.Error(err))
	}
}

// RecordFollower stores known follower state.
func RecordFollower(username string, isFollower bool) {
	if err := localdb.SetViewerFollower(username, isFollower); err != nil {
		logger.Error("Failed to record follower state",
			zap.String("username", username),
			zap.Error(err))
	}
}

// RecordSubscriber stores known subscriber state.
func RecordSubscriber(username string, isSubscriber bool) {
	if err := localdb.SetViewerSubscriber(username, isSubscriber); err != nil {
		logger.Error("Failed to record subscriber state",
			zap.String("username", username),
			zap.Error(err))
	}
}

// SetStreamLive toggles watched-time accrual. Driven by the
// stream.online / stream.offline EventSub events.
func SetStreamLive(live bool) {
	streamLive.Store(live)
}

// IsStreamLive reports the last known stream state.
func IsStreamLive() bool {
	return streamLive.Load()
}

// StartWatchTimeAccrual credits one minute of watched time per minute to
// every recently active viewer while the stream is live. Runs until the
// context is cancelled.
func StartWatchTimeAccrual(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !streamLive.Load() {
					continue
				}
				credited, err := localdb.AccrueWatchedTime(time.Now().Add(-activityWindow), time.Minute)
				if err != nil {
					logger.Error("Failed to accrue watched time", zap.Error(err))
					continue
				}
				if credited > 0 {
					logger.Debug("Watched time accrued", zap.Int("viewers", credited))
				}
			}
		}
	}()
}
