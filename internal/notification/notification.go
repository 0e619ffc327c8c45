// Package notification is the outbound channel for chat messages and
// whispers. Messages are queued and delivered by a single worker so chat
// output never blocks command handling.
package notification

import (
	"sync"
	"time"

	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/logger"
	"github.com/nantokaworks/twitch-raffle-bot/internal/twitchapi"
	"go.uber.org/zap"
)

// OutboundMessage is one queued chat delivery.
type OutboundMessage struct {
	Text      string
	WhisperTo string // user ID; empty means broadcast to chat
	Force     bool   // skip the broadcast rate limiter
}

// minBroadcastGap throttles non-forced broadcasts so periodic chatter
// cannot flood the channel.
const minBroadcastGap = time.Second

var (
	queue                 chan OutboundMessage
	queueProcessorRunning bool
	queueProcessorMutex   sync.Mutex
	queueProcessorDone    chan struct{}
	lastBroadcastAt       time.Time
)

// Initialize starts the delivery worker. Call once at startup.
func Initialize() {
	queueProcessorMutex.Lock()
	defer queueProcessorMutex.Unlock()

	if queueProcessorRunning {
		return
	}

	queue = make(chan OutboundMessage, 100)
	queueProcessorDone = make(chan struct{})
	queueProcessorRunning = true

	go processQueue()

	logger.Info("Notification channel initialized with queue processor")
}

// Shutdown stops the delivery worker after draining queued messages.
func Shutdown() {
	queueProcessorMutex.Lock()
	defer queueProcessorMutex.Unlock()

	if !queueProcessorRunning {
		return
	}
	queueProcessorRunning = false
	close(queue)
	<-queueProcessorDone
}

// Say queues a broadcast chat message.
func Say(text string) {
	enqueue(OutboundMessage{Text: text})
}

// SayForced queues a broadcast that bypasses the rate limiter. The
// announcement scheduler uses this so periodic announcements are never
// dropped.
func SayForced(text string) {
	enqueue(OutboundMessage{Text: text, Force: true})
}

// Whisper queues a private message to a user.
func Whisper(userID, text string) {
	enqueue(OutboundMessage{Text: text, WhisperTo: userID})
}

// enqueue sends while holding the mutex so Shutdown cannot close the
// queue between the running check and the send.
func enqueue(msg OutboundMessage) {
	queueProcessorMutex.Lock()
	defer queueProcessorMutex.Unlock()

	if !queueProcessorRunning {
		logger.Warn("Notification channel not initialized, dropping message",
			zap.String("text", msg.Text))
		return
	}

	select {
	case queue <- msg:
	default:
		logger.Warn("Notification queue is full, dropping message",
			zap.String("text", msg.Text))
	}
}

func processQueue() {
	defer close(queueProcessorDone)

	for msg := range queue {
		deliver(msg)
	}
}

// Delivery funcs as vars so tests can stub out the Helix client.
var (
	sendChatMessage = twitchapi.SendChatMessage
	sendWhisper     = twitchapi.SendWhisper
)

func deliver(msg OutboundMessage) {
	if msg.WhisperTo != "" {
		if err := sendWhisper(msg.WhisperTo, msg.Text); err != nil {
			logger.Error("Failed to deliver whisper",
				zap.String("to_user_id", msg.WhisperTo),
				zap.Error(err))
		}
		return
	}

	if !msg.Force {
		if wait := minBroadcastGap - time.Since(lastBroadcastAt); wait > 0 {
			time.Sleep(wait)
		}
	}
	lastBroadcastAt = time.Now()

	if err := sendChatMessage(msg.Text); err != nil {
		logger.Error("Failed to deliver chat message", zap.Error(err))
	}
}
