// Package dispatcher routes textual chat commands to handlers with
// per-command privilege tiers. Raffle keywords are registered and
// unregistered here as the raffle moves through its lifecycle.
package dispatcher

import (
	"strings"
	"sync"

	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/logger"
	"go.uber.org/zap"
)

// Tier is the minimum caller privilege required to run a command.
type Tier int

const (
	TierViewer Tier = iota
	TierOwner
)

// Sender identifies the chat user issuing a command.
type Sender struct {
	UserID      string
	Username    string
	DisplayName string
	IsOwner     bool
	IsModerator bool
}

// Handler receives the sender and the text after the command keyword.
type Handler func(sender Sender, args string)

type command struct {
	keyword string
	tier    Tier
	handler Handler
}

// Dispatcher holds the command registry. Safe for concurrent use; chat
// ingestion and the raffle engine register/dispatch from different
// goroutines.
type Dispatcher struct {
	mu       sync.RWMutex
	commands map[string]command
}

func New() *Dispatcher {
	return &Dispatcher{commands: make(map[string]command)}
}

// Register binds a keyword (without the leading "!") to a handler.
// Registering an existing keyword replaces its binding.
func (d *Dispatcher) Register(keyword string, tier Tier, handler Handler) {
	keyword = normalize(keyword)

	d.mu.Lock()
	d.commands[keyword] = command{keyword: keyword, tier: tier, handler: handler}
	d.mu.Unlock()

	logger.Debug("Command registered", zap.String("keyword", keyword))
}

// Unregister removes a keyword binding. Unknown keywords are a no-op.
func (d *Dispatcher) Unregister(keyword string) {
	keyword = normalize(keyword)

	d.mu.Lock()
	delete(d.commands, keyword)
	d.mu.Unlock()

	logger.Debug("Command unregistered", zap.String("keyword", keyword))
}

// IsRegistered reports whether a keyword is currently bound.
func (d *Dispatcher) IsRegistered(keyword string) bool {
	keyword = normalize(keyword)

	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.commands[keyword]
	return ok
}

// Dispatch matches a chat line against the registry and invokes the
// handler. Matching is longest-prefix so "raffle open" wins over
// "raffle". Returns false when no command matched or the sender lacks
// the required tier.
func (d *Dispatcher) Dispatch(sender Sender, text string) bool {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "!") {
		return false
	}
	text = strings.TrimPrefix(text, "!")

	cmd, args, ok := d.match(text)
	if !ok {
		return false
	}

	if cmd.tier == TierOwner && !sender.IsOwner && !sender.IsModerator {
		logger.Debug("Command rejected by privilege tier",
			zap.String("keyword", cmd.keyword),
			zap.String("username", sender.Username))
		return false
	}

	cmd.handler(sender, args)
	return true
}

func (d *Dispatcher) match(text string) (command, string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	lowered := strings.ToLower(text)
	var (
		best  command
		found bool
	)
	for keyword, cmd := range d.commands {
		if lowered != keyword && !strings.HasPrefix(lowered, keyword+" ") {
			continue
		}
		if !found || len(keyword) > len(best.keyword) {
			best = cmd
			found = true
		}
	}
	if !found {
		return command{}, "", false
	}

	args := strings.TrimSpace(text[len(best.keyword):])
	return best, args, true
}

func normalize(keyword string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(keyword), "!"))
}
