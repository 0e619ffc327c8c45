// Package raffle implements the raffle lifecycle: open, participate,
// pick, close and info, plus the periodic announcement loop.
package raffle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nantokaworks/twitch-raffle-bot/internal/dispatcher"
	"github.com/nantokaworks/twitch-raffle-bot/internal/locale"
	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/logger"
	"github.com/nantokaworks/twitch-raffle-bot/internal/types"
	"go.uber.org/zap"
)

// schedulerPoll is the wall-clock granularity of the announcement loop.
// The actual re-announcement cadence comes from configuration.
const schedulerPoll = 10 * time.Second

// CommandBinder registers and unregisters chat keywords. Keyword
// (re)binding is an explicit side effect of raffle state transitions.
type CommandBinder interface {
	Register(keyword string, tier dispatcher.Tier, handler dispatcher.Handler)
	Unregister(keyword string)
	IsRegistered(keyword string) bool
}

// Store persists the raffle record and the participant registry.
type Store interface {
	GetRaffle() (*types.Raffle, error)
	UpsertRaffle(types.Raffle) error
	LockRaffle() error
	SetRaffleWinner(username string, pickedAt time.Time) error
	AddParticipant(username string, eligible bool) error
	EligibleParticipants() ([]types.RaffleParticipant, error)
	MarkIneligible(username string) error
	DeleteAllParticipants() error
}

// Notifier delivers resolved messages to chat or as private whispers.
type Notifier interface {
	Say(text string)
	SayForced(text string)
	Whisper(userID, text string)
}

// Directory looks up viewer attributes for eligibility checks.
type Directory interface {
	Viewer(username string) (*types.Viewer, error)
}

// TitleService reads and rewrites the broadcast title.
type TitleService interface {
	Title() (string, error)
	SetTitle(title string) error
}

// Config exposes the runtime-tunable raffle settings.
type Config interface {
	AnnounceIntervalMinutes() int
	CustomAnnounceMessage() string
	TitleTemplate() string
}

// WinnerEvent is pushed to the widget sink when a winner is picked.
type WinnerEvent struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Product     string    `json:"product"`
	PickedAt    time.Time `json:"picked_at"`
}

// WidgetSink receives out-of-band winner notifications.
type WidgetSink interface {
	SendWinner(winner WinnerEvent)
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Binder    CommandBinder
	Store     Store
	Notify    Notifier
	Directory Directory
	Titles    TitleService
	Config    Config
	Widgets   WidgetSink
}

// Engine owns the raffle state machine. It is the single writer of the
// raffle record; the mutex serializes command handlers against the
// announcement loop.
type Engine struct {
	mu           sync.Mutex
	deps         Deps
	lastAnnounce time.Time
	savedTitle   *string // broadcast title captured before the raffle rewrite
	now          func() time.Time
}

func New(deps Deps) *Engine {
	return &Engine{deps: deps, now: time.Now}
}

// RegisterCommands binds the static raffle commands. Call once at startup.
func (e *Engine) RegisterCommands() {
	e.deps.Binder.Register("raffle pick", dispatcher.TierOwner, func(sender dispatcher.Sender, _ string) {
		e.Pick(sender)
	})
	e.deps.Binder.Register("raffle close", dispatcher.TierOwner, func(sender dispatcher.Sender, _ string) {
		e.Close(sender)
	})
	e.deps.Binder.Register("raffle open", dispatcher.TierOwner, func(sender dispatcher.Sender, args string) {
		e.Open(sender, args)
	})
	e.deps.Binder.Register("raffle", dispatcher.TierViewer, func(sender dispatcher.Sender, _ string) {
		e.Info(sender)
	})
}

// Restore rebinds the keyword of a persisted raffle after a restart.
func (e *Engine) Restore() {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.deps.Store.GetRaffle()
	if err != nil {
		logger.Error("Failed to restore raffle", zap.Error(err))
		return
	}
	if r == nil {
		return
	}

	e.bindKeyword(r.Keyword)
	e.lastAnnounce = e.now()
	logger.Info("Raffle restored",
		zap.String("keyword", r.Keyword),
		zap.Bool("locked", r.Locked))
}

var (
	// ErrInvalidOpenArgs wraps open-argument parse failures.
	ErrInvalidOpenArgs = errors.New("invalid raffle open arguments")
	// ErrKeywordInUse is returned when the keyword collides with a
	// registered command other than the current raffle's own keyword.
	ErrKeywordInUse = errors.New("keyword is already in use")
)

// Open parses the command arguments and opens a new raffle, replacing
// any previous one. Participants of the previous cycle are wiped.
func (e *Engine) Open(sender dispatcher.Sender, args string) error {
	return e.open(args, false)
}

// OpenFromDashboard reopens a raffle from the dashboard, preserving the
// existing participant registry.
func (e *Engine) OpenFromDashboard(args string) error {
	return e.open(args, true)
}

func (e *Engine) open(args string, preserveParticipants bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	parsed, err := ParseOpenArgs(args)
	if err != nil {
		logger.Warn("Failed to parse raffle open arguments",
			zap.String("args", args),
			zap.Error(err))
		e.deps.Notify.Say(locale.Translate("raffle.open.error"))
		return fmt.Errorf("%w: %v", ErrInvalidOpenArgs, err)
	}
	parsed.CreatedAt = e.now()

	prev, err := e.deps.Store.GetRaffle()
	if err != nil {
		logger.Error("Failed to load previous raffle", zap.Error(err))
		e.deps.Notify.Say(locale.Translate("raffle.open.error"))
		return fmt.Errorf("load previous raffle: %w", err)
	}

	// The keyword must not collide with another registered command. The
	// current raffle's own keyword is exempt: opening always supersedes,
	// so reusing it (dashboard reopen included) rebinds it below. This is
	// the only terminal validation failure: nothing is mutated.
	if e.deps.Binder.IsRegistered(parsed.Keyword) && (prev == nil || prev.Keyword != parsed.Keyword) {
		e.deps.Notify.Say(locale.Param(locale.Translate("core.isRegistered"), "keyword", "!"+parsed.Keyword))
		return fmt.Errorf("%w: %s", ErrKeywordInUse, parsed.Keyword)
	}

	if err := e.deps.Store.UpsertRaffle(parsed); err != nil {
		logger.Error("Failed to persist raffle", zap.String("keyword", parsed.Keyword), zap.Error(err))
		e.deps.Notify.Say(locale.Translate("raffle.open.error"))
		return fmt.Errorf("persist raffle: %w", err)
	}

	e.deps.Notify.Say(ComposeAnnouncement(&parsed, e.deps.Config.CustomAnnounceMessage()))

	if !preserveParticipants {
		if err := e.deps.Store.DeleteAllParticipants(); err != nil {
			logger.Error("Failed to clear raffle participants", zap.Error(err))
		}
	}

	if prev != nil && prev.Keyword != parsed.Keyword {
		e.deps.Binder.Unregister(prev.Keyword)
	}
	e.bindKeyword(parsed.Keyword)

	e.lastAnnounce = e.now()
	e.applyTitleTemplate(&parsed)

	logger.Info("Raffle opened",
		zap.String("keyword", parsed.Keyword),
		zap.String("product", parsed.Product),
		zap.Int("eligibility", int(parsed.Eligibility)),
		zap.Bool("preserve_participants", preserveParticipants))
	return nil
}

func (e *Engine) bindKeyword(keyword string) {
	e.deps.Binder.Register(keyword, dispatcher.TierViewer, func(sender dispatcher.Sender, _ string) {
		e.Participate(sender)
	})
}

// Participate enters the sender into the running raffle. Silently
// ignored when no raffle is open; the eligibility verdict is whispered.
func (e *Engine) Participate(sender dispatcher.Sender) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.deps.Store.GetRaffle()
	if err != nil {
		logger.Error("Failed to load raffle for participation", zap.Error(err))
		return
	}
	if r == nil || r.Locked {
		return
	}

	viewer, err := e.deps.Directory.Viewer(sender.Username)
	if err != nil {
		logger.Error("Failed to look up viewer",
			zap.String("username", sender.Username),
			zap.Error(err))
		return
	}

	if !IsEligible(r, viewer) {
		e.deps.Notify.Whisper(sender.UserID, locale.Translate("raffle.participation.failed"))
		return
	}

	if err := e.deps.Store.AddParticipant(sender.Username, true); err != nil {
		logger.Error("Failed to add raffle participant",
			zap.String("username", sender.Username),
			zap.Error(err))
		return
	}
	e.deps.Notify.Whisper(sender.UserID, locale.Translate("raffle.participation.success"))
}

// Pick selects a winner uniformly at random among eligible participants
// and excludes them from any re-pick in the same cycle. Repeatable until
// no eligible entrant remains.
func (e *Engine) Pick(sender dispatcher.Sender) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.deps.Store.GetRaffle()
	if err != nil {
		logger.Error("Failed to load raffle for pick", zap.Error(err))
		return
	}

	eligible, err := e.deps.Store.EligibleParticipants()
	if err != nil {
		logger.Error("Failed to load eligible participants", zap.Error(err))
		return
	}

	if r == nil || len(eligible) == 0 {
		e.deps.Notify.Say(locale.Translate("raffle.pick.noParticipants"))
		return
	}

	winner, err := drawWinner(eligible)
	if err != nil {
		logger.Error("Failed to draw raffle winner", zap.Error(err))
		return
	}

	// Persist the exclusion and the winner before announcing anything,
	// so a failed write never produces a false success message.
	if err := e.deps.Store.MarkIneligible(winner.Username); err != nil {
		logger.Error("Failed to exclude winner from re-picks",
			zap.String("username", winner.Username),
			zap.Error(err))
		return
	}
	pickedAt := e.now()
	if err := e.deps.Store.SetRaffleWinner(winner.Username, pickedAt); err != nil {
		logger.Error("Failed to persist raffle winner",
			zap.String("username", winner.Username),
			zap.Error(err))
		return
	}

	display := winner.Username
	if viewer, err := e.deps.Directory.Viewer(winner.Username); err == nil && viewer != nil && viewer.DisplayName != "" {
		display = viewer.DisplayName
	}

	key := "raffle.pick.winner.withoutProduct"
	if r.Product != "" {
		key = "raffle.pick.winner.withProduct"
	}
	message := locale.Param(locale.Translate(key), "winner", display)
	message = locale.Param(message, "product", r.Product)
	e.deps.Notify.Say(message)

	e.deps.Binder.Unregister(r.Keyword)
	e.deps.Widgets.SendWinner(WinnerEvent{
		Username:    winner.Username,
		DisplayName: display,
		Product:     r.Product,
		PickedAt:    pickedAt,
	})

	logger.Info("Raffle winner picked",
		zap.String("winner", winner.Username),
		zap.Int("remaining_eligible", len(eligible)-1))
}

// Close locks the raffle without picking a winner and restores the
// pre-raffle stream title.
func (e *Engine) Close(sender dispatcher.Sender) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.restoreTitle()

	r, err := e.deps.Store.GetRaffle()
	if err != nil {
		logger.Error("Failed to load raffle for close", zap.Error(err))
		return
	}
	if r == nil {
		e.deps.Notify.Say(locale.Translate("raffle.close.notRunning"))
		return
	}

	if err := e.deps.Store.LockRaffle(); err != nil {
		logger.Error("Failed to lock raffle", zap.Error(err))
		return
	}

	e.deps.Notify.Say(locale.Translate("raffle.close.ok"))
	e.deps.Binder.Unregister(r.Keyword)

	logger.Info("Raffle closed", zap.String("keyword", r.Keyword))
}

// Info reports the raffle state. Read-only.
func (e *Engine) Info(sender dispatcher.Sender) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.deps.Store.GetRaffle()
	if err != nil {
		logger.Error("Failed to load raffle for info", zap.Error(err))
		return
	}

	switch {
	case r == nil || r.HasWinner():
		e.deps.Notify.Say(locale.Translate("raffle.info.notRunning"))
	case !r.Locked:
		e.deps.Notify.Say(ComposeAnnouncement(r, e.deps.Config.CustomAnnounceMessage()))
	default:
		e.deps.Notify.Say(locale.Translate("raffle.info.closed"))
	}
}

// State returns the current raffle and participants for the dashboard.
func (e *Engine) State() (*types.Raffle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deps.Store.GetRaffle()
}

// StartScheduler runs the announcement loop until the context is
// cancelled. The loop is process-lifetime; pick and close stop the
// announcements by locking the raffle, not by cancelling the timer.
func (e *Engine) StartScheduler(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(schedulerPoll)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.announceTick()
			}
		}
	}()
}

func (e *Engine) announceTick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	interval := time.Duration(e.deps.Config.AnnounceIntervalMinutes()) * time.Minute
	if interval <= 0 {
		return
	}
	if e.now().Before(e.lastAnnounce.Add(interval)) {
		return
	}

	r, err := e.deps.Store.GetRaffle()
	if err != nil {
		logger.Error("Failed to load raffle for announcement", zap.Error(err))
		return
	}
	if r == nil || r.Locked {
		return
	}

	e.lastAnnounce = e.now()
	e.deps.Notify.SayForced(ComposeAnnouncement(r, e.deps.Config.CustomAnnounceMessage()))
}

func (e *Engine) applyTitleTemplate(r *types.Raffle) {
	template := strings.TrimSpace(e.deps.Config.TitleTemplate())
	if template == "" {
		return
	}

	current, err := e.deps.Titles.Title()
	if err != nil {
		logger.Error("Failed to read stream title", zap.Error(err))
		return
	}
	e.savedTitle = &current

	product := r.Product
	if product == "" {
		product = " "
	}
	suffix := locale.Param(template, "product", product)
	suffix = locale.Param(suffix, "keyword", r.Keyword)

	if err := e.deps.Titles.SetTitle(current + " " + suffix); err != nil {
		logger.Error("Failed to rewrite stream title", zap.Error(err))
	}
}

func (e *Engine) restoreTitle() {
	if e.savedTitle == nil {
		return
	}

	if err := e.deps.Titles.SetTitle(*e.savedTitle); err != nil {
		logger.Error("Failed to restore stream title", zap.Error(err))
	}
	e.savedTitle = nil
}
