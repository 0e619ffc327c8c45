package raffle

import (
	"time"

	"github.com/nantokaworks/twitch-raffle-bot/internal/broadcast"
	"github.com/nantokaworks/twitch-raffle-bot/internal/localdb"
	"github.com/nantokaworks/twitch-raffle-bot/internal/notification"
	"github.com/nantokaworks/twitch-raffle-bot/internal/settings"
	"github.com/nantokaworks/twitch-raffle-bot/internal/twitchapi"
	"github.com/nantokaworks/twitch-raffle-bot/internal/types"
	"github.com/nantokaworks/twitch-raffle-bot/internal/userdir"
)

// dbStore backs the Store interface with the local SQLite database.
type dbStore struct{}

func (dbStore) GetRaffle() (*types.Raffle, error)       { return localdb.GetRaffle() }
func (dbStore) UpsertRaffle(r types.Raffle) error       { return localdb.UpsertRaffle(r) }
func (dbStore) LockRaffle() error                       { return localdb.LockRaffle() }
func (dbStore) SetRaffleWinner(u string, t time.Time) error {
	return localdb.SetRaffleWinner(u, t)
}
func (dbStore) AddParticipant(u string, eligible bool) error {
	return localdb.AddRaffleParticipant(u, eligible)
}
func (dbStore) EligibleParticipants() ([]types.RaffleParticipant, error) {
	return localdb.EligibleRaffleParticipants()
}
func (dbStore) MarkIneligible(u string) error { return localdb.MarkRaffleParticipantIneligible(u) }
func (dbStore) DeleteAllParticipants() error  { return localdb.DeleteAllRaffleParticipants() }

// chatNotifier backs the Notifier interface with the outbound chat queue.
type chatNotifier struct{}

func (chatNotifier) Say(text string)            { notification.Say(text) }
func (chatNotifier) SayForced(text string)      { notification.SayForced(text) }
func (chatNotifier) Whisper(userID, text string) { notification.Whisper(userID, text) }

// viewerDirectory backs the Directory interface with the viewer registry.
type viewerDirectory struct{}

func (viewerDirectory) Viewer(username string) (*types.Viewer, error) {
	return userdir.GetViewer(username)
}

// helixTitles backs the TitleService interface with the Helix channel API.
type helixTitles struct{}

func (helixTitles) Title() (string, error)    { return twitchapi.GetChannelTitle() }
func (helixTitles) SetTitle(title string) error { return twitchapi.UpdateChannelTitle(title) }

// settingsConfig backs the Config interface with the settings table.
type settingsConfig struct{}

func (settingsConfig) AnnounceIntervalMinutes() int {
	sm := settings.NewSettingsManager(localdb.GetDB())
	interval, err := sm.GetIntSetting("RAFFLE_ANNOUNCE_INTERVAL")
	if err != nil {
		return 0
	}
	return interval
}
func (settingsConfig) CustomAnnounceMessage() string {
	sm := settings.NewSettingsManager(localdb.GetDB())
	message, _ := sm.GetSetting("RAFFLE_ANNOUNCE_CUSTOM_MESSAGE")
	return message
}
func (settingsConfig) TitleTemplate() string {
	sm := settings.NewSettingsManager(localdb.GetDB())
	template, _ := sm.GetSetting("RAFFLE_TITLE_TEMPLATE")
	return template
}

// wsWidgets backs the WidgetSink interface with the WebSocket broadcast.
type wsWidgets struct{}

func (wsWidgets) SendWinner(winner WinnerEvent) {
	broadcast.Send("raffle_winner", winner)
}

// NewWithDefaults wires the engine to the production collaborators.
func NewWithDefaults(binder CommandBinder) *Engine {
	return New(Deps{
		Binder:    binder,
		Store:     dbStore{},
		Notify:    chatNotifier{},
		Directory: viewerDirectory{},
		Titles:    helixTitles{},
		Config:    settingsConfig{},
		Widgets:   wsWidgets{},
	})
}
