package types

import "time"

// EligibilityMode は参加資格の制限を表す。
type EligibilityMode int

const (
	EligibilityFollowers   EligibilityMode = 0
	EligibilitySubscribers EligibilityMode = 1
	EligibilityEveryone    EligibilityMode = 2
)

// TicketMode selects alternate announcement wording. It does not imply
// real ticket-count accounting.
type TicketMode int

const (
	TicketModeKeyword TicketMode = 0
	TicketModeTickets TicketMode = 1
)

// Raffle is the currently configured raffle. At most one exists at a time;
// opening a new raffle replaces it.
type Raffle struct {
	Keyword               string          `json:"keyword"`
	Product               string          `json:"product"`
	Eligibility           EligibilityMode `json:"eligibility"`
	TicketMode            TicketMode      `json:"ticket_mode"`
	MinTickets            int             `json:"min_tickets"`
	MaxTickets            int             `json:"max_tickets"`
	MinWatchedTimeMinutes int             `json:"min_watched_time_minutes"`
	Winner                string          `json:"winner"` // empty while no winner picked
	Locked                bool            `json:"locked"`
	CreatedAt             time.Time       `json:"created_at"`
}

// HasWinner reports whether a winner has been picked for this raffle.
func (r *Raffle) HasWinner() bool {
	return r.Winner != ""
}

// RaffleParticipant は1回の抽選サイクルにおける参加者情報。
// Eligible is computed once at entry time and flipped to false when the
// participant wins, excluding them from re-picks in the same cycle.
type RaffleParticipant struct {
	Username  string    `json:"username"`
	Eligible  bool      `json:"eligible"`
	EnteredAt time.Time `json:"entered_at"`
}

// Viewer holds directory attributes for one chat user. Nil fields mean the
// attribute is unknown; unknown never counts as eligible.
type Viewer struct {
	Username      string `json:"username"`
	DisplayName   string `json:"display_name"`
	IsFollower    *bool  `json:"is_follower,omitempty"`
	IsSubscriber  *bool  `json:"is_subscriber,omitempty"`
	WatchedTimeMs *int64 `json:"watched_time_ms,omitempty"`
}
