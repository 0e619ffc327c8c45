package raffle

import (
	"strconv"
	"strings"

	"github.com/nantokaworks/twitch-raffle-bot/internal/locale"
	"github.com/nantokaworks/twitch-raffle-bot/internal/types"
)

// announceVariant keys the twelve announcement templates by the three
// axes that select wording.
type announceVariant struct {
	Eligibility types.EligibilityMode
	HasProduct  bool
	Tickets     bool
}

var announceVariants = map[announceVariant]string{
	{types.EligibilityFollowers, false, false}:   "followers",
	{types.EligibilityFollowers, false, true}:    "followersTickets",
	{types.EligibilityFollowers, true, false}:    "followersAndProduct",
	{types.EligibilityFollowers, true, true}:     "followersAndProductTickets",
	{types.EligibilitySubscribers, false, false}: "subscribers",
	{types.EligibilitySubscribers, false, true}:  "subscribersTickets",
	{types.EligibilitySubscribers, true, false}:  "subscribersAndProduct",
	{types.EligibilitySubscribers, true, true}:   "subscribersAndProductTickets",
	{types.EligibilityEveryone, false, false}:    "everyone",
	{types.EligibilityEveryone, false, true}:     "everyoneTickets",
	{types.EligibilityEveryone, true, false}:     "everyoneAndProduct",
	{types.EligibilityEveryone, true, true}:      "everyoneAndProductTickets",
}

// ComposeAnnouncement builds the outbound raffle announcement. The same
// text is used for the open confirmation, the periodic re-announcement
// and the !raffle info reply. A non-empty custom template wins over the
// variant table; placeholder substitution is first-occurrence-only.
func ComposeAnnouncement(r *types.Raffle, customTemplate string) string {
	var message string
	if strings.TrimSpace(customTemplate) != "" {
		message = substitute(customTemplate, r)
	} else {
		key := announceVariant{
			Eligibility: r.Eligibility,
			HasProduct:  r.Product != "",
			Tickets:     r.TicketMode == types.TicketModeTickets,
		}
		message = substitute(locale.Translate("raffle.announce."+announceVariants[key]), r)
	}

	if r.MinWatchedTimeMinutes > 0 {
		clause := locale.Param(locale.Translate("raffle.minWatchedTime"),
			"time", strconv.Itoa(r.MinWatchedTimeMinutes))
		message += " " + clause
	}

	return message + "."
}

func substitute(template string, r *types.Raffle) string {
	message := locale.Param(template, "keyword", r.Keyword)
	message = locale.Param(message, "product", r.Product)
	message = locale.Param(message, "min", strconv.Itoa(r.MinTickets))
	message = locale.Param(message, "max", strconv.Itoa(r.MaxTickets))
	return message
}
