// Package locale maps message keys to parameterized chat templates.
// Placeholders use the (name) form; substitution replaces the first
// occurrence only.
package locale

import "strings"

var messages = map[string]string{
	"core.isRegistered": "Keyword (keyword) is already in use",

	"raffle.open.error": "Raffle could not be opened",

	// Announcement bodies are shared by the open confirmation, the
	// periodic re-announcement and the !raffle info reply so all three
	// stay identical for a given raffle.
	"raffle.announce.followers":                    "Raffle for followers is running! Join with !(keyword)",
	"raffle.announce.followersTickets":             "Ticket raffle for followers is running! Join with !(keyword) <(min)-(max)>",
	"raffle.announce.followersAndProduct":          "Raffle for followers about (product) is running! Join with !(keyword)",
	"raffle.announce.followersAndProductTickets":   "Ticket raffle for followers about (product) is running! Join with !(keyword) <(min)-(max)>",
	"raffle.announce.subscribers":                  "Raffle for subscribers is running! Join with !(keyword)",
	"raffle.announce.subscribersTickets":           "Ticket raffle for subscribers is running! Join with !(keyword) <(min)-(max)>",
	"raffle.announce.subscribersAndProduct":        "Raffle for subscribers about (product) is running! Join with !(keyword)",
	"raffle.announce.subscribersAndProductTickets": "Ticket raffle for subscribers about (product) is running! Join with !(keyword) <(min)-(max)>",
	"raffle.announce.everyone":                     "Raffle is running! Join with !(keyword)",
	"raffle.announce.everyoneTickets":              "Ticket raffle is running! Join with !(keyword) <(min)-(max)>",
	"raffle.announce.everyoneAndProduct":           "Raffle about (product) is running! Join with !(keyword)",
	"raffle.announce.everyoneAndProductTickets":    "Ticket raffle about (product) is running! Join with !(keyword) <(min)-(max)>",

	"raffle.minWatchedTime": "You need to watch the stream for at least (time) minutes to join",

	"raffle.info.notRunning": "No raffle is currently running",
	"raffle.info.closed":     "Raffle is closed and waiting for a winner pick",

	"raffle.participation.success": "You have successfully joined the raffle",
	"raffle.participation.failed":  "You are not eligible to join this raffle",

	"raffle.pick.noParticipants":        "There are no participants to pick a winner from",
	"raffle.pick.winner.withProduct":    "Winner of (product) is (winner)! Congratulations!",
	"raffle.pick.winner.withoutProduct": "Winner is (winner)! Congratulations!",

	"raffle.close.ok":         "Raffle was closed",
	"raffle.close.notRunning": "No raffle is currently running",
}

// Translate resolves a message key to its template. Unknown keys resolve
// to the key itself so a missing entry shows up in chat instead of
// crashing the handler.
func Translate(key string) string {
	if msg, ok := messages[key]; ok {
		return msg
	}
	return key
}

// Param substitutes the first occurrence of (name) in the template.
// Repeated placeholders are intentionally left alone, matching the
// behaviour announcement templates were written against.
func Param(template, name, value string) string {
	return strings.Replace(template, "("+name+")", value, 1)
}
