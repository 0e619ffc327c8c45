package raffle

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nantokaworks/twitch-raffle-bot/internal/types"
)

var ErrNoKeyword = errors.New("no raffle keyword in arguments")

// keywordPattern extracts the raffle keyword and trailing product text.
// Word characters plus Cyrillic ranges, so non-Latin keywords work.
var keywordPattern = regexp.MustCompile(`^([\x{0500}-\x{052F}\x{0400}-\x{04FF}\w]+) ?(.*)?`)

// ParseOpenArgs turns the free-form arguments of "!raffle open" into a
// raffle config. Grammar: optional "followers"/"subscribers" literal,
// optional time=/type=/min=/max= tokens anywhere, then keyword and
// optional product text.
func ParseOpenArgs(text string) (types.Raffle, error) {
	raffle := types.Raffle{
		Eligibility: types.EligibilityEveryone,
		TicketMode:  types.TicketModeKeyword,
		MinTickets:  0,
		MaxTickets:  1000,
		CreatedAt:   time.Now(),
	}

	if strings.Contains(text, "followers") {
		text = strings.TrimSpace(strings.Replace(text, "followers", "", 1))
		raffle.Eligibility = types.EligibilityFollowers
	}
	if strings.Contains(text, "subscribers") {
		text = strings.TrimSpace(strings.Replace(text, "subscribers", "", 1))
		raffle.Eligibility = types.EligibilitySubscribers
	}

	var err error
	if value, rest, ok := extractToken(text, "time="); ok {
		if raffle.MinWatchedTimeMinutes, err = strconv.Atoi(value); err != nil || raffle.MinWatchedTimeMinutes < 0 {
			return types.Raffle{}, fmt.Errorf("invalid time= value %q", value)
		}
		text = rest
	}
	if value, rest, ok := extractToken(text, "type="); ok {
		if value == "keyword" {
			raffle.TicketMode = types.TicketModeKeyword
		} else {
			raffle.TicketMode = types.TicketModeTickets
		}
		text = rest
	}
	if value, rest, ok := extractToken(text, "min="); ok {
		if raffle.MinTickets, err = strconv.Atoi(value); err != nil {
			return types.Raffle{}, fmt.Errorf("invalid min= value %q", value)
		}
		text = rest
	}
	if value, rest, ok := extractToken(text, "max="); ok {
		if raffle.MaxTickets, err = strconv.Atoi(value); err != nil {
			return types.Raffle{}, fmt.Errorf("invalid max= value %q", value)
		}
		text = rest
	}

	matches := keywordPattern.FindStringSubmatch(strings.TrimSpace(text))
	if matches == nil || matches[1] == "" {
		return types.Raffle{}, ErrNoKeyword
	}
	raffle.Keyword = matches[1]
	raffle.Product = strings.TrimSpace(matches[2])

	return raffle, nil
}

// extractToken finds a prefix=value token anywhere in the text and
// returns the value and the text with the token removed.
func extractToken(text, prefix string) (value, rest string, ok bool) {
	for _, part := range strings.Fields(text) {
		if strings.HasPrefix(part, prefix) {
			value = strings.TrimPrefix(part, prefix)
			rest = strings.TrimSpace(strings.Replace(text, part, "", 1))
			return value, rest, true
		}
	}
	return "", text, false
}
