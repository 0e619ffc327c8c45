package raffle

import "github.com/nantokaworks/twitch-raffle-bot/internal/types"

// IsEligible decides whether a viewer may enter the given raffle. Pure;
// evaluated once at entry time and never re-checked. An unknown attribute
// (nil field, or nil viewer) counts as ineligible, never as an error.
func IsEligible(r *types.Raffle, viewer *types.Viewer) bool {
	eligible := true

	switch r.Eligibility {
	case types.EligibilityFollowers:
		eligible = viewer != nil && viewer.IsFollower != nil && *viewer.IsFollower
	case types.EligibilitySubscribers:
		eligible = viewer != nil && viewer.IsSubscriber != nil && *viewer.IsSubscriber
	case types.EligibilityEveryone:
		// no audience restriction
	}

	if eligible && r.MinWatchedTimeMinutes > 0 {
		// Known watched time strictly above the threshold; exactly the
		// configured minimum is not enough.
		required := int64(r.MinWatchedTimeMinutes) * 60 * 1000
		eligible = viewer != nil && viewer.WatchedTimeMs != nil && *viewer.WatchedTimeMs > required
	}

	return eligible
}
