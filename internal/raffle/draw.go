package raffle

import (
	crand "crypto/rand"
	"errors"
	"math/big"

	"github.com/nantokaworks/twitch-raffle-bot/internal/types"
)

var (
	ErrNoParticipants = errors.New("no eligible participants")
	errInvalidRange   = errors.New("invalid random range")
)

var drawRandomInt = secureRandomInt

// drawWinner selects uniformly at random among the given participants.
// Callers exclude the returned winner from further draws by flipping its
// eligible flag, so repeated picks never return the same entrant twice.
func drawWinner(participants []types.RaffleParticipant) (types.RaffleParticipant, error) {
	if len(participants) == 0 {
		return types.RaffleParticipant{}, ErrNoParticipants
	}

	idx, err := drawRandomInt(len(participants))
	if err != nil {
		return types.RaffleParticipant{}, err
	}
	return participants[idx], nil
}

func secureRandomInt(max int) (int, error) {
	if max <= 0 {
		return 0, errInvalidRange
	}

	n, err := crand.Int(crand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
