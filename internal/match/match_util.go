package match

import (
	"math/rand/v2"
	"time"
)

// MaxSeed bounds drawn seeds so clients can run their integer generators
// in float64 arithmetic without losing precision.
const MaxSeed = 1 << 31

type SeedFunc func() int64

func RandomSeed() int64 {
	return rand.Int64N(MaxSeed)
}

type Option func(*Room)

func WithSeeds(seeds SeedFunc) Option {
	return func(r *Room) { r.seeds = seeds }
}

func WithClock(now func() time.Time) Option {
	return func(r *Room) { r.now = now }
}

func NewRoom(code string, opts ...Option) *Room {
	r := &Room{
		Code:    code,
		Players: make([]*Player, 0, MaxPlayers),
		seeds:   RandomSeed,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Winner returns the slot with the strictly higher score, or NoWinner on a tie.
func Winner(score0, score1 int64) int {
	switch {
	case score0 > score1:
		return 0
	case score1 > score0:
		return 1
	default:
		return NoWinner
	}
}

func (r *Room) Phase() Phase {
	switch {
	case len(r.Players) == 0:
		return PhaseEmpty
	case len(r.Players) < MaxPlayers:
		return PhaseWaiting
	case !r.Started:
		return PhaseLobby
	case r.all(func(p *Player) bool { return p.GameOver }):
		return PhaseEnded
	default:
		return PhasePlaying
	}
}

type Status struct {
	Code      string
	Phase     Phase
	Players   []PlayerStatus
	StartTime time.Time
	Round     int
}

func (r *Room) Status() Status {
	return Status{
		Code:      r.Code,
		Phase:     r.Phase(),
		Players:   r.playerUpdate().Players,
		StartTime: r.StartTime,
		Round:     r.Round,
	}
}

// Result describes one finished round, taken from a gameEnd event.
type Result struct {
	Code      string
	Round     int
	Winner    int
	Scores    []ScoreLine
	StartedAt time.Time
	EndedAt   time.Time
}

func (r *Room) Result(end Event) Result {
	return Result{
		Code:      r.Code,
		Round:     r.Round,
		Winner:    end.Winner,
		Scores:    end.Scores,
		StartedAt: r.StartTime,
		EndedAt:   r.now(),
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func FindEvent(events []Event, eventType EventType) (Event, bool) {
	for _, event := range events {
		if event.Type == eventType {
			return event, true
		}
	}
	return Event{}, false
}
