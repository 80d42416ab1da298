package match

import (
	"encoding/json"
	"errors"
	"slices"
	"time"
)

var ErrRoomNotFound = errors.New("room not found")
var ErrRoomFull = errors.New("room is full")
var ErrAlreadyStarted = errors.New("game already started")
var ErrNotSeated = errors.New("player not seated")
var ErrAlreadySeated = errors.New("already in this room")
var ErrUnsupportedCommand = errors.New("unsupported command")

const (
	MaxPlayers = 2

	// NoWinner is the winner index reported for a draw.
	NoWinner = -1

	// Everyone addresses an event to every seated slot.
	Everyone = -1
)

type Phase string

const (
	PhaseEmpty   Phase = "empty"
	PhaseWaiting Phase = "waiting" // one player seated
	PhaseLobby   Phase = "lobby"   // two players, not started
	PhasePlaying Phase = "playing"
	PhaseEnded   Phase = "ended"
)

// Snapshot is the last state a client reported. The fields are never
// interpreted, only stored and forwarded.
type Snapshot struct {
	Board        json.RawMessage `json:"board,omitempty"`
	Score        json.RawMessage `json:"score,omitempty"`
	CurrentPiece json.RawMessage `json:"currentPiece,omitempty"`
	CurrentPos   json.RawMessage `json:"currentPos,omitempty"`
}

type Player struct {
	ConnID       string
	Name         string
	Ready        bool
	Snapshot     Snapshot
	Score        int64
	GameOver     bool
	WantsRematch bool
}

type Room struct {
	Code      string
	Players   []*Player
	Started   bool
	StartTime time.Time
	Seed      int64
	Round     int

	seeds SeedFunc
	now   func() time.Time
}

type CommandType string

const (
	CmdJoin      CommandType = "Join"
	CmdReady     CommandType = "Ready"
	CmdUpdate    CommandType = "Update"
	CmdGameOver  CommandType = "GameOver"
	CmdPlayAgain CommandType = "PlayAgain"
	CmdExit      CommandType = "Exit"
	CmdLeave     CommandType = "Leave"
)

/*
	CmdJoin      -> EvtRoomCreated (first seat) | EvtRoomJoined -> EvtPlayerUpdate
	CmdReady     -> EvtPlayerUpdate -> EvtGameStart (both ready)
	CmdUpdate    -> EvtOpponentUpdate
	CmdGameOver  -> EvtOpponentGameOver -> EvtGameEnd (both over)
	CmdPlayAgain -> EvtWaitingForRematch + EvtOpponentWantsRematch | EvtGameRestart
	CmdExit      -> EvtExitToMenu
	CmdLeave     -> EvtOpponentLeft
*/

type Command struct {
	Type   CommandType
	Slot   int
	ConnID string
	Name   string
	Update json.RawMessage
	Score  int64
}

type EventType string

const (
	EvtRoomCreated          EventType = "roomCreated"
	EvtRoomJoined           EventType = "roomJoined"
	EvtPlayerUpdate         EventType = "playerUpdate"
	EvtGameStart            EventType = "gameStart"
	EvtOpponentUpdate       EventType = "opponentUpdate"
	EvtOpponentGameOver     EventType = "opponentGameOver"
	EvtGameEnd              EventType = "gameEnd"
	EvtWaitingForRematch    EventType = "waitingForRematch"
	EvtOpponentWantsRematch EventType = "opponentWantsRematch"
	EvtGameRestart          EventType = "gameRestart"
	EvtExitToMenu           EventType = "exitToMenu"
	EvtOpponentLeft         EventType = "opponentLeft"
	EvtError                EventType = "error"
)

type PlayerStatus struct {
	Name  string
	Ready bool
}

type ScoreLine struct {
	Name  string
	Score int64
}

// Event is an outbound message addressed to one slot or to Everyone.
type Event struct {
	Type    EventType
	To      int
	Code    string
	Slot    int
	Players []PlayerStatus
	Seed    int64
	Update  json.RawMessage
	Score   int64
	Winner  int
	Scores  []ScoreLine
	Message string
}

// Apply runs cmd against r, mutating it in place, and returns the events
// to deliver. A command that fails leaves r untouched.
func Apply(r *Room, cmd Command) ([]Event, error) {
	if cmd.Type == CmdJoin {
		return join(r, cmd)
	}

	p := r.player(cmd.Slot)
	if p == nil {
		return nil, ErrNotSeated
	}
	other := 1 - cmd.Slot

	switch cmd.Type {
	case CmdReady:
		p.Ready = true
		events := []Event{r.playerUpdate()}

		// A started room ignores further ready transitions until a rematch.
		if !r.Started && len(r.Players) == MaxPlayers && r.all(func(p *Player) bool { return p.Ready }) {
			r.start()
			events = append(events, Event{Type: EvtGameStart, To: Everyone, Seed: r.Seed})
		}
		return events, nil

	case CmdUpdate:
		if s, ok := decodeSnapshot(cmd.Update); ok {
			p.Snapshot = s
			var score int64
			if json.Unmarshal(s.Score, &score) == nil {
				p.Score = score
			}
		}
		if r.player(other) == nil {
			return nil, nil
		}
		return []Event{{Type: EvtOpponentUpdate, To: other, Update: cmd.Update}}, nil

	case CmdGameOver:
		p.GameOver = true
		p.Score = cmd.Score

		var events []Event
		if r.player(other) != nil {
			events = append(events, Event{Type: EvtOpponentGameOver, To: other, Score: cmd.Score})
		}

		if len(r.Players) == MaxPlayers && r.all(func(p *Player) bool { return p.GameOver }) {
			events = append(events, Event{
				Type:   EvtGameEnd,
				To:     Everyone,
				Winner: Winner(r.Players[0].Score, r.Players[1].Score),
				Scores: r.scores(),
			})
		}
		return events, nil

	case CmdPlayAgain:
		p.WantsRematch = true

		if len(r.Players) == MaxPlayers && r.all(func(p *Player) bool { return p.WantsRematch }) {
			for _, pl := range r.Players {
				pl.Ready = true
				pl.Snapshot = Snapshot{}
				pl.Score = 0
				pl.GameOver = false
				pl.WantsRematch = false
			}
			r.start()
			return []Event{{Type: EvtGameRestart, To: Everyone, Seed: r.Seed}}, nil
		}

		events := []Event{{Type: EvtWaitingForRematch, To: cmd.Slot}}
		if r.player(other) != nil {
			events = append(events, Event{Type: EvtOpponentWantsRematch, To: other})
		}
		return events, nil

	case CmdExit:
		return []Event{{Type: EvtExitToMenu, To: Everyone}}, nil

	case CmdLeave:
		if r.player(other) == nil {
			return nil, nil
		}
		return []Event{{Type: EvtOpponentLeft, To: other}}, nil

	default:
		return nil, ErrUnsupportedCommand
	}
}

func join(r *Room, cmd Command) ([]Event, error) {
	if len(r.Players) >= MaxPlayers {
		return nil, ErrRoomFull
	}
	if r.Started {
		return nil, ErrAlreadyStarted
	}

	slot := len(r.Players)
	r.Players = append(r.Players, &Player{
		ConnID: cmd.ConnID,
		Name:   NormalizeName(cmd.Name, slot),
	})

	if slot == 0 {
		return []Event{{Type: EvtRoomCreated, To: slot, Code: r.Code, Slot: slot}}, nil
	}
	return []Event{
		{Type: EvtRoomJoined, To: slot, Code: r.Code, Slot: slot},
		r.playerUpdate(),
	}, nil
}

func (r *Room) start() {
	r.Started = true
	r.StartTime = r.now()
	r.Seed = r.seeds()
	r.Round++
}

func (r *Room) player(slot int) *Player {
	if slot < 0 || slot >= len(r.Players) {
		return nil
	}
	return r.Players[slot]
}

func (r *Room) all(pred func(*Player) bool) bool {
	return !slices.ContainsFunc(r.Players, func(p *Player) bool { return !pred(p) })
}

func (r *Room) playerUpdate() Event {
	players := make([]PlayerStatus, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, PlayerStatus{Name: p.Name, Ready: p.Ready})
	}
	return Event{Type: EvtPlayerUpdate, To: Everyone, Players: players}
}

func (r *Room) scores() []ScoreLine {
	scores := make([]ScoreLine, 0, len(r.Players))
	for _, p := range r.Players {
		scores = append(scores, ScoreLine{Name: p.Name, Score: p.Score})
	}
	return scores
}

func decodeSnapshot(raw json.RawMessage) (Snapshot, bool) {
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, false
	}
	return s, true
}
