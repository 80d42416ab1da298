package lobby

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/blockduel-backend/internal/match"
)

type Msg interface{ isLobbyMsg() }

type Join struct {
	ConnID string
	Name   string
	Outbox chan<- match.Event // where this client wants to receive events
	Reply  chan JoinReply
}

func (Join) isLobbyMsg() {}

type JoinReply struct {
	Slot int
	Err  error
}

type FromClient struct {
	Cmd match.Command
}

func (FromClient) isLobbyMsg() {}

// Exit tells both players to go back to the menu and stops the lobby.
type Exit struct{ Slot int }

func (Exit) isLobbyMsg() {}

// Leave tells the other player that Slot disconnected and stops the lobby.
type Leave struct{ Slot int }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type View struct {
	Status     match.Status
	NumClients int
}

// ResultSink receives finished matches. Record must not block.
type ResultSink interface {
	Record(res match.Result)
}

type Lobby struct {
	inbox    chan Msg
	room     *match.Room
	outboxes [match.MaxPlayers]chan<- match.Event
	results  ResultSink
	recorded int // last round handed to results
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewLobby(parent context.Context, room *match.Room, log *zap.Logger, results ResultSink) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		inbox:   make(chan Msg, 64),
		room:    room,
		results: results,
		log:     log.With(zap.String("room", room.Code)),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	defer close(l.done)
	defer l.cancel()

	for {
		select {
		case <-l.ctx.Done():
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				events, err := match.Apply(l.room, match.Command{Type: match.CmdJoin, ConnID: msg.ConnID, Name: msg.Name})
				if err != nil {
					msg.Reply <- JoinReply{Slot: -1, Err: err}
					break
				}
				slot := len(l.room.Players) - 1
				l.outboxes[slot] = msg.Outbox
				l.log.Info("player seated", zap.String("conn", msg.ConnID), zap.Int("slot", slot))
				msg.Reply <- JoinReply{Slot: slot}
				l.deliver(events)

			case FromClient:
				events, err := match.Apply(l.room, msg.Cmd)
				if err != nil {
					l.log.Debug("command rejected",
						zap.String("cmd", string(msg.Cmd.Type)), zap.Int("slot", msg.Cmd.Slot), zap.Error(err))
					break
				}
				l.observe(events)
				l.deliver(events)

			case Exit:
				events, _ := match.Apply(l.room, match.Command{Type: match.CmdExit, Slot: msg.Slot})
				l.deliver(events)
				l.log.Info("room closed", zap.String("reason", "exit"), zap.Int("slot", msg.Slot))
				return

			case Leave:
				events, _ := match.Apply(l.room, match.Command{Type: match.CmdLeave, Slot: msg.Slot})
				l.deliver(events)
				l.log.Info("room closed", zap.String("reason", "disconnect"), zap.Int("slot", msg.Slot))
				return

			case GetState:
				msg.Reply <- View{Status: l.room.Status(), NumClients: l.numClients()}

			case Shutdown:
				return
			}
		}
	}
}

// observe logs phase changes and hands finished rounds to the results sink.
func (l *Lobby) observe(events []match.Event) {
	if evt, ok := match.FindEvent(events, match.EvtGameStart); ok {
		l.log.Info("game started", zap.Int64("seed", evt.Seed), zap.Int("round", l.room.Round))
	}
	if evt, ok := match.FindEvent(events, match.EvtGameRestart); ok {
		l.log.Info("game restarted", zap.Int64("seed", evt.Seed), zap.Int("round", l.room.Round))
	}

	end, ok := match.FindEvent(events, match.EvtGameEnd)
	if !ok || l.recorded == l.room.Round {
		return
	}
	l.recorded = l.room.Round
	l.log.Info("game ended", zap.Int("winner", end.Winner), zap.Int("round", l.room.Round))
	if l.results != nil {
		l.results.Record(l.room.Result(end))
	}
}

func (l *Lobby) deliver(events []match.Event) {
	for _, evt := range events {
		if evt.To == match.Everyone {
			for slot := range l.outboxes {
				l.send(slot, evt)
			}
			continue
		}
		l.send(evt.To, evt)
	}
}

func (l *Lobby) send(slot int, evt match.Event) {
	if slot < 0 || slot >= len(l.outboxes) || l.outboxes[slot] == nil {
		return
	}
	select {
	case l.outboxes[slot] <- evt:
		// ok
	default:
		// Client is slow/full - drop the event, never block the room.
		l.log.Warn("outbox full, dropping event", zap.Int("slot", slot), zap.String("event", string(evt.Type)))
	}
}

func (l *Lobby) numClients() int {
	n := 0
	for _, ch := range l.outboxes {
		if ch != nil {
			n++
		}
	}
	return n
}

// Send queues m unless the lobby has already stopped.
func (l *Lobby) Send(m Msg) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.inbox <- m:
		return true
	case <-l.done:
		return false
	}
}

// Expose the inbox so tests can send messages directly.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) Done() <-chan struct{} { return l.done }

func (l *Lobby) Code() string { return l.room.Code }
