package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/DoyleJ11/blockduel-backend/internal/lobby"
	"github.com/DoyleJ11/blockduel-backend/internal/match"
)

var ErrHubStopped = errors.New("hub stopped")

// maxCodeAttempts bounds the collision retry loop when allocating room codes.
const maxCodeAttempts = 32

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	ConnID string
	Name   string
	Outbox chan<- match.Event
	Reply  chan Assigned
}

type JoinRoom struct {
	ConnID string
	Code   string
	Name   string
	Outbox chan<- match.Event
	Reply  chan Assigned
}

// Assigned is the reply to CreateRoom and JoinRoom.
type Assigned struct {
	Code string
	Slot int
	Err  error
}

// Dispatch forwards a room command from ConnID; the slot is filled in from
// the seat table.
type Dispatch struct {
	ConnID string
	Cmd    match.Command
}

type ExitRoom struct{ ConnID string }

type Disconnect struct{ ConnID string }

type GetRoom struct {
	Code  string
	Reply chan *lobby.Lobby
}

type RoomStatus struct {
	Code  string
	Reply chan StatusReply
}

type StatusReply struct {
	View  lobby.View
	Found bool
}

type Stats struct {
	Reply chan Counts
}

type Counts struct {
	Rooms int
	Seats int
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (JoinRoom) isHubMsg()    {}
func (Dispatch) isHubMsg()    {}
func (ExitRoom) isHubMsg()    {}
func (Disconnect) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RoomStatus) isHubMsg()  {}
func (Stats) isHubMsg()       {}
func (ShutdownHub) isHubMsg() {}

// Seat is the (room, slot) pair a connection currently owns.
type Seat struct {
	Code string
	Slot int
}

type entry struct {
	lobby *lobby.Lobby
	conns []string
}

type Hub struct {
	inbox    chan HubMsg
	rooms    map[string]*entry
	seats    map[string]Seat // connID -> seat
	results  lobby.ResultSink
	newCode  func() (string, error)
	roomOpts []match.Option
	log      *zap.Logger
	lobbyLog *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

type Option func(*Hub)

func WithLogger(log *zap.Logger) Option {
	return func(h *Hub) { h.log = log }
}

func WithResults(sink lobby.ResultSink) Option {
	return func(h *Hub) { h.results = sink }
}

func WithCodeGenerator(gen func() (string, error)) Option {
	return func(h *Hub) { h.newCode = gen }
}

func WithRoomOptions(opts ...match.Option) Option {
	return func(h *Hub) { h.roomOpts = append(h.roomOpts, opts...) }
}

func NewHub(parent context.Context, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		rooms:   make(map[string]*entry),
		seats:   make(map[string]Seat),
		newCode: match.GenerateCode,
		log:     zap.NewNop(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.lobbyLog = h.log.Named("lobby")
	h.log = h.log.Named("hub")
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- h.create(msg)

			case JoinRoom:
				msg.Reply <- h.join(msg)

			case Dispatch:
				seat, ok := h.seats[msg.ConnID]
				if !ok {
					h.log.Debug("dropping command from unseated connection",
						zap.String("conn", msg.ConnID), zap.String("cmd", string(msg.Cmd.Type)))
					break
				}
				msg.Cmd.Slot = seat.Slot
				msg.Cmd.ConnID = msg.ConnID
				h.rooms[seat.Code].lobby.Send(lobby.FromClient{Cmd: msg.Cmd})

			case ExitRoom:
				seat, e, ok := h.release(msg.ConnID)
				if !ok {
					break
				}
				h.log.Info("room exited", zap.String("room", seat.Code), zap.String("conn", msg.ConnID))
				e.lobby.Send(lobby.Exit{Slot: seat.Slot})

			case Disconnect:
				h.leave(msg.ConnID)

			case GetRoom:
				if e := h.rooms[normalizeCode(msg.Code)]; e != nil {
					msg.Reply <- e.lobby
					break
				}
				msg.Reply <- nil

			case RoomStatus:
				msg.Reply <- h.status(normalizeCode(msg.Code))

			case Stats:
				msg.Reply <- Counts{Rooms: len(h.rooms), Seats: len(h.seats)}

			case ShutdownHub:
				h.shutdown()
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) create(msg CreateRoom) Assigned {
	h.leave(msg.ConnID)

	code, err := h.allocateCode()
	if err != nil {
		h.log.Error("allocate room code", zap.Error(err))
		return Assigned{Slot: -1, Err: err}
	}

	lb := lobby.NewLobby(h.ctx, match.NewRoom(code, h.roomOpts...), h.lobbyLog, h.results)
	reply, err := h.seat(lb, msg.ConnID, msg.Name, msg.Outbox)
	if err != nil {
		lb.Send(lobby.Shutdown{})
		return Assigned{Slot: -1, Err: err}
	}

	h.rooms[code] = &entry{lobby: lb, conns: []string{msg.ConnID}}
	h.seats[msg.ConnID] = Seat{Code: code, Slot: reply.Slot}
	h.log.Info("room created", zap.String("room", code), zap.String("conn", msg.ConnID))
	return Assigned{Code: code, Slot: reply.Slot}
}

func (h *Hub) join(msg JoinRoom) Assigned {
	code := normalizeCode(msg.Code)
	e := h.rooms[code]
	if e == nil {
		return Assigned{Slot: -1, Err: fmt.Errorf("join %q: %w", code, match.ErrRoomNotFound)}
	}
	if seat, ok := h.seats[msg.ConnID]; ok && seat.Code == code {
		return Assigned{Slot: -1, Err: fmt.Errorf("join %q: %w", code, match.ErrAlreadySeated)}
	}

	reply, err := h.seat(e.lobby, msg.ConnID, msg.Name, msg.Outbox)
	if err != nil {
		return Assigned{Slot: -1, Err: fmt.Errorf("join %q: %w", code, err)}
	}

	// Seated in the new room; a previous room of this connection is torn down.
	h.leave(msg.ConnID)

	e.conns = append(e.conns, msg.ConnID)
	h.seats[msg.ConnID] = Seat{Code: code, Slot: reply.Slot}
	h.log.Info("room joined", zap.String("room", code), zap.String("conn", msg.ConnID), zap.Int("slot", reply.Slot))
	return Assigned{Code: code, Slot: reply.Slot}
}

// seat asks the lobby to seat a player and waits for its answer. Lobbies
// never send to the hub, so waiting here cannot deadlock.
func (h *Hub) seat(lb *lobby.Lobby, connID, name string, outbox chan<- match.Event) (lobby.JoinReply, error) {
	reply := make(chan lobby.JoinReply, 1)
	if !lb.Send(lobby.Join{ConnID: connID, Name: name, Outbox: outbox, Reply: reply}) {
		return lobby.JoinReply{}, match.ErrRoomNotFound
	}
	select {
	case r := <-reply:
		return r, r.Err
	case <-lb.Done():
		return lobby.JoinReply{}, match.ErrRoomNotFound
	}
}

// leave tears down the connection's room, if any, telling the peer.
func (h *Hub) leave(connID string) {
	seat, e, ok := h.release(connID)
	if !ok {
		return
	}
	h.log.Info("player left, closing room", zap.String("room", seat.Code), zap.String("conn", connID))
	e.lobby.Send(lobby.Leave{Slot: seat.Slot})
}

// release removes the connection's room and every seat in it from the
// registry, so later lookups of that code fail immediately.
func (h *Hub) release(connID string) (Seat, *entry, bool) {
	seat, ok := h.seats[connID]
	if !ok {
		return Seat{}, nil, false
	}
	e := h.rooms[seat.Code]
	delete(h.rooms, seat.Code)
	if e == nil {
		delete(h.seats, connID)
		return Seat{}, nil, false
	}
	for _, c := range e.conns {
		delete(h.seats, c)
	}
	return seat, e, true
}

func (h *Hub) status(code string) StatusReply {
	e := h.rooms[code]
	if e == nil {
		return StatusReply{}
	}
	views := make(chan lobby.View, 1)
	if !e.lobby.Send(lobby.GetState{Reply: views}) {
		return StatusReply{}
	}
	select {
	case v := <-views:
		return StatusReply{View: v, Found: true}
	case <-e.lobby.Done():
		return StatusReply{}
	}
}

func (h *Hub) allocateCode() (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := h.newCode()
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		if _, taken := h.rooms[code]; !taken {
			return code, nil
		}
		h.log.Warn("collision on code, regenerating", zap.String("room", code))
	}
	return "", fmt.Errorf("no free room code after %d attempts", maxCodeAttempts)
}

func (h *Hub) shutdown() {
	for _, e := range h.rooms {
		e.lobby.Send(lobby.Shutdown{})
	}
	clear(h.rooms)
	clear(h.seats)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
