package hub

import (
	"context"

	"github.com/DoyleJ11/blockduel-backend/internal/lobby"
	"github.com/DoyleJ11/blockduel-backend/internal/match"
)

// send queues msg, giving up when ctx ends or the hub has stopped.
func (h *Hub) send(ctx context.Context, msg HubMsg) error {
	select {
	case h.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubStopped
	}
}

func await[T any](ctx context.Context, h *Hub, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-h.done:
		return zero, ErrHubStopped
	}
}

// Create opens a new room with connID in slot 0.
func (h *Hub) Create(ctx context.Context, connID, name string, outbox chan<- match.Event) (Assigned, error) {
	reply := make(chan Assigned, 1)
	if err := h.send(ctx, CreateRoom{ConnID: connID, Name: name, Outbox: outbox, Reply: reply}); err != nil {
		return Assigned{}, err
	}
	a, err := await(ctx, h, reply)
	if err != nil {
		return Assigned{}, err
	}
	return a, a.Err
}

// Join seats connID in slot 1 of the room with the given code. The code is
// matched case-insensitively.
func (h *Hub) Join(ctx context.Context, connID, code, name string, outbox chan<- match.Event) (Assigned, error) {
	reply := make(chan Assigned, 1)
	if err := h.send(ctx, JoinRoom{ConnID: connID, Code: code, Name: name, Outbox: outbox, Reply: reply}); err != nil {
		return Assigned{}, err
	}
	a, err := await(ctx, h, reply)
	if err != nil {
		return Assigned{}, err
	}
	return a, a.Err
}

func (h *Hub) Dispatch(ctx context.Context, connID string, cmd match.Command) error {
	return h.send(ctx, Dispatch{ConnID: connID, Cmd: cmd})
}

func (h *Hub) Exit(ctx context.Context, connID string) error {
	return h.send(ctx, ExitRoom{ConnID: connID})
}

func (h *Hub) Disconnect(ctx context.Context, connID string) error {
	return h.send(ctx, Disconnect{ConnID: connID})
}

func (h *Hub) Status(ctx context.Context, code string) (lobby.View, bool, error) {
	reply := make(chan StatusReply, 1)
	if err := h.send(ctx, RoomStatus{Code: code, Reply: reply}); err != nil {
		return lobby.View{}, false, err
	}
	r, err := await(ctx, h, reply)
	return r.View, r.Found, err
}

func (h *Hub) Counts(ctx context.Context) (Counts, error) {
	reply := make(chan Counts, 1)
	if err := h.send(ctx, Stats{Reply: reply}); err != nil {
		return Counts{}, err
	}
	return await(ctx, h, reply)
}

// Shutdown stops every lobby and the hub loop, and waits for the loop to exit.
func (h *Hub) Shutdown(ctx context.Context) error {
	if err := h.send(ctx, ShutdownHub{}); err != nil {
		if err == ErrHubStopped {
			return nil
		}
		return err
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
