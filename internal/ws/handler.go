package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/DoyleJ11/blockduel-backend/internal/hub"
	"github.com/DoyleJ11/blockduel-backend/internal/match"
	"github.com/DoyleJ11/blockduel-backend/internal/types"
	wire "github.com/DoyleJ11/blockduel-backend/pkg/types"
)

type Options struct {
	// OriginPatterns are host patterns accepted in addition to same-origin
	// requests, e.g. "localhost:*".
	OriginPatterns []string

	// ReadTimeout is how long a connection may go without answering a ping.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ReadLimit    int64
	OutboxSize   int
	Logger       *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 32
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	opts = opts.withDefaults()
	log := opts.Logger.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
			return
		}

		id := uuid.NewString()
		c := &client{
			id:   id,
			conn: conn,
			hub:  h,
			out:  make(chan match.Event, opts.OutboxSize),
			opts: opts,
			log:  log.With(zap.String("conn", id)),
		}
		c.serve(r.Context())
	}
}

type client struct {
	id   string
	conn *websocket.Conn
	hub  *hub.Hub
	out  chan match.Event
	opts Options
	log  *zap.Logger
}

func (c *client) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer c.conn.Close(websocket.StatusNormalClosure, "bye")

	c.conn.SetReadLimit(c.opts.ReadLimit)
	c.log.Info("client connected")

	go c.writeLoop(ctx)
	go c.keepAlive(ctx)

	err := c.readLoop(ctx)
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		c.log.Info("client disconnected")
	default:
		c.log.Info("client dropped", zap.Error(err))
	}

	// The request context is usually gone by now.
	dctx, dcancel := context.WithTimeout(context.Background(), c.opts.WriteTimeout)
	defer dcancel()
	if err := c.hub.Disconnect(dctx, c.id); err != nil && !errors.Is(err, hub.ErrHubStopped) {
		c.log.Warn("disconnect not delivered", zap.Error(err))
	}
}

func (c *client) readLoop(ctx context.Context) error {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return err
		}

		var msg types.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.notify("Invalid message.")
			continue
		}
		if err := c.handle(ctx, msg); err != nil {
			return err
		}
	}
}

// handle maps one client frame onto the hub. Only a stopped hub or a
// cancelled context is returned as an error.
func (c *client) handle(ctx context.Context, msg types.ClientMessage) error {
	var err error

	switch msg.Type {
	case wire.CreateRoom:
		var name string
		_ = json.Unmarshal(msg.Data, &name)
		_, err = c.hub.Create(ctx, c.id, name, c.out)
		err = c.reject(err)

	case wire.JoinRoom:
		var req wire.JoinRequest
		if json.Unmarshal(msg.Data, &req) != nil {
			c.notify("Invalid join request.")
			return nil
		}
		_, err = c.hub.Join(ctx, c.id, req.RoomCode, req.DisplayName(), c.out)
		err = c.reject(err)

	case wire.Ready:
		err = c.hub.Dispatch(ctx, c.id, match.Command{Type: match.CmdReady})

	case wire.GameUpdate:
		err = c.hub.Dispatch(ctx, c.id, match.Command{Type: match.CmdUpdate, Update: msg.Data})

	case wire.GameOver:
		var p wire.ScorePayload
		if json.Unmarshal(msg.Data, &p) != nil {
			c.notify("Invalid score.")
			return nil
		}
		err = c.hub.Dispatch(ctx, c.id, match.Command{Type: match.CmdGameOver, Score: p.Score})

	case wire.PlayAgain:
		err = c.hub.Dispatch(ctx, c.id, match.Command{Type: match.CmdPlayAgain})

	case wire.ExitGame:
		err = c.hub.Exit(ctx, c.id)

	default:
		c.notify("Unknown message type.")
	}
	return err
}

// reject reports a create/join failure to this client only. Errors that end
// the connection are passed back.
func (c *client) reject(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, hub.ErrHubStopped), errors.Is(err, context.Canceled):
		return err
	}
	c.log.Debug("request rejected", zap.Error(err))
	c.push(types.ErrorEvent(err))
	return nil
}

func (c *client) notify(text string) {
	c.push(match.Event{Type: match.EvtError, Message: text})
}

func (c *client) push(evt match.Event) {
	select {
	case c.out <- evt:
	default:
		c.log.Warn("outbox full, dropping event", zap.String("event", string(evt.Type)))
	}
}

func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-c.out:
			payload, err := types.FromEvent(evt).Encode()
			if err != nil {
				c.log.Error("encode event", zap.String("event", string(evt.Type)), zap.Error(err))
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
			err = c.conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					c.log.Info("write failed, closing", zap.Error(err))
					c.conn.Close(websocket.StatusInternalError, "write failed")
				}
				return
			}
		}
	}
}

// keepAlive pings the client at half the read timeout; a missed pong closes
// the connection, which ends readLoop.
func (c *client) keepAlive(ctx context.Context) {
	interval := c.opts.ReadTimeout / 2
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, interval)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					c.log.Info("ping failed, closing", zap.Error(err))
					c.conn.Close(websocket.StatusPolicyViolation, "ping timeout")
				}
				return
			}
		}
	}
}
