package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/DoyleJ11/blockduel-backend/internal/hub"
	"github.com/DoyleJ11/blockduel-backend/internal/results"
	wire "github.com/DoyleJ11/blockduel-backend/pkg/types"
)

const wait = 2 * time.Second

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type server struct {
	*httptest.Server
}

func newServer(t *testing.T, withResults bool, static string) *server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	deps := Deps{StaticDir: static}
	if withResults {
		deps.Results = results.NewRecorder(results.NewMemoryStore(10), zap.NewNop(), 16)
		go func() { _ = deps.Results.Run(ctx) }()
		deps.Hub = hub.NewHub(ctx, hub.WithResults(deps.Results))
	} else {
		deps.Hub = hub.NewHub(ctx)
	}

	srv := httptest.NewServer(SetupRoutes(deps))
	t.Cleanup(srv.Close)
	return &server{Server: srv}
}

func (s *server) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(s.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func (s *server) getJSON(t *testing.T, path string, v any) int {
	t.Helper()
	resp, err := http.Get(s.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func send(t *testing.T, c *websocket.Conn, typ string, data any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	msg := map[string]any{"type": typ}
	if data != nil {
		msg["data"] = data
	}
	require.NoError(t, wsjson.Write(ctx, c, msg))
}

func recv(t *testing.T, c *websocket.Conn) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

// recvType skips frames until one of the wanted type arrives.
func recvType(t *testing.T, c *websocket.Conn, typ string) frame {
	t.Helper()
	for {
		f := recv(t, c)
		if f.Type == typ {
			return f
		}
	}
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// seat creates a room on a and joins b into it.
func seat(t *testing.T, a, b *websocket.Conn) string {
	t.Helper()
	send(t, a, wire.CreateRoom, "Ada")
	created := recv(t, a)
	require.Equal(t, wire.RoomCreated, created.Type)
	assigned := decode[wire.RoomAssigned](t, created.Data)
	require.Equal(t, 0, assigned.PlayerIndex)
	require.Len(t, assigned.RoomCode, 6)

	send(t, b, wire.JoinRoom, map[string]string{"roomCode": strings.ToLower(assigned.RoomCode), "name": "Bob"})
	joined := recv(t, b)
	require.Equal(t, wire.RoomJoined, joined.Type)
	assert.Equal(t, wire.RoomAssigned{RoomCode: assigned.RoomCode, PlayerIndex: 1}, decode[wire.RoomAssigned](t, joined.Data))

	update := recvType(t, a, wire.PlayerUpdate)
	assert.Equal(t, []wire.PlayerStatus{{Name: "Ada"}, {Name: "Bob"}}, decode[wire.PlayersPayload](t, update.Data).Players)
	recvType(t, b, wire.PlayerUpdate)
	return assigned.RoomCode
}

func TestFullMatch(t *testing.T) {
	s := newServer(t, true, "")
	a, b := s.dial(t), s.dial(t)
	code := seat(t, a, b)

	var status wire.RoomStatus
	require.Equal(t, http.StatusOK, s.getJSON(t, "/rooms/"+code, &status))
	assert.Equal(t, "lobby", status.Phase)
	assert.False(t, status.Joinable)

	send(t, a, wire.Ready, nil)
	send(t, b, wire.Ready, nil)
	startA := decode[wire.SeedPayload](t, recvType(t, a, wire.GameStart).Data)
	startB := decode[wire.SeedPayload](t, recvType(t, b, wire.GameStart).Data)
	assert.Equal(t, startA.Seed, startB.Seed)

	// The relayed update is byte-identical to what the sender wrote.
	update := `{"board": [[0, 1], [1, 0]],  "score": 40, "currentPiece": {"type":"T"}, "currentPos": {"x":4,"y":0}}`
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	require.NoError(t, a.Write(ctx, websocket.MessageText, []byte(`{"type":"gameUpdate","data":`+update+`}`)))
	cancel()
	relayed := recv(t, b)
	assert.Equal(t, wire.OpponentUpdate, relayed.Type)
	assert.Equal(t, update, string(relayed.Data))

	send(t, a, wire.GameOver, map[string]int{"score": 500})
	over := recv(t, b)
	assert.Equal(t, wire.OpponentGameOver, over.Type)
	assert.Equal(t, int64(500), decode[wire.ScorePayload](t, over.Data).Score)

	send(t, b, wire.GameOver, map[string]int{"score": 300})
	assert.Equal(t, wire.OpponentGameOver, recv(t, a).Type)
	for _, c := range []*websocket.Conn{a, b} {
		end := decode[wire.GameEndPayload](t, recvType(t, c, wire.GameEnd).Data)
		assert.Equal(t, 0, end.Winner)
		assert.Equal(t, []wire.ScoreLine{{Name: "Ada", Score: 500}, {Name: "Bob", Score: 300}}, end.Scores)
	}

	require.Eventually(t, func() bool {
		var list []wire.MatchResult
		return s.getJSON(t, "/matches?limit=5", &list) == http.StatusOK && len(list) == 1 && list[0].Winner == 0
	}, wait, 20*time.Millisecond)

	send(t, a, wire.PlayAgain, nil)
	assert.Equal(t, wire.WaitingForRematch, recv(t, a).Type)
	assert.Equal(t, wire.OpponentWantsRematch, recv(t, b).Type)

	send(t, b, wire.PlayAgain, nil)
	restartA := decode[wire.SeedPayload](t, recvType(t, a, wire.GameRestart).Data)
	restartB := decode[wire.SeedPayload](t, recvType(t, b, wire.GameRestart).Data)
	assert.Equal(t, restartA.Seed, restartB.Seed)

	send(t, b, wire.ExitGame, nil)
	assert.Equal(t, wire.ExitToMenu, recv(t, a).Type)
	assert.Equal(t, wire.ExitToMenu, recv(t, b).Type)

	assert.Equal(t, http.StatusNotFound, s.getJSON(t, "/rooms/"+code, nil))

	send(t, a, wire.JoinRoom, map[string]string{"roomCode": code, "name": "Ada"})
	errFrame := recv(t, a)
	assert.Equal(t, wire.Error, errFrame.Type)
	assert.Equal(t, "Room not found!", decode[string](t, errFrame.Data))
}

func TestDisconnect_EvictsPeer(t *testing.T) {
	s := newServer(t, false, "")
	a, b := s.dial(t), s.dial(t)
	code := seat(t, a, b)

	require.NoError(t, a.Close(websocket.StatusNormalClosure, "leaving"))
	assert.Equal(t, wire.OpponentLeft, recv(t, b).Type)

	require.Eventually(t, func() bool {
		return s.getJSON(t, "/rooms/"+code, nil) == http.StatusNotFound
	}, wait, 20*time.Millisecond)

	c := s.dial(t)
	send(t, c, wire.JoinRoom, map[string]string{"roomCode": code, "name": "Cy"})
	assert.Equal(t, "Room not found!", decode[string](t, recvType(t, c, wire.Error).Data))
}

func TestJoin_FullRoom(t *testing.T) {
	s := newServer(t, false, "")
	a, b := s.dial(t), s.dial(t)
	code := seat(t, a, b)

	c := s.dial(t)
	send(t, c, wire.JoinRoom, map[string]string{"roomCode": code, "playerName": "Cy"})
	f := recv(t, c)
	assert.Equal(t, wire.Error, f.Type)
	assert.Equal(t, "Room is full!", decode[string](t, f.Data))
}

func TestBadFrames_KeepConnection(t *testing.T) {
	s := newServer(t, false, "")
	c := s.dial(t)

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(`{not json`)))
	assert.Equal(t, "Invalid message.", decode[string](t, recv(t, c).Data))

	send(t, c, "teleport", nil)
	assert.Equal(t, "Unknown message type.", decode[string](t, recv(t, c).Data))

	send(t, c, wire.JoinRoom, "ABCDEF")
	assert.Equal(t, "Invalid join request.", decode[string](t, recv(t, c).Data))

	// Unseated commands are dropped silently; the connection still works.
	send(t, c, wire.Ready, nil)
	send(t, c, wire.CreateRoom, "Solo")
	assert.Equal(t, wire.RoomCreated, recv(t, c).Type)
}

func TestHealthz(t *testing.T) {
	s := newServer(t, false, "")
	a, b := s.dial(t), s.dial(t)
	seat(t, a, b)

	var h wire.Health
	require.Equal(t, http.StatusOK, s.getJSON(t, "/healthz", &h))
	assert.Equal(t, wire.Health{Status: "ok", Rooms: 1, Seats: 2}, h)
}

func TestRoomStatus_Waiting(t *testing.T) {
	s := newServer(t, false, "")
	a := s.dial(t)
	send(t, a, wire.CreateRoom, "Ada")
	code := decode[wire.RoomAssigned](t, recv(t, a).Data).RoomCode

	var status wire.RoomStatus
	require.Equal(t, http.StatusOK, s.getJSON(t, "/rooms/"+strings.ToLower(code), &status))
	assert.Equal(t, code, status.RoomCode)
	assert.Equal(t, "waiting", status.Phase)
	assert.True(t, status.Joinable)
	assert.Nil(t, status.StartedAt)
	assert.Equal(t, []wire.PlayerStatus{{Name: "Ada"}}, status.Players)

	assert.Equal(t, http.StatusNotFound, s.getJSON(t, "/rooms/ZZZZZZ", nil))
}

func TestMatches(t *testing.T) {
	s := newServer(t, false, "")
	assert.Equal(t, http.StatusServiceUnavailable, s.getJSON(t, "/matches", nil))

	s = newServer(t, true, "")
	var list []wire.MatchResult
	assert.Equal(t, http.StatusOK, s.getJSON(t, "/matches", &list))
	assert.Empty(t, list)
	assert.Equal(t, http.StatusBadRequest, s.getJSON(t, "/matches?limit=-3", nil))
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>blockduel</h1>"), 0o600))
	s := newServer(t, false, dir)

	resp, err := http.Get(s.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var h wire.Health
	assert.Equal(t, http.StatusOK, s.getJSON(t, "/healthz", &h))
}
