package types

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/DoyleJ11/blockduel-backend/internal/match"
	wire "github.com/DoyleJ11/blockduel-backend/pkg/types"
)

type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Encode writes the envelope by hand so a json.RawMessage payload reaches
// the peer exactly as the sender wrote it; json.Marshal would compact it.
func (m ServerMessage) Encode() ([]byte, error) {
	typ, err := json.Marshal(m.Type)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch d := m.Data.(type) {
	case nil:
	case json.RawMessage:
		data = d
	default:
		if data, err = json.Marshal(d); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.Write(typ)
	if len(data) > 0 {
		buf.WriteString(`,"data":`)
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func FromEvent(evt match.Event) ServerMessage {
	msg := ServerMessage{Type: string(evt.Type)}

	switch evt.Type {
	case match.EvtRoomCreated, match.EvtRoomJoined:
		msg.Data = wire.RoomAssigned{RoomCode: evt.Code, PlayerIndex: evt.Slot}
	case match.EvtPlayerUpdate:
		players := make([]wire.PlayerStatus, 0, len(evt.Players))
		for _, p := range evt.Players {
			players = append(players, wire.PlayerStatus{Name: p.Name, Ready: p.Ready})
		}
		msg.Data = wire.PlayersPayload{Players: players}
	case match.EvtGameStart, match.EvtGameRestart:
		msg.Data = wire.SeedPayload{Seed: evt.Seed}
	case match.EvtOpponentUpdate:
		if len(evt.Update) > 0 {
			msg.Data = evt.Update
		}
	case match.EvtOpponentGameOver:
		msg.Data = wire.ScorePayload{Score: evt.Score}
	case match.EvtGameEnd:
		msg.Data = wire.GameEndPayload{Winner: evt.Winner, Scores: ScoreLines(evt.Scores)}
	case match.EvtError:
		msg.Data = evt.Message
	}
	return msg
}

func ScoreLines(scores []match.ScoreLine) []wire.ScoreLine {
	out := make([]wire.ScoreLine, 0, len(scores))
	for _, s := range scores {
		out = append(out, wire.ScoreLine{Name: s.Name, Score: s.Score})
	}
	return out
}

// ErrorEvent turns a join/create failure into the message shown to the player.
func ErrorEvent(err error) match.Event {
	return match.Event{Type: match.EvtError, Message: ErrorText(err)}
}

func ErrorText(err error) string {
	switch {
	case errors.Is(err, match.ErrRoomNotFound):
		return "Room not found!"
	case errors.Is(err, match.ErrRoomFull):
		return "Room is full!"
	case errors.Is(err, match.ErrAlreadyStarted):
		return "Game already started!"
	case errors.Is(err, match.ErrAlreadySeated):
		return "You are already in this room!"
	default:
		return "Something went wrong, please try again."
	}
}
