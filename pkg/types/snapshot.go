package types

import "time"

type JoinRequest struct {
	RoomCode   string `json:"roomCode"`
	Name       string `json:"name,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
}

// DisplayName prefers "name" and falls back to the older "playerName" key.
func (j JoinRequest) DisplayName() string {
	if j.Name != "" {
		return j.Name
	}
	return j.PlayerName
}

type RoomAssigned struct {
	RoomCode    string `json:"roomCode"`
	PlayerIndex int    `json:"playerIndex"`
}

type PlayerStatus struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

type PlayersPayload struct {
	Players []PlayerStatus `json:"players"`
}

type SeedPayload struct {
	Seed int64 `json:"seed"`
}

type ScorePayload struct {
	Score int64 `json:"score"`
}

type ScoreLine struct {
	Name  string `json:"name"`
	Score int64  `json:"score"`
}

type GameEndPayload struct {
	Winner int         `json:"winner"`
	Scores []ScoreLine `json:"scores"`
}

// RoomStatus is served by GET /rooms/{code}.
type RoomStatus struct {
	RoomCode  string         `json:"roomCode"`
	Phase     string         `json:"phase"`
	Joinable  bool           `json:"joinable"`
	Players   []PlayerStatus `json:"players"`
	Round     int            `json:"round"`
	StartedAt *int64         `json:"startedAt,omitempty"` // unix millis
}

// MatchResult is one entry of GET /matches.
type MatchResult struct {
	RoomCode  string      `json:"roomCode"`
	Round     int         `json:"round"`
	Winner    int         `json:"winner"`
	Scores    []ScoreLine `json:"scores"`
	StartedAt time.Time   `json:"startedAt"`
	EndedAt   time.Time   `json:"endedAt"`
}

type Health struct {
	Status string `json:"status"`
	Rooms  int    `json:"rooms"`
	Seats  int    `json:"seats"`
}
