package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/blockduel-backend/internal/hub"
	"github.com/DoyleJ11/blockduel-backend/internal/match"
	"github.com/DoyleJ11/blockduel-backend/internal/results"
	"github.com/DoyleJ11/blockduel-backend/internal/types"
	wire "github.com/DoyleJ11/blockduel-backend/pkg/types"
)

const (
	defaultMatchLimit = 20
	maxMatchLimit     = 100
)

func Healthz(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := h.Counts(r.Context())
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, wire.Health{Status: "stopping"})
			return
		}
		writeJSON(w, http.StatusOK, wire.Health{Status: "ok", Rooms: counts.Rooms, Seats: counts.Seats})
	}
}

// RoomStatus lets a client check whether a code is joinable before dialing.
func RoomStatus(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, found, err := h.Status(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
			return
		}
		if !found {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, roomStatus(view.Status))
	}
}

func RecentMatches(rec *results.Recorder, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultMatchLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = min(n, maxMatchLimit)
		}

		list, err := rec.Recent(r.Context(), limit)
		if errors.Is(err, results.ErrNoStore) {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		if err != nil {
			log.Error("load recent matches", zap.Error(err))
			http.Error(w, "failed to load matches", http.StatusInternalServerError)
			return
		}

		out := make([]wire.MatchResult, 0, len(list))
		for _, res := range list {
			out = append(out, wire.MatchResult{
				RoomCode:  res.Code,
				Round:     res.Round,
				Winner:    res.Winner,
				Scores:    types.ScoreLines(res.Scores),
				StartedAt: res.StartedAt,
				EndedAt:   res.EndedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func roomStatus(s match.Status) wire.RoomStatus {
	players := make([]wire.PlayerStatus, 0, len(s.Players))
	for _, p := range s.Players {
		players = append(players, wire.PlayerStatus{Name: p.Name, Ready: p.Ready})
	}
	out := wire.RoomStatus{
		RoomCode: s.Code,
		Phase:    string(s.Phase),
		Joinable: s.Phase == match.PhaseWaiting,
		Players:  players,
		Round:    s.Round,
	}
	if !s.StartTime.IsZero() {
		ms := s.StartTime.UnixMilli()
		out.StartedAt = &ms
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
