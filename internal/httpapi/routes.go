package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/blockduel-backend/internal/hub"
	"github.com/DoyleJ11/blockduel-backend/internal/results"
	"github.com/DoyleJ11/blockduel-backend/internal/ws"
)

type Deps struct {
	Hub     *hub.Hub
	Results *results.Recorder // may be nil
	WS      ws.Options

	// StaticDir, when set, is served at / for the web client.
	StaticDir string
	Logger    *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if d.WS.Logger == nil {
		d.WS.Logger = log
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log.Named("http")))
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz(d.Hub))
	r.Get("/rooms/{code}", RoomStatus(d.Hub))
	r.Get("/matches", RecentMatches(d.Results, log))
	r.Get("/ws", ws.Handler(d.Hub, d.WS))

	if d.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(d.StaticDir)))
	}
	return r
}
