package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/blockduel-backend/internal/config"
	"github.com/DoyleJ11/blockduel-backend/internal/httpapi"
	"github.com/DoyleJ11/blockduel-backend/internal/hub"
	"github.com/DoyleJ11/blockduel-backend/internal/logging"
	"github.com/DoyleJ11/blockduel-backend/internal/results"
	"github.com/DoyleJ11/blockduel-backend/internal/ws"
)

const (
	resultsQueueSize  = 256
	memoryResultsKept = 500
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store results.Store = results.NewMemoryStore(memoryResultsKept)
	if cfg.DatabaseURL != "" {
		gs, oerr := results.OpenGormStore(cfg.DatabaseURL, log)
		if oerr != nil {
			return fmt.Errorf("results store: %w", oerr)
		}
		defer func() { err = multierr.Append(err, gs.Close()) }()
		store = gs
		log.Info("match results stored in postgres")
	} else {
		log.Info("DATABASE_URL not set, keeping match results in memory")
	}
	recorder := results.NewRecorder(store, log, resultsQueueSize)

	// The hub outlives ctx so rooms can be shut down in order below.
	h := hub.NewHub(context.Background(), hub.WithLogger(log), hub.WithResults(recorder))

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:     h,
			Results: recorder,
			WS: ws.Options{
				OriginPatterns: cfg.AllowedOrigins,
				ReadTimeout:    cfg.WSReadTimeout,
				WriteTimeout:   cfg.WSWriteTimeout,
				ReadLimit:      cfg.WSReadLimit,
				OutboxSize:     cfg.OutboxSize,
			},
			StaticDir: cfg.StaticDir,
			Logger:    log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	recCtx, stopRecorder := context.WithCancel(context.Background())
	defer stopRecorder()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return recorder.Run(recCtx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// Websocket connections are hijacked, so Shutdown does not wait for
		// them; stopping the hub tears down every room.
		serr := srv.Shutdown(sctx)
		serr = multierr.Append(serr, h.Shutdown(sctx))
		stopRecorder()
		return serr
	})

	return g.Wait()
}
