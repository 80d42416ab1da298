package results

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/blockduel-backend/internal/match"
)

const saveTimeout = 5 * time.Second

// Recorder takes finished matches off the room goroutines and writes them
// to a Store from its own goroutine.
type Recorder struct {
	store Store
	log   *zap.Logger
	queue chan match.Result
}

func NewRecorder(store Store, log *zap.Logger, size int) *Recorder {
	return &Recorder{
		store: store,
		log:   log.Named("results"),
		queue: make(chan match.Result, size),
	}
}

// Record never blocks; when the queue is full the result is dropped.
func (r *Recorder) Record(res match.Result) {
	select {
	case r.queue <- res:
	default:
		r.log.Warn("results queue full, dropping match result",
			zap.String("room", res.Code), zap.Int("round", res.Round))
	}
}

// Run saves queued results until ctx is cancelled, then flushes what is
// left in the queue.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return nil
		case res := <-r.queue:
			r.save(context.Background(), res)
		}
	}
}

func (r *Recorder) flush() {
	for {
		select {
		case res := <-r.queue:
			r.save(context.Background(), res)
		default:
			return
		}
	}
}

func (r *Recorder) save(parent context.Context, res match.Result) {
	ctx, cancel := context.WithTimeout(parent, saveTimeout)
	defer cancel()

	if err := r.store.Save(ctx, res); err != nil {
		r.log.Error("save match result", zap.String("room", res.Code), zap.Error(err))
		return
	}
	r.log.Debug("match result saved",
		zap.String("room", res.Code), zap.Int("round", res.Round), zap.Int("winner", res.Winner))
}

func (r *Recorder) Recent(ctx context.Context, limit int) ([]match.Result, error) {
	if r == nil || r.store == nil {
		return nil, ErrNoStore
	}
	return r.store.Recent(ctx, limit)
}
