package results

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/blockduel-backend/internal/match"
)

func result(code string, round int) match.Result {
	return match.Result{
		Code:   code,
		Round:  round,
		Winner: 0,
		Scores: []match.ScoreLine{{Name: "ada", Score: 500}, {Name: "bob", Score: 300}},
	}
}

func TestMemoryStore_RecentNewestFirstAndCapped(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Save(ctx, result("ABC234", i)))
	}

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{5, 4, 3}, []int{got[0].Round, got[1].Round, got[2].Round})

	got, err = s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].Round)
}

type flakyStore struct {
	mu    sync.Mutex
	saved []match.Result
	fail  bool
}

func (f *flakyStore) Save(_ context.Context, res match.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("db down")
	}
	f.saved = append(f.saved, res)
	return nil
}

func (f *flakyStore) Recent(context.Context, int) ([]match.Result, error) { return nil, nil }

func (f *flakyStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func TestRecorder_SavesQueuedResults(t *testing.T) {
	store := &flakyStore{}
	rec := NewRecorder(store, zap.NewNop(), 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	rec.Record(result("ABC234", 1))
	rec.Record(result("ABC234", 2))

	require.Eventually(t, func() bool { return store.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("recorder did not stop")
	}
}

func TestRecorder_DropsWhenFullAndFlushesOnStop(t *testing.T) {
	store := &flakyStore{}
	rec := NewRecorder(store, zap.NewNop(), 1)

	rec.Record(result("ABC234", 1))
	rec.Record(result("ABC234", 2)) // dropped, queue holds one

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, rec.Run(ctx))

	assert.Equal(t, 1, store.count())
}

func TestRecorder_StoreErrorIsLoggedNotFatal(t *testing.T) {
	store := &flakyStore{fail: true}
	rec := NewRecorder(store, zap.NewNop(), 1)
	rec.Record(result("ABC234", 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, rec.Run(ctx))
	assert.Zero(t, store.count())
}

func TestRecordRoundTrip(t *testing.T) {
	in := result("XYZ789", 3)
	in.Winner = match.NoWinner

	out := fromRecord(toRecord(in))
	assert.Equal(t, in.Code, out.Code)
	assert.Equal(t, in.Round, out.Round)
	assert.Equal(t, match.NoWinner, out.Winner)
	assert.Equal(t, in.Scores, out.Scores)
}
