package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTryRunSkipsOverlappingTrigger(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	var startedOnce sync.Once
	r := New(time.Hour, func(ctx context.Context) error {
		startedOnce.Do(func() { close(started) })
		<-release
		return nil
	}, discardLogger())

	done := make(chan error, 1)
	go func() { done <- r.TryRun(context.Background()) }()

	<-started

	// second trigger while the first is still running
	err := r.TryRun(context.Background())
	assert.ErrorIs(t, err, ErrRunInFlight)

	close(release)
	require.NoError(t, <-done)

	// the guard is released once the run finishes
	require.NoError(t, r.TryRun(context.Background()))
}

func TestTryRunPropagatesJobError(t *testing.T) {
	boom := errors.New("boom")
	r := New(time.Hour, func(ctx context.Context) error { return boom }, discardLogger())

	assert.ErrorIs(t, r.TryRun(context.Background()), boom)
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	var runs atomic.Int32
	r := New(10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Loop(ctx)
		close(done)
	}()

	// the loop fires once immediately, then keeps ticking
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancel")
	}
}
