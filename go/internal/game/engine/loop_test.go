package engine

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/engagements/go/clients/gamestore"
	"github.com/mcdev12/engagements/go/clients/gamestore/gamestoretest"
	"github.com/mcdev12/engagements/go/clients/questionbank"
	"github.com/mcdev12/engagements/go/internal/models"
)

func runLoop(t *testing.T) (*Engine, context.CancelFunc, <-chan error) {
	t.Helper()
	store := gamestoretest.New(t)
	store.Seed(models.Snapshot{SessionID: "ROOM", Phase: models.PhaseWaiting}, "p1")

	cfg := DefaultConfig()
	cfg.SessionID = "ROOM"
	cfg.Role = RoleObserver
	cfg.Transport = TransportPoll
	e := New(cfg, gamestore.NewClient(store.URL()), questionbank.NewClient(store.URL()), nil, clockwork.NewFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		done <- e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-finished
	})
	require.NoError(t, e.WaitStarted(ctx))
	return e, cancel, done
}

func TestViewOutlivesCallerDeadlineOnceQueued(t *testing.T) {
	e, _, _ := runLoop(t)

	release := make(chan struct{})
	e.post(func() { <-release })
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	v, err := e.View(ctx)
	require.NoError(t, err, "a queued read completes even after the caller's deadline")
	assert.Equal(t, "ROOM", v.Snapshot.SessionID)
}

func TestDoAfterStopReturnsErrStopped(t *testing.T) {
	e, cancel, done := runLoop(t)
	cancel()
	require.NoError(t, <-done)

	ran := false
	err := e.do(context.Background(), func() { ran = true })
	assert.ErrorIs(t, err, ErrStopped)
	assert.False(t, ran)
}
