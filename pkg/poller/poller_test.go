package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modoterra/svconsole/pkg/console"
	"github.com/modoterra/svconsole/pkg/core"
	"github.com/modoterra/svconsole/pkg/transport/httpapi"
	"github.com/modoterra/svconsole/pkg/transport/httpapi/apitest"
)

type scriptedSource struct {
	mu      sync.Mutex
	seq     uint64
	failing bool
}

func (s *scriptedSource) Status(context.Context) (core.StatusReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if s.failing {
		return core.StatusReport{Seq: s.seq}, errors.New("connection refused")
	}
	return core.StatusReport{Seq: s.seq, OK: true, Username: "admin", Port: "5050"}, nil
}

func (s *scriptedSource) setFailing(v bool) {
	s.mu.Lock()
	s.failing = v
	s.mu.Unlock()
}

func TestNewPollLoopDefaults(t *testing.T) {
	pl := NewPollLoop(&scriptedSource{}, 0, nil, nil)
	assert.Equal(t, DefaultInterval, pl.Interval())
}

func TestTickDeliversOutcome(t *testing.T) {
	src := &scriptedSource{}
	var got []core.StatusReport
	var errs []error
	pl := NewPollLoop(src, time.Second, nil, func(rep core.StatusReport, err error) {
		got = append(got, rep)
		errs = append(errs, err)
	})

	pl.Tick(context.Background())
	src.setFailing(true)
	pl.Tick(context.Background())

	require.Len(t, got, 2)
	assert.NoError(t, errs[0])
	assert.True(t, got[0].OK)
	assert.Error(t, errs[1])
	assert.Less(t, got[0].Seq, got[1].Seq)
}

func TestTickAfterCancelIsDropped(t *testing.T) {
	called := false
	pl := NewPollLoop(&scriptedSource{}, time.Second, nil, func(core.StatusReport, error) { called = true })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pl.Tick(ctx)
	assert.False(t, called)
}

func TestRunPollsImmediatelyAndStops(t *testing.T) {
	src := &scriptedSource{}
	results := make(chan core.StatusReport, 16)
	pl := NewPollLoop(src, 10*time.Millisecond, nil, func(rep core.StatusReport, _ error) {
		select {
		case results <- rep:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pl.Run(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-results:
		case <-time.After(2 * time.Second):
			t.Fatalf("poll %d never arrived", i)
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestFailureDemotesThenRecovers(t *testing.T) {
	src := &scriptedSource{}
	state := console.NewState(nil)
	pl := NewPollLoop(src, time.Second, nil, func(rep core.StatusReport, err error) {
		state.StatusDone(rep, err)
	})
	ctx := context.Background()

	pl.Tick(ctx)
	require.True(t, state.Auth.Authenticated)

	src.setFailing(true)
	pl.Tick(ctx)
	assert.False(t, state.Auth.Authenticated)
	assert.False(t, state.Server.Online)

	src.setFailing(false)
	pl.Tick(ctx)
	assert.True(t, state.Auth.Authenticated)
	assert.True(t, state.Server.Online)
}

func TestPollAgainstServer(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	client, err := httpapi.New(srv.URL)
	require.NoError(t, err)

	state := console.NewState(nil)
	pl := NewPollLoop(client, time.Second, nil, func(rep core.StatusReport, err error) {
		state.StatusDone(rep, err)
	})
	ctx := context.Background()

	pl.Tick(ctx)
	assert.True(t, state.Server.Online)
	assert.False(t, state.Auth.Authenticated, "no session yet")

	_, err = client.Execute(ctx, console.CmdLogin, []string{"admin", "secret"})
	require.NoError(t, err)

	pl.Tick(ctx)
	assert.Equal(t, core.SignedIn("admin"), state.Auth)
	assert.Equal(t, "5050", state.ServerView().Port)
	assert.Equal(t, 2, srv.StatusHits())
}
