package repl

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modoterra/svconsole/pkg/core"
	"github.com/modoterra/svconsole/pkg/transport/httpapi"
	"github.com/modoterra/svconsole/pkg/transport/httpapi/apitest"
)

func newTestSession(t *testing.T, o Options) (*Session, *apitest.Server, *bytes.Buffer) {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	client, err := httpapi.New(srv.URL)
	require.NoError(t, err)

	var out bytes.Buffer
	o.API = client
	o.Out = &out
	o.AutoScroll = true
	return NewSession(o), srv, &out
}

func TestSubmitPrintsEchoAndAnswer(t *testing.T) {
	s, srv, out := newTestSession(t, Options{})
	srv.HandleCommand("ping", func(_ http.ResponseWriter, _ string, _ []string) (int, any) {
		return http.StatusOK, apitest.Result("success", "ok")
	})

	require.NoError(t, s.Submit(context.Background(), "ping"))
	assert.Contains(t, out.String(), "> ping\n")
	assert.Contains(t, out.String(), "> ok\n")
	snap := s.Snapshot()
	assert.Equal(t, 2, snap.Log.Len())
}

func TestMultiLineMessageMarksEveryRow(t *testing.T) {
	s, srv, out := newTestSession(t, Options{})
	srv.HandleCommand("uptime", func(_ http.ResponseWriter, _ string, _ []string) (int, any) {
		return http.StatusOK, apitest.Result("success", "up 3 days\nload 0.10")
	})

	require.NoError(t, s.Submit(context.Background(), "uptime"))
	assert.Contains(t, out.String(), "> up 3 days\n")
	assert.Contains(t, out.String(), "> load 0.10\n")
}

func TestTranscriptMatchesLog(t *testing.T) {
	s, _, out := newTestSession(t, Options{})
	ctx := context.Background()
	for _, line := range []string{"help", "whoami", `bad "quote`, "   "} {
		require.NoError(t, s.Submit(ctx, line))
	}
	snap := s.Snapshot()
	entries := snap.Log.Entries()
	stamps := regexp.MustCompile(`\[\d\d:\d\d:\d\d\]`).FindAllString(out.String(), -1)
	assert.Len(t, stamps, len(entries), "one printed entry per log entry")
}

func TestLoginCommandHidesPassword(t *testing.T) {
	s, _, out := newTestSession(t, Options{})
	require.NoError(t, s.Submit(context.Background(), "login admin secret"))

	assert.NotContains(t, out.String(), "secret")
	assert.True(t, s.Snapshot().Auth.Authenticated, "login refreshes status")
	assert.Equal(t, "admin@svconsole> ", s.Prompt())
}

func TestLocalLogin(t *testing.T) {
	s, _, out := newTestSession(t, Options{
		Credentials: func() (string, string, error) { return "admin", "secret", nil },
	})
	require.NoError(t, s.Submit(context.Background(), "/login"))
	assert.True(t, s.Snapshot().Auth.Authenticated)
	assert.Contains(t, out.String(), "login [arguments hidden]")

	require.NoError(t, s.Submit(context.Background(), "/logout"))
	assert.False(t, s.Snapshot().Auth.Authenticated)
}

func TestLocalLoginCancelled(t *testing.T) {
	s, srv, out := newTestSession(t, Options{
		Credentials: func() (string, string, error) { return "", "", errors.New("interrupted") },
	})
	require.NoError(t, s.Submit(context.Background(), "/login"))
	assert.Empty(t, srv.Commands())
	assert.Contains(t, out.String(), "Login cancelled")
}

func TestActivityRequiresLogin(t *testing.T) {
	s, srv, out := newTestSession(t, Options{})
	ctx := context.Background()

	require.NoError(t, s.Submit(ctx, "/activity start"))
	assert.Empty(t, srv.Activities())
	assert.Contains(t, out.String(), "Please login")

	require.NoError(t, s.Submit(ctx, "login admin secret"))
	require.NoError(t, s.Submit(ctx, "/activity start"))
	assert.Equal(t, []string{"start"}, srv.Activities())
	assert.Contains(t, out.String(), "start accepted")
}

func TestDangerousActivityAsks(t *testing.T) {
	answer := false
	var asked []string
	s, srv, _ := newTestSession(t, Options{
		Confirm: func(q string) bool { asked = append(asked, q); return answer },
	})
	ctx := context.Background()
	require.NoError(t, s.Submit(ctx, "login admin secret"))

	require.NoError(t, s.Submit(ctx, "/activity reboot"))
	assert.Empty(t, srv.Activities())

	answer = true
	require.NoError(t, s.Submit(ctx, "/activity reboot"))
	assert.Equal(t, []string{"reboot"}, srv.Activities())
	assert.Len(t, asked, 2)
}

func TestDangerousActivityDemotedWhileAsking(t *testing.T) {
	var s *Session
	s, srv, out := newTestSession(t, Options{
		Confirm: func(string) bool {
			s.statusDone(core.StatusReport{}, errors.New("connection refused"))
			return true
		},
	})
	ctx := context.Background()
	require.NoError(t, s.Submit(ctx, "login admin secret"))

	require.NoError(t, s.Submit(ctx, "/activity shutdown"))
	assert.Empty(t, srv.Activities())
	assert.Contains(t, out.String(), "Please login to use shutdown")
}

func TestUnknownActivity(t *testing.T) {
	s, srv, out := newTestSession(t, Options{})
	require.NoError(t, s.Submit(context.Background(), "/activity dance"))
	assert.Empty(t, srv.Activities())
	assert.Contains(t, out.String(), "Unknown activity")
}

func TestClearPrintsMarker(t *testing.T) {
	s, _, out := newTestSession(t, Options{})
	ctx := context.Background()
	require.NoError(t, s.Submit(ctx, "help"))
	out.Reset()

	require.NoError(t, s.Submit(ctx, "/clear"))
	snap := s.Snapshot()
	assert.Equal(t, 1, snap.Log.Len())
	assert.Contains(t, out.String(), "> Console cleared")
}

func TestFilterReprints(t *testing.T) {
	s, srv, out := newTestSession(t, Options{})
	srv.HandleCommand("disk", func(_ http.ResponseWriter, _ string, _ []string) (int, any) {
		return http.StatusOK, apitest.Result("success", "Disk almost full")
	})
	ctx := context.Background()
	require.NoError(t, s.Submit(ctx, "disk"))
	require.NoError(t, s.Submit(ctx, "whoami"))
	out.Reset()

	require.NoError(t, s.Submit(ctx, "/filter DISK"))
	assert.Contains(t, out.String(), "Disk almost full")
	assert.NotContains(t, out.String(), "Not logged in")

	out.Reset()
	require.NoError(t, s.Submit(ctx, "whoami"))
	assert.NotContains(t, out.String(), "Not logged in", "new entries are filtered too")

	require.NoError(t, s.Submit(ctx, "/filter"))
	assert.Contains(t, out.String(), "Filter cleared")
	snap := s.Snapshot()
	assert.Empty(t, snap.Log.Filter())
}

func TestQuit(t *testing.T) {
	s, _, _ := newTestSession(t, Options{})
	assert.ErrorIs(t, s.Submit(context.Background(), "/quit"), ErrQuit)
	assert.ErrorIs(t, s.Submit(context.Background(), "/exit"), ErrQuit)
}

func TestStatusCommand(t *testing.T) {
	s, _, out := newTestSession(t, Options{})
	ctx := context.Background()
	require.NoError(t, s.Submit(ctx, "login admin secret"))
	out.Reset()

	require.NoError(t, s.Submit(ctx, "/status"))
	assert.Contains(t, out.String(), "Online")
	assert.Contains(t, out.String(), "5050")
	assert.Contains(t, out.String(), "512 MB")
	assert.Contains(t, out.String(), "Logged in as: admin")
}

func TestAutoScrollOffHoldsBackgroundLines(t *testing.T) {
	s, srv, out := newTestSession(t, Options{})
	ctx := context.Background()
	require.NoError(t, s.Submit(ctx, "login admin secret"))
	require.NoError(t, s.Submit(ctx, "/autoscroll"))
	out.Reset()

	srv.Close()
	s.poll.Tick(ctx)
	assert.NotContains(t, out.String(), "Lost connection")
	assert.Equal(t, "(offline) svconsole> ", s.Prompt())

	s.Flush()
	assert.Contains(t, out.String(), "Lost connection")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStartProbesAndPolls(t *testing.T) {
	s, srv, _ := newTestSession(t, Options{PollInterval: 10 * time.Millisecond})
	out := &syncBuffer{}
	s.SetOutput(out)
	changed := make(chan struct{}, 1)
	s.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("poller never reported")
	}
	assert.Contains(t, out.String(), "Please login to access server features")
	assert.Equal(t, "Home Server Controller", s.Snapshot().Details.Name)
	assert.GreaterOrEqual(t, srv.StatusHits(), 1)
}

func TestUnknownLocalCommand(t *testing.T) {
	s, srv, out := newTestSession(t, Options{})
	require.NoError(t, s.Submit(context.Background(), "/frobnicate"))
	assert.Contains(t, out.String(), "Unknown local command")
	assert.Empty(t, srv.Commands())
}
