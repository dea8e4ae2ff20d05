package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	msg  string
	pri  journal.Priority
	vars map[string]string
}

func fakeJournal(t *testing.T, enabled bool) *[]sent {
	t.Helper()
	var got []sent
	origEnabled, origSend := journalEnabled, journalSend
	journalEnabled = func() bool { return enabled }
	journalSend = func(msg string, pri journal.Priority, vars map[string]string) error {
		got = append(got, sent{msg, pri, vars})
		return nil
	}
	t.Cleanup(func() { journalEnabled, journalSend = origEnabled, origSend })
	return &got
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWritesToOutput(t *testing.T) {
	fakeJournal(t, false)
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "warn", Output: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "k=v")
}

func TestNewTUIModeIsSilent(t *testing.T) {
	fakeJournal(t, false)
	var buf bytes.Buffer
	logger, _, err := New(Options{TUI: true, Output: &buf})
	require.NoError(t, err)
	logger.Error("nothing on the terminal")
	assert.Zero(t, buf.Len())
}

func TestNewFile(t *testing.T) {
	fakeJournal(t, false)
	path := filepath.Join(t.TempDir(), "svconsole.log")
	logger, closer, err := New(Options{File: path, TUI: true})
	require.NoError(t, err)
	logger.Info("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestNewBadLevel(t *testing.T) {
	_, _, err := New(Options{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewJournald(t *testing.T) {
	got := fakeJournal(t, true)
	var buf bytes.Buffer
	logger, _, err := New(Options{Output: &buf, Journald: true})
	require.NoError(t, err)

	logger.With("server", "http://x").WithGroup("req").Error("poll failed", "seq", 7)
	require.Len(t, *got, 1)
	e := (*got)[0]
	assert.Equal(t, "poll failed", e.msg)
	assert.Equal(t, journal.PriErr, e.pri)
	assert.Equal(t, "http://x", e.vars["SERVER"])
	assert.Equal(t, "7", e.vars["REQ_SEQ"])
	assert.Equal(t, "svconsole", e.vars["SYSLOG_IDENTIFIER"])
	assert.Contains(t, buf.String(), "poll failed", "text output still written")
}

func TestJournaldSkippedWhenUnavailable(t *testing.T) {
	got := fakeJournal(t, false)
	logger, _, err := New(Options{Output: &bytes.Buffer{}, Journald: true})
	require.NoError(t, err)
	logger.Error("x")
	assert.Empty(t, *got)
}

func TestPriority(t *testing.T) {
	assert.Equal(t, journal.PriDebug, priority(slog.LevelDebug))
	assert.Equal(t, journal.PriInfo, priority(slog.LevelInfo))
	assert.Equal(t, journal.PriWarning, priority(slog.LevelWarn))
	assert.Equal(t, journal.PriErr, priority(slog.LevelError+4))
}

func TestFieldName(t *testing.T) {
	assert.Equal(t, "HTTP_STATUS", fieldName("http.status"))
	assert.Equal(t, "SEQ", fieldName("_seq"))
	assert.Equal(t, "A1", fieldName("a1"))
}
