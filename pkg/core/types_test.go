package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeverityValid(t *testing.T) {
	for _, s := range []Severity{SeverityError, SeverityWarning, SeveritySuccess, SeverityInfo} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Severity("debug").Valid())
	assert.False(t, Severity("").Valid())
}

func TestSeverityOf(t *testing.T) {
	assert.Equal(t, SeveritySuccess, SeverityOf(true))
	assert.Equal(t, SeverityError, SeverityOf(false))
}

func TestLogEntryText(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 5, 7, 0, time.Local)

	single := LogEntry{At: at, Lines: []string{"hello"}}
	assert.Equal(t, "09:05:07", single.Timestamp())
	assert.Equal(t, "[09:05:07]\n> hello", single.Text())

	multi := LogEntry{At: at, Lines: []string{"a", "b"}}
	assert.Equal(t, "[09:05:07]\n> a\n> b", multi.Text())
}

func TestLogEntryDisplayLinesSplitsNewlines(t *testing.T) {
	at := time.Date(2026, 10, 19, 9, 5, 1, 0, time.Local)
	e := LogEntry{At: at, Lines: []string{"first\nsecond\r\nthird", "last"}}
	assert.Equal(t, []string{"first", "second", "third", "last"}, e.DisplayLines())
	assert.Equal(t, "[09:05:01]\n> first\n> second\n> third\n> last", e.Text())
}

func TestAuthStateConstructors(t *testing.T) {
	in := SignedIn("bob")
	assert.True(t, in.Authenticated)
	assert.Equal(t, "bob", in.Username)

	out := SignedOut()
	assert.False(t, out.Authenticated)
	assert.Empty(t, out.Username)
}

func TestCommandResultSuccess(t *testing.T) {
	assert.True(t, CommandResult{Status: "success"}.Success())
	assert.False(t, CommandResult{Status: "fail"}.Success())
	assert.False(t, CommandResult{}.Success())
}
