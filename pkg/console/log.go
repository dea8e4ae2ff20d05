package console

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/modoterra/svconsole/pkg/core"
)

// Log is the append-only operator log. Renderers derive their view from it,
// so the view holds exactly one element per entry, in insertion order.
// The zero value is ready to use.
type Log struct {
	entries []core.LogEntry
	filter  string
	clock   func() time.Time
	newID   func() string
}

// NewLog returns an empty log that stamps entries with clock.
func NewLog(clock func() time.Time) Log {
	return Log{clock: clock}
}

// Append adds an entry with one or more message lines.
func (l *Log) Append(sev core.Severity, lines ...string) core.LogEntry {
	if !sev.Valid() {
		sev = core.SeverityInfo
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	now, newID := time.Now, uuid.NewString
	if l.clock != nil {
		now = l.clock
	}
	if l.newID != nil {
		newID = l.newID
	}
	e := core.LogEntry{
		ID:       newID(),
		At:       now(),
		Lines:    append([]string(nil), lines...),
		Severity: sev,
	}
	l.entries = append(l.entries, e)
	return e
}

// Clear drops every entry. The filter is kept.
func (l *Log) Clear() {
	l.entries = nil
}

// Len returns the number of entries, filtered or not.
func (l *Log) Len() int {
	return len(l.entries)
}

// Entries returns a copy of all entries in insertion order.
func (l *Log) Entries() []core.LogEntry {
	return append([]core.LogEntry(nil), l.entries...)
}

// SetFilter hides entries whose text does not contain s, ignoring case.
// An empty filter shows everything. Entries are never removed by filtering.
func (l *Log) SetFilter(s string) {
	l.filter = s
}

// Filter returns the active filter.
func (l *Log) Filter() string {
	return l.filter
}

// Matches reports whether e passes the active filter.
func (l *Log) Matches(e core.LogEntry) bool {
	if l.filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Text()), strings.ToLower(l.filter))
}

// Visible returns the entries that pass the filter, in insertion order.
func (l *Log) Visible() []core.LogEntry {
	if l.filter == "" {
		return l.Entries()
	}
	var out []core.LogEntry
	for _, e := range l.entries {
		if l.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}
