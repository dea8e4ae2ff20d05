package core

import (
	"strings"
	"time"
)

// StatusSuccess is the only status value the server uses for success.
const StatusSuccess = "success"

// Severity classifies a console log entry.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityError, SeverityWarning, SeveritySuccess, SeverityInfo:
		return true
	}
	return false
}

// SeverityOf maps a success flag to success or error severity.
func SeverityOf(ok bool) Severity {
	if ok {
		return SeveritySuccess
	}
	return SeverityError
}

// LogEntry is one line (or block of lines) in the operator console.
// Entries are never mutated after creation.
type LogEntry struct {
	ID       string    `json:"id"`
	At       time.Time `json:"at"`
	Lines    []string  `json:"lines"`
	Severity Severity  `json:"severity"`
}

// Timestamp returns the local time-of-day the entry was created.
func (e LogEntry) Timestamp() string {
	return e.At.Format("15:04:05")
}

// Text is the full plain text of the entry as displayed: the bracketed
// timestamp followed by one "> " prefixed line per message line.
func (e LogEntry) Text() string {
	var b strings.Builder
	b.WriteString("[" + e.Timestamp() + "]")
	for _, l := range e.DisplayLines() {
		b.WriteString("\n> ")
		b.WriteString(l)
	}
	return b.String()
}

// DisplayLines returns the message lines as rendered, one per screen row.
// A server line with embedded newlines becomes several rows.
func (e LogEntry) DisplayLines() []string {
	rows := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		for _, row := range strings.Split(l, "\n") {
			rows = append(rows, strings.TrimSuffix(row, "\r"))
		}
	}
	return rows
}

// AuthState is the client's belief about the current session.
type AuthState struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

// SignedIn returns an authenticated state for user.
func SignedIn(user string) AuthState {
	return AuthState{Authenticated: true, Username: user}
}

// SignedOut returns the unauthenticated state. Username is always empty.
func SignedOut() AuthState {
	return AuthState{}
}

// ServerSnapshot is the last known server status shown by the console.
// Zero values mean the server did not report the field.
type ServerSnapshot struct {
	Online      bool      `json:"online"`
	Port        string    `json:"port,omitempty"`
	StartTime   time.Time `json:"start_time,omitempty"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemoryBytes uint64    `json:"memory_bytes"`
	Connections int       `json:"connections"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// StatusReport is one decoded answer from the status endpoint.
type StatusReport struct {
	Seq         uint64
	OK          bool
	Message     string
	Username    string
	Port        string
	StartTime   time.Time
	CPUPercent  float64
	MemoryBytes uint64
	Connections int
}

// CommandResult is the server's answer to a console command.
type CommandResult struct {
	Seq        uint64
	Status     string
	Lines      []string
	Username   string
	UpdateUser bool
}

// Success reports whether the server accepted the command.
func (r CommandResult) Success() bool {
	return r.Status == StatusSuccess
}

// ActivityAck is the server's acknowledgement of an activity report.
type ActivityAck struct {
	Seq     uint64
	Message string
	Success bool
}

// ServerDetails identifies the server the console is attached to.
type ServerDetails struct {
	Name string `json:"server_name"`
	UID  string `json:"server_uid"`
	Port string `json:"port"`
}
