// Package console holds the operator console's state and the rules that
// change it. Renderers (TUI, REPL) feed it server answers and draw from it;
// nothing here performs I/O.
package console

import (
	"errors"
	"time"

	"github.com/modoterra/svconsole/pkg/core"
)

// Followup tells the caller what to fetch after applying a command result.
type Followup int

const (
	FollowNone Followup = iota
	FollowWhoami
	FollowStatus
)

// State is the single application-state object. It is not safe for
// concurrent use; callers serialize access.
type State struct {
	Auth       core.AuthState
	Server     core.ServerSnapshot
	Details    core.ServerDetails
	Log        Log
	AutoScroll bool

	polled    bool
	statusSeq uint64
	clock     func() time.Time
}

// NewState returns the startup state: unauthenticated, not yet polled, with
// auto-scroll on. A nil clock means time.Now.
func NewState(clock func() time.Time) State {
	if clock == nil {
		clock = time.Now
	}
	return State{
		Auth:       core.SignedOut(),
		Log:        NewLog(clock),
		AutoScroll: true,
		clock:      clock,
	}
}

func (s *State) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock()
}

// Polled reports whether any status answer (or failure) has been applied.
func (s *State) Polled() bool {
	return s.polled
}

// ServerView formats the snapshot for display.
func (s *State) ServerView() ServerView {
	v := ProjectServer(s.Server, s.now())
	if !s.polled {
		v.Status = "Connecting"
	}
	return v
}

// AuthView projects the authentication state.
func (s *State) AuthView() AuthView {
	return ProjectAuth(s.Auth)
}

// Submit parses operator input and echoes it. It returns false when nothing
// should be dispatched: blank input is dropped silently, parse errors are
// logged.
func (s *State) Submit(raw string) (Invocation, bool) {
	inv, err := ParseInvocation(raw)
	switch {
	case errors.Is(err, ErrEmptyInput):
		return Invocation{}, false
	case err != nil:
		s.Log.Append(core.SeverityError, "Parse error: "+err.Error())
		return Invocation{}, false
	}
	s.Log.Append(core.SeverityInfo, inv.Echo())
	return inv, true
}

// SubmitInvocation echoes an invocation built without tokenizing, such as
// the login form.
func (s *State) SubmitInvocation(inv Invocation) Invocation {
	s.Log.Append(core.SeverityInfo, inv.Echo())
	return inv
}

// CommandDone applies the server's answer to inv. A non-nil err means no
// usable answer was obtained; it is logged, never returned.
func (s *State) CommandDone(inv Invocation, res core.CommandResult, err error) Followup {
	if err != nil {
		s.Log.Append(core.SeverityError, "Command failed: "+err.Error())
		return FollowNone
	}

	if !res.Success() {
		s.Log.Append(core.SeverityError, linesOr(res.Lines, "Command failed")...)
		if res.UpdateUser {
			return FollowWhoami
		}
		return FollowNone
	}

	s.Log.Append(core.SeveritySuccess, linesOr(res.Lines, "Command executed successfully")...)
	switch inv.Name {
	case CmdWhoami:
		if res.Username != "" {
			s.Auth = core.SignedIn(res.Username)
		}
	case CmdLogin:
		return FollowStatus
	case CmdLogout:
		s.Auth = core.SignedOut()
		return FollowStatus
	}
	return FollowNone
}

// WhoamiDone applies the answer to the startup authentication probe.
func (s *State) WhoamiDone(res core.CommandResult, err error) {
	if err == nil && res.Success() {
		s.Auth = core.SignedIn(res.Username)
		s.Log.Append(core.SeveritySuccess, "Already logged in as: "+res.Username)
		return
	}
	s.Auth = core.SignedOut()
	s.Log.Append(core.SeverityWarning, "Please login to access server features")
}

// StatusDone applies one poll outcome. Answers to requests older than the
// last applied one are discarded; the return value reports whether rep was
// applied.
func (s *State) StatusDone(rep core.StatusReport, err error) bool {
	if rep.Seq != 0 && rep.Seq < s.statusSeq {
		return false
	}
	if rep.Seq > s.statusSeq {
		s.statusSeq = rep.Seq
	}
	wasPolled, wasOnline := s.polled, s.Server.Online
	s.polled = true

	if err != nil {
		s.Server.Online = false
		if s.Auth.Authenticated {
			s.Auth = core.SignedOut()
		}
		if wasPolled && wasOnline {
			s.Log.Append(core.SeverityWarning, "Lost connection to server: "+err.Error())
		}
		return true
	}

	if wasPolled && !wasOnline {
		s.Log.Append(core.SeveritySuccess, "Connection to server restored")
	}

	if !rep.OK {
		s.Server.Online = true
		s.Auth = core.SignedOut()
		return true
	}

	s.Server = core.ServerSnapshot{
		Online:      true,
		Port:        rep.Port,
		StartTime:   rep.StartTime,
		CPUPercent:  rep.CPUPercent,
		MemoryBytes: rep.MemoryBytes,
		Connections: rep.Connections,
		UpdatedAt:   s.now(),
	}
	s.Auth = core.SignedIn(rep.Username)
	return true
}

// ActivityDone logs the server's acknowledgement of an activity.
func (s *State) ActivityDone(activity string, ack core.ActivityAck, err error) {
	if err != nil {
		s.Log.Append(core.SeverityError, "Activity "+activity+" failed: "+err.Error())
		return
	}
	msg := ack.Message
	if msg == "" {
		msg = "Activity " + activity + " acknowledged"
	}
	s.Log.Append(core.SeverityOf(ack.Success), msg)
}

// ClearLog empties the log and records that it was cleared.
func (s *State) ClearLog() {
	s.Log.Clear()
	s.Log.Append(core.SeverityInfo, "Console cleared")
}

// ToggleAutoScroll flips auto-scroll and returns the new value.
func (s *State) ToggleAutoScroll() bool {
	s.AutoScroll = !s.AutoScroll
	return s.AutoScroll
}

func linesOr(lines []string, fallback string) []string {
	if len(lines) == 0 {
		return []string{fallback}
	}
	return lines
}
