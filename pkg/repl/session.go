// Package repl is the line-mode front end: a readline prompt with the
// console log printed as a running transcript.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/modoterra/svconsole/pkg/cmdline"
	"github.com/modoterra/svconsole/pkg/console"
	"github.com/modoterra/svconsole/pkg/core"
	"github.com/modoterra/svconsole/pkg/poller"
)

// ErrQuit is returned by Submit when the operator asks to leave.
var ErrQuit = errors.New("quit")

var (
	timeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	severityStyles = map[core.Severity]lipgloss.Style{
		core.SeverityError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		core.SeverityWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		core.SeveritySuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		core.SeverityInfo:    lipgloss.NewStyle(),
	}
	noticeStyle = lipgloss.NewStyle().Bold(true)
)

// Credentials asks the operator for a username and password.
type Credentials func() (user, pass string, err error)

// Confirm asks the operator a yes/no question.
type Confirm func(question string) bool

// Options configures a Session.
type Options struct {
	API          core.API
	PollInterval time.Duration
	AutoScroll   bool
	Logger       *slog.Logger
	Clock        func() time.Time
	Out          io.Writer
	Credentials  Credentials
	Confirm      Confirm
}

// Session owns the console state for line mode. The poller and the prompt
// loop both touch the state, so every access goes through mu.
type Session struct {
	api    core.API
	logger *slog.Logger
	poll   *poller.PollLoop

	credentials Credentials
	confirm     Confirm
	onChange    func()

	mu      sync.Mutex
	out     io.Writer
	state   console.State
	printed int // entries already written to out
}

// NewSession creates a session. It does not contact the server until Start.
func NewSession(o Options) *Session {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Out == nil {
		o.Out = io.Discard
	}
	s := &Session{
		api:         o.API,
		logger:      o.Logger,
		credentials: o.Credentials,
		confirm:     o.Confirm,
		out:         o.Out,
		state:       console.NewState(o.Clock),
	}
	s.state.AutoScroll = o.AutoScroll
	s.poll = poller.NewPollLoop(o.API, o.PollInterval, o.Logger, s.statusDone)
	return s
}

// Start runs the startup probes and then polls in the background until ctx
// is cancelled.
func (s *Session) Start(ctx context.Context) {
	s.probe(ctx)
	go s.poll.Run(ctx)
}

func (s *Session) probe(ctx context.Context) {
	if d, err := s.api.Details(ctx); err == nil {
		s.mu.Lock()
		s.state.Details = d
		s.mu.Unlock()
	} else {
		s.logger.Debug("server details unavailable", "err", err)
	}
	s.whoami(ctx)
}

// Prompt returns the prompt for the current state.
func (s *Session) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := "svconsole> "
	if s.state.Auth.Authenticated {
		p = s.state.Auth.Username + "@svconsole> "
	}
	if s.state.Polled() && !s.state.Server.Online {
		p = "(offline) " + p
	}
	return p
}

// OnChange registers a callback run after background updates, e.g. to
// redraw the prompt.
func (s *Session) OnChange(fn func()) {
	s.onChange = fn
}

// SetOutput redirects the transcript.
func (s *Session) SetOutput(w io.Writer) {
	s.mu.Lock()
	s.out = w
	s.mu.Unlock()
}

// Snapshot returns a copy of the console state.
func (s *Session) Snapshot() console.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) controlsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AuthView().ControlsEnabled
}

func (s *Session) statusDone(rep core.StatusReport, err error) {
	s.mu.Lock()
	s.state.StatusDone(rep, err)
	if s.state.AutoScroll {
		s.flushLocked()
	}
	s.mu.Unlock()
	if s.onChange != nil {
		s.onChange()
	}
}

// Submit handles one line of operator input: slash commands locally,
// everything else on the server. It blocks until the answer is applied.
func (s *Session) Submit(ctx context.Context, line string) error {
	defer s.Flush()

	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "/") {
		return s.local(ctx, line)
	}

	s.mu.Lock()
	inv, ok := s.state.Submit(line)
	s.flushLocked()
	s.mu.Unlock()
	if !ok {
		return nil
	}
	s.execute(ctx, inv)
	return nil
}

func (s *Session) execute(ctx context.Context, inv console.Invocation) {
	res, err := s.api.Execute(ctx, inv.Name, inv.Args)
	if err != nil {
		s.logger.Warn("command failed", "command", inv.Name, "err", err)
	}

	s.mu.Lock()
	follow := s.state.CommandDone(inv, res, err)
	s.flushLocked()
	s.mu.Unlock()

	switch follow {
	case console.FollowWhoami:
		s.whoami(ctx)
	case console.FollowStatus:
		s.poll.Tick(ctx)
	}
}

func (s *Session) whoami(ctx context.Context) {
	res, err := s.api.Execute(ctx, console.CmdWhoami, nil)
	s.mu.Lock()
	s.state.WhoamiDone(res, err)
	s.flushLocked()
	s.mu.Unlock()
}

// Flush prints entries that have not been printed yet.
func (s *Session) Flush() {
	s.mu.Lock()
	s.flushLocked()
	s.mu.Unlock()
}

func (s *Session) flushLocked() {
	entries := s.state.Log.Entries()
	if s.printed > len(entries) {
		s.printed = 0
	}
	for _, e := range entries[s.printed:] {
		if s.state.Log.Matches(e) {
			writeEntry(s.out, e)
		}
	}
	s.printed = len(entries)
}

func writeEntry(w io.Writer, e core.LogEntry) {
	style := severityStyles[e.Severity]
	fmt.Fprintln(w, timeStyle.Render("["+e.Timestamp()+"]"))
	for _, line := range e.DisplayLines() {
		fmt.Fprintln(w, style.Render("> "+line))
	}
}

func (s *Session) notice(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, noticeStyle.Render("* "+fmt.Sprintf(format, args...)))
}

// local runs a slash command.
func (s *Session) local(ctx context.Context, line string) error {
	args, err := cmdline.Split(line)
	if err != nil {
		s.notice("Parse error: %v", err)
		return nil
	}
	name, args := args[0], args[1:]

	switch name {
	case "/quit", "/exit":
		return ErrQuit

	case "/help":
		s.notice("Local commands: %s", strings.Join(LocalCommands, " "))
		s.notice("Anything else is sent to the server; try 'help'.")

	case "/clear":
		s.mu.Lock()
		s.state.ClearLog()
		s.printed = 0
		s.mu.Unlock()

	case "/filter":
		s.filter(strings.Join(args, " "))

	case "/autoscroll":
		s.mu.Lock()
		on := s.state.ToggleAutoScroll()
		s.mu.Unlock()
		if on {
			s.notice("Auto-scroll enabled")
		} else {
			s.notice("Auto-scroll disabled")
		}

	case "/status":
		s.printStatus()

	case "/activity":
		if len(args) != 1 {
			s.notice("usage: /activity <%s>", strings.Join(console.Activities, "|"))
			return nil
		}
		s.activity(ctx, args[0])

	case "/login":
		s.login(ctx, args)

	case "/logout":
		if !s.Snapshot().Auth.Authenticated {
			s.notice("Not logged in")
			return nil
		}
		s.mu.Lock()
		inv := s.state.SubmitInvocation(console.Invocation{Name: console.CmdLogout})
		s.flushLocked()
		s.mu.Unlock()
		s.execute(ctx, inv)

	default:
		s.notice("Unknown local command %s; see /help", name)
	}
	return nil
}

// LocalCommands are handled by the console itself.
var LocalCommands = []string{"/activity", "/autoscroll", "/clear", "/filter", "/help", "/login", "/logout", "/quit", "/status"}

func (s *Session) filter(f string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Log.SetFilter(f)
	visible := s.state.Log.Visible()
	if f == "" {
		fmt.Fprintln(s.out, noticeStyle.Render("* Filter cleared"))
	} else {
		fmt.Fprintln(s.out, noticeStyle.Render(fmt.Sprintf("* Filter %q: %d of %d entries", f, len(visible), s.state.Log.Len())))
	}
	for _, e := range visible {
		writeEntry(s.out, e)
	}
}

func (s *Session) printStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.state.ServerView()
	a := s.state.AuthView()
	name := s.state.Details.Name
	if name == "" {
		name = "server"
	}
	fmt.Fprintf(s.out, "%s: %s\n", name, v.Status)
	fmt.Fprintf(s.out, "  port:        %s\n", v.Port)
	fmt.Fprintf(s.out, "  uptime:      %s\n", v.Uptime)
	fmt.Fprintf(s.out, "  cpu:         %s\n", v.CPU)
	fmt.Fprintf(s.out, "  memory:      %s\n", v.Memory)
	fmt.Fprintf(s.out, "  connections: %s\n", v.Connections)
	fmt.Fprintf(s.out, "  updated:     %s\n", v.LastUpdate)
	fmt.Fprintf(s.out, "  %s\n", a.Label)
}

func (s *Session) activity(ctx context.Context, name string) {
	known := false
	for _, a := range console.Activities {
		if a == name {
			known = true
			break
		}
	}
	if !known {
		s.notice("Unknown activity %q", name)
		return
	}
	if !s.controlsEnabled() {
		s.notice("Please login to use %s", name)
		return
	}
	if console.DangerousActivities[name] {
		if s.confirm == nil || !s.confirm(fmt.Sprintf("Really %s the server?", name)) {
			s.notice("%s cancelled", name)
			return
		}
		// The session may have been demoted while the question was open.
		if !s.controlsEnabled() {
			s.notice("Please login to use %s", name)
			return
		}
	}

	s.mu.Lock()
	s.state.Log.Append(core.SeverityInfo, "Activity: "+name)
	s.flushLocked()
	s.mu.Unlock()

	ack, err := s.api.ReportActivity(ctx, name)
	s.mu.Lock()
	s.state.ActivityDone(name, ack, err)
	s.flushLocked()
	s.mu.Unlock()
}

func (s *Session) login(ctx context.Context, args []string) {
	var user, pass string
	switch {
	case len(args) == 2:
		user, pass = args[0], args[1]
	case len(args) == 0 && s.credentials != nil:
		var err error
		user, pass, err = s.credentials()
		if err != nil {
			s.notice("Login cancelled")
			return
		}
	default:
		s.notice("usage: /login [username password]")
		return
	}
	if user == "" || pass == "" {
		s.notice("Username and password are required")
		return
	}

	s.mu.Lock()
	inv := s.state.SubmitInvocation(console.Invocation{Name: console.CmdLogin, Args: []string{user, pass}})
	s.flushLocked()
	s.mu.Unlock()
	s.execute(ctx, inv)
}
