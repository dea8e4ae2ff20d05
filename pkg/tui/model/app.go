package model

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/svconsole/pkg/console"
	"github.com/modoterra/svconsole/pkg/core"
)

// Mode identifies the current interaction mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeFilter
	ModeLogin
	ModeConfirm
)

// For mocking in tests
var writeClipboard = clipboard.WriteAll

// Options configures the App.
type Options struct {
	API            core.API
	ServerURL      string
	PollInterval   time.Duration
	NotifyDuration time.Duration
	AutoScroll     bool
	Logger         *slog.Logger
	Clock          func() time.Time
}

// App is the root Bubble Tea model.
type App struct {
	api            core.API
	serverURL      string
	pollInterval   time.Duration
	notifyDuration time.Duration
	logger         *slog.Logger

	// State
	state    console.State
	notifier console.Notifier

	// UI
	mode     Mode
	input    textinput.Model
	filter   textinput.Model
	logView  viewport.Model
	keys     KeyMap
	help     help.Model
	width    int
	height   int
	rendered int // entries currently in logView

	// Login form
	login *LoginForm

	// Activity awaiting y/n
	confirmTarget string
}

// New creates a new TUI app model.
func New(o Options) App {
	if o.PollInterval <= 0 {
		o.PollInterval = 3 * time.Second
	}
	if o.NotifyDuration <= 0 {
		o.NotifyDuration = console.DefaultNotifyDuration
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	in := textinput.New()
	in.Prompt = "> "
	in.Placeholder = "type a command, e.g. help"
	in.CharLimit = 1024
	in.ShowSuggestions = true
	in.SetSuggestions(console.KnownCommands)
	in.Focus()

	fi := textinput.New()
	fi.Prompt = "filter: "
	fi.Placeholder = "substring"
	fi.CharLimit = 128

	state := console.NewState(o.Clock)
	state.AutoScroll = o.AutoScroll

	a := App{
		api:            o.API,
		serverURL:      o.ServerURL,
		pollInterval:   o.PollInterval,
		notifyDuration: o.NotifyDuration,
		logger:         o.Logger,
		state:          state,
		mode:           ModeNormal,
		input:          in,
		filter:         fi,
		logView:        viewport.New(0, 0),
		keys:           DefaultKeyMap(),
		help:           help.New(),
	}
	a.keys.SetAuthenticated(a.state.AuthView())
	return a
}

// State returns the console state, for inspection.
func (a App) State() *console.State {
	return &a.state
}

// Mode returns the current interaction mode.
func (a App) Mode() Mode {
	return a.mode
}

// Init probes authentication and starts polling.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		whoamiCmd(a.api),
		statusCmd(a.api),
		detailsCmd(a.api),
		tickCmd(a.pollInterval),
		tea.SetWindowTitle("Server Console"),
	)
}

// tickMsg triggers periodic refresh.
type tickMsg time.Time

// commandResultMsg carries the answer to an operator command.
type commandResultMsg struct {
	inv console.Invocation
	res core.CommandResult
	err error
}

// whoamiMsg carries the answer to the authentication probe.
type whoamiMsg struct {
	res core.CommandResult
	err error
}

// statusMsg carries one poll outcome.
type statusMsg struct {
	rep core.StatusReport
	err error
}

// activityMsg carries an activity acknowledgement.
type activityMsg struct {
	activity string
	ack      core.ActivityAck
	err      error
}

// detailsMsg carries the server identity.
type detailsMsg struct {
	details core.ServerDetails
	err     error
}

// noticeExpiredMsg dismisses the banner of one generation.
type noticeExpiredMsg struct{ gen uint64 }

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func executeCmd(api core.API, inv console.Invocation) tea.Cmd {
	return func() tea.Msg {
		res, err := api.Execute(context.Background(), inv.Name, inv.Args)
		return commandResultMsg{inv: inv, res: res, err: err}
	}
}

func whoamiCmd(api core.API) tea.Cmd {
	return func() tea.Msg {
		res, err := api.Execute(context.Background(), console.CmdWhoami, nil)
		return whoamiMsg{res: res, err: err}
	}
}

func statusCmd(api core.API) tea.Cmd {
	return func() tea.Msg {
		rep, err := api.Status(context.Background())
		return statusMsg{rep: rep, err: err}
	}
}

func activityCmd(api core.API, activity string) tea.Cmd {
	return func() tea.Msg {
		ack, err := api.ReportActivity(context.Background(), activity)
		return activityMsg{activity: activity, ack: ack, err: err}
	}
}

func detailsCmd(api core.API) tea.Cmd {
	return func() tea.Msg {
		d, err := api.Details(context.Background())
		return detailsMsg{details: d, err: err}
	}
}

func expireCmd(d time.Duration, gen uint64) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return noticeExpiredMsg{gen: gen}
	})
}

// Update handles messages.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		a.input.Width = max(msg.Width-4, 10)
		a.resizeLog()
		return a, nil

	case tickMsg:
		return a, tea.Batch(tickCmd(a.pollInterval), statusCmd(a.api))

	case statusMsg:
		if !a.state.StatusDone(msg.rep, msg.err) {
			a.logger.Debug("stale status discarded", "seq", msg.rep.Seq)
		}
		a.syncAuth()
		a.syncLog()
		return a, nil

	case whoamiMsg:
		a.state.WhoamiDone(msg.res, msg.err)
		a.syncAuth()
		a.syncLog()
		return a, nil

	case commandResultMsg:
		if msg.err != nil {
			a.logger.Warn("command failed", "command", msg.inv.Name, "err", msg.err)
		}
		follow := a.state.CommandDone(msg.inv, msg.res, msg.err)
		a.syncAuth()
		a.syncLog()
		switch follow {
		case console.FollowWhoami:
			return a, whoamiCmd(a.api)
		case console.FollowStatus:
			return a, statusCmd(a.api)
		}
		return a, nil

	case activityMsg:
		a.state.ActivityDone(msg.activity, msg.ack, msg.err)
		a.syncLog()
		return a, nil

	case detailsMsg:
		if msg.err != nil {
			a.logger.Debug("server details unavailable", "err", msg.err)
			return a, nil
		}
		a.state.Details = msg.details
		return a, nil

	case noticeExpiredMsg:
		a.notifier.Expire(msg.gen)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, a.keys.Quit) {
		return a, tea.Quit
	}

	// Login mode
	if a.mode == ModeLogin && a.login != nil {
		return a.login.HandleKey(a, msg)
	}

	// Activity confirmation mode
	if a.mode == ModeConfirm {
		target := a.confirmTarget
		a.mode = ModeNormal
		a.confirmTarget = ""
		switch msg.String() {
		case "y", "Y":
			if !a.state.AuthView().ControlsEnabled {
				return a.notify("Please login to use "+target, core.SeverityWarning)
			}
			return a.sendActivity(target)
		default:
			return a.notify(target+" cancelled", core.SeverityInfo)
		}
	}

	// Filter mode
	if a.mode == ModeFilter {
		switch msg.String() {
		case "esc":
			a.filter.SetValue("")
			a.state.Log.SetFilter("")
			a.mode = ModeNormal
			a.filter.Blur()
			a.syncLog()
			cmd := a.input.Focus()
			return a, cmd
		case "enter", "ctrl+f":
			a.mode = ModeNormal
			a.filter.Blur()
			cmd := a.input.Focus()
			return a, cmd
		default:
			var cmd tea.Cmd
			a.filter, cmd = a.filter.Update(msg)
			a.state.Log.SetFilter(a.filter.Value())
			a.syncLog()
			return a, cmd
		}
	}

	// Normal mode
	switch {
	case key.Matches(msg, a.keys.Submit):
		return a.submit()

	case key.Matches(msg, a.keys.Filter):
		a.mode = ModeFilter
		a.input.Blur()
		cmd := a.filter.Focus()
		return a, cmd

	case key.Matches(msg, a.keys.Clear):
		a.state.ClearLog()
		a.syncLog()
		return a, nil

	case key.Matches(msg, a.keys.AutoScroll):
		on := a.state.ToggleAutoScroll()
		if on {
			a.logView.GotoBottom()
			return a.notify("Auto-scroll enabled", core.SeverityInfo)
		}
		return a.notify("Auto-scroll disabled", core.SeverityInfo)

	case key.Matches(msg, a.keys.Copy):
		return a.copyLog()

	case key.Matches(msg, a.keys.Login):
		a.login = NewLoginForm()
		a.mode = ModeLogin
		a.input.Blur()
		return a, textinput.Blink

	case key.Matches(msg, a.keys.Logout):
		inv := a.state.SubmitInvocation(console.Invocation{Name: console.CmdLogout})
		a.syncLog()
		return a, executeCmd(a.api, inv)

	case key.Matches(msg, a.keys.PageUp):
		a.logView.SetYOffset(a.logView.YOffset - a.logView.Height)
		return a, nil

	case key.Matches(msg, a.keys.PageDown):
		a.logView.SetYOffset(a.logView.YOffset + a.logView.Height)
		return a, nil
	}

	for _, ab := range a.keys.Activities {
		if key.Matches(msg, ab.Binding) {
			return a.requestActivity(ab.Activity)
		}
		if !ab.Binding.Enabled() && matchesKeys(msg, ab.Binding) {
			return a.notify("Please login to use "+ab.Activity, core.SeverityWarning)
		}
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func matchesKeys(msg tea.KeyMsg, b key.Binding) bool {
	s := msg.String()
	for _, k := range b.Keys() {
		if k == s {
			return true
		}
	}
	return false
}

func (a App) submit() (tea.Model, tea.Cmd) {
	raw := a.input.Value()
	a.input.Reset()
	inv, ok := a.state.Submit(raw)
	a.syncLog()
	if !ok {
		return a, nil
	}
	return a, executeCmd(a.api, inv)
}

func (a App) requestActivity(activity string) (tea.Model, tea.Cmd) {
	if console.DangerousActivities[activity] {
		a.mode = ModeConfirm
		a.confirmTarget = activity
		return a, nil
	}
	return a.sendActivity(activity)
}

func (a App) sendActivity(activity string) (tea.Model, tea.Cmd) {
	a.state.Log.Append(core.SeverityInfo, "Activity: "+activity)
	a.syncLog()
	return a, activityCmd(a.api, activity)
}

func (a App) copyLog() (tea.Model, tea.Cmd) {
	visible := a.state.Log.Visible()
	if len(visible) == 0 {
		return a.notify("Nothing to copy", core.SeverityWarning)
	}
	texts := make([]string, len(visible))
	for i, e := range visible {
		texts[i] = e.Text()
	}
	if err := writeClipboard(strings.Join(texts, "\n")); err != nil {
		a.logger.Warn("clipboard write failed", "err", err)
		return a.notify("Copy failed: "+err.Error(), core.SeverityError)
	}
	return a.notify("Log copied to clipboard", core.SeveritySuccess)
}

// notify shows a banner and schedules its expiry.
func (a App) notify(message string, kind core.Severity) (App, tea.Cmd) {
	n := a.notifier.Show(message, kind)
	return a, expireCmd(a.notifyDuration, n.Gen)
}

func (a *App) syncAuth() {
	a.keys.SetAuthenticated(a.state.AuthView())
}

// syncLog rebuilds the log view from the visible entries.
func (a *App) syncLog() {
	visible := a.state.Log.Visible()
	a.rendered = len(visible)
	a.logView.SetContent(renderEntries(visible, a.logView.Width))
	if a.state.AutoScroll {
		a.logView.GotoBottom()
	}
}

func (a *App) resizeLog() {
	a.logView.Width = max(a.width-4, 10)
	a.logView.Height = max(a.height-logChromeHeight, 3)
	a.syncLog()
}
