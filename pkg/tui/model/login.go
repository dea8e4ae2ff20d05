package model

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/svconsole/pkg/console"
	"github.com/modoterra/svconsole/pkg/core"
)

// LoginForm collects a username and a masked password.
type LoginForm struct {
	fields    []textinput.Model
	activeIdx int
}

const (
	fieldUser = iota
	fieldPassword
)

// NewLoginForm creates an empty form with the username focused.
func NewLoginForm() *LoginForm {
	user := textinput.New()
	user.Placeholder = "username"
	user.CharLimit = 64
	user.Focus()

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.CharLimit = 256
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'

	return &LoginForm{fields: []textinput.Model{user, pass}}
}

// Invocation builds the login command. Credentials are passed as arguments
// directly, so spaces and quotes need no escaping.
func (f *LoginForm) Invocation() (console.Invocation, bool) {
	user, pass := f.fields[fieldUser].Value(), f.fields[fieldPassword].Value()
	if user == "" || pass == "" {
		return console.Invocation{}, false
	}
	return console.Invocation{Name: console.CmdLogin, Args: []string{user, pass}}, true
}

// HandleKey processes key events in login mode.
func (f *LoginForm) HandleKey(a App, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = ModeNormal
		a.login = nil
		cmd := a.input.Focus()
		return a, cmd

	case "enter":
		if f.activeIdx == fieldUser && f.fields[fieldPassword].Value() == "" {
			return a, f.focus(fieldPassword)
		}
		inv, ok := f.Invocation()
		if !ok {
			return a.notify("Username and password are required", core.SeverityWarning)
		}
		a.mode = ModeNormal
		a.login = nil
		a.state.SubmitInvocation(inv)
		a.syncLog()
		cmd := a.input.Focus()
		return a, tea.Batch(cmd, executeCmd(a.api, inv))

	case "tab", "shift+tab", "up", "down":
		return a, f.focus(1 - f.activeIdx)

	default:
		var cmd tea.Cmd
		f.fields[f.activeIdx], cmd = f.fields[f.activeIdx].Update(msg)
		return a, cmd
	}
}

func (f *LoginForm) focus(idx int) tea.Cmd {
	f.fields[f.activeIdx].Blur()
	f.activeIdx = idx
	return f.fields[idx].Focus()
}

// View renders the form.
func (f *LoginForm) View() string {
	labels := []string{"user", "pass"}
	s := titleStyle.Render(" Login ") + "\n\n"
	for i, in := range f.fields {
		prefix := "  "
		if i == f.activeIdx {
			prefix = "▸ "
		}
		s += prefix + dimStyle.Render(labels[i]+": ") + in.View() + "\n"
	}
	s += "\n" + helpStyle.Render("  tab:next field  enter:login  esc:cancel")
	return s
}
