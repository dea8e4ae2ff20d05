package console

import (
	"errors"
	"strings"

	"github.com/modoterra/svconsole/pkg/cmdline"
)

// Well-known command names.
const (
	CmdLogin          = "login"
	CmdLogout         = "logout"
	CmdWhoami         = "whoami"
	CmdChangePassword = "change_password"
	CmdHelp           = "help"
	CmdAddUser        = "add_user"
)

// KnownCommands lists the commands the controller documents, for completion.
var KnownCommands = []string{CmdAddUser, CmdChangePassword, CmdHelp, CmdLogin, CmdLogout, CmdWhoami}

// Activities are the server-control actions, in display order.
var Activities = []string{"start", "stop", "restart", "backup", "shutdown", "reboot"}

// DangerousActivities need an explicit confirmation before they are sent.
var DangerousActivities = map[string]bool{"shutdown": true, "reboot": true}

var (
	// ErrEmptyInput is returned for blank lines; callers drop them silently.
	ErrEmptyInput = errors.New("empty input")
	// ErrEmptyCommand is returned when the first token is empty, e.g. `"" x`.
	ErrEmptyCommand = errors.New("empty command name")
)

// Invocation is a tokenized command ready to dispatch.
type Invocation struct {
	Raw  string
	Name string
	Args []string
}

// ParseInvocation trims and tokenizes raw operator input.
func ParseInvocation(raw string) (Invocation, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Invocation{}, ErrEmptyInput
	}
	tokens, err := cmdline.Split(raw)
	if err != nil {
		return Invocation{}, err
	}
	if len(tokens) == 0 {
		return Invocation{}, ErrEmptyInput
	}
	if tokens[0] == "" {
		return Invocation{}, ErrEmptyCommand
	}
	return Invocation{Raw: raw, Name: tokens[0], Args: tokens[1:]}, nil
}

// Sensitive reports whether the arguments carry credentials.
func (inv Invocation) Sensitive() bool {
	return inv.Name == CmdLogin || inv.Name == CmdChangePassword
}

// Echo is the line written to the console when the command is sent. The raw
// input of sensitive commands is never echoed.
func (inv Invocation) Echo() string {
	if inv.Sensitive() {
		return inv.Name + " [arguments hidden]"
	}
	if inv.Raw == "" {
		return cmdline.Join(append([]string{inv.Name}, inv.Args...))
	}
	return inv.Raw
}
