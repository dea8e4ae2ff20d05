package model

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/modoterra/svconsole/pkg/console"
)

// KeyMap holds the console's key bindings. Server controls are disabled
// while the session is unauthenticated; a disabled binding never matches.
type KeyMap struct {
	Submit     key.Binding
	Filter     key.Binding
	Clear      key.Binding
	AutoScroll key.Binding
	Copy       key.Binding
	Login      key.Binding
	Logout     key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	Quit       key.Binding

	Activities []ActivityBinding
}

// ActivityBinding maps a key to a server-control activity.
type ActivityBinding struct {
	Activity string
	Binding  key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	km := KeyMap{
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Filter:     key.NewBinding(key.WithKeys("ctrl+f"), key.WithHelp("^f", "filter")),
		Clear:      key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("^l", "clear")),
		AutoScroll: key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("^t", "auto-scroll")),
		Copy:       key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("^y", "copy log")),
		Login:      key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("^g", "login")),
		Logout:     key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("^x", "logout")),
		PageUp:     key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		PageDown:   key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("^c", "quit")),
	}
	fkeys := []string{"f1", "f2", "f3", "f4", "f5", "f6"}
	for i, act := range console.Activities {
		if i >= len(fkeys) {
			break
		}
		km.Activities = append(km.Activities, ActivityBinding{
			Activity: act,
			Binding:  key.NewBinding(key.WithKeys(fkeys[i]), key.WithHelp(fkeys[i], act)),
		})
	}
	return km
}

// SetAuthenticated switches the authenticated-only bindings on or off.
func (k *KeyMap) SetAuthenticated(v console.AuthView) {
	k.Logout.SetEnabled(v.ShowLogout)
	k.Login.SetEnabled(v.ShowLogin)
	for i := range k.Activities {
		k.Activities[i].Binding.SetEnabled(v.ControlsEnabled)
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Filter, k.Clear, k.Login, k.Logout, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	acts := make([]key.Binding, 0, len(k.Activities))
	for _, a := range k.Activities {
		acts = append(acts, a.Binding)
	}
	return [][]key.Binding{
		{k.Submit, k.Filter, k.Clear, k.AutoScroll, k.Copy},
		{k.Login, k.Logout, k.PageUp, k.PageDown, k.Quit},
		acts,
	}
}
