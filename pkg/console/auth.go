package console

import "github.com/modoterra/svconsole/pkg/core"

// AuthView is what the console shows for an authentication state.
type AuthView struct {
	Online          bool // indicator colour
	Label           string
	ShowLogout      bool
	ShowLogin       bool
	ControlsEnabled bool
}

// ProjectAuth derives the visible authentication UI. It is pure: the same
// state always yields the same view.
func ProjectAuth(a core.AuthState) AuthView {
	if a.Authenticated {
		return AuthView{
			Online:          true,
			Label:           "Logged in as: " + a.Username,
			ShowLogout:      true,
			ControlsEnabled: true,
		}
	}
	return AuthView{
		Label:     "Not authenticated - Please login",
		ShowLogin: true,
	}
}
