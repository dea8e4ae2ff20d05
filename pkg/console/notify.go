package console

import (
	"time"

	"github.com/modoterra/svconsole/pkg/core"
)

// DefaultNotifyDuration is how long a notification stays up.
const DefaultNotifyDuration = 3 * time.Second

// Notice is a transient banner.
type Notice struct {
	Gen     uint64
	Message string
	Kind    core.Severity
}

// Notifier holds at most one banner. A new banner replaces the old one, and
// only the expiry of the current banner's generation dismisses it.
type Notifier struct {
	current *Notice
	gen     uint64
}

// Show replaces the current banner and returns it.
func (n *Notifier) Show(message string, kind core.Severity) Notice {
	n.gen++
	notice := Notice{Gen: n.gen, Message: message, Kind: kind}
	n.current = &notice
	return notice
}

// Expire dismisses the banner if gen is still the current generation.
func (n *Notifier) Expire(gen uint64) bool {
	if n.current == nil || n.current.Gen != gen {
		return false
	}
	n.current = nil
	return true
}

// Current returns the banner being shown, if any.
func (n *Notifier) Current() (Notice, bool) {
	if n.current == nil {
		return Notice{}, false
	}
	return *n.current, true
}
