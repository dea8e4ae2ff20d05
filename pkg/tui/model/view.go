package model

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/modoterra/svconsole/pkg/core"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	onlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	severityStyles = map[core.Severity]lipgloss.Style{
		core.SeverityError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		core.SeverityWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		core.SeveritySuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		core.SeverityInfo:    lipgloss.NewStyle(),
	}

	noticeStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("230"))

	noticeBackground = map[core.Severity]lipgloss.Color{
		core.SeverityError:   "124",
		core.SeverityWarning: "130",
		core.SeveritySuccess: "28",
		core.SeverityInfo:    "57",
	}

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Lines outside the log viewport: header, server status, controls, pane
// border (2), banner, input, help.
const logChromeHeight = 8

// View renders the TUI.
func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "loading..."
	}

	// Login overlay
	if a.mode == ModeLogin && a.login != nil {
		return paneStyle.Width(a.width - 4).Height(a.height - 2).Render(a.login.View())
	}

	logPane := paneStyle.
		Width(a.width - 2).
		Height(a.logView.Height).
		Render(a.logView.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		a.renderHeader(),
		a.renderServer(),
		a.renderControls(),
		logPane,
		a.renderBanner(),
		a.input.View(),
		a.help.View(a.keys),
	)
}

func (a App) renderHeader() string {
	name := a.state.Details.Name
	if name == "" {
		name = a.serverURL
	}
	left := titleStyle.Render(" Server Console ") + dimStyle.Render(name)

	auth := a.state.AuthView()
	indicator := offlineStyle.Render("●")
	if auth.Online {
		indicator = onlineStyle.Render("●")
	}
	right := indicator + " " + auth.Label

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (a App) renderServer() string {
	v := a.state.ServerView()
	status := offlineStyle.Render("● " + v.Status)
	if v.Online {
		status = onlineStyle.Render("● " + v.Status)
	}
	return fmt.Sprintf(" %s  %s %s  %s %s  %s %s  %s %s  %s %s  %s %s",
		status,
		dimStyle.Render("port"), v.Port,
		dimStyle.Render("uptime"), v.Uptime,
		dimStyle.Render("cpu"), v.CPU,
		dimStyle.Render("mem"), v.Memory,
		dimStyle.Render("conn"), v.Connections,
		dimStyle.Render("updated"), v.LastUpdate,
	)
}

func (a App) renderControls() string {
	parts := make([]string, 0, len(a.keys.Activities)+1)
	for _, ab := range a.keys.Activities {
		h := ab.Binding.Help()
		label := h.Key + " " + h.Desc
		if ab.Binding.Enabled() {
			parts = append(parts, label)
		} else {
			parts = append(parts, helpStyle.Strikethrough(true).Render(label))
		}
	}
	scroll := "auto-scroll: off"
	if a.state.AutoScroll {
		scroll = "auto-scroll: on"
	}
	parts = append(parts, dimStyle.Render(scroll))
	return " " + strings.Join(parts, "  ")
}

// renderBanner shows, in priority order, a pending confirmation, the current
// notification, or the filter.
func (a App) renderBanner() string {
	if a.mode == ModeConfirm {
		return noticeStyle.Background(noticeBackground[core.SeverityWarning]).
			Render("Really " + a.confirmTarget + " the server? (y/n)")
	}
	if n, ok := a.notifier.Current(); ok {
		return noticeStyle.Background(noticeBackground[n.Kind]).Render(n.Message)
	}
	if a.mode == ModeFilter || a.filter.Value() != "" {
		return a.filter.View() + dimStyle.Render(fmt.Sprintf("  %d/%d", a.rendered, a.state.Log.Len()))
	}
	return ""
}

// renderEntries draws each entry as a timestamp line followed by its
// message lines. A width of zero disables truncation.
func renderEntries(entries []core.LogEntry, width int) string {
	if len(entries) == 0 {
		return dimStyle.Render("no log output")
	}

	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(dimStyle.Render("[" + e.Timestamp() + "]"))
		style := severityStyles[e.Severity]
		for _, line := range e.DisplayLines() {
			b.WriteByte('\n')
			b.WriteString(style.Render(truncate("> "+line, width)))
		}
	}
	return b.String()
}

func truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
