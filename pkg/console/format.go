package console

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/modoterra/svconsole/pkg/core"
)

// ServerView holds the display strings for a server snapshot. No field is
// ever blank: missing values render as placeholders.
type ServerView struct {
	Status      string
	Online      bool
	Port        string
	Uptime      string
	CPU         string
	Memory      string
	Connections string
	LastUpdate  string
}

// ProjectServer formats snap for display at now.
func ProjectServer(snap core.ServerSnapshot, now time.Time) ServerView {
	v := ServerView{
		Status:      "Offline",
		Online:      snap.Online,
		Port:        snap.Port,
		Uptime:      "00:00:00",
		CPU:         fmt.Sprintf("%.1f%%", snap.CPUPercent),
		Memory:      FormatMemory(snap.MemoryBytes),
		Connections: strconv.Itoa(snap.Connections),
		LastUpdate:  "never",
	}
	if snap.Online {
		v.Status = "Online"
	}
	if v.Port == "" {
		v.Port = "N/A"
	}
	if !snap.StartTime.IsZero() {
		v.Uptime = FormatUptime(now.Sub(snap.StartTime))
	}
	if !snap.UpdatedAt.IsZero() {
		v.LastUpdate = snap.UpdatedAt.Format("15:04:05")
	}
	return v
}

// FormatUptime renders d as HH:MM:SS; hours are not capped at 24.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec%3600)/60, sec%60)
}

// FormatMemory renders bytes as whole megabytes.
func FormatMemory(b uint64) string {
	return fmt.Sprintf("%d MB", int64(math.Round(float64(b)/1024/1024)))
}
