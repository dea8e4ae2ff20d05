package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modoterra/svconsole/pkg/core"
)

// Endpoint paths served by the controller.
const (
	PathCommand    = "/api/command"
	PathStatus     = "/api/status"
	PathActivities = "/api/activities"
	PathDetails    = "/WebServerController/details"
)

// SessionCookie is the cookie the server uses to carry the logged in user.
const SessionCookie = "SVC_username"

// CommandRequest is the body of POST /api/command.
type CommandRequest struct {
	Command    string   `json:"Command"`
	Parameters []string `json:"Parameters"`
}

// CommandResponse is the body answered by /api/command.
type CommandResponse struct {
	Status     string `json:"status"`
	Message    Lines  `json:"message,omitempty"`
	Username   string `json:"username,omitempty"`
	UpdateUser bool   `json:"update_user,omitempty"`
}

// StatusResponse is the body answered by /api/status.
type StatusResponse struct {
	Status      string     `json:"status"`
	Message     string     `json:"message,omitempty"`
	Username    string     `json:"username,omitempty"`
	Port        FlexString `json:"port,omitempty"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	CPU         *float64   `json:"cpu,omitempty"`
	Memory      *uint64    `json:"memory,omitempty"`
	Connections *int       `json:"connections,omitempty"`
}

// ActivityRequest is the body of POST /api/activities.
type ActivityRequest struct {
	Activity string `json:"activity"`
}

// ActivityResponse is the body answered by /api/activities. Servers put the
// outcome in either "success" or "status".
type ActivityResponse struct {
	Message string `json:"message"`
	Success string `json:"success,omitempty"`
	Status  string `json:"status,omitempty"`
}

// DetailsResponse is the body answered by the details endpoint.
type DetailsResponse struct {
	Status     string     `json:"status"`
	ServerName string     `json:"server_name"`
	ServerUID  string     `json:"server_uid"`
	Port       FlexString `json:"port"`
}

// Lines decodes a JSON string or array of strings.
type Lines []string

func (l *Lines) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var many []string
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*l = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	if one == "" {
		*l = nil
		return nil
	}
	*l = Lines{one}
	return nil
}

// FlexString decodes a JSON string or number into its text form.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", data)
		}
		*f = FlexString(n.String())
	}
	return nil
}

// Result converts the wire response into a command result.
func (r CommandResponse) Result(seq uint64) core.CommandResult {
	return core.CommandResult{
		Seq:        seq,
		Status:     r.Status,
		Lines:      []string(r.Message),
		Username:   r.Username,
		UpdateUser: r.UpdateUser,
	}
}

// Report converts the wire response into a status report.
func (r StatusResponse) Report(seq uint64) core.StatusReport {
	rep := core.StatusReport{
		Seq:      seq,
		OK:       r.Status == core.StatusSuccess,
		Message:  r.Message,
		Username: r.Username,
		Port:     string(r.Port),
	}
	if r.StartTime != nil {
		rep.StartTime = *r.StartTime
	}
	if r.CPU != nil {
		rep.CPUPercent = *r.CPU
	}
	if r.Memory != nil {
		rep.MemoryBytes = *r.Memory
	}
	if r.Connections != nil {
		rep.Connections = *r.Connections
	}
	return rep
}

// Ack converts the wire response into an activity acknowledgement.
func (r ActivityResponse) Ack(seq uint64) core.ActivityAck {
	ok := r.Success == core.StatusSuccess
	if r.Success == "" {
		ok = r.Status == core.StatusSuccess
	}
	return core.ActivityAck{Seq: seq, Message: r.Message, Success: ok}
}

// Details converts the wire response into server details.
func (r DetailsResponse) Details() core.ServerDetails {
	return core.ServerDetails{Name: r.ServerName, UID: r.ServerUID, Port: string(r.Port)}
}
