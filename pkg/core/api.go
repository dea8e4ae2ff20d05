package core

import "context"

// API is the remote server as seen by the console.
type API interface {
	// Execute sends a command and its arguments to the command endpoint.
	Execute(ctx context.Context, command string, args []string) (CommandResult, error)

	// Status fetches server metrics and the session's authentication outcome.
	Status(ctx context.Context) (StatusReport, error)

	// ReportActivity sends a server-control activity (start, stop, reboot, ...).
	ReportActivity(ctx context.Context, activity string) (ActivityAck, error)

	// Details fetches the server's name and identity.
	Details(ctx context.Context) (ServerDetails, error)
}
