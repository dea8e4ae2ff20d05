package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/modoterra/svconsole/internal/buildinfo"
	"github.com/modoterra/svconsole/internal/logging"
	"github.com/modoterra/svconsole/pkg/cmdline"
	"github.com/modoterra/svconsole/pkg/config"
	"github.com/modoterra/svconsole/pkg/console"
	"github.com/modoterra/svconsole/pkg/core"
	"github.com/modoterra/svconsole/pkg/repl"
	"github.com/modoterra/svconsole/pkg/transport/httpapi"
	tuimodel "github.com/modoterra/svconsole/pkg/tui/model"
)

var (
	serverURL  string
	configPath string
	logLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "svconsole",
	Short:        "Operator console for a remote server controller",
	Long:         "svconsole sends commands to a server controller's HTTP API, shows its status and log, and triggers server-control activities.",
	RunE:         runTUI,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "controller URL (overrides config and $"+config.EnvServer+")")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file layered over the user and project files")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "diagnostic log level: debug, info, warn, error")

	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(tokenizeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// --- Shared setup ---

// loadSettings resolves the effective configuration.
func loadSettings() (*config.Config, error) {
	c, _, err := config.Resolve(config.Overrides{File: configPath, Server: serverURL})
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if errs := config.Validate(c); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return c, nil
}

// newLogger builds the diagnostic logger. Interactive modes own the
// terminal, so their diagnostics go to the log file or nowhere.
func newLogger(c *config.Config, interactive bool, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	return logging.New(logging.Options{
		Level:    c.Log.Level,
		File:     c.Log.File,
		Journald: c.Log.Journald,
		TUI:      interactive,
		Output:   stderr,
	})
}

func newClient(c *config.Config, logger *slog.Logger) (*httpapi.Client, error) {
	client, err := httpapi.New(c.Server.URL,
		httpapi.WithTimeout(c.Server.Timeout),
		httpapi.WithLogger(logger.With("server", c.Server.URL)),
	)
	if err != nil {
		return nil, fmt.Errorf("cannot use server %s: %w", c.Server.URL, err)
	}
	return client, nil
}

// setup is the common prologue of every command that talks to the server.
func setup(cmd *cobra.Command, interactive bool) (*config.Config, *slog.Logger, *httpapi.Client, func(), error) {
	c, err := loadSettings()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger, closer, err := newLogger(c, interactive, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, nil, nil, err
	}
	client, err := newClient(c, logger)
	if err != nil {
		closer.Close()
		return nil, nil, nil, nil, err
	}
	logger.Debug("starting", "command", cmd.Name(), "version", buildinfo.Version)
	return c, logger, client, func() { closer.Close() }, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// --- Root: TUI ---

func runTUI(cmd *cobra.Command, _ []string) error {
	c, logger, client, done, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer done()

	app := tuimodel.New(tuimodel.Options{
		API:            client,
		ServerURL:      c.Server.URL,
		PollInterval:   c.Poll.Interval,
		NotifyDuration: c.UI.NotifyDuration,
		AutoScroll:     c.UI.AutoScroll,
		Logger:         logger,
	})
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// --- REPL ---

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Line-mode console with history and completion",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, logger, client, done, err := setup(cmd, true)
		if err != nil {
			return err
		}
		defer done()

		history := c.REPL.HistoryFile
		if history == "" {
			if p, err := config.UserDataPath("history"); err == nil {
				history = p
			}
		}

		ctx, cancel := signalContext()
		defer cancel()

		s := repl.NewSession(repl.Options{
			API:          client,
			PollInterval: c.Poll.Interval,
			AutoScroll:   c.UI.AutoScroll,
			Logger:       logger,
		})
		return repl.Run(ctx, s, repl.Config{HistoryFile: history})
	},
}

// --- Login helpers ---

var (
	loginUser     string
	passwordStdin bool
)

func addLoginFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&loginUser, "user", "", "log in as this user first")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from the first line of stdin")
}

// maybeLogin logs in when --user was given.
func maybeLogin(ctx context.Context, cmd *cobra.Command, client core.API) error {
	if loginUser == "" {
		return nil
	}
	if !passwordStdin {
		return errors.New("--user requires --password-stdin")
	}
	pass, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read password: %w", err)
	}
	pass = strings.TrimRight(pass, "\r\n")
	if pass == "" {
		return errors.New("empty password on stdin")
	}

	res, err := client.Execute(ctx, console.CmdLogin, []string{loginUser, pass})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if !res.Success() {
		return fmt.Errorf("login: %s", strings.Join(res.Lines, "; "))
	}
	return nil
}

func printEntries(w io.Writer, entries []core.LogEntry) {
	for _, e := range entries {
		prefix := ""
		if e.Severity != core.SeverityInfo && e.Severity != core.SeveritySuccess {
			prefix = string(e.Severity) + ": "
		}
		for _, line := range e.Lines {
			fmt.Fprintln(w, prefix+line)
		}
	}
}

// --- Exec ---

var execCmd = &cobra.Command{
	Use:   "exec [flags] -- <command line>",
	Short: "Send one command and print the answer",
	Long: `Send one command to the server. A single argument is tokenized with
shell-like quoting; several arguments are sent as they are.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, client, done, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer done()

		var inv console.Invocation
		if len(args) == 1 {
			inv, err = console.ParseInvocation(args[0])
			if err != nil {
				return err
			}
		} else {
			inv = console.Invocation{Name: args[0], Args: args[1:]}
		}

		ctx, cancel := signalContext()
		defer cancel()
		if err := maybeLogin(ctx, cmd, client); err != nil {
			return err
		}

		res, err := client.Execute(ctx, inv.Name, inv.Args)
		state := console.NewState(nil)
		state.CommandDone(inv, res, err)
		printEntries(cmd.OutOrStdout(), state.Log.Entries())
		if err != nil || !res.Success() {
			return fmt.Errorf("command %s failed", inv.Name)
		}
		return nil
	},
}

func init() {
	addLoginFlags(execCmd)
}

// --- Status ---

var statusJSON bool

type statusOutput struct {
	Online        bool      `json:"online"`
	Authenticated bool      `json:"authenticated"`
	Username      string    `json:"username,omitempty"`
	Message       string    `json:"message,omitempty"`
	Port          string    `json:"port,omitempty"`
	StartTime     time.Time `json:"start_time,omitzero"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryBytes   uint64    `json:"memory_bytes"`
	Connections   int       `json:"connections"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, _, client, done, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer done()

		ctx, cancel := signalContext()
		defer cancel()
		if err := maybeLogin(ctx, cmd, client); err != nil {
			return err
		}

		rep, err := client.Status(ctx)
		state := console.NewState(nil)
		state.StatusDone(rep, err)

		out := cmd.OutOrStdout()
		if statusJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			o := statusOutput{
				Online:        state.Server.Online,
				Authenticated: state.Auth.Authenticated,
				Username:      state.Auth.Username,
				Port:          state.Server.Port,
				StartTime:     state.Server.StartTime,
				CPUPercent:    state.Server.CPUPercent,
				MemoryBytes:   state.Server.MemoryBytes,
				Connections:   state.Server.Connections,
			}
			if err != nil {
				o.Message = err.Error()
			} else if !rep.OK {
				o.Message = rep.Message
			}
			if encErr := enc.Encode(o); encErr != nil {
				return encErr
			}
			if err != nil {
				return fmt.Errorf("server unreachable")
			}
			return nil
		}

		if err != nil {
			return fmt.Errorf("server unreachable: %w", err)
		}
		v := state.ServerView()
		fmt.Fprintf(out, "%-12s %s\n", "STATUS", v.Status)
		fmt.Fprintf(out, "%-12s %s\n", "AUTH", state.AuthView().Label)
		if !rep.OK {
			if rep.Message != "" {
				fmt.Fprintf(out, "%-12s %s\n", "MESSAGE", rep.Message)
			}
			return nil
		}
		fmt.Fprintf(out, "%-12s %s\n", "PORT", v.Port)
		fmt.Fprintf(out, "%-12s %s\n", "UPTIME", v.Uptime)
		fmt.Fprintf(out, "%-12s %s\n", "CPU", v.CPU)
		fmt.Fprintf(out, "%-12s %s\n", "MEMORY", v.Memory)
		fmt.Fprintf(out, "%-12s %s\n", "CONNECTIONS", v.Connections)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	addLoginFlags(statusCmd)
}

// --- Activity ---

var activityYes bool

var activityCmd = &cobra.Command{
	Use:       "activity <" + strings.Join(console.Activities, "|") + ">",
	Short:     "Trigger a server-control activity",
	Args:      cobra.ExactArgs(1),
	ValidArgs: console.Activities,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		known := false
		for _, a := range console.Activities {
			known = known || a == name
		}
		if !known {
			return fmt.Errorf("unknown activity %q (available: %s)", name, strings.Join(console.Activities, ", "))
		}
		if console.DangerousActivities[name] && !activityYes {
			return fmt.Errorf("%s needs --yes", name)
		}

		_, _, client, done, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer done()

		ctx, cancel := signalContext()
		defer cancel()
		if err := maybeLogin(ctx, cmd, client); err != nil {
			return err
		}

		ack, err := client.ReportActivity(ctx, name)
		state := console.NewState(nil)
		state.ActivityDone(name, ack, err)
		printEntries(cmd.OutOrStdout(), state.Log.Entries())
		if err != nil || !ack.Success {
			return fmt.Errorf("activity %s failed", name)
		}
		return nil
	},
}

func init() {
	activityCmd.Flags().BoolVar(&activityYes, "yes", false, "confirm shutdown or reboot")
	addLoginFlags(activityCmd)
}

// --- Tokenize ---

var tokenizeCmd = &cobra.Command{
	Use:   "tokenize <line>",
	Short: "Show how a command line is split into arguments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens, err := cmdline.Split(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i, tok := range tokens {
			fmt.Fprintf(out, "%d\t%s\n", i, cmdline.Quote(tok))
		}
		return nil
	},
}

// --- Config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the svconsole configuration",
}

var (
	configInitOutput string
	configInitForce  bool
)

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := configInitOutput
		if path == "" {
			p, err := config.UserConfigPath()
			if err != nil {
				return err
			}
			path = p
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		c := config.Default()
		if serverURL != "" {
			c.Server.URL = serverURL
		}
		if err := config.Save(path, c); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a config file, or the effective configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			c    *config.Config
			name = "effective configuration"
			err  error
		)
		if len(args) > 0 {
			name = args[0]
			c, err = config.Load(args[0])
		} else {
			c, _, err = config.Resolve(config.Overrides{File: configPath, Server: serverURL})
		}
		if err != nil {
			return err
		}

		errs := config.Validate(c)
		if len(errs) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid\n", name)
			return nil
		}
		w := cmd.ErrOrStderr()
		fmt.Fprintf(w, "%s: %d error(s)\n", name, len(errs))
		for _, e := range errs {
			fmt.Fprintf(w, "  • %s\n", e)
		}
		return fmt.Errorf("%s is invalid", name)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, sources, err := config.Resolve(config.Overrides{File: configPath, Server: serverURL})
		if err != nil {
			return err
		}
		data, err := config.Marshal(c)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, s := range sources {
			fmt.Fprintf(out, "# from %s\n", s)
		}
		_, err = out.Write(data)
		return err
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configInitOutput, "output", "", "output file path (default: user config file)")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}

// --- Version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "svconsole %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	},
}
