package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/modoterra/svconsole/pkg/console"
)

// Config configures the interactive loop.
type Config struct {
	HistoryFile string
	Stdin       io.ReadCloser
	Stdout      io.Writer
	Stderr      io.Writer
}

func completer() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(console.KnownCommands)+len(LocalCommands))
	for _, c := range console.KnownCommands {
		items = append(items, readline.PcItem(c))
	}
	for _, c := range LocalCommands {
		if c == "/activity" {
			acts := make([]readline.PrefixCompleterInterface, 0, len(console.Activities))
			for _, a := range console.Activities {
				acts = append(acts, readline.PcItem(a))
			}
			items = append(items, readline.PcItem(c, acts...))
			continue
		}
		items = append(items, readline.PcItem(c))
	}
	return readline.NewPrefixCompleter(items...)
}

// Run starts the session and reads lines until EOF, /quit or ctx is done.
func Run(ctx context.Context, s *Session, cfg Config) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            s.Prompt(),
		HistoryFile:       cfg.HistoryFile,
		AutoComplete:      completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             cfg.Stdin,
		Stdout:            cfg.Stdout,
		Stderr:            cfg.Stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	s.SetOutput(rl.Stdout())
	s.credentials = func() (string, string, error) {
		defer rl.SetPrompt(s.Prompt())
		rl.SetPrompt("username: ")
		user, err := rl.Readline()
		if err != nil {
			return "", "", err
		}
		pass, err := rl.ReadPassword("password: ")
		if err != nil {
			return "", "", err
		}
		return strings.TrimSpace(user), string(pass), nil
	}
	s.confirm = func(question string) bool {
		defer rl.SetPrompt(s.Prompt())
		rl.SetPrompt(question + " [y/N] ")
		answer, err := rl.Readline()
		if err != nil {
			return false
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}
	s.OnChange(func() {
		rl.SetPrompt(s.Prompt())
		rl.Refresh()
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fmt.Fprintln(rl.Stdout(), "Type /help for local commands, 'help' for server commands. Use TAB for completion.")
	s.Start(ctx)
	rl.SetPrompt(s.Prompt())

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		} else if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		if err := s.Submit(ctx, line); errors.Is(err, ErrQuit) {
			return nil
		}
		rl.SetPrompt(s.Prompt())
	}
}
