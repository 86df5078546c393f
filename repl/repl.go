// Copyright © 2018 The ELPS authors

// Package repl implements the explore shell, an interactive session that
// queries the definitions and scopes of an indexed workspace.
package repl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ergochat/readline"
)

type config struct {
	stdin   io.ReadCloser
	stdout  io.Writer
	history string
}

func newConfig(opts ...Option) *config {
	config := &config{
		stdout:  os.Stdout,
		history: historyPath(),
	}
	for _, opt := range opts {
		opt(config)
	}
	return config
}

// Option configures the shell.
type Option func(*config)

// WithStdin allows overriding the input to the shell.
func WithStdin(stdin io.ReadCloser) Option {
	return func(c *config) {
		c.stdin = stdin
	}
}

// WithStdout allows overriding the output of the shell.
func WithStdout(stdout io.Writer) Option {
	return func(c *config) {
		c.stdout = stdout
	}
}

// WithHistoryFile sets the file recording the command history.  An empty
// path disables the history file.
func WithHistoryFile(path string) Option {
	return func(c *config) {
		c.history = path
	}
}

// Run reads command lines until EOF or quit and executes them with q.
// Command errors are reported and the session continues.
func Run(ctx context.Context, q *Query, prompt string, opts ...Option) error {
	cfg := newConfig(opts...)
	ensureHistoryFilePermissions(cfg.history)

	rlCfg := &readline.Config{
		Stdout:            cfg.stdout,
		Stderr:            cfg.stdout,
		Prompt:            prompt,
		HistoryFile:       cfg.history,
		HistorySearchFold: true,
		AutoComplete:      &shellCompleter{registry: q.Registry},
	}
	if cfg.stdin != nil {
		rlCfg.Stdin = cfg.stdin
	}
	rl, err := readline.NewEx(rlCfg)
	if err != nil {
		return fmt.Errorf("starting shell: %w", err)
	}
	defer rl.Close() //nolint:errcheck // best-effort cleanup

	for {
		line, err := rl.ReadSlice()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return nil
		}
		line = bytes.TrimSpace(line)
		switch string(line) {
		case "":
			continue
		case "quit", "exit":
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := q.Exec(ctx, cfg.stdout, string(line)); err != nil {
			fmt.Fprintf(cfg.stdout, "error: %v\n", err) //nolint:errcheck // best-effort error display
		}
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cljsym_history")
}

// ensureHistoryFilePermissions creates the history file readable only by
// its owner, or restricts an existing one.
func ensureHistoryFilePermissions(path string) {
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path from the user's home
	if err != nil {
		return
	}
	_ = f.Close()
	_ = os.Chmod(path, 0o600)
}
