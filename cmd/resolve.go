// Copyright © 2024 The ELPS authors

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/luthersystems/cljsym/repl"
)

// ResolveCommand creates the "resolve" cobra command.  Embedders can pass
// WithClassTable to resolve against their own host classes.
func ResolveCommand(opts ...Option) *cobra.Command {
	cfg := newCmdConfig(opts)

	return &cobra.Command{
		Use:   "resolve FILE LINE:COL",
		Short: "Show the declarations a symbol denotes",
		Long: `Show the declarations denoted by the symbol or keyword at a 1-based
LINE:COL of FILE.

The symbol is resolved against FILE, the workspace given by --workspace (or
workspace.root), the stubs of the database given by --registry-db (or
index.db), the core namespaces and the host class table.  Each declaration
is printed with the source of its declaring name when that is readable.

Examples:
  cljsym resolve src/app/core.clj 12:8
  cljsym resolve --workspace src src/app/core.clj 12:8
  cljsym resolve --registry-db .cljsym.db src/app/core.clj 3:2`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			if err := cfg.resolve(cmd.Context(), os.Stdout, args[0], args[1]); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		},
	}
}

func (c *cmdConfig) resolve(ctx context.Context, w io.Writer, file, pos string) error {
	line, col, err := repl.ParsePosition(pos)
	if err != nil {
		return err
	}
	ws, err := c.openWorkspace(ctx, nil)
	if err != nil {
		return err
	}
	defer ws.Close() //nolint:errcheck // read-only use
	if _, err := ws.scan(ctx, ""); err != nil {
		return err
	}
	q := &repl.Query{Registry: ws.registry, Resolver: ws.resolver, Color: colorMode()}
	return q.Resolve(ctx, w, file, line, col)
}

func init() {
	rootCmd.AddCommand(ResolveCommand())
}
