// Copyright © 2024 The ELPS authors

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/diagnostic"
	"github.com/luthersystems/cljsym/form"
	"github.com/luthersystems/cljsym/parser"
)

var checkSyntaxOnly bool

var checkCmd = &cobra.Command{
	Use:   "check [flags] [files...]",
	Short: "Report syntax errors and unresolved symbols",
	Long: `Report syntax errors and unresolved symbols in Clojure sources.

Every file is read and its symbols resolved against the other files given,
the workspace (--workspace or workspace.root), the stub database
(--registry-db or index.db) and the core namespaces.  Qualified symbols are
not reported since their namespace is often outside the workspace.

With no files, reads a single source from stdin.  An argument ending in
"/..." stands for every source file below that directory.

Exit codes:
  0  No problems found
  1  One or more problems were reported
  2  Bad invocation (invalid flags, unreadable files)

Examples:
  cljsym check src/app/core.clj                  # Check a single file
  cljsym check src/...                           # Check a source tree
  cljsym check --exclude='target' ./...          # Skip a directory
  cljsym check --syntax-only src/...             # Only report syntax errors
  cat core.clj | cljsym check                    # Check stdin`,
	Run: func(cmd *cobra.Command, args []string) {
		n, err := runCheck(cmd.Context(), os.Stderr, args, os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		if n > 0 {
			os.Exit(1)
		}
	},
}

// runCheck renders the problems of the files at args, or of stdin when
// args is empty, to w and returns how many it found.
func runCheck(ctx context.Context, w io.Writer, args []string, stdin io.Reader) (int, error) {
	var trees []*form.Tree
	if len(args) == 0 {
		src, err := io.ReadAll(stdin)
		if err != nil {
			return 0, fmt.Errorf("reading stdin: %w", err)
		}
		trees = append(trees, parser.Parse("<stdin>", string(src)))
	} else {
		paths, err := expandArgs(args, viper.GetStringSlice("workspace.exclude"))
		if err != nil {
			return 0, err
		}
		for _, path := range paths {
			tree, err := parser.ParseFile(path)
			if err != nil {
				return 0, err
			}
			trees = append(trees, tree)
		}
	}

	ws, err := newCmdConfig(nil).openWorkspace(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer ws.Close() //nolint:errcheck // read-only use
	if _, err := ws.scan(ctx, ""); err != nil {
		return 0, err
	}

	// Index every checked file first so that they resolve against each
	// other regardless of order.
	states := make([]*analysis.State, 0, len(trees))
	for _, tree := range trees {
		st, err := analysis.AssignRoles(ctx, tree)
		if err != nil {
			return 0, err
		}
		if err := ws.registry.AddState(ctx, st); err != nil {
			return 0, err
		}
		states = append(states, st)
	}

	var diags []diagnostic.Diagnostic
	for _, st := range states {
		if checkSyntaxOnly {
			diags = append(diags, fileDiagnostics(ctx, st, nil)...)
		} else {
			diags = append(diags, fileDiagnostics(ctx, st, ws.resolver)...)
		}
	}
	if len(diags) == 0 {
		return 0, nil
	}
	if err := renderDiagnostics(w, diags, trees...); err != nil {
		return len(diags), err
	}
	return len(diags), nil
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().BoolVar(&checkSyntaxOnly, "syntax-only", false,
		"Report syntax errors only.")
}
