// Copyright © 2024 The ELPS authors

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/reflow/padding"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/parser"
	"github.com/luthersystems/cljsym/repl"
	"github.com/luthersystems/cljsym/stub"
)

var stubFresh bool

var stubCmd = &cobra.Command{
	Use:   "stub [flags] FILE",
	Short: "Print the stub of a source file",
	Long: `Print the stub of a source file: its namespace and the definitions other
files can resolve to, with their prototypes and tags.

The stub stored in the database given by --registry-db (or index.db) is
printed when there is one.  Otherwise, or with --fresh, FILE is analyzed
and its stub encoded and decoded again, so the output shows exactly what
would be stored.

Examples:
  cljsym stub src/app/core.clj
  cljsym stub --registry-db .cljsym.db src/app/core.clj`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runStub(cmd.Context(), os.Stdout, args[0]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func runStub(ctx context.Context, w io.Writer, path string) error {
	s, source, err := loadStub(ctx, path)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", s.Path)
	fmt.Fprintf(&b, "  namespace %s (schema v%d, %d bytes, %s)\n",
		s.Namespace, stub.Version, len(s.Marshal()), source)
	for _, d := range s.Definitions {
		typ := d.Key.Type
		if d.Meta[analysis.MetaSynthetic] == "true" {
			typ += "*"
		}
		fmt.Fprintf(&b, "  %s%s\n", padding.String(typ+" ", 14), repl.Signature(d))
	}
	_, err = io.WriteString(w, b.String())
	return err
}

// loadStub returns the stub of path and where it came from.
func loadStub(ctx context.Context, path string) (*stub.Stub, string, error) {
	if db := viper.GetString("index.db"); db != "" && !stubFresh {
		store, err := stub.OpenStore(db)
		if err != nil {
			return nil, "", err
		}
		defer store.Close() //nolint:errcheck // read-only use
		s, err := store.Load(ctx, path)
		if err == nil {
			return s, "stored", nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, "", err
		}
	}
	tree, err := parser.ParseFile(path)
	if err != nil {
		return nil, "", err
	}
	st, err := analysis.AssignRoles(ctx, tree)
	if err != nil {
		return nil, "", err
	}
	s, err := stub.Unmarshal(path, stub.FromState(st).Marshal())
	if err != nil {
		return nil, "", err
	}
	return s, "analyzed", nil
}

func init() {
	rootCmd.AddCommand(stubCmd)

	stubCmd.Flags().BoolVar(&stubFresh, "fresh", false,
		"Analyze FILE even when the database holds its stub.")
}
