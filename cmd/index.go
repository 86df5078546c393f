// Copyright © 2024 The ELPS authors

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ErrNoDatabase is returned by commands that need a stub database when
// none is configured.
var ErrNoDatabase = errors.New("no stub database configured (set --registry-db or index.db)")

var indexPrune bool

var indexCmd = &cobra.Command{
	Use:   "index [flags] DIR/... | FILE...",
	Short: "Index source files into the stub database",
	Long: `Analyze source files and store their stubs in the database given by
--registry-db (or index.db).  A stub records the namespace of a file and
its definitions; resolve, check, explore and lsp read stubs instead of
re-analyzing files that are not open.

An argument ending in "/..." indexes every source file below that
directory, skipping hidden directories and paths matching --exclude.
Files that cannot be read or analyzed are reported and skipped.

With --prune, stubs of files that no longer exist are removed.

Examples:
  cljsym index --registry-db .cljsym.db src/...
  cljsym index --registry-db .cljsym.db --exclude target ./...
  cljsym index --registry-db .cljsym.db --prune src/app/core.clj`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runIndex(cmd.Context(), os.Stdout, args); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func runIndex(ctx context.Context, w io.Writer, args []string) error {
	if viper.GetString("index.db") == "" {
		return ErrNoDatabase
	}
	ws, err := newCmdConfig(nil).openWorkspace(ctx, nil)
	if err != nil {
		return err
	}
	defer ws.Close() //nolint:errcheck // writes are committed per stub

	var indexed, failed int
	for _, arg := range args {
		if dir, ok := strings.CutSuffix(arg, "/..."); ok {
			if dir == "" {
				dir = "."
			}
			res, err := ws.scan(ctx, dir)
			if err != nil {
				return err
			}
			indexed += res.Indexed
			failed += res.Failed
			continue
		}
		if err := ws.registry.AddFile(ctx, arg); err != nil {
			ws.log.Warn().Err(err).Str("file", arg).Msg("skipping file")
			failed++
			continue
		}
		indexed++
	}

	var pruned int
	if indexPrune {
		for _, path := range ws.registry.Files() {
			if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err := ws.registry.Remove(ctx, path); err != nil {
				return err
			}
			pruned++
		}
	}

	fmt.Fprintf(w, "indexed %d files", indexed) //nolint:errcheck
	if failed > 0 {
		fmt.Fprintf(w, ", %d failed", failed) //nolint:errcheck
	}
	if pruned > 0 {
		fmt.Fprintf(w, ", %d pruned", pruned) //nolint:errcheck
	}
	fmt.Fprintf(w, " (%d in %s)\n", ws.registry.Len(), viper.GetString("index.db")) //nolint:errcheck
	return nil
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().BoolVar(&indexPrune, "prune", false,
		"Remove stubs of files that no longer exist.")
}
