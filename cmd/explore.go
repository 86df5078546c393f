// Copyright © 2018 The ELPS authors

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/luthersystems/cljsym/repl"
)

var exploreWidth int

// exploreCmd represents the explore command
var exploreCmd = &cobra.Command{
	Use:   "explore [DIR]",
	Short: "Query an indexed workspace interactively",
	Long: `Start an interactive shell over the definitions of a workspace.

DIR (default workspace.root, or the current directory) is indexed first;
stubs already in the database given by --registry-db are available as
well.  Line editing, tab completion of commands, namespaces and files,
and a command history in ~/.cljsym_history are supported via readline.
Use Ctrl-D or quit to exit.

Commands:
  ns NAME                  list the files and definitions of a namespace
  defs NAME                list the definitions named NAME in every namespace
  resolve FILE LINE:COL    show the declarations of the symbol at a position
  visible FILE LINE:COL    list the declarations visible at a position

Example session:
  cljsym> ns app.util
  app.util
    src/app/util.clj
      defn          twice [x]
  cljsym> defs twice
  defn          app.util/twice  src/app/util.clj:3:7
  cljsym> resolve src/app/core.clj 5:6
  note: ` + "`u/twice`" + ` resolves to defn app.util/twice
  ...`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		ws, err := newCmdConfig(nil).openWorkspace(ctx, nil)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer ws.Close() //nolint:errcheck // stubs are committed as they are written

		root := "."
		if len(args) > 0 {
			root = args[0]
		} else if r := viper.GetString("workspace.root"); r != "" {
			root = r
		}
		res, err := ws.scan(ctx, root)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("indexed %d files in %s (help for commands)\n", res.Indexed, root)

		q := &repl.Query{
			Registry: ws.registry,
			Resolver: ws.resolver,
			Width:    exploreWidth,
			Color:    colorMode(),
		}
		if err := repl.Run(ctx, q, "cljsym> "); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(exploreCmd)

	exploreCmd.Flags().IntVar(&exploreWidth, "width", repl.DefaultWidth,
		"Width of declaration listings.")
}
