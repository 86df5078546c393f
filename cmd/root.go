// Copyright © 2018 The ELPS authors

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	colorFlag string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cljsym",
	Short: "Symbol resolution for Clojure and ClojureScript sources",
	Long: `cljsym resolves the symbols of Clojure, ClojureScript and cljc sources
to the declarations they denote: locals, vars of the same or other
namespaces, aliases, special forms and Java classes, methods and fields.

Getting started:
  cljsym index src/...                      Index a source tree into the stub database
  cljsym resolve src/app/core.clj 12:8      Show what the symbol at 12:8 denotes
  cljsym check src/...                      Report syntax errors and unresolved symbols
  cljsym stub src/app/core.clj              Show the stub recorded for a file
  cljsym explore src                        Query an indexed workspace interactively
  cljsym lsp                                Start the language server

Configuration:
  Settings are read from $HOME/.cljsym.yaml (or --config) and from
  environment variables prefixed with CLJSYM_, with dots replaced by
  underscores.  For example CLJSYM_INDEX_DB sets index.db.

  log.level           zerolog level for messages on stderr (default warn)
  workspace.root      source tree indexed before resolving
  workspace.exclude   glob patterns of workspace paths to skip
  index.db            sqlite database holding file stubs
  cache.size          capacity of the in-memory caches (default 4096)
  hostclasses.file    YAML table of additional host classes
  metrics.addr        listen address of the Prometheus endpoint of lsp`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cljsym.yaml)")
	flags.StringVar(&colorFlag, "color", "auto",
		`Control colored output: "auto", "always", or "never".`)
	flags.String("log-level", "warn", "Log level: debug, info, warn or error.")
	flags.String("workspace", "", "Source tree to index before running the command.")
	flags.StringArray("exclude", nil, "Glob pattern of workspace paths to skip (may be repeated).")
	flags.String("registry-db", "", "Stub database backing the definition registry.")

	bindFlag("log.level", "log-level")
	bindFlag("workspace.root", "workspace")
	bindFlag("workspace.exclude", "exclude")
	bindFlag("index.db", "registry-db")

	viper.SetDefault("log.level", "warn")
	viper.SetDefault("cache.size", 4096)
}

func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}

		// Search config in home directory with name ".cljsym" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".cljsym")
	}

	viper.SetEnvPrefix("cljsym")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// A missing config file is fine; a broken one is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "cljsym: reading config: %v\n", err)
			os.Exit(2)
		}
	}
}
