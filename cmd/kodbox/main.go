package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/kodbox/internal/config"
	"github.com/vango-dev/kodbox/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	backend    string
	session    string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "kodbox",
		Short: "Reactive key/value state with a durable mirror",
		Long: `kodbox keeps a shared key/value state object, notifies subscribers
on every change, and mirrors the state into a durable slot so that a fresh
process can recover it.

Mirror backends: memory, sqlite, postgres, mysql, redis, s3.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", config.ConfigFileName, "Config file (JSON or YAML)")
	flags.StringVarP(&opts.backend, "backend", "b", "", "Mirror backend (default from config)")
	flags.StringVar(&opts.session, "session", "", "Session that scopes the mirror slot")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		serveCmd(opts),
		getCmd(opts),
		setCmd(opts),
		rmCmd(opts),
		clearCmd(opts),
		inspectCmd(opts),
		versionCmd(),
	)

	return rootCmd
}

// success prints a success message.
func success(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", fmt.Sprintf(format, args...))
}
