package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/magicbot/signal-rpm-packager/internal/errdefs"
	"github.com/magicbot/signal-rpm-packager/internal/utils/logger"
)

// Persistent command flags
var (
	configFile string
	logLevel   string
	verbose    bool
)

func main() {
	root := createRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

// createRootCommand builds the command tree.
func createRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "signal-rpm-packager",
		Short: "builds the magicbot and signal-cli RPM packages",
		Long: `signal-rpm-packager automates RPM packaging for the magicbot
daemon and the upstream signal-cli tool: it resolves the version to
package, downloads and normalizes release artifacts, injects the
architecture-matched libsignal native library, renders the spec file,
and invokes rpmbuild against the staged source tree.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "shorthand for --log-level debug")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errdefs.ErrUnknownArgument, err)
	})

	root.AddCommand(createBuildCommand())
	attachLoggingHooks(root)
	return root
}

// resolveRequestedLogLevel prefers an explicit --log-level; otherwise a
// set --verbose flag maps to debug.
func resolveRequestedLogLevel(cmd *cobra.Command) string {
	if logLevel != "" {
		return logLevel
	}
	if cmd != nil {
		if f := cmd.Flags().Lookup("verbose"); f != nil && f.Changed && f.Value.String() == "true" {
			return "debug"
		}
	}
	return ""
}

// attachLoggingHooks installs a logger-initializing pre-run hook on
// every command in the tree.
func attachLoggingHooks(root *cobra.Command) {
	hook := func(cmd *cobra.Command, args []string) error {
		return logger.InitWithLevel(resolveRequestedLogLevel(cmd))
	}
	root.PersistentPreRunE = hook
	for _, cmd := range root.Commands() {
		cmd.PersistentPreRunE = hook
	}
}
