// Package cli wires the depio command-line surface, mirroring the
// teacher's own cobra root-command layering (persistent flags bound
// once on the root, subcommands reading them back via viper-backed
// config).
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	envFilePath string
	verbose     bool
)

// NewRootCommand builds the depio root command and its subcommands.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "depio",
		Short:         "depio runs a dependency-aware task pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a pipeline config file (YAML/JSON/TOML)")
	root.PersistentFlags().StringVar(&envFilePath, "env-file", ".env", "path to an optional .env file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newRunCommand())
	return root
}

// Execute builds and runs the root command, returning its error
// wrapped with a "depio: " prefix so main can print it and decide the
// process exit code.
func Execute() error {
	if err := NewRootCommand().Execute(); err != nil {
		return fmt.Errorf("depio: %w", err)
	}
	return nil
}
