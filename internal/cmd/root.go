package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/crumbway/crumbway/internal/server"
)

var (
	globalConfig server.Config
	configFile   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "crumbway",
	Short:        "Cookie-preserving rewriting proxy for path-prefixed upstreams",
	SilenceUsage: true,
}

func Execute() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file; flags set explicitly override its values")

	rootCmd.AddCommand(newRunCommand().cmd)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
