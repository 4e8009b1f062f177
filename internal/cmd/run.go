package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crumbway/crumbway/internal/server"
)

type runCommand struct {
	cmd              *cobra.Command
	debugLogsEnabled bool
}

func newRunCommand() *runCommand {
	runCommand := &runCommand{}
	runCommand.cmd = &cobra.Command{
		Use:   "run",
		Short: "Run the proxy",
		RunE:  runCommand.run,
	}

	runCommand.cmd.Flags().BoolVar(&runCommand.debugLogsEnabled, "debug", getEnvBool("DEBUG", false), "Include debugging logs")
	runCommand.cmd.Flags().StringVar(&globalConfig.Bind, "bind", getEnvString("BIND", ""), "Address to bind the listeners to")
	runCommand.cmd.Flags().IntVar(&globalConfig.HttpPort, "http-port", getEnvInt("HTTP_PORT", server.DefaultHttpPort), "Port to serve HTTP traffic on")
	runCommand.cmd.Flags().IntVar(&globalConfig.MetricsPort, "metrics-port", getEnvInt("METRICS_PORT", 0), "Publish metrics on the specified port (default zero to disable)")
	runCommand.cmd.Flags().StringVar(&globalConfig.Prefix, "prefix", getEnvString("PREFIX", server.DefaultPrefix), "Local path prefix that upstream URLs are nested under")
	runCommand.cmd.Flags().StringSliceVar(&globalConfig.RewriteContentTypes, "rewrite-content-types", getEnvStrings("REWRITE_CONTENT_TYPES", nil), "Content types eligible for link rewriting")

	return runCommand
}

func (c *runCommand) run(cmd *cobra.Command, args []string) error {
	c.setLogger()

	err := c.mergeConfigFile(cmd)
	if err != nil {
		return err
	}

	err = globalConfig.Validate()
	if err != nil {
		return err
	}

	s := server.NewServer(&globalConfig)
	err = s.Start()
	if err != nil {
		return err
	}
	defer s.Stop()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	<-ch

	return nil
}

// mergeConfigFile fills in values from the YAML config file for any flag the
// user did not set explicitly.
func (c *runCommand) mergeConfigFile(cmd *cobra.Command) error {
	if configFile == "" {
		return nil
	}

	fileConfig, err := server.LoadConfig(configFile)
	if err != nil {
		return err
	}

	if !cmd.Flags().Changed("bind") && fileConfig.Bind != "" {
		globalConfig.Bind = fileConfig.Bind
	}
	if !cmd.Flags().Changed("http-port") && fileConfig.HttpPort != 0 {
		globalConfig.HttpPort = fileConfig.HttpPort
	}
	if !cmd.Flags().Changed("metrics-port") && fileConfig.MetricsPort != 0 {
		globalConfig.MetricsPort = fileConfig.MetricsPort
	}
	if !cmd.Flags().Changed("prefix") && fileConfig.Prefix != "" {
		globalConfig.Prefix = fileConfig.Prefix
	}
	if !cmd.Flags().Changed("rewrite-content-types") && len(fileConfig.RewriteContentTypes) > 0 {
		globalConfig.RewriteContentTypes = fileConfig.RewriteContentTypes
	}

	return nil
}

func (c *runCommand) setLogger() {
	level := slog.LevelInfo
	if c.debugLogsEnabled {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}
