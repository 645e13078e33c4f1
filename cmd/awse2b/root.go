package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/awse2b/awse2b/logging"
)

var rootCmd = &cobra.Command{
	Use:   "awse2b",
	Short: "Build e2b templates backed by Amazon ECR",
	Long: `awse2b builds or pulls a container image, publishes it to Amazon ECR,
and runs the e2b template build against the published image.

Commands not listed here are forwarded to the e2b CLI with credentials
injected from ~/.aws_e2b/config.toml and the environment.`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initLogging,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json, color)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Quiet mode - only show errors")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose mode - show debug output")

	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(versionCmd)
}

// initLogging configures the package-level logger from the persistent flags
// before any subcommand runs.
func initLogging(cmd *cobra.Command, args []string) error {
	flags := cmd.Root().PersistentFlags()
	logLevel, _ := flags.GetString("log-level")
	logFormat, _ := flags.GetString("log-format")
	quiet, _ := flags.GetBool("quiet")
	verbose, _ := flags.GetBool("verbose")

	logging.Initialize(logLevel, logFormat, quiet, verbose)
	return nil
}

// Execute runs the root command with the given context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
