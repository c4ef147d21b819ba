package cmd

import (
	"fmt"

	"github.com/j19015/blog-stack/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Version information (set at build time via ldflags)
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var (
	logLevel  string
	logFormat string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "blogctl",
	Short: "blogctl - resolve and inspect the blog stack",
	Long: `blogctl works with the topology declaration of the blog stack.

It can:
  - Resolve a declaration into its resource graph without deploying it
  - Report the health of a deployed database and load balancer targets`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "development", "log format (production for JSON, development for console)")
}

// newLogger builds the logger selected by the global flags
func newLogger() (*zap.Logger, error) {
	cfg := logging.DefaultConfig()
	cfg.Level = logLevel
	cfg.Environment = logging.ParseEnvironment(logFormat)
	return logging.NewLogger(cfg)
}

// versionString returns formatted version information
func versionString() string {
	return fmt.Sprintf("blogctl %s (commit: %s, built: %s)",
		Version, Commit, BuildDate)
}
