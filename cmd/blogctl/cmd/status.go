package cmd

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/cockroachdb/errors"
	"github.com/j19015/blog-stack/internal/health"
	"github.com/spf13/cobra"
)

var (
	statusDBInstance     string
	statusTargetGroupARN string
	statusRegion         string
)

// ErrUnhealthy is returned by status when a checked component is not serving.
var ErrUnhealthy = errors.New("stack is unhealthy")

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show deployed stack health",
	Long: `Display the status of the deployed database and the health of the load
balancer targets. Exits non-zero when anything checked is not serving.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusDBInstance, "db-instance", "", "RDS DB instance identifier")
	statusCmd.Flags().StringVar(&statusTargetGroupARN, "target-group-arn", "", "load balancer target group ARN")
	statusCmd.Flags().StringVar(&statusRegion, "region", "", "AWS region (defaults to the environment)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if statusDBInstance == "" && statusTargetGroupARN == "" {
		return errors.New("at least one of --db-instance or --target-group-arn is required")
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	var opts []func(*config.LoadOptions) error
	if statusRegion != "" {
		opts = append(opts, config.WithRegion(statusRegion))
	}
	cfg, err := config.LoadDefaultConfig(cmd.Context(), opts...)
	if err != nil {
		return errors.Wrap(err, "loading AWS config")
	}

	checker := health.NewChecker(cfg, logger)
	report, err := checker.Check(cmd.Context(), health.Target{
		DBInstanceIdentifier: statusDBInstance,
		TargetGroupARN:       statusTargetGroupARN,
	})
	if err != nil {
		return err
	}
	return writeReport(cmd, report)
}

// writeReport prints report and returns ErrUnhealthy when it is not OK.
func writeReport(cmd *cobra.Command, report health.Report) error {
	out := cmd.OutOrStdout()
	if report.DatabaseStatus != "" {
		fmt.Fprintf(out, "Database: %s (%s)\n", report.DatabaseStatus, report.DatabaseEndpoint)
	}
	if len(report.Healthy) > 0 || len(report.Unhealthy) > 0 {
		fmt.Fprintf(out, "Healthy targets: %s\n", joinOrNone(report.Healthy))
		fmt.Fprintf(out, "Unhealthy targets: %s\n", joinOrNone(report.Unhealthy))
	}
	if !report.OK() {
		return ErrUnhealthy
	}
	fmt.Fprintln(out, "OK")
	return nil
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
