package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/cockroachdb/errors"
	"github.com/j19015/blog-stack/internal/health"
	"github.com/j19015/blog-stack/internal/logging"
	"go.uber.org/zap"
)

// Event represents the input event for the Lambda function
type Event struct {
	// Empty for EventBridge scheduled events
}

// Response represents the output of the Lambda function
type Response struct {
	OK     bool          `json:"ok"`
	Report health.Report `json:"report"`
}

// checker is the part of health.Checker the handler needs
type checker interface {
	Check(ctx context.Context, target health.Target) (health.Report, error)
}

type reporter struct {
	checker checker
	target  health.Target
	log     *zap.Logger
}

// handle runs one health check and logs the outcome
func (r *reporter) handle(ctx context.Context, _ Event) (Response, error) {
	if r.target.DBInstanceIdentifier == "" && r.target.TargetGroupARN == "" {
		r.log.Warn("nothing to check: DB_INSTANCE_IDENTIFIER and TARGET_GROUP_ARN are unset")
		return Response{OK: true}, nil
	}

	report, err := r.checker.Check(ctx, r.target)
	if err != nil {
		r.log.Error("health check failed", zap.Error(err))
		return Response{}, err
	}

	fields := []zap.Field{
		zap.String("database_status", report.DatabaseStatus),
		zap.Strings("healthy_targets", report.Healthy),
		zap.Strings("unhealthy_targets", report.Unhealthy),
	}
	if report.OK() {
		r.log.Info("stack healthy", fields...)
	} else {
		r.log.Warn("stack unhealthy", fields...)
	}
	return Response{OK: report.OK(), Report: report}, nil
}

// targetFromEnv reads what to check from the function environment
func targetFromEnv() health.Target {
	return health.Target{
		DBInstanceIdentifier: os.Getenv("DB_INSTANCE_IDENTIFIER"),
		TargetGroupARN:       os.Getenv("TARGET_GROUP_ARN"),
	}
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, event Event) (Response, error) {
	logConfig := logging.DefaultConfig()
	logConfig.Environment = logging.ParseEnvironment(os.Getenv("LOG_ENVIRONMENT"))
	logConfig.OutputPaths = []string{"stdout"}
	logger, err := logging.NewLogger(logConfig)
	if err != nil {
		return Response{}, err
	}
	defer logger.Sync() //nolint:errcheck

	// Load AWS configuration
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return Response{}, errors.Wrap(err, "loading AWS config")
	}

	r := &reporter{
		checker: health.NewChecker(cfg, logger),
		target:  targetFromEnv(),
		log:     logger,
	}
	return r.handle(ctx, event)
}

func main() {
	lambda.Start(Handler)
}
