// Package health reports whether a deployed blog stack is serving: the
// database status and the health of every load-balancer target.
package health

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// ErrDatabaseNotFound is returned when the database identifier matches no
// instance.
var ErrDatabaseNotFound = errors.New("database instance not found")

const statusAvailable = "available"

// RDSAPI is the part of the RDS client the checker uses.
type RDSAPI interface {
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
}

// TargetHealthAPI is the part of the ELBv2 client the checker uses.
type TargetHealthAPI interface {
	DescribeTargetHealth(ctx context.Context, params *elbv2.DescribeTargetHealthInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeTargetHealthOutput, error)
}

// Target names the deployed resources to check. Empty fields are skipped.
type Target struct {
	DBInstanceIdentifier string
	TargetGroupARN       string
}

// Report is the outcome of one check.
type Report struct {
	DatabaseStatus   string   `json:"databaseStatus,omitempty"`
	DatabaseEndpoint string   `json:"databaseEndpoint,omitempty"`
	Healthy          []string `json:"healthyTargets,omitempty"`
	Unhealthy        []string `json:"unhealthyTargets,omitempty"`

	// CheckedDatabase and CheckedTargets record which parts were checked, so
	// a decoded Report gives the same OK as the original.
	CheckedDatabase bool `json:"checkedDatabase"`
	CheckedTargets  bool `json:"checkedTargets"`
}

// OK reports whether every checked component is serving.
func (r Report) OK() bool {
	if r.CheckedDatabase && r.DatabaseStatus != statusAvailable {
		return false
	}
	if r.CheckedTargets && (len(r.Unhealthy) > 0 || len(r.Healthy) == 0) {
		return false
	}
	return true
}

type Checker struct {
	RDS RDSAPI
	ELB TargetHealthAPI
	Log *zap.Logger
}

// NewChecker builds a Checker from an AWS configuration.
func NewChecker(cfg aws.Config, logger *zap.Logger) *Checker {
	return &Checker{
		RDS: rds.NewFromConfig(cfg),
		ELB: elbv2.NewFromConfig(cfg),
		Log: logger,
	}
}

// Check describes the database and the target group of target.
func (c *Checker) Check(ctx context.Context, target Target) (Report, error) {
	var report Report
	logger := c.Log
	if logger == nil {
		logger = zap.NewNop()
	}

	if target.DBInstanceIdentifier != "" {
		status, endpoint, err := c.databaseStatus(ctx, target.DBInstanceIdentifier)
		if err != nil {
			return Report{}, err
		}
		report.DatabaseStatus = status
		report.DatabaseEndpoint = endpoint
		report.CheckedDatabase = true
		logger.Info("database status",
			zap.String("db_instance", target.DBInstanceIdentifier),
			zap.String("status", status))
	}

	if target.TargetGroupARN != "" {
		out, err := c.ELB.DescribeTargetHealth(ctx, &elbv2.DescribeTargetHealthInput{
			TargetGroupArn: aws.String(target.TargetGroupARN),
		})
		if err != nil {
			return Report{}, errors.Wrapf(err, "describing target health of %s", target.TargetGroupARN)
		}
		for _, desc := range out.TargetHealthDescriptions {
			var id string
			if desc.Target != nil {
				id = aws.ToString(desc.Target.Id)
			}
			if desc.TargetHealth != nil && desc.TargetHealth.State == elbv2types.TargetHealthStateEnumHealthy {
				report.Healthy = append(report.Healthy, id)
				continue
			}
			report.Unhealthy = append(report.Unhealthy, id)
			if desc.TargetHealth != nil {
				logger.Warn("unhealthy target",
					zap.String("target", id),
					zap.String("state", string(desc.TargetHealth.State)),
					zap.String("reason", string(desc.TargetHealth.Reason)))
			}
		}
		sort.Strings(report.Healthy)
		sort.Strings(report.Unhealthy)
		report.CheckedTargets = true
		logger.Info("target health",
			zap.Int("healthy", len(report.Healthy)),
			zap.Int("unhealthy", len(report.Unhealthy)))
	}

	return report, nil
}

func (c *Checker) databaseStatus(ctx context.Context, identifier string) (status, endpoint string, err error) {
	out, err := c.RDS.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: aws.String(identifier),
	})
	var notFound *rdstypes.DBInstanceNotFoundFault
	if errors.As(err, &notFound) {
		return "", "", errors.Wrapf(ErrDatabaseNotFound, "database %s", identifier)
	}
	if err != nil {
		return "", "", errors.Wrapf(err, "describing database %s", identifier)
	}
	if len(out.DBInstances) == 0 {
		return "", "", errors.Wrapf(ErrDatabaseNotFound, "database %s", identifier)
	}
	instance := out.DBInstances[0]
	if instance.Endpoint != nil {
		endpoint = aws.ToString(instance.Endpoint.Address)
	}
	return aws.ToString(instance.DBInstanceStatus), endpoint, nil
}
