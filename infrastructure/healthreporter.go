package main

import (
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/cloudwatch"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/iam"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/lambda"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// HealthReporterResources holds the scheduled health reporter Lambda
type HealthReporterResources struct {
	Function  *lambda.Function
	EventRule *cloudwatch.EventRule
}

// healthReporterArgs names what the reporter checks
type healthReporterArgs struct {
	archive              string
	schedule             string
	dbInstanceIdentifier pulumi.StringInput
	targetGroupArn       pulumi.StringInput
}

// createHealthReporter deploys the health reporter Lambda on a schedule
func createHealthReporter(ctx *pulumi.Context, args healthReporterArgs) (*HealthReporterResources, error) {
	// Create IAM role for the Lambda function
	role, err := iam.NewRole(ctx, "health-reporter-role", &iam.RoleArgs{
		AssumeRolePolicy: pulumi.String(`{
			"Version": "2012-10-17",
			"Statement": [{
				"Action": "sts:AssumeRole",
				"Principal": {
					"Service": "lambda.amazonaws.com"
				},
				"Effect": "Allow",
				"Sid": ""
			}]
		}`),
		Tags: nameTag("health-reporter-role"),
	})
	if err != nil {
		return nil, err
	}

	_, err = iam.NewRolePolicyAttachment(ctx, "health-reporter-basic-execution", &iam.RolePolicyAttachmentArgs{
		Role:      role.Name,
		PolicyArn: pulumi.String("arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"),
	})
	if err != nil {
		return nil, err
	}

	// Create policy for describing the database and target health
	policy, err := iam.NewPolicy(ctx, "health-reporter-policy", &iam.PolicyArgs{
		Description: pulumi.String("Policy for the blog stack health reporter"),
		Policy: pulumi.String(`{
			"Version": "2012-10-17",
			"Statement": [
				{
					"Effect": "Allow",
					"Action": [
						"rds:DescribeDBInstances",
						"elasticloadbalancing:DescribeTargetHealth"
					],
					"Resource": "*"
				}
			]
		}`),
	})
	if err != nil {
		return nil, err
	}

	_, err = iam.NewRolePolicyAttachment(ctx, "health-reporter-custom-policy", &iam.RolePolicyAttachmentArgs{
		Role:      role.Name,
		PolicyArn: policy.Arn,
	})
	if err != nil {
		return nil, err
	}

	// Create the Lambda function
	function, err := lambda.NewFunction(ctx, "health-reporter", &lambda.FunctionArgs{
		Runtime:       pulumi.String("provided.al2023"),
		Architectures: pulumi.StringArray{pulumi.String("arm64")},
		Code:          pulumi.NewFileArchive(args.archive),
		Handler:       pulumi.String("bootstrap"),
		Role:          role.Arn,
		MemorySize:    pulumi.Int(128),
		Timeout:       pulumi.Int(30),
		Environment: &lambda.FunctionEnvironmentArgs{
			Variables: pulumi.StringMap{
				"DB_INSTANCE_IDENTIFIER": args.dbInstanceIdentifier,
				"TARGET_GROUP_ARN":       args.targetGroupArn,
				"LOG_ENVIRONMENT":        pulumi.String("production"),
			},
		},
		Tags: nameTag("health-reporter"),
	})
	if err != nil {
		return nil, err
	}

	// Create EventBridge rule to trigger the reporter
	eventRule, err := cloudwatch.NewEventRule(ctx, "health-reporter-schedule", &cloudwatch.EventRuleArgs{
		ScheduleExpression: pulumi.String(args.schedule),
		Description:        pulumi.String("Trigger the blog stack health reporter"),
		Tags:               nameTag("health-reporter-schedule"),
	})
	if err != nil {
		return nil, err
	}

	_, err = cloudwatch.NewEventTarget(ctx, "health-reporter-target", &cloudwatch.EventTargetArgs{
		Rule: eventRule.Name,
		Arn:  function.Arn,
	})
	if err != nil {
		return nil, err
	}

	// Allow EventBridge to invoke the reporter
	_, err = lambda.NewPermission(ctx, "health-reporter-permission", &lambda.PermissionArgs{
		Action:    pulumi.String("lambda:InvokeFunction"),
		Function:  function.Name,
		Principal: pulumi.String("events.amazonaws.com"),
		SourceArn: eventRule.Arn,
	})
	if err != nil {
		return nil, err
	}

	return &HealthReporterResources{
		Function:  function,
		EventRule: eventRule,
	}, nil
}
