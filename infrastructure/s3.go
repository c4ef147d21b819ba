package main

import (
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/elb"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/s3"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const accessLogRetentionDays = 90

// AccessLogResources holds the bucket receiving load balancer access logs
type AccessLogResources struct {
	Bucket *s3.Bucket
	Policy *s3.BucketPolicy
}

// createAccessLogBucket creates the S3 bucket the load balancer writes its
// access logs to
func createAccessLogBucket(ctx *pulumi.Context, balancerID string) (*AccessLogResources, error) {
	name := resourceName(balancerID, "access-logs")

	// Create S3 bucket for access logs
	bucket, err := s3.NewBucket(ctx, name, &s3.BucketArgs{
		Acl:          pulumi.String("private"),
		ForceDestroy: pulumi.Bool(true),
		Tags:         nameTag(name),
		// Configure server-side encryption
		ServerSideEncryptionConfiguration: &s3.BucketServerSideEncryptionConfigurationArgs{
			Rule: &s3.BucketServerSideEncryptionConfigurationRuleArgs{
				ApplyServerSideEncryptionByDefault: &s3.BucketServerSideEncryptionConfigurationRuleApplyServerSideEncryptionByDefaultArgs{
					SseAlgorithm: pulumi.String("AES256"),
				},
			},
		},
		LifecycleRules: s3.BucketLifecycleRuleArray{
			&s3.BucketLifecycleRuleArgs{
				Id:      pulumi.String("expire-old-logs"),
				Enabled: pulumi.Bool(true),
				Expiration: &s3.BucketLifecycleRuleExpirationArgs{
					Days: pulumi.Int(accessLogRetentionDays),
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	// Look up the regional account that delivers load balancer logs
	serviceAccount, err := elb.GetServiceAccount(ctx, nil)
	if err != nil {
		return nil, err
	}

	// Create bucket policy to allow log delivery
	policy, err := s3.NewBucketPolicy(ctx, name+"-policy", &s3.BucketPolicyArgs{
		Bucket: bucket.ID(),
		Policy: bucket.Arn.ApplyT(func(bucketArn string) string {
			return `{
				"Version": "2012-10-17",
				"Statement": [
					{
						"Effect": "Allow",
						"Principal": {
							"AWS": "` + serviceAccount.Arn + `"
						},
						"Action": "s3:PutObject",
						"Resource": "` + bucketArn + `/*"
					}
				]
			}`
		}).(pulumi.StringOutput),
	})
	if err != nil {
		return nil, err
	}

	return &AccessLogResources{
		Bucket: bucket,
		Policy: policy,
	}, nil
}
