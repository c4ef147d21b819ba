package main

import (
	"github.com/j19015/blog-stack/internal/topology"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/ec2"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/iam"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// WebServerRole holds the IAM resources shared by every web server
type WebServerRole struct {
	Role            *iam.Role
	InstanceProfile *iam.InstanceProfile
}

// createWebServerRole creates the instance role used for Session Manager access
func createWebServerRole(ctx *pulumi.Context) (*WebServerRole, error) {
	// Create EC2 role
	role, err := iam.NewRole(ctx, "webserver-role", &iam.RoleArgs{
		AssumeRolePolicy: pulumi.String(`{
			"Version": "2012-10-17",
			"Statement": [{
				"Action": "sts:AssumeRole",
				"Principal": {
					"Service": "ec2.amazonaws.com"
				},
				"Effect": "Allow",
				"Sid": ""
			}]
		}`),
		Tags: nameTag("webserver-role"),
	})
	if err != nil {
		return nil, err
	}

	// Attach SSM policy to EC2 role
	_, err = iam.NewRolePolicyAttachment(ctx, "webserver-ssm-policy", &iam.RolePolicyAttachmentArgs{
		Role:      role.Name,
		PolicyArn: pulumi.String("arn:aws:iam::aws:policy/AmazonSSMManagedInstanceCore"),
	})
	if err != nil {
		return nil, err
	}

	// Create EC2 instance profile
	profile, err := iam.NewInstanceProfile(ctx, "webserver-instance-profile", &iam.InstanceProfileArgs{
		Role: role.Name,
	})
	if err != nil {
		return nil, err
	}

	return &WebServerRole{Role: role, InstanceProfile: profile}, nil
}

// lookupAmi finds the latest Amazon Linux 2023 AMI for the architecture
func lookupAmi(ctx *pulumi.Context, architecture string) (string, error) {
	ami, err := ec2.LookupAmi(ctx, &ec2.LookupAmiArgs{
		Owners:     []string{"amazon"},
		MostRecent: pulumi.BoolRef(true),
		NameRegex:  pulumi.StringRef("^al2023-ami-2023.*-" + architecture + "$"),
		Filters: []ec2.GetAmiFilter{
			{
				Name:   "root-device-type",
				Values: []string{"ebs"},
			},
			{
				Name:   "virtualization-type",
				Values: []string{"hvm"},
			},
		},
	})
	if err != nil {
		return "", err
	}
	return ami.Id, nil
}

// webServerArgs carries what every web server shares
type webServerArgs struct {
	amiID   string
	keyName string
	role    *WebServerRole
}

// createWebServer creates one EC2 instance from a resolved instance node
func createWebServer(ctx *pulumi.Context, inst topology.Instance, network *NetworkResources, securityGroup *ec2.SecurityGroup, args webServerArgs) (*ec2.Instance, error) {
	name := resourceName(inst.ID)

	instanceArgs := &ec2.InstanceArgs{
		Ami:                      pulumi.String(args.amiID),
		InstanceType:             pulumi.String(inst.InstanceType),
		SubnetId:                 network.Subnets[inst.Subnet].ID(),
		VpcSecurityGroupIds:      pulumi.StringArray{securityGroup.ID()},
		AssociatePublicIpAddress: pulumi.Bool(inst.Placement == topology.SubnetPublic),
		IamInstanceProfile:       args.role.InstanceProfile.Name,
		Tags:                     nameTag(name),
	}
	if inst.UserData != "" {
		instanceArgs.UserData = pulumi.String(inst.UserData)
	}
	// Use key pair only when configured
	if args.keyName != "" {
		instanceArgs.KeyName = pulumi.String(args.keyName)
	}

	return ec2.NewInstance(ctx, name, instanceArgs)
}
