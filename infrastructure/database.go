package main

import (
	"fmt"

	"github.com/j19015/blog-stack/internal/topology"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/ec2"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/rds"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/ssm"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const defaultAllocatedStorage = 20

// DatabaseResources holds the managed database and its supporting resources
type DatabaseResources struct {
	SubnetGroup       *rds.SubnetGroup
	Instance          *rds.Instance
	EndpointParameter *ssm.Parameter
}

// createDatabase creates the RDS instance in the subnets chosen by the resolver
func createDatabase(ctx *pulumi.Context, db topology.Database, network *NetworkResources, securityGroup *ec2.SecurityGroup, username string) (*DatabaseResources, error) {
	name := resourceName(db.ID)

	// Create subnet group for the database
	subnetGroup, err := rds.NewSubnetGroup(ctx, resourceName(db.ID, "subnet-group"), &rds.SubnetGroupArgs{
		SubnetIds: network.subnetIDs(db.Subnets),
		Tags:      nameTag(resourceName(db.ID, "subnet-group")),
	})
	if err != nil {
		return nil, err
	}

	storage := db.AllocatedStorage
	if storage == 0 {
		storage = defaultAllocatedStorage
	}

	args := &rds.InstanceArgs{
		Engine:              pulumi.String(db.Engine),
		InstanceClass:       pulumi.String(db.InstanceClass),
		AllocatedStorage:    pulumi.Int(storage),
		DbSubnetGroupName:   subnetGroup.Name,
		VpcSecurityGroupIds: pulumi.StringArray{securityGroup.ID()},
		Port:                pulumi.Int(db.Port),
		Username:            pulumi.String(username),
		// Password is generated and kept in Secrets Manager by RDS
		ManageMasterUserPassword: pulumi.Bool(true),
		PubliclyAccessible:       pulumi.Bool(false),
		StorageEncrypted:         pulumi.Bool(true),
		SkipFinalSnapshot:        pulumi.Bool(true),
		DeletionProtection:       pulumi.Bool(false), // Set to true in production
		Tags:                     nameTag(name),
	}
	if db.EngineVersion != "" {
		args.EngineVersion = pulumi.String(db.EngineVersion)
	}
	if db.DatabaseName != "" {
		args.DbName = pulumi.String(db.DatabaseName)
	}

	instance, err := rds.NewInstance(ctx, name, args)
	if err != nil {
		return nil, err
	}

	// Store the endpoint in SSM Parameter Store for the web servers
	parameter, err := ssm.NewParameter(ctx, resourceName(db.ID, "endpoint-param"), &ssm.ParameterArgs{
		Name:  pulumi.String(fmt.Sprintf("/%s/%s/endpoint", ctx.Project(), name)),
		Type:  pulumi.String("String"),
		Value: instance.Address,
		Tags:  nameTag(resourceName(db.ID, "endpoint")),
	})
	if err != nil {
		return nil, err
	}

	return &DatabaseResources{
		SubnetGroup:       subnetGroup,
		Instance:          instance,
		EndpointParameter: parameter,
	}, nil
}
