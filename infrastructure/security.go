package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/j19015/blog-stack/internal/topology"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// createSecurityGroup creates the security group of one graph node. Ingress
// is added separately as rules; all outbound traffic is allowed.
func createSecurityGroup(ctx *pulumi.Context, network *NetworkResources, nodeID string, description string) (*ec2.SecurityGroup, error) {
	name := resourceName(nodeID, "sg")
	return ec2.NewSecurityGroup(ctx, name, &ec2.SecurityGroupArgs{
		VpcId:       network.Vpc.ID(),
		Description: pulumi.String(description),
		Egress: ec2.SecurityGroupEgressArray{
			&ec2.SecurityGroupEgressArgs{
				Protocol:    pulumi.String("-1"),
				FromPort:    pulumi.Int(0),
				ToPort:      pulumi.Int(0),
				CidrBlocks:  pulumi.StringArray{pulumi.String("0.0.0.0/0")},
				Description: pulumi.String("Allow all outbound traffic"),
			},
		},
		Tags: nameTag(name),
	})
}

// createAccessRules turns every access rule of the graph into an ingress rule
// on the destination's security group, sourced from the source's group
func createAccessRules(ctx *pulumi.Context, rules []topology.AccessRule, groups map[string]*ec2.SecurityGroup) error {
	for _, rule := range rules {
		destination, ok := groups[rule.Destination]
		if !ok {
			return errors.AssertionFailedf("no security group for %s", rule.Destination)
		}
		source, ok := groups[rule.Source]
		if !ok {
			return errors.AssertionFailedf("no security group for %s", rule.Source)
		}

		name := resourceName(rule.Destination, "from", rule.Source, fmt.Sprintf("%s%d", rule.Protocol, rule.Port))
		_, err := ec2.NewSecurityGroupRule(ctx, name, &ec2.SecurityGroupRuleArgs{
			Type:                  pulumi.String("ingress"),
			SecurityGroupId:       destination.ID(),
			SourceSecurityGroupId: source.ID(),
			Protocol:              pulumi.String(rule.Protocol),
			FromPort:              pulumi.Int(rule.Port),
			ToPort:                pulumi.Int(rule.Port),
			Description:           pulumi.String(fmt.Sprintf("Allow %s from %s", rule.Destination, rule.Source)),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// createCidrIngress opens a port on a security group to a CIDR range
func createCidrIngress(ctx *pulumi.Context, nodeID string, group *ec2.SecurityGroup, ingress topology.Ingress) error {
	description := ingress.Description
	if description == "" {
		description = fmt.Sprintf("Allow %s/%d from %s", ingress.Protocol, ingress.Port, ingress.CIDR)
	}
	name := resourceName(nodeID, "from", ingress.CIDR, fmt.Sprintf("%s%d", ingress.Protocol, ingress.Port))
	_, err := ec2.NewSecurityGroupRule(ctx, name, &ec2.SecurityGroupRuleArgs{
		Type:            pulumi.String("ingress"),
		SecurityGroupId: group.ID(),
		Protocol:        pulumi.String(ingress.Protocol),
		FromPort:        pulumi.Int(ingress.Port),
		ToPort:          pulumi.Int(ingress.Port),
		CidrBlocks:      pulumi.StringArray{pulumi.String(ingress.CIDR)},
		Description:     pulumi.String(description),
	})
	return err
}
