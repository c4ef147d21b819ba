package main

import (
	"github.com/j19015/blog-stack/internal/topology"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/ec2"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/lb"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// LoadBalancerResources holds the application load balancer and its routing
type LoadBalancerResources struct {
	LoadBalancer *lb.LoadBalancer
	TargetGroup  *lb.TargetGroup
	Listener     *lb.Listener
	AccessLogs   *AccessLogResources
}

// createLoadBalancer creates the ALB, one target group with the resolved
// targets, and a listener forwarding to it. Access logs are written to
// accessLogs when it is non-nil.
func createLoadBalancer(ctx *pulumi.Context, balancer topology.LoadBalancer, network *NetworkResources, securityGroup *ec2.SecurityGroup, instances map[string]*ec2.Instance, accessLogs *AccessLogResources) (*LoadBalancerResources, error) {
	name := resourceName(balancer.ID)

	args := &lb.LoadBalancerArgs{
		Internal:         pulumi.Bool(balancer.Internal),
		LoadBalancerType: pulumi.String("application"),
		SecurityGroups:   pulumi.StringArray{securityGroup.ID()},
		Subnets:          network.subnetIDs(balancer.Subnets),
		Tags:             nameTag(name),
	}
	var opts []pulumi.ResourceOption
	if accessLogs != nil {
		args.AccessLogs = &lb.LoadBalancerAccessLogsArgs{
			Bucket:  accessLogs.Bucket.Bucket,
			Prefix:  pulumi.String(name),
			Enabled: pulumi.Bool(true),
		}
		// Log delivery is checked when the ALB is created
		opts = append(opts, pulumi.DependsOn([]pulumi.Resource{accessLogs.Policy}))
	}

	// Create Application Load Balancer
	alb, err := lb.NewLoadBalancer(ctx, name, args, opts...)
	if err != nil {
		return nil, err
	}

	// Create target group with health check
	targetGroup, err := lb.NewTargetGroup(ctx, resourceName(balancer.ID, "tg"), &lb.TargetGroupArgs{
		Port:       pulumi.Int(balancer.ListenerPort),
		Protocol:   pulumi.String("HTTP"),
		TargetType: pulumi.String("instance"),
		VpcId:      network.Vpc.ID(),
		HealthCheck: &lb.TargetGroupHealthCheckArgs{
			Path: pulumi.String(balancer.HealthCheckPath),
		},
		Tags: nameTag(resourceName(balancer.ID, "tg")),
	})
	if err != nil {
		return nil, err
	}

	// Register each target instance
	for _, target := range balancer.Targets {
		_, err = lb.NewTargetGroupAttachment(ctx, resourceName(balancer.ID, "tg", target), &lb.TargetGroupAttachmentArgs{
			TargetGroupArn: targetGroup.Arn,
			TargetId:       instances[target].ID(),
			Port:           pulumi.Int(balancer.ListenerPort),
		})
		if err != nil {
			return nil, err
		}
	}

	// Create listener
	listener, err := lb.NewListener(ctx, resourceName(balancer.ID, "listener"), &lb.ListenerArgs{
		LoadBalancerArn: alb.Arn,
		Port:            pulumi.Int(balancer.ListenerPort),
		Protocol:        pulumi.String("HTTP"),
		DefaultActions: lb.ListenerDefaultActionArray{
			&lb.ListenerDefaultActionArgs{
				Type:           pulumi.String("forward"),
				TargetGroupArn: targetGroup.Arn,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	// Internet-facing listeners are open to everyone
	if !balancer.Internal {
		err = createCidrIngress(ctx, balancer.ID, securityGroup, topology.Ingress{
			CIDR:        "0.0.0.0/0",
			Protocol:    "tcp",
			Port:        balancer.ListenerPort,
			Description: "Allow listener traffic from anywhere",
		})
		if err != nil {
			return nil, err
		}
	}

	return &LoadBalancerResources{
		LoadBalancer: alb,
		TargetGroup:  targetGroup,
		Listener:     listener,
		AccessLogs:   accessLogs,
	}, nil
}
