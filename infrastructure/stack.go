package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/j19015/blog-stack/internal/logging"
	"github.com/j19015/blog-stack/internal/topology"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"go.uber.org/zap"
)

// StackResources holds everything created for a resolved graph
type StackResources struct {
	Network        *NetworkResources
	SecurityGroups map[string]*ec2.SecurityGroup
	WebServers     map[string]*ec2.Instance
	Database       *DatabaseResources
	LoadBalancer   *LoadBalancerResources
	HealthReporter *HealthReporterResources
}

// createStack creates the resources of every graph node in creation order,
// then the access rules between them
func createStack(ctx *pulumi.Context, graph *topology.Graph, cfg StackConfig, log *zap.Logger) (*StackResources, error) {
	stack := &StackResources{
		SecurityGroups: make(map[string]*ec2.SecurityGroup),
		WebServers:     make(map[string]*ec2.Instance),
	}

	var shared *webServerArgs
	for _, node := range graph.Nodes() {
		log.Info("creating node",
			zap.String(logging.FieldNodeID, node.ID),
			zap.String(logging.FieldKind, string(node.Kind)))

		if node.Kind == topology.KindNetwork {
			// 1. Create network environment
			network, err := createNetworkResources(ctx, graph.Network)
			if err != nil {
				return nil, err
			}
			stack.Network = network
			continue
		}

		if stack.Network == nil {
			return nil, errors.AssertionFailedf("%s created before the network", node.ID)
		}
		sg, err := createSecurityGroup(ctx, stack.Network, node.ID, fmt.Sprintf("Security group for %s", node.ID))
		if err != nil {
			return nil, err
		}
		stack.SecurityGroups[node.ID] = sg

		switch node.Kind {
		case topology.KindInstance:
			// 2. Create web servers
			if shared == nil {
				shared, err = createWebServerShared(ctx, cfg)
				if err != nil {
					return nil, err
				}
			}
			inst, _ := graph.Instance(node.ID)
			server, err := createWebServer(ctx, inst, stack.Network, sg, *shared)
			if err != nil {
				return nil, err
			}
			for _, ingress := range inst.Ingress {
				if err := createCidrIngress(ctx, inst.ID, sg, ingress); err != nil {
					return nil, err
				}
			}
			stack.WebServers[node.ID] = server

		case topology.KindDatabase:
			// 3. Create database
			db, err := createDatabase(ctx, *graph.Database, stack.Network, sg, cfg.DBUsername)
			if err != nil {
				return nil, err
			}
			stack.Database = db

		case topology.KindLoadBalancer:
			// 4. Create load balancer
			var accessLogs *AccessLogResources
			if cfg.LoadBalancerAccessLogs {
				accessLogs, err = createAccessLogBucket(ctx, node.ID)
				if err != nil {
					return nil, err
				}
			}
			balancer, err := createLoadBalancer(ctx, *graph.LoadBalancer, stack.Network, sg, stack.WebServers, accessLogs)
			if err != nil {
				return nil, err
			}
			stack.LoadBalancer = balancer
		}
	}

	// 5. Connect nodes with security group rules
	if err := createAccessRules(ctx, graph.Edges(), stack.SecurityGroups); err != nil {
		return nil, err
	}

	// 6. Deploy the health reporter when an archive is configured
	if cfg.HealthReporterArchive != "" {
		args := healthReporterArgs{
			archive:              cfg.HealthReporterArchive,
			schedule:             cfg.HealthReporterSchedule,
			dbInstanceIdentifier: pulumi.String(""),
			targetGroupArn:       pulumi.String(""),
		}
		if stack.Database != nil {
			args.dbInstanceIdentifier = stack.Database.Instance.Identifier
		}
		if stack.LoadBalancer != nil {
			args.targetGroupArn = stack.LoadBalancer.TargetGroup.Arn
		}
		reporter, err := createHealthReporter(ctx, args)
		if err != nil {
			return nil, err
		}
		stack.HealthReporter = reporter
	}

	if err := exportOutputs(ctx, graph, stack); err != nil {
		return nil, err
	}
	return stack, nil
}

// createWebServerShared creates the role and looks up the AMI every web
// server uses
func createWebServerShared(ctx *pulumi.Context, cfg StackConfig) (*webServerArgs, error) {
	role, err := createWebServerRole(ctx)
	if err != nil {
		return nil, err
	}
	amiID, err := lookupAmi(ctx, cfg.AmiArchitecture)
	if err != nil {
		return nil, err
	}
	return &webServerArgs{amiID: amiID, keyName: cfg.KeyName, role: role}, nil
}

// exportOutputs exports the addresses of the graph's nodes
func exportOutputs(ctx *pulumi.Context, graph *topology.Graph, stack *StackResources) error {
	ctx.Export("vpcId", stack.Network.Vpc.ID())

	for _, out := range graph.Outputs() {
		switch out.Attribute {
		case topology.AttributePublicIP:
			server, ok := stack.WebServers[out.NodeID]
			if !ok {
				return errors.AssertionFailedf("no web server for output %s", out.Name)
			}
			ctx.Export(out.Name, server.PublicIp)
		case topology.AttributeEndpoint:
			ctx.Export(out.Name, stack.Database.Instance.Endpoint)
			ctx.Export(out.NodeID+"EndpointParameter", stack.Database.EndpointParameter.Name)
		case topology.AttributeDNSName:
			ctx.Export(out.Name, stack.LoadBalancer.LoadBalancer.DnsName)
			if stack.LoadBalancer.AccessLogs != nil {
				ctx.Export(out.NodeID+"AccessLogBucket", stack.LoadBalancer.AccessLogs.Bucket.Bucket)
			}
		default:
			return errors.AssertionFailedf("unknown output attribute %q", out.Attribute)
		}
	}

	if stack.HealthReporter != nil {
		ctx.Export("healthReporterFunction", stack.HealthReporter.Function.Name)
	}
	return nil
}
