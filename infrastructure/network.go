package main

import (
	"github.com/j19015/blog-stack/internal/topology"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// NetworkResources holds all the networking resources
type NetworkResources struct {
	Vpc               *ec2.Vpc
	InternetGateway   *ec2.InternetGateway
	PublicRouteTable  *ec2.RouteTable
	PrivateRouteTable *ec2.RouteTable
	Subnets           map[string]*ec2.Subnet
}

// subnetIDs returns the IDs of the named subnets, in the given order
func (n *NetworkResources) subnetIDs(names []string) pulumi.StringArray {
	ids := pulumi.StringArray{}
	for _, name := range names {
		ids = append(ids, n.Subnets[name].ID())
	}
	return ids
}

// createNetworkResources creates the VPC, its subnets and routing
func createNetworkResources(ctx *pulumi.Context, network topology.Network) (*NetworkResources, error) {
	name := resourceName(network.ID)

	// Create VPC
	vpc, err := ec2.NewVpc(ctx, name, &ec2.VpcArgs{
		CidrBlock:          pulumi.String(network.CIDR),
		EnableDnsHostnames: pulumi.Bool(true),
		EnableDnsSupport:   pulumi.Bool(true),
		Tags:               nameTag(name),
	})
	if err != nil {
		return nil, err
	}

	// Create Internet Gateway
	igw, err := ec2.NewInternetGateway(ctx, resourceName(network.ID, "igw"), &ec2.InternetGatewayArgs{
		VpcId: vpc.ID(),
		Tags:  nameTag(resourceName(network.ID, "igw")),
	})
	if err != nil {
		return nil, err
	}

	// Create public route table
	publicRouteTable, err := ec2.NewRouteTable(ctx, resourceName(network.ID, "public-rt"), &ec2.RouteTableArgs{
		VpcId: vpc.ID(),
		Routes: ec2.RouteTableRouteArray{
			&ec2.RouteTableRouteArgs{
				CidrBlock: pulumi.String("0.0.0.0/0"),
				GatewayId: igw.ID(),
			},
		},
		Tags: nameTag(resourceName(network.ID, "public-rt")),
	})
	if err != nil {
		return nil, err
	}

	// Create private route table (without NAT Gateway route)
	privateRouteTable, err := ec2.NewRouteTable(ctx, resourceName(network.ID, "private-rt"), &ec2.RouteTableArgs{
		VpcId: vpc.ID(),
		Tags:  nameTag(resourceName(network.ID, "private-rt")),
	})
	if err != nil {
		return nil, err
	}

	zones, err := zonesFor(ctx, network.Subnets)
	if err != nil {
		return nil, err
	}

	subnets := make(map[string]*ec2.Subnet, len(network.Subnets))
	slots := make(map[topology.SubnetType]int)
	for _, s := range network.Subnets {
		subnetName := resourceName(network.ID, s.Name)
		args := &ec2.SubnetArgs{
			VpcId:               vpc.ID(),
			CidrBlock:           pulumi.String(s.CIDR),
			MapPublicIpOnLaunch: pulumi.Bool(s.Type == topology.SubnetPublic),
			Tags:                nameTag(subnetName),
		}
		// Subnets without a zone rotate through the region's zones per type
		if s.AvailabilityZone != "" {
			args.AvailabilityZone = pulumi.String(s.AvailabilityZone)
		} else if len(zones) > 0 {
			args.AvailabilityZone = pulumi.String(zones[slots[s.Type]%len(zones)])
			slots[s.Type]++
		}
		subnet, err := ec2.NewSubnet(ctx, subnetName, args)
		if err != nil {
			return nil, err
		}
		subnets[s.Name] = subnet

		routeTable := privateRouteTable
		if s.Type == topology.SubnetPublic {
			routeTable = publicRouteTable
		}
		_, err = ec2.NewRouteTableAssociation(ctx, subnetName+"-rt-assoc", &ec2.RouteTableAssociationArgs{
			SubnetId:     subnet.ID(),
			RouteTableId: routeTable.ID(),
		})
		if err != nil {
			return nil, err
		}
	}

	return &NetworkResources{
		Vpc:               vpc,
		InternetGateway:   igw,
		PublicRouteTable:  publicRouteTable,
		PrivateRouteTable: privateRouteTable,
		Subnets:           subnets,
	}, nil
}

// zonesFor looks up the available zones of the region when some subnet has
// no zone of its own
func zonesFor(ctx *pulumi.Context, subnets []topology.Subnet) ([]string, error) {
	for _, s := range subnets {
		if s.AvailabilityZone != "" {
			continue
		}
		zones, err := aws.GetAvailabilityZones(ctx, &aws.GetAvailabilityZonesArgs{
			State: pulumi.StringRef("available"),
		})
		if err != nil {
			return nil, err
		}
		return zones.Names, nil
	}
	return nil, nil
}
