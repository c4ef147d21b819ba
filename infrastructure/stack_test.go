package main

import (
	"encoding/json"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/j19015/blog-stack/internal/topology"
	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testProject = "blog-stack"
	testStack   = "dev"
)

type recordingMocks struct {
	mu        sync.Mutex
	resources []pulumi.MockResourceArgs
}

func (m *recordingMocks) NewResource(args pulumi.MockResourceArgs) (string, resource.PropertyMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources = append(m.resources, args)

	outputs := args.Inputs.Copy()
	switch args.TypeToken {
	case "aws:ec2/instance:Instance":
		outputs["publicIp"] = resource.NewStringProperty("203.0.113.10")
	case "aws:rds/instance:Instance":
		outputs["identifier"] = resource.NewStringProperty(args.Name)
		outputs["address"] = resource.NewStringProperty(args.Name + ".example.internal")
		outputs["endpoint"] = resource.NewStringProperty(args.Name + ".example.internal:3306")
	case "aws:lb/loadBalancer:LoadBalancer":
		outputs["dnsName"] = resource.NewStringProperty(args.Name + ".elb.example.com")
	case "aws:s3/bucket:Bucket":
		outputs["bucket"] = resource.NewStringProperty(args.Name + "-bucket")
		outputs["arn"] = resource.NewStringProperty("arn:aws:s3:::" + args.Name + "-bucket")
	case "aws:lb/targetGroup:TargetGroup", "aws:iam/policy:Policy", "aws:lambda/function:Function", "aws:cloudwatch/eventRule:EventRule":
		outputs["arn"] = resource.NewStringProperty("arn:aws:test:" + args.Name)
	}
	return args.Name + "_id", outputs, nil
}

func (m *recordingMocks) Call(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
	if args.Token == "aws:ec2/getAmi:getAmi" {
		return resource.PropertyMap{
			"id": resource.NewStringProperty("ami-0123456789abcdef0"),
		}, nil
	}
	if args.Token == "aws:index/getAvailabilityZones:getAvailabilityZones" {
		return resource.PropertyMap{
			"id": resource.NewStringProperty("ap-northeast-1"),
			"names": resource.NewArrayProperty([]resource.PropertyValue{
				resource.NewStringProperty("ap-northeast-1a"),
				resource.NewStringProperty("ap-northeast-1c"),
			}),
		}, nil
	}
	if args.Token == "aws:elb/getServiceAccount:getServiceAccount" {
		return resource.PropertyMap{
			"id":  resource.NewStringProperty("582318560864"),
			"arn": resource.NewStringProperty("arn:aws:iam::582318560864:root"),
		}, nil
	}
	return args.Args, nil
}

func (m *recordingMocks) byType(token string) []pulumi.MockResourceArgs {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []pulumi.MockResourceArgs
	for _, r := range m.resources {
		if r.TypeToken == token {
			out = append(out, r)
		}
	}
	return out
}

func blogDeclaration() topology.Declaration {
	return topology.Declaration{
		Network: topology.NetworkDecl{
			ID:   "BlogVpc",
			CIDR: "10.0.0.0/16",
			Subnets: []topology.SubnetDecl{
				{Name: "public-a", Type: topology.SubnetPublic, CIDR: "10.0.0.0/24", AvailabilityZone: "ap-northeast-1a"},
				{Name: "public-c", Type: topology.SubnetPublic, CIDR: "10.0.1.0/24", AvailabilityZone: "ap-northeast-1c"},
				{Name: "private-a", Type: topology.SubnetPrivate, CIDR: "10.0.2.0/24", AvailabilityZone: "ap-northeast-1a"},
				{Name: "private-c", Type: topology.SubnetPrivate, CIDR: "10.0.3.0/24", AvailabilityZone: "ap-northeast-1c"},
			},
		},
		Instances: []topology.InstanceDecl{
			{ID: "WebServer1", InstanceType: "t2.small", UserDataPath: "userdata.sh"},
			{ID: "WebServer2", InstanceType: "t2.small", UserDataPath: "userdata.sh"},
		},
		Database: &topology.DatabaseDecl{
			ID:            "WordPressDB",
			Engine:        "mysql",
			EngineVersion: "8.0.31",
			InstanceClass: "db.t2.small",
			DatabaseName:  "wordpress",
			AllowFrom:     []string{"WebServer1", "WebServer2"},
		},
		LoadBalancer: &topology.LoadBalancerDecl{
			ID:              "LoadBalancer",
			HealthCheckPath: "/wp-includes/images/blank.gif",
			Targets:         []string{"WebServer1", "WebServer2"},
		},
	}
}

var testPayloads = fstest.MapFS{
	"userdata.sh": &fstest.MapFile{Data: []byte("#!/bin/bash\nyum install -y httpd\n")},
}

func resolveBlog(t *testing.T, decl topology.Declaration) *topology.Graph {
	t.Helper()
	graph, err := topology.Resolve(decl, topology.WithPayloadFS(testPayloads))
	require.NoError(t, err)
	return graph
}

func testConfig() StackConfig {
	return StackConfig{
		DBUsername:             defaultDBUsername,
		AmiArchitecture:        defaultAmiArchitecture,
		HealthReporterSchedule: defaultHealthReporterSchedule,
	}
}

func runStack(t *testing.T, graph *topology.Graph, cfg StackConfig) (*recordingMocks, *StackResources) {
	t.Helper()
	mocks := &recordingMocks{}
	var stack *StackResources
	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		var err error
		stack, err = createStack(ctx, graph, cfg, zap.NewNop())
		return err
	}, pulumi.WithMocks(testProject, testStack, mocks))
	require.NoError(t, err)
	return mocks, stack
}

func numberInput(args pulumi.MockResourceArgs, key resource.PropertyKey) float64 {
	v, ok := args.Inputs[key]
	if !ok || !v.IsNumber() {
		return 0
	}
	return v.NumberValue()
}

func stringInput(args pulumi.MockResourceArgs, key resource.PropertyKey) string {
	v, ok := args.Inputs[key]
	if !ok || !v.IsString() {
		return ""
	}
	return v.StringValue()
}

func TestCreateStack_BlogTopology(t *testing.T) {
	graph := resolveBlog(t, blogDeclaration())
	mocks, stack := runStack(t, graph, testConfig())

	assert.Len(t, mocks.byType("aws:ec2/vpc:Vpc"), 1)
	assert.Len(t, mocks.byType("aws:ec2/subnet:Subnet"), 4)
	assert.Len(t, mocks.byType("aws:ec2/routeTableAssociation:RouteTableAssociation"), 4)
	assert.Len(t, mocks.byType("aws:ec2/instance:Instance"), 2)
	assert.Len(t, mocks.byType("aws:rds/instance:Instance"), 1)
	assert.Len(t, mocks.byType("aws:lb/loadBalancer:LoadBalancer"), 1)
	assert.Len(t, mocks.byType("aws:lb/targetGroupAttachment:TargetGroupAttachment"), 2)
	assert.Len(t, mocks.byType("aws:ec2/securityGroup:SecurityGroup"), 4)
	assert.Empty(t, mocks.byType("aws:lambda/function:Function"))

	// Four access rules plus the listener opened to the internet.
	rules := mocks.byType("aws:ec2/securityGroupRule:SecurityGroupRule")
	require.Len(t, rules, 5)

	var dbRules, webRules, cidrRules int
	for _, rule := range rules {
		assert.Equal(t, "ingress", stringInput(rule, "type"))
		switch {
		case stringInput(rule, "sourceSecurityGroupId") == "":
			cidrRules++
		case numberInput(rule, "fromPort") == 3306:
			dbRules++
		case numberInput(rule, "fromPort") == 80:
			webRules++
		}
	}
	assert.Equal(t, 2, dbRules)
	assert.Equal(t, 2, webRules)
	assert.Equal(t, 1, cidrRules)

	require.NotNil(t, stack.Database)
	require.NotNil(t, stack.LoadBalancer)
	assert.Len(t, stack.WebServers, 2)
	assert.Len(t, stack.SecurityGroups, 4)
}

func TestCreateStack_WebServersGetPayloadAndSubnet(t *testing.T) {
	graph := resolveBlog(t, blogDeclaration())
	mocks, _ := runStack(t, graph, testConfig())

	servers := mocks.byType("aws:ec2/instance:Instance")
	require.Len(t, servers, 2)
	subnets := map[string]bool{}
	for _, server := range servers {
		assert.Equal(t, "#!/bin/bash\nyum install -y httpd\n", stringInput(server, "userData"))
		assert.Equal(t, "ami-0123456789abcdef0", stringInput(server, "ami"))
		assert.Equal(t, "t2.small", stringInput(server, "instanceType"))
		subnets[stringInput(server, "subnetId")] = true
	}
	assert.Len(t, subnets, 2, "web servers should be spread over both public subnets")
}

func TestCreateStack_DatabaseSettings(t *testing.T) {
	graph := resolveBlog(t, blogDeclaration())
	mocks, _ := runStack(t, graph, testConfig())

	dbs := mocks.byType("aws:rds/instance:Instance")
	require.Len(t, dbs, 1)
	db := dbs[0]
	assert.Equal(t, "mysql", stringInput(db, "engine"))
	assert.Equal(t, "8.0.31", stringInput(db, "engineVersion"))
	assert.Equal(t, "db.t2.small", stringInput(db, "instanceClass"))
	assert.Equal(t, "wordpress", stringInput(db, "dbName"))
	assert.Equal(t, "admin", stringInput(db, "username"))
	assert.Equal(t, float64(3306), numberInput(db, "port"))
	assert.Equal(t, float64(defaultAllocatedStorage), numberInput(db, "allocatedStorage"))

	params := mocks.byType("aws:ssm/parameter:Parameter")
	require.Len(t, params, 1)
	assert.Equal(t, "/blog-stack/wordpressdb/endpoint", stringInput(params[0], "name"))
}

func TestCreateStack_InstancesOnly(t *testing.T) {
	decl := blogDeclaration()
	decl.Database = nil
	decl.LoadBalancer = nil
	decl.Instances[0].Ingress = []topology.IngressDecl{{CIDR: "198.51.100.0/24", Port: 22}}
	graph := resolveBlog(t, decl)

	mocks, stack := runStack(t, graph, testConfig())

	assert.Len(t, mocks.byType("aws:ec2/instance:Instance"), 2)
	assert.Len(t, mocks.byType("aws:ec2/securityGroup:SecurityGroup"), 2)
	assert.Empty(t, mocks.byType("aws:rds/instance:Instance"))
	assert.Empty(t, mocks.byType("aws:lb/loadBalancer:LoadBalancer"))

	rules := mocks.byType("aws:ec2/securityGroupRule:SecurityGroupRule")
	require.Len(t, rules, 1)
	assert.Equal(t, float64(22), numberInput(rules[0], "fromPort"))
	assert.Nil(t, stack.Database)
	assert.Nil(t, stack.LoadBalancer)
}

func TestCreateStack_CidrOnlyNetwork(t *testing.T) {
	graph := resolveBlog(t, topology.Declaration{
		Network:   topology.NetworkDecl{CIDR: "10.0.0.0/16"},
		Instances: []topology.InstanceDecl{{ID: "WebServer1", InstanceType: "t2.small"}},
		Database:  &topology.DatabaseDecl{Engine: "mysql", InstanceClass: "db.t3.micro", DatabaseName: "wordpress"},
		Access:    []topology.AccessIntent{{From: "WebServer1", To: "Database"}},
	})

	mocks, _ := runStack(t, graph, testConfig())

	subnets := mocks.byType("aws:ec2/subnet:Subnet")
	require.Len(t, subnets, 4)
	zones := map[string][]string{}
	for _, subnet := range subnets {
		zones[stringInput(subnet, "availabilityZone")] = append(zones[stringInput(subnet, "availabilityZone")], stringInput(subnet, "cidrBlock"))
	}
	assert.ElementsMatch(t, []string{"10.0.0.0/18", "10.0.128.0/18"}, zones["ap-northeast-1a"])
	assert.ElementsMatch(t, []string{"10.0.64.0/18", "10.0.192.0/18"}, zones["ap-northeast-1c"])

	rules := mocks.byType("aws:ec2/securityGroupRule:SecurityGroupRule")
	require.Len(t, rules, 1)
	assert.Equal(t, float64(3306), numberInput(rules[0], "fromPort"))
}

func TestCreateStack_NetworkOnly(t *testing.T) {
	graph := resolveBlog(t, topology.Declaration{Network: blogDeclaration().Network})

	mocks, _ := runStack(t, graph, testConfig())

	assert.Len(t, mocks.byType("aws:ec2/vpc:Vpc"), 1)
	assert.Len(t, mocks.byType("aws:ec2/subnet:Subnet"), 4)
	assert.Empty(t, mocks.byType("aws:ec2/securityGroup:SecurityGroup"))
	assert.Empty(t, mocks.byType("aws:iam/role:Role"))
}

func TestCreateStack_HealthReporter(t *testing.T) {
	graph := resolveBlog(t, blogDeclaration())
	cfg := testConfig()
	cfg.HealthReporterArchive = "../lambdas/healthreporter/function.zip"

	mocks, stack := runStack(t, graph, cfg)

	require.NotNil(t, stack.HealthReporter)
	assert.Len(t, mocks.byType("aws:lambda/function:Function"), 1)
	assert.Len(t, mocks.byType("aws:lambda/permission:Permission"), 1)
	rules := mocks.byType("aws:cloudwatch/eventRule:EventRule")
	require.Len(t, rules, 1)
	assert.Equal(t, defaultHealthReporterSchedule, stringInput(rules[0], "scheduleExpression"))
}

func TestCreateStack_AccessLogs(t *testing.T) {
	graph := resolveBlog(t, blogDeclaration())
	cfg := testConfig()
	cfg.LoadBalancerAccessLogs = true

	mocks, stack := runStack(t, graph, cfg)

	require.NotNil(t, stack.LoadBalancer.AccessLogs)
	assert.Len(t, mocks.byType("aws:s3/bucket:Bucket"), 1)
	assert.Len(t, mocks.byType("aws:s3/bucketPolicy:BucketPolicy"), 1)

	albs := mocks.byType("aws:lb/loadBalancer:LoadBalancer")
	require.Len(t, albs, 1)
	accessLogs := albs[0].Inputs["accessLogs"]
	require.True(t, accessLogs.IsObject())
	assert.True(t, accessLogs.ObjectValue()["enabled"].BoolValue())
	assert.Equal(t, "loadbalancer", accessLogs.ObjectValue()["prefix"].StringValue())
}

func TestRun_ReadsStackConfig(t *testing.T) {
	topologyJSON, err := json.Marshal(blogDeclaration())
	require.NoError(t, err)
	cfg, err := json.Marshal(map[string]string{
		testProject + ":topology":        string(topologyJSON),
		testProject + ":keyName":         "blog-key",
		testProject + ":amiArchitecture": "arm64",
	})
	require.NoError(t, err)
	t.Setenv("PULUMI_CONFIG", string(cfg))

	mocks := &recordingMocks{}
	err = pulumi.RunErr(func(ctx *pulumi.Context) error {
		return run(ctx, testPayloads)
	}, pulumi.WithMocks(testProject, testStack, mocks))
	require.NoError(t, err)

	servers := mocks.byType("aws:ec2/instance:Instance")
	require.Len(t, servers, 2)
	for _, server := range servers {
		assert.Equal(t, "blog-key", stringInput(server, "keyName"))
	}
}

func TestRun_MissingTopology(t *testing.T) {
	t.Setenv("PULUMI_CONFIG", "{}")

	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		return run(ctx, testPayloads)
	}, pulumi.WithMocks(testProject, testStack, &recordingMocks{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topology")
}

func TestRun_PayloadMissing(t *testing.T) {
	topologyJSON, err := json.Marshal(blogDeclaration())
	require.NoError(t, err)
	cfg, err := json.Marshal(map[string]string{testProject + ":topology": string(topologyJSON)})
	require.NoError(t, err)
	t.Setenv("PULUMI_CONFIG", string(cfg))

	mocks := &recordingMocks{}
	err = pulumi.RunErr(func(ctx *pulumi.Context) error {
		return run(ctx, fstest.MapFS{})
	}, pulumi.WithMocks(testProject, testStack, mocks))
	require.Error(t, err)
	assert.Empty(t, mocks.byType("aws:ec2/vpc:Vpc"))
}

func TestResourceName(t *testing.T) {
	assert.Equal(t, "webserver1-sg", resourceName("WebServer1", "sg"))
	assert.Equal(t, "wordpressdb-from-0-0-0-0-0-tcp80", resourceName("WordPressDB", "from", "0.0.0.0/0", "tcp80"))
}
