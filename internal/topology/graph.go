package topology

import "fmt"

// Kind identifies the type of a node in the resource graph.
type Kind string

const (
	KindNetwork      Kind = "network"
	KindInstance     Kind = "instance"
	KindDatabase     Kind = "database"
	KindLoadBalancer Kind = "loadBalancer"
)

// Graph is a resolved topology. Every AccessRule references nodes present in
// the graph, and Nodes returns them in an order safe for creation. A Graph is
// owned by the caller once returned and is not modified afterwards.
type Graph struct {
	Network      Network       `json:"network"`
	Instances    []Instance    `json:"instances"`
	Database     *Database     `json:"database,omitempty"`
	LoadBalancer *LoadBalancer `json:"loadBalancer,omitempty"`
	AccessRules  []AccessRule  `json:"accessRules"`
}

type Network struct {
	ID      string   `json:"id"`
	CIDR    string   `json:"cidr"`
	Subnets []Subnet `json:"subnets"`
}

type Subnet struct {
	Name             string     `json:"name"`
	Type             SubnetType `json:"type"`
	CIDR             string     `json:"cidr"`
	AvailabilityZone string     `json:"availabilityZone,omitempty"`
}

// SubnetsOf returns the subnets of the given type in declaration order.
func (n Network) SubnetsOf(t SubnetType) []Subnet {
	var out []Subnet
	for _, s := range n.Subnets {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}

type Instance struct {
	ID           string     `json:"id"`
	InstanceType string     `json:"instanceType"`
	Placement    SubnetType `json:"placement"`
	Subnet       string     `json:"subnet"`
	// UserData is the bootstrap payload, attached verbatim.
	UserData  string    `json:"userData,omitempty"`
	Ingress   []Ingress `json:"ingress,omitempty"`
	DependsOn []string  `json:"dependsOn"`
}

type Ingress struct {
	CIDR        string `json:"cidr"`
	Protocol    string `json:"protocol"`
	Port        int    `json:"port"`
	Description string `json:"description,omitempty"`
}

type Database struct {
	ID               string     `json:"id"`
	Engine           string     `json:"engine"`
	EngineVersion    string     `json:"engineVersion,omitempty"`
	InstanceClass    string     `json:"instanceClass"`
	DatabaseName     string     `json:"databaseName,omitempty"`
	Placement        SubnetType `json:"placement"`
	Subnets          []string   `json:"subnets"`
	AllocatedStorage int        `json:"allocatedStorage,omitempty"`
	Port             int        `json:"port"`
	DependsOn        []string   `json:"dependsOn"`
}

type LoadBalancer struct {
	ID              string   `json:"id"`
	Internal        bool     `json:"internal"`
	ListenerPort    int      `json:"listenerPort"`
	HealthCheckPath string   `json:"healthCheckPath"`
	Subnets         []string `json:"subnets"`
	Targets         []string `json:"targets"`
	DependsOn       []string `json:"dependsOn"`
}

// AccessRule is a directed edge: Source may reach Destination on Port.
type AccessRule struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Protocol    string `json:"protocol"`
	Port        int    `json:"port"`
}

func (r AccessRule) String() string {
	return fmt.Sprintf("%s -> %s %s/%d", r.Source, r.Destination, r.Protocol, r.Port)
}

// Node is the kind-independent view of a graph node.
type Node struct {
	ID        string
	Kind      Kind
	DependsOn []string
}

// Nodes returns every node in creation order: the network, the instances in
// declaration order, the database, then the load balancer.
func (g *Graph) Nodes() []Node {
	nodes := []Node{{ID: g.Network.ID, Kind: KindNetwork}}
	for _, inst := range g.Instances {
		nodes = append(nodes, Node{ID: inst.ID, Kind: KindInstance, DependsOn: copyStrings(inst.DependsOn)})
	}
	if g.Database != nil {
		nodes = append(nodes, Node{ID: g.Database.ID, Kind: KindDatabase, DependsOn: copyStrings(g.Database.DependsOn)})
	}
	if g.LoadBalancer != nil {
		nodes = append(nodes, Node{ID: g.LoadBalancer.ID, Kind: KindLoadBalancer, DependsOn: copyStrings(g.LoadBalancer.DependsOn)})
	}
	return nodes
}

// Node looks up a node by identifier.
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes() {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Instance looks up a resolved instance by identifier.
func (g *Graph) Instance(id string) (Instance, bool) {
	for _, inst := range g.Instances {
		if inst.ID == id {
			return inst, true
		}
	}
	return Instance{}, false
}

// Edges returns the access rules of the graph.
func (g *Graph) Edges() []AccessRule {
	return append([]AccessRule(nil), g.AccessRules...)
}

// Output names an address the provisioning engine reports back for a node.
type Output struct {
	Name      string
	NodeID    string
	Attribute string
}

const (
	AttributePublicIP = "publicIp"
	AttributeEndpoint = "endpoint"
	AttributeDNSName  = "dnsName"
)

// Outputs lists the named outputs the stack exposes, in node order.
func (g *Graph) Outputs() []Output {
	var out []Output
	for _, inst := range g.Instances {
		out = append(out, Output{Name: inst.ID + "PublicIp", NodeID: inst.ID, Attribute: AttributePublicIP})
	}
	if g.Database != nil {
		out = append(out, Output{Name: g.Database.ID + "Endpoint", NodeID: g.Database.ID, Attribute: AttributeEndpoint})
	}
	if g.LoadBalancer != nil {
		out = append(out, Output{Name: g.LoadBalancer.ID + "DnsName", NodeID: g.LoadBalancer.ID, Attribute: AttributeDNSName})
	}
	return out
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
