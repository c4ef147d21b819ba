package topology

// SubnetType is the placement class of a subnet.
type SubnetType string

const (
	SubnetPublic  SubnetType = "public"
	SubnetPrivate SubnetType = "private"
)

// Default identifiers used when a declaration leaves its ID empty.
const (
	DefaultNetworkID      = "Network"
	DefaultDatabaseID     = "Database"
	DefaultLoadBalancerID = "LoadBalancer"
)

const (
	defaultProtocol        = "tcp"
	defaultListenerPort    = 80
	defaultHealthCheckPath = "/"
)

// Declaration is the desired topology of one stack. It is plain data and is
// never modified by the resolver.
type Declaration struct {
	Network      NetworkDecl       `json:"network" yaml:"network"`
	Instances    []InstanceDecl    `json:"instances,omitempty" yaml:"instances,omitempty"`
	Database     *DatabaseDecl     `json:"database,omitempty" yaml:"database,omitempty"`
	LoadBalancer *LoadBalancerDecl `json:"loadBalancer,omitempty" yaml:"loadBalancer,omitempty"`
	Access       []AccessIntent    `json:"access,omitempty" yaml:"access,omitempty"`
}

// NetworkDecl describes the isolated address space.
type NetworkDecl struct {
	ID      string       `json:"id,omitempty" yaml:"id,omitempty"`
	CIDR    string       `json:"cidr" yaml:"cidr"`
	Subnets []SubnetDecl `json:"subnets,omitempty" yaml:"subnets,omitempty"`
}

type SubnetDecl struct {
	Name             string     `json:"name" yaml:"name"`
	Type             SubnetType `json:"type" yaml:"type"`
	CIDR             string     `json:"cidr" yaml:"cidr"`
	AvailabilityZone string     `json:"availabilityZone,omitempty" yaml:"availabilityZone,omitempty"`
}

// InstanceDecl describes one compute instance.
type InstanceDecl struct {
	ID           string        `json:"id" yaml:"id"`
	InstanceType string        `json:"instanceType" yaml:"instanceType"`
	Placement    SubnetType    `json:"placement,omitempty" yaml:"placement,omitempty"`
	UserDataPath string        `json:"userDataPath,omitempty" yaml:"userDataPath,omitempty"`
	Ingress      []IngressDecl `json:"ingress,omitempty" yaml:"ingress,omitempty"`
}

// IngressDecl opens a port on an instance to a CIDR range outside the graph.
type IngressDecl struct {
	CIDR        string `json:"cidr" yaml:"cidr"`
	Port        int    `json:"port" yaml:"port"`
	Protocol    string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// DatabaseDecl describes the managed relational database.
type DatabaseDecl struct {
	ID               string     `json:"id,omitempty" yaml:"id,omitempty"`
	Engine           string     `json:"engine" yaml:"engine"`
	EngineVersion    string     `json:"engineVersion,omitempty" yaml:"engineVersion,omitempty"`
	InstanceClass    string     `json:"instanceClass" yaml:"instanceClass"`
	DatabaseName     string     `json:"databaseName,omitempty" yaml:"databaseName,omitempty"`
	Placement        SubnetType `json:"placement,omitempty" yaml:"placement,omitempty"`
	AllocatedStorage int        `json:"allocatedStorage,omitempty" yaml:"allocatedStorage,omitempty"`
	// AllowFrom lists instances granted access on the database default port.
	AllowFrom []string `json:"allowFrom,omitempty" yaml:"allowFrom,omitempty"`
}

// LoadBalancerDecl describes the single entry point and its target group.
type LoadBalancerDecl struct {
	ID              string   `json:"id,omitempty" yaml:"id,omitempty"`
	Internal        bool     `json:"internal,omitempty" yaml:"internal,omitempty"`
	ListenerPort    int      `json:"listenerPort,omitempty" yaml:"listenerPort,omitempty"`
	HealthCheckPath string   `json:"healthCheckPath,omitempty" yaml:"healthCheckPath,omitempty"`
	Targets         []string `json:"targets,omitempty" yaml:"targets,omitempty"`
}

// AccessIntent asks for From to be able to reach To. A zero Port means the
// default port of the destination.
type AccessIntent struct {
	From     string `json:"from" yaml:"from"`
	To       string `json:"to" yaml:"to"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
	Protocol string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
}

func (d NetworkDecl) id() string {
	if d.ID == "" {
		return DefaultNetworkID
	}
	return d.ID
}

func (d DatabaseDecl) id() string {
	if d.ID == "" {
		return DefaultDatabaseID
	}
	return d.ID
}

func (d LoadBalancerDecl) id() string {
	if d.ID == "" {
		return DefaultLoadBalancerID
	}
	return d.ID
}
