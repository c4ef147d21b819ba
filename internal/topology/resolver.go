// Package topology turns a stack declaration into a resolved resource graph
// that a provisioning engine can create without forward references.
package topology

import (
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/j19015/blog-stack/internal/logging"
	"go.uber.org/zap"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for resolution steps.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		r.log = logger
	}
}

// WithPayloadFS sets the file system bootstrap scripts are read from.
// Script paths in the declaration are relative to its root.
func WithPayloadFS(fsys fs.FS) Option {
	return func(r *Resolver) {
		r.payloads = fsys
	}
}

// Resolver resolves declarations. It holds no per-resolution state and may be
// reused.
type Resolver struct {
	log      *zap.Logger
	payloads fs.FS
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		log:      zap.NewNop(),
		payloads: os.DirFS("."),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve is a shorthand for NewResolver(opts...).Resolve(decl).
func Resolve(decl Declaration, opts ...Option) (*Graph, error) {
	return NewResolver(opts...).Resolve(decl)
}

// Resolve produces the resource graph for decl. On any failure it returns a
// nil graph and an error matching one of the package sentinels.
func (r *Resolver) Resolve(decl Declaration) (*Graph, error) {
	kinds, err := indexDeclaration(decl)
	if err != nil {
		return nil, err
	}
	if err := checkReferences(decl, kinds); err != nil {
		return nil, err
	}

	b := &builder{
		graph:  &Graph{},
		kinds:  make(map[string]Kind),
		rules:  make(map[AccessRule]struct{}),
		spread: make(map[SubnetType]int),
	}

	b.addNetwork(decl.Network)
	r.log.Debug("resolved network",
		zap.String(logging.FieldNodeID, b.graph.Network.ID),
		zap.Int("subnets", len(b.graph.Network.Subnets)))

	for _, d := range decl.Instances {
		payload, err := r.readPayload(d)
		if err != nil {
			return nil, err
		}
		if err := b.addInstance(d, payload); err != nil {
			return nil, err
		}
		r.log.Debug("resolved instance", zap.String(logging.FieldNodeID, d.ID))
	}

	if decl.Database != nil {
		if err := b.addDatabase(*decl.Database); err != nil {
			return nil, err
		}
		db := b.graph.Database
		r.log.Debug("resolved database", zap.String(logging.FieldNodeID, db.ID), zap.Int("port", db.Port))

		for _, from := range decl.Database.AllowFrom {
			if err := b.addRule(AccessRule{Source: from, Destination: db.ID, Protocol: defaultProtocol, Port: db.Port}); err != nil {
				return nil, err
			}
		}
		for _, intent := range decl.Access {
			if intent.To != db.ID || kinds[intent.From] != KindInstance {
				continue
			}
			if err := b.addIntent(intent); err != nil {
				return nil, err
			}
		}
	}

	if decl.LoadBalancer != nil {
		if err := b.addLoadBalancer(*decl.LoadBalancer); err != nil {
			return nil, err
		}
		lb := b.graph.LoadBalancer
		r.log.Debug("resolved load balancer", zap.String(logging.FieldNodeID, lb.ID), zap.Int("targets", len(lb.Targets)))

		for _, target := range lb.Targets {
			if err := b.addRule(AccessRule{Source: lb.ID, Destination: target, Protocol: defaultProtocol, Port: lb.ListenerPort}); err != nil {
				return nil, err
			}
		}
	}

	// Remaining intents may reference any node, so they go last.
	for _, intent := range decl.Access {
		if err := b.addIntent(intent); err != nil {
			return nil, err
		}
	}

	r.log.Debug("resolved topology",
		zap.Int("count", len(b.graph.Nodes())),
		zap.Int("access_rules", len(b.graph.AccessRules)))
	return b.graph, nil
}

// readPayload loads the bootstrap script of an instance, if it has one. The
// file is closed before returning.
func (r *Resolver) readPayload(d InstanceDecl) (string, error) {
	if d.UserDataPath == "" {
		return "", nil
	}
	f, err := r.payloads.Open(d.UserDataPath)
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "instance %s: opening bootstrap script %s", d.ID, d.UserDataPath), ErrPayloadRead)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "instance %s: reading bootstrap script %s", d.ID, d.UserDataPath), ErrPayloadRead)
	}
	return string(content), nil
}

// indexDeclaration maps every declared identifier to its kind.
func indexDeclaration(decl Declaration) (map[string]Kind, error) {
	kinds := make(map[string]Kind)
	normalized := make(map[string]string)
	add := func(id string, kind Kind) error {
		if strings.TrimSpace(id) == "" {
			return errors.Mark(errors.Newf("%s declared without an identifier", kind), ErrInvalidIdentifier)
		}
		if prev, ok := kinds[id]; ok {
			return errors.Mark(errors.Newf("identifier %q declared for both %s and %s", id, prev, kind), ErrInvalidIdentifier)
		}
		// Resource names are derived from the normalized form.
		if other, ok := normalized[NormalizeID(id)]; ok {
			return errors.Mark(errors.Newf("identifiers %q and %q collide as %q", other, id, NormalizeID(id)), ErrInvalidIdentifier)
		}
		kinds[id] = kind
		normalized[NormalizeID(id)] = id
		return nil
	}

	if err := add(decl.Network.id(), KindNetwork); err != nil {
		return nil, err
	}
	subnetNames := make(map[string]string)
	for _, s := range decl.Network.Subnets {
		if strings.TrimSpace(s.Name) == "" {
			return nil, errors.Mark(errors.Newf("network %s: subnet declared without a name", decl.Network.id()), ErrInvalidIdentifier)
		}
		if other, ok := subnetNames[NormalizeID(s.Name)]; ok {
			return nil, errors.Mark(errors.Newf("network %s: subnets %q and %q collide as %q", decl.Network.id(), other, s.Name, NormalizeID(s.Name)), ErrInvalidIdentifier)
		}
		subnetNames[NormalizeID(s.Name)] = s.Name
	}
	for _, inst := range decl.Instances {
		if err := add(inst.ID, KindInstance); err != nil {
			return nil, err
		}
	}
	if decl.Database != nil {
		if err := add(decl.Database.id(), KindDatabase); err != nil {
			return nil, err
		}
	}
	if decl.LoadBalancer != nil {
		if err := add(decl.LoadBalancer.id(), KindLoadBalancer); err != nil {
			return nil, err
		}
	}
	return kinds, nil
}

// checkReferences rejects target lists and access intents that name
// identifiers the declaration does not define.
func checkReferences(decl Declaration, kinds map[string]Kind) error {
	if decl.Database != nil {
		for _, from := range decl.Database.AllowFrom {
			if kinds[from] != KindInstance {
				return unresolvedf("database %s: allowFrom names %q, which is not a declared instance", decl.Database.id(), from)
			}
		}
	}
	if decl.LoadBalancer != nil {
		for _, target := range decl.LoadBalancer.Targets {
			if kinds[target] != KindInstance {
				return unresolvedf("load balancer %s: target %q is not a declared instance", decl.LoadBalancer.id(), target)
			}
		}
	}
	for _, intent := range decl.Access {
		for _, end := range []string{intent.From, intent.To} {
			kind, ok := kinds[end]
			if !ok {
				return unresolvedf("access %s -> %s: %q is not declared", intent.From, intent.To, end)
			}
			if kind == KindNetwork {
				return unresolvedf("access %s -> %s: network %q cannot be an access endpoint", intent.From, intent.To, end)
			}
		}
	}
	return nil
}

// builder accumulates the graph for a single resolution.
type builder struct {
	graph  *Graph
	kinds  map[string]Kind
	rules  map[AccessRule]struct{}
	spread map[SubnetType]int
}

func (b *builder) addNetwork(d NetworkDecl) {
	network := Network{ID: d.id(), CIDR: d.CIDR}
	for _, s := range d.Subnets {
		network.Subnets = append(network.Subnets, Subnet(s))
	}
	// Without declared subnets the CIDR is split into the default layout.
	if len(network.Subnets) == 0 {
		network.Subnets = defaultSubnets(d.CIDR)
	}
	b.graph.Network = network
	b.kinds[network.ID] = KindNetwork
}

func (b *builder) requireNetwork(id string) error {
	if b.graph.Network.ID == "" || b.kinds[b.graph.Network.ID] != KindNetwork {
		return missingDependencyf("%s resolved before the network", id)
	}
	return nil
}

// subnetsFor returns the subnet names of placement t.
func (b *builder) subnetsFor(id string, t SubnetType) ([]string, error) {
	var names []string
	for _, s := range b.graph.Network.SubnetsOf(t) {
		names = append(names, s.Name)
	}
	if len(names) == 0 {
		return nil, unresolvedf("%s: network %s has no %s subnet", id, b.graph.Network.ID, t)
	}
	return names, nil
}

func (b *builder) addInstance(d InstanceDecl, payload string) error {
	if err := b.requireNetwork(d.ID); err != nil {
		return err
	}
	placement := d.Placement
	if placement == "" {
		placement = SubnetPublic
	}
	subnets, err := b.subnetsFor(d.ID, placement)
	if err != nil {
		return err
	}
	// Instances of the same placement rotate through its subnets.
	subnet := subnets[b.spread[placement]%len(subnets)]
	b.spread[placement]++

	inst := Instance{
		ID:           d.ID,
		InstanceType: d.InstanceType,
		Placement:    placement,
		Subnet:       subnet,
		UserData:     payload,
		DependsOn:    []string{b.graph.Network.ID},
	}
	for _, in := range d.Ingress {
		inst.Ingress = append(inst.Ingress, Ingress{
			CIDR:        in.CIDR,
			Protocol:    protocolOrDefault(in.Protocol),
			Port:        in.Port,
			Description: in.Description,
		})
	}
	b.graph.Instances = append(b.graph.Instances, inst)
	b.kinds[inst.ID] = KindInstance
	return nil
}

func (b *builder) addDatabase(d DatabaseDecl) error {
	id := d.id()
	if err := b.requireNetwork(id); err != nil {
		return err
	}
	placement := d.Placement
	if placement == "" {
		placement = SubnetPrivate
	}
	subnets, err := b.subnetsFor(id, placement)
	if err != nil {
		return err
	}
	b.graph.Database = &Database{
		ID:               id,
		Engine:           d.Engine,
		EngineVersion:    d.EngineVersion,
		InstanceClass:    d.InstanceClass,
		DatabaseName:     d.DatabaseName,
		Placement:        placement,
		Subnets:          subnets,
		AllocatedStorage: d.AllocatedStorage,
		Port:             DefaultPort(d.Engine),
		DependsOn:        []string{b.graph.Network.ID},
	}
	b.kinds[id] = KindDatabase
	return nil
}

func (b *builder) addLoadBalancer(d LoadBalancerDecl) error {
	id := d.id()
	if err := b.requireNetwork(id); err != nil {
		return err
	}
	placement := SubnetPublic
	if d.Internal {
		placement = SubnetPrivate
	}
	subnets, err := b.subnetsFor(id, placement)
	if err != nil {
		return err
	}

	dependsOn := []string{b.graph.Network.ID}
	targets := []string{}
	seen := make(map[string]bool)
	for _, target := range d.Targets {
		if b.kinds[target] != KindInstance {
			return missingDependencyf("load balancer %s resolved before target %s", id, target)
		}
		if seen[target] {
			continue
		}
		seen[target] = true
		targets = append(targets, target)
		dependsOn = append(dependsOn, target)
	}

	port := d.ListenerPort
	if port == 0 {
		port = defaultListenerPort
	}
	path := d.HealthCheckPath
	if path == "" {
		path = defaultHealthCheckPath
	}
	b.graph.LoadBalancer = &LoadBalancer{
		ID:              id,
		Internal:        d.Internal,
		ListenerPort:    port,
		HealthCheckPath: path,
		Subnets:         subnets,
		Targets:         targets,
		DependsOn:       dependsOn,
	}
	b.kinds[id] = KindLoadBalancer
	return nil
}

// addIntent resolves the port of an access intent and records the rule.
func (b *builder) addIntent(intent AccessIntent) error {
	port := intent.Port
	if port == 0 {
		switch b.kinds[intent.To] {
		case KindDatabase:
			port = b.graph.Database.Port
		case KindLoadBalancer:
			port = b.graph.LoadBalancer.ListenerPort
		default:
			return unresolvedf("access %s -> %s: %s has no default port", intent.From, intent.To, intent.To)
		}
	}
	return b.addRule(AccessRule{
		Source:      intent.From,
		Destination: intent.To,
		Protocol:    protocolOrDefault(intent.Protocol),
		Port:        port,
	})
}

// addRule appends rule unless an identical rule already exists. Both
// endpoints must already be in the graph.
func (b *builder) addRule(rule AccessRule) error {
	for _, end := range []string{rule.Source, rule.Destination} {
		if _, ok := b.kinds[end]; !ok {
			return missingDependencyf("access rule %s emitted before %s", rule, end)
		}
	}
	if _, ok := b.rules[rule]; ok {
		return nil
	}
	b.rules[rule] = struct{}{}
	b.graph.AccessRules = append(b.graph.AccessRules, rule)
	return nil
}

func protocolOrDefault(p string) string {
	if p == "" {
		return defaultProtocol
	}
	return p
}
