package main

import (
	"github.com/cockroachdb/errors"
	"github.com/j19015/blog-stack/internal/topology"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"
)

const (
	defaultDBUsername             = "admin"
	defaultAmiArchitecture        = "x86_64"
	defaultHealthReporterSchedule = "rate(15 minutes)"
)

// StackConfig is the stack configuration of the blog stack
type StackConfig struct {
	Topology               topology.Declaration
	KeyName                string
	DBUsername             string
	AmiArchitecture        string
	LoadBalancerAccessLogs bool
	HealthReporterArchive  string
	HealthReporterSchedule string
}

// loadStackConfig reads the stack configuration, applying defaults
func loadStackConfig(ctx *pulumi.Context) (StackConfig, error) {
	cfg := config.New(ctx, "")

	var decl topology.Declaration
	if err := cfg.TryObject("topology", &decl); err != nil {
		return StackConfig{}, errors.Wrap(err, "reading topology from stack config")
	}

	return StackConfig{
		Topology:               decl,
		KeyName:                cfg.Get("keyName"),
		DBUsername:             valueOr(cfg.Get("dbUsername"), defaultDBUsername),
		AmiArchitecture:        valueOr(cfg.Get("amiArchitecture"), defaultAmiArchitecture),
		LoadBalancerAccessLogs: cfg.GetBool("loadBalancerAccessLogs"),
		HealthReporterArchive:  cfg.Get("healthReporterArchive"),
		HealthReporterSchedule: valueOr(cfg.Get("healthReporterSchedule"), defaultHealthReporterSchedule),
	}, nil
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
